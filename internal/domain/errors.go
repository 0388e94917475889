package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// plan does not exist in the store.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails request validation
// (malformed JSON, missing start/end date).
// Handlers should map this to HTTP 400.
var ErrValidation = errors.New("validation error")

// ErrUpstream wraps every completion-service failure: timeouts, non-2xx
// responses, unparseable bodies and missing credentials.
// Handlers should map this to HTTP 500.
var ErrUpstream = errors.New("upstream error")

// ErrPersistence wraps plan store read/write failures other than not-found.
// Handlers should map this to HTTP 500.
var ErrPersistence = errors.New("persistence error")
