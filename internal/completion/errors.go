package completion

import (
	"errors"
	"fmt"
	"time"

	"github.com/pkordes/tripplanner/internal/domain"
)

// ErrMissingAPIKey is returned per call when no API key is configured.
// The process still starts without one.
var ErrMissingAPIKey = fmt.Errorf("%w: completion API key is not configured", domain.ErrUpstream)

// TimeoutError means the model did not answer within the configured bound.
type TimeoutError struct {
	After time.Duration
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("completion timed out after %s: %v", e.After, e.Err)
}

func (e *TimeoutError) Unwrap() []error {
	return []error{domain.ErrUpstream, e.Err}
}

// HTTPError is a non-2xx answer from the completion endpoint.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("completion endpoint returned %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) Unwrap() error {
	return domain.ErrUpstream
}

// ProtocolError means the endpoint answered with a body that does not decode.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("completion response is not valid JSON: %v", e.Err)
}

func (e *ProtocolError) Unwrap() []error {
	return []error{domain.ErrUpstream, e.Err}
}

// IsTimeout reports whether err is a completion timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
