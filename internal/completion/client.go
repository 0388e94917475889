// Package completion calls the generative-language model that writes the
// itineraries. One call is one attempt; callers decide what a failure means.
package completion

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/pkordes/tripplanner/internal/domain"
)

// Defaults applied by New when the Config leaves a field zero.
const (
	DefaultBaseURL         = "https://generativelanguage.googleapis.com/"
	DefaultAPIVersion      = "v1beta"
	DefaultModel           = "gemini-2.0-flash"
	DefaultTimeout         = 120 * time.Second
	DefaultTemperature     = 0.3
	DefaultMaxOutputTokens = 8192
)

// Config holds the endpoint settings.
type Config struct {
	BaseURL         string
	Model           string
	APIKey          string
	Timeout         time.Duration
	Temperature     float32
	MaxOutputTokens int32
}

// Result is one completion.
type Result struct {
	// Raw is the full response as JSON.
	Raw json.RawMessage
	// Text is the model's answer as written, before fence stripping.
	Text string
	// Parsed is the answer as a JSON object, or nil when it did not parse.
	Parsed json.RawMessage
	// Warning is set when the answer could not be parsed. The call still
	// succeeded and Raw is available for inspection.
	Warning string
}

// Client wraps a genai client bound to one model.
type Client struct {
	cfg    Config
	genai  *genai.Client
	logger *slog.Logger
}

// New builds a Client. A nil httpClient gets one bounded by cfg.Timeout.
// Without an API key the Client is still returned and every call fails
// with ErrMissingAPIKey.
func New(ctx context.Context, cfg Config, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{cfg: cfg, logger: logger}
	if cfg.APIKey == "" {
		return c, nil
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    cfg.BaseURL,
			APIVersion: DefaultAPIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("completion.New: %w", err)
	}
	c.genai = gc
	return c, nil
}

// CallOption adjusts a single Complete call.
type CallOption func(*genai.GenerateContentConfig)

// WithMaxOutputTokens raises or lowers the answer length cap for one call.
func WithMaxOutputTokens(n int32) CallOption {
	return func(g *genai.GenerateContentConfig) {
		if n > 0 {
			g.MaxOutputTokens = n
		}
	}
}

// Complete sends instruction and images to the model and waits at most the
// configured timeout for the answer.
func (c *Client) Complete(ctx context.Context, instruction string, images []domain.Image, opts ...CallOption) (Result, error) {
	if c.genai == nil {
		return Result{}, ErrMissingAPIKey
	}

	parts := make([]*genai.Part, 0, 1+len(images))
	parts = append(parts, &genai.Part{Text: instruction})
	for i, img := range images {
		data, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			return Result{}, fmt.Errorf("completion.Client.Complete: %w: image %d is not base64", domain.ErrValidation, i)
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: img.MIMEType, Data: data}})
	}

	gen := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.cfg.Temperature),
		MaxOutputTokens: c.cfg.MaxOutputTokens,
	}
	for _, opt := range opts {
		opt(gen)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.genai.Models.GenerateContent(ctx, c.cfg.Model,
		[]*genai.Content{{Role: "user", Parts: parts}}, gen)
	if err != nil {
		return Result{}, c.classify(ctx, err)
	}
	c.logger.Info("completion finished",
		"model", c.cfg.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"images", len(images),
	)

	raw, err := json.Marshal(resp)
	if err != nil {
		return Result{}, &ProtocolError{Err: err}
	}
	res := Result{Raw: raw, Text: resp.Text()}
	if res.Text == "" {
		res.Warning = "model returned no answer text"
		c.logger.Warn("completion answer missing", "candidates", len(resp.Candidates))
		return res, nil
	}
	parsed, ok := ParseAnswer(res.Text)
	if !ok {
		res.Warning = "model answer is not valid JSON; returning the raw response"
		c.logger.Warn("completion answer did not parse", "text_bytes", len(res.Text))
		return res, nil
	}
	res.Parsed = parsed
	return res, nil
}

// classify maps a failed GenerateContent call onto the error taxonomy.
// ctx is the call's own bounded context.
func (c *Client) classify(ctx context.Context, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &HTTPError{StatusCode: apiErr.Code, Body: apiErr.Status + ": " + apiErr.Message}
	}
	var nerr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &nerr) && nerr.Timeout()) {
		return &TimeoutError{After: c.cfg.Timeout, Err: context.DeadlineExceeded}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &ProtocolError{Err: err}
	}
	return fmt.Errorf("completion.Client.Complete: %w: %v", domain.ErrUpstream, err)
}
