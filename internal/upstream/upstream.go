// Package upstream defines the contract between the describe service and the
// hosted vision-language models that produce image descriptions.
package upstream

import (
	"context"
	"errors"
	"fmt"
)

// ErrMissingCredential is returned by Describer.Configured when the provider
// needs an API key and none was configured.
var ErrMissingCredential = errors.New("upstream credential is not configured")

// Request is a single describe call: one text prompt and one inline image.
type Request struct {
	Prompt    string
	Image     string // base64 payload, no data URL prefix
	MediaType string
	MaxTokens int64
}

// Describer describes an image using a specific hosted model.
type Describer interface {
	// Name returns the provider name, e.g. "anthropic" or "ollama".
	Name() string

	// Configured reports whether the provider can be called at all. It
	// must not perform network I/O.
	Configured() error

	// Describe returns the first text segment of the model response, or the
	// empty string if the response carried no text.
	Describe(ctx context.Context, req Request) (string, error)

	// DescribeStream calls onDelta for every text fragment as it arrives.
	// Returning an error from onDelta stops the stream.
	DescribeStream(ctx context.Context, req Request, onDelta func(string) error) error
}

// StatusError is a non-2xx answer from the provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// StatusCode extracts the provider status from err, or 0 if err did not come
// from a provider response.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
