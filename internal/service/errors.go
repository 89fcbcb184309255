package service

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kostiantynkovalchuk/DESCRIBER/internal/upstream"
)

type Kind string

const (
	KindConfiguration      Kind = "configuration"
	KindInvalidInput       Kind = "invalid_input"
	KindUpstreamAuth       Kind = "upstream_auth"
	KindUpstreamRateLimit  Kind = "upstream_rate_limit"
	KindUpstreamBadRequest Kind = "upstream_bad_request"
	KindUpstreamUnknown    Kind = "upstream_unknown"
)

// Error is a failure already normalised for the client: Message is safe to
// show to the user, Details carries the raw cause for diagnostics.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Details string
}

func (e *Error) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Details)
}

// AsError returns err as *Error, classifying anything else as an unknown
// upstream failure.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{
		Kind:    KindUpstreamUnknown,
		Status:  http.StatusInternalServerError,
		Message: msgUpstreamUnknown,
		Details: err.Error(),
	}
}

func InvalidBody(err error) *Error {
	return &Error{
		Kind:    KindInvalidInput,
		Status:  http.StatusBadRequest,
		Message: msgInvalidBody,
		Details: err.Error(),
	}
}

func BodyTooLarge(limit int64) *Error {
	return &Error{
		Kind:    KindInvalidInput,
		Status:  http.StatusRequestEntityTooLarge,
		Message: msgBodyTooLarge,
		Details: fmt.Sprintf("request body exceeds %d bytes", limit),
	}
}

func configurationError(provider string) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Status:  http.StatusInternalServerError,
		Message: fmt.Sprintf(msgConfiguration, strings.ToUpper(provider)+"_API_KEY"),
	}
}

func noImageError() *Error {
	return &Error{
		Kind:    KindInvalidInput,
		Status:  http.StatusBadRequest,
		Message: msgNoImage,
	}
}

// classifyUpstream maps a provider failure onto the user-facing taxonomy.
// Rate limiting and malformed requests keep the provider status; a rejected
// key is our misconfiguration, not the caller's, so it is reported as 500.
func classifyUpstream(provider string, err error) *Error {
	e := &Error{Details: err.Error()}

	switch upstream.StatusCode(err) {
	case http.StatusUnauthorized:
		e.Kind = KindUpstreamAuth
		e.Status = http.StatusInternalServerError
		e.Message = fmt.Sprintf(msgUpstreamAuth, displayName(provider))
	case http.StatusTooManyRequests:
		e.Kind = KindUpstreamRateLimit
		e.Status = http.StatusTooManyRequests
		e.Message = msgUpstreamRateLimit
	case http.StatusBadRequest:
		e.Kind = KindUpstreamBadRequest
		e.Status = http.StatusBadRequest
		e.Message = msgUpstreamBadRequest
	default:
		e.Kind = KindUpstreamUnknown
		e.Status = http.StatusInternalServerError
		e.Message = msgUpstreamUnknown
	}
	return e
}

func displayName(provider string) string {
	if n, ok := providerDisplayNames[provider]; ok {
		return n
	}
	return provider
}
