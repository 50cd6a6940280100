// Package llm provides LLM provider clients, the provider registry, the JSON
// gateway and error classification.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Error categories for LLM operations.
var (
	// ErrNotConfigured indicates the provider has no credentials or is disabled.
	ErrNotConfigured = errors.New("provider not configured")

	// ErrNoProviders indicates no provider in a chain could be used.
	ErrNoProviders = errors.New("no providers available")

	// ErrParse indicates model output could not be parsed as JSON.
	ErrParse = errors.New("failed to parse model output")

	// ErrEmptyResponse indicates the provider returned no content.
	ErrEmptyResponse = errors.New("empty response from provider")
)

// ErrorKind is a structured classification of provider failures.
type ErrorKind string

const (
	KindRateLimited   ErrorKind = "rate_limited"
	KindQuotaExceeded ErrorKind = "quota_exceeded"
	KindUnauthorized  ErrorKind = "unauthorized"
	KindNetwork       ErrorKind = "network"
	KindUnknown       ErrorKind = "unknown"
)

// ClassifyStatus maps an HTTP status code to an ErrorKind.
// A zero status means the request never produced a response.
func ClassifyStatus(status int) ErrorKind {
	switch status {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusPaymentRequired:
		return KindQuotaExceeded
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	case 0, http.StatusRequestTimeout, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindNetwork
	default:
		return KindUnknown
	}
}

// ProviderError is an error returned by a provider call, tagged at the call site.
type ProviderError struct {
	Provider   string
	Model      string
	StatusCode int
	Kind       ErrorKind
	// Body is the raw response body for non-2xx responses.
	Body string
	Err  error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s error: %d %s", e.Provider, e.StatusCode, strings.TrimSpace(e.Body))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error: %v", e.Provider, e.Err)
	}
	return e.Provider + " error: " + string(e.Kind)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether retrying the same provider later may succeed.
func (e *ProviderError) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindNetwork
}

// NewStatusError builds a ProviderError for a non-2xx response.
func NewStatusError(provider, model string, status int, body string) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Model:      model,
		StatusCode: status,
		Kind:       ClassifyStatus(status),
		Body:       body,
	}
}

// NewTransportError builds a ProviderError for a request that got no response.
func NewTransportError(provider, model string, err error) *ProviderError {
	kind := KindUnknown
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		kind = KindNetwork
	}
	return &ProviderError{
		Provider: provider,
		Model:    model,
		Kind:     kind,
		Err:      err,
	}
}

// KindOf returns the ErrorKind carried by err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	return KindUnknown
}

// IsRetryable reports whether err is a retryable provider error.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable()
}
