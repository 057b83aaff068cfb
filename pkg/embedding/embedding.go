// Package embedding provides text embedding providers and caching.
// Providers turn text into fixed-dimension float vectors through an
// external service; failures are classified so callers can decide
// whether to retry, back off, or degrade.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Result is a successful embedding response.
type Result struct {
	// Vector is the embedding, with the provider's dimensionality.
	Vector []float32

	// Tokens is the provider-reported prompt token count, or an
	// estimate when the provider reports none.
	Tokens int

	// Cached is true when the vector came from a cache and no
	// provider call happened, so no usage should be billed.
	Cached bool
}

// Provider produces embeddings for text. Implementations classify
// failures as ProviderError and never retry internally; retry policy
// belongs to the caller.
type Provider interface {
	// Embed returns the embedding for text.
	Embed(ctx context.Context, text string) (Result, error)

	// Dims returns the vector dimensionality this provider produces.
	Dims() int

	// Name identifies the provider for usage accounting and logging.
	Name() string
}

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	// RateLimited means the provider throttled the request. RetryAfter
	// may carry the server-suggested wait.
	RateLimited ErrorKind = "rate_limited"

	// AuthFailure means credentials were rejected. Retrying is useless.
	AuthFailure ErrorKind = "auth_failure"

	// NetworkFailure covers transport errors and server-side failures.
	NetworkFailure ErrorKind = "network_failure"

	// InvalidResponse means the provider answered with an unusable
	// payload: wrong dimensionality, empty vector, or malformed body.
	InvalidResponse ErrorKind = "invalid_response"
)

// ProviderError is a classified embedding failure.
type ProviderError struct {
	Kind       ErrorKind
	Provider   string
	RetryAfter time.Duration
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("embedding provider %s: %s: %s", e.Provider, e.Kind, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AsProviderError extracts a ProviderError from an error chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsRateLimited reports whether err is a rate-limit failure.
func IsRateLimited(err error) bool {
	pe, ok := AsProviderError(err)
	return ok && pe.Kind == RateLimited
}

// IsAuthFailure reports whether err is an authentication failure.
func IsAuthFailure(err error) bool {
	pe, ok := AsProviderError(err)
	return ok && pe.Kind == AuthFailure
}

// Truncate cuts text to at most maxChars runes, never splitting a rune.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}

// ValidVector reports whether a vector has the expected dimensionality
// and only finite components.
func ValidVector(vec []float32, dims int) bool {
	if len(vec) != dims {
		return false
	}
	for _, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}

// EstimateTokens approximates a token count when the provider reports
// none. Four characters per token is the usual rule of thumb.
func EstimateTokens(text string) int {
	n := (len(text) + 3) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}
