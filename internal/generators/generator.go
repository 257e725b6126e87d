// Package generators dispatches prompts to provider-specific media generators
// and normalizes their output into a single Artifact shape.
package generators

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Artifact is generated media before it is persisted.
type Artifact struct {
	Data     []byte
	MimeType string
	Metadata map[string]string
}

// Generator is implemented by every provider variant.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Artifact, error)
}

var ErrUnsupportedProvider = errors.New("unsupported provider")

type UpstreamKind string

const (
	KindUnavailable UpstreamKind = "upstream_unavailable"
	KindRateLimited UpstreamKind = "upstream_rate_limited"
)

// UpstreamError reports a vendor failure. RetryAfter is only set for
// KindRateLimited.
type UpstreamError struct {
	Kind       UpstreamKind
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Kind == KindRateLimited && e.RetryAfter > 0 {
		return fmt.Sprintf("%s: %s (retry after %s): %v", e.Provider, e.Kind, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func Unavailable(provider string, err error) *UpstreamError {
	return &UpstreamError{Kind: KindUnavailable, Provider: provider, Err: err}
}

func RateLimited(provider string, retryAfter time.Duration, err error) *UpstreamError {
	return &UpstreamError{Kind: KindRateLimited, Provider: provider, RetryAfter: retryAfter, Err: err}
}
