// Package correlation carries the request correlation id through contexts,
// HTTP headers and bus metadata so a lifecycle event can be traced back to
// the request that caused it.
package correlation

import (
	"context"
	"strings"
)

const (
	// Header is the request and response header holding the id.
	Header = "X-Correlation-ID"
	// FallbackHeader is accepted when Header is absent.
	FallbackHeader = "X-Request-ID"
	// LocalsKey is the fiber locals key the middleware populates.
	LocalsKey = "correlation_id"
)

type contextKey struct{}

// WithID returns ctx carrying id. Blank ids leave ctx untouched.
func WithID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the id stored by WithID, or an empty string.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// Resolve picks the first non-blank candidate, or mints one with generate.
func Resolve(generate func() string, candidates ...string) string {
	for _, candidate := range candidates {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return generate()
}
