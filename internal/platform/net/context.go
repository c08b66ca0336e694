// Package net holds request-scoped values shared by transports
package net

import (
	"context"
	"slices"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Principal is the caller identity forwarded past the authorization gate.
// It never carries the credential itself
type Principal struct {
	Subject string
	Scopes  []string
}

// HasScope reports whether the principal was granted scope
func (p Principal) HasScope(scope string) bool { return slices.Contains(p.Scopes, scope) }

type principalKey struct{}

// WithRequestID sets the chi request id so chimw.GetReqID sees it
func WithRequestID(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		return ctx
	}
	return context.WithValue(ctx, chimw.RequestIDKey, reqID)
}

// RequestID returns the request id on ctx, if any
func RequestID(ctx context.Context) string { return chimw.GetReqID(ctx) }

// WithPrincipal stores the authenticated caller on ctx
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller stored by WithPrincipal
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.Subject != ""
}
