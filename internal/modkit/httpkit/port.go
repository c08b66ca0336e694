package httpkit

import (
	"context"
	"net/http"

	"poshub/internal/core/authz"
	pnet "poshub/internal/platform/net"
	"poshub/internal/platform/net/middleware"
)

// Authorizer is the gate surface routes are protected with
type Authorizer interface {
	Authorize(ctx context.Context, raw, requiredScope, resource string) authz.Decision
}

// ScopePort implements middleware.AuthPort by reading the Authorization header and asking
// the gate for one required scope. The resource is "<METHOD> <path>"
type ScopePort struct {
	gate  Authorizer
	scope string
}

// RequireScope builds the port for scope. A nil gate denies everything
func RequireScope(gate Authorizer, scope string) *ScopePort {
	return &ScopePort{gate: gate, scope: scope}
}

// Check runs the gate; a deny is returned as its caller-visible error
func (p *ScopePort) Check(r *http.Request) (pnet.Principal, error) {
	if p == nil || p.gate == nil {
		return pnet.Principal{}, authz.Decision{Reason: authz.ReasonUnauthenticated}.Err()
	}
	raw := authz.BearerToken(r.Header.Get("Authorization"))
	d := p.gate.Authorize(r.Context(), raw, p.scope, r.Method+" "+r.URL.Path)
	if !d.Allowed() {
		return pnet.Principal{}, d.Err()
	}
	c := d.Caller()
	return pnet.Principal{Subject: c.Subject, Scopes: c.Scopes}, nil
}

var _ middleware.AuthPort = (*ScopePort)(nil)
