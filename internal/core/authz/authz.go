// Package authz is the authorization gate: one decision function parameterized
// by the required scope. It is fail-closed; every validator failure, including a
// panic, becomes Deny(Unauthenticated) and never propagates to the caller
package authz

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"poshub/internal/core/token"
	perr "poshub/internal/platform/errors"
	"poshub/internal/platform/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Effect is the outcome of a check
type Effect uint8

const (
	// Deny is the zero value so an uninitialized Decision denies
	Deny Effect = iota
	Allow
)

func (e Effect) String() string {
	if e == Allow {
		return "allow"
	}
	return "deny"
}

// Reason distinguishes the two deny outcomes
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonUnauthenticated
	ReasonInsufficientScope
)

func (r Reason) String() string {
	switch r {
	case ReasonUnauthenticated:
		return "unauthenticated"
	case ReasonInsufficientScope:
		return "insufficient_scope"
	default:
		return "none"
	}
}

// Well-known scopes
const (
	ScopeOrdersRead   = "orders:read"
	ScopeOrdersWrite  = "orders:write"
	ScopeDemoRead     = "demo:read"
	ScopeQueueConsume = "queue:consume"
)

// ScopeInfo names a scope and what it grants
type ScopeInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var catalogue = []ScopeInfo{
	{ScopeOrdersRead, "read orders"},
	{ScopeOrdersWrite, "publish orders"},
	{ScopeDemoRead, "access demo routes"},
	{ScopeQueueConsume, "deliver queue batches to the processor"},
}

// Scopes returns the scope catalogue
func Scopes() []ScopeInfo { return slices.Clone(catalogue) }

// KnownScope reports whether s is in the catalogue
func KnownScope(s string) bool {
	return slices.ContainsFunc(catalogue, func(i ScopeInfo) bool { return i.Name == s })
}

// Caller is the identity forwarded past the gate
type Caller struct {
	Subject string
	Scopes  []string
}

// Decision is produced once per check and never cached
type Decision struct {
	Effect    Effect
	Reason    Reason
	Principal string
	Resource  string
	Context   map[string]string

	caller Caller
}

// Allowed reports whether the decision permits the operation
func (d Decision) Allowed() bool { return d.Effect == Allow }

// Caller returns the forwarded identity; zero on deny
func (d Decision) Caller() Caller { return d.caller }

// Err maps a deny to its caller-visible error: 401 for Unauthenticated, 403 for
// InsufficientScope. nil on allow
func (d Decision) Err() error {
	if d.Effect == Allow {
		return nil
	}
	if d.Reason == ReasonInsufficientScope {
		return perr.Forbiddenf("insufficient scope")
	}
	return perr.Unauthorizedf("unauthorized")
}

// Validator is the slice of token.Validator the gate needs
type Validator interface {
	Validate(ctx context.Context, raw string, now time.Time) (token.Claims, error)
}

// Gate enforces a required scope per protected operation
type Gate struct {
	v   Validator
	now func() time.Time
}

// Option configures Gate
type Option func(*Gate)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option { return func(g *Gate) { g.now = now } }

// NewGate wraps v
func NewGate(v Validator, opts ...Option) *Gate {
	g := &Gate{v: v, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

// unauthenticatedPrincipal names the principal on decisions without a subject
const unauthenticatedPrincipal = "unauthorized"

// Authorize validates raw and checks requiredScope against its scopes
func (g *Gate) Authorize(ctx context.Context, raw, requiredScope, resource string) Decision {
	d := g.decide(ctx, raw, requiredScope, resource)
	audit(ctx, d, requiredScope)
	return d
}

func (g *Gate) decide(ctx context.Context, raw, requiredScope, resource string) Decision {
	if g == nil || g.v == nil || strings.TrimSpace(raw) == "" {
		return deny(ReasonUnauthenticated, unauthenticatedPrincipal, resource)
	}

	claims, err := g.validate(ctx, raw)
	if err != nil {
		logger.C(ctx).Debug().Str("component", "authz").Str("cause", perr.WireFrom(err).Message).Msg("token rejected")
		return deny(ReasonUnauthenticated, unauthenticatedPrincipal, resource)
	}

	if requiredScope == "" || !claims.HasScope(requiredScope) {
		return deny(ReasonInsufficientScope, claims.Subject, resource)
	}

	scopes := append([]string(nil), claims.Scopes...)
	return Decision{
		Effect:    Allow,
		Reason:    ReasonNone,
		Principal: claims.Subject,
		Resource:  resource,
		Context: map[string]string{
			"subject": claims.Subject,
			"scopes":  strings.Join(scopes, ","),
		},
		caller: Caller{Subject: claims.Subject, Scopes: scopes},
	}
}

// validate converts a validator panic into an error
func (g *Gate) validate(ctx context.Context, raw string) (c token.Claims, err error) {
	defer func() {
		if p := recover(); p != nil {
			c, err = token.Claims{}, perr.PanicErrf("validator panic: %T", p)
		}
	}()
	return g.v.Validate(ctx, raw, g.now())
}

func deny(r Reason, principal, resource string) Decision {
	return Decision{Effect: Deny, Reason: r, Principal: principal, Resource: resource, Context: map[string]string{}}
}

var decisionsTotal = sync.OnceValue(func() *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "poshub",
		Name:      "authz_decisions_total",
		Help:      "Authorization decisions by effect and reason.",
	}, []string{"effect", "reason"})
})

// audit logs subject, resource and outcome; never the credential
func audit(ctx context.Context, d Decision, requiredScope string) {
	decisionsTotal().WithLabelValues(d.Effect.String(), d.Reason.String()).Inc()

	ev := logger.C(ctx).Info()
	if d.Effect == Deny {
		ev = logger.C(ctx).Warn()
	}
	ev.Str("component", "authz").
		Str("principal", d.Principal).
		Str("resource", d.Resource).
		Str("effect", d.Effect.String()).
		Str("reason", d.Reason.String()).
		Str("required_scope", requiredScope).
		Msg("authorization decision")
}

// BearerToken extracts the credential from an Authorization header value.
// The scheme is matched case-insensitively; anything else yields ""
func BearerToken(header string) string {
	scheme, cred, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(cred)
}

// String renders a decision for debugging without any credential material
func (d Decision) String() string {
	return fmt.Sprintf("%s(%s) principal=%s resource=%s", d.Effect, d.Reason, d.Principal, d.Resource)
}
