package authz

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"testing"
	"time"

	"poshub/internal/core/token"
	perr "poshub/internal/platform/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValidator func(raw string) (token.Claims, error)

func (f fakeValidator) Validate(_ context.Context, raw string, _ time.Time) (token.Claims, error) {
	return f(raw)
}

func claimsFor(scopes ...string) fakeValidator {
	return func(string) (token.Claims, error) {
		return token.Claims{Subject: "cashier-1", Scopes: scopes}, nil
	}
}

func TestAuthorizeAllow(t *testing.T) {
	g := NewGate(claimsFor(ScopeOrdersRead, ScopeOrdersWrite))
	d := g.Authorize(context.Background(), "tok", ScopeOrdersWrite, "POST /api/v1/orders")

	require.True(t, d.Allowed())
	assert.NoError(t, d.Err())
	assert.Equal(t, "cashier-1", d.Principal)
	assert.Equal(t, map[string]string{"subject": "cashier-1", "scopes": "orders:read,orders:write"}, d.Context)
	assert.Equal(t, Caller{Subject: "cashier-1", Scopes: []string{ScopeOrdersRead, ScopeOrdersWrite}}, d.Caller())
}

func TestAuthorizeInsufficientScope(t *testing.T) {
	g := NewGate(claimsFor(ScopeOrdersRead))
	d := g.Authorize(context.Background(), "tok", ScopeOrdersWrite, "POST /api/v1/orders")

	assert.Equal(t, Deny, d.Effect)
	assert.Equal(t, ReasonInsufficientScope, d.Reason)
	assert.Equal(t, "cashier-1", d.Principal)
	assert.Equal(t, http.StatusForbidden, perr.HTTPStatus(d.Err()))
	assert.Empty(t, d.Caller().Subject)
}

func TestAuthorizeEmptyRequiredScopeDenies(t *testing.T) {
	d := NewGate(claimsFor(ScopeOrdersRead)).Authorize(context.Background(), "tok", "", "r")
	assert.Equal(t, ReasonInsufficientScope, d.Reason)
}

func TestAuthorizeUnauthenticated(t *testing.T) {
	cases := []struct {
		name string
		gate *Gate
		raw  string
	}{
		{"empty token", NewGate(claimsFor(ScopeOrdersWrite)), ""},
		{"nil gate", nil, "tok"},
		{"nil validator", NewGate(nil), "tok"},
		{"expired", NewGate(fakeValidator(func(string) (token.Claims, error) { return token.Claims{}, token.ErrExpired })), "tok"},
		{"key unavailable", NewGate(fakeValidator(func(string) (token.Claims, error) { return token.Claims{}, token.ErrKeyUnavailable })), "tok"},
		{"validator panic", NewGate(fakeValidator(func(string) (token.Claims, error) { panic("boom") })), "tok"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var d Decision
			require.NotPanics(t, func() { d = tc.gate.Authorize(context.Background(), tc.raw, ScopeOrdersWrite, "r") })
			assert.Equal(t, Deny, d.Effect)
			assert.Equal(t, ReasonUnauthenticated, d.Reason)
			assert.Equal(t, "unauthorized", d.Principal)
			assert.Equal(t, http.StatusUnauthorized, perr.HTTPStatus(d.Err()))
		})
	}
}

func TestZeroDecisionDenies(t *testing.T) {
	var d Decision
	assert.False(t, d.Allowed())
	assert.Error(t, d.Err())
}

// Scenario checks against a real validator
func TestGateWithRealTokens(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	cfg := token.Config{Algorithm: "RS256", Issuer: "https://auth.test", Audience: "poshub-api"}
	v, err := token.NewValidator(cfg, token.StaticKeys{"": &key.PublicKey})
	require.NoError(t, err)
	g := NewGate(v, WithClock(func() time.Time { return now }))

	iss := token.Issuer{Algorithm: "RS256", Key: key, Issuer: cfg.Issuer, Audience: cfg.Audience, TTL: time.Minute}
	readOnly, err := iss.Mint("cashier-2", []string{ScopeOrdersRead}, now)
	require.NoError(t, err)
	writer, err := iss.Mint("cashier-3", []string{ScopeOrdersWrite}, now)
	require.NoError(t, err)
	stale, err := iss.Mint("cashier-4", []string{ScopeOrdersWrite}, now.Add(-time.Hour))
	require.NoError(t, err)

	assert.True(t, g.Authorize(context.Background(), writer, ScopeOrdersWrite, "r").Allowed())
	assert.Equal(t, ReasonInsufficientScope, g.Authorize(context.Background(), readOnly, ScopeOrdersWrite, "r").Reason)
	assert.Equal(t, ReasonUnauthenticated, g.Authorize(context.Background(), stale, ScopeOrdersWrite, "r").Reason)
	assert.Equal(t, ReasonUnauthenticated, g.Authorize(context.Background(), writer+"x", ScopeOrdersWrite, "r").Reason)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc.def", BearerToken("Bearer abc.def"))
	assert.Equal(t, "abc.def", BearerToken("bearer   abc.def "))
	assert.Empty(t, BearerToken("Basic dXNlcjpwYXNz"))
	assert.Empty(t, BearerToken("Bearer"))
	assert.Empty(t, BearerToken(""))
}

func TestKnownScope(t *testing.T) {
	assert.True(t, KnownScope(ScopeOrdersWrite))
	assert.True(t, KnownScope(ScopeQueueConsume))
	assert.False(t, KnownScope("orders:*"))
	assert.False(t, KnownScope(""))
}

func TestScopesCatalogue(t *testing.T) {
	got := Scopes()
	require.Len(t, got, 4)
	for _, s := range got {
		assert.True(t, KnownScope(s.Name))
		assert.NotEmpty(t, s.Description)
	}
	got[0].Name = "mutated"
	assert.Equal(t, ScopeOrdersRead, Scopes()[0].Name, "callers get a copy")
}
