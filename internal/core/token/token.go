// Package token validates and issues bearer credentials.
//
// The signing algorithm is pinned by Config and the token's own alg header is
// never trusted. Key material comes from an injected KeySource. Nothing in this
// package logs token or key material
package token

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	perr "poshub/internal/platform/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Rejection sentinels. Use errors.Is; every rejection carries an Unauthorized
// code except ErrKeyUnavailable, which is Unavailable because a retry may succeed
var (
	ErrMalformed      = perr.New(perr.ErrorCodeUnauthorized, "malformed token")
	ErrKeyUnavailable = perr.New(perr.ErrorCodeUnavailable, "verification key unavailable")
	ErrBadSignature   = perr.New(perr.ErrorCodeUnauthorized, "bad token signature")
	ErrExpired        = perr.New(perr.ErrorCodeUnauthorized, "token expired")
	ErrClaimMismatch  = perr.New(perr.ErrorCodeUnauthorized, "token claims rejected")
)

// Claims is the validated, decoded view of a credential
type Claims struct {
	Subject   string
	Username  string
	Scopes    []string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
}

// HasScope reports whether scope was granted
func (c Claims) HasScope(scope string) bool { return slices.Contains(c.Scopes, scope) }

// Config pins what a valid token must look like
type Config struct {
	Algorithm  string
	Issuer     string
	Audience   string
	Leeway     time.Duration
	KeyTimeout time.Duration
}

// Validator checks signature, issuer, audience and expiry
type Validator struct {
	cfg    Config
	keys   KeySource
	parser *jwt.Parser
}

// NewValidator fails when cfg cannot produce a fail-closed validator
func NewValidator(cfg Config, keys KeySource) (*Validator, error) {
	if keys == nil {
		return nil, perr.InvalidArgf("token: nil key source")
	}
	if jwt.GetSigningMethod(cfg.Algorithm) == nil || cfg.Algorithm == "none" {
		return nil, perr.InvalidArgf("token: unsupported algorithm %q", cfg.Algorithm)
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, perr.InvalidArgf("token: issuer and audience are required")
	}
	if cfg.KeyTimeout <= 0 {
		cfg.KeyTimeout = 2 * time.Second
	}
	return &Validator{
		cfg:  cfg,
		keys: keys,
		// registered-claim checks run below against the caller's clock
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{cfg.Algorithm}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// Validate verifies raw at instant now and returns its claims
func (v *Validator) Validate(ctx context.Context, raw string, now time.Time) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, ErrMalformed
	}

	var wc wireClaims
	_, err := v.parser.ParseWithClaims(raw, &wc, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		kctx, cancel := context.WithTimeout(ctx, v.cfg.KeyTimeout)
		defer cancel()
		k, err := v.keys.Key(kctx, kid)
		if err != nil {
			return nil, reject(ErrKeyUnavailable, err)
		}
		return k, nil
	})
	if err != nil {
		return Claims{}, classify(err)
	}

	if wc.ExpiresAt == nil {
		return Claims{}, reject(ErrClaimMismatch, errors.New("missing exp"))
	}
	if !now.Before(wc.ExpiresAt.Add(v.cfg.Leeway)) {
		return Claims{}, ErrExpired
	}
	if wc.NotBefore != nil && now.Add(v.cfg.Leeway).Before(wc.NotBefore.Time) {
		return Claims{}, reject(ErrClaimMismatch, errors.New("not yet valid"))
	}
	if wc.Subject == "" {
		return Claims{}, reject(ErrClaimMismatch, errors.New("missing sub"))
	}
	if wc.Issuer != v.cfg.Issuer {
		return Claims{}, reject(ErrClaimMismatch, errors.New("issuer"))
	}
	if !slices.Contains([]string(wc.Audience), v.cfg.Audience) {
		return Claims{}, reject(ErrClaimMismatch, errors.New("audience"))
	}

	return Claims{
		Subject:   wc.Subject,
		Username:  wc.Username,
		Scopes:    mergeScopes(wc.Scopes, strings.Fields(wc.Scope)),
		Issuer:    wc.Issuer,
		Audience:  wc.Audience,
		ExpiresAt: wc.ExpiresAt.Time,
	}, nil
}

// classify maps parser failures onto the rejection sentinels
func classify(err error) error {
	switch {
	case errors.Is(err, ErrKeyUnavailable):
		return reject(ErrKeyUnavailable, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrBadSignature
	default:
		return ErrMalformed
	}
}

// rejection pairs a sentinel with its cause; the wire message is the sentinel's
type rejection struct {
	kind  error
	cause error
}

func reject(kind, cause error) error { return &rejection{kind: kind, cause: cause} }

func (r *rejection) Error() string   { return r.kind.Error() + ": " + r.cause.Error() }
func (r *rejection) Unwrap() []error { return []error{r.kind, r.cause} }

// scopeList accepts a JSON array or a space-separated string
type scopeList []string

func (s *scopeList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*s = list
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	*s = strings.Fields(str)
	return nil
}

type wireClaims struct {
	jwt.RegisteredClaims
	Scopes   scopeList `json:"scopes,omitempty"`
	Scope    string    `json:"scope,omitempty"`
	Username string    `json:"username,omitempty"`
}

func mergeScopes(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		for _, s := range l {
			if s = strings.TrimSpace(s); s != "" && !slices.Contains(out, s) {
				out = append(out, s)
			}
		}
	}
	return out
}
