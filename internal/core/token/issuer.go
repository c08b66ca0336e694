package token

import (
	"time"

	perr "poshub/internal/platform/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer mints tokens that Validator accepts. It backs the admin CLI and tests;
// the API never mints
type Issuer struct {
	Algorithm string
	Key       any // *rsa.PrivateKey, *ecdsa.PrivateKey or []byte
	KeyID     string
	Issuer    string
	Audience  string
	TTL       time.Duration
}

// Mint signs a token for subject with scopes, valid from now for TTL
func (i Issuer) Mint(subject string, scopes []string, now time.Time) (string, error) {
	method := jwt.GetSigningMethod(i.Algorithm)
	if method == nil || i.Algorithm == "none" {
		return "", perr.InvalidArgf("token: unsupported algorithm %q", i.Algorithm)
	}
	if subject == "" {
		return "", perr.InvalidArgf("token: subject is required")
	}
	ttl := i.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	wc := wireClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    i.Issuer,
			Audience:  jwt.ClaimStrings{i.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Scopes: scopes,
	}
	t := jwt.NewWithClaims(method, wc)
	if i.KeyID != "" {
		t.Header["kid"] = i.KeyID
	}
	s, err := t.SignedString(i.Key)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeInvalidArgument, "token: sign")
	}
	return s, nil
}
