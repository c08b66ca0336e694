package token

import (
	"strings"
	"time"

	"poshub/internal/platform/config"
	perr "poshub/internal/platform/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Options is the AUTH_* view. Secret fields are read with MaySecret and never logged
type Options struct {
	Config

	JWKSURL       string
	PublicKeyPEM  string
	PrivateKeyPEM string
	HMACSecret    string
	KeysTTL       time.Duration
	KeysMaxStale  time.Duration
	TokenTTL      time.Duration
}

// FromConfig reads AUTH_* keys
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("AUTH_")
	return Options{
		Config: Config{
			Algorithm:  c.MayEnum("ALGORITHM", "RS256", "RS256", "RS384", "RS512", "ES256", "ES384", "HS256"),
			Issuer:     c.MayString("ISSUER", "https://auth.poshub.internal"),
			Audience:   c.MayString("AUDIENCE", "poshub-api"),
			Leeway:     c.MayDuration("LEEWAY", 0),
			KeyTimeout: c.MayDuration("KEY_TIMEOUT", 2*time.Second),
		},
		JWKSURL:       c.MayString("JWKS_URL", ""),
		PublicKeyPEM:  c.MaySecret("PUBLIC_KEY_PEM", ""),
		PrivateKeyPEM: c.MaySecret("PRIVATE_KEY_PEM", ""),
		HMACSecret:    c.MaySecret("HMAC_SECRET", ""),
		KeysTTL:       c.MayDuration("KEYS_TTL", 5*time.Minute),
		KeysMaxStale:  c.MayDuration("KEYS_MAX_STALE", time.Hour),
		TokenTTL:      c.MayDuration("TOKEN_TTL", 30*time.Minute),
	}
}

// KeySource picks the verification keys for the pinned algorithm: an HMAC
// secret for HS*, otherwise a JWKS endpoint or a static PEM
func (o Options) KeySource() (KeySource, error) {
	if strings.HasPrefix(o.Algorithm, "HS") {
		if o.HMACSecret == "" {
			return nil, perr.InvalidArgf("token: AUTH_HMAC_SECRET is required for %s", o.Algorithm)
		}
		return StaticFromSecret(o.HMACSecret), nil
	}
	switch {
	case o.JWKSURL != "":
		return NewCachedKeys(NewJWKSLoader(o.JWKSURL, o.KeyTimeout), o.KeysTTL, o.KeysMaxStale), nil
	case o.PublicKeyPEM != "":
		return StaticFromPEM(o.PublicKeyPEM)
	default:
		return nil, perr.InvalidArgf("token: AUTH_JWKS_URL or AUTH_PUBLIC_KEY_PEM is required for %s", o.Algorithm)
	}
}

// Validator builds the validator described by o
func (o Options) Validator() (*Validator, error) {
	ks, err := o.KeySource()
	if err != nil {
		return nil, err
	}
	return NewValidator(o.Config, ks)
}

// Minter builds a minting Issuer from the private key or HMAC secret
func (o Options) Minter(keyID string) (Issuer, error) {
	iss := Issuer{
		Algorithm: o.Algorithm,
		KeyID:     keyID,
		Issuer:    o.Config.Issuer,
		Audience:  o.Audience,
		TTL:       o.TokenTTL,
	}
	switch {
	case strings.HasPrefix(o.Algorithm, "HS"):
		if o.HMACSecret == "" {
			return Issuer{}, perr.InvalidArgf("token: AUTH_HMAC_SECRET is required to mint %s", o.Algorithm)
		}
		iss.Key = []byte(o.HMACSecret)
	case o.PrivateKeyPEM == "":
		return Issuer{}, perr.InvalidArgf("token: AUTH_PRIVATE_KEY_PEM is required to mint %s", o.Algorithm)
	case strings.HasPrefix(o.Algorithm, "ES"):
		k, err := jwt.ParseECPrivateKeyFromPEM([]byte(o.PrivateKeyPEM))
		if err != nil {
			return Issuer{}, perr.InvalidArgf("token: private key is not EC PEM")
		}
		iss.Key = k
	default:
		k, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(o.PrivateKeyPEM))
		if err != nil {
			return Issuer{}, perr.InvalidArgf("token: private key is not RSA PEM")
		}
		iss.Key = k
	}
	return iss, nil
}
