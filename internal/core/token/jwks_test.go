package token

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func b64(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func jwksServer(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestJWKSLoader(t *testing.T) {
	ec, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	pub := testKey().PublicKey

	srv := jwksServer(t, http.StatusOK, map[string]any{"keys": []map[string]string{
		{"kid": "rsa-1", "kty": "RSA", "use": "sig", "n": b64(pub.N.Bytes()), "e": b64(big.NewInt(int64(pub.E)).Bytes())},
		{"kid": "ec-1", "kty": "EC", "crv": "P-256", "x": b64(ec.X.Bytes()), "y": b64(ec.Y.Bytes())},
		{"kid": "enc-1", "kty": "RSA", "use": "enc", "n": "AQAB", "e": "AQAB"},
		{"kid": "hmac", "kty": "oct"},
	}})

	keys, err := NewJWKSLoader(srv.URL, time.Second).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, pub.N, keys["rsa-1"].(*rsa.PublicKey).N)
	assert.IsType(t, &ecdsa.PublicKey{}, keys["ec-1"])

	// end to end through the cache and validator
	v := newValidator(t, NewCachedKeys(NewJWKSLoader(srv.URL, time.Second), time.Minute, time.Hour))
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, baseClaims())
	tok.Header["kid"] = "rsa-1"
	raw, err := tok.SignedString(testKey())
	require.NoError(t, err)
	_, err = v.Validate(context.Background(), raw, t0)
	require.NoError(t, err)
}

func TestJWKSLoaderFailures(t *testing.T) {
	srv := jwksServer(t, http.StatusServiceUnavailable, map[string]any{})
	_, err := NewJWKSLoader(srv.URL, time.Second).Load(context.Background())
	assert.ErrorContains(t, err, "status 503")

	empty := jwksServer(t, http.StatusOK, map[string]any{"keys": []any{}})
	_, err = NewJWKSLoader(empty.URL, time.Second).Load(context.Background())
	assert.ErrorContains(t, err, "no usable signing keys")

	badCurve := jwksServer(t, http.StatusOK, map[string]any{"keys": []map[string]string{{"kid": "x", "kty": "EC", "crv": "P-192"}}})
	_, err = NewJWKSLoader(badCurve.URL, time.Second).Load(context.Background())
	assert.ErrorContains(t, err, "unsupported curve")
}
