package token

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// ErrUnknownKey is returned when no key matches the token's kid
var ErrUnknownKey = errors.New("token: unknown key id")

// KeySource resolves a verification key by kid. An empty kid asks for the default key
type KeySource interface {
	Key(ctx context.Context, kid string) (any, error)
}

// StaticKeys is a fixed kid to key map; the "" entry is the default key
type StaticKeys map[string]any

// Key returns the key for kid, falling back to the default key
func (s StaticKeys) Key(_ context.Context, kid string) (any, error) {
	if k, ok := s[kid]; ok {
		return k, nil
	}
	if k, ok := s[""]; ok {
		return k, nil
	}
	return nil, ErrUnknownKey
}

// StaticFromPEM parses an RSA or EC public key into a single default key
func StaticFromPEM(pemText string) (StaticKeys, error) {
	if k, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemText)); err == nil {
		return StaticKeys{"": k}, nil
	}
	k, err := jwt.ParseECPublicKeyFromPEM([]byte(pemText))
	if err != nil {
		return nil, errors.New("token: public key is neither RSA nor EC PEM")
	}
	return StaticKeys{"": k}, nil
}

// StaticFromSecret wraps an HMAC secret as the default key
func StaticFromSecret(secret string) StaticKeys { return StaticKeys{"": []byte(secret)} }

// KeyLoader fetches the full current key set
type KeyLoader interface {
	Load(ctx context.Context) (map[string]any, error)
}

// KeyLoaderFunc adapts a function to KeyLoader
type KeyLoaderFunc func(ctx context.Context) (map[string]any, error)

// Load calls f
func (f KeyLoaderFunc) Load(ctx context.Context) (map[string]any, error) { return f(ctx) }

// unknown kids may force a reload at most this often
const rotationCooldown = 10 * time.Second

// CachedKeys is a KeySource over a KeyLoader with an explicit refresh policy:
// keys are reloaded after TTL with one load in flight, and when a reload fails the
// previous set keeps serving until TTL+MaxStale has passed
type CachedKeys struct {
	loader   KeyLoader
	ttl      time.Duration
	maxStale time.Duration
	now      func() time.Time

	sf       singleflight.Group
	mu       sync.RWMutex
	keys     map[string]any
	loadedAt time.Time
}

// CacheOption configures CachedKeys
type CacheOption func(*CachedKeys)

// WithClock overrides time.Now
func WithClock(now func() time.Time) CacheOption {
	return func(c *CachedKeys) { c.now = now }
}

// NewCachedKeys builds a cache around loader
func NewCachedKeys(loader KeyLoader, ttl, maxStale time.Duration, opts ...CacheOption) *CachedKeys {
	c := &CachedKeys{loader: loader, ttl: ttl, maxStale: maxStale, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Key resolves kid, reloading the set when it is older than TTL or the kid is unknown
func (c *CachedKeys) Key(ctx context.Context, kid string) (any, error) {
	c.mu.RLock()
	keys, loadedAt := c.keys, c.loadedAt
	c.mu.RUnlock()

	now := c.now()
	age := now.Sub(loadedAt)
	k, found := lookup(keys, kid)
	fresh := keys != nil && age < c.ttl

	if fresh && found {
		return k, nil
	}
	if fresh && !found && age < rotationCooldown {
		return nil, ErrUnknownKey
	}

	reloaded, err := c.reload(ctx)
	if err != nil {
		if found && age < c.ttl+c.maxStale {
			return k, nil
		}
		return nil, err
	}
	if k, ok := lookup(reloaded, kid); ok {
		return k, nil
	}
	return nil, ErrUnknownKey
}

func (c *CachedKeys) reload(ctx context.Context) (map[string]any, error) {
	ch := c.sf.DoChan("keys", func() (any, error) {
		// detached so one cancelled caller does not fail the shared load
		keys, err := c.loader.Load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.keys, c.loadedAt = keys, c.now()
		c.mu.Unlock()
		return keys, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]any), nil
	}
}

func lookup(keys map[string]any, kid string) (any, bool) {
	if keys == nil {
		return nil, false
	}
	if k, ok := keys[kid]; ok {
		return k, true
	}
	// a set with exactly one key serves kid-less tokens
	if kid == "" && len(keys) == 1 {
		for _, k := range keys {
			return k, true
		}
	}
	return nil, false
}
