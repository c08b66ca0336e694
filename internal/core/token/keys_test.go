package token

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"poshub/internal/platform/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	calls atomic.Int32
	mu    sync.Mutex
	keys  map[string]any
	err   error
	gate  chan struct{}
}

func (l *countingLoader) Load(context.Context) (map[string]any, error) {
	l.calls.Add(1)
	if l.gate != nil {
		<-l.gate
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.keys, l.err
}

func (l *countingLoader) set(keys map[string]any, err error) {
	l.mu.Lock()
	l.keys, l.err = keys, err
	l.mu.Unlock()
}

func TestCachedKeysRefreshAfterTTL(t *testing.T) {
	clk := testkit.NewClock(t0)
	l := &countingLoader{keys: map[string]any{"k1": "v1"}}
	c := NewCachedKeys(l, time.Minute, time.Hour, WithClock(clk.Now))
	ctx := context.Background()

	k, err := c.Key(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", k)
	_, _ = c.Key(ctx, "k1")
	assert.EqualValues(t, 1, l.calls.Load())

	clk.Advance(time.Minute)
	l.set(map[string]any{"k1": "v2"}, nil)
	k, err = c.Key(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v2", k)
	assert.EqualValues(t, 2, l.calls.Load())
}

func TestCachedKeysServesStaleWithinBound(t *testing.T) {
	clk := testkit.NewClock(t0)
	l := &countingLoader{keys: map[string]any{"k1": "v1"}}
	c := NewCachedKeys(l, time.Minute, 10*time.Minute, WithClock(clk.Now))
	ctx := context.Background()
	_, err := c.Key(ctx, "k1")
	require.NoError(t, err)

	l.set(nil, errors.New("jwks down"))
	clk.Advance(5 * time.Minute)
	k, err := c.Key(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", k)

	clk.Advance(6 * time.Minute)
	_, err = c.Key(ctx, "k1")
	assert.EqualError(t, err, "jwks down")
}

func TestCachedKeysUnknownKidCooldown(t *testing.T) {
	clk := testkit.NewClock(t0)
	l := &countingLoader{keys: map[string]any{"k1": "v1"}}
	c := NewCachedKeys(l, time.Hour, time.Hour, WithClock(clk.Now))
	ctx := context.Background()
	_, _ = c.Key(ctx, "k1")

	_, err := c.Key(ctx, "k2")
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.EqualValues(t, 1, l.calls.Load())

	clk.Advance(rotationCooldown)
	l.set(map[string]any{"k1": "v1", "k2": "v2"}, nil)
	k, err := c.Key(ctx, "k2")
	require.NoError(t, err)
	assert.Equal(t, "v2", k)
	assert.EqualValues(t, 2, l.calls.Load())
}

func TestCachedKeysSingleLoadInFlight(t *testing.T) {
	l := &countingLoader{keys: map[string]any{"": "v"}, gate: make(chan struct{})}
	c := NewCachedKeys(l, time.Minute, time.Hour)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			k, err := c.Key(context.Background(), "")
			assert.NoError(t, err)
			assert.Equal(t, "v", k)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(l.gate)
	wg.Wait()
	assert.EqualValues(t, 1, l.calls.Load())
}

func TestCachedKeysCallerCancel(t *testing.T) {
	l := &countingLoader{keys: map[string]any{"": "v"}, gate: make(chan struct{})}
	defer close(l.gate)
	c := NewCachedKeys(l, time.Minute, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.Key(ctx, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
