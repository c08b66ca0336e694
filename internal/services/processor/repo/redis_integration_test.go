//go:build integration_redis

package repo

import (
	"context"
	"testing"
	"time"

	"poshub/internal/platform/testkit/containers"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisLedger_Integration(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: containers.Redis(t)})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())

	l := NewRedis(rdb, "test:", time.Second, time.Hour)
	ledgerContract(t, l, func() { time.Sleep(1100 * time.Millisecond) })
}
