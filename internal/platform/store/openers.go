package store

import (
	"context"
	"time"

	perr "poshub/internal/platform/errors"
	chx "poshub/internal/platform/store/ch"
	"poshub/internal/platform/store/pg"

	"github.com/redis/go-redis/v9"
)

// openPG opens pg and wraps it with the sql adapter once the pool answers a ping
func openPG(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(s.Log)
	}

	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		MaxConns: cfg.PG.MaxConns,
		SlowMs:   cfg.PG.SlowQueryMs,
		AppName:  cfg.AppName,
	}, tracer, nil)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "postgres config")
	}

	attempts := cfg.PG.ConnectRetries
	if attempts <= 0 {
		attempts = 20
	}
	pingTimeout := cfg.PG.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 3 * time.Second
	}

	err = retry(ctx, attempts, func() error {
		toCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		return p.Pool.Ping(toCtx)
	})
	if err != nil {
		p.Close()
		return nil, perr.FromPostgres(err, "postgres unreachable")
	}
	return newPGAdapter(p), nil
}

func openCH(ctx context.Context, cfg Config) (Clickhouse, error) {
	c, err := chx.Open(ctx, chx.Config{URL: cfg.CH.URL, Role: cfg.AppName})
	if err != nil {
		return nil, perr.FromContext(err, perr.ErrorCodeUnavailable, "clickhouse unreachable")
	}
	return newCHAdapter(c), nil
}

func openRedis(ctx context.Context, cfg Config) (*redis.Client, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:       cfg.RDS.Addr,
		DB:         cfg.RDS.DB,
		ClientName: cfg.AppName,
	})
	if err := retry(ctx, 5, func() error { return rc.Ping(ctx).Err() }); err != nil {
		_ = rc.Close()
		return nil, perr.FromContext(err, perr.ErrorCodeUnavailable, "redis unreachable")
	}
	return rc, nil
}

// retry calls fn up to attempts times with capped exponential backoff
func retry(ctx context.Context, attempts int, fn func() error) error {
	const (
		backoffStart   = 150 * time.Millisecond
		backoffCeiling = 2 * time.Second
	)
	var lastErr error
	backoff := backoffStart
	for i := 0; i < attempts; i++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, backoffCeiling)
	}
	return lastErr
}
