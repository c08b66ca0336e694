package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"poshub/internal/platform/config"
)

type pingPG struct {
	fakeQuerier
	err    error
	closed bool
}

func (p *pingPG) Tx(ctx context.Context, fn func(RowQuerier) error) error { return fn(p) }
func (p *pingPG) Ping(context.Context) error                               { return p.err }
func (p *pingPG) Close() error                                             { p.closed = true; return nil }

func TestOpenNothingEnabled(t *testing.T) {
	s, err := Open(context.Background(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	if s.PG != nil || s.CH != nil || s.Redis != nil {
		t.Fatalf("expected no backends, got %+v", s)
	}
	if err := s.Guard(context.Background()); err != nil {
		t.Fatalf("empty guard: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestGuardAndClose(t *testing.T) {
	p := &pingPG{err: errors.New("down")}
	s := &Store{PG: p}
	if err := s.Guard(context.Background()); err == nil {
		t.Fatal("guard should surface pg ping error")
	}
	_ = s.Close(context.Background())
	if !p.closed {
		t.Fatal("pg not closed")
	}

	var nilStore *Store
	if err := nilStore.Guard(context.Background()); err == nil {
		t.Fatal("nil store guard should fail")
	}
}

func TestFromConfig(t *testing.T) {
	t.Setenv("SERVICE_PGSQL_DBURL", "postgres://u:p@db/poshub")
	t.Setenv("SERVICE_PGSQL_MAX_CONNS", "4")
	t.Setenv("SERVICE_REDIS_ADDR", "redis:6379")
	t.Setenv("SERVICE_REDIS_DB", "2")

	c := FromConfig(config.New(), "processor")
	if !c.PG.Enabled || c.PG.MaxConns != 4 || c.PG.PingTimeout != 3*time.Second {
		t.Fatalf("pg = %+v", c.PG)
	}
	if c.CH.Enabled {
		t.Fatal("clickhouse should be disabled without a dsn")
	}
	if !c.RDS.Enabled || c.RDS.DB != 2 {
		t.Fatalf("redis = %+v", c.RDS)
	}
}

func TestRetry(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 3, func() error {
		calls++
		if calls < 2 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := retry(ctx, 5, func() error { return errors.New("down") }); !errors.Is(err, context.Canceled) {
		t.Fatalf("want canceled, got %v", err)
	}
}
