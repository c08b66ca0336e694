// Package bootstrap opens the process-wide backends shared by the binaries:
// the store, the order queue and the token gate
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"poshub/internal/core/authz"
	"poshub/internal/core/token"
	"poshub/internal/core/version"
	"poshub/internal/modkit"
	"poshub/internal/modkit/repokit"
	"poshub/internal/platform/config"
	"poshub/internal/platform/logger"
	"poshub/internal/platform/queue"
	"poshub/internal/platform/store"
)

// Queue backends
const (
	QueueAuto     = "auto"
	QueuePostgres = "postgres"
	QueueMemory   = "memory"
)

// Env is everything a binary opened at startup. Close releases it
type Env struct {
	Cfg   config.Conf
	Store *store.Store
	Queue queue.Queue
	Deps  modkit.Deps
}

// Open initializes logging, opens and guards the store, then builds the queue.
// The gate is left nil; binaries that serve protected routes call WithGate
func Open(ctx context.Context, service string) (*Env, error) {
	lo := logger.FromEnv()
	if lo.Service == "" {
		lo.Service = service
	}
	logger.Init(lo)
	version.SetService(service)

	root := config.New()
	st, err := store.Open(ctx, store.FromConfig(root, service), store.WithLogger(*logger.Get()))
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	repokit.MustGuard(ctx, st)

	q, err := OpenQueue(ctx, root, st)
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}

	deps := modkit.FromStore(root, st)
	deps.Queue = q
	return &Env{Cfg: root, Store: st, Queue: q, Deps: deps}, nil
}

// OpenQueue picks the queue backend from QUEUE_BACKEND. auto uses Postgres when it is configured
func OpenQueue(ctx context.Context, cfg config.Conf, st *store.Store) (queue.Queue, error) {
	opt := queue.FromConfig(cfg)
	qc := cfg.Prefix("QUEUE_")
	kind := qc.MayEnum("BACKEND", QueueAuto, QueueAuto, QueuePostgres, QueueMemory)

	var pg store.TxRunner
	if st != nil {
		pg = st.PG
	}
	if kind == QueueAuto {
		kind = QueueMemory
		if pg != nil {
			kind = QueuePostgres
		}
	}

	switch kind {
	case QueuePostgres:
		if pg == nil {
			return nil, fmt.Errorf("queue: backend %q needs SERVICE_PGSQL_DBURL", kind)
		}
		// the lease transaction must not outlive a poll
		db := repokit.WithBeginHooks(pg,
			repokit.StatementTimeout(qc.MayDuration("STATEMENT_TIMEOUT", 5*time.Second)),
			repokit.LockTimeout(qc.MayDuration("LOCK_TIMEOUT", 2*time.Second)),
		)
		q := queue.NewPG(db, opt)
		if err := q.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return q, nil
	default:
		logger.Named("queue").Warn().Str("queue", opt.Name).Msg("memory queue: messages do not survive a restart or cross processes")
		return queue.NewMemory(opt), nil
	}
}

// WithGate builds the token validator from AUTH_* and installs the gate on Deps
func (e *Env) WithGate() error {
	v, err := token.FromConfig(e.Cfg).Validator()
	if err != nil {
		return err
	}
	e.Deps.Gate = authz.NewGate(v)
	return nil
}

// Close releases the store
func (e *Env) Close(ctx context.Context) {
	if e == nil {
		return
	}
	if err := e.Store.Close(ctx); err != nil {
		logger.Get().Error().Err(err).Msg("failed to close store")
	}
}
