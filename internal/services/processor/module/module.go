// Package module wires the batch consumer, its ledger and its sink
package module

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"poshub/internal/modkit"
	"poshub/internal/modkit/httpkit"
	"poshub/internal/platform/logger"
	"poshub/internal/platform/queue"

	"poshub/internal/services/processor/domain"
	"poshub/internal/services/processor/fulfill"
	phttp "poshub/internal/services/processor/http"
	"poshub/internal/services/processor/repo"
	"poshub/internal/services/processor/service"
)

// Module defines the processor module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	opts   Options
	ledger domain.Ledger
	sink   domain.Fulfiller
	proc   *service.Processor
	worker *service.Worker
}

// Ports exposes the processor and, when a queue is wired, its worker
type Ports struct {
	Processor domain.ProcessorPort
	Worker    *service.Worker
}

// New constructs the module. Env config is loaded first, then non-zero overrides apply
func New(deps modkit.Deps, overrides Options, opts ...modkit.Option) (*Module, error) {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("processor"),
		modkit.WithPrefix("/internal"),
	}, opts...)...)

	o := FromConfig(deps.Cfg).merge(overrides)
	visibility := queue.FromConfig(deps.Cfg).Visibility
	o.ClaimTTL = boundClaimTTL(o.ClaimTTL, visibility, o.MessageTimeout)

	ledger, err := buildLedger(deps, o)
	if err != nil {
		return nil, err
	}

	var sink domain.Fulfiller = fulfill.Log{}
	if deps.CH != nil {
		sink = fulfill.NewClickHouse(deps.CH)
	}

	proc := service.New(ledger, sink, service.Options{
		MaxConcurrency: o.MaxConcurrency,
		MessageTimeout: o.MessageTimeout,
	})

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		opts:   o,
		ledger: ledger,
		sink:   sink,
		proc:   proc,
	}
	if deps.Queue != nil {
		m.worker = service.NewWorker(deps.Queue, proc, service.WorkerOptions{
			BatchSize:    o.BatchSize,
			Visibility:   visibility,
			PollInterval: o.PollInterval,
		})
	}
	return m, nil
}

// boundClaimTTL keeps a stranded claim (crash mid-fulfill, Complete lost) from outliving the
// lease: the next delivery of the order must be able to take it over before the queue runs out
// of receives. It never drops below one message timeout so a live attempt keeps its claim
func boundClaimTTL(ttl, visibility, messageTimeout time.Duration) time.Duration {
	if visibility > 0 && ttl > visibility {
		logger.Named("processor").Warn().
			Dur("claim_ttl", ttl).
			Dur("visibility", visibility).
			Msg("claim ttl capped at queue visibility timeout")
		ttl = visibility
	}
	if ttl < messageTimeout {
		ttl = messageTimeout
	}
	return ttl
}

func buildLedger(deps modkit.Deps, o Options) (domain.Ledger, error) {
	kind := o.Ledger
	if kind == LedgerAuto || kind == "" {
		switch {
		case deps.PG != nil:
			kind = LedgerPostgres
		case deps.Redis != nil:
			kind = LedgerRedis
		default:
			kind = LedgerMemory
		}
	}

	switch kind {
	case LedgerPostgres:
		if deps.PG == nil {
			return nil, fmt.Errorf("processor: ledger %q needs SERVICE_PGSQL_DBURL", kind)
		}
		return repo.NewPG(deps.PG, o.ClaimTTL), nil
	case LedgerRedis:
		if deps.Redis == nil {
			return nil, fmt.Errorf("processor: ledger %q needs SERVICE_REDIS_ADDR", kind)
		}
		return repo.NewRedis(deps.Redis, o.RedisPrefix, o.ClaimTTL, o.DoneTTL), nil
	case LedgerMemory:
		logger.Named("processor").Warn().Msg("memory ledger: idempotency holds for this process only")
		return repo.NewMemory(o.ClaimTTL, nil), nil
	}
	return nil, fmt.Errorf("processor: unknown ledger %q", kind)
}

// EnsureSchema creates the ledger table and the fulfillment table when those backends are used
func (m *Module) EnsureSchema(ctx context.Context) error {
	if l, ok := m.ledger.(*repo.PG); ok {
		if err := l.EnsureSchema(ctx); err != nil {
			return err
		}
	}
	if s, ok := m.sink.(*fulfill.ClickHouse); ok {
		if err := s.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("processor: clickhouse schema: %w", err)
		}
	}
	return nil
}

// Run runs the queue worker until ctx ends
func (m *Module) Run(ctx context.Context) error {
	if m.worker == nil {
		return fmt.Errorf("processor: no queue configured")
	}
	return m.worker.Run(ctx)
}

// MountRoutes mounts the push endpoint
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		phttp.Register(rr, m.deps.Gate, m.proc)
	})
}

// Ports returns the module ports
func (m *Module) Ports() any { return Ports{Processor: m.proc, Worker: m.worker} }

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Options returns the effective options
func (m *Module) Options() Options { return m.opts }
