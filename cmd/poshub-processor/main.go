// Command poshub-processor polls the order queue and fulfills each order exactly once
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"poshub/internal/bootstrap"
	"poshub/internal/modkit/module"
	"poshub/internal/platform/logger"
	"poshub/internal/platform/metrics"

	processormod "poshub/internal/services/processor/module"

	"golang.org/x/sync/errgroup"
)

const service = "poshub-processor"

func main() {
	// flags win over PROCESSOR_* env; zero means "use env or default"
	var (
		fBatch   = flag.Int("batch", 0, "messages leased per poll (1..10)")
		fConc    = flag.Int("concurrency", 0, "messages processed in parallel per batch")
		fTimeout = flag.Duration("message-timeout", 0, "per-message processing deadline")
		fPoll    = flag.Duration("poll", 0, "idle poll interval")
		fLedger  = flag.String("ledger", "", "idempotency ledger: auto, postgres, redis or memory")
		fMetrics = flag.String("metrics-addr", "", "listen address for /metrics and /health (empty disables)")
		fSchema  = flag.Bool("ensure-schema", true, "create ledger and fulfillment tables on start")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := bootstrap.Open(ctx, service)
	if err != nil {
		logger.Get().Fatal().Err(err).Msg("bootstrap failed")
	}
	defer env.Close(context.Background())
	l := logger.Get()

	mod, err := processormod.New(env.Deps, processormod.Options{
		BatchSize:      *fBatch,
		MaxConcurrency: *fConc,
		MessageTimeout: *fTimeout,
		PollInterval:   *fPoll,
		Ledger:         *fLedger,
	})
	if err != nil {
		l.Fatal().Err(err).Msg("processor module")
	}
	module.Register(mod.Name(), mod.Ports())

	if *fSchema {
		if err := mod.EnsureSchema(ctx); err != nil {
			l.Fatal().Err(err).Msg("ensure schema")
		}
	}

	addr := *fMetrics
	if addr == "" {
		addr = env.Cfg.Prefix("PROCESSOR_").MayString("METRICS_ADDR", "")
	}

	o := mod.Options()
	l.Info().
		Int("batch", o.BatchSize).
		Int("concurrency", o.MaxConcurrency).
		Dur("message_timeout", o.MessageTimeout).
		Str("ledger", o.Ledger).
		Msg("processor starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mod.Run(gctx) })
	if addr != "" {
		g.Go(func() error { return metrics.Serve(gctx, addr) })
	}
	if err := g.Wait(); err != nil {
		l.Fatal().Err(err).Msg("processor stopped")
	}
	l.Info().Msg("processor stopped")
}
