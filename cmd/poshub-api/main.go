// Command poshub-api serves the order publisher and the push-style batch endpoint
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"poshub/internal/bootstrap"
	"poshub/internal/modkit/httpkit"
	"poshub/internal/platform/logger"
	phttp "poshub/internal/platform/net/http"

	"poshub/internal/services/api"
)

const service = "poshub-api"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := bootstrap.Open(ctx, service)
	if err != nil {
		logger.Get().Fatal().Err(err).Msg("bootstrap failed")
	}
	defer env.Close(context.Background())
	l := logger.Get()

	if err := env.WithGate(); err != nil {
		l.Fatal().Err(err).Msg("token validator")
	}

	// CORE_API_* holds the http surface: port, shutdown timeout, cors, body limit
	apiCfg := env.Cfg.Prefix("CORE_API_")
	srv := phttp.NewServer(apiCfg)

	if err := api.Mount(srv.Router(), api.Options{
		Deps:          env.Deps,
		ServiceName:   service,
		Stack:         httpkit.StackFromConfig(apiCfg),
		EnablePush:    apiCfg.MayBool("PUSH_ENDPOINT", true),
		EnableMetrics: apiCfg.MayBool("METRICS", true),
	}); err != nil {
		l.Fatal().Err(err).Msg("mount api")
	}

	if err := srv.Run(ctx); err != nil {
		l.Error().Err(err).Msg("http server stopped")
	}
}
