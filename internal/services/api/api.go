// Package api composes the HTTP API: meta probes, the order publisher and the push-style batch endpoint
package api

import (
	"poshub/internal/platform/logger"
	"poshub/internal/platform/metrics"
	phttp "poshub/internal/platform/net/http"

	"poshub/internal/modkit"
	"poshub/internal/modkit/httpkit"
	"poshub/internal/modkit/module"

	metamod "poshub/internal/services/api/meta/module"
	ordersmod "poshub/internal/services/orders/module"
	processormod "poshub/internal/services/processor/module"
)

// Options are the API options
type Options struct {
	// Deps carries the opened backends, the queue and the gate
	Deps modkit.Deps

	ServiceName string
	Stack       httpkit.StackOptions

	// EnablePush mounts POST /internal/batches for push-style delivery
	EnablePush bool
	// EnableMetrics mounts /metrics on the root router, outside the API stack
	EnableMetrics bool
}

// Mount mounts the API onto r and registers each module's ports
func Mount(r phttp.Router, opt Options) error {
	deps := opt.Deps

	mods := []module.Module{
		metamod.New(deps, opt.ServiceName),
		ordersmod.New(deps),
	}
	if opt.EnablePush {
		proc, err := processormod.New(deps, processormod.Options{})
		if err != nil {
			return err
		}
		mods = append(mods, proc)
	}

	if opt.EnableMetrics {
		metrics.Mount(r)
	}

	httpkit.MountAPIV1(r, httpkit.CommonStack(opt.Stack), func(api httpkit.Router) {
		for _, m := range mods {
			// register each module's ports under its own name for cross-module lookups
			module.Register(m.Name(), m.Ports())
			m.MountRoutes(api)
		}
	})
	logger.Named("api").Info().Strs("modules", module.Names()).Bool("push", opt.EnablePush).Msg("api mounted")
	return nil
}
