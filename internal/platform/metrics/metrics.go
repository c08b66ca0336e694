// Package metrics exposes the default prometheus registry
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"poshub/internal/platform/logger"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Path is where the scrape endpoint is mounted
const Path = "/metrics"

// Handler serves the default registry
func Handler() http.Handler { return promhttp.Handler() }

// Mount attaches the scrape endpoint to r
func Mount(r interface{ Handle(string, http.Handler) }) { r.Handle(Path, Handler()) }

// Serve runs a bare listener with /metrics and /health until ctx ends.
// Workers without an API use it so they can still be scraped and probed
func Serve(ctx context.Context, addr string) error {
	mux := chi.NewRouter()
	mux.Handle(Path, Handler())
	mux.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() {
		logger.Named("metrics").Info().Str("addr", addr).Msg("metrics listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
