package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"time"

	"poshub/internal/platform/config"
	"poshub/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

// Server is a thin wrapper over chi and net/http.Server
type Server struct {
	addr            string
	mux             *chi.Mux
	srv             *stdhttp.Server
	shutdownTimeout time.Duration
}

// NewServer reads API_PORT and SHUTDOWN_TIMEOUT from cfg; opts receive the mux before any route is mounted
func NewServer(cfg config.Conf, opts ...func(*chi.Mux)) *Server {
	addr := cfg.MayAddr("API_PORT", "4000")
	m := chi.NewRouter()
	for _, o := range opts {
		o(m)
	}
	return &Server{
		addr:            addr,
		mux:             m,
		shutdownTimeout: cfg.MayDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		srv: &stdhttp.Server{
			Addr:              addr,
			Handler:           m,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Router returns the Router facade over the mux
func (s *Server) Router() Router { return AdaptChi(s.mux) }

// Handler returns the root handler, for tests
func (s *Server) Handler() stdhttp.Handler { return s.mux }

// Addr returns the listen address
func (s *Server) Addr() string { return s.addr }

// Run serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context) error {
	log := logger.Named("http")
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("http listening")
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, stdhttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	log.Info().Dur("timeout", s.shutdownTimeout).Msg("http shutting down")
	return s.srv.Shutdown(sctx)
}
