package httpkit

import (
	"compress/flate"
	"net/http"
	"time"

	"poshub/internal/platform/config"
	phttp "poshub/internal/platform/net/http"
	"poshub/internal/platform/net/middleware"
)

// StackOptions tunes CommonStack
type StackOptions struct {
	AllowedOrigins []string
	MaxBody        int64
	Timeout        time.Duration
	SlowRequest    time.Duration
}

// StackFromConfig reads HTTP_* values
func StackFromConfig(cfg config.Conf) StackOptions {
	hc := cfg.Prefix("HTTP_")
	return StackOptions{
		AllowedOrigins: hc.MayCSV("CORS_ORIGINS", nil),
		MaxBody:        int64(hc.MayInt("MAX_BODY", 1<<20)),
		Timeout:        hc.MayDuration("TIMEOUT", 30*time.Second),
		SlowRequest:    hc.MayDuration("SLOW", time.Second),
	}
}

// CommonStack returns a baseline per module middleware slice
// compose with RequireScope per route group
func CommonStack(o StackOptions) []func(http.Handler) http.Handler {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxBody <= 0 {
		o.MaxBody = 1 << 20
	}
	return []func(http.Handler) http.Handler{
		// tracing / correlation
		middleware.RequestID(),
		middleware.RealIP(),
		middleware.Correlate(),

		// safety
		middleware.RecoverJSON,
		middleware.MaxBody(o.MaxBody),

		// cache / freshness
		middleware.NoCache(),

		// observability
		middleware.AccessLog(middleware.AccessLogOptions{Slow: o.SlowRequest}),
		middleware.Metrics(),

		middleware.CORS(middleware.CORSOptions{AllowedOrigins: o.AllowedOrigins}),
		middleware.Compress(flate.BestSpeed),
		middleware.StripSlashes(),
		middleware.Timeout(o.Timeout),
	}
}

// Auth wires the auth middleware to the platform error writer
func Auth(p middleware.AuthPort) func(http.Handler) http.Handler {
	return middleware.Auth(p, phttp.RespondError)
}
