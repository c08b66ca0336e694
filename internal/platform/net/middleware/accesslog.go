package middleware

import (
	"net/http"
	"time"

	"poshub/internal/platform/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// AccessLogOptions configures the zerolog access log
type AccessLogOptions struct {
	// Slow marks requests taking >= Slow as warn; 0 disables it
	Slow time.Duration
}

// AccessLog logs method, path, status, elapsed and bytes through the request logger.
// Headers are never logged, so credentials stay out of the log
func AccessLog(opt AccessLogOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				elapsed := time.Since(start)
				log := logger.C(r.Context())
				evt := log.Info()
				if opt.Slow > 0 && elapsed >= opt.Slow {
					evt = log.Warn()
				}
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				evt.Int("status", status).
					Dur("elapsed", elapsed).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("bytes", ww.BytesWritten()).
					Msg("request done")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
