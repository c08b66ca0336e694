package pg

import (
	"context"
	"strings"

	"poshub/internal/platform/logger"

	"github.com/rs/zerolog"
)

// QueryEvent describes one executed statement. Args are counted, never logged:
// queue payloads and ledger keys can carry caller data
type QueryEvent struct {
	SQL       string
	NArgs     int
	ElapsedUS int64
	Err       error
	Slow      bool
}

// QueryTracer receives query events from the store adapter
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// Tracer returns a tracer that always prints SQL when LOG_SQL is on,
// independent of the process-wide root level
func Tracer(root logger.Logger) QueryTracer {
	ll := root.Level(zerolog.DebugLevel).With().Str("component", "pg").Logger()
	return &zlTracer{log: ll}
}

type zlTracer struct{ log logger.Logger }

func (z *zlTracer) OnQuery(_ context.Context, ev QueryEvent) {
	evt := z.log.Debug()
	if ev.Slow {
		evt = z.log.Warn()
	}
	if ev.Err != nil {
		evt = z.log.Error().Err(ev.Err)
	}
	evt.Float64("elapsed_ms", float64(ev.ElapsedUS)/1000.0).
		Bool("slow", ev.Slow).
		Int("args", ev.NArgs).
		Str("sql", compact(ev.SQL)).
		Msg("pg query")
}

// compact folds runs of whitespace so multi-line SQL stays on one log line
func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
