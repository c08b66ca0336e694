// Package modkit provides module wiring and core deps
package modkit

import (
	"poshub/internal/modkit/httpkit"
	"poshub/internal/modkit/repokit"
	"poshub/internal/platform/config"
	"poshub/internal/platform/logger"
	"poshub/internal/platform/queue"
	"poshub/internal/platform/store"

	"github.com/redis/go-redis/v9"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions; every backend is optional
type Deps struct {
	Log   logger.Logger
	Cfg   config.Conf
	PG    repokit.TxRunner
	CH    store.Clickhouse
	Redis *redis.Client

	// Queue carries order events from the publisher to the processor
	Queue queue.Queue
	// Gate authorizes protected routes
	Gate httpkit.Authorizer
}

// FromStore copies the opened backends of st into a Deps
func FromStore(cfg config.Conf, st *store.Store) Deps {
	d := Deps{Cfg: cfg}
	if st == nil {
		return d
	}
	d.Log = st.Log
	if st.PG != nil {
		d.PG = st.PG
	}
	if st.CH != nil {
		d.CH = st.CH
	}
	d.Redis = st.Redis
	return d
}
