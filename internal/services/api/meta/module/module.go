// Package module wires meta endpoints into the API using a tiny module
package module

import (
	"context"
	"net/http"
	"time"

	modkit "poshub/internal/modkit"
	"poshub/internal/modkit/httpkit"
	str "poshub/internal/platform/strings"

	metahttp "poshub/internal/services/api/meta/http"
)

// Module implements the modkit.Module interface
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	startedAt time.Time
}

type redisPinger struct{ deps modkit.Deps }

func (p redisPinger) Ping(ctx context.Context) error { return p.deps.Redis.Ping(ctx).Err() }

// checks lists the configured backends; absent ones report skipped
func checks(deps modkit.Deps) []metahttp.Check {
	out := []metahttp.Check{{Name: "pg"}, {Name: "ch"}, {Name: "redis"}}
	if p, ok := deps.PG.(metahttp.Pinger); ok {
		out[0].P = p
	}
	if deps.CH != nil {
		out[1].P = deps.CH
	}
	if deps.Redis != nil {
		out[2].P = redisPinger{deps}
	}
	return out
}

// New constructs a meta module with the provided dependencies and options
func New(deps modkit.Deps, service string, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("meta"),
		modkit.WithPrefix("/meta"),
	}, opts...)...)

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		subrouter: b.Subrouter,
		startedAt: time.Now(),
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		metahttp.Register(r, metahttp.Deps{
			ServiceName: service,
			StartedAt:   m.startedAt,
			Checks:      checks(deps),
		})
		if external != nil {
			external(r)
		}
	}

	return m
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name implements the modkit.Module interface
func (m *Module) Name() string { return str.MustString(m.name, "meta") }

// Prefix returns the mount prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Ports implements the modkit.Module interface
func (m *Module) Ports() any { return nil }
