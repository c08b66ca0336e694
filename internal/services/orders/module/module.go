// Package module wires the order publisher into the API using modkit
package module

import (
	"net/http"

	"poshub/internal/modkit"
	"poshub/internal/modkit/httpkit"

	ohttp "poshub/internal/services/orders/http"
	"poshub/internal/services/orders/domain"
	osvc "poshub/internal/services/orders/service"
)

// Module implements the orders API module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc osvc.Service
}

// Ports exposes the publisher to other modules
type Ports struct {
	Publisher domain.PublisherPort
}

// New constructs the orders module. deps.Queue is required; deps.Gate guards the routes
// and a nil gate denies every request
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("orders"),
		modkit.WithPrefix("/orders"),
	}, opts...)...)

	if deps.Queue == nil {
		panic("orders module requires a Queue")
	}
	cfg := FromConfig(deps.Cfg)

	svc := osvc.New(deps.Queue, osvc.Options{
		Source:         cfg.Source,
		PublishTimeout: cfg.PublishTimeout,
	})

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		subrouter: b.Subrouter,
		svc:       svc,
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		ohttp.Register(r, deps.Gate, m.svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes mounts the module routes on the given router
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

// Ports returns the module ports
func (m *Module) Ports() any { return Ports{Publisher: m.svc} }

// Name returns the module name
func (m *Module) Name() string { return m.name }
