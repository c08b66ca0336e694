package modkit

import (
	"net/http"

	phttp "poshub/internal/platform/net/http"
)

// Option adjusts how a module is built
type Option func(*buildCfg)

type buildCfg struct {
	name      string
	prefix    string
	mw        []func(http.Handler) http.Handler
	subrouter func(phttp.Router) phttp.Router
	register  func(phttp.Router)
}

// WithName overrides the module name used in logs and the port registry
func WithName(name string) Option {
	return func(c *buildCfg) { c.name = name }
}

// WithPrefix sets the path the module mounts under, relative to /api/v1
func WithPrefix(prefix string) Option {
	return func(c *buildCfg) { c.prefix = prefix }
}

// WithMiddlewares appends middleware applied to the module's routes only
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(c *buildCfg) { c.mw = append(c.mw, mw...) }
}

// WithSubrouter wraps the module router before routes attach
func WithSubrouter(fn func(phttp.Router) phttp.Router) Option {
	return func(c *buildCfg) { c.subrouter = fn }
}

// WithRegister attaches extra endpoints next to the module's own
func WithRegister(fn func(phttp.Router)) Option {
	return func(c *buildCfg) { c.register = fn }
}
