// Package http provides meta endpoints
package http

import (
	stdctx "context"
	"net/http"
	"time"

	"poshub/internal/core/authz"
	"poshub/internal/core/version"
	"poshub/internal/modkit/httpkit"
)

// Pinger is satisfied by adapters that expose Ping
type Pinger interface {
	Ping(stdctx.Context) error
}

// Check is one named readiness probe. A nil Pinger reports skipped
type Check struct {
	Name string
	P    Pinger
}

// Deps are the handler dependencies
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	Checks      []Check
	Timeout     time.Duration // per probe, default 2s
	Now         func() time.Time
}

type handlers struct {
	deps Deps
}

// Register mounts the meta routes
func Register(r httpkit.Router, d Deps) {
	if d.Timeout <= 0 {
		d.Timeout = 2 * time.Second
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &handlers{deps: d}

	httpkit.Get(r, "/health", h.health)
	httpkit.Get(r, "/ready", h.ready)
	httpkit.Get(r, "/version", h.version)
	httpkit.Get(r, "/scopes", h.scopes)
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Started string `json:"started"`
	Uptime  int64  `json:"uptime"`
}

// ReadyCheck describes a single dependency check
type ReadyCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // ok fail skipped
	Error  string `json:"error,omitempty"`
}

// ReadyResponse summarizes readiness
type ReadyResponse struct {
	Status string       `json:"status"` // ok fail
	Checks []ReadyCheck `json:"checks"`
	Now    string       `json:"now"`
}

// GET /meta/health
func (h *handlers) health(_ *http.Request) (any, error) {
	return HealthResponse{
		OK:      true,
		Service: h.deps.ServiceName,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Uptime:  int64(h.deps.Now().Sub(h.deps.StartedAt) / time.Second),
	}, nil
}

// GET /meta/ready
// a failing dependency turns the response into a 503 so load balancers drain the instance
func (h *handlers) ready(r *http.Request) (any, error) {
	out := ReadyResponse{Status: "ok", Checks: make([]ReadyCheck, 0, len(h.deps.Checks))}
	for _, c := range h.deps.Checks {
		rc := h.probe(r.Context(), c)
		if rc.Status == "fail" {
			out.Status = "fail"
		}
		out.Checks = append(out.Checks, rc)
	}
	out.Now = h.deps.Now().UTC().Format(time.RFC3339)

	if out.Status != "ok" {
		return httpkit.Raw(http.StatusServiceUnavailable, out), nil
	}
	return out, nil
}

func (h *handlers) probe(ctx stdctx.Context, c Check) ReadyCheck {
	if c.P == nil {
		return ReadyCheck{Name: c.Name, Status: "skipped"}
	}
	ctx, cancel := stdctx.WithTimeout(ctx, h.deps.Timeout)
	defer cancel()
	if err := c.P.Ping(ctx); err != nil {
		// the error text can carry hostnames; keep it generic
		return ReadyCheck{Name: c.Name, Status: "fail", Error: "unreachable"}
	}
	return ReadyCheck{Name: c.Name, Status: "ok"}
}

// GET /meta/version
func (h *handlers) version(_ *http.Request) (any, error) {
	return version.Info(), nil
}

// ScopesResponse lists the scopes a token may carry
type ScopesResponse struct {
	Scopes []authz.ScopeInfo `json:"scopes"`
}

// GET /meta/scopes
func (h *handlers) scopes(_ *http.Request) (any, error) {
	return ScopesResponse{Scopes: authz.Scopes()}, nil
}
