// Package http provides http transport for the order publisher
package http

import (
	stdhttp "net/http"

	"poshub/internal/core/authz"
	"poshub/internal/core/order"
	"poshub/internal/modkit/httpkit"
	"poshub/internal/services/orders/domain"
)

// Register mounts the publish routes. Both require orders:write
func Register(r httpkit.Router, gate httpkit.Authorizer, s domain.PublisherPort) {
	h := &handlers{svc: s}
	httpkit.Scoped(r, gate, authz.ScopeOrdersWrite, func(w httpkit.Router) {
		httpkit.PostJSON(w, "/", h.create)
		httpkit.PostJSON(w, "/batch", h.batch)
	})
}

type handlers struct{ svc domain.PublisherPort }

// caller is the principal Scoped stored on the request; these routes never run without one
func caller(r *stdhttp.Request) authz.Caller {
	p := httpkit.MustCaller(r)
	return authz.Caller{Subject: p.Subject, Scopes: p.Scopes}
}

// POST /orders
func (h *handlers) create(r *stdhttp.Request, in domain.OrderInput) (any, error) {
	rc, err := h.svc.Publish(r.Context(), in.Event(), caller(r))
	if err != nil {
		return nil, err
	}
	return httpkit.Accepted(rc), nil
}

// POST /orders/batch
func (h *handlers) batch(r *stdhttp.Request, in domain.BatchInput) (any, error) {
	evs := make([]order.Event, len(in.Orders))
	for i, o := range in.Orders {
		evs[i] = o.Event()
	}
	rcs, err := h.svc.PublishAll(r.Context(), evs, caller(r))
	if err != nil {
		if len(rcs) > 0 {
			// orders before the failure are already queued; report them so the client resends only the rest
			return httpkit.PartialError(err, domain.BatchReceipt{Accepted: rcs}), nil
		}
		return nil, err
	}
	return httpkit.Accepted(domain.BatchReceipt{Accepted: rcs}), nil
}
