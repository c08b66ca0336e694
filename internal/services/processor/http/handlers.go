// Package http exposes the batch consumer over http for push-style delivery
package http

import (
	stdhttp "net/http"

	"poshub/internal/core/authz"
	"poshub/internal/modkit/httpkit"
	"poshub/internal/platform/net/http/bind"
	"poshub/internal/services/processor/domain"
)

// queue bridges forward whole records (receiptHandle, attributes, ...); only messageId and body are read
var batchJSON = bind.JSONOptions{MaxBytes: 4 << 20}

// Register mounts POST /batches behind queue:consume
func Register(r httpkit.Router, gate httpkit.Authorizer, p domain.ProcessorPort) {
	h := &handlers{p: p}
	httpkit.Scoped(r, gate, authz.ScopeQueueConsume, func(w httpkit.Router) {
		w.Post("/batches", httpkit.Handle(h.batch))
	})
}

type handlers struct{ p domain.ProcessorPort }

// POST /internal/batches
// The response is always 200 with the raw failure list; a malformed request is a 400
func (h *handlers) batch(r *stdhttp.Request) httpkit.Response {
	in, err := bind.ParseJSON[domain.BatchRequest](r, batchJSON)
	if err != nil {
		return httpkit.Error(err)
	}
	out := h.p.Process(r.Context(), in.Messages())
	return httpkit.Raw(stdhttp.StatusOK, domain.ResponseOf(out))
}
