// Package service publishes accepted orders onto the queue
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"poshub/internal/core/authz"
	"poshub/internal/core/order"
	perr "poshub/internal/platform/errors"
	"poshub/internal/platform/logger"
	"poshub/internal/platform/net/http/bind"
	"poshub/internal/platform/queue"
	"poshub/internal/services/orders/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Service is the public service port
type Service interface{ domain.PublisherPort }

// Options control service behavior
type Options struct {
	// Source is stamped on the envelope when the order carries none
	Source string
	// PublishTimeout bounds each queue send
	PublishTimeout time.Duration
	// Now overrides time.Now
	Now func() time.Time
}

// Svc implements the service port
type Svc struct {
	q   queue.Queue
	opt Options
}

var publishMetrics = sync.OnceValue(func() *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poshub_orders_published_total",
		Help: "Orders handed to the queue, by result.",
	}, []string{"result"})
})

var tracer = otel.Tracer("poshub/orders")

// New constructs the service
func New(q queue.Queue, opt Options) *Svc {
	if q == nil {
		panic("orders.Service requires a non nil Queue")
	}
	if opt.Source == "" {
		opt.Source = "poshub-api"
	}
	if opt.PublishTimeout <= 0 {
		opt.PublishTimeout = 3 * time.Second
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	return &Svc{q: q, opt: opt}
}

// Publish validates ev and sends it. No message is sent for invalid input, and no
// receipt is returned unless the queue accepted the message
func (s *Svc) Publish(ctx context.Context, ev order.Event, caller authz.Caller) (domain.Receipt, error) {
	if caller.Subject == "" {
		return domain.Receipt{}, perr.Unauthorizedf("unauthorized")
	}
	ev, err := check(ev, "")
	if err != nil {
		publishMetrics().WithLabelValues("invalid").Inc()
		return domain.Receipt{}, err
	}
	return s.send(ctx, ev, caller)
}

// PublishAll validates every order before sending any. Sends run in order and stop at the
// first failure; the receipts already issued are returned with the error. Resending the
// whole request is safe because the processor deduplicates on orderId
func (s *Svc) PublishAll(ctx context.Context, evs []order.Event, caller authz.Caller) ([]domain.Receipt, error) {
	if caller.Subject == "" {
		return nil, perr.Unauthorizedf("unauthorized")
	}
	if len(evs) == 0 {
		return nil, perr.WithField(perr.Validationf("orders must contain at least one order"), "orders")
	}
	if len(evs) > domain.MaxBatch {
		return nil, perr.WithField(perr.Validationf("orders must contain at most %d orders", domain.MaxBatch), "orders")
	}

	seen := make(map[string]int, len(evs))
	checked := make([]order.Event, len(evs))
	for i, ev := range evs {
		prefix := fmt.Sprintf("orders[%d].", i)
		ev, err := check(ev, prefix)
		if err != nil {
			publishMetrics().WithLabelValues("invalid").Inc()
			return nil, err
		}
		if j, dup := seen[ev.OrderID]; dup {
			publishMetrics().WithLabelValues("invalid").Inc()
			return nil, perr.WithField(
				perr.Validationf("orderId duplicates orders[%d]", j), prefix+"orderId")
		}
		seen[ev.OrderID] = i
		checked[i] = ev
	}

	out := make([]domain.Receipt, 0, len(checked))
	for _, ev := range checked {
		rc, err := s.send(ctx, ev, caller)
		if err != nil {
			return out, err
		}
		out = append(out, rc)
	}
	return out, nil
}

func (s *Svc) send(ctx context.Context, ev order.Event, caller authz.Caller) (domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "orders.publish")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", ev.OrderID))

	now := s.opt.Now().UTC()
	source := ev.Source
	if source == "" {
		source = s.opt.Source
	}
	body, err := json.Marshal(order.Envelope{
		Order:       ev,
		Source:      source,
		Date:        now,
		RequestedBy: caller.Subject,
	})
	if err != nil {
		return domain.Receipt{}, perr.Wrap(err, perr.ErrorCodeUnknown, "encode order")
	}

	sctx, cancel := context.WithTimeout(ctx, s.opt.PublishTimeout)
	defer cancel()

	rc, err := s.q.Send(sctx, queue.SendInput{Body: body, GroupKey: ev.OrderID})
	if err != nil {
		publishMetrics().WithLabelValues("unavailable").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		logger.C(ctx).Error().Err(err).Str("order_id", ev.OrderID).Msg("order publish failed")
		return domain.Receipt{}, perr.Wrap(err, perr.ErrorCodeUnavailable, "order queue unavailable")
	}

	publishMetrics().WithLabelValues("accepted").Inc()
	logger.C(ctx).Info().
		Str("order_id", ev.OrderID).
		Str("message_id", rc.ID).
		Str("source", source).
		Msg("order accepted")

	return domain.Receipt{
		MessageID:  rc.ID,
		OrderID:    ev.OrderID,
		Status:     domain.StatusAccepted,
		AcceptedAt: now,
	}, nil
}

// check normalizes ev and applies the publish preconditions. Field names carry prefix
func check(ev order.Event, prefix string) (order.Event, error) {
	ev = ev.Normalize()
	if err := bind.Validate(ev); err != nil {
		if e, ok := perr.As(err); ok && e.Field() != "" {
			return ev, perr.WithField(err, prefix+e.Field())
		}
		return ev, err
	}
	if !ev.TotalAmount.IsPositive() {
		return ev, perr.WithField(perr.Validationf("totalAmount must be greater than 0"), prefix+"totalAmount")
	}
	return ev, nil
}
