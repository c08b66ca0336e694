package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"poshub/internal/core/authz"
	"poshub/internal/core/order"
	perr "poshub/internal/platform/errors"
	"poshub/internal/platform/queue"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now     = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cashier = authz.Caller{Subject: "cashier-1", Scopes: []string{authz.ScopeOrdersWrite}}
)

func ev(id, amount string) order.Event {
	return order.Event{
		OrderID:     id,
		TotalAmount: decimal.RequireFromString(amount),
		Currency:    "eur",
		CreatedAt:   now.Add(-time.Minute),
	}
}

func newSvc(q queue.Queue) *Svc {
	return New(q, Options{Now: func() time.Time { return now }})
}

func drain(t *testing.T, q *queue.Memory) []queue.Delivery {
	t.Helper()
	ds, err := q.Receive(context.Background(), 50, time.Minute)
	require.NoError(t, err)
	return ds
}

func TestPublishSendsEnvelope(t *testing.T) {
	q := queue.NewMemory(queue.Options{})
	rc, err := newSvc(q).Publish(context.Background(), ev(" A-1 ", "12.50"), cashier)
	require.NoError(t, err)
	assert.Equal(t, "A-1", rc.OrderID)
	assert.Equal(t, "accepted", rc.Status)
	assert.NotEmpty(t, rc.MessageID)
	assert.Equal(t, now, rc.AcceptedAt)

	ds := drain(t, q)
	require.Len(t, ds, 1)
	assert.Equal(t, "A-1", ds[0].GroupKey)

	env, err := order.Decode(ds[0].Body)
	require.NoError(t, err)
	assert.Equal(t, "EUR", env.Order.Currency)
	assert.Equal(t, "poshub-api", env.Source)
	assert.Equal(t, "cashier-1", env.RequestedBy)
	assert.True(t, env.Order.TotalAmount.Equal(decimal.RequireFromString("12.5")))
}

func TestPublishRejectsBeforeSending(t *testing.T) {
	cases := map[string]struct {
		ev    order.Event
		field string
	}{
		"zero amount":     {ev("A", "0"), "totalAmount"},
		"negative amount": {ev("A", "-3"), "totalAmount"},
		"missing id":      {ev("  ", "1"), "orderId"},
		"bad currency":    {func() order.Event { e := ev("A", "1"); e.Currency = "euro"; return e }(), "currency"},
		"missing date":    {func() order.Event { e := ev("A", "1"); e.CreatedAt = time.Time{}; return e }(), "createdAt"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			q := queue.NewMemory(queue.Options{})
			_, err := newSvc(q).Publish(context.Background(), tc.ev, cashier)
			require.Error(t, err)
			assert.True(t, perr.IsCode(err, perr.ErrorCodeValidation), "code = %s", perr.CodeOf(err))
			e, _ := perr.As(err)
			assert.Equal(t, tc.field, e.Field())
			live, _ := q.Len()
			assert.Zero(t, live, "nothing may reach the queue")
		})
	}
}

func TestPublishRequiresCaller(t *testing.T) {
	_, err := newSvc(queue.NewMemory(queue.Options{})).Publish(context.Background(), ev("A", "1"), authz.Caller{})
	assert.True(t, perr.IsCode(err, perr.ErrorCodeUnauthorized))
}

type downQueue struct {
	queue.Queue
	sent  int
	after int
}

func (d *downQueue) Send(ctx context.Context, in queue.SendInput) (queue.Receipt, error) {
	if d.sent >= d.after {
		return queue.Receipt{}, errors.New("dial tcp 10.0.0.7:5432: connection refused")
	}
	d.sent++
	return d.Queue.Send(ctx, in)
}

func TestPublishSurfacesQueueFailure(t *testing.T) {
	q := &downQueue{Queue: queue.NewMemory(queue.Options{})}
	rc, err := newSvc(q).Publish(context.Background(), ev("A", "1"), cashier)
	require.Error(t, err)
	assert.Empty(t, rc.MessageID, "no receipt on failure")
	assert.True(t, perr.IsCode(err, perr.ErrorCodeUnavailable))
	assert.Equal(t, "order queue unavailable", perr.WireFrom(err).Message)
}

type slowQueue struct{ queue.Queue }

func (slowQueue) Send(ctx context.Context, _ queue.SendInput) (queue.Receipt, error) {
	<-ctx.Done()
	return queue.Receipt{}, ctx.Err()
}

func TestPublishIsBounded(t *testing.T) {
	s := New(slowQueue{}, Options{PublishTimeout: 20 * time.Millisecond})
	start := time.Now()
	_, err := s.Publish(context.Background(), ev("A", "1"), cashier)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeUnavailable))
	assert.Less(t, time.Since(start), time.Second)
}

func TestPublishAll(t *testing.T) {
	q := queue.NewMemory(queue.Options{})
	rcs, err := newSvc(q).PublishAll(context.Background(), []order.Event{ev("A", "1"), ev("B", "2")}, cashier)
	require.NoError(t, err)
	require.Len(t, rcs, 2)
	assert.Equal(t, "A", rcs[0].OrderID)
	assert.Equal(t, "B", rcs[1].OrderID)
	assert.Len(t, drain(t, q), 2)
}

func TestPublishAllValidatesEverythingFirst(t *testing.T) {
	q := queue.NewMemory(queue.Options{})
	s := newSvc(q)

	_, err := s.PublishAll(context.Background(), []order.Event{ev("A", "1"), ev("B", "0")}, cashier)
	e, ok := perr.As(err)
	require.True(t, ok)
	assert.Equal(t, "orders[1].totalAmount", e.Field())

	_, err = s.PublishAll(context.Background(), []order.Event{ev("A", "1"), ev(" A", "2")}, cashier)
	e, ok = perr.As(err)
	require.True(t, ok)
	assert.Equal(t, "orders[1].orderId", e.Field())

	_, err = s.PublishAll(context.Background(), nil, cashier)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeValidation))

	live, _ := q.Len()
	assert.Zero(t, live)
}

func TestPublishAllStopsAtFirstSendFailure(t *testing.T) {
	q := &downQueue{Queue: queue.NewMemory(queue.Options{}), after: 1}
	rcs, err := newSvc(q).PublishAll(context.Background(), []order.Event{ev("A", "1"), ev("B", "1"), ev("C", "1")}, cashier)
	assert.True(t, perr.IsCode(err, perr.ErrorCodeUnavailable))
	require.Len(t, rcs, 1)
	assert.Equal(t, "A", rcs[0].OrderID)
}
