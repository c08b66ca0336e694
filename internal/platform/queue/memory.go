package queue

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	perr "poshub/internal/platform/errors"

	"github.com/google/uuid"
)

type memMessage struct {
	id           string
	groupKey     string
	body         []byte
	receiveCount int
	sentAt       time.Time
	visibleAt    time.Time
	deliveryID   string
	seq          uint64
}

// Memory is an in-process Queue for tests and single-binary local runs
type Memory struct {
	opt Options
	now func() time.Time

	mu   sync.Mutex
	seq  uint64
	live map[string]*memMessage
	dead []DeadLetter
}

var _ Queue = (*Memory)(nil)

// MemoryOption configures Memory
type MemoryOption func(*Memory)

// WithClock overrides time.Now
func WithClock(now func() time.Time) MemoryOption { return func(m *Memory) { m.now = now } }

// NewMemory returns an empty queue
func NewMemory(opt Options, opts ...MemoryOption) *Memory {
	m := &Memory{opt: opt.withDefaults(), now: time.Now, live: map[string]*memMessage{}}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Send enqueues a copy of in.Body
func (m *Memory) Send(ctx context.Context, in SendInput) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, perr.FromContext(err, perr.ErrorCodeUnavailable, "queue send")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	now := m.now()
	msg := &memMessage{
		id:        uuid.NewString(),
		groupKey:  in.GroupKey,
		body:      slices.Clone(in.Body),
		sentAt:    now,
		visibleAt: now,
		seq:       m.seq,
	}
	m.live[msg.id] = msg
	metrics().sent.WithLabelValues(m.opt.Name).Inc()
	return Receipt{ID: msg.id, SentAt: now}, nil
}

// Receive dead-letters exhausted messages, then leases up to max visible ones
func (m *Memory) Receive(ctx context.Context, max int, visibility time.Duration) ([]Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, perr.FromContext(err, perr.ErrorCodeUnavailable, "queue receive")
	}
	if max <= 0 {
		return nil, nil
	}
	if visibility <= 0 {
		visibility = m.opt.Visibility
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var ready []*memMessage
	for _, msg := range m.live {
		if !msg.visibleAt.After(now) {
			ready = append(ready, msg)
		}
	}
	slices.SortFunc(ready, func(a, b *memMessage) int {
		if c := a.visibleAt.Compare(b.visibleAt); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	out := make([]Delivery, 0, min(max, len(ready)))
	for _, msg := range ready {
		if msg.receiveCount >= m.opt.Redrive.MaxReceiveCount {
			m.deadLetterLocked(msg, now)
			continue
		}
		if len(out) == max {
			continue
		}
		msg.receiveCount++
		msg.deliveryID = uuid.NewString()
		msg.visibleAt = now.Add(visibility)
		out = append(out, Delivery{
			MessageID:    msg.deliveryID,
			ID:           msg.id,
			GroupKey:     msg.groupKey,
			Body:         slices.Clone(msg.body),
			ReceiveCount: msg.receiveCount,
			SentAt:       msg.sentAt,
			LeaseUntil:   msg.visibleAt,
		})
	}
	metrics().received.WithLabelValues(m.opt.Name).Add(float64(len(out)))
	return out, nil
}

func (m *Memory) deadLetterLocked(msg *memMessage, now time.Time) {
	delete(m.live, msg.id)
	m.dead = append(m.dead, DeadLetter{
		ID:           msg.id,
		SourceQueue:  m.opt.Name,
		GroupKey:     msg.groupKey,
		Body:         msg.body,
		ReceiveCount: msg.receiveCount,
		SentAt:       msg.sentAt,
		DeadAt:       now,
	})
	metrics().deadLettered.WithLabelValues(m.opt.Name).Inc()
}

// Ack deletes messages whose current lease matches; stale ids are ignored
func (m *Memory) Ack(_ context.Context, messageIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.leasedLocked(messageIDs) {
		delete(m.live, msg.id)
		n++
	}
	metrics().acked.WithLabelValues(m.opt.Name).Add(float64(n))
	return nil
}

// Release ends the lease early; the message becomes visible after RetryDelay
func (m *Memory) Release(_ context.Context, messageIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for _, msg := range m.leasedLocked(messageIDs) {
		msg.deliveryID = ""
		msg.visibleAt = now.Add(m.opt.RetryDelay)
		n++
	}
	metrics().released.WithLabelValues(m.opt.Name).Add(float64(n))
	return nil
}

// leasedLocked returns messages currently leased under one of ids
func (m *Memory) leasedLocked(ids []string) []*memMessage {
	if len(ids) == 0 {
		return nil
	}
	now := m.now()
	var out []*memMessage
	for _, msg := range m.live {
		if msg.deliveryID != "" && msg.visibleAt.After(now) && slices.Contains(ids, msg.deliveryID) {
			out = append(out, msg)
		}
	}
	return out
}

// DeadLetters lists parked messages, oldest first
func (m *Memory) DeadLetters(_ context.Context, limit int) ([]DeadLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.dead) {
		limit = len(m.dead)
	}
	out := make([]DeadLetter, limit)
	copy(out, m.dead[:limit])
	return out, nil
}

// Redrive moves the named dead letters back with a fresh receive budget
func (m *Memory) Redrive(_ context.Context, ids ...string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	kept := m.dead[:0]
	n := 0
	for _, d := range m.dead {
		if !slices.Contains(ids, d.ID) {
			kept = append(kept, d)
			continue
		}
		m.seq++
		m.live[d.ID] = &memMessage{
			id:        d.ID,
			groupKey:  d.GroupKey,
			body:      d.Body,
			sentAt:    d.SentAt,
			visibleAt: now,
			seq:       m.seq,
		}
		n++
	}
	m.dead = kept
	metrics().redriven.WithLabelValues(m.opt.Name).Add(float64(n))
	return n, nil
}

// Len reports live and dead message counts
func (m *Memory) Len() (live, dead int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live), len(m.dead)
}
