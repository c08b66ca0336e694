// Package repo holds the processed-order ledgers
package repo

import (
	"context"
	"sync"
	"time"

	"poshub/internal/services/processor/domain"
)

type memEntry struct {
	owner string
	until time.Time
	done  bool
}

// Memory is an in-process ledger for tests and single-instance runs
type Memory struct {
	mu  sync.Mutex
	ttl time.Duration
	now func() time.Time
	m   map[string]*memEntry
}

// NewMemory builds a Memory ledger whose claims expire after ttl
func NewMemory(ttl time.Duration, now func() time.Time) *Memory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &Memory{ttl: ttl, now: now, m: map[string]*memEntry{}}
}

// Begin claims orderID for owner unless it is done or claimed by a live owner
func (l *Memory) Begin(_ context.Context, orderID, owner string) (domain.Claim, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.m[orderID]
	switch {
	case ok && e.done:
		return domain.ClaimDone, nil
	case ok && e.owner != owner && now.Before(e.until):
		return domain.ClaimInFlight, nil
	}
	l.m[orderID] = &memEntry{owner: owner, until: now.Add(l.ttl)}
	return domain.ClaimFresh, nil
}

// Complete marks orderID done if owner still holds the claim
func (l *Memory) Complete(_ context.Context, orderID, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.m[orderID]
	if !ok || e.done || e.owner != owner {
		return domain.ErrClaimLost
	}
	e.done = true
	return nil
}

// Abandon drops owner's claim
func (l *Memory) Abandon(_ context.Context, orderID, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.m[orderID]; ok && !e.done && e.owner == owner {
		delete(l.m, orderID)
	}
	return nil
}

// Done reports whether orderID was completed
func (l *Memory) Done(orderID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.m[orderID]
	return ok && e.done
}
