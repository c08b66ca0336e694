package repo

import (
	"context"
	"time"

	"poshub/internal/modkit/repokit"
	perr "poshub/internal/platform/errors"
	"poshub/internal/platform/store"
	"poshub/internal/services/processor/domain"
)

// Schema creates the ledger table
const Schema = `
CREATE TABLE IF NOT EXISTS processed_orders (
	order_id      text        PRIMARY KEY,
	owner         text        NOT NULL,
	claimed_until timestamptz NOT NULL,
	done_at       timestamptz
);
CREATE INDEX IF NOT EXISTS processed_orders_pending_idx
	ON processed_orders (claimed_until) WHERE done_at IS NULL;
`

// PG is the Postgres ledger. A claim whose claimed_until has passed may be taken over
type PG struct {
	db  repokit.TxRunner
	ttl time.Duration
}

// NewPG builds the ledger
func NewPG(db repokit.TxRunner, ttl time.Duration) *PG {
	if db == nil {
		panic("processor: PG ledger requires a TxRunner")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PG{db: db, ttl: ttl}
}

// EnsureSchema applies Schema
func (l *PG) EnsureSchema(ctx context.Context) error {
	_, err := l.db.Exec(ctx, Schema)
	return perr.FromPostgres(err, "processor ledger schema")
}

// the outer select reads the pre-insert snapshot, so done reflects the row as it was
const beginSQL = `
WITH claim AS (
	INSERT INTO processed_orders (order_id, owner, claimed_until)
	VALUES ($1, $2, now() + make_interval(secs => $3))
	ON CONFLICT (order_id) DO UPDATE
		SET owner = EXCLUDED.owner, claimed_until = EXCLUDED.claimed_until
		WHERE processed_orders.done_at IS NULL
		  AND (processed_orders.claimed_until <= now() OR processed_orders.owner = EXCLUDED.owner)
	RETURNING 1
)
SELECT EXISTS (SELECT 1 FROM claim),
       COALESCE((SELECT done_at IS NOT NULL FROM processed_orders WHERE order_id = $1), false)`

// Begin claims orderID for owner
func (l *PG) Begin(ctx context.Context, orderID, owner string) (domain.Claim, error) {
	var claimed, done bool
	err := l.db.QueryRow(ctx, beginSQL, orderID, owner, l.ttl.Seconds()).Scan(&claimed, &done)
	switch {
	case err != nil:
		return domain.ClaimInFlight, perr.FromPostgres(err, "ledger begin")
	case claimed:
		return domain.ClaimFresh, nil
	case done:
		return domain.ClaimDone, nil
	default:
		return domain.ClaimInFlight, nil
	}
}

// Complete marks orderID done when owner still holds the claim
func (l *PG) Complete(ctx context.Context, orderID, owner string) error {
	err := store.ExecOne(ctx, l.db, `
		UPDATE processed_orders SET done_at = now()
		WHERE order_id = $1 AND owner = $2 AND done_at IS NULL`, orderID, owner)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return domain.ErrClaimLost
	}
	return err
}

// Abandon deletes owner's pending claim
func (l *PG) Abandon(ctx context.Context, orderID, owner string) error {
	_, err := l.db.Exec(ctx, `
		DELETE FROM processed_orders
		WHERE order_id = $1 AND owner = $2 AND done_at IS NULL`, orderID, owner)
	return perr.FromPostgres(err, "ledger abandon")
}
