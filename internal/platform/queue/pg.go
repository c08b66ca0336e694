package queue

import (
	"context"
	"time"

	perr "poshub/internal/platform/errors"
	"poshub/internal/platform/store"

	"github.com/google/uuid"
)

// Schema creates the queue and dead-letter tables
const Schema = `
CREATE TABLE IF NOT EXISTS queue_messages (
    id            uuid PRIMARY KEY,
    queue         text        NOT NULL,
    group_key     text        NOT NULL DEFAULT '',
    body          bytea       NOT NULL,
    receive_count int         NOT NULL DEFAULT 0,
    visible_at    timestamptz NOT NULL DEFAULT now(),
    delivery_id   uuid,
    sent_at       timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS queue_messages_ready ON queue_messages (queue, visible_at);
CREATE UNIQUE INDEX IF NOT EXISTS queue_messages_delivery ON queue_messages (delivery_id) WHERE delivery_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS queue_dead_letters (
    id            uuid PRIMARY KEY,
    queue         text        NOT NULL,
    source_queue  text        NOT NULL,
    group_key     text        NOT NULL,
    body          bytea       NOT NULL,
    receive_count int         NOT NULL,
    sent_at       timestamptz NOT NULL,
    dead_at       timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS queue_dead_letters_queue ON queue_dead_letters (queue, dead_at);
`

// PG is a Postgres-backed Queue. Leasing uses FOR UPDATE SKIP LOCKED so any
// number of consumers can poll the same queue
type PG struct {
	db  store.TxRunner
	opt Options
}

var _ Queue = (*PG)(nil)

// NewPG binds a queue to db
func NewPG(db store.TxRunner, opt Options) *PG {
	return &PG{db: db, opt: opt.withDefaults()}
}

// EnsureSchema applies Schema
func (q *PG) EnsureSchema(ctx context.Context) error {
	_, err := q.db.Exec(ctx, Schema)
	return perr.FromPostgres(err, "queue schema")
}

// Send inserts one message, visible immediately
func (q *PG) Send(ctx context.Context, in SendInput) (Receipt, error) {
	const sqlq = `
        INSERT INTO queue_messages (id, queue, group_key, body)
        VALUES ($1, $2, $3, $4)
        RETURNING sent_at`
	id := uuid.NewString()
	var sentAt time.Time
	if err := q.db.QueryRow(ctx, sqlq, id, q.opt.Name, in.GroupKey, in.Body).Scan(&sentAt); err != nil {
		return Receipt{}, perr.FromPostgres(err, "queue send")
	}
	metrics().sent.WithLabelValues(q.opt.Name).Inc()
	return Receipt{ID: id, SentAt: sentAt}, nil
}

// Receive moves exhausted messages to the dead-letter table, then leases up to max
func (q *PG) Receive(ctx context.Context, max int, visibility time.Duration) ([]Delivery, error) {
	if max <= 0 {
		return nil, nil
	}
	if visibility <= 0 {
		visibility = q.opt.Visibility
	}

	const deadLetter = `
        WITH dead AS (
            DELETE FROM queue_messages
             WHERE id IN (
                SELECT id FROM queue_messages
                 WHERE queue = $1
                   AND visible_at <= now()
                   AND receive_count >= $2
                 ORDER BY visible_at
                 LIMIT $3
                 FOR UPDATE SKIP LOCKED)
            RETURNING id, group_key, body, receive_count, sent_at
        )
        INSERT INTO queue_dead_letters (id, queue, source_queue, group_key, body, receive_count, sent_at)
        SELECT id, $4, $1, group_key, body, receive_count, sent_at FROM dead`

	const lease = `
        WITH ready AS (
            SELECT id FROM queue_messages
             WHERE queue = $1
               AND visible_at <= now()
               AND receive_count < $2
             ORDER BY visible_at, sent_at
             LIMIT $3
             FOR UPDATE SKIP LOCKED
        )
        UPDATE queue_messages m
           SET receive_count = m.receive_count + 1,
               visible_at    = now() + ($4::bigint * interval '1 millisecond'),
               delivery_id   = gen_random_uuid()
          FROM ready
         WHERE m.id = ready.id
        RETURNING m.delivery_id::text, m.id::text, m.group_key, m.body, m.receive_count, m.sent_at, m.visible_at`

	var (
		out  []Delivery
		dead int64
	)
	err := q.db.Tx(ctx, func(tx store.RowQuerier) error {
		tag, err := tx.Exec(ctx, deadLetter, q.opt.Name, q.opt.Redrive.MaxReceiveCount, max*4, q.opt.Redrive.TargetQueue)
		if err != nil {
			return err
		}
		dead = tag.RowsAffected()

		out, err = store.Many(ctx, tx, scanDelivery, lease,
			q.opt.Name, q.opt.Redrive.MaxReceiveCount, max, visibility.Milliseconds())
		return err
	})
	if err != nil {
		return nil, perr.FromPostgres(err, "queue receive")
	}
	metrics().deadLettered.WithLabelValues(q.opt.Name).Add(float64(dead))
	metrics().received.WithLabelValues(q.opt.Name).Add(float64(len(out)))
	return out, nil
}

func scanDelivery(r store.Row) (Delivery, error) {
	var d Delivery
	err := r.Scan(&d.MessageID, &d.ID, &d.GroupKey, &d.Body, &d.ReceiveCount, &d.SentAt, &d.LeaseUntil)
	return d, err
}

// Ack deletes messages whose current lease matches; stale ids are ignored
func (q *PG) Ack(ctx context.Context, messageIDs ...string) error {
	ids := validIDs(messageIDs)
	if len(ids) == 0 {
		return nil
	}
	const sqlq = `
        DELETE FROM queue_messages
         WHERE queue = $1
           AND delivery_id = ANY($2::uuid[])
           AND visible_at > now()`
	tag, err := q.db.Exec(ctx, sqlq, q.opt.Name, ids)
	if err != nil {
		return perr.FromPostgres(err, "queue ack")
	}
	metrics().acked.WithLabelValues(q.opt.Name).Add(float64(tag.RowsAffected()))
	return nil
}

// Release ends the lease early; the message becomes visible after RetryDelay
func (q *PG) Release(ctx context.Context, messageIDs ...string) error {
	ids := validIDs(messageIDs)
	if len(ids) == 0 {
		return nil
	}
	const sqlq = `
        UPDATE queue_messages
           SET visible_at  = now() + ($3::bigint * interval '1 millisecond'),
               delivery_id = NULL
         WHERE queue = $1
           AND delivery_id = ANY($2::uuid[])
           AND visible_at > now()`
	tag, err := q.db.Exec(ctx, sqlq, q.opt.Name, ids, q.opt.RetryDelay.Milliseconds())
	if err != nil {
		return perr.FromPostgres(err, "queue release")
	}
	metrics().released.WithLabelValues(q.opt.Name).Add(float64(tag.RowsAffected()))
	return nil
}

// DeadLetters lists parked messages for the policy's target queue, oldest first
func (q *PG) DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}
	const sqlq = `
        SELECT id::text, source_queue, group_key, body, receive_count, sent_at, dead_at
          FROM queue_dead_letters
         WHERE queue = $1
         ORDER BY dead_at, id
         LIMIT $2`
	out, err := store.Many(ctx, q.db, func(r store.Row) (DeadLetter, error) {
		var d DeadLetter
		err := r.Scan(&d.ID, &d.SourceQueue, &d.GroupKey, &d.Body, &d.ReceiveCount, &d.SentAt, &d.DeadAt)
		return d, err
	}, sqlq, q.opt.Redrive.TargetQueue, limit)
	return out, perr.FromPostgres(err, "queue dead letters")
}

// Redrive moves the named dead letters back to their source queue with a fresh receive budget
func (q *PG) Redrive(ctx context.Context, ids ...string) (int, error) {
	valid := validIDs(ids)
	if len(valid) == 0 {
		return 0, nil
	}
	const sqlq = `
        WITH moved AS (
            DELETE FROM queue_dead_letters
             WHERE queue = $1
               AND id = ANY($2::uuid[])
            RETURNING id, source_queue, group_key, body, sent_at
        )
        INSERT INTO queue_messages (id, queue, group_key, body, receive_count, visible_at, sent_at)
        SELECT id, source_queue, group_key, body, 0, now(), sent_at FROM moved`
	tag, err := q.db.Exec(ctx, sqlq, q.opt.Redrive.TargetQueue, valid)
	if err != nil {
		return 0, perr.FromPostgres(err, "queue redrive")
	}
	n := int(tag.RowsAffected())
	metrics().redriven.WithLabelValues(q.opt.Name).Add(float64(n))
	return n, nil
}

// validIDs drops anything that is not a uuid so a junk id cannot fail the whole statement
func validIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			out = append(out, id)
		}
	}
	return out
}
