// Package fulfill holds the downstream sinks an accepted order is forwarded to
package fulfill

import (
	"context"

	"poshub/internal/platform/logger"
	"poshub/internal/platform/store"
	"poshub/internal/services/processor/domain"
)

// Table is the ClickHouse fulfillment table
const Table = "order_fulfillments"

// Schema dedups on order_id at merge time, so a replayed insert converges to one row
const Schema = `
CREATE TABLE IF NOT EXISTS order_fulfillments (
	order_id      String,
	message_id    String,
	total_amount  Decimal(18, 4),
	currency      LowCardinality(String),
	created_at    DateTime64(3, 'UTC'),
	source        LowCardinality(String),
	requested_by  String,
	processed_at  DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree(processed_at)
ORDER BY order_id`

// ClickHouse writes one row per fulfilled order
type ClickHouse struct {
	db store.Clickhouse
}

// NewClickHouse builds the sink
func NewClickHouse(db store.Clickhouse) *ClickHouse {
	if db == nil {
		panic("fulfill: ClickHouse requires a connection")
	}
	return &ClickHouse{db: db}
}

// EnsureSchema creates the table
func (c *ClickHouse) EnsureSchema(ctx context.Context) error { return c.db.Exec(ctx, Schema) }

// Fulfill inserts f
func (c *ClickHouse) Fulfill(ctx context.Context, f domain.Fulfillment) error {
	return c.db.InsertBatch(ctx, Table, [][]any{{
		f.OrderID,
		f.MessageID,
		f.TotalAmount,
		f.Currency,
		f.CreatedAt.UTC(),
		f.Source,
		f.RequestedBy,
		f.ProcessedAt.UTC(),
	}})
}

// Log writes fulfilled orders to the log; used when no ClickHouse is configured
type Log struct{}

// Fulfill logs f
func (Log) Fulfill(ctx context.Context, f domain.Fulfillment) error {
	logger.C(ctx).Info().
		Str("order_id", f.OrderID).
		Str("message_id", f.MessageID).
		Str("total_amount", f.TotalAmount.String()).
		Str("currency", f.Currency).
		Str("source", f.Source).
		Msg("order fulfilled")
	return nil
}

var (
	_ domain.Fulfiller = (*ClickHouse)(nil)
	_ domain.Fulfiller = Log{}
)
