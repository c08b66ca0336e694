// Package domain holds the batch consumer types and ports
package domain

import (
	"errors"
	"slices"
	"time"

	"poshub/internal/core/order"

	"github.com/shopspring/decimal"
)

// Message is one delivered queue message. MessageID identifies this delivery, not the order
type Message struct {
	MessageID    string
	Body         []byte
	ReceiveCount int
}

// Outcome lists the deliveries that must be retried. Ids appear once, in batch order, and
// only ids from the batch appear. Anything absent counts as processed
type Outcome struct {
	FailedMessageIDs []string
}

// Failed reports whether id is in the outcome
func (o Outcome) Failed(id string) bool { return slices.Contains(o.FailedMessageIDs, id) }

// Claim is the ledger's answer to Begin
type Claim uint8

const (
	// ClaimFresh means the caller now owns the order and must fulfill it
	ClaimFresh Claim = iota
	// ClaimDone means the order was already fulfilled
	ClaimDone
	// ClaimInFlight means another delivery holds a live claim
	ClaimInFlight
)

func (c Claim) String() string {
	switch c {
	case ClaimFresh:
		return "fresh"
	case ClaimDone:
		return "done"
	case ClaimInFlight:
		return "in_flight"
	}
	return "unknown"
}

var (
	// ErrMalformed marks a body that is not an order event
	ErrMalformed = order.ErrMalformed
	// ErrPoisonOrder marks an order carrying the sentinel amount
	ErrPoisonOrder = order.ErrPoison
	// ErrInFlight marks an order claimed by another delivery
	ErrInFlight = errors.New("processor: order in flight elsewhere")
	// ErrClaimLost marks a completion after the claim expired and was taken over
	ErrClaimLost = errors.New("processor: claim lost")
)

// Fulfillment is the side effect of processing one order
type Fulfillment struct {
	OrderID     string
	MessageID   string
	TotalAmount decimal.Decimal
	Currency    string
	CreatedAt   time.Time
	Source      string
	RequestedBy string
	ProcessedAt time.Time
}

// FulfillmentOf builds the record for env delivered as messageID
func FulfillmentOf(env order.Envelope, messageID string, at time.Time) Fulfillment {
	source := env.Source
	if source == "" {
		source = env.Order.Source
	}
	return Fulfillment{
		OrderID:     env.Order.OrderID,
		MessageID:   messageID,
		TotalAmount: env.Order.TotalAmount,
		Currency:    env.Order.Currency,
		CreatedAt:   env.Order.CreatedAt,
		Source:      source,
		RequestedBy: env.RequestedBy,
		ProcessedAt: at,
	}
}
