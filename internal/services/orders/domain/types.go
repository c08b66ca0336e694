// Package domain holds the order publisher types
package domain

import (
	"time"

	"poshub/internal/core/order"

	"github.com/shopspring/decimal"
)

// StatusAccepted is the only status a receipt carries; processing happens later
const StatusAccepted = "accepted"

// MaxBatch caps orders per batch request
const MaxBatch = 25

// OrderInput is the request body for one order. Currency is normalized before validation
type OrderInput struct {
	OrderID     string          `json:"orderId"     validate:"required,max=64"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    string          `json:"currency"    validate:"required,max=8"`
	CreatedAt   time.Time       `json:"createdAt"   validate:"required"`
	Source      string          `json:"source,omitempty" validate:"omitempty,max=64"`
}

// Event converts the input to the published event
func (in OrderInput) Event() order.Event {
	return order.Event{
		OrderID:     in.OrderID,
		TotalAmount: in.TotalAmount,
		Currency:    in.Currency,
		CreatedAt:   in.CreatedAt,
		Source:      in.Source,
	}.Normalize()
}

// BatchInput is the request body for several orders
type BatchInput struct {
	Orders []OrderInput `json:"orders" validate:"required,min=1,max=25,dive"`
}

// Receipt acknowledges that an order reached the queue. It says nothing about processing
type Receipt struct {
	MessageID  string    `json:"messageId"`
	OrderID    string    `json:"orderId"`
	Status     string    `json:"status"`
	AcceptedAt time.Time `json:"acceptedAt"`
}

// BatchReceipt lists one receipt per order, in request order
type BatchReceipt struct {
	Accepted []Receipt `json:"accepted"`
}
