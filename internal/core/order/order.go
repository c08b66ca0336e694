// Package order defines the order-accepted event and its queue envelope.
// Publisher and consumer share this wire shape
package order

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// PoisonAmount is the business sentinel: an order carrying it can never be fulfilled
var PoisonAmount = decimal.NewFromInt(-1)

var (
	// ErrMalformed means the body is not an order event
	ErrMalformed = errors.New("order: malformed payload")
	// ErrPoison means the order carries PoisonAmount
	ErrPoison = errors.New("order: poison order")
)

// Event is an accepted order. It is immutable once published; OrderID is the
// idempotency key downstream
type Event struct {
	OrderID     string          `json:"orderId"            validate:"required,max=64"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    string          `json:"currency"           validate:"required,iso4217"`
	CreatedAt   time.Time       `json:"createdAt"          validate:"required"`
	Source      string          `json:"source,omitempty"   validate:"omitempty,max=64"`
}

// MarshalJSON writes totalAmount as a JSON number
func (e Event) MarshalJSON() ([]byte, error) {
	type wire struct {
		OrderID     string      `json:"orderId"`
		TotalAmount json.Number `json:"totalAmount"`
		Currency    string      `json:"currency"`
		CreatedAt   time.Time   `json:"createdAt"`
		Source      string      `json:"source,omitempty"`
	}
	return json.Marshal(wire{
		OrderID:     e.OrderID,
		TotalAmount: json.Number(e.TotalAmount.String()),
		Currency:    e.Currency,
		CreatedAt:   e.CreatedAt,
		Source:      e.Source,
	})
}

// IsPoison reports whether the amount equals PoisonAmount
func (e Event) IsPoison() bool { return e.TotalAmount.Equal(PoisonAmount) }

// Normalize trims the id and canonicalizes the currency code. An unknown code
// is left upper-cased so validation reports it
func (e Event) Normalize() Event {
	e.OrderID = strings.TrimSpace(e.OrderID)
	e.Currency = strings.ToUpper(strings.TrimSpace(e.Currency))
	if u, err := currency.ParseISO(e.Currency); err == nil {
		e.Currency = u.String()
	}
	e.Source = strings.TrimSpace(e.Source)
	return e
}

// Envelope is the queue body: the order plus where and when it was accepted
type Envelope struct {
	Order       Event     `json:"order"`
	Source      string    `json:"source"`
	Date        time.Time `json:"date"`
	RequestedBy string    `json:"requestedBy,omitempty"`
}

// Decode reads a queue body. Both the envelope and a bare order are accepted.
// The result has a non-empty OrderID and a non-zero CreatedAt or the error is ErrMalformed
func Decode(body []byte) (Envelope, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return Envelope{}, ErrMalformed
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return Envelope{}, ErrMalformed
	}

	var env Envelope
	if raw, ok := probe["order"]; ok {
		if err := json.Unmarshal(body, &env); err != nil || len(raw) == 0 {
			return Envelope{}, ErrMalformed
		}
	} else if err := json.Unmarshal(body, &env.Order); err != nil {
		return Envelope{}, ErrMalformed
	}

	if strings.TrimSpace(env.Order.OrderID) == "" || env.Order.CreatedAt.IsZero() {
		return Envelope{}, ErrMalformed
	}
	if _, ok := probe["totalAmount"]; !ok && !hasAmount(probe["order"]) {
		return Envelope{}, ErrMalformed
	}
	return env, nil
}

func hasAmount(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var m map[string]json.RawMessage
	if json.Unmarshal(raw, &m) != nil {
		return false
	}
	_, ok := m["totalAmount"]
	return ok
}

// Check applies the consumer's business rule
func (e Envelope) Check() error {
	if e.Order.IsPoison() {
		return ErrPoison
	}
	return nil
}
