// Package queue is the durable order queue and its dead-letter contract.
//
// A message is leased by Receive and must be acknowledged with the delivery's
// MessageID. Each lease bumps ReceiveCount and mints a fresh MessageID, so an
// ack from an expired lease is a no-op. Once ReceiveCount reaches the redrive
// policy's MaxReceiveCount the message moves to the dead-letter queue instead of
// being leased again. Consumers never dead-letter or delete on their own
package queue

import (
	"context"
	"time"

	"poshub/internal/platform/config"
)

// SendInput is one message to enqueue. GroupKey is the logical identity (the orderId)
type SendInput struct {
	Body     []byte
	GroupKey string
}

// Receipt confirms a durable send
type Receipt struct {
	ID     string
	SentAt time.Time
}

// Delivery is one leased delivery attempt of a message
type Delivery struct {
	MessageID    string // unique per delivery attempt
	ID           string // stable for the life of the message
	GroupKey     string
	Body         []byte
	ReceiveCount int
	SentAt       time.Time
	LeaseUntil   time.Time
}

// DeadLetter is a message parked after exhausting its receive budget
type DeadLetter struct {
	ID           string
	SourceQueue  string
	GroupKey     string
	Body         []byte
	ReceiveCount int
	SentAt       time.Time
	DeadAt       time.Time
}

// Queue is the producer, consumer and operator surface
type Queue interface {
	Send(ctx context.Context, in SendInput) (Receipt, error)
	Receive(ctx context.Context, max int, visibility time.Duration) ([]Delivery, error)
	Ack(ctx context.Context, messageIDs ...string) error
	Release(ctx context.Context, messageIDs ...string) error
	DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error)
	Redrive(ctx context.Context, ids ...string) (int, error)
}

// RedrivePolicy moves a message to TargetQueue after MaxReceiveCount deliveries
type RedrivePolicy struct {
	MaxReceiveCount int
	TargetQueue     string
}

// Options configures a queue
type Options struct {
	Name       string
	Redrive    RedrivePolicy
	Visibility time.Duration
	RetryDelay time.Duration
}

// FromConfig reads QUEUE_* keys
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("QUEUE_")
	return Options{
		Name: c.MayString("NAME", "orders"),
		Redrive: RedrivePolicy{
			MaxReceiveCount: max(1, c.MayInt("MAX_RECEIVE_COUNT", 3)),
			TargetQueue:     c.MayString("DLQ_NAME", "orders-dlq"),
		},
		Visibility: c.MayDuration("VISIBILITY_TIMEOUT", 30*time.Second),
		RetryDelay: c.MayDuration("RETRY_DELAY", 0),
	}
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "orders"
	}
	if o.Redrive.MaxReceiveCount < 1 {
		o.Redrive.MaxReceiveCount = 3
	}
	if o.Redrive.TargetQueue == "" {
		o.Redrive.TargetQueue = o.Name + "-dlq"
	}
	if o.Visibility <= 0 {
		o.Visibility = 30 * time.Second
	}
	return o
}
