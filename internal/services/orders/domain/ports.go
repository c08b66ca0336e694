package domain

import (
	"context"

	"poshub/internal/core/authz"
	"poshub/internal/core/order"
)

// PublisherPort is implemented by the orders service
type PublisherPort interface {
	Publish(ctx context.Context, ev order.Event, caller authz.Caller) (Receipt, error)
	PublishAll(ctx context.Context, evs []order.Event, caller authz.Caller) ([]Receipt, error)
}
