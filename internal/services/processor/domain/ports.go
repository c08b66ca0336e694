package domain

import "context"

// Ledger records which orders were fulfilled, keyed by orderId. owner is the delivery
// holding the claim; only the owner may complete or abandon it
type Ledger interface {
	Begin(ctx context.Context, orderID, owner string) (Claim, error)
	Complete(ctx context.Context, orderID, owner string) error
	Abandon(ctx context.Context, orderID, owner string) error
}

// Fulfiller performs the downstream side effect for one order
type Fulfiller interface {
	Fulfill(ctx context.Context, f Fulfillment) error
}

// ProcessorPort is implemented by the processor service
type ProcessorPort interface {
	// Process runs the batch and returns its outcome. It never panics and never returns
	// an id that is not in batch
	Process(ctx context.Context, batch []Message) Outcome
	// ProcessEach is Process with onSuccess called as soon as each message succeeds
	ProcessEach(ctx context.Context, batch []Message, onSuccess func(messageID string)) Outcome
}
