// Package service implements the batch consumer: each message is decoded, checked
// against the poison rule and fulfilled at most once per orderId
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"poshub/internal/core/order"
	"poshub/internal/platform/logger"
	"poshub/internal/platform/net/http/bind"
	"poshub/internal/services/processor/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("poshub/processor")

// Options control the processor
type Options struct {
	// MaxConcurrency caps workers per batch; the pool is min(len(batch), MaxConcurrency)
	MaxConcurrency int
	// MessageTimeout bounds one message end to end
	MessageTimeout time.Duration
	// CompleteBackoff is the base pause between ledger Complete attempts
	CompleteBackoff time.Duration
	// Now overrides time.Now
	Now func() time.Time
}

// Processor implements domain.ProcessorPort
type Processor struct {
	ledger domain.Ledger
	sink   domain.Fulfiller
	opt    Options
}

var _ domain.ProcessorPort = (*Processor)(nil)

// New constructs the processor
func New(ledger domain.Ledger, sink domain.Fulfiller, opt Options) *Processor {
	if ledger == nil {
		panic("processor requires a non nil Ledger")
	}
	if sink == nil {
		panic("processor requires a non nil Fulfiller")
	}
	if opt.MaxConcurrency <= 0 {
		opt.MaxConcurrency = 10
	}
	if opt.MessageTimeout <= 0 {
		opt.MessageTimeout = 5 * time.Second
	}
	if opt.CompleteBackoff <= 0 {
		opt.CompleteBackoff = 50 * time.Millisecond
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	return &Processor{ledger: ledger, sink: sink, opt: opt}
}

// Process runs the batch and returns the deliveries to retry
func (p *Processor) Process(ctx context.Context, batch []domain.Message) domain.Outcome {
	return p.ProcessEach(ctx, batch, nil)
}

// ProcessEach runs every message independently on a bounded pool. onSuccess, when set,
// is called once per successful message as soon as it finishes; a panicking onSuccess
// marks that message failed. A fault outside the per-message path fails the whole batch
func (p *Processor) ProcessEach(ctx context.Context, batch []domain.Message, onSuccess func(messageID string)) (out domain.Outcome) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "processor.batch", trace.WithAttributes(attribute.Int("batch.size", len(batch))))
	defer span.End()

	defer func() {
		if v := recover(); v != nil {
			metrics().batchPanics.Inc()
			logger.C(ctx).Error().
				Str("panic", fmt.Sprint(v)).
				Bytes("stack", debug.Stack()).
				Int("batch_size", len(batch)).
				Msg("batch failed as a whole")
			span.SetStatus(codes.Error, "batch panic")
			out = failAll(batch)
		}
		metrics().batch.Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.Int("batch.failed", len(out.FailedMessageIDs)))
	}()

	if len(batch) == 0 {
		return domain.Outcome{}
	}

	failed := make([]bool, len(batch))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for range min(len(batch), p.opt.MaxConcurrency) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				m := batch[i]
				if err := p.handle(ctx, m); err != nil {
					failed[i] = true
					continue
				}
				if onSuccess != nil && !settle(ctx, onSuccess, m.MessageID) {
					failed[i] = true
				}
			}
		}()
	}
	for i := range batch {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return collect(batch, failed)
}

// handle runs one message; every fault comes back as an error
func (p *Processor) handle(ctx context.Context, m domain.Message) (err error) {
	ctx, cancel := context.WithTimeout(ctx, p.opt.MessageTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "processor.message", trace.WithAttributes(
		attribute.String("messaging.message.id", m.MessageID),
		attribute.Int("messaging.receive_count", m.ReceiveCount),
	))
	defer span.End()

	log := logger.C(ctx).With().Str("message_id", m.MessageID).Int("receive_count", m.ReceiveCount).Logger()
	result := resultError
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("processor: panic: %v", v)
			result = resultPanic
			log.Error().Str("panic", fmt.Sprint(v)).Bytes("stack", debug.Stack()).Msg("message panicked")
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
		metrics().messages.WithLabelValues(result).Inc()
	}()

	if err := ctx.Err(); err != nil {
		result = resultTimeout
		return err
	}

	env, err := order.Decode(m.Body)
	if err == nil {
		env.Order = env.Order.Normalize()
		if verr := bind.Validate(env.Order); verr != nil {
			err = fmt.Errorf("%w: %v", domain.ErrMalformed, verr)
		}
	}
	if err != nil {
		result = resultMalformed
		log.Warn().Err(err).Msg("malformed message")
		return err
	}

	log = log.With().Str("order_id", env.Order.OrderID).Logger()
	span.SetAttributes(attribute.String("order.id", env.Order.OrderID))

	if err := env.Check(); err != nil {
		result = resultPoison
		log.Warn().Err(err).Msg("order rejected")
		return err
	}

	claim, err := p.ledger.Begin(ctx, env.Order.OrderID, m.MessageID)
	if err != nil {
		result = classify(err)
		log.Warn().Err(err).Msg("ledger begin failed")
		return err
	}
	switch claim {
	case domain.ClaimDone:
		result = resultDuplicate
		log.Info().Msg("order already fulfilled")
		return nil
	case domain.ClaimInFlight:
		result = resultInFlight
		log.Info().Msg("order claimed by another delivery")
		return domain.ErrInFlight
	}

	if err := p.sink.Fulfill(ctx, domain.FulfillmentOf(env, m.MessageID, p.opt.Now().UTC())); err != nil {
		result = classify(err)
		log.Warn().Err(err).Msg("fulfillment failed")
		p.abandon(ctx, env.Order.OrderID, m.MessageID)
		return err
	}

	// the side effect happened; record it even if the message deadline just passed
	if err := p.complete(ctx, env.Order.OrderID, m.MessageID); err != nil {
		result = classify(err)
		log.Error().Err(err).Msg("ledger complete failed")
		return err
	}

	result = resultOK
	log.Debug().Msg("order fulfilled")
	return nil
}

// completeAttempts bounds Complete retries. Until Complete lands the claim stays with this
// delivery, and redeliveries see it as in flight until the claim TTL lapses
const completeAttempts = 3

func (p *Processor) complete(ctx context.Context, orderID, owner string) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opt.MessageTimeout)
	defer cancel()

	var err error
	for attempt := 1; attempt <= completeAttempts; attempt++ {
		if err = p.ledger.Complete(cctx, orderID, owner); err == nil {
			return nil
		}
		if attempt == completeAttempts {
			break
		}
		logger.C(ctx).Warn().Err(err).Str("order_id", orderID).Int("attempt", attempt).Msg("ledger complete retry")
		select {
		case <-cctx.Done():
			return err
		case <-time.After(p.opt.CompleteBackoff * time.Duration(attempt)):
		}
	}
	return err
}

func (p *Processor) abandon(ctx context.Context, orderID, owner string) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := p.ledger.Abandon(actx, orderID, owner); err != nil {
		logger.C(ctx).Warn().Err(err).Str("order_id", orderID).Msg("ledger abandon failed")
	}
}

func classify(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return resultTimeout
	}
	return resultError
}

// settle calls onSuccess and reports whether it returned normally
func settle(ctx context.Context, onSuccess func(string), id string) (ok bool) {
	defer func() {
		if v := recover(); v != nil {
			logger.C(ctx).Error().Str("panic", fmt.Sprint(v)).Str("message_id", id).Msg("success callback panicked")
			ok = false
		}
	}()
	onSuccess(id)
	return true
}

// collect keeps batch order and reports each id once
func collect(batch []domain.Message, failed []bool) domain.Outcome {
	var out domain.Outcome
	seen := make(map[string]struct{}, len(batch))
	for i, m := range batch {
		if !failed[i] {
			continue
		}
		if _, dup := seen[m.MessageID]; dup {
			continue
		}
		seen[m.MessageID] = struct{}{}
		out.FailedMessageIDs = append(out.FailedMessageIDs, m.MessageID)
	}
	return out
}

func failAll(batch []domain.Message) domain.Outcome {
	all := make([]bool, len(batch))
	for i := range all {
		all[i] = true
	}
	return collect(batch, all)
}
