package service

import (
	"context"
	"time"

	"poshub/internal/platform/logger"
	"poshub/internal/platform/queue"
	"poshub/internal/services/processor/domain"
)

// WorkerOptions control the polling loop
type WorkerOptions struct {
	BatchSize    int
	Visibility   time.Duration
	PollInterval time.Duration
}

// Worker pulls batches from a queue and settles them: successes are acked as they finish,
// failures are released for redelivery. Dead-lettering is left to the queue's redrive policy
type Worker struct {
	q   queue.Queue
	p   domain.ProcessorPort
	opt WorkerOptions
}

// NewWorker constructs the worker
func NewWorker(q queue.Queue, p domain.ProcessorPort, opt WorkerOptions) *Worker {
	if q == nil || p == nil {
		panic("processor.Worker requires a queue and a processor")
	}
	if opt.BatchSize <= 0 {
		opt.BatchSize = 10
	}
	if opt.Visibility <= 0 {
		opt.Visibility = 30 * time.Second
	}
	if opt.PollInterval <= 0 {
		opt.PollInterval = 500 * time.Millisecond
	}
	return &Worker{q: q, p: p, opt: opt}
}

// Run polls until ctx is cancelled. A full batch is followed by another poll right away
func (w *Worker) Run(ctx context.Context) error {
	log := logger.Named("processor-worker")
	log.Info().
		Int("batch_size", w.opt.BatchSize).
		Dur("visibility", w.opt.Visibility).
		Msg("worker started")

	ticker := time.NewTicker(w.opt.PollInterval)
	defer ticker.Stop()

	for {
		n, err := w.Tick(ctx)
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("receive failed")
		}
		if ctx.Err() != nil {
			log.Info().Msg("worker stopped")
			return nil
		}
		if n == w.opt.BatchSize {
			continue
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick receives and settles one batch and returns its size
func (w *Worker) Tick(ctx context.Context) (int, error) {
	ds, err := w.q.Receive(ctx, w.opt.BatchSize, w.opt.Visibility)
	if err != nil || len(ds) == 0 {
		return 0, err
	}

	batch := make([]domain.Message, len(ds))
	for i, d := range ds {
		batch[i] = domain.Message{MessageID: d.MessageID, Body: d.Body, ReceiveCount: d.ReceiveCount}
	}

	// settle while we still hold the lease
	settleCtx := context.WithoutCancel(ctx)
	bctx, cancel := context.WithTimeout(ctx, w.opt.Visibility*4/5)
	out := w.p.ProcessEach(bctx, batch, func(id string) {
		w.settle(settleCtx, "ack", id)
	})
	cancel()

	if len(out.FailedMessageIDs) > 0 {
		w.settle(settleCtx, "release", out.FailedMessageIDs...)
	}
	return len(ds), nil
}

func (w *Worker) settle(ctx context.Context, action string, ids ...string) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var err error
	if action == "ack" {
		err = w.q.Ack(ctx, ids...)
	} else {
		err = w.q.Release(ctx, ids...)
	}
	if err != nil {
		// the lease lapses on its own; the ledger absorbs a redelivered success
		logger.Named("processor-worker").Warn().Err(err).Str("action", action).Strs("message_ids", ids).Msg("settle failed")
		return
	}
	metrics().acked.WithLabelValues(action).Add(float64(len(ids)))
}
