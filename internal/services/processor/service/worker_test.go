package service

import (
	"context"
	"testing"
	"time"

	"poshub/internal/platform/queue"
	"poshub/internal/services/processor/domain"
	"poshub/internal/services/processor/repo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sendAll(t *testing.T, q queue.Queue, msgs ...domain.Message) {
	t.Helper()
	for _, m := range msgs {
		_, err := q.Send(context.Background(), queue.SendInput{Body: m.Body})
		require.NoError(t, err)
	}
}

func TestWorkerAcksAndReleases(t *testing.T) {
	q := queue.NewMemory(queue.Options{Redrive: queue.RedrivePolicy{MaxReceiveCount: 2}})
	s := &sink{}
	p := New(repo.NewMemory(time.Minute, nil), s, Options{})
	w := NewWorker(q, p, WorkerOptions{BatchSize: 10, Visibility: time.Second})
	ctx := context.Background()

	sendAll(t, q, msg("", "A", "1"), msg("", "B", "-1"), msg("", "C", "2"))

	n, err := w.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	live, dead := q.Len()
	assert.Equal(t, 1, live, "successes are acked, the poison order is released")
	assert.Zero(t, dead)

	// second failure reaches the receive limit; the queue dead-letters it on the next receive
	_, err = w.Tick(ctx)
	require.NoError(t, err)
	n, err = w.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	live, dead = q.Len()
	assert.Zero(t, live)
	assert.Equal(t, 1, dead)

	dls, err := q.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dls, 1)
	assert.Equal(t, 2, dls[0].ReceiveCount)
	assert.Equal(t, 1, s.count("A"))
	assert.Equal(t, 1, s.count("C"))
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	q := queue.NewMemory(queue.Options{})
	s := &sink{}
	w := NewWorker(q, New(repo.NewMemory(time.Minute, nil), s, Options{}), WorkerOptions{PollInterval: 5 * time.Millisecond})
	sendAll(t, q, msg("", "A", "1"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return s.count("A") == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorkerSurvivesTransientCompleteFailure(t *testing.T) {
	q := queue.NewMemory(queue.Options{Redrive: queue.RedrivePolicy{MaxReceiveCount: 3}})
	l := &flakyLedger{Memory: repo.NewMemory(5*time.Minute, nil), failures: 1}
	s := &sink{}
	w := NewWorker(q, New(l, s, Options{CompleteBackoff: time.Millisecond}), WorkerOptions{BatchSize: 10, Visibility: time.Second})
	ctx := context.Background()

	sendAll(t, q, msg("", "A", "10"))
	for range 4 {
		_, err := w.Tick(ctx)
		require.NoError(t, err)
	}

	live, dead := q.Len()
	assert.Zero(t, live)
	assert.Zero(t, dead, "a fulfilled order must not be dead-lettered")
	assert.True(t, l.Done("A"))
	assert.Equal(t, 1, s.count("A"))
}
