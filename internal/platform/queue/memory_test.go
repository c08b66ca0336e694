package queue

import (
	"context"
	"testing"
	"time"

	"poshub/internal/platform/config"
	"poshub/internal/platform/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

func newMem(maxReceive int) (*Memory, *testkit.Clock) {
	clk := testkit.NewClock(t0)
	q := NewMemory(Options{
		Name:       "orders",
		Redrive:    RedrivePolicy{MaxReceiveCount: maxReceive, TargetQueue: "orders-dlq"},
		Visibility: 30 * time.Second,
	}, WithClock(clk.Now))
	return q, clk
}

func send(t *testing.T, q Queue, key string) Receipt {
	t.Helper()
	r, err := q.Send(context.Background(), SendInput{Body: []byte(`{"orderId":"` + key + `"}`), GroupKey: key})
	require.NoError(t, err)
	return r
}

func TestReceiveLeasesInOrderAndHides(t *testing.T) {
	q, clk := newMem(3)
	ctx := context.Background()
	a := send(t, q, "a")
	clk.Advance(time.Millisecond)
	send(t, q, "b")
	clk.Advance(time.Millisecond)
	send(t, q, "c")

	got, err := q.Receive(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].ID)
	assert.Equal(t, "b", got[1].GroupKey)
	assert.Equal(t, 1, got[0].ReceiveCount)
	assert.Equal(t, clk.Now().Add(30*time.Second), got[0].LeaseUntil)

	rest, err := q.Receive(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", rest[0].GroupKey)
}

func TestMessageIDChangesPerDelivery(t *testing.T) {
	q, clk := newMem(5)
	ctx := context.Background()
	send(t, q, "a")

	first, _ := q.Receive(ctx, 1, time.Second)
	clk.Advance(time.Second)
	second, _ := q.Receive(ctx, 1, time.Second)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.NotEqual(t, first[0].MessageID, second[0].MessageID)
	assert.Equal(t, 2, second[0].ReceiveCount)

	// the expired lease's ack must not delete the live delivery
	require.NoError(t, q.Ack(ctx, first[0].MessageID))
	live, _ := q.Len()
	assert.Equal(t, 1, live)

	require.NoError(t, q.Ack(ctx, second[0].MessageID))
	live, _ = q.Len()
	assert.Equal(t, 0, live)
}

func TestReleaseHonorsRetryDelay(t *testing.T) {
	clk := testkit.NewClock(t0)
	q := NewMemory(Options{RetryDelay: 5 * time.Second}, WithClock(clk.Now))
	ctx := context.Background()
	send(t, q, "a")

	got, _ := q.Receive(ctx, 1, time.Minute)
	require.NoError(t, q.Release(ctx, got[0].MessageID))

	none, _ := q.Receive(ctx, 1, time.Minute)
	assert.Empty(t, none)

	clk.Advance(5 * time.Second)
	again, _ := q.Receive(ctx, 1, time.Minute)
	require.Len(t, again, 1)
	assert.Equal(t, 2, again[0].ReceiveCount)
}

func TestRedrivePolicyDeadLettersAfterMaxReceives(t *testing.T) {
	q, _ := newMem(2)
	ctx := context.Background()
	poison := send(t, q, "poison")

	for i := 1; i <= 2; i++ {
		got, err := q.Receive(ctx, 10, time.Second)
		require.NoError(t, err)
		require.Len(t, got, 1, "delivery %d", i)
		require.NoError(t, q.Release(ctx, got[0].MessageID))
	}

	got, err := q.Receive(ctx, 10, time.Second)
	require.NoError(t, err)
	assert.Empty(t, got)

	dead, err := q.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, poison.ID, dead[0].ID)
	assert.Equal(t, "orders", dead[0].SourceQueue)
	assert.Equal(t, 2, dead[0].ReceiveCount)

	n, err := q.Redrive(ctx, poison.ID, "unknown")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	back, err := q.Receive(ctx, 10, time.Second)
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, 1, back[0].ReceiveCount)
	live, deadN := q.Len()
	assert.Equal(t, 1, live)
	assert.Equal(t, 0, deadN)
}

func TestSendHonorsCancellation(t *testing.T) {
	q, _ := newMem(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Send(ctx, SendInput{Body: []byte("x")})
	require.Error(t, err)
	live, _ := q.Len()
	assert.Zero(t, live)
}

func TestSendCopiesBody(t *testing.T) {
	q, _ := newMem(3)
	body := []byte("abc")
	_, err := q.Send(context.Background(), SendInput{Body: body})
	require.NoError(t, err)
	body[0] = 'z'

	got, _ := q.Receive(context.Background(), 1, 0)
	assert.Equal(t, "abc", string(got[0].Body))
}

func TestFromConfig(t *testing.T) {
	t.Setenv("QUEUE_NAME", "pos-orders")
	t.Setenv("QUEUE_MAX_RECEIVE_COUNT", "5")
	t.Setenv("QUEUE_RETRY_DELAY", "2s")
	o := FromConfig(config.New())
	assert.Equal(t, "pos-orders", o.Name)
	assert.Equal(t, RedrivePolicy{MaxReceiveCount: 5, TargetQueue: "orders-dlq"}, o.Redrive)
	assert.Equal(t, 30*time.Second, o.Visibility)
	assert.Equal(t, 2*time.Second, o.RetryDelay)

	d := Options{Name: "x"}.withDefaults()
	assert.Equal(t, "x-dlq", d.Redrive.TargetQueue)
}
