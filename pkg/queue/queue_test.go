package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(opts ...Option) *Queue {
	return NewQueue(NewMemStore(), opts...)
}

func TestEnqueueOutbound(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue()

	id, err := q.EnqueueOutbound(ctx, []byte("payload"), "did:peer:4zQmPeer", EnqueueOptions{})
	require.NoError(t, err)

	m, err := q.Get(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, m.Status)
	assert.Equal(t, DirectionOutbound, m.Direction)
	assert.Equal(t, "did:peer:4zQmPeer", m.Peer)
	assert.Equal(t, 0, m.RetryCount)
	assert.Equal(t, DefaultConfig().MaxRetries, m.MaxRetries)
	assert.WithinDuration(t, m.CreatedAt.Add(DefaultConfig().DefaultTTL), m.ExpiresAt, time.Second)
	assert.False(t, m.NextRetryAt.After(time.Now()))
}

func TestEnqueueOutboundImmediate(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue()

	id, err := q.EnqueueOutbound(ctx, []byte("payload"), "peer", EnqueueOptions{Immediate: true})
	require.NoError(t, err)

	m, err := q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, m.Status)
}

func TestEnqueueOutboundCapacity(t *testing.T) {
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.MaxSize = 5
	q := newTestQueue(WithConfig(cfg))

	for i := 0; i < cfg.MaxSize; i++ {
		_, err := q.EnqueueOutbound(ctx, []byte("payload"), "peer", EnqueueOptions{})
		require.NoError(t, err)
	}

	_, err := q.EnqueueOutbound(ctx, []byte("payload"), "peer", EnqueueOptions{})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestEnqueueInbound(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue()

	id, err := q.EnqueueInbound(ctx, []byte("payload"), "did:peer:4zQmSender", "env-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "env-1", id)

	m, err := q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, DirectionInbound, m.Direction)

	// inbound messages are never retried
	assert.Equal(t, 0, m.MaxRetries)

	require.NoError(t, q.MarkAsFailed(ctx, id, "processing failed"))

	m, err = q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, m.Status)
	assert.Equal(t, "processing failed", m.LastError)
}

func TestEnqueueInboundDedupe(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue()

	_, err := q.EnqueueInbound(ctx, []byte("payload"), "peer", "env-1", nil)
	require.NoError(t, err)

	_, err = q.EnqueueInbound(ctx, []byte("payload"), "peer", "env-1", nil)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMarkAsFailedBackoff(t *testing.T) {
	now := time.Now()
	ctx := context.Background()
	q := newTestQueue(WithClock(func() time.Time { return now }))

	id, err := q.EnqueueOutbound(ctx, []byte("payload"), "peer", EnqueueOptions{})
	require.NoError(t, err)

	require.NoError(t, q.MarkAsFailed(ctx, id, "connect refused"))

	m, err := q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, m.Status)
	assert.Equal(t, 1, m.RetryCount)
	assert.Equal(t, "connect refused", m.LastError)

	// delay doubles per attempt, capped at RetryMax
	first := m.NextRetryAt.Sub(now)
	assert.True(t, first >= DefaultConfig().RetryInitial)

	require.NoError(t, q.MarkAsFailed(ctx, id, "connect refused"))
	m, _ = q.Get(ctx, id)
	second := m.NextRetryAt.Sub(now)
	assert.True(t, second > first)
	assert.True(t, second <= DefaultConfig().RetryMax)
}

func TestMarkAsFailedExhaustion(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue()

	maxRetries := 3
	id, err := q.EnqueueOutbound(ctx, []byte("payload"), "peer", EnqueueOptions{MaxRetries: &maxRetries})
	require.NoError(t, err)

	for i := 0; i < maxRetries+1; i++ {
		require.NoError(t, q.MarkAsFailed(ctx, id, "unreachable"))
	}

	m, err := q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, m.Status)
	assert.Equal(t, maxRetries, m.RetryCount)
	assert.True(t, m.Terminal())
}

func TestMarkAsSentThenDelivered(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue()

	id, err := q.EnqueueOutbound(ctx, []byte("payload"), "peer", EnqueueOptions{})
	require.NoError(t, err)

	require.NoError(t, q.MarkAsSent(ctx, id))

	m, _ := q.Get(ctx, id)
	assert.Equal(t, StatusSent, m.Status)
	require.NotNil(t, m.SentAt)

	require.NoError(t, q.MarkAsDelivered(ctx, id))

	m, _ = q.Get(ctx, id)
	assert.Equal(t, StatusDelivered, m.Status)
	require.NotNil(t, m.DeliveredAt)
}

func TestMarkAsFailedThenDelivered(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue()

	id, err := q.EnqueueOutbound(ctx, []byte("payload"), "peer", EnqueueOptions{})
	require.NoError(t, err)

	require.NoError(t, q.MarkAsFailed(ctx, id, "transient"))

	// unusual but legal: a late delivery confirmation wins
	require.NoError(t, q.MarkAsDelivered(ctx, id))

	m, err := q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, m.Status)
}

func TestClaimDue(t *testing.T) {
	now := time.Now()
	ctx := context.Background()
	q := newTestQueue(WithClock(func() time.Time { return now }))

	due, err := q.EnqueueOutbound(ctx, []byte("due"), "peer", EnqueueOptions{})
	require.NoError(t, err)

	backoffed, err := q.EnqueueOutbound(ctx, []byte("later"), "peer", EnqueueOptions{})
	require.NoError(t, err)
	require.NoError(t, q.MarkAsFailed(ctx, backoffed, "later"))

	claimed, err := q.ClaimDue(ctx, 0)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, due, claimed[0].ID)
	assert.Equal(t, StatusProcessing, claimed[0].Status)

	// already claimed records are not claimed again
	claimed, err = q.ClaimDue(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestExpireOverdue(t *testing.T) {
	now := time.Now()
	ctx := context.Background()

	q := newTestQueue(WithClock(func() time.Time { return now }))

	id, err := q.EnqueueOutbound(ctx, []byte("payload"), "peer", EnqueueOptions{TTL: time.Minute})
	require.NoError(t, err)

	n, err := q.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	now = now.Add(2 * time.Minute)

	n, err = q.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	m, err := q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, m.Status)
}

func TestCleanupDelivered(t *testing.T) {
	now := time.Now()
	ctx := context.Background()

	q := newTestQueue(WithClock(func() time.Time { return now }))

	id, err := q.EnqueueOutbound(ctx, []byte("payload"), "peer", EnqueueOptions{})
	require.NoError(t, err)
	require.NoError(t, q.MarkAsDelivered(ctx, id))

	n, err := q.CleanupDelivered(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	now = now.Add(DefaultConfig().Retention + time.Hour)

	n, err = q.CleanupDelivered(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = q.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatsAndQuery(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue()

	a, _ := q.EnqueueOutbound(ctx, []byte("a"), "peer-1", EnqueueOptions{})
	_, _ = q.EnqueueOutbound(ctx, []byte("b"), "peer-2", EnqueueOptions{})
	_, _ = q.EnqueueInbound(ctx, []byte("c"), "peer-1", "", nil)

	require.NoError(t, q.MarkAsSent(ctx, a))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats[StatusPending])
	assert.Equal(t, 1, stats[StatusSent])

	byPeer, err := q.List(ctx, Query{Peer: "peer-1"})
	require.NoError(t, err)
	assert.Len(t, byPeer, 2)

	limited, err := q.List(ctx, Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	outbound, err := q.List(ctx, Query{Direction: DirectionOutbound, Statuses: []Status{StatusPending, StatusSent}})
	require.NoError(t, err)
	assert.Len(t, outbound, 2)
}
