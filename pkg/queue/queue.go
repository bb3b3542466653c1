package queue

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
)

const (
	// expected inbound volume for the dedupe filter
	dedupeEstimate  = 1 << 16
	dedupeFalsePosR = 0.01
)

var (
	// ErrQueueFull is the backpressure signal: enqueue never silently
	// drops at capacity
	ErrQueueFull = errors.New("queue at capacity")

	ErrDuplicate = errors.New("duplicate inbound message")
)

type Config struct {
	MaxSize         int
	DefaultTTL      time.Duration
	MaxRetries      int
	RetryInitial    time.Duration
	RetryMultiplier float64
	RetryMax        time.Duration
	Retention       time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxSize:         100,
		DefaultTTL:      24 * time.Hour,
		MaxRetries:      5,
		RetryInitial:    time.Second,
		RetryMultiplier: 2,
		RetryMax:        60 * time.Second,
		Retention:       7 * 24 * time.Hour,
	}
}

// Queue layers lifecycle semantics over a Store: capacity, backoff retry,
// expiry and retention. It performs no network I/O itself
type Queue struct {
	store Store
	cfg   Config

	// serialises the capacity check against concurrent enqueues
	mu sync.Mutex

	seenMu sync.Mutex
	seen   *bloom.BloomFilter

	now func() time.Time
}

type Option func(*Queue)

func WithConfig(cfg Config) Option {
	return func(q *Queue) {
		q.cfg = cfg
	}
}

// WithClock overrides time for tests
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		q.now = now
	}
}

func NewQueue(store Store, opts ...Option) *Queue {
	q := &Queue{
		store: store,
		cfg:   DefaultConfig(),
		seen:  bloom.NewWithEstimates(dedupeEstimate, dedupeFalsePosR),
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

type EnqueueOptions struct {
	MaxRetries *int
	TTL        time.Duration
	Metadata   map[string]string
	// Immediate marks the record processing from the start, signalling
	// the caller will dispatch synchronously
	Immediate bool
}

// EnqueueOutbound records a new outbound delivery, immediately eligible for
// dispatch. At capacity it fails loudly so the caller can apply
// backpressure
func (q *Queue) EnqueueOutbound(ctx context.Context, payload []byte, to string, opts EnqueueOptions) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending, err := q.store.Count(ctx, StatusPending)
	if err != nil {
		return "", errors.Wrap(err, "counting pending")
	}

	if pending >= q.cfg.MaxSize {
		return "", errors.Wrapf(ErrQueueFull, "%d pending", pending)
	}

	now := q.now()

	ttl := q.cfg.DefaultTTL
	if opts.TTL != 0 {
		ttl = opts.TTL
	}

	maxRetries := q.cfg.MaxRetries
	if opts.MaxRetries != nil {
		maxRetries = *opts.MaxRetries
	}

	status := StatusPending
	if opts.Immediate {
		status = StatusProcessing
	}

	m := &Message{
		ID:          uuid.NewString(),
		Direction:   DirectionOutbound,
		Status:      status,
		Payload:     payload,
		Peer:        to,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		MaxRetries:  maxRetries,
		NextRetryAt: now,
		Metadata:    opts.Metadata,
	}

	if err := q.store.Insert(ctx, m); err != nil {
		return "", errors.Wrap(err, "inserting record")
	}

	return m.ID, nil
}

// EnqueueInbound records a received message for processing. Inbound
// messages are never retried; failure to process is terminal. A non-empty
// envelope id doubles as the record id for dedupe
func (q *Queue) EnqueueInbound(ctx context.Context, payload []byte, from, envelopeID string, metadata map[string]string) (string, error) {
	id := envelopeID
	if id == "" {
		id = uuid.NewString()
	}

	if envelopeID != "" {
		q.seenMu.Lock()
		hit := q.seen.TestAndAddString(id)
		q.seenMu.Unlock()

		// the filter can false-positive; confirm against the store
		// before declaring a duplicate
		if hit {
			if _, err := q.store.Get(ctx, id); err == nil {
				return "", errors.Wrap(ErrDuplicate, id)
			}
		}
	}

	now := q.now()

	m := &Message{
		ID:          id,
		Direction:   DirectionInbound,
		Status:      StatusPending,
		Payload:     payload,
		Peer:        from,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(q.cfg.DefaultTTL),
		MaxRetries:  0,
		NextRetryAt: now,
		Metadata:    metadata,
	}

	if err := q.store.Insert(ctx, m); err != nil {
		return "", errors.Wrap(err, "inserting record")
	}

	return m.ID, nil
}

func (q *Queue) Get(ctx context.Context, id string) (*Message, error) {
	return q.store.Get(ctx, id)
}

func (q *Queue) Delete(ctx context.Context, id string) error {
	return q.store.Delete(ctx, id)
}

func (q *Queue) List(ctx context.Context, query Query) ([]*Message, error) {
	return q.store.List(ctx, query)
}

// MarkAsSent advances the record with a send timestamp
func (q *Queue) MarkAsSent(ctx context.Context, id string) error {
	return q.transition(ctx, id, func(m *Message, now time.Time) {
		m.Status = StatusSent
		m.SentAt = &now
	})
}

// MarkAsDelivered advances the record to its terminal success state
func (q *Queue) MarkAsDelivered(ctx context.Context, id string) error {
	return q.transition(ctx, id, func(m *Message, now time.Time) {
		m.Status = StatusDelivered
		m.DeliveredAt = &now
	})
}

// MarkAsFailed records a delivery failure. While retries remain the record
// returns to pending with an exponentially backed-off eligibility time;
// otherwise it fails terminally with the error detail
func (q *Queue) MarkAsFailed(ctx context.Context, id string, errDetail string) error {
	return q.transition(ctx, id, func(m *Message, now time.Time) {
		m.LastError = errDetail

		if m.RetryCount >= m.MaxRetries {
			m.Status = StatusFailed
			return
		}

		m.RetryCount++

		bo := &backoff.Backoff{
			Min:    q.cfg.RetryInitial,
			Max:    q.cfg.RetryMax,
			Factor: q.cfg.RetryMultiplier,
		}

		m.Status = StatusPending
		m.NextRetryAt = now.Add(bo.ForAttempt(float64(m.RetryCount)))
	})
}

// ClaimDue flips due pending records to processing as a claim signal.
// Dispatch is the caller's responsibility; the queue does no network I/O
func (q *Queue) ClaimDue(ctx context.Context, limit int) ([]*Message, error) {
	pending, err := q.store.List(ctx, Query{
		Statuses:  []Status{StatusPending},
		Direction: DirectionOutbound,
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing pending")
	}

	now := q.now()

	var claimed []*Message
	for _, m := range pending {
		if m.NextRetryAt.After(now) {
			continue
		}

		m.Status = StatusProcessing
		m.UpdatedAt = now

		if err := q.store.Update(ctx, m); err != nil {
			return claimed, errors.Wrapf(err, "claiming %s", m.ID)
		}

		claimed = append(claimed, m)

		if limit > 0 && len(claimed) >= limit {
			break
		}
	}

	return claimed, nil
}

// ExpireOverdue marks any record past its expiry as expired, regardless of
// prior status. Expired records are kept for inspection, not deleted
func (q *Queue) ExpireOverdue(ctx context.Context) (int, error) {
	all, err := q.store.List(ctx, Query{})
	if err != nil {
		return 0, errors.Wrap(err, "listing records")
	}

	now := q.now()

	var n int
	for _, m := range all {
		if m.Status == StatusExpired || m.ExpiresAt.After(now) {
			continue
		}

		m.Status = StatusExpired
		m.UpdatedAt = now

		if err := q.store.Update(ctx, m); err != nil {
			return n, errors.Wrapf(err, "expiring %s", m.ID)
		}

		n++
	}

	return n, nil
}

// CleanupDelivered hard-deletes delivered records older than the retention
// window
func (q *Queue) CleanupDelivered(ctx context.Context) (int, error) {
	delivered, err := q.store.List(ctx, Query{Statuses: []Status{StatusDelivered}})
	if err != nil {
		return 0, errors.Wrap(err, "listing delivered")
	}

	cutoff := q.now().Add(-q.cfg.Retention)

	var n int
	for _, m := range delivered {
		if m.DeliveredAt == nil || m.DeliveredAt.After(cutoff) {
			continue
		}

		if err := q.store.Delete(ctx, m.ID); err != nil {
			return n, errors.Wrapf(err, "deleting %s", m.ID)
		}

		n++
	}

	return n, nil
}

// Stats aggregates record counts per status
func (q *Queue) Stats(ctx context.Context) (map[Status]int, error) {
	out := make(map[Status]int, 6)

	for _, s := range []Status{StatusPending, StatusProcessing, StatusSent, StatusDelivered, StatusFailed, StatusExpired} {
		n, err := q.store.Count(ctx, s)
		if err != nil {
			return nil, errors.Wrapf(err, "counting %s", s)
		}

		out[s] = n
	}

	return out, nil
}

func (q *Queue) transition(ctx context.Context, id string, apply func(m *Message, now time.Time)) error {
	m, err := q.store.Get(ctx, id)
	if err != nil {
		return err
	}

	now := q.now()

	apply(m, now)
	m.UpdatedAt = now

	return errors.Wrap(q.store.Update(ctx, m), "updating record")
}
