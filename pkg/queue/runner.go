package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// DispatchFunc delivers a claimed outbound record. Returning an error
// schedules a retry via MarkAsFailed
type DispatchFunc func(ctx context.Context, m *Message) error

// Runner drives the retry scan and cleanup on independent timers. A tick
// that lands while the previous scan is still in flight is skipped rather
// than queued
type Runner struct {
	queue    *Queue
	dispatch DispatchFunc

	scanInterval    time.Duration
	cleanupInterval time.Duration

	scanInFlight    int32
	cleanupInFlight int32

	cancel context.CancelFunc
	wg     sync.WaitGroup

	log *logrus.Entry
}

type RunnerOption func(*Runner)

func WithScanInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.scanInterval = d
	}
}

func WithCleanupInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.cleanupInterval = d
	}
}

func WithRunnerLogger(log *logrus.Entry) RunnerOption {
	return func(r *Runner) {
		r.log = log
	}
}

func NewRunner(q *Queue, dispatch DispatchFunc, opts ...RunnerOption) *Runner {
	r := &Runner{
		queue:           q,
		dispatch:        dispatch,
		scanInterval:    5 * time.Second,
		cleanupInterval: time.Minute,
		log:             logrus.NewEntry(logrus.New()),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(2)

	go r.loop(ctx, r.scanInterval, &r.scanInFlight, r.scanOnce)
	go r.loop(ctx, r.cleanupInterval, &r.cleanupInFlight, r.cleanupOnce)
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}

	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, interval time.Duration, inFlight *int32, fn func(ctx context.Context)) {
	defer r.wg.Done()

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !atomic.CompareAndSwapInt32(inFlight, 0, 1) {
				continue
			}

			fn(ctx)
			atomic.StoreInt32(inFlight, 0)
		}
	}
}

func (r *Runner) scanOnce(ctx context.Context) {
	claimed, err := r.queue.ClaimDue(ctx, 0)
	if err != nil {
		r.log.WithError(err).Error("scanning for due messages")
		return
	}

	for _, m := range claimed {
		if err := r.dispatch(ctx, m); err != nil {
			r.log.WithField("id", m.ID).WithError(err).Warn("dispatch failed")

			if err := r.queue.MarkAsFailed(ctx, m.ID, err.Error()); err != nil {
				r.log.WithField("id", m.ID).WithError(err).Error("recording failure")
			}

			continue
		}

		if err := r.queue.MarkAsSent(ctx, m.ID); err != nil {
			r.log.WithField("id", m.ID).WithError(err).Error("recording send")
		}
	}
}

func (r *Runner) cleanupOnce(ctx context.Context) {
	if n, err := r.queue.ExpireOverdue(ctx); err != nil {
		r.log.WithError(err).Error("expiring overdue messages")
	} else if n > 0 {
		r.log.WithField("expired", n).Debug("marked overdue messages")
	}

	if n, err := r.queue.CleanupDelivered(ctx); err != nil {
		r.log.WithError(err).Error("cleaning up delivered messages")
	} else if n > 0 {
		r.log.WithField("deleted", n).Debug("removed delivered messages")
	}
}
