package async

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/vehicle-clearance/internal/entity"
	"github.com/joseph-ayodele/vehicle-clearance/internal/repository"
)

// Poller feeds vehicles awaiting submission into a queue. Each queued
// vehicle is stamped with the attempt time and is not picked up again
// until retryAfter has passed, so vehicles that stay pending (no documents
// yet, failed tracks) cannot starve newer submissions.
type Poller struct {
	vehicles   repository.VehicleRepository
	queue      Queue
	interval   time.Duration
	batch      int
	retryAfter time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithRetryAfter sets how long a vehicle left pending waits before it is queued again.
func WithRetryAfter(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.retryAfter = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) PollerOption {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPoller(vehicles repository.VehicleRepository, queue Queue, interval time.Duration, batch int, logger *slog.Logger, opts ...PollerOption) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	p := &Poller{
		vehicles:   vehicles,
		queue:      queue,
		interval:   interval,
		batch:      batch,
		retryAfter: 10 * time.Minute,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Poll enqueues one batch of vehicles due for submission and reports how many were queued.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	now := p.now().UTC()
	vs, err := p.vehicles.ListDueForSubmission(ctx, now.Add(-p.retryAfter), p.batch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, v := range vs {
		if err := p.queue.Enqueue(ctx, Job{VehicleID: v.ID}); err != nil {
			if errors.Is(err, ErrClosed) {
				return n, nil
			}
			return n, err
		}
		if _, err := p.vehicles.Update(ctx, v.ID, entity.VehiclePatch{SubmissionAttemptedAt: &now}); err != nil {
			p.logger.Warn("failed to stamp submission attempt", "vehicle_id", v.ID, "error", err)
		}
		n++
	}
	if n > 0 {
		p.logger.Info("queued pending vehicles", "count", n)
	}
	return n, nil
}
