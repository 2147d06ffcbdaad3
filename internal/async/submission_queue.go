package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/vehicle-clearance/internal/clearance"
	"github.com/joseph-ayodele/vehicle-clearance/internal/common"
)

// Submitter is the work a queue worker performs for each job.
type Submitter interface {
	ProcessSubmission(ctx context.Context, vehicleID uuid.UUID) (clearance.Summary, error)
}

// SubmissionQueue runs clearance submissions on a fixed pool of workers.
// A vehicle already waiting in the queue is not queued twice.
type SubmissionQueue struct {
	proc    Submitter
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch      chan Job
	pending mapset.Set[uuid.UUID]
	wg      sync.WaitGroup
	once    sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*SubmissionQueue)

func WithWorkers(n int) Option {
	return func(q *SubmissionQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *SubmissionQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *SubmissionQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewSubmissionQueue(proc Submitter, logger *slog.Logger, opts ...Option) *SubmissionQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &SubmissionQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
		pending: mapset.NewSet[uuid.UUID](),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *SubmissionQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.pending.Remove(job.VehicleID)
					q.run(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *SubmissionQueue) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.RequestID != "" {
		ctx = common.WithRequestID(ctx, job.RequestID)
	}
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("submission panicked", "worker_id", workerID, "vehicle_id", job.VehicleID, "panic", r)
		}
	}()

	sum, err := q.proc.ProcessSubmission(ctx, job.VehicleID)
	if err != nil {
		q.logger.Error("submission failed", "worker_id", workerID, "vehicle_id", job.VehicleID, "error", err)
		return
	}
	q.logger.Info("processed submission",
		"worker_id", workerID,
		"vehicle_id", job.VehicleID,
		"hpg", sum.HPG.Status,
		"insurance", sum.Insurance.Status,
		"waited", time.Since(job.SubmittedAt),
	)
}

// Enqueue blocks while the queue is full until ctx is done. A vehicle
// that is already queued is accepted without a second job.
func (q *SubmissionQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "vehicle_id", job.VehicleID)
		return ErrClosed
	}
	if !q.pending.Add(job.VehicleID) {
		q.logger.Debug("vehicle already queued", "vehicle_id", job.VehicleID)
		return nil
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued vehicle for submission", "vehicle_id", job.VehicleID)
		return nil
	default:
	}

	q.logger.Warn("queue full, applying backpressure", "vehicle_id", job.VehicleID)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		q.pending.Remove(job.VehicleID)
		return ctx.Err()
	}
}

// Pending reports how many vehicles are waiting for a worker.
func (q *SubmissionQueue) Pending() int {
	return q.pending.Cardinality()
}

// Shutdown stops intake and waits for queued jobs to finish or ctx to end.
func (q *SubmissionQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}

var _ Queue = (*SubmissionQueue)(nil)
