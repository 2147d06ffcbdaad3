package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/vehicle-clearance/internal/clearance"
	"github.com/joseph-ayodele/vehicle-clearance/internal/common"
)

type recordingSubmitter struct {
	mu       sync.Mutex
	seen     []uuid.UUID
	requests []string
	gate     chan struct{}
	err      error
}

func (r *recordingSubmitter) ProcessSubmission(ctx context.Context, vehicleID uuid.UUID) (clearance.Summary, error) {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, vehicleID)
	r.requests = append(r.requests, common.RequestIDFromContext(ctx))
	return clearance.Summary{VehicleID: vehicleID}, r.err
}

func (r *recordingSubmitter) Seen() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.seen...)
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSubmissionQueue_ProcessesAndDrains(t *testing.T) {
	sub := &recordingSubmitter{}
	q := NewSubmissionQueue(sub, quiet(), WithWorkers(2), WithQueueSize(8))

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		require.NoError(t, q.Enqueue(context.Background(), Job{VehicleID: id, RequestID: "req-" + id.String()}))
	}
	q.Shutdown(context.Background())

	assert.ElementsMatch(t, ids, sub.Seen())
	assert.Contains(t, sub.requests, "req-"+ids[0].String())
	assert.Equal(t, 0, q.Pending())
}

func TestSubmissionQueue_DeduplicatesQueuedVehicles(t *testing.T) {
	sub := &recordingSubmitter{gate: make(chan struct{})}
	q := NewSubmissionQueue(sub, quiet(), WithWorkers(1), WithQueueSize(4))

	busy, waiting := uuid.New(), uuid.New()
	require.NoError(t, q.Enqueue(context.Background(), Job{VehicleID: busy}))
	// wait until the worker has taken the first job
	require.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, time.Millisecond)

	require.NoError(t, q.Enqueue(context.Background(), Job{VehicleID: waiting}))
	require.NoError(t, q.Enqueue(context.Background(), Job{VehicleID: waiting}))
	assert.Equal(t, 1, q.Pending())

	close(sub.gate)
	q.Shutdown(context.Background())
	assert.ElementsMatch(t, []uuid.UUID{busy, waiting}, sub.Seen())
}

func TestSubmissionQueue_RejectsAfterShutdown(t *testing.T) {
	q := NewSubmissionQueue(&recordingSubmitter{}, quiet())
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{VehicleID: uuid.New()})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSubmissionQueue_BackpressureHonoursContext(t *testing.T) {
	sub := &recordingSubmitter{gate: make(chan struct{})}
	q := NewSubmissionQueue(sub, quiet(), WithWorkers(1), WithQueueSize(1))

	require.NoError(t, q.Enqueue(context.Background(), Job{VehicleID: uuid.New()}))
	require.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{VehicleID: uuid.New()}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	blocked := uuid.New()
	err := q.Enqueue(ctx, Job{VehicleID: blocked})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, q.Pending())

	close(sub.gate)
	q.Shutdown(context.Background())
	assert.NotContains(t, sub.Seen(), blocked)
}

func TestSubmissionQueue_FailuresDoNotStopWorkers(t *testing.T) {
	sub := &recordingSubmitter{err: errors.New("vehicle not found")}
	q := NewSubmissionQueue(sub, quiet(), WithWorkers(1), WithProcessTimeout(time.Second))
	for range 3 {
		require.NoError(t, q.Enqueue(context.Background(), Job{VehicleID: uuid.New()}))
	}
	q.Shutdown(context.Background())
	assert.Len(t, sub.Seen(), 3)
}
