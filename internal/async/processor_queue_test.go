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

	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
)

type blockingRunner struct {
	mu      sync.Mutex
	started chan uuid.UUID
	release chan struct{}
	runs    []Job
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan uuid.UUID, 16), release: make(chan struct{})}
}

func (r *blockingRunner) wait(ctx context.Context, job Job) error {
	r.mu.Lock()
	r.runs = append(r.runs, job)
	r.mu.Unlock()
	r.started <- job.TaskID
	select {
	case <-r.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *blockingRunner) RunIngestion(ctx context.Context, id uuid.UUID, force bool) error {
	return r.wait(ctx, Job{TaskID: id, Force: force})
}

func (r *blockingRunner) RunUpdateIngestion(ctx context.Context, id uuid.UUID, candidateID int64) error {
	return r.wait(ctx, Job{TaskID: id, CandidateID: &candidateID})
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestEnqueueRejectsWhenFull(t *testing.T) {
	r := newBlockingRunner()
	q := NewProcessorQueue(r, quiet(), WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(r.release)
		q.Shutdown(context.Background())
	}()

	require.NoError(t, q.Enqueue(context.Background(), Job{TaskID: uuid.New()}))
	<-r.started // worker busy
	require.NoError(t, q.Enqueue(context.Background(), Job{TaskID: uuid.New()}))

	err := q.Enqueue(context.Background(), Job{TaskID: uuid.New()})
	assert.True(t, common.IsCode(err, common.CodeQueueFull))
	assert.True(t, errors.Is(err, common.ErrQueueFull))
	assert.Equal(t, 1, q.Pending())
}

func TestDispatchesUpdateJobs(t *testing.T) {
	r := newBlockingRunner()
	close(r.release)
	q := NewProcessorQueue(r, quiet(), WithWorkers(2))

	cid := int64(5)
	require.NoError(t, q.Enqueue(context.Background(), Job{TaskID: uuid.New(), Force: true}))
	require.NoError(t, q.Enqueue(context.Background(), Job{TaskID: uuid.New(), CandidateID: &cid}))
	q.Shutdown(context.Background())

	require.Len(t, r.runs, 2)
	var updates, forced int
	for _, j := range r.runs {
		if j.IsUpdate() {
			updates++
			assert.Equal(t, int64(5), *j.CandidateID)
		}
		if j.Force {
			forced++
		}
	}
	assert.Equal(t, 1, updates)
	assert.Equal(t, 1, forced)
}

func TestEnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(newBlockingRunner(), quiet())
	q.Shutdown(context.Background())
	err := q.Enqueue(context.Background(), Job{TaskID: uuid.New()})
	assert.True(t, common.IsCode(err, common.CodeQueueFull))
	q.Shutdown(context.Background())
}

func TestShutdownDeadlineCancelsRuns(t *testing.T) {
	r := newBlockingRunner()
	q := NewProcessorQueue(r, quiet(), WithWorkers(1))
	require.NoError(t, q.Enqueue(context.Background(), Job{TaskID: uuid.New()}))
	<-r.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() { q.Shutdown(ctx); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not return after its deadline")
	}
}

func TestProcessTimeout(t *testing.T) {
	r := newBlockingRunner()
	q := NewProcessorQueue(r, quiet(), WithWorkers(1), WithProcessTimeout(10*time.Millisecond))
	require.NoError(t, q.Enqueue(context.Background(), Job{TaskID: uuid.New()}))
	<-r.started
	// the run is released by its own timeout, so shutdown drains without help
	q.Shutdown(context.Background())
}

func TestSubmitWaitsForCapacity(t *testing.T) {
	r := newBlockingRunner()
	q := NewProcessorQueue(r, quiet(), WithWorkers(1), WithQueueSize(1))
	defer q.Shutdown(context.Background())

	require.NoError(t, q.Enqueue(context.Background(), Job{TaskID: uuid.New()}))
	<-r.started
	require.NoError(t, q.Enqueue(context.Background(), Job{TaskID: uuid.New()}))

	submitted := make(chan error, 1)
	go func() { submitted <- q.Submit(context.Background(), Job{TaskID: uuid.New()}) }()

	select {
	case err := <-submitted:
		t.Fatalf("submit returned before a slot freed up: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	close(r.release)
	select {
	case err := <-submitted:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("submit did not complete after the worker drained")
	}
}

func TestSubmitStopsWithContext(t *testing.T) {
	r := newBlockingRunner()
	q := NewProcessorQueue(r, quiet(), WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(r.release)
		q.Shutdown(context.Background())
	}()
	require.NoError(t, q.Enqueue(context.Background(), Job{TaskID: uuid.New()}))
	<-r.started
	require.NoError(t, q.Enqueue(context.Background(), Job{TaskID: uuid.New()}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.Submit(ctx, Job{TaskID: uuid.New()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestShutdownReleasesBlockedSubmit(t *testing.T) {
	r := newBlockingRunner()
	q := NewProcessorQueue(r, quiet(), WithWorkers(1), WithQueueSize(1), WithProcessTimeout(50*time.Millisecond))
	require.NoError(t, q.Enqueue(context.Background(), Job{TaskID: uuid.New()}))
	<-r.started
	require.NoError(t, q.Enqueue(context.Background(), Job{TaskID: uuid.New()}))

	submitted := make(chan error, 1)
	go func() { submitted <- q.Submit(context.Background(), Job{TaskID: uuid.New()}) }()
	time.Sleep(10 * time.Millisecond)
	q.Shutdown(context.Background())

	select {
	case err := <-submitted:
		if err != nil {
			assert.True(t, common.IsCode(err, common.CodeQueueFull), "got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocked submit was not released by shutdown")
	}
}
