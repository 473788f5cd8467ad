package async

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job schedules one pipeline run for a task.
type Job struct {
	TaskID      uuid.UUID
	Force       bool   // skip the duplicate check
	CandidateID *int64 // set for update runs
	SubmittedAt time.Time
	TraceID     string
}

// IsUpdate reports whether the job merges onto an existing candidate.
func (j Job) IsUpdate() bool { return j.CandidateID != nil }

// Queue schedules jobs. Enqueue rejects with QUEUE_FULL when there is no room;
// Submit waits for room until ctx ends or the queue shuts down.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Submit(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Runner executes pipeline runs. *pipeline.Pipeline satisfies it.
type Runner interface {
	RunIngestion(ctx context.Context, taskID uuid.UUID, force bool) error
	RunUpdateIngestion(ctx context.Context, taskID uuid.UUID, candidateID int64) error
}
