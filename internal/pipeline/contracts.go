package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/Tallisgo/JianLi-Tanuki/internal/entity"
)

// TaskStore is the slice of task persistence a run needs.
type TaskStore interface {
	GetTask(ctx context.Context, id uuid.UUID) (*entity.Task, error)
	SetTaskStatus(ctx context.Context, id uuid.UUID, upd entity.TaskUpdate) (*entity.Task, error)
}

// CandidateStore loads and saves candidates. SaveCandidate inserts when ID is zero.
type CandidateStore interface {
	GetCandidate(ctx context.Context, id int64) (*entity.Candidate, error)
	SaveCandidate(ctx context.Context, c *entity.Candidate) (*entity.Candidate, error)
}

type DuplicateFinder interface {
	FindDuplicate(ctx context.Context, name string, phone, email *string) (entity.DuplicateMatch, error)
}
