package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/Tallisgo/JianLi-Tanuki/constants"
)

// Task is one tracked unit of work from upload to terminal outcome.
type Task struct {
	ID          uuid.UUID            `json:"id"`
	Filename    string               `json:"filename"`
	FilePath    string               `json:"file_path"`
	FileSize    int64                `json:"file_size"`
	FileType    string               `json:"file_type"`
	Status      constants.TaskStatus `json:"status"`
	Progress    int                  `json:"progress"`
	Result      *ResumeRecord        `json:"result,omitempty"`
	Error       *string              `json:"error,omitempty"`
	CandidateID *int64               `json:"candidate_id,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
}

// TaskUpdate is a partial status write. Nil fields are left untouched.
// Restart lets a terminal task re-enter parsing and clears its previous outcome.
type TaskUpdate struct {
	Status      constants.TaskStatus
	Progress    *int
	Result      *ResumeRecord
	Error       *string
	CandidateID *int64
	Restart     bool
}

// TaskStats counts tasks per status.
type TaskStats struct {
	Total    int                          `json:"total"`
	ByStatus map[constants.TaskStatus]int `json:"by_status"`
}
