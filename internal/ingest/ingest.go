package ingest

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/Tallisgo/JianLi-Tanuki/internal/entity"
)

// Upload is one incoming résumé file.
type Upload struct {
	Filename  string
	MediaType string // declared type; derived from the extension when empty
	Size      int64  // declared size; 0 when unknown
	Body      io.Reader
}

// Options select the run scheduled after the task is created.
type Options struct {
	Force       bool
	CandidateID *int64 // merge onto this candidate instead of creating one
}

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath string
	TaskID     uuid.UUID
	FileType   string
	FileSize   int64
	UploadedAt time.Time
	Err        string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Failed    uint32
}

// Ingestor is the behavior the commands depend on.
type Ingestor interface {
	// Ingest stores the upload, creates its task and schedules a run.
	Ingest(ctx context.Context, up Upload, opts Options) (*entity.Task, error)
	// IngestPath ingests a single local file.
	IngestPath(ctx context.Context, path string, opts Options) (IngestionResult, error)
	// IngestDirectory ingests all matching files under root.
	IngestDirectory(ctx context.Context, root string, opts Options, skipHidden bool) ([]IngestionResult, DirStats, error)
}
