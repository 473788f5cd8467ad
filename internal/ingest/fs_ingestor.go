package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Tallisgo/JianLi-Tanuki/constants"
	"github.com/Tallisgo/JianLi-Tanuki/internal/async"
	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
	"github.com/Tallisgo/JianLi-Tanuki/internal/entity"
	"github.com/Tallisgo/JianLi-Tanuki/internal/repository"
)

// MsgEnqueueFailed is stored on tasks whose run could not be scheduled.
const MsgEnqueueFailed = "任务排队失败"

type Config struct {
	UploadDir    string
	MaxFileSize  int64    // default 10 MiB
	AllowedTypes []string // declared media types; empty -> constants.AllowedMediaTypes
	// WaitForCapacity makes scheduling wait for a free queue slot instead of
	// failing with QUEUE_FULL. Batch callers set it; the daemon does not.
	WaitForCapacity bool
}

// FSIngestor stores uploads under UploadDir as <taskID>.<ext>.
type FSIngestor struct {
	cfg          Config
	tasks        repository.TaskRepository
	queue        async.Queue
	allowedTypes map[string]struct{}
	logger       *slog.Logger
}

func NewFSIngestor(tasks repository.TaskRepository, queue async.Queue, cfg Config, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	allowed := constants.AllowedMediaTypes
	if len(cfg.AllowedTypes) > 0 {
		allowed = make(map[string]struct{}, len(cfg.AllowedTypes))
		for _, t := range cfg.AllowedTypes {
			allowed[normalizeMediaType(t)] = struct{}{}
		}
	}
	return &FSIngestor{cfg: cfg, tasks: tasks, queue: queue, allowedTypes: allowed, logger: logger}
}

func (i *FSIngestor) schedule(ctx context.Context, job async.Job) error {
	if i.cfg.WaitForCapacity {
		return i.queue.Submit(ctx, job)
	}
	return i.queue.Enqueue(ctx, job)
}

func (i *FSIngestor) Ingest(ctx context.Context, up Upload, opts Options) (*entity.Task, error) {
	ext := constants.NormalizeExt(filepath.Ext(up.Filename))
	mediaType := normalizeMediaType(up.MediaType)
	if mediaType == "" {
		mediaType = constants.MediaTypeForExt(ext)
	}

	v := common.NewValidator().
		Field("filename", up.Filename, common.Required).
		Field("extension", ext, common.OneOf(constants.AllowedExtensions)).
		Field("media_type", mediaType, common.OneOf(i.allowedTypes))
	if up.Size != 0 {
		v.Field("size", up.Size, common.MaxBytes(i.cfg.MaxFileSize))
	}
	if opts.CandidateID != nil {
		v.Field("candidate_id", *opts.CandidateID, common.PositiveID)
	}
	if up.Body == nil {
		v.Field("body", nil, common.Required)
	}
	if err := v.Err(); err != nil {
		i.logger.Warn("ingest.upload.rejected", "filename", up.Filename, "media_type", mediaType, "error", err)
		return nil, err
	}

	taskID := uuid.New()
	dst := filepath.Join(i.cfg.UploadDir, taskID.String()+"."+ext)
	n, err := i.save(dst, up.Body)
	if err != nil {
		return nil, err
	}

	task, err := i.tasks.Create(ctx, &entity.Task{
		ID:       taskID,
		Filename: filepath.Base(up.Filename),
		FilePath: dst,
		FileSize: n,
		FileType: mediaType,
	})
	if err != nil {
		_ = os.Remove(dst)
		return nil, err
	}

	job := async.Job{
		TaskID:      taskID,
		Force:       opts.Force,
		CandidateID: opts.CandidateID,
		SubmittedAt: time.Now().UTC(),
		TraceID:     uuid.NewString(),
	}
	if err := i.schedule(ctx, job); err != nil {
		msg := MsgEnqueueFailed + ": " + err.Error()
		if _, serr := i.tasks.SetTaskStatus(context.WithoutCancel(ctx), taskID, entity.TaskUpdate{
			Status: constants.TaskStatusFailed,
			Error:  &msg,
		}); serr != nil {
			i.logger.Error("ingest.enqueue.mark_failed", "task_id", taskID, "error", serr)
		}
		i.logger.Warn("ingest.enqueue.failed", "task_id", taskID, "error", err)
		return nil, err
	}

	i.logger.Info("ingest.upload.accepted",
		"task_id", taskID, "filename", task.Filename, "size", n,
		"media_type", mediaType, "force", opts.Force, "update", job.IsUpdate())
	return task, nil
}

// save copies body to dst, rejecting empty and oversized files.
func (i *FSIngestor) save(dst string, body io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, common.NewAppError(common.CodeInternal, "create upload dir", err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return 0, common.NewAppError(common.CodeInternal, "create upload file", err)
	}
	n, err := io.Copy(f, io.LimitReader(body, i.cfg.MaxFileSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = common.NewValidator().Field("size", n, common.MaxBytes(i.cfg.MaxFileSize)).Err()
	} else {
		err = common.NewAppError(common.CodeInternal, "write upload file", err)
	}
	if err != nil {
		_ = os.Remove(dst)
		i.logger.Warn("ingest.save.failed", "path", dst, "bytes", n, "error", err)
		return 0, err
	}
	return n, nil
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string, opts Options) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}
	out.SourcePath = abs

	f, err := os.Open(abs)
	if err != nil {
		return out, common.NewAppError(common.CodeInvalid, "open "+abs, err)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			i.logger.Warn("ingest.close.failed", "path", abs, "error", err)
		}
	}(f)

	st, err := f.Stat()
	if err != nil {
		return out, common.NewAppError(common.CodeInvalid, "stat "+abs, err)
	}
	if st.IsDir() {
		return out, common.NewAppError(common.CodeInvalid, abs+" is a directory", common.ErrInvalidInput)
	}

	task, err := i.Ingest(ctx, Upload{
		Filename: filepath.Base(abs),
		Size:     st.Size(),
		Body:     f,
	}, opts)
	if err != nil {
		return out, err
	}
	out.TaskID = task.ID
	out.FileType = task.FileType
	out.FileSize = task.FileSize
	out.UploadedAt = task.CreatedAt
	return out, nil
}
