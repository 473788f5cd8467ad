// Package pipeline turns an uploaded résumé file into a terminal task state.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/Tallisgo/JianLi-Tanuki/constants"
	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
	"github.com/Tallisgo/JianLi-Tanuki/internal/entity"
	"github.com/Tallisgo/JianLi-Tanuki/internal/extract"
)

const (
	// MsgCandidateNotFound is written to the task when an update targets a missing candidate.
	MsgCandidateNotFound = "candidate not found"
	// MsgSaveCandidateFailed is written to the task when the candidate cannot be saved.
	MsgSaveCandidateFailed = "保存候选人信息失败"

	PolicyDuplicate = "duplicate"
	PolicyCreate    = "create"

	progressText   = 30
	progressRecord = 70
	progressDone   = 100

	// terminalWriteTimeout bounds the final status write, which runs even after
	// the run context has expired.
	terminalWriteTimeout = 10 * time.Second
)

// Pipeline coordinates text extraction, structured extraction and duplicate
// resolution for one task at a time. It keeps no state between runs.
type Pipeline struct {
	tasks           TaskStore
	candidates      CandidateStore
	text            extract.TextExtractor
	structured      extract.StructuredExtractor
	dedup           DuplicateFinder
	ambiguousPolicy string
	now             func() time.Time
	logger          *slog.Logger
}

type Option func(*Pipeline)

// WithAmbiguousPolicy picks what a name-only match does: PolicyDuplicate ends the
// task as duplicate with the notice flagged ambiguous, PolicyCreate ignores it.
func WithAmbiguousPolicy(policy string) Option {
	return func(p *Pipeline) {
		if policy == PolicyCreate || policy == PolicyDuplicate {
			p.ambiguousPolicy = policy
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(tasks TaskStore, candidates CandidateStore, text extract.TextExtractor, structured extract.StructuredExtractor, dedup DuplicateFinder, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		tasks:           tasks,
		candidates:      candidates,
		text:            text,
		structured:      structured,
		dedup:           dedup,
		ambiguousPolicy: PolicyDuplicate,
		now:             time.Now,
		logger:          logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// RunIngestion drives an uploaded task to completed, duplicate or failed.
// With force set the duplicate check is skipped and a task that already finished
// is run again from parsing, producing a fresh result. A returned error has
// already been recorded on the task when the task exists.
func (p *Pipeline) RunIngestion(ctx context.Context, taskID uuid.UUID, force bool) (err error) {
	ctx = common.WithTaskID(ctx, taskID.String())
	log := p.logger.With("task_id", taskID, "force", force)
	start := time.Now()
	log.Info("pipeline.run.start")
	defer p.guard(ctx, taskID, log, start, &err)

	task, err := p.tasks.GetTask(ctx, taskID)
	if err != nil {
		log.Error("pipeline.run.task_lookup_failed", "error", err)
		if common.IsCode(err, common.CodeTaskNotFound) {
			return err
		}
		return p.fail(ctx, taskID, log, err, "")
	}
	if err := p.enterParsing(ctx, taskID, force); err != nil {
		if common.IsCode(err, common.CodeTransition) {
			return err
		}
		return p.fail(ctx, taskID, log, err, "")
	}

	rec, err := p.extractRecord(ctx, task, log)
	if err != nil {
		return p.fail(ctx, taskID, log, err, "")
	}

	if !force {
		notice, err := p.checkDuplicate(ctx, rec, log)
		if err != nil {
			return p.fail(ctx, taskID, log, err, "")
		}
		if notice != nil {
			return p.finishDuplicate(ctx, taskID, rec, notice, log)
		}
	}

	var candidateID *int64
	if entity.Deref(rec.Name) != "" {
		saved, err := p.candidates.SaveCandidate(ctx, NewCandidate(rec, taskID.String(), p.now()))
		if err != nil {
			return p.fail(ctx, taskID, log, err, MsgSaveCandidateFailed)
		}
		candidateID = &saved.ID
		log.Info("pipeline.run.candidate_created", "candidate_id", saved.ID)
	} else {
		log.Warn("pipeline.run.no_name", "reason", "record has no name; no candidate created")
	}

	return p.finish(ctx, taskID, entity.TaskUpdate{
		Status:      constants.TaskStatusCompleted,
		Progress:    entity.Ptr(progressDone),
		Result:      rec,
		CandidateID: candidateID,
	}, log)
}

// RunUpdateIngestion re-extracts a task's file and merges it onto an existing
// candidate. Duplicate detection does not run. A missing candidate fails the task
// straight from uploaded.
func (p *Pipeline) RunUpdateIngestion(ctx context.Context, taskID uuid.UUID, candidateID int64) (err error) {
	ctx = common.WithTaskID(ctx, taskID.String())
	log := p.logger.With("task_id", taskID, "candidate_id", candidateID)
	start := time.Now()
	log.Info("pipeline.update.start")
	defer p.guard(ctx, taskID, log, start, &err)

	task, err := p.tasks.GetTask(ctx, taskID)
	if err != nil {
		log.Error("pipeline.update.task_lookup_failed", "error", err)
		if common.IsCode(err, common.CodeTaskNotFound) {
			return err
		}
		return p.fail(ctx, taskID, log, err, "")
	}
	cand, err := p.candidates.GetCandidate(ctx, candidateID)
	if err != nil {
		msg := ""
		if common.IsCode(err, common.CodeCandidateNotFound) {
			msg = MsgCandidateNotFound
		}
		return p.fail(ctx, taskID, log, err, msg)
	}
	if err := p.enterParsing(ctx, taskID, false); err != nil {
		if common.IsCode(err, common.CodeTransition) {
			return err
		}
		return p.fail(ctx, taskID, log, err, "")
	}

	rec, err := p.extractRecord(ctx, task, log)
	if err != nil {
		return p.fail(ctx, taskID, log, err, "")
	}

	MergeRecord(cand, rec)
	tid := taskID.String()
	cand.TaskID = &tid
	saved, err := p.candidates.SaveCandidate(ctx, cand)
	if err != nil {
		return p.fail(ctx, taskID, log, err, MsgSaveCandidateFailed)
	}
	log.Info("pipeline.update.candidate_saved", "candidate_id", saved.ID)

	return p.finish(ctx, taskID, entity.TaskUpdate{
		Status:      constants.TaskStatusCompleted,
		Progress:    entity.Ptr(progressDone),
		Result:      rec,
		CandidateID: &saved.ID,
	}, log)
}

func (p *Pipeline) enterParsing(ctx context.Context, taskID uuid.UUID, restart bool) error {
	_, err := p.tasks.SetTaskStatus(ctx, taskID, entity.TaskUpdate{
		Status:   constants.TaskStatusParsing,
		Progress: entity.Ptr(0),
		Restart:  restart,
	})
	return err
}

// extractRecord runs both extraction stages and records intermediate progress.
func (p *Pipeline) extractRecord(ctx context.Context, task *entity.Task, log *slog.Logger) (*entity.ResumeRecord, error) {
	res, err := p.text.Extract(ctx, task.FilePath, task.FileType)
	if err != nil {
		log.Error("pipeline.text.failed", "error", err, "code", common.ErrorCode(err))
		return nil, err
	}
	log.Info("pipeline.text.ok", "method", res.Method, "pages", res.Pages, "chars", len(res.Text))
	p.progress(ctx, task.ID, progressText, log)

	rec, err := p.structured.Extract(ctx, res.Text)
	if err != nil {
		log.Error("pipeline.structured.failed", "error", err, "code", common.ErrorCode(err))
		return nil, err
	}
	if rec == nil {
		return nil, common.MalformedPayload("extractor returned no record", nil)
	}
	log.Info("pipeline.structured.ok", "has_name", rec.Name != nil)
	p.progress(ctx, task.ID, progressRecord, log)
	return rec, nil
}

// progress is best effort; a failed progress write does not fail the run.
func (p *Pipeline) progress(ctx context.Context, taskID uuid.UUID, pct int, log *slog.Logger) {
	if _, err := p.tasks.SetTaskStatus(ctx, taskID, entity.TaskUpdate{Progress: &pct}); err != nil {
		log.Warn("pipeline.progress.write_failed", "progress", pct, "error", err)
	}
}

// checkDuplicate returns a notice when the record matches a known candidate and
// the match should stop the run.
func (p *Pipeline) checkDuplicate(ctx context.Context, rec *entity.ResumeRecord, log *slog.Logger) (*entity.DuplicateNotice, error) {
	name := entity.Deref(rec.Name)
	if name == "" {
		return nil, nil
	}
	match, err := p.dedup.FindDuplicate(ctx, name, rec.Phone(), rec.Email())
	if err != nil {
		log.Error("pipeline.dedup.failed", "error", err)
		return nil, err
	}
	if !match.Found() {
		return nil, nil
	}
	if match.Ambiguous() && p.ambiguousPolicy == PolicyCreate {
		log.Warn("pipeline.dedup.ambiguous_ignored", "candidate_id", match.Candidate.ID, "policy", p.ambiguousPolicy)
		return nil, nil
	}
	return NewDuplicateNotice(match), nil
}

// NewDuplicateNotice describes match for the task's error field.
func NewDuplicateNotice(match entity.DuplicateMatch) *entity.DuplicateNotice {
	c := match.Candidate
	msg := fmt.Sprintf("候选人「%s」已存在（ID: %d），如需更新请强制上传或使用更新接口", c.Name, c.ID)
	if match.Ambiguous() {
		msg = fmt.Sprintf("存在同名候选人「%s」（ID: %d），缺少电话或邮箱无法确认是否为同一人", c.Name, c.ID)
	}
	return &entity.DuplicateNotice{
		Duplicate:      true,
		CandidateID:    c.ID,
		CandidateName:  c.Name,
		CandidatePhone: c.Phone,
		CandidateEmail: c.Email,
		Message:        msg,
		MatchKind:      match.Kind,
		Ambiguous:      match.Ambiguous(),
	}
}

func (p *Pipeline) finishDuplicate(ctx context.Context, taskID uuid.UUID, rec *entity.ResumeRecord, notice *entity.DuplicateNotice, log *slog.Logger) error {
	b, err := json.Marshal(notice)
	if err != nil {
		return p.fail(ctx, taskID, log, err, "")
	}
	log.Info("pipeline.run.duplicate",
		"candidate_id", notice.CandidateID,
		"match_kind", notice.MatchKind,
		"ambiguous", notice.Ambiguous,
	)
	return p.finish(ctx, taskID, entity.TaskUpdate{
		Status:   constants.TaskStatusDuplicate,
		Progress: entity.Ptr(progressDone),
		Result:   rec,
		Error:    entity.Ptr(string(b)),
	}, log)
}

func (p *Pipeline) finish(ctx context.Context, taskID uuid.UUID, upd entity.TaskUpdate, log *slog.Logger) error {
	wctx, cancel := terminalContext(ctx)
	defer cancel()
	if _, err := p.tasks.SetTaskStatus(wctx, taskID, upd); err != nil {
		return p.fail(ctx, taskID, log, err, "")
	}
	return nil
}

// fail is the single place a run error becomes a failed task. msg overrides the
// error text stored on the task when set.
func (p *Pipeline) fail(ctx context.Context, taskID uuid.UUID, log *slog.Logger, cause error, msg string) error {
	if msg == "" {
		msg = cause.Error()
	}
	wctx, cancel := terminalContext(ctx)
	defer cancel()
	if _, err := p.tasks.SetTaskStatus(wctx, taskID, entity.TaskUpdate{
		Status: constants.TaskStatusFailed,
		Error:  &msg,
	}); err != nil {
		log.Error("pipeline.run.fail_write_failed", "error", err, "cause", cause)
	}
	return cause
}

// guard recovers panics into a failed task and logs the outcome of the run.
func (p *Pipeline) guard(ctx context.Context, taskID uuid.UUID, log *slog.Logger, start time.Time, errp *error) {
	if r := recover(); r != nil {
		log.Error("pipeline.run.panic", "panic", r, "stack", string(debug.Stack()))
		*errp = p.fail(ctx, taskID, log, common.NewAppError(common.CodeInternal, fmt.Sprintf("panic: %v", r), common.ErrInternal), "")
	}
	elapsed := time.Since(start).Milliseconds()
	if *errp != nil {
		log.Warn("pipeline.run.failed", "error", *errp, "code", common.ErrorCode(*errp), "elapsed_ms", elapsed)
		return
	}
	log.Info("pipeline.run.done", "elapsed_ms", elapsed)
}

func terminalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
}
