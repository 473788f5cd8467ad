package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/Tallisgo/JianLi-Tanuki/constants"
	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
	"github.com/Tallisgo/JianLi-Tanuki/internal/entity"
)

const tasksTable = "tasks"

var taskColumns = []string{
	"id", "filename", "file_path", "file_size", "file_type", "status", "progress",
	"result", "error", "candidate_id", "created_at", "updated_at", "completed_at",
}

type TaskRepository interface {
	Create(ctx context.Context, t *entity.Task) (*entity.Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (*entity.Task, error)
	SetTaskStatus(ctx context.Context, id uuid.UUID, upd entity.TaskUpdate) (*entity.Task, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Task, error)
	ListByStatus(ctx context.Context, status constants.TaskStatus, limit, offset int) ([]*entity.Task, error)
	Stats(ctx context.Context) (entity.TaskStats, error)
}

type taskRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewTaskRepository(db *DB, logger *slog.Logger) TaskRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &taskRepository{db: db, logger: logger}
}

// Create inserts t in status uploaded. A zero ID is replaced with a fresh UUID.
func (r *taskRepository) Create(ctx context.Context, t *entity.Task) (*entity.Task, error) {
	out := *t
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	now := time.Now().UTC()
	out.Status = constants.TaskStatusUploaded
	out.Progress = 0
	out.Result, out.Error, out.CandidateID, out.CompletedAt = nil, nil, nil, nil
	out.CreatedAt, out.UpdatedAt = now, now

	q, args := r.db.builder().Insert(tasksTable).
		Columns("id", "filename", "file_path", "file_size", "file_type", "status", "progress", "created_at", "updated_at").
		Values(out.ID.String(), out.Filename, out.FilePath, out.FileSize, out.FileType, string(out.Status), out.Progress, now, now).
		Query()
	if _, err := r.db.sqlDB().ExecContext(ctx, q, args...); err != nil {
		r.logger.Error("task create failed", "task_id", out.ID, "error", err)
		return nil, common.DatabaseError("create task", err)
	}
	r.logger.Info("task created", "task_id", out.ID, "filename", out.Filename, "file_type", out.FileType)
	return &out, nil
}

func (r *taskRepository) GetTask(ctx context.Context, id uuid.UUID) (*entity.Task, error) {
	return r.get(ctx, r.db.sqlDB(), id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *taskRepository) get(ctx context.Context, q queryRower, id uuid.UUID) (*entity.Task, error) {
	query, args := r.db.builder().Select(taskColumns...).
		From(entsql.Table(tasksTable)).
		Where(entsql.EQ("id", id.String())).
		Query()
	t, err := scanTask(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.TaskNotFound(id.String())
	}
	if err != nil {
		r.logger.Error("task get failed", "task_id", id, "error", err)
		return nil, common.DatabaseError("get task", err)
	}
	return t, nil
}

// SetTaskStatus applies upd inside a transaction. An empty upd.Status keeps the
// current status. Status changes must follow constants.CanTransition and terminal
// tasks are immutable unless upd.Restart moves them back to parsing, which clears
// result, error, candidate_id and completed_at. completed_at is stamped when a
// terminal status is entered.
func (r *taskRepository) SetTaskStatus(ctx context.Context, id uuid.UUID, upd entity.TaskUpdate) (*entity.Task, error) {
	tx, err := r.db.sqlDB().BeginTx(ctx, nil)
	if err != nil {
		return nil, common.DatabaseError("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := r.get(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	target := upd.Status
	if target == "" {
		target = cur.Status
	}
	if !target.Valid() {
		return nil, common.NewAppError(common.CodeInvalid, "unknown status "+string(target), common.ErrInvalidInput)
	}
	restart := upd.Restart && constants.CanRestart(cur.Status, target)
	illegal := cur.Status.IsTerminal()
	if target != cur.Status {
		illegal = !constants.CanTransition(cur.Status, target)
	}
	if restart {
		illegal = false
	}
	if illegal {
		r.logger.Warn("task illegal transition", "task_id", id, "from", cur.Status, "to", target)
		return nil, common.IllegalTransition(string(cur.Status), string(target))
	}

	now := time.Now().UTC()
	u := r.db.builder().Update(tasksTable).
		Set("status", string(target)).
		Set("updated_at", now)
	if restart {
		u.SetNull("result").SetNull("error").SetNull("candidate_id").SetNull("completed_at")
		cur.Result, cur.Error, cur.CandidateID, cur.CompletedAt = nil, nil, nil, nil
		r.logger.Info("task restarted", "task_id", id, "from", cur.Status)
	}
	if upd.Progress != nil {
		p := min(max(*upd.Progress, 0), 100)
		u.Set("progress", p)
		cur.Progress = p
	}
	if upd.Result != nil {
		v, err := jsonText(upd.Result)
		if err != nil {
			return nil, common.NewAppError(common.CodeInternal, "encode result", err)
		}
		u.Set("result", v)
		cur.Result = upd.Result
	}
	if upd.Error != nil {
		u.Set("error", *upd.Error)
		cur.Error = upd.Error
	}
	if upd.CandidateID != nil {
		u.Set("candidate_id", *upd.CandidateID)
		cur.CandidateID = upd.CandidateID
	}
	if target.IsTerminal() {
		u.Set("completed_at", now)
		cur.CompletedAt = &now
	}
	q, args := u.Where(entsql.EQ("id", id.String())).Query()
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		r.logger.Error("task update failed", "task_id", id, "error", err)
		return nil, common.DatabaseError("update task", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, common.DatabaseError("commit", err)
	}

	cur.Status = target
	cur.UpdatedAt = now
	r.logger.Debug("task status set", "task_id", id, "status", target, "progress", cur.Progress)
	return cur, nil
}

// List returns tasks newest first.
func (r *taskRepository) List(ctx context.Context, limit, offset int) ([]*entity.Task, error) {
	return r.list(ctx, nil, limit, offset)
}

func (r *taskRepository) ListByStatus(ctx context.Context, status constants.TaskStatus, limit, offset int) ([]*entity.Task, error) {
	if !status.Valid() {
		return nil, common.NewAppError(common.CodeInvalid, "unknown status "+string(status), common.ErrInvalidInput)
	}
	return r.list(ctx, entsql.EQ("status", string(status)), limit, offset)
}

func (r *taskRepository) list(ctx context.Context, where *entsql.Predicate, limit, offset int) ([]*entity.Task, error) {
	s := r.db.builder().Select(taskColumns...).From(entsql.Table(tasksTable))
	if where != nil {
		s.Where(where)
	}
	s.OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).Limit(pageLimit(limit))
	if offset > 0 {
		s.Offset(offset)
	}
	q, args := s.Query()
	rows, err := r.db.sqlDB().QueryContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("task list failed", "error", err)
		return nil, common.DatabaseError("list tasks", err)
	}
	defer rows.Close()

	var out []*entity.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, common.DatabaseError("scan task", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, common.DatabaseError("list tasks", err)
	}
	return out, nil
}

// Stats counts tasks per status. Every known status is present in ByStatus.
func (r *taskRepository) Stats(ctx context.Context) (entity.TaskStats, error) {
	stats := entity.TaskStats{ByStatus: map[constants.TaskStatus]int{}}
	for _, s := range constants.AllTaskStatuses() {
		stats.ByStatus[s] = 0
	}
	q, args := r.db.builder().Select("status", entsql.Count("*")).
		From(entsql.Table(tasksTable)).
		GroupBy("status").
		Query()
	rows, err := r.db.sqlDB().QueryContext(ctx, q, args...)
	if err != nil {
		return stats, common.DatabaseError("task stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return stats, common.DatabaseError("scan task stats", err)
		}
		stats.ByStatus[constants.TaskStatus(status)] = n
		stats.Total += n
	}
	return stats, rows.Err()
}

func scanTask(row rowScanner) (*entity.Task, error) {
	var (
		t           entity.Task
		status      string
		result      sql.NullString
		errText     sql.NullString
		candidateID sql.NullInt64
		completedAt sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.Filename, &t.FilePath, &t.FileSize, &t.FileType, &status, &t.Progress,
		&result, &errText, &candidateID, &t.CreatedAt, &t.UpdatedAt, &completedAt); err != nil {
		return nil, err
	}
	t.Status = constants.TaskStatus(status)
	t.Error = nullString(errText)
	t.CandidateID = nullInt64(candidateID)
	t.CompletedAt = nullTime(completedAt)
	if result.Valid && result.String != "" {
		var rec entity.ResumeRecord
		if err := json.Unmarshal([]byte(result.String), &rec); err != nil {
			return nil, err
		}
		t.Result = &rec
	}
	return &t, nil
}
