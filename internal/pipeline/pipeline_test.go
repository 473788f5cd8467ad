package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tallisgo/JianLi-Tanuki/constants"
	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
	"github.com/Tallisgo/JianLi-Tanuki/internal/dedup"
	"github.com/Tallisgo/JianLi-Tanuki/internal/entity"
	"github.com/Tallisgo/JianLi-Tanuki/internal/extract"
	"github.com/Tallisgo/JianLi-Tanuki/internal/repository"
)

type stubText struct {
	text string
	err  error
}

func (s stubText) Extract(_ context.Context, _, _ string) (extract.TextExtractionResult, error) {
	if s.err != nil {
		return extract.TextExtractionResult{}, s.err
	}
	return extract.TextExtractionResult{Text: s.text, Method: "pdf-text", Pages: 1}, nil
}

type stubStructured struct {
	rec   *entity.ResumeRecord
	err   error
	panic bool
}

func (s stubStructured) Extract(_ context.Context, _ string) (*entity.ResumeRecord, error) {
	if s.panic {
		panic("boom")
	}
	return s.rec, s.err
}

// recordingTasks remembers every status a task passes through.
type recordingTasks struct {
	TaskStore
	mu      sync.Mutex
	history map[uuid.UUID][]constants.TaskStatus
}

func (r *recordingTasks) SetTaskStatus(ctx context.Context, id uuid.UUID, upd entity.TaskUpdate) (*entity.Task, error) {
	t, err := r.TaskStore.SetTaskStatus(ctx, id, upd)
	if err == nil && upd.Status != "" {
		r.mu.Lock()
		r.history[id] = append(r.history[id], upd.Status)
		r.mu.Unlock()
	}
	return t, err
}

type fixture struct {
	tasks      repository.TaskRepository
	recorder   *recordingTasks
	candidates repository.CandidateRepository
	logger     *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := repository.Open(context.Background(), repository.Config{DSN: "sqlite://:memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, logger) })
	_, err = repository.Migrate(context.Background(), db, logger)
	require.NoError(t, err)

	tasks := repository.NewTaskRepository(db, logger)
	return &fixture{
		tasks:      tasks,
		recorder:   &recordingTasks{TaskStore: tasks, history: map[uuid.UUID][]constants.TaskStatus{}},
		candidates: repository.NewCandidateRepository(db, logger),
		logger:     logger,
	}
}

func (f *fixture) pipeline(text extract.TextExtractor, structured extract.StructuredExtractor, opts ...Option) *Pipeline {
	return New(f.recorder, f.candidates, text, structured, dedup.NewResolver(f.candidates, f.logger), f.logger, opts...)
}

func (f *fixture) newTask(t *testing.T) uuid.UUID {
	t.Helper()
	task, err := f.tasks.Create(context.Background(), &entity.Task{
		Filename: "resume.pdf",
		FilePath: "uploads/resume.pdf",
		FileType: "application/pdf",
	})
	require.NoError(t, err)
	return task.ID
}

func (f *fixture) task(t *testing.T, id uuid.UUID) *entity.Task {
	t.Helper()
	task, err := f.tasks.GetTask(context.Background(), id)
	require.NoError(t, err)
	return task
}

func (f *fixture) seed(t *testing.T, c entity.Candidate) *entity.Candidate {
	t.Helper()
	saved, err := f.candidates.SaveCandidate(context.Background(), &c)
	require.NoError(t, err)
	return saved
}

func zhangSan(phone string) *entity.ResumeRecord {
	return &entity.ResumeRecord{
		Name:    entity.Ptr("张三"),
		Contact: &entity.ContactInfo{Phone: entity.Ptr(phone)},
		Education: []entity.Education{{
			Degree:      entity.Ptr("硕士学位"),
			Institution: entity.Ptr("清华大学"),
			Major:       entity.Ptr("计算机科学与技术"),
		}},
		Experience: []entity.WorkEntry{{
			Title:     entity.Ptr("软件工程师"),
			StartDate: entity.Ptr("2019-07"),
			EndDate:   entity.Ptr("2022-12"),
		}},
		Skills: []string{"Go", "SQL"},
	}
}

func TestRunIngestionCreatesCandidate(t *testing.T) {
	f := newFixture(t)
	id := f.newTask(t)
	p := f.pipeline(stubText{text: "张三 简历"}, stubStructured{rec: zhangSan("13800138000")})

	require.NoError(t, p.RunIngestion(context.Background(), id, false))

	task := f.task(t, id)
	assert.Equal(t, constants.TaskStatusCompleted, task.Status)
	assert.Equal(t, 100, task.Progress)
	assert.NotNil(t, task.CompletedAt)
	assert.Nil(t, task.Error)
	require.NotNil(t, task.Result)
	assert.Equal(t, "张三", *task.Result.Name)
	require.NotNil(t, task.CandidateID)

	c, err := f.candidates.GetCandidate(context.Background(), *task.CandidateID)
	require.NoError(t, err)
	assert.Equal(t, "张三", c.Name)
	assert.Equal(t, id.String(), *c.TaskID)
	assert.Equal(t, "软件工程师", *c.Position)
	assert.Equal(t, "清华大学", *c.School)
	assert.Equal(t, "硕士学位", *c.EducationLevel)
	assert.Equal(t, 3, *c.ExperienceYears)
	assert.Equal(t, []string{"Go", "SQL"}, c.Skills)

	assert.Equal(t, []constants.TaskStatus{constants.TaskStatusParsing, constants.TaskStatusCompleted}, f.recorder.history[id])
}

func TestRunIngestionDuplicateByPhone(t *testing.T) {
	f := newFixture(t)
	known := f.seed(t, entity.Candidate{Name: "张三", Phone: entity.Ptr("+86 13800138000")})
	id := f.newTask(t)
	p := f.pipeline(stubText{text: "x"}, stubStructured{rec: zhangSan("138-0013-8000")})

	require.NoError(t, p.RunIngestion(context.Background(), id, false))

	task := f.task(t, id)
	assert.Equal(t, constants.TaskStatusDuplicate, task.Status)
	assert.NotNil(t, task.CompletedAt)
	assert.Nil(t, task.CandidateID)
	require.NotNil(t, task.Error)

	var notice entity.DuplicateNotice
	require.NoError(t, json.Unmarshal([]byte(*task.Error), &notice))
	assert.True(t, notice.Duplicate)
	assert.Equal(t, known.ID, notice.CandidateID)
	assert.Equal(t, "张三", notice.CandidateName)
	assert.Equal(t, "+86 13800138000", *notice.CandidatePhone)
	assert.Nil(t, notice.CandidateEmail)
	assert.Equal(t, entity.MatchPhone, notice.MatchKind)
	assert.False(t, notice.Ambiguous)
	assert.NotEmpty(t, notice.Message)

	all, err := f.candidates.List(context.Background(), entity.CandidateFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRunIngestionForceSkipsDuplicateCheck(t *testing.T) {
	f := newFixture(t)
	f.seed(t, entity.Candidate{Name: "张三", Phone: entity.Ptr("13800138000")})
	p := f.pipeline(stubText{text: "x"}, stubStructured{rec: zhangSan("13800138000")})

	first, second := f.newTask(t), f.newTask(t)
	require.NoError(t, p.RunIngestion(context.Background(), first, true))
	require.NoError(t, p.RunIngestion(context.Background(), second, true))

	a, b := f.task(t, first), f.task(t, second)
	assert.Equal(t, constants.TaskStatusCompleted, a.Status)
	assert.Equal(t, constants.TaskStatusCompleted, b.Status)
	require.NotNil(t, a.CandidateID)
	require.NotNil(t, b.CandidateID)
	assert.NotEqual(t, *a.CandidateID, *b.CandidateID)
}

func TestRunIngestionAmbiguousPolicy(t *testing.T) {
	rec := &entity.ResumeRecord{Name: entity.Ptr("李四")}

	t.Run("duplicate", func(t *testing.T) {
		f := newFixture(t)
		known := f.seed(t, entity.Candidate{Name: "李四"})
		id := f.newTask(t)
		require.NoError(t, f.pipeline(stubText{text: "x"}, stubStructured{rec: rec}).RunIngestion(context.Background(), id, false))

		task := f.task(t, id)
		assert.Equal(t, constants.TaskStatusDuplicate, task.Status)
		var notice entity.DuplicateNotice
		require.NoError(t, json.Unmarshal([]byte(*task.Error), &notice))
		assert.True(t, notice.Ambiguous)
		assert.Equal(t, entity.MatchName, notice.MatchKind)
		assert.Equal(t, known.ID, notice.CandidateID)
	})

	t.Run("create", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, entity.Candidate{Name: "李四"})
		id := f.newTask(t)
		p := f.pipeline(stubText{text: "x"}, stubStructured{rec: rec}, WithAmbiguousPolicy(PolicyCreate))
		require.NoError(t, p.RunIngestion(context.Background(), id, false))
		assert.Equal(t, constants.TaskStatusCompleted, f.task(t, id).Status)
	})

	t.Run("two namesakes without contact", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, entity.Candidate{Name: "李四"})
		f.seed(t, entity.Candidate{Name: "李四"})
		id := f.newTask(t)
		require.NoError(t, f.pipeline(stubText{text: "x"}, stubStructured{rec: rec}).RunIngestion(context.Background(), id, false))
		assert.Equal(t, constants.TaskStatusCompleted, f.task(t, id).Status)
	})
}

func TestRunIngestionFailures(t *testing.T) {
	cases := []struct {
		name       string
		text       stubText
		structured stubStructured
		code       string
	}{
		{"unsupported type", stubText{err: common.UnsupportedType("format %q", "txt")}, stubStructured{}, common.CodeUnsupportedType},
		{"empty text", stubText{err: common.ExtractionFailure("no text", nil)}, stubStructured{}, common.CodeExtractionFailure},
		{"llm down", stubText{text: "x"}, stubStructured{err: common.LLMUnavailable("timeout", context.DeadlineExceeded)}, common.CodeLLMUnavailable},
		{"bad payload", stubText{text: "x"}, stubStructured{err: common.MalformedPayload("schema", nil)}, common.CodeMalformedPayload},
		{"nil record", stubText{text: "x"}, stubStructured{}, common.CodeMalformedPayload},
		{"panic", stubText{text: "x"}, stubStructured{panic: true}, common.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			id := f.newTask(t)
			err := f.pipeline(tc.text, tc.structured).RunIngestion(context.Background(), id, false)
			assert.True(t, common.IsCode(err, tc.code), "got %v", err)

			task := f.task(t, id)
			assert.Equal(t, constants.TaskStatusFailed, task.Status)
			assert.NotNil(t, task.CompletedAt)
			require.NotNil(t, task.Error)
			assert.Contains(t, *task.Error, tc.code)
		})
	}
}

func TestRunIngestionUnknownTask(t *testing.T) {
	f := newFixture(t)
	err := f.pipeline(stubText{}, stubStructured{}).RunIngestion(context.Background(), uuid.New(), false)
	assert.True(t, common.IsCode(err, common.CodeTaskNotFound))
}

func TestRunIngestionTaskAlreadyTerminal(t *testing.T) {
	f := newFixture(t)
	id := f.newTask(t)
	p := f.pipeline(stubText{text: "x"}, stubStructured{rec: zhangSan("1")})
	require.NoError(t, p.RunIngestion(context.Background(), id, false))

	err := p.RunIngestion(context.Background(), id, false)
	assert.True(t, common.IsCode(err, common.CodeTransition), "got %v", err)
	task := f.task(t, id)
	assert.Equal(t, constants.TaskStatusCompleted, task.Status)
	assert.NotNil(t, task.CandidateID)
}

func TestRunIngestionForcedRerunCompletesAgain(t *testing.T) {
	f := newFixture(t)
	id := f.newTask(t)
	p := f.pipeline(stubText{text: "x"}, stubStructured{rec: zhangSan("13800138000")})
	ctx := context.Background()

	require.NoError(t, p.RunIngestion(ctx, id, true))
	first := f.task(t, id)
	require.NotNil(t, first.CandidateID)

	require.NoError(t, p.RunIngestion(ctx, id, true))
	second := f.task(t, id)
	assert.Equal(t, constants.TaskStatusCompleted, second.Status)
	assert.Equal(t, 100, second.Progress)
	assert.NotNil(t, second.CompletedAt)
	assert.Nil(t, second.Error)
	require.NotNil(t, second.CandidateID)
	assert.NotEqual(t, *first.CandidateID, *second.CandidateID)

	all, err := f.candidates.FindCandidatesByExactName(ctx, "张三")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, []constants.TaskStatus{
		constants.TaskStatusParsing, constants.TaskStatusCompleted,
		constants.TaskStatusParsing, constants.TaskStatusCompleted,
	}, f.recorder.history[id])
}

func TestRunIngestionForcedRerunClearsDuplicateNotice(t *testing.T) {
	f := newFixture(t)
	f.seed(t, entity.Candidate{Name: "张三", Phone: entity.Ptr("13800138000")})
	id := f.newTask(t)
	p := f.pipeline(stubText{text: "x"}, stubStructured{rec: zhangSan("13800138000")})
	ctx := context.Background()

	require.NoError(t, p.RunIngestion(ctx, id, false))
	require.Equal(t, constants.TaskStatusDuplicate, f.task(t, id).Status)

	require.NoError(t, p.RunIngestion(ctx, id, true))
	task := f.task(t, id)
	assert.Equal(t, constants.TaskStatusCompleted, task.Status)
	assert.Nil(t, task.Error)
	assert.NotNil(t, task.CandidateID)
}

func TestRunUpdateIngestionMissingCandidate(t *testing.T) {
	f := newFixture(t)
	id := f.newTask(t)
	p := f.pipeline(stubText{text: "x"}, stubStructured{rec: zhangSan("1")})

	err := p.RunUpdateIngestion(context.Background(), id, 4242)
	assert.True(t, errors.Is(err, common.ErrCandidateNotFound))

	task := f.task(t, id)
	assert.Equal(t, constants.TaskStatusFailed, task.Status)
	assert.Equal(t, MsgCandidateNotFound, *task.Error)
	assert.Equal(t, []constants.TaskStatus{constants.TaskStatusFailed}, f.recorder.history[id])
}

func TestRunUpdateIngestionMergesOntoCandidate(t *testing.T) {
	f := newFixture(t)
	known := f.seed(t, entity.Candidate{
		Name:      "张三",
		Phone:     entity.Ptr("13800000000"),
		Email:     entity.Ptr("old@example.com"),
		Languages: []string{"英语"},
		Notes:     entity.Ptr("keep me"),
	})
	id := f.newTask(t)
	rec := zhangSan("13900000000")
	rec.Contact.Email = nil
	p := f.pipeline(stubText{text: "x"}, stubStructured{rec: rec})

	require.NoError(t, p.RunUpdateIngestion(context.Background(), id, known.ID))

	task := f.task(t, id)
	assert.Equal(t, constants.TaskStatusCompleted, task.Status)
	assert.Equal(t, known.ID, *task.CandidateID)

	c, err := f.candidates.GetCandidate(context.Background(), known.ID)
	require.NoError(t, err)
	assert.Equal(t, "13900000000", *c.Phone)
	assert.Equal(t, "old@example.com", *c.Email)
	assert.Equal(t, []string{"Go", "SQL"}, c.Skills)
	assert.Equal(t, []string{"英语"}, c.Languages)
	assert.Equal(t, "软件工程师", *c.Position)
	assert.Equal(t, "清华大学", *c.School)
	assert.Equal(t, "keep me", *c.Notes)
	assert.Equal(t, id.String(), *c.TaskID)
	assert.Equal(t, []constants.TaskStatus{constants.TaskStatusParsing, constants.TaskStatusCompleted}, f.recorder.history[id])
}

type failingSave struct {
	CandidateStore
}

func (failingSave) SaveCandidate(context.Context, *entity.Candidate) (*entity.Candidate, error) {
	return nil, common.DatabaseError("disk full", nil)
}

func TestRunUpdateIngestionSaveFailure(t *testing.T) {
	f := newFixture(t)
	known := f.seed(t, entity.Candidate{Name: "张三"})
	id := f.newTask(t)
	p := New(f.recorder, failingSave{f.candidates}, stubText{text: "x"}, stubStructured{rec: zhangSan("1")},
		dedup.NewResolver(f.candidates, f.logger), f.logger)

	err := p.RunUpdateIngestion(context.Background(), id, known.ID)
	assert.True(t, common.IsCode(err, common.CodeDatabase))
	task := f.task(t, id)
	assert.Equal(t, constants.TaskStatusFailed, task.Status)
	assert.Equal(t, MsgSaveCandidateFailed, *task.Error)
}

func TestRunIngestionExpiredContextStillFailsTask(t *testing.T) {
	f := newFixture(t)
	id := f.newTask(t)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	err := f.pipeline(stubText{text: "x"}, stubStructured{rec: zhangSan("1")}).RunIngestion(ctx, id, false)
	require.Error(t, err)
	task := f.task(t, id)
	assert.Equal(t, constants.TaskStatusFailed, task.Status)
}

func TestCheckDuplicate(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, entity.Candidate{Name: "张三", Phone: entity.Ptr("138-0013-8000"), Status: "active"})
	resolver := dedup.NewResolver(f.candidates, f.logger)
	ctx := context.Background()

	got, err := CheckDuplicate(ctx, resolver, " 张 三 ", "+86 13800138000", "")
	require.NoError(t, err)
	require.True(t, got.Exists)
	assert.Equal(t, seeded.ID, got.Notice.CandidateID)
	assert.Equal(t, entity.MatchPhone, got.Notice.MatchKind)

	got, err = CheckDuplicate(ctx, resolver, "张三", "", "")
	require.NoError(t, err)
	require.True(t, got.Exists)
	assert.True(t, got.Notice.Ambiguous)

	got, err = CheckDuplicate(ctx, resolver, "李四", "", "")
	require.NoError(t, err)
	assert.False(t, got.Exists)
	assert.Nil(t, got.Notice)

	_, err = CheckDuplicate(ctx, resolver, "  ", "", "")
	assert.True(t, common.IsCode(err, common.CodeInvalid))
}
