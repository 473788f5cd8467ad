package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tallisgo/JianLi-Tanuki/constants"
	"github.com/Tallisgo/JianLi-Tanuki/internal/async"
	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
	"github.com/Tallisgo/JianLi-Tanuki/internal/entity"
	"github.com/Tallisgo/JianLi-Tanuki/internal/repository"
)

type fakeQueue struct {
	mu   sync.Mutex
	jobs []async.Job
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Submit(ctx context.Context, job async.Job) error {
	return q.Enqueue(ctx, job)
}

func (q *fakeQueue) Shutdown(context.Context) {}

func (q *fakeQueue) Jobs() []async.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]async.Job(nil), q.jobs...)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newIngestor(t *testing.T, q async.Queue, maxSize int64) (*FSIngestor, repository.TaskRepository, string) {
	t.Helper()
	return newIngestorWith(t, q, Config{MaxFileSize: maxSize})
}

func newIngestorWith(t *testing.T, q async.Queue, cfg Config) (*FSIngestor, repository.TaskRepository, string) {
	t.Helper()
	logger := discard()
	db, err := repository.Open(context.Background(), repository.Config{DSN: "sqlite://:memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, logger) })
	_, err = repository.Migrate(context.Background(), db, logger)
	require.NoError(t, err)

	tasks := repository.NewTaskRepository(db, logger)
	dir := filepath.Join(t.TempDir(), "uploads")
	cfg.UploadDir = dir
	return NewFSIngestor(tasks, q, cfg, logger), tasks, dir
}

func TestIngestStoresFileAndSchedulesRun(t *testing.T) {
	q := &fakeQueue{}
	ing, tasks, dir := newIngestor(t, q, 1024)

	task, err := ing.Ingest(context.Background(), Upload{
		Filename: "张三_简历.pdf",
		Body:     strings.NewReader("%PDF-1.4 fake"),
	}, Options{Force: true})
	require.NoError(t, err)

	assert.Equal(t, constants.TaskStatusUploaded, task.Status)
	assert.Equal(t, "application/pdf", task.FileType)
	assert.Equal(t, int64(13), task.FileSize)
	assert.Equal(t, filepath.Join(dir, task.ID.String()+".pdf"), task.FilePath)

	data, err := os.ReadFile(task.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(data))

	stored, err := tasks.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "张三_简历.pdf", stored.Filename)

	jobs := q.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, task.ID, jobs[0].TaskID)
	assert.True(t, jobs[0].Force)
	assert.False(t, jobs[0].IsUpdate())
	assert.NotEmpty(t, jobs[0].TraceID)
}

func TestIngestUpdateCarriesCandidate(t *testing.T) {
	q := &fakeQueue{}
	ing, _, _ := newIngestor(t, q, 1024)

	id := int64(7)
	_, err := ing.Ingest(context.Background(), Upload{
		Filename:  "resume.DOCX",
		MediaType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Body:      strings.NewReader("docx"),
	}, Options{CandidateID: &id})
	require.NoError(t, err)

	jobs := q.Jobs()
	require.Len(t, jobs, 1)
	require.True(t, jobs[0].IsUpdate())
	assert.Equal(t, int64(7), *jobs[0].CandidateID)
}

func TestIngestRejectsInvalidUploads(t *testing.T) {
	zero := int64(0)
	cases := []struct {
		name string
		up   Upload
		opts Options
	}{
		{"extension", Upload{Filename: "notes.txt", Body: strings.NewReader("x")}, Options{}},
		{"media type", Upload{Filename: "cv.pdf", MediaType: "text/html", Body: strings.NewReader("x")}, Options{}},
		{"declared size", Upload{Filename: "cv.pdf", Size: 4096, Body: strings.NewReader("x")}, Options{}},
		{"actual size", Upload{Filename: "cv.pdf", Body: bytes.NewReader(make([]byte, 2048))}, Options{}},
		{"empty", Upload{Filename: "cv.png", Body: strings.NewReader("")}, Options{}},
		{"no body", Upload{Filename: "cv.png"}, Options{}},
		{"candidate id", Upload{Filename: "cv.pdf", Body: strings.NewReader("x")}, Options{CandidateID: &zero}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := &fakeQueue{}
			ing, tasks, dir := newIngestor(t, q, 1024)

			_, err := ing.Ingest(context.Background(), tc.up, tc.opts)
			require.Error(t, err)
			assert.True(t, common.IsCode(err, common.CodeInvalid), err.Error())
			assert.Empty(t, q.Jobs())

			list, err := tasks.List(context.Background(), 10, 0)
			require.NoError(t, err)
			assert.Empty(t, list)

			entries, _ := os.ReadDir(dir)
			assert.Empty(t, entries)
		})
	}
}

func TestIngestQueueFullFailsTask(t *testing.T) {
	q := &fakeQueue{err: common.NewAppError(common.CodeQueueFull, "queue full", common.ErrQueueFull)}
	ing, tasks, _ := newIngestor(t, q, 1024)

	_, err := ing.Ingest(context.Background(), Upload{Filename: "cv.jpg", Body: strings.NewReader("jpeg")}, Options{})
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.CodeQueueFull))

	list, err := tasks.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, constants.TaskStatusFailed, list[0].Status)
	require.NotNil(t, list[0].Error)
	assert.Contains(t, *list[0].Error, MsgEnqueueFailed)
}

func TestIngestDirectory(t *testing.T) {
	q := &fakeQueue{}
	ing, _, _ := newIngestor(t, q, 1024)

	root := t.TempDir()
	write := func(rel, body string) {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	write("a.pdf", "pdf")
	write("sub/b.png", "png")
	write("sub/readme.md", "skip")
	write(".hidden/c.pdf", "hidden")
	write("empty.docx", "")

	results, stats, err := ing.IngestDirectory(context.Background(), root, Options{}, true)
	require.NoError(t, err)

	assert.Equal(t, uint32(4), stats.Scanned)
	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(2), stats.Succeeded)
	assert.Equal(t, uint32(1), stats.Failed)
	assert.Len(t, results, 3)
	assert.Len(t, q.Jobs(), 2)
}

// slowRunner completes every run after a short pause.
type slowRunner struct {
	mu    sync.Mutex
	delay time.Duration
	ran   []uuid.UUID
}

func (r *slowRunner) RunIngestion(ctx context.Context, id uuid.UUID, _ bool) error {
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	r.mu.Lock()
	r.ran = append(r.ran, id)
	r.mu.Unlock()
	return nil
}

func (r *slowRunner) RunUpdateIngestion(ctx context.Context, id uuid.UUID, _ int64) error {
	return r.RunIngestion(ctx, id, false)
}

func writeResumes(t *testing.T, n int) string {
	t.Helper()
	root := t.TempDir()
	for k := 0; k < n; k++ {
		p := filepath.Join(root, fmt.Sprintf("resume-%02d.pdf", k))
		require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4"), 0o644))
	}
	return root
}

func TestIngestDirectoryWaitsForQueueCapacity(t *testing.T) {
	runner := &slowRunner{delay: 20 * time.Millisecond}
	q := async.NewProcessorQueue(runner, discard(), async.WithWorkers(1), async.WithQueueSize(2))
	ing, _, _ := newIngestorWith(t, q, Config{WaitForCapacity: true})
	root := writeResumes(t, 10)

	results, stats, err := ing.IngestDirectory(context.Background(), root, Options{}, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), stats.Matched)
	assert.Equal(t, uint32(10), stats.Succeeded)
	assert.Zero(t, stats.Failed)
	assert.Len(t, results, 10)

	q.Shutdown(context.Background())
	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Len(t, runner.ran, 10)
}

func TestIngestDirectoryStopsOnFullQueue(t *testing.T) {
	runner := &slowRunner{delay: 200 * time.Millisecond}
	q := async.NewProcessorQueue(runner, discard(), async.WithWorkers(1), async.WithQueueSize(1))
	defer q.Shutdown(context.Background())
	ing, _, _ := newIngestorWith(t, q, Config{})
	root := writeResumes(t, 10)

	_, stats, err := ing.IngestDirectory(context.Background(), root, Options{}, true)
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.CodeQueueFull))
	assert.Less(t, stats.Matched, uint32(10))
	assert.Equal(t, uint32(1), stats.Failed)
}

func TestIngestDirectoryRequiresRoot(t *testing.T) {
	ing, _, _ := newIngestor(t, &fakeQueue{}, 1024)
	_, _, err := ing.IngestDirectory(context.Background(), " ", Options{}, true)
	assert.True(t, common.IsCode(err, common.CodeInvalid))
}

// scriptedIngestor fails any file whose name starts with "bad".
type scriptedIngestor struct {
	mu    sync.Mutex
	paths []string
}

func (s *scriptedIngestor) Ingest(context.Context, Upload, Options) (*entity.Task, error) {
	return nil, nil
}

func (s *scriptedIngestor) IngestPath(_ context.Context, path string, _ Options) (IngestionResult, error) {
	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()
	if strings.HasPrefix(filepath.Base(path), "bad") {
		return IngestionResult{}, common.NewAppError(common.CodeInvalid, "bad file", common.ErrValidation)
	}
	return IngestionResult{SourcePath: path}, nil
}

func (s *scriptedIngestor) IngestDirectory(context.Context, string, Options, bool) ([]IngestionResult, DirStats, error) {
	return nil, DirStats{}, nil
}

func TestRunInboxMovesHandledFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.pdf"), []byte("pdf"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.pdf"), []byte("pdf"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("txt"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	ing := &scriptedIngestor{}
	go func() { done <- RunInbox(ctx, ing, InboxConfig{Dir: dir, Debounce: 20 * time.Millisecond}, discard()) }()

	assert.Eventually(t, func() bool {
		_, errGood := os.Stat(filepath.Join(dir, IngestedDir, "good.pdf"))
		_, errBad := os.Stat(filepath.Join(dir, RejectedDir, "bad.pdf"))
		return errGood == nil && errBad == nil
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.png"), []byte("png"), 0o644))
	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, IngestedDir, "late.png"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("inbox did not stop")
	}

	_, err := os.Stat(filepath.Join(dir, "notes.txt"))
	assert.NoError(t, err)
}
