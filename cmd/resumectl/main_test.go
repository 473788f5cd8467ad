package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
)

// run executes the command tree against a throwaway SQLite file.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--env", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DB_URL", "sqlite://"+filepath.Join(dir, "resumes.db"))
	t.Setenv("UPLOAD_DIR", filepath.Join(dir, "uploads"))
	t.Setenv("SILICONFLOW_API_KEY", "")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func TestMigrateThenStats(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	var mig map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &mig))
	assert.Equal(t, "sqlite3", mig["dialect"])

	out, err = run(t, "stats")
	require.NoError(t, err)
	var stats struct {
		Tasks struct {
			Total    int            `json:"total"`
			ByStatus map[string]int `json:"by_status"`
		} `json:"tasks"`
		Candidates struct {
			Total int `json:"total"`
		} `json:"candidates"`
		TopSkills []map[string]any `json:"top_skills"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 0, stats.Tasks.Total)
	assert.Contains(t, stats.Tasks.ByStatus, "duplicate")
	assert.Equal(t, 0, stats.Candidates.Total)
	assert.NotNil(t, stats.TopSkills)
	assert.Empty(t, stats.TopSkills)
}

func TestCandidatesByTaskRequiresUUID(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "candidates", "by-task", "42")
	assert.True(t, common.IsCode(err, common.CodeInvalid))
}

func TestCandidatesExperienceFilterOnEmptyStore(t *testing.T) {
	setupEnv(t)
	t.Cleanup(func() { expMin, expMax = -1, -1 })
	out, err := run(t, "candidates", "--min-exp", "3", "--max-exp", "5")
	require.NoError(t, err)
	assert.JSONEq(t, `null`, out)
}

func TestTasksRejectsUnknownStatus(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "tasks", "--status", "archived")
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.CodeInvalid))
}

func TestTaskRequiresUUID(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "task", "not-a-uuid")
	assert.True(t, common.IsCode(err, common.CodeInvalid))
}

func TestCheckDuplicateOnEmptyStore(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "check-duplicate", "--name", "张三", "--phone", "13800138000")
	require.NoError(t, err)
	assert.JSONEq(t, `{"exists": false}`, out)
}

func TestExportWritesWorkbook(t *testing.T) {
	dir := setupEnv(t)
	dst := filepath.Join(dir, "out.xlsx")
	_, err := run(t, "export", "--out", dst)
	require.NoError(t, err)
	st, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Positive(t, st.Size())
}

func TestIngestRejectsUnsupportedFile(t *testing.T) {
	dir := setupEnv(t)
	src := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	out, err := run(t, "ingest", src)
	require.NoError(t, err)
	var res []ingestOutcome
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res, 1)
	assert.Nil(t, res[0].Task)
	assert.Contains(t, res[0].Error, common.CodeInvalid)
}
