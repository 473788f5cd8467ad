package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Tallisgo/JianLi-Tanuki/internal/entity"
)

type pagedLister struct {
	all   []entity.Candidate
	calls []entity.CandidateFilter
	err   error
}

func (p *pagedLister) List(_ context.Context, f entity.CandidateFilter) ([]entity.Candidate, error) {
	p.calls = append(p.calls, f)
	if p.err != nil {
		return nil, p.err
	}
	if f.Offset >= len(p.all) {
		return nil, nil
	}
	end := f.Offset + f.Limit
	if end > len(p.all) {
		end = len(p.all)
	}
	return p.all[f.Offset:end], nil
}

func ptr[T any](v T) *T { return &v }

func TestExportCandidatesXLSX(t *testing.T) {
	lister := &pagedLister{all: []entity.Candidate{{
		ID:              1,
		Name:            "张三",
		Phone:           ptr("13800138000"),
		Email:           ptr("zhangsan@example.com"),
		Position:        ptr("后端工程师"),
		ExperienceYears: ptr(5),
		Skills:          []string{"Go", "PostgreSQL"},
		Status:          "active",
		Rating:          ptr(4),
		CreatedAt:       time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC),
	}}}
	svc := NewService(lister, slog.New(slog.NewTextHandler(io.Discard, nil)))

	data, err := svc.ExportCandidatesXLSX(context.Background(), entity.CandidateFilter{Name: "张"})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, headers, rows[0])
	assert.Equal(t, "张三", rows[1][1])
	assert.Equal(t, "13800138000", rows[1][2])
	assert.Equal(t, "5", rows[1][5])
	assert.Equal(t, "Go, PostgreSQL", rows[1][9])
	assert.Equal(t, "4", rows[1][13])
	assert.Equal(t, "2024-03-01 08:30:00", rows[1][16])

	require.Len(t, lister.calls, 1)
	assert.Equal(t, "张", lister.calls[0].Name)
	assert.Equal(t, pageSize, lister.calls[0].Limit)
}

func TestExportPagesThroughAllCandidates(t *testing.T) {
	all := make([]entity.Candidate, pageSize+3)
	for i := range all {
		all[i] = entity.Candidate{ID: int64(i + 1), Name: "候选人", Status: "active"}
	}
	lister := &pagedLister{all: all}
	svc := NewService(lister, nil)

	data, err := svc.ExportCandidatesXLSX(context.Background(), entity.CandidateFilter{})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	assert.Len(t, rows, pageSize+4)
	assert.Len(t, lister.calls, 2)
	assert.Equal(t, pageSize, lister.calls[1].Offset)
}

func TestExportPropagatesListError(t *testing.T) {
	svc := NewService(&pagedLister{err: errors.New("db down")}, nil)
	_, err := svc.ExportCandidatesXLSX(context.Background(), entity.CandidateFilter{Limit: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestTruncateCountsRunes(t *testing.T) {
	assert.Equal(t, "简历…", truncate("简历解析", 3))
	assert.Equal(t, "ok", truncate("ok", 3))
}
