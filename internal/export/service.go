package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Tallisgo/JianLi-Tanuki/internal/entity"
)

const sheet = "Candidates"

// CandidateLister is satisfied by repository.CandidateRepository.
type CandidateLister interface {
	List(ctx context.Context, f entity.CandidateFilter) ([]entity.Candidate, error)
}

// Service produces XLSX bytes for candidate exports.
type Service struct {
	candidates CandidateLister
	logger     *slog.Logger
}

func NewService(candidates CandidateLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{candidates: candidates, logger: logger}
}

var headers = []string{
	"ID", "姓名", "电话", "邮箱", "应聘职位", "工作年限", "学历", "学校", "专业",
	"技能", "语言", "证书", "状态", "评分", "标签", "备注", "创建时间",
}

// ExportCandidatesXLSX returns a workbook with one row per candidate matching f.
// A zero f.Limit exports every match.
func (s *Service) ExportCandidatesXLSX(ctx context.Context, f entity.CandidateFilter) ([]byte, error) {
	start := time.Now()

	rows, err := s.collect(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}

	x := excelize.NewFile()
	defer func() { _ = x.Close() }()
	if err := x.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = x.SetCellValue(sheet, cell, h)
	}
	bold, err := x.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = x.SetCellStyle(sheet, "A1", last, bold)
	}

	for r, c := range rows {
		row := r + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = x.SetCellValue(sheet, cell, v)
		}
		write(1, c.ID)
		write(2, c.Name)
		write(3, str(c.Phone))
		write(4, str(c.Email))
		write(5, str(c.Position))
		if c.ExperienceYears != nil {
			write(6, *c.ExperienceYears)
		}
		write(7, str(c.EducationLevel))
		write(8, str(c.School))
		write(9, str(c.Major))
		write(10, strings.Join(c.Skills, ", "))
		write(11, strings.Join(c.Languages, ", "))
		write(12, strings.Join(c.Certifications, ", "))
		write(13, c.Status)
		if c.Rating != nil {
			write(14, *c.Rating)
		}
		write(15, strings.Join(c.Tags, ", "))
		write(16, truncate(str(c.Notes), 140))
		write(17, c.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	}

	_ = x.SetColWidth(sheet, "A", "A", 8)
	_ = x.SetColWidth(sheet, "B", "B", 14)
	_ = x.SetColWidth(sheet, "C", "D", 24)
	_ = x.SetColWidth(sheet, "E", "E", 20)
	_ = x.SetColWidth(sheet, "F", "G", 10)
	_ = x.SetColWidth(sheet, "H", "I", 22)
	_ = x.SetColWidth(sheet, "J", "L", 36)
	_ = x.SetColWidth(sheet, "P", "P", 48)
	_ = x.SetColWidth(sheet, "Q", "Q", 20)
	_ = x.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := x.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

const pageSize = 500

func (s *Service) collect(ctx context.Context, f entity.CandidateFilter) ([]entity.Candidate, error) {
	if f.Limit > 0 {
		return s.candidates.List(ctx, f)
	}
	var out []entity.Candidate
	f.Limit = pageSize
	for {
		page, err := s.candidates.List(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < pageSize {
			return out, nil
		}
		f.Offset += pageSize
	}
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
