package extract

import (
	"context"
	"log/slog"

	"github.com/Tallisgo/JianLi-Tanuki/internal/ocr"
)

// OCRAdapter exposes an ocr.Extractor as a TextExtractor.
type OCRAdapter struct {
	e      *ocr.Extractor
	logger *slog.Logger
}

func NewOCRAdapter(e *ocr.Extractor, logger *slog.Logger) *OCRAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRAdapter{e: e, logger: logger}
}

func (a *OCRAdapter) Extract(ctx context.Context, path, declaredType string) (TextExtractionResult, error) {
	r, err := a.e.Extract(ctx, path, declaredType)
	if len(r.Warnings) > 0 {
		a.logger.Debug("extract.text.warnings", "path", path, "warnings", r.Warnings)
	}
	return TextExtractionResult{
		Text:       r.Text,
		Pages:      r.Pages,
		SourceType: r.SourceType,
		Method:     r.Method,
		Language:   r.Language,
		Duration:   r.Duration,
		Warnings:   r.Warnings,
	}, err
}
