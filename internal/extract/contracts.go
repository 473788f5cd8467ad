package extract

import (
	"context"
	"time"

	"github.com/Tallisgo/JianLi-Tanuki/internal/entity"
)

// TextExtractor is Stage 1: file -> text.
type TextExtractor interface {
	Extract(ctx context.Context, path, declaredType string) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // "PDF" | "WORD" | "IMAGE"
	Method     string // "pdf-text" | "pdf-ocr" | "word" | "image-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
}

// StructuredExtractor is Stage 2: text -> ResumeRecord.
type StructuredExtractor interface {
	Extract(ctx context.Context, text string) (*entity.ResumeRecord, error)
}
