package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/Tallisgo/JianLi-Tanuki/constants"
	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
)

type Config struct {
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	Language    string // tesseract language(s), default "chi_sim+eng"
	TessdataDir string
	PDFDPI      int // rasterization DPI for scanned PDFs, default 144 (2x of 72)
	MaxPages    int // 0 = no limit
}

type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.WORD | constants.IMAGE
	Method     string // "pdf-text" | "pdf-ocr" | "word" | "image-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
}

// Extractor turns a résumé file on disk into raw text.
type Extractor struct {
	cfg        Config
	recognizer Recognizer
	openPDF    PDFOpener
	word       WordConverter
	logger     *slog.Logger
}

type Option func(*Extractor)

// WithRecognizer replaces the OCR backend.
func WithRecognizer(r Recognizer) Option {
	return func(e *Extractor) {
		if r != nil {
			e.recognizer = r
		}
	}
}

// WithPDFOpener replaces the PDF backend.
func WithPDFOpener(o PDFOpener) Option {
	return func(e *Extractor) {
		if o != nil {
			e.openPDF = o
		}
	}
}

// WithWordConverter replaces the doc/docx backend.
func WithWordConverter(w WordConverter) Option {
	return func(e *Extractor) {
		if w != nil {
			e.word = w
		}
	}
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "chi_sim+eng"
	}
	if cfg.PDFDPI <= 0 {
		cfg.PDFDPI = 144
	}
	e := &Extractor{
		cfg:        cfg,
		recognizer: NewTessRecognizer(cfg.Language, cfg.TessdataDir),
		openPDF:    OpenFitz,
		word:       docconvConverter{},
		logger:     logger,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract picks a strategy from the file extension, falling back to the declared
// media type when the extension is missing or unknown.
func (e *Extractor) Extract(ctx context.Context, path, declaredType string) (ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	format := constants.MapExtToFormat(ext)
	if format == "" {
		format = constants.MapMediaTypeToFormat(declaredType)
	}
	e.logger.Debug("ocr.extract.start", "path", path, "ext", ext, "declared_type", declaredType, "format", format)

	var (
		res ExtractionResult
		err error
	)
	switch format {
	case constants.PDF:
		res, err = e.extractPDF(ctx, path)
	case constants.WORD:
		res, err = e.extractWord(ctx, path, ext, declaredType)
	case constants.IMAGE:
		res, err = e.extractImage(ctx, path)
	default:
		e.logger.Error("ocr.extract.unsupported", "extension", ext, "declared_type", declaredType)
		return ExtractionResult{}, common.UnsupportedType("unsupported file type: %q", firstNonEmpty(ext, declaredType))
	}
	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Error("ocr.extract.failed", "path", path, "format", format, "error", err)
		if common.ErrorCode(err) == "" {
			err = common.ExtractionFailure("text extraction failed", err)
		}
		return res, err
	}
	if strings.TrimSpace(res.Text) == "" {
		e.logger.Warn("ocr.extract.empty", "path", path, "format", format, "method", res.Method, "warnings", res.Warnings)
		return res, common.ExtractionFailure("no text could be extracted from the file", warningCause(res.Warnings))
	}
	e.logger.Info("ocr.extract.ok",
		"path", path,
		"method", res.Method,
		"pages", res.Pages,
		"text_len", len(res.Text),
		"warnings", len(res.Warnings),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// warningCause reports the first warning, if any, as the reason nothing was extracted.
func warningCause(warns []string) error {
	switch len(warns) {
	case 0:
		return nil
	case 1:
		return errors.New(warns[0])
	}
	return fmt.Errorf("%s (and %d more)", warns[0], len(warns)-1)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
