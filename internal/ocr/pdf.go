package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/Tallisgo/JianLi-Tanuki/constants"
)

// PDFDocument is the subset of a PDF backend the extractor needs.
type PDFDocument interface {
	NumPage() int
	Text(page int) (string, error)
	ImagePNG(page int, dpi float64) ([]byte, error)
	Close() error
}

// PDFOpener opens a PDF document at path.
type PDFOpener func(path string) (PDFDocument, error)

// OpenFitz opens a PDF with MuPDF.
func OpenFitz(path string) (PDFDocument, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// pageMarker prefixes each OCR'd page.
func pageMarker(n int) string {
	return fmt.Sprintf("=== 第%d页 ===\n", n)
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{SourceType: constants.PDF, Language: e.cfg.Language}

	text, pages, err := e.pdfToText(path)
	if err == nil && strings.TrimSpace(text) != "" {
		res.Text = text
		res.Pages = pages
		res.Method = "pdf-text"
		return res, nil
	}
	if err != nil {
		e.logger.Warn("ocr.pdf.text_layer_failed", "path", path, "error", err)
		res.Warnings = append(res.Warnings, err.Error())
	} else {
		e.logger.Info("ocr.pdf.fallback", "path", path, "pages", pages, "reason", "empty text layer")
	}

	text, pages, warns, err := e.pdfToOCR(ctx, path)
	res.Warnings = append(res.Warnings, warns...)
	res.Pages = pages
	res.Method = "pdf-ocr"
	if err != nil {
		return res, err
	}
	res.Text = text
	return res, nil
}

// pdfToText concatenates the native text layer of every page.
func (e *Extractor) pdfToText(path string) (string, int, error) {
	doc, err := e.openPDF(path)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = doc.Close() }()

	n := e.limitPages(doc.NumPage())
	var b strings.Builder
	for i := 0; i < n; i++ {
		t, err := doc.Text(i)
		if err != nil {
			return "", n, fmt.Errorf("pdf text page %d: %w", i+1, err)
		}
		b.WriteString(t)
	}
	return b.String(), n, nil
}

// pdfToOCR rasterizes each page and recognizes it. Pages that fail or yield nothing
// are skipped with a warning.
func (e *Extractor) pdfToOCR(ctx context.Context, path string) (string, int, []string, error) {
	doc, err := e.openPDF(path)
	if err != nil {
		return "", 0, nil, fmt.Errorf("open pdf for ocr: %w", err)
	}
	defer func() { _ = doc.Close() }()

	n := e.limitPages(doc.NumPage())
	var (
		parts []string
		warns []string
	)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return strings.Join(parts, "\n\n"), n, warns, err
		}
		img, err := doc.ImagePNG(i, float64(e.cfg.PDFDPI))
		if err != nil {
			warns = append(warns, fmt.Sprintf("render page %d: %v", i+1, err))
			continue
		}
		frags, err := e.recognizer.Recognize(ctx, img)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return strings.Join(parts, "\n\n"), n, warns, err
			}
			warns = append(warns, fmt.Sprintf("ocr page %d: %v", i+1, err))
			continue
		}
		pageText := strings.Join(frags, " ")
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		parts = append(parts, pageMarker(i+1)+pageText)
	}
	return strings.Join(parts, "\n\n"), n, warns, nil
}

func (e *Extractor) limitPages(n int) int {
	if e.cfg.MaxPages > 0 && n > e.cfg.MaxPages {
		return e.cfg.MaxPages
	}
	return n
}
