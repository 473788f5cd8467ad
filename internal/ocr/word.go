package ocr

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"code.sajari.com/docconv"

	"github.com/Tallisgo/JianLi-Tanuki/constants"
)

// WordConverter converts a legacy (.doc) or modern (.docx) document to plain text.
type WordConverter interface {
	Convert(r io.Reader, legacy bool) (string, error)
}

type docconvConverter struct{}

func (docconvConverter) Convert(r io.Reader, legacy bool) (string, error) {
	var (
		body string
		err  error
	)
	if legacy {
		body, _, err = docconv.ConvertDoc(r)
	} else {
		body, _, err = docconv.ConvertDocx(r)
	}
	return body, err
}

func (e *Extractor) extractWord(_ context.Context, path, ext, declaredType string) (ExtractionResult, error) {
	res := ExtractionResult{SourceType: constants.WORD, Method: "word", Pages: 1}
	legacy := ext == "doc" || (ext == "" && strings.EqualFold(declaredType, "application/msword"))

	f, err := os.Open(path)
	if err != nil {
		return res, fmt.Errorf("open document: %w", err)
	}
	defer func() { _ = f.Close() }()

	body, err := e.word.Convert(f, legacy)
	if err != nil {
		return res, fmt.Errorf("convert document: %w", err)
	}
	res.Text = paragraphsPerLine(body)
	return res, nil
}

// paragraphsPerLine keeps document order and emits one non-empty paragraph per line.
func paragraphsPerLine(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		if ln = strings.TrimSpace(ln); ln != "" {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n")
}
