package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Recognizer runs optical text recognition on encoded image bytes and returns
// the detected text fragments in detection order.
type Recognizer interface {
	Recognize(ctx context.Context, img []byte) ([]string, error)
}

// TessRecognizer is an in-process tesseract binding. A fresh client is created per
// call because gosseract clients are not safe for concurrent use.
type TessRecognizer struct {
	Language    string
	TessdataDir string
}

func NewTessRecognizer(language, tessdataDir string) *TessRecognizer {
	return &TessRecognizer{Language: language, TessdataDir: tessdataDir}
}

func (t *TessRecognizer) Recognize(ctx context.Context, img []byte) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if t.TessdataDir != "" {
		if err := client.SetTessdataPrefix(t.TessdataDir); err != nil {
			return nil, fmt.Errorf("gosseract tessdata: %w", err)
		}
	}
	if t.Language != "" {
		if err := client.SetLanguage(splitLangs(t.Language)...); err != nil {
			return nil, fmt.Errorf("gosseract language: %w", err)
		}
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return nil, fmt.Errorf("gosseract image: %w", err)
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("gosseract recognize: %w", err)
	}
	out := make([]string, 0, len(boxes))
	for _, b := range boxes {
		if w := CleanFragment(b.Word); w != "" {
			out = append(out, w)
		}
	}
	return out, nil
}
