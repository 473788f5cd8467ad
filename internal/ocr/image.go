package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Tallisgo/JianLi-Tanuki/constants"
)

func (e *Extractor) extractImage(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{SourceType: constants.IMAGE, Method: "image-ocr", Pages: 1, Language: e.cfg.Language}
	img, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("read image: %w", err)
	}
	frags, err := e.recognizer.Recognize(ctx, img)
	if err != nil {
		return res, err
	}
	res.Text = strings.Join(frags, " ")
	return res, nil
}
