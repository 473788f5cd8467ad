package llm

import (
	"encoding/json"
	"strings"

	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
)

// RecoverJSONObject returns the substring from the first '{' to the last '}' in
// text, provided it parses as JSON. Models often wrap the object in prose or
// code fences.
func RecoverJSONObject(text string) ([]byte, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, common.MalformedPayload("no JSON object found in model output", nil)
	}
	raw := []byte(text[start : end+1])
	if !json.Valid(raw) {
		var v any
		err := json.Unmarshal(raw, &v)
		return nil, common.MalformedPayload("model output is not valid JSON", err)
	}
	return raw, nil
}
