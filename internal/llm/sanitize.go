package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
)

// CoerceScalars rewrites numeric values in string-typed fields the model commonly
// emits as numbers (years, GPA, phone) into strings, so the document can pass the
// strict schema. Nothing is renamed or dropped. Returns the touched paths.
func CoerceScalars(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var changed []string
	coerce := func(obj map[string]any, key, path string) {
		if f, ok := obj[key].(float64); ok {
			obj[key] = formatNumber(f)
			changed = append(changed, path)
		}
	}

	if c, ok := m["contact"].(map[string]any); ok {
		coerce(c, "phone", "contact.phone")
	}
	if edu, ok := m["education"].([]any); ok {
		for i, item := range edu {
			e, ok := item.(map[string]any)
			if !ok {
				continue
			}
			for _, k := range []string{"start_year", "end_year", "gpa"} {
				coerce(e, k, fmt.Sprintf("education[%d].%s", i, k))
			}
		}
	}
	if len(changed) == 0 {
		return raw, nil, nil
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, changed, fmt.Errorf("sanitize: encode: %w", err)
	}
	logger.Warn("llm.extract.coerce_scalars", "fields", changed)
	return out, changed, nil
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
