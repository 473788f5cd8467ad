package openai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
	"github.com/Tallisgo/JianLi-Tanuki/internal/entity"
	"github.com/Tallisgo/JianLi-Tanuki/internal/llm"
)

var _ llm.ResumeExtractor = (*Client)(nil)

// Extract sends text to the model and maps the reply onto a ResumeRecord.
// Without an API key it returns llm.MockRecord and makes no request.
func (c *Client) Extract(ctx context.Context, text string) (*entity.ResumeRecord, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.NewString()
	}
	start := time.Now()

	if strings.TrimSpace(c.cfg.APIKey) == "" {
		c.logger.Warn("llm.extract.mock", "req_id", rid, "reason", "no api key configured")
		return llm.MockRecord(), nil
	}

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"task_id", common.TaskIDFromContext(ctx),
		"model", c.cfg.Model,
		"text_len", len(text),
		"education_hint", llm.HasEducationSection(text),
	)

	body := map[string]any{
		"model":       c.cfg.Model,
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": c.cfg.Temperature,
		"top_p":       c.cfg.TopP,
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt()},
			{"role": "user", "content": llm.BuildUserPrompt(text)},
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	raw, err := llm.SendJSON(callCtx, c.http, c.cfg.URL, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"timeout", common.IsTimeout(err),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		var se *llm.StatusError
		if errors.As(err, &se) {
			return nil, common.LLMUnavailable("model endpoint returned an error status", err)
		}
		if common.IsTimeout(err) {
			return nil, common.LLMUnavailable("model call timed out", err)
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, common.LLMUnavailable("model endpoint unreachable", err)
	}

	content, err := llm.ExtractContent(raw)
	if err != nil {
		c.logger.Error("llm.extract.invalid_response", "req_id", rid, "error", err)
		return nil, err
	}

	obj, err := llm.RecoverJSONObject(content)
	if err != nil {
		c.logger.Error("llm.extract.no_json", "req_id", rid, "error", err, "content_len", len(content))
		return nil, err
	}

	if c.cfg.CoerceScalars {
		if obj, _, err = llm.CoerceScalars(obj, c.logger); err != nil {
			return nil, common.MalformedPayload("model output could not be sanitized", err)
		}
	}

	rec, err := llm.DecodeRecord(obj)
	if err != nil {
		c.logger.Error("llm.extract.schema_validation_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"has_name", rec.Name != nil,
		"education", len(rec.Education),
		"experience", len(rec.Experience),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}
