package openai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func chatBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
	})
	return string(b)
}

func TestExtractWithoutKeyReturnsMock(t *testing.T) {
	c := NewClient(Config{URL: "http://127.0.0.1:1/unused"}, quietLogger())
	rec, err := c.Extract(context.Background(), "任何文本")
	require.NoError(t, err)
	assert.Equal(t, "张三", *rec.Name)
}

func TestExtractParsesChatResponse(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, chatBody("结果：{\"name\":\"李 雷\",\"contact\":{\"phone\":\"13800000000\"}} 完毕"))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", URL: srv.URL, Model: "m", MaxTokens: 100}, quietLogger())
	rec, err := c.Extract(context.Background(), "教育背景 北京大学")
	require.NoError(t, err)
	assert.Equal(t, "李雷", *rec.Name)
	assert.Equal(t, "13800000000", *rec.Phone())

	assert.Equal(t, "m", got["model"])
	assert.EqualValues(t, 100, got["max_tokens"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	user := msgs[1].(map[string]any)["content"].(string)
	assert.Contains(t, user, "北京大学")
	assert.Contains(t, user, "请仔细提取所有教育经历")
}

func TestExtractContentBlocksShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"{\"name\":\"Amy\"}"}]}`)
	}))
	defer srv.Close()

	rec, err := NewClient(Config{APIKey: "k", URL: srv.URL}, quietLogger()).Extract(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "Amy", *rec.Name)
}

func TestExtractErrorKinds(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		code    string
	}{
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			code:    common.CodeLLMUnavailable,
		},
		{
			name:    "unknown envelope",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, `{"id":"1"}`) },
			code:    common.CodeInvalidResponse,
		},
		{
			name:    "no json in content",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, chatBody("无法识别")) },
			code:    common.CodeMalformedPayload,
		},
		{
			name:    "schema violation",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, chatBody(`{"nickname":"x"}`)) },
			code:    common.CodeMalformedPayload,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			_, err := NewClient(Config{APIKey: "k", URL: srv.URL}, quietLogger()).Extract(context.Background(), "x")
			assert.True(t, common.IsCode(err, tc.code), "got %v", err)
		})
	}
}

func TestExtractTimeoutIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Config{APIKey: "k", URL: srv.URL, Timeout: 50 * time.Millisecond}, quietLogger())
	_, err := c.Extract(context.Background(), "x")
	assert.True(t, common.IsCode(err, common.CodeLLMUnavailable), "got %v", err)
}

func TestExtractCoercesNumericScalars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, chatBody(`{"education":[{"start_year":2019}]}`))
	}))
	defer srv.Close()

	strict := NewClient(Config{APIKey: "k", URL: srv.URL}, quietLogger())
	_, err := strict.Extract(context.Background(), "x")
	assert.True(t, common.IsCode(err, common.CodeMalformedPayload))

	lenient := NewClient(Config{APIKey: "k", URL: srv.URL, CoerceScalars: true}, quietLogger())
	rec, err := lenient.Extract(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "2019", *rec.Education[0].StartYear)
}
