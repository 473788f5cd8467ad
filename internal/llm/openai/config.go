package openai

import (
	"log/slog"
	"net/http"
	"time"
)

// Config for the chat-completions client. The endpoint is a full URL.
type Config struct {
	APIKey      string // empty selects the mock extractor
	URL         string
	Model       string
	MaxTokens   int
	Temperature float32
	TopP        float32
	Timeout     time.Duration
	// CoerceScalars rewrites numeric years, GPA and phone into strings before
	// validation. Everything else stays strict.
	CoerceScalars bool
}

const (
	DefaultURL   = "https://api.siliconflow.cn/v1/messages"
	DefaultModel = "Qwen/Qwen2.5-7B-Instruct"
)

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logger,
	}
}

// WithHTTPClient swaps the transport, mostly for tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}
