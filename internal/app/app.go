// Package app wires configuration into the running components shared by the
// daemon and the command-line tool.
package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/Tallisgo/JianLi-Tanuki/internal/async"
	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
	"github.com/Tallisgo/JianLi-Tanuki/internal/dedup"
	"github.com/Tallisgo/JianLi-Tanuki/internal/export"
	"github.com/Tallisgo/JianLi-Tanuki/internal/extract"
	"github.com/Tallisgo/JianLi-Tanuki/internal/ingest"
	"github.com/Tallisgo/JianLi-Tanuki/internal/llm/openai"
	"github.com/Tallisgo/JianLi-Tanuki/internal/ocr"
	"github.com/Tallisgo/JianLi-Tanuki/internal/pipeline"
	"github.com/Tallisgo/JianLi-Tanuki/internal/repository"
)

type App struct {
	Config     *common.Config
	DB         *repository.DB
	Tasks      repository.TaskRepository
	Candidates repository.CandidateRepository
	Text       extract.TextExtractor
	LLM        *openai.Client
	Dedup      *dedup.Resolver
	Pipeline   *pipeline.Pipeline
	Export     *export.Service
	Logger     *slog.Logger
}

// NewLogger builds the process logger. JSON output is meant for the daemon.
func NewLogger(w io.Writer, level slog.Level, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// New opens and migrates the store and builds every pipeline component.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := repository.Open(ctx, repository.ConfigFrom(cfg.Database), logger)
	if err != nil {
		return nil, err
	}
	if err := repository.HealthCheck(ctx, db, cfg.Database.DialTimeout, logger); err != nil {
		repository.Close(db, logger)
		return nil, err
	}
	if _, err := repository.Migrate(ctx, db, logger); err != nil {
		repository.Close(db, logger)
		return nil, err
	}

	a := &App{
		Config:     cfg,
		DB:         db,
		Tasks:      repository.NewTaskRepository(db, logger),
		Candidates: repository.NewCandidateRepository(db, logger),
		Text:       NewTextExtractor(cfg.OCR, logger),
		LLM:        NewLLMClient(cfg.LLM, logger),
		Logger:     logger,
	}
	a.Dedup = dedup.NewResolver(a.Candidates, logger, dedup.WithCountryCode(cfg.Dedup.CountryCode))
	a.Pipeline = pipeline.New(a.Tasks, a.Candidates, a.Text, a.LLM, a.Dedup, logger,
		pipeline.WithAmbiguousPolicy(cfg.Dedup.AmbiguousPolicy))
	a.Export = export.NewService(a.Candidates, logger)
	return a, nil
}

// NewTextExtractor selects the in-process or CLI tesseract backend.
func NewTextExtractor(cfg common.OCRConfig, logger *slog.Logger) *extract.OCRAdapter {
	ocrCfg := ocr.Config{
		Tesseract:   cfg.Tesseract,
		Language:    cfg.Language,
		TessdataDir: cfg.TessdataDir,
		PDFDPI:      cfg.PDFDPI,
		MaxPages:    cfg.MaxPages,
	}
	var opts []ocr.Option
	if cfg.Engine == "tesseract" {
		opts = append(opts, ocr.WithRecognizer(ocr.NewCLIRecognizer(ocrCfg)))
	}
	return extract.NewOCRAdapter(ocr.NewExtractor(ocrCfg, logger, opts...), logger)
}

func NewLLMClient(cfg common.LLMConfig, logger *slog.Logger) *openai.Client {
	if cfg.APIKey == "" {
		logger.Warn("llm.mock.enabled", "reason", "SILICONFLOW_API_KEY is not set")
	}
	return openai.NewClient(openai.Config{
		APIKey:        cfg.APIKey,
		URL:           cfg.APIURL,
		Model:         cfg.Model,
		MaxTokens:     cfg.MaxTokens,
		Temperature:   cfg.Temperature,
		TopP:          cfg.TopP,
		Timeout:       cfg.Timeout,
		CoerceScalars: cfg.CoerceScalars,
	}, logger)
}

// NewQueue starts a worker pool that runs a.Pipeline.
func (a *App) NewQueue() *async.ProcessorQueue {
	return async.NewProcessorQueue(a.Pipeline, a.Logger,
		async.WithWorkers(a.Config.Queue.Workers),
		async.WithQueueSize(a.Config.Queue.Size),
		async.WithProcessTimeout(a.Config.Queue.TaskTimeout),
	)
}

// NewIngestor schedules runs on q. With wait set a full queue delays intake
// instead of rejecting it, which suits one-shot batch runs.
func (a *App) NewIngestor(q async.Queue, wait bool) *ingest.FSIngestor {
	return ingest.NewFSIngestor(a.Tasks, q, ingest.Config{
		UploadDir:       a.Config.Upload.Dir,
		MaxFileSize:     a.Config.Upload.MaxFileSize,
		AllowedTypes:    a.Config.Upload.AllowedTypes,
		WaitForCapacity: wait,
	}, a.Logger)
}

func (a *App) Close() {
	repository.Close(a.DB, a.Logger)
}
