package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Subdirectories of the inbox that receive handled files. Hidden, so the watcher skips them.
const (
	IngestedDir = ".ingested"
	RejectedDir = ".rejected"
)

type InboxConfig struct {
	Dir      string
	Debounce time.Duration // default 500ms
	Options  Options
}

// RunInbox turns files dropped into cfg.Dir into tasks until ctx is done.
// Files already present are picked up on start. Each handled file is moved to
// IngestedDir or RejectedDir so a restart does not ingest it twice.
func RunInbox(ctx context.Context, ing Ingestor, cfg InboxConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return err
	}

	events, errs, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{cfg.Dir},
		InitialScan: true,
		Debounce:    cfg.Debounce,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := os.Stat(p); err != nil {
				// already moved or deleted
				continue
			}
			res, err := ing.IngestPath(ctx, p, cfg.Options)
			dest := IngestedDir
			if err != nil {
				dest = RejectedDir
				logger.Warn("inbox.ingest.failed", "path", p, "error", err)
			} else {
				logger.Info("inbox.ingest.ok", "path", p, "task_id", res.TaskID)
			}
			if merr := moveInto(cfg.Dir, dest, p); merr != nil {
				logger.Error("inbox.move.failed", "path", p, "dest", dest, "error", merr)
			}
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			logger.Warn("inbox.watch.error", "error", err)
		}
	}
}

func moveInto(root, sub, path string) error {
	dir := filepath.Join(root, sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := filepath.Base(path)
	target := filepath.Join(dir, name)
	if _, err := os.Stat(target); err == nil {
		target = filepath.Join(dir, time.Now().UTC().Format("20060102T150405.000000000")+"_"+name)
	}
	return os.Rename(path, target)
}
