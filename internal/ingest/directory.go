package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
)

// IngestDirectory walks root, skips hidden entries if requested,
// and calls IngestPath for each résumé file. Returns per-file results + aggregate stats.
// Walking stops early when ctx is done or, unless Config.WaitForCapacity is set,
// on the first QUEUE_FULL.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, opts Options, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, common.NewAppError(common.CodeInvalid, "root path is required", common.ErrInvalidInput)
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			stats.Scanned++
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path, opts)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			// without WaitForCapacity the rest of the tree would be rejected too;
			// leave it on disk for a later run
			if common.IsCode(err, common.CodeQueueFull) {
				return err
			}
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		return nil
	})

	i.logger.Info("ingest.dir.done", "root", root,
		"scanned", stats.Scanned, "matched", stats.Matched,
		"succeeded", stats.Succeeded, "failed", stats.Failed)
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
