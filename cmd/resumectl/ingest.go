package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Tallisgo/JianLi-Tanuki/internal/app"
	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
	"github.com/Tallisgo/JianLi-Tanuki/internal/entity"
	"github.com/Tallisgo/JianLi-Tanuki/internal/ingest"
)

var (
	ingestForce      bool
	ingestSkipHidden bool
	ingestTimeout    time.Duration
	ingestNoProgress bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file-or-dir>...",
	Short: "Upload résumé files and run the pipeline on them",
	Long: `Each file becomes a task that is processed in-process by the worker pool.
Directories are walked recursively. The command waits until every task reaches
a terminal state (or --timeout passes) and prints the tasks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, args, ingest.Options{Force: ingestForce})
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <candidate-id> <file>",
	Short: "Upload a new résumé for an existing candidate and merge it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return common.NewAppError(common.CodeInvalid, "candidate id must be an integer", err)
		}
		return runIngest(cmd, args[1:], ingest.Options{CandidateID: &id})
	},
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestForce, "force", "f", false, "skip the duplicate check")
	ingestCmd.Flags().BoolVar(&ingestSkipHidden, "skip-hidden", true, "skip hidden files and directories")
	for _, c := range []*cobra.Command{ingestCmd, updateCmd} {
		c.Flags().DurationVar(&ingestTimeout, "timeout", 10*time.Minute, "maximum time to wait for the tasks")
		c.Flags().BoolVar(&ingestNoProgress, "no-progress", false, "do not draw a progress bar on stderr")
		rootCmd.AddCommand(c)
	}
}

func runIngest(cmd *cobra.Command, paths []string, opts ingest.Options) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	queue := a.NewQueue()
	ing := a.NewIngestor(queue, true)
	ctx := cmd.Context()

	var results []ingest.IngestionResult
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			results = append(results, ingest.IngestionResult{SourcePath: p, Err: err.Error()})
			continue
		}
		if st.IsDir() {
			rs, stats, err := ing.IngestDirectory(ctx, p, opts, ingestSkipHidden)
			results = append(results, rs...)
			a.Logger.Info("ingest.dir.summary", "root", p, "matched", stats.Matched, "succeeded", stats.Succeeded, "failed", stats.Failed)
			if err != nil {
				a.Logger.Warn("ingest.dir.aborted", "root", p, "error", err)
			}
			continue
		}
		r, err := ing.IngestPath(ctx, p, opts)
		if err != nil {
			r.Err = err.Error()
		}
		results = append(results, r)
	}

	stopProgress := func() {}
	if !ingestNoProgress {
		var ids []uuid.UUID
		for _, r := range results {
			if r.TaskID != uuid.Nil {
				ids = append(ids, r.TaskID)
			}
		}
		stopProgress = watchProgress(ctx, a.Tasks, ids)
	}

	wctx, cancel := context.WithTimeout(ctx, ingestTimeout)
	defer cancel()
	queue.Shutdown(wctx)
	stopProgress()

	return printJSON(cmd.OutOrStdout(), summarize(context.WithoutCancel(ctx), a, results))
}

type ingestOutcome struct {
	Path  string       `json:"path"`
	Task  *entity.Task `json:"task,omitempty"`
	Error string       `json:"error,omitempty"`
}

func summarize(ctx context.Context, a *app.App, results []ingest.IngestionResult) []ingestOutcome {
	out := make([]ingestOutcome, 0, len(results))
	for _, r := range results {
		o := ingestOutcome{Path: r.SourcePath, Error: r.Err}
		if r.TaskID != uuid.Nil {
			if t, err := a.Tasks.GetTask(ctx, r.TaskID); err == nil {
				o.Task = t
			} else {
				o.Error = err.Error()
			}
		}
		out = append(out, o)
	}
	return out
}
