package main

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/Tallisgo/JianLi-Tanuki/internal/repository"
)

const pollInterval = 250 * time.Millisecond

// watchProgress draws a bar on stderr counting tasks that reached a terminal
// state. The returned func stops polling and finishes the bar.
func watchProgress(ctx context.Context, tasks repository.TaskRepository, ids []uuid.UUID) func() {
	if len(ids) == 0 {
		return func() {}
	}
	bar := progressbar.NewOptions(len(ids),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("parsing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("résumés"),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() { _, _ = os.Stderr.WriteString("\n") }),
	)

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(pollInterval)
		defer t.Stop()
		for {
			_ = bar.Set(countTerminal(ctx, tasks, ids))
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
		_ = bar.Set(countTerminal(context.Background(), tasks, ids))
		_ = bar.Finish()
	}
}

func countTerminal(ctx context.Context, tasks repository.TaskRepository, ids []uuid.UUID) int {
	n := 0
	for _, id := range ids {
		t, err := tasks.GetTask(ctx, id)
		if err == nil && t.Status.IsTerminal() {
			n++
		}
	}
	return n
}
