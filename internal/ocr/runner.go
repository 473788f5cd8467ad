package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)

	if err != nil {
		slog.Error("exec failed",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), 8<<10), // cap at 8KB
		)
	} else {
		slog.Debug("exec ok",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"stdout_bytes", out.Len(),
		)
	}
	return out.Bytes(), errb.Bytes(), err
}

// CLIRecognizer shells out to the tesseract binary; each non-empty output line is
// one fragment.
type CLIRecognizer struct {
	Binary      string
	Language    string
	TessdataDir string
	runner      Runner
}

func NewCLIRecognizer(cfg Config) *CLIRecognizer {
	bin := cfg.Tesseract
	if bin == "" {
		bin = "tesseract"
	}
	return &CLIRecognizer{Binary: bin, Language: cfg.Language, TessdataDir: cfg.TessdataDir, runner: execRunner{}}
}

func (c *CLIRecognizer) Recognize(ctx context.Context, img []byte) ([]string, error) {
	f, err := os.CreateTemp("", "resume-ocr-*.png")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(f.Name()) }()
	if _, err := f.Write(img); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	// tesseract <file> stdout -l <lang>
	args := []string{f.Name(), "stdout"}
	if c.Language != "" {
		args = append(args, "-l", c.Language)
	}
	if c.TessdataDir != "" {
		args = append(args, "--tessdata-dir", c.TessdataDir)
	}
	out, errb, err := c.runner.Run(ctx, c.Binary, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	var frags []string
	for _, ln := range strings.Split(string(out), "\n") {
		if w := CleanFragment(ln); w != "" {
			frags = append(frags, w)
		}
	}
	return frags, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
