package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Tallisgo/JianLi-Tanuki/internal/app"
	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
)

var (
	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "resumectl",
	Short: "Résumé ingestion command-line tool",
	Long: `resumectl ingests résumé files (PDF, DOC, DOCX, JPG, PNG), runs text and
structured extraction, and queries the resulting tasks and candidates.
Configuration comes from the environment and an optional .env file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level to stderr")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		red := color.New(color.FgRed, color.Bold)
		if code := common.ErrorCode(err); code != "" {
			_, _ = red.Fprintf(os.Stderr, "error [%s]: ", code)
		} else {
			_, _ = red.Fprint(os.Stderr, "error: ")
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads .env and the environment and installs the process logger.
func loadConfig() (*common.Config, *slog.Logger, error) {
	if err := common.LoadDotEnv(envFile); err != nil {
		return nil, nil, err
	}
	cfg := common.LoadConfig()
	level := cfg.LogLevel
	if verbose {
		level = slog.LevelDebug
	}
	logger := app.NewLogger(os.Stderr, level, false)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cmd.Context(), cfg, logger)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
