package main

import (
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Tallisgo/JianLi-Tanuki/constants"
	"github.com/Tallisgo/JianLi-Tanuki/internal/app"
	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
	"github.com/Tallisgo/JianLi-Tanuki/internal/entity"
	"github.com/Tallisgo/JianLi-Tanuki/internal/extract"
)

var declaredType string

var extractTextCmd = &cobra.Command{
	Use:   "extract-text <file>",
	Short: "Print the raw text extracted from a résumé file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		res, err := extractText(cmd, cfg.OCR, logger, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Extract a structured résumé record from a file without storing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		res, err := extractText(cmd, cfg.OCR, logger, args[0])
		if err != nil {
			return err
		}
		rec, err := app.NewLLMClient(cfg.LLM, logger).Extract(cmd.Context(), res.Text)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), struct {
			Method string               `json:"method"`
			Pages  int                  `json:"pages"`
			Record *entity.ResumeRecord `json:"record"`
		}{res.Method, res.Pages, rec})
	},
}

func extractText(cmd *cobra.Command, cfg common.OCRConfig, logger *slog.Logger, path string) (extract.TextExtractionResult, error) {
	dt := declaredType
	if dt == "" {
		dt = constants.MediaTypeForExt(filepath.Ext(path))
	}
	return app.NewTextExtractor(cfg, logger).Extract(cmd.Context(), path, dt)
}

func init() {
	for _, c := range []*cobra.Command{extractTextCmd, parseCmd} {
		c.Flags().StringVar(&declaredType, "type", "", "declared media type, used when the extension is unknown")
		rootCmd.AddCommand(c)
	}
}
