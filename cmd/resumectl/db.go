package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tallisgo/JianLi-Tanuki/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := repository.Open(cmd.Context(), repository.ConfigFrom(cfg.Database), logger)
		if err != nil {
			return err
		}
		defer repository.Close(db, logger)
		applied, err := repository.Migrate(cmd.Context(), db, logger)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{"dialect": db.Dialect(), "applied": applied})
	},
}

var dbhealthCmd = &cobra.Command{
	Use:   "dbhealth",
	Short: "Ping the configured database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := repository.Open(cmd.Context(), repository.ConfigFrom(cfg.Database), logger)
		if err != nil {
			return err
		}
		defer repository.Close(db, logger)
		start := time.Now()
		if err := repository.HealthCheck(cmd.Context(), db, 5*time.Second, logger); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "DB health: OK (%s, %dms)\n", db.Dialect(), time.Since(start).Milliseconds())
		return err
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, dbhealthCmd)
}
