package main

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/config"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		return migrateDatabase(&cfg.Database, logger)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

// migrateDatabase runs the embedded migrations over a dedicated connection,
// which golang-migrate closes when it is done.
func migrateDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) error {
	db, err := sql.Open("pgx", cfg.URL())
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}

	if err := database.RunMigrations(db, logger); err != nil {
		return err
	}
	return nil
}
