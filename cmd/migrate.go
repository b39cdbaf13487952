package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"building-access-service/internal/config"
	"building-access-service/internal/database"
	"building-access-service/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}

		logger := logging.Initialize(cfg.LogLevel)

		db, err := database.Connect(databaseConfig(cfg))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := database.Migrate(db, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		logger.Info("Migrations complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
