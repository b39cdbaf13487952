package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"building-access-service/internal/access"
	"building-access-service/internal/config"
	"building-access-service/internal/database"
	"building-access-service/internal/events"
	"building-access-service/internal/logging"
	"building-access-service/internal/scheduler"
	"building-access-service/internal/store"
	"building-access-service/internal/visitor"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the maintenance sweeps once and exit",
	Long: `Runs one round of the periodic maintenance work: activates pending
grants whose window has opened, expires grants past their window, marks
overdue visitors as no-shows, and prunes old access logs when retention
is configured. Useful for cron-driven deployments without the built-in
scheduler.`,
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

		stores := store.New(db)

		bus, err := events.NewRedisPublisher(events.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			Database:  cfg.Redis.Database,
			PoolSize:  cfg.Redis.PoolSize,
			QueueName: cfg.Redis.QueueName,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to message bus: %w", err)
		}
		defer bus.Close()

		accessSvc := access.NewService(stores, bus, logger, access.Config{
			PINLength:          cfg.Access.PINLength,
			AntiPassbackWindow: time.Duration(cfg.Access.AntiPassbackWindowSecs) * time.Second,
		})
		visitorSvc := visitor.NewService(stores, accessSvc, bus, logger)

		sched, err := scheduler.New(scheduler.Config{
			GrantSweepSpec:   cfg.Scheduler.GrantSweepSpec,
			VisitorSweepSpec: cfg.Scheduler.VisitorSweepSpec,
			LogRetention:     time.Duration(cfg.Scheduler.LogRetentionDays) * 24 * time.Hour,
			LogPruneSpec:     "@daily",
		}, stores, visitorSvc, logger)
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}

		sched.RunOnce()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
