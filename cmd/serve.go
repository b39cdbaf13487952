package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"building-access-service/internal/access"
	"building-access-service/internal/api"
	"building-access-service/internal/config"
	"building-access-service/internal/database"
	"building-access-service/internal/events"
	"building-access-service/internal/logging"
	"building-access-service/internal/scheduler"
	"building-access-service/internal/store"
	"building-access-service/internal/visitor"
)

// version is set at build time via -ldflags
var version = "dev"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the access control API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger := logging.Initialize(cfg.LogLevel)
	if cfg.LogFile != "" {
		if err := logging.SetupFileLogging(logger, cfg.LogFile); err != nil {
			return fmt.Errorf("failed to set up file logging: %w", err)
		}
	}

	db, err := database.Connect(databaseConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

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

	// Events go to the bus first; the WebSocket hub mirrors them to
	// connected dashboards best-effort
	wsHub := api.NewEventHub(logger)
	publisher := &events.Multi{
		Primary:   bus,
		Secondary: []events.Publisher{wsHub},
	}
	defer publisher.Close()

	accessSvc := access.NewService(stores, publisher, logger, access.Config{
		PINLength:          cfg.Access.PINLength,
		AntiPassbackWindow: time.Duration(cfg.Access.AntiPassbackWindowSecs) * time.Second,
	})
	visitorSvc := visitor.NewService(stores, accessSvc, publisher, logger)

	handlers := api.NewHandlers(db, stores, accessSvc, visitorSvc, bus, wsHub, logger, version)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(scheduler.Config{
			GrantSweepSpec:   cfg.Scheduler.GrantSweepSpec,
			VisitorSweepSpec: cfg.Scheduler.VisitorSweepSpec,
			LogRetention:     time.Duration(cfg.Scheduler.LogRetentionDays) * 24 * time.Hour,
			LogPruneSpec:     "@daily",
		}, stores, visitorSvc, logger)
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	server := api.NewServer(cfg, logger, handlers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.WithField("signal", sig.String()).Info("Shutdown signal received")
		cancel()
	}()

	return server.Start(ctx)
}

func databaseConfig(cfg *config.Config) database.Config {
	dbCfg := database.DefaultConfig()
	dbCfg.Driver = database.Driver(cfg.Database.Driver)
	dbCfg.Host = cfg.Database.Host
	dbCfg.Port = cfg.Database.Port
	dbCfg.Name = cfg.Database.Name
	dbCfg.User = cfg.Database.User
	dbCfg.Password = cfg.Database.Password
	dbCfg.SSLMode = cfg.Database.SSLMode
	dbCfg.Path = cfg.Database.Path
	return dbCfg
}
