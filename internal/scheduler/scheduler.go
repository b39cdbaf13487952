// Package scheduler runs the periodic maintenance sweeps: grant activation
// and expiry, visitor no-show marking, and access log retention pruning.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"building-access-service/internal/store"
	"building-access-service/internal/visitor"
)

// Config holds sweep scheduling settings
type Config struct {
	GrantSweepSpec   string
	VisitorSweepSpec string
	LogRetention     time.Duration
	LogPruneSpec     string
}

// DefaultConfig returns default sweep settings. Log pruning is disabled
// unless a retention horizon is configured.
func DefaultConfig() Config {
	return Config{
		GrantSweepSpec:   "@every 1m",
		VisitorSweepSpec: "@every 5m",
		LogPruneSpec:     "@daily",
	}
}

// Scheduler owns the cron instance and the sweep jobs
type Scheduler struct {
	cron       *cron.Cron
	cfg        Config
	stores     *store.Stores
	visitorSvc *visitor.Service
	logger     *logrus.Entry
}

// New creates a scheduler with the configured sweeps registered
func New(cfg Config, stores *store.Stores, visitorSvc *visitor.Service, logger *logrus.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:       cron.New(),
		cfg:        cfg,
		stores:     stores,
		visitorSvc: visitorSvc,
		logger:     logger.WithField("component", "scheduler"),
	}

	if _, err := s.cron.AddFunc(cfg.GrantSweepSpec, s.sweepGrants); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(cfg.VisitorSweepSpec, s.sweepVisitors); err != nil {
		return nil, err
	}
	if cfg.LogRetention > 0 {
		if _, err := s.cron.AddFunc(cfg.LogPruneSpec, s.pruneLogs); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Start begins running the sweeps
func (s *Scheduler) Start() {
	s.logger.Info("Starting maintenance scheduler")
	s.cron.Start()
}

// Stop shuts the scheduler down, waiting for running jobs
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping maintenance scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Maintenance scheduler stopped")
}

// RunOnce executes every sweep a single time, for the sweep CLI command
func (s *Scheduler) RunOnce() {
	s.sweepGrants()
	s.sweepVisitors()
	if s.cfg.LogRetention > 0 {
		s.pruneLogs()
	}
}

// sweepGrants promotes pending grants whose window opened and expires
// grants past their validity. Expiry is also enforced at read time; the
// sweep keeps stored statuses from drifting.
func (s *Scheduler) sweepGrants() {
	ctx := context.Background()
	now := time.Now().UTC()

	activated, err := s.stores.Grants.ActivatePending(ctx, now)
	if err != nil {
		s.logger.WithError(err).Error("Grant activation sweep failed")
	} else if activated > 0 {
		s.logger.WithField("count", activated).Info("Activated pending grants")
	}

	expired, err := s.stores.Grants.ExpireOverdue(ctx, now)
	if err != nil {
		s.logger.WithError(err).Error("Grant expiry sweep failed")
	} else if expired > 0 {
		s.logger.WithField("count", expired).Info("Expired overdue grants")
	}
}

func (s *Scheduler) sweepVisitors() {
	if _, err := s.visitorSvc.MarkNoShows(context.Background()); err != nil {
		s.logger.WithError(err).Error("Visitor no-show sweep failed")
	}
}

func (s *Scheduler) pruneLogs() {
	cutoff := time.Now().UTC().Add(-s.cfg.LogRetention)
	pruned, err := s.stores.AccessLogs.PruneOlderThan(context.Background(), cutoff)
	if err != nil {
		s.logger.WithError(err).Error("Access log prune failed")
		return
	}
	if pruned > 0 {
		s.logger.WithFields(logrus.Fields{
			"count":  pruned,
			"cutoff": cutoff,
		}).Info("Pruned old access log entries")
	}
}
