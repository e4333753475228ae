// Package scheduler runs the periodic knowledge updates of schedule mode:
// a daily regular update and a weekly comprehensive one.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron"
	"go.uber.org/zap"

	"github.com/pydverify/backend/internal/updater"
	"github.com/pydverify/backend/pkg/logger"
)

const (
	DefaultDaily  = "0 0 2 * * *"
	DefaultWeekly = "0 0 3 * * 0"
)

type Jobs interface {
	UpdateKnowledgeBase(ctx context.Context) (updater.UpdateResult, error)
	ComprehensiveUpdate(ctx context.Context) (updater.ComprehensiveResult, error)
}

type Config struct {
	// Daily and Weekly are six-field cron specs (seconds first).
	Daily      string
	Weekly     string
	JobTimeout time.Duration
}

type Scheduler struct {
	jobs    Jobs
	cron    *cron.Cron
	timeout time.Duration

	// running serialises jobs; a job firing while another runs is skipped.
	running sync.Mutex
}

func New(jobs Jobs, cfg Config) (*Scheduler, error) {
	if cfg.Daily == "" {
		cfg.Daily = DefaultDaily
	}
	if cfg.Weekly == "" {
		cfg.Weekly = DefaultWeekly
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}

	s := &Scheduler{
		jobs:    jobs,
		cron:    cron.New(),
		timeout: cfg.JobTimeout,
	}

	if err := s.cron.AddFunc(cfg.Daily, s.RunDaily); err != nil {
		return nil, fmt.Errorf("invalid daily schedule %q: %w", cfg.Daily, err)
	}
	if err := s.cron.AddFunc(cfg.Weekly, s.RunWeekly); err != nil {
		return nil, fmt.Errorf("invalid weekly schedule %q: %w", cfg.Weekly, err)
	}

	return s, nil
}

// Run performs an immediate update, then runs scheduled jobs until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	logger.Info("Scheduler starting")

	if _, err := s.update(ctx); err != nil {
		return fmt.Errorf("initial update failed: %w", err)
	}

	s.cron.Start()
	for _, e := range s.cron.Entries() {
		logger.Info("Job scheduled", zap.Time("next", e.Next))
	}

	<-ctx.Done()
	s.cron.Stop()

	logger.Info("Scheduler stopped")
	return nil
}

// RunDaily is the daily job body.
func (s *Scheduler) RunDaily() {
	if !s.running.TryLock() {
		logger.Warn("Skipping daily update, previous job still running")
		return
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	logger.Info("Running scheduled daily update")
	if _, err := s.jobs.UpdateKnowledgeBase(ctx); err != nil {
		logger.Error("Scheduled daily update failed", zap.Error(err))
	}
}

// RunWeekly is the weekly job body.
func (s *Scheduler) RunWeekly() {
	if !s.running.TryLock() {
		logger.Warn("Skipping weekly update, previous job still running")
		return
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	logger.Info("Running scheduled comprehensive update")
	res, err := s.jobs.ComprehensiveUpdate(ctx)
	if err != nil {
		logger.Error("Scheduled comprehensive update failed", zap.Error(err))
		return
	}
	logger.Info("Comprehensive update completed",
		zap.String("version", res.VersionInfo.Version),
		zap.Bool("version_changed", res.VersionChanged),
		zap.Bool("docs_refreshed", res.DocsRefreshed),
	)
}

func (s *Scheduler) update(ctx context.Context) (updater.UpdateResult, error) {
	s.running.Lock()
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.jobs.UpdateKnowledgeBase(ctx)
}

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
