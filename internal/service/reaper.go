package service

import (
	"context"
	"sync"
	"time"

	"quiz-forge/internal/config"
	"quiz-forge/internal/domain"
	"quiz-forge/internal/metrics"

	"go.uber.org/zap"
)

// reaperBatchSize bounds how many stale jobs one sweep will fail.
const reaperBatchSize = 50

// StaleJobReaper periodically fails PENDING jobs that were never picked
// up for processing within the activation timeout. Failing a job through
// the job service also releases its billing reservation.
type StaleJobReaper struct {
	jobs    JobService
	jobRepo domain.JobRepository
	cfg     *config.Config
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewStaleJobReaper creates a new instance of StaleJobReaper.
func NewStaleJobReaper(jobs JobService, jobRepo domain.JobRepository, cfg *config.Config, logger *zap.Logger) *StaleJobReaper {
	return &StaleJobReaper{
		jobs:    jobs,
		jobRepo: jobRepo,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start launches the reaper loop. One sweep runs per interval tick; the
// loop exits when the context is cancelled.
func (r *StaleJobReaper) Start(ctx context.Context) {
	interval := r.cfg.Generator.ReaperInterval
	if interval <= 0 {
		interval = time.Minute
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		r.logger.Info("Stale job reaper started",
			zap.Duration("interval", interval),
			zap.Duration("activation_timeout", r.cfg.Generator.ActivationTimeout))

		for {
			select {
			case <-ctx.Done():
				r.logger.Info("Stale job reaper stopped")
				return
			case <-ticker.C:
				r.sweep(ctx)
			}
		}
	}()
}

// Wait blocks until the reaper loop has exited.
func (r *StaleJobReaper) Wait() {
	r.wg.Wait()
}

// sweep fails every PENDING job older than the activation timeout. A
// panic in one sweep must not kill the loop.
func (r *StaleJobReaper) sweep(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Reaper sweep panicked", zap.Any("panic", rec))
		}
	}()

	cutoff := time.Now().Add(-r.cfg.Generator.ActivationTimeout)
	stale, err := r.jobRepo.FindStalePendingJobs(ctx, cutoff, reaperBatchSize)
	if err != nil {
		r.logger.Error("Failed to query stale jobs", zap.Error(err))
		return
	}
	if len(stale) == 0 {
		return
	}

	reaped := 0
	for _, job := range stale {
		if err := r.jobs.Fail(ctx, job.ID, activationTimeoutMessage); err != nil {
			if domain.IsConcurrencyConflict(err) {
				// Picked up or cancelled between the query and this fail.
				continue
			}
			r.logger.Error("Failed to reap stale job",
				zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		reaped++
		metrics.StaleJobsReaped.Inc()
		r.logger.Warn("Reaped stale pending job",
			zap.String("job_id", job.ID),
			zap.String("user_id", job.UserID),
			zap.Duration("age", job.Age()))
	}

	r.logger.Info("Reaper sweep finished",
		zap.Int("stale_found", len(stale)),
		zap.Int("reaped", reaped))
}
