package service

import (
	"context"

	"quiz-forge/internal/domain"

	"go.uber.org/zap"
)

// ProgressTracker applies race-free updates to a job's chunk and task
// counters. All methods return the affected-row count reported by the
// store's atomic update; zero means the job is gone or already terminal
// and the caller must not assume the write happened.
type ProgressTracker interface {
	IncrementCompletedTasks(ctx context.Context, jobID string, delta int, statusLabel string) (int64, error)
	UpdateProcessedChunks(ctx context.Context, jobID string, processedChunks int, statusLabel string) (int64, error)
	SetTotalTasks(ctx context.Context, jobID string, totalChunks, totalTasks int) (int64, error)
}

// progressTracker implements ProgressTracker on the job store's atomic
// update primitive.
type progressTracker struct {
	jobRepo domain.JobRepository
	logger  *zap.Logger
}

// NewProgressTracker creates a new instance of progressTracker.
func NewProgressTracker(jobRepo domain.JobRepository, logger *zap.Logger) ProgressTracker {
	return &progressTracker{
		jobRepo: jobRepo,
		logger:  logger,
	}
}

// IncrementCompletedTasks implements ProgressTracker
func (t *progressTracker) IncrementCompletedTasks(ctx context.Context, jobID string, delta int, statusLabel string) (int64, error) {
	if delta <= 0 {
		return 0, domain.NewValidationError("task delta must be positive")
	}
	affected, err := t.jobRepo.IncrementCompletedTasks(ctx, jobID, delta, statusLabel)
	if err != nil {
		return 0, domain.NewInternalError("failed to increment completed tasks", err)
	}
	if affected == 0 {
		// Missing row or terminal job; the increment is dropped on purpose.
		t.logger.Debug("Task increment skipped, job not updatable",
			zap.String("job_id", jobID),
			zap.Int("delta", delta))
	}
	return affected, nil
}

// UpdateProcessedChunks implements ProgressTracker
func (t *progressTracker) UpdateProcessedChunks(ctx context.Context, jobID string, processedChunks int, statusLabel string) (int64, error) {
	if processedChunks < 0 {
		return 0, domain.NewValidationError("processed chunks must not be negative")
	}
	affected, err := t.jobRepo.UpdateProcessedChunks(ctx, jobID, processedChunks, statusLabel)
	if err != nil {
		return 0, domain.NewInternalError("failed to update processed chunks", err)
	}
	return affected, nil
}

// SetTotalTasks implements ProgressTracker
func (t *progressTracker) SetTotalTasks(ctx context.Context, jobID string, totalChunks, totalTasks int) (int64, error) {
	if totalTasks <= 0 || totalChunks <= 0 {
		return 0, domain.NewValidationError("task and chunk totals must be positive")
	}
	affected, err := t.jobRepo.SetTotalTasks(ctx, jobID, totalChunks, totalTasks)
	if err != nil {
		return 0, domain.NewInternalError("failed to set total tasks", err)
	}
	if affected == 0 {
		t.logger.Debug("Total tasks already set", zap.String("job_id", jobID))
	}
	return affected, nil
}
