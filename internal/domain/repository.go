package domain

import (
	"context"
	"time"
)

// JobRepository is the durable job store. The Increment/Set/Mark/Complete/
// Fail/Cancel methods are the atomic-update primitive of the store: each
// executes a single guarded UPDATE that applies the mutation, bumps the
// version token by one and reports the affected-row count. Zero affected
// rows means the guard did not match (missing row, or another transition
// won the race) and is not an error; callers branch on the count.
type JobRepository interface {
	// CreateJob inserts a new PENDING job.
	CreateJob(ctx context.Context, job *GenerationJob) error

	// GetJobByID retrieves a job, nil when absent.
	GetJobByID(ctx context.Context, id string) (*GenerationJob, error)

	// IncrementCompletedTasks atomically adds delta to completed_tasks,
	// sets the status label and recomputes the progress percentage. Only
	// non-terminal jobs are touched.
	IncrementCompletedTasks(ctx context.Context, jobID string, delta int, statusLabel string) (int64, error)

	// UpdateProcessedChunks atomically sets the chunk counter and label.
	// Task counters are untouched; the percentage is only recomputed from
	// chunks while total_tasks is still unknown.
	UpdateProcessedChunks(ctx context.Context, jobID string, processedChunks int, statusLabel string) (int64, error)

	// SetTotalTasks sets the task denominator once, correcting the chunk
	// count estimated at creation; repeat calls affect zero rows.
	SetTotalTasks(ctx context.Context, jobID string, totalChunks, totalTasks int) (int64, error)

	// MarkProcessing transitions PENDING -> PROCESSING and stamps started_at.
	MarkProcessing(ctx context.Context, jobID string, startedAt time.Time) (int64, error)

	// CompleteJob transitions any non-terminal status to COMPLETED, stamps
	// completed_at, records the quiz ID and forces the percentage to 100.
	CompleteJob(ctx context.Context, jobID, quizID string, completedAt time.Time) (int64, error)

	// FailJob transitions any non-terminal status to FAILED and records the
	// error message.
	FailJob(ctx context.Context, jobID, errorMessage string, completedAt time.Time) (int64, error)

	// CancelJob transitions PENDING or PROCESSING to CANCELLED.
	CancelJob(ctx context.Context, jobID string, completedAt time.Time) (int64, error)

	// FindStalePendingJobs returns PENDING jobs created before the cutoff,
	// oldest first, at most limit.
	FindStalePendingJobs(ctx context.Context, createdBefore time.Time, limit int) ([]*GenerationJob, error)

	// FindPendingJobByUser returns the user's oldest PENDING job, nil when
	// there is none. Used by create-time self-heal.
	FindPendingJobByUser(ctx context.Context, userID string) (*GenerationJob, error)

	// ListJobsByUser returns one page of the user's jobs, newest first.
	ListJobsByUser(ctx context.Context, userID string, page, pageSize int) (*JobPage, error)

	// GetStatistics aggregates the user's generation history.
	GetStatistics(ctx context.Context, userID string) (*JobStatistics, error)
}

// RateLimiter gates job starts and cancellations per user. A denied check
// returns a RATE_LIMITED DomainError; an allowed check records the event.
type RateLimiter interface {
	CheckAndRecordStart(ctx context.Context, userID string) error
	CheckAndRecordCancel(ctx context.Context, userID string) error
}
