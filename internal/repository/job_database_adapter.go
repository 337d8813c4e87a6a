package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"quiz-forge/internal/domain"
	"quiz-forge/internal/repository/models"
	"quiz-forge/internal/util"

	"github.com/jmoiron/sqlx"
)

const jobColumns = `
	id "id",
	user_id "user_id",
	document_id "document_id",
	status "status",
	total_chunks "total_chunks",
	processed_chunks "processed_chunks",
	total_tasks "total_tasks",
	completed_tasks "completed_tasks",
	progress_percentage "progress_percentage",
	current_chunk "current_chunk",
	started_at "started_at",
	completed_at "completed_at",
	estimated_completion "estimated_completion",
	generated_quiz_id "generated_quiz_id",
	error_message "error_message",
	request_data "request_data",
	reservation_id "reservation_id",
	version "version",
	created_at "created_at",
	updated_at "updated_at"`

// Non-terminal guard shared by every mutating statement. A terminal row
// never matches, so terminal states behave as sinks at the storage layer.
const nonTerminalStatuses = `('PENDING', 'PROCESSING')`

// JobDatabaseAdapter implements domain.JobRepository using sqlx.DB
type JobDatabaseAdapter struct {
	db *sqlx.DB
}

// NewJobDatabaseAdapter creates a new instance of JobDatabaseAdapter
func NewJobDatabaseAdapter(db *sqlx.DB) domain.JobRepository {
	return &JobDatabaseAdapter{db: db}
}

// CreateJob implements domain.JobRepository
func (a *JobDatabaseAdapter) CreateJob(ctx context.Context, job *domain.GenerationJob) error {
	model := toModelJob(job)
	if model == nil {
		return fmt.Errorf("cannot create nil job")
	}
	now := time.Now()
	model.CreatedAt = now
	model.UpdatedAt = now
	if model.Version == 0 {
		model.Version = 1
	}

	query := `INSERT INTO generation_jobs (
		id, user_id, document_id, status,
		total_chunks, processed_chunks, total_tasks, completed_tasks,
		progress_percentage, current_chunk, started_at, completed_at,
		estimated_completion, generated_quiz_id, error_message,
		request_data, reservation_id, version, created_at, updated_at
	) VALUES (
		:1, :2, :3, :4, :5, :6, :7, :8, :9, :10,
		:11, :12, :13, :14, :15, :16, :17, :18, :19, :20
	)`

	_, err := a.db.ExecContext(ctx, query,
		model.ID,
		model.UserID,
		model.DocumentID,
		model.Status,
		model.TotalChunks,
		model.ProcessedChunks,
		model.TotalTasks,
		model.CompletedTasks,
		model.ProgressPercentage,
		model.CurrentChunk,
		model.StartedAt,
		model.CompletedAt,
		model.EstimatedCompletion,
		model.GeneratedQuizID,
		model.ErrorMessage,
		model.RequestData,
		model.ReservationID,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	job.CreatedAt = model.CreatedAt
	job.UpdatedAt = model.UpdatedAt
	job.Version = model.Version
	return nil
}

// GetJobByID implements domain.JobRepository
func (a *JobDatabaseAdapter) GetJobByID(ctx context.Context, id string) (*domain.GenerationJob, error) {
	var model models.GenerationJob
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = :1`

	err := a.db.GetContext(ctx, &model, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job by ID %s: %w", id, err)
	}
	return toDomainJob(&model), nil
}

// IncrementCompletedTasks implements domain.JobRepository. The delta, the
// label, the derived percentage and the version bump are applied in one
// statement so that concurrent increments never lose updates. While
// total_tasks is unknown the stored percentage is left alone (the chunk
// based figure from UpdateProcessedChunks stands in until then).
func (a *JobDatabaseAdapter) IncrementCompletedTasks(ctx context.Context, jobID string, delta int, statusLabel string) (int64, error) {
	query := `UPDATE generation_jobs SET
		completed_tasks = completed_tasks + :1,
		current_chunk = :2,
		progress_percentage = CASE
			WHEN total_tasks IS NOT NULL AND total_tasks > 0
			THEN LEAST(100, ROUND((completed_tasks + :3) * 100 / total_tasks, 1))
			ELSE progress_percentage
		END,
		version = version + 1,
		updated_at = :4
	WHERE id = :5
	AND status IN ` + nonTerminalStatuses

	result, err := a.db.ExecContext(ctx, query, delta, util.StringToNullString(statusLabel), delta, time.Now(), jobID)
	if err != nil {
		return 0, fmt.Errorf("failed to increment completed tasks for job %s: %w", jobID, err)
	}
	return result.RowsAffected()
}

// UpdateProcessedChunks implements domain.JobRepository. Task counters are
// not touched; once total_tasks is known the task-based percentage takes
// precedence permanently, so the chunk ratio is only written before that.
// GREATEST keeps the counter monotonic under out-of-order concurrent writes.
func (a *JobDatabaseAdapter) UpdateProcessedChunks(ctx context.Context, jobID string, processedChunks int, statusLabel string) (int64, error) {
	query := `UPDATE generation_jobs SET
		processed_chunks = GREATEST(processed_chunks, :1),
		current_chunk = :2,
		progress_percentage = CASE
			WHEN total_tasks IS NULL AND total_chunks > 0
			THEN LEAST(100, ROUND(GREATEST(processed_chunks, :3) * 100 / total_chunks, 1))
			ELSE progress_percentage
		END,
		version = version + 1,
		updated_at = :4
	WHERE id = :5
	AND status IN ` + nonTerminalStatuses

	result, err := a.db.ExecContext(ctx, query, processedChunks, util.StringToNullString(statusLabel), processedChunks, time.Now(), jobID)
	if err != nil {
		return 0, fmt.Errorf("failed to update processed chunks for job %s: %w", jobID, err)
	}
	return result.RowsAffected()
}

// SetTotalTasks implements domain.JobRepository. The NULL guard makes the
// call one-time: once the denominator is set, repeats affect zero rows.
// The chunk count estimated at creation is corrected at the same time.
func (a *JobDatabaseAdapter) SetTotalTasks(ctx context.Context, jobID string, totalChunks, totalTasks int) (int64, error) {
	query := `UPDATE generation_jobs SET
		total_chunks = :1,
		total_tasks = :2,
		version = version + 1,
		updated_at = :3
	WHERE id = :4
	AND total_tasks IS NULL
	AND status IN ` + nonTerminalStatuses

	result, err := a.db.ExecContext(ctx, query, totalChunks, totalTasks, time.Now(), jobID)
	if err != nil {
		return 0, fmt.Errorf("failed to set total tasks for job %s: %w", jobID, err)
	}
	return result.RowsAffected()
}

// MarkProcessing implements domain.JobRepository
func (a *JobDatabaseAdapter) MarkProcessing(ctx context.Context, jobID string, startedAt time.Time) (int64, error) {
	query := `UPDATE generation_jobs SET
		status = :1,
		started_at = :2,
		version = version + 1,
		updated_at = :3
	WHERE id = :4
	AND status = :5`

	result, err := a.db.ExecContext(ctx, query,
		string(domain.JobStatusProcessing), startedAt, time.Now(), jobID, string(domain.JobStatusPending))
	if err != nil {
		return 0, fmt.Errorf("failed to mark job %s processing: %w", jobID, err)
	}
	return result.RowsAffected()
}

// CompleteJob implements domain.JobRepository
func (a *JobDatabaseAdapter) CompleteJob(ctx context.Context, jobID, quizID string, completedAt time.Time) (int64, error) {
	query := `UPDATE generation_jobs SET
		status = :1,
		generated_quiz_id = :2,
		completed_at = :3,
		progress_percentage = 100,
		version = version + 1,
		updated_at = :4
	WHERE id = :5
	AND status IN ` + nonTerminalStatuses

	result, err := a.db.ExecContext(ctx, query,
		string(domain.JobStatusCompleted), quizID, completedAt, time.Now(), jobID)
	if err != nil {
		return 0, fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}
	return result.RowsAffected()
}

// FailJob implements domain.JobRepository
func (a *JobDatabaseAdapter) FailJob(ctx context.Context, jobID, errorMessage string, completedAt time.Time) (int64, error) {
	query := `UPDATE generation_jobs SET
		status = :1,
		error_message = :2,
		completed_at = :3,
		version = version + 1,
		updated_at = :4
	WHERE id = :5
	AND status IN ` + nonTerminalStatuses

	result, err := a.db.ExecContext(ctx, query,
		string(domain.JobStatusFailed), errorMessage, completedAt, time.Now(), jobID)
	if err != nil {
		return 0, fmt.Errorf("failed to fail job %s: %w", jobID, err)
	}
	return result.RowsAffected()
}

// CancelJob implements domain.JobRepository
func (a *JobDatabaseAdapter) CancelJob(ctx context.Context, jobID string, completedAt time.Time) (int64, error) {
	query := `UPDATE generation_jobs SET
		status = :1,
		completed_at = :2,
		version = version + 1,
		updated_at = :3
	WHERE id = :4
	AND status IN ` + nonTerminalStatuses

	result, err := a.db.ExecContext(ctx, query,
		string(domain.JobStatusCancelled), completedAt, time.Now(), jobID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel job %s: %w", jobID, err)
	}
	return result.RowsAffected()
}

// FindStalePendingJobs implements domain.JobRepository
func (a *JobDatabaseAdapter) FindStalePendingJobs(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.GenerationJob, error) {
	var modelJobs []*models.GenerationJob
	query := `SELECT ` + jobColumns + `
	FROM generation_jobs
	WHERE status = :1
	AND created_at < :2
	ORDER BY created_at ASC
	FETCH FIRST :3 ROWS ONLY`

	err := a.db.SelectContext(ctx, &modelJobs, query, string(domain.JobStatusPending), createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale pending jobs: %w", err)
	}

	jobs := make([]*domain.GenerationJob, 0, len(modelJobs))
	for _, m := range modelJobs {
		jobs = append(jobs, toDomainJob(m))
	}
	return jobs, nil
}

// FindPendingJobByUser implements domain.JobRepository
func (a *JobDatabaseAdapter) FindPendingJobByUser(ctx context.Context, userID string) (*domain.GenerationJob, error) {
	var model models.GenerationJob
	query := `SELECT ` + jobColumns + `
	FROM generation_jobs
	WHERE user_id = :1
	AND status = :2
	ORDER BY created_at ASC
	FETCH FIRST 1 ROWS ONLY`

	err := a.db.GetContext(ctx, &model, query, userID, string(domain.JobStatusPending))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find pending job for user %s: %w", userID, err)
	}
	return toDomainJob(&model), nil
}

// ListJobsByUser implements domain.JobRepository
func (a *JobDatabaseAdapter) ListJobsByUser(ctx context.Context, userID string, page, pageSize int) (*domain.JobPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM generation_jobs WHERE user_id = :1`
	if err := a.db.GetContext(ctx, &total, countQuery, userID); err != nil {
		return nil, fmt.Errorf("failed to count jobs for user %s: %w", userID, err)
	}

	var modelJobs []*models.GenerationJob
	query := `SELECT ` + jobColumns + `
	FROM generation_jobs
	WHERE user_id = :1
	ORDER BY created_at DESC
	OFFSET :2 ROWS FETCH NEXT :3 ROWS ONLY`

	offset := (page - 1) * pageSize
	err := a.db.SelectContext(ctx, &modelJobs, query, userID, offset, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs for user %s: %w", userID, err)
	}

	jobs := make([]*domain.GenerationJob, 0, len(modelJobs))
	for _, m := range modelJobs {
		jobs = append(jobs, toDomainJob(m))
	}
	return &domain.JobPage{
		Jobs:       jobs,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}, nil
}

// GetStatistics implements domain.JobRepository
func (a *JobDatabaseAdapter) GetStatistics(ctx context.Context, userID string) (*domain.JobStatistics, error) {
	var row models.JobStatisticsRow
	query := `SELECT
		COUNT(*) "total_jobs",
		COUNT(CASE WHEN status = 'COMPLETED' THEN 1 END) "completed_jobs",
		COUNT(CASE WHEN status = 'FAILED' THEN 1 END) "failed_jobs",
		COUNT(CASE WHEN status = 'CANCELLED' THEN 1 END) "cancelled_jobs",
		COUNT(CASE WHEN status IN ('PENDING', 'PROCESSING') THEN 1 END) "active_jobs",
		AVG(CASE WHEN status = 'COMPLETED' AND started_at IS NOT NULL
			THEN (CAST(completed_at AS DATE) - CAST(started_at AS DATE)) * 86400 END) "avg_generation_secs",
		(SELECT NVL(SUM(q.question_count), 0) FROM quizzes q
			WHERE q.user_id = :1 AND q.chunk_index IS NULL) "questions_generated",
		MAX(created_at) "last_job_created"
	FROM generation_jobs
	WHERE user_id = :2`

	err := a.db.GetContext(ctx, &row, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job statistics for user %s: %w", userID, err)
	}

	stats := &domain.JobStatistics{
		TotalJobs:               row.TotalJobs,
		CompletedJobs:           row.CompletedJobs,
		FailedJobs:              row.FailedJobs,
		CancelledJobs:           row.CancelledJobs,
		ActiveJobs:              row.ActiveJobs,
		TotalQuestionsGenerated: int(row.QuestionsGenerated.Int64),
		LastJobCreated:          util.NullTimeToPtr(row.LastJobCreated),
	}
	if row.AvgGenerationSecs.Valid {
		stats.AvgGenerationTimeSeconds = row.AvgGenerationSecs.Float64
	}
	return stats, nil
}

// Helper functions for model conversion
func toDomainJob(m *models.GenerationJob) *domain.GenerationJob {
	if m == nil {
		return nil
	}
	return &domain.GenerationJob{
		ID:                  m.ID,
		UserID:              m.UserID,
		DocumentID:          m.DocumentID,
		Status:              domain.JobStatus(m.Status),
		TotalChunks:         m.TotalChunks,
		ProcessedChunks:     m.ProcessedChunks,
		TotalTasks:          util.NullInt64ToIntPtr(m.TotalTasks),
		CompletedTasks:      m.CompletedTasks,
		ProgressPercentage:  m.ProgressPercentage,
		CurrentChunk:        m.CurrentChunk.String,
		StartedAt:           util.NullTimeToPtr(m.StartedAt),
		CompletedAt:         util.NullTimeToPtr(m.CompletedAt),
		EstimatedCompletion: util.NullTimeToPtr(m.EstimatedCompletion),
		GeneratedQuizID:     m.GeneratedQuizID.String,
		ErrorMessage:        m.ErrorMessage.String,
		RequestData:         m.RequestData.String,
		ReservationID:       m.ReservationID.String,
		Version:             m.Version,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func toModelJob(d *domain.GenerationJob) *models.GenerationJob {
	if d == nil {
		return nil
	}
	return &models.GenerationJob{
		ID:                  d.ID,
		UserID:              d.UserID,
		DocumentID:          d.DocumentID,
		Status:              string(d.Status),
		TotalChunks:         d.TotalChunks,
		ProcessedChunks:     d.ProcessedChunks,
		TotalTasks:          util.IntPtrToNullInt64(d.TotalTasks),
		CompletedTasks:      d.CompletedTasks,
		ProgressPercentage:  d.ProgressPercentage,
		CurrentChunk:        util.StringToNullString(d.CurrentChunk),
		StartedAt:           util.TimePtrToNullTime(d.StartedAt),
		CompletedAt:         util.TimePtrToNullTime(d.CompletedAt),
		EstimatedCompletion: util.TimePtrToNullTime(d.EstimatedCompletion),
		GeneratedQuizID:     util.StringToNullString(d.GeneratedQuizID),
		ErrorMessage:        util.StringToNullString(d.ErrorMessage),
		RequestData:         util.StringToNullString(d.RequestData),
		ReservationID:       util.StringToNullString(d.ReservationID),
		Version:             d.Version,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}
