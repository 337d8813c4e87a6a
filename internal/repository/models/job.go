package models

import (
	"database/sql"
	"time"
)

// GenerationJob is the database model for the generation_jobs table.
type GenerationJob struct {
	ID                  string          `db:"id"`
	UserID              string          `db:"user_id"`
	DocumentID          string          `db:"document_id"`
	Status              string          `db:"status"`
	TotalChunks         int             `db:"total_chunks"`
	ProcessedChunks     int             `db:"processed_chunks"`
	TotalTasks          sql.NullInt64   `db:"total_tasks"`
	CompletedTasks      int             `db:"completed_tasks"`
	ProgressPercentage  float64         `db:"progress_percentage"`
	CurrentChunk        sql.NullString  `db:"current_chunk"`
	StartedAt           sql.NullTime    `db:"started_at"`
	CompletedAt         sql.NullTime    `db:"completed_at"`
	EstimatedCompletion sql.NullTime    `db:"estimated_completion"`
	GeneratedQuizID     sql.NullString  `db:"generated_quiz_id"`
	ErrorMessage        sql.NullString  `db:"error_message"`
	RequestData         sql.NullString  `db:"request_data"`
	ReservationID       sql.NullString  `db:"reservation_id"`
	Version             int64           `db:"version"`
	CreatedAt           time.Time       `db:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at"`
}

// JobStatisticsRow is the aggregate row produced by the statistics query.
type JobStatisticsRow struct {
	TotalJobs          int             `db:"total_jobs"`
	CompletedJobs      int             `db:"completed_jobs"`
	FailedJobs         int             `db:"failed_jobs"`
	CancelledJobs      int             `db:"cancelled_jobs"`
	ActiveJobs         int             `db:"active_jobs"`
	AvgGenerationSecs  sql.NullFloat64 `db:"avg_generation_secs"`
	QuestionsGenerated sql.NullInt64   `db:"questions_generated"`
	LastJobCreated     sql.NullTime    `db:"last_job_created"`
}
