package dto

import (
	"time"

	"quiz-forge/internal/domain"
)

// CreateJobRequest represents a job creation request body
type CreateJobRequest struct {
	DocumentID  string         `json:"document_id"`
	Title       string         `json:"title"`
	Difficulty  string         `json:"difficulty,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	QuestionMix map[string]int `json:"question_mix"`
	PerChunk    bool           `json:"per_chunk,omitempty"`
}

// ToDomain converts the request body into a domain generation request.
func (r *CreateJobRequest) ToDomain() *domain.GenerationRequest {
	mix := make(domain.QuestionMix, len(r.QuestionMix))
	for t, n := range r.QuestionMix {
		mix[domain.QuestionType(t)] = n
	}
	return &domain.GenerationRequest{
		DocumentID:  r.DocumentID,
		Title:       r.Title,
		Difficulty:  r.Difficulty,
		Tags:        r.Tags,
		QuestionMix: mix,
		PerChunk:    r.PerChunk,
	}
}

// JobResponse represents a generation job in the API response
type JobResponse struct {
	ID                  string     `json:"id"`
	DocumentID          string     `json:"document_id"`
	Status              string     `json:"status"`
	TotalChunks         int        `json:"total_chunks"`
	ProcessedChunks     int        `json:"processed_chunks"`
	TotalTasks          *int       `json:"total_tasks,omitempty"`
	CompletedTasks      int        `json:"completed_tasks"`
	ProgressPercentage  float64    `json:"progress_percentage"`
	CurrentChunk        string     `json:"current_chunk,omitempty"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
	GeneratedQuizID     string     `json:"generated_quiz_id,omitempty"`
	ErrorMessage        string     `json:"error_message,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// NewJobResponse converts a domain job into its API representation.
func NewJobResponse(job *domain.GenerationJob) *JobResponse {
	return &JobResponse{
		ID:                  job.ID,
		DocumentID:          job.DocumentID,
		Status:              string(job.Status),
		TotalChunks:         job.TotalChunks,
		ProcessedChunks:     job.ProcessedChunks,
		TotalTasks:          job.TotalTasks,
		CompletedTasks:      job.CompletedTasks,
		ProgressPercentage:  job.ProgressPercentage,
		CurrentChunk:        job.CurrentChunk,
		StartedAt:           job.StartedAt,
		CompletedAt:         job.CompletedAt,
		EstimatedCompletion: job.EstimatedCompletion,
		GeneratedQuizID:     job.GeneratedQuizID,
		ErrorMessage:        job.ErrorMessage,
		CreatedAt:           job.CreatedAt,
		UpdatedAt:           job.UpdatedAt,
	}
}

// JobListResponse represents one page of a user's jobs
type JobListResponse struct {
	Jobs       []*JobResponse `json:"jobs"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalCount int            `json:"total_count"`
}

// NewJobListResponse converts a domain job page into its API representation.
func NewJobListResponse(page *domain.JobPage) *JobListResponse {
	jobs := make([]*JobResponse, len(page.Jobs))
	for i, job := range page.Jobs {
		jobs[i] = NewJobResponse(job)
	}
	return &JobListResponse{
		Jobs:       jobs,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalCount: page.TotalCount,
	}
}

// JobStatisticsResponse represents a user's aggregate generation history
type JobStatisticsResponse struct {
	TotalJobs                int        `json:"total_jobs"`
	CompletedJobs            int        `json:"completed_jobs"`
	FailedJobs               int        `json:"failed_jobs"`
	CancelledJobs            int        `json:"cancelled_jobs"`
	ActiveJobs               int        `json:"active_jobs"`
	AvgGenerationTimeSeconds float64    `json:"avg_generation_time_seconds"`
	TotalQuestionsGenerated  int        `json:"total_questions_generated"`
	LastJobCreated           *time.Time `json:"last_job_created,omitempty"`
}

// NewJobStatisticsResponse converts domain statistics into the API shape.
func NewJobStatisticsResponse(stats *domain.JobStatistics) *JobStatisticsResponse {
	return &JobStatisticsResponse{
		TotalJobs:                stats.TotalJobs,
		CompletedJobs:            stats.CompletedJobs,
		FailedJobs:               stats.FailedJobs,
		CancelledJobs:            stats.CancelledJobs,
		ActiveJobs:               stats.ActiveJobs,
		AvgGenerationTimeSeconds: stats.AvgGenerationTimeSeconds,
		TotalQuestionsGenerated:  stats.TotalQuestionsGenerated,
		LastJobCreated:           stats.LastJobCreated,
	}
}

// ErrorResponse represents an error in the API response
type ErrorResponse struct {
	Error string `json:"error"`
}
