package domain

import (
	"time"
)

// JobStatus represents the lifecycle state of a generation job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusCancelled  JobStatus = "CANCELLED"
)

// IsTerminal reports whether the status is a sink state. Terminal jobs
// never transition again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// IsValid reports whether s is one of the known job statuses.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// GenerationJob is the durable record of one document-to-quiz generation
// request. It is the single shared mutable resource of the orchestrator:
// all mutation goes through JobRepository's atomic updates, which bump
// Version by exactly one per successful write.
type GenerationJob struct {
	ID                  string
	UserID              string
	DocumentID          string
	Status              JobStatus
	TotalChunks         int
	ProcessedChunks     int
	TotalTasks          *int // nil until dispatch planning has finished
	CompletedTasks      int
	ProgressPercentage  float64
	CurrentChunk        string // free-text status label, last writer wins
	StartedAt           *time.Time
	CompletedAt         *time.Time
	EstimatedCompletion *time.Time
	GeneratedQuizID     string // set only by the COMPLETED transition
	ErrorMessage        string // set only by the FAILED transition
	RequestData         string // serialized original request, for audit and self-heal
	ReservationID       string // billing reservation handle
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewGenerationJob creates a PENDING job for the given user and document.
func NewGenerationJob(id, userID, documentID, requestData string, totalChunks int, estimatedSeconds int) *GenerationJob {
	now := time.Now()
	job := &GenerationJob{
		ID:          id,
		UserID:      userID,
		DocumentID:  documentID,
		Status:      JobStatusPending,
		TotalChunks: totalChunks,
		RequestData: requestData,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if estimatedSeconds > 0 {
		eta := now.Add(time.Duration(estimatedSeconds) * time.Second)
		job.EstimatedCompletion = &eta
	}
	return job
}

// Validate validates the job
func (j *GenerationJob) Validate() error {
	if j.UserID == "" {
		return NewValidationError("user ID is required")
	}
	if j.DocumentID == "" {
		return NewValidationError("document ID is required")
	}
	if !j.Status.IsValid() {
		return NewValidationError("invalid job status")
	}
	return nil
}

// IsOwnedBy reports whether the job belongs to the given user.
func (j *GenerationJob) IsOwnedBy(userID string) bool {
	return j.UserID == userID
}

// Age returns the time elapsed since the job was created.
func (j *GenerationJob) Age() time.Duration {
	return time.Since(j.CreatedAt)
}

// CanTransitionTo reports whether moving to the target status is a legal
// state-machine step. Terminal states are sinks.
func (j *GenerationJob) CanTransitionTo(target JobStatus) bool {
	if j.Status.IsTerminal() {
		return false
	}
	switch target {
	case JobStatusProcessing:
		return j.Status == JobStatusPending
	case JobStatusCompleted, JobStatusFailed:
		return j.Status == JobStatusPending || j.Status == JobStatusProcessing
	case JobStatusCancelled:
		return j.Status == JobStatusPending || j.Status == JobStatusProcessing
	}
	return false
}

// JobStatistics aggregates a user's generation history.
type JobStatistics struct {
	TotalJobs                int
	CompletedJobs            int
	FailedJobs               int
	CancelledJobs            int
	ActiveJobs               int
	AvgGenerationTimeSeconds float64
	TotalQuestionsGenerated  int
	LastJobCreated           *time.Time
}

// JobPage is one page of a user's job listing.
type JobPage struct {
	Jobs       []*GenerationJob
	Page       int
	PageSize   int
	TotalCount int
}
