package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quiz-forge/internal/config"
	"quiz-forge/internal/domain"
	"quiz-forge/internal/metrics"
	"quiz-forge/internal/util"

	"go.uber.org/zap"
)

// activationTimeoutMessage is the standard error recorded when a PENDING
// job is failed for never having been picked up.
const activationTimeoutMessage = "activation timeout: job was not picked up for processing"

// nominal per-chunk latency used for the completion estimate
const estimatedSecondsPerChunk = 15

// JobService owns the job state machine: creation, the PROCESSING mark,
// the three terminal transitions and the read side consumed by the API.
// Terminal transitions race through the store's compare-and-set updates;
// the winner settles the billing reservation exactly once.
type JobService interface {
	CreateJob(ctx context.Context, userID string, req *domain.GenerationRequest) (*domain.GenerationJob, error)
	GetJob(ctx context.Context, jobID, userID string) (*domain.GenerationJob, error)
	CancelJob(ctx context.Context, jobID, userID string) (*domain.GenerationJob, error)
	ListJobs(ctx context.Context, userID string, page, pageSize int) (*domain.JobPage, error)
	GetStatistics(ctx context.Context, userID string) (*domain.JobStatistics, error)

	// Orchestrator-facing transitions. Losing the transition race returns
	// domain.ErrConcurrencyConflict; callers treat it as "someone else
	// finished the job" and stand down.
	MarkProcessing(ctx context.Context, jobID string) error
	Complete(ctx context.Context, jobID, quizID string, questionsGenerated int) error
	Fail(ctx context.Context, jobID, errorMessage string) error
}

// jobService implements JobService
type jobService struct {
	jobRepo     domain.JobRepository
	docRepo     domain.DocumentRepository
	rateLimiter domain.RateLimiter
	billing     domain.BillingService
	dispatch    *DispatchQueue
	cfg         *config.Config
	logger      *zap.Logger
}

// NewJobService creates a new instance of jobService.
func NewJobService(
	jobRepo domain.JobRepository,
	docRepo domain.DocumentRepository,
	rateLimiter domain.RateLimiter,
	billing domain.BillingService,
	dispatch *DispatchQueue,
	cfg *config.Config,
	logger *zap.Logger,
) JobService {
	return &jobService{
		jobRepo:     jobRepo,
		docRepo:     docRepo,
		rateLimiter: rateLimiter,
		billing:     billing,
		dispatch:    dispatch,
		cfg:         cfg,
		logger:      logger,
	}
}

// CreateJob implements JobService. The job row is committed before the ID
// is handed to the dispatch queue, so workers only ever see durable jobs.
func (s *jobService) CreateJob(ctx context.Context, userID string, req *domain.GenerationRequest) (*domain.GenerationJob, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user ID is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := s.rateLimiter.CheckAndRecordStart(ctx, userID); err != nil {
		return nil, err
	}

	doc, err := s.docRepo.GetDocumentByID(ctx, req.DocumentID)
	if err != nil {
		return nil, domain.NewInternalError("failed to load document", err)
	}
	if doc == nil {
		return nil, domain.NewDocumentNotFoundError(req.DocumentID)
	}
	if doc.UserID != userID {
		return nil, domain.NewForbiddenError("document belongs to another user")
	}

	// Self-heal: a stale PENDING job of the same user is cancelled before
	// it gets superseded by a fresh one. At most one per create request.
	s.cancelSupersededJob(ctx, userID)

	totalChunks := estimateChunkCount(len(doc.Content), s.cfg.Generator.ChunkSize)
	estimatedCost := int64(totalChunks*req.QuestionMix.QuestionCount()) * s.cfg.Billing.CostPerQuestion

	reservationID, err := s.billing.Reserve(ctx, userID, estimatedCost)
	if err != nil {
		return nil, domain.NewInternalError("failed to reserve generation budget", err)
	}

	requestData, err := json.Marshal(req)
	if err != nil {
		releaseErr := s.billing.Release(ctx, reservationID)
		if releaseErr != nil {
			s.logger.Error("Failed to release reservation after marshal error",
				zap.String("reservation_id", reservationID), zap.Error(releaseErr))
		}
		return nil, domain.NewInternalError("failed to serialize request", err)
	}

	job := domain.NewGenerationJob(
		util.NewULID(), userID, req.DocumentID, string(requestData),
		totalChunks, totalChunks*estimatedSecondsPerChunk)
	job.ReservationID = reservationID

	if err := s.jobRepo.CreateJob(ctx, job); err != nil {
		releaseErr := s.billing.Release(ctx, reservationID)
		if releaseErr != nil {
			s.logger.Error("Failed to release reservation after insert error",
				zap.String("reservation_id", reservationID), zap.Error(releaseErr))
		}
		return nil, domain.NewInternalError("failed to create job", err)
	}

	if err := s.dispatch.Enqueue(job.ID); err != nil {
		// The row is durable; the reaper will fail it if dispatch capacity
		// never frees up.
		s.logger.Warn("Dispatch queue rejected new job",
			zap.String("job_id", job.ID), zap.Error(err))
	}

	metrics.JobsCreated.Inc()
	s.logger.Info("Job created",
		zap.String("job_id", job.ID),
		zap.String("user_id", userID),
		zap.String("document_id", req.DocumentID),
		zap.Int("estimated_chunks", totalChunks))
	return job, nil
}

// GetJob implements JobService
func (s *jobService) GetJob(ctx context.Context, jobID, userID string) (*domain.GenerationJob, error) {
	job, err := s.jobRepo.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, domain.NewInternalError("failed to get job", err)
	}
	if job == nil {
		return nil, domain.NewJobNotFoundError(jobID)
	}
	if !job.IsOwnedBy(userID) {
		return nil, domain.NewForbiddenError("job belongs to another user")
	}
	return job, nil
}

// CancelJob implements JobService. Cancelling a terminal job is a no-op
// that returns the actual state; cancellation never overwrites a finished
// job. The cancel winner settles billing: a minimum non-refundable fee is
// committed when generation had already started, otherwise the full
// reservation is released.
func (s *jobService) CancelJob(ctx context.Context, jobID, userID string) (*domain.GenerationJob, error) {
	job, err := s.GetJob(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}

	if job.Status.IsTerminal() {
		return job, nil
	}

	if age := job.Age(); age < s.cfg.Generator.MinCancelAge {
		return nil, domain.NewValidationError(
			fmt.Sprintf("job is %s old, cancellation allowed after %s", age.Round(time.Second), s.cfg.Generator.MinCancelAge))
	}

	if err := s.rateLimiter.CheckAndRecordCancel(ctx, userID); err != nil {
		return nil, err
	}

	affected, err := s.jobRepo.CancelJob(ctx, jobID, time.Now())
	if err != nil {
		return nil, domain.NewInternalError("failed to cancel job", err)
	}

	// Lost race or won, either way report the actual final state.
	final, err := s.GetJob(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	if affected > 0 {
		// Settle from the fresh read: started_at may have been stamped
		// between our first read and winning the cancel.
		s.settleOnCancel(ctx, final)
		metrics.JobsFinished.WithLabelValues(string(domain.JobStatusCancelled)).Inc()
		s.logger.Info("Job cancelled",
			zap.String("job_id", jobID),
			zap.String("user_id", userID))
	}
	return final, nil
}

// ListJobs implements JobService
func (s *jobService) ListJobs(ctx context.Context, userID string, page, pageSize int) (*domain.JobPage, error) {
	pageResult, err := s.jobRepo.ListJobsByUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, domain.NewInternalError("failed to list jobs", err)
	}
	return pageResult, nil
}

// GetStatistics implements JobService
func (s *jobService) GetStatistics(ctx context.Context, userID string) (*domain.JobStatistics, error) {
	stats, err := s.jobRepo.GetStatistics(ctx, userID)
	if err != nil {
		return nil, domain.NewInternalError("failed to get job statistics", err)
	}
	return stats, nil
}

// MarkProcessing implements JobService
func (s *jobService) MarkProcessing(ctx context.Context, jobID string) error {
	affected, err := s.jobRepo.MarkProcessing(ctx, jobID, time.Now())
	if err != nil {
		return domain.NewInternalError("failed to mark job processing", err)
	}
	if affected == 0 {
		return domain.ErrConcurrencyConflict
	}
	return nil
}

// Complete implements JobService
func (s *jobService) Complete(ctx context.Context, jobID, quizID string, questionsGenerated int) error {
	affected, err := s.jobRepo.CompleteJob(ctx, jobID, quizID, time.Now())
	if err != nil {
		return domain.NewInternalError("failed to complete job", err)
	}
	if affected == 0 {
		return domain.ErrConcurrencyConflict
	}

	job, err := s.jobRepo.GetJobByID(ctx, jobID)
	if err == nil && job != nil && job.ReservationID != "" {
		amount := int64(questionsGenerated) * s.cfg.Billing.CostPerQuestion
		if commitErr := s.billing.Commit(ctx, job.ReservationID, amount); commitErr != nil {
			s.logger.Error("Failed to commit billing reservation",
				zap.String("job_id", jobID),
				zap.String("reservation_id", job.ReservationID),
				zap.Error(commitErr))
		}
	}

	metrics.JobsFinished.WithLabelValues(string(domain.JobStatusCompleted)).Inc()
	s.logger.Info("Job completed",
		zap.String("job_id", jobID),
		zap.String("quiz_id", quizID),
		zap.Int("questions", questionsGenerated))
	return nil
}

// Fail implements JobService
func (s *jobService) Fail(ctx context.Context, jobID, errorMessage string) error {
	affected, err := s.jobRepo.FailJob(ctx, jobID, errorMessage, time.Now())
	if err != nil {
		return domain.NewInternalError("failed to fail job", err)
	}
	if affected == 0 {
		return domain.ErrConcurrencyConflict
	}

	job, err := s.jobRepo.GetJobByID(ctx, jobID)
	if err == nil && job != nil && job.ReservationID != "" {
		if releaseErr := s.billing.Release(ctx, job.ReservationID); releaseErr != nil {
			s.logger.Error("Failed to release billing reservation",
				zap.String("job_id", jobID),
				zap.String("reservation_id", job.ReservationID),
				zap.Error(releaseErr))
		}
	}

	metrics.JobsFinished.WithLabelValues(string(domain.JobStatusFailed)).Inc()
	s.logger.Warn("Job failed",
		zap.String("job_id", jobID),
		zap.String("error", errorMessage))
	return nil
}

// settleOnCancel applies the cost-fairness policy: commit the minimum fee
// when generation work had started, release the full reservation when the
// job never left PENDING. Called only by the cancel winner, so it runs at
// most once per job.
func (s *jobService) settleOnCancel(ctx context.Context, job *domain.GenerationJob) {
	if job.ReservationID == "" {
		return
	}
	var err error
	if job.StartedAt != nil {
		err = s.billing.Commit(ctx, job.ReservationID, s.cfg.Billing.MinimumFee)
	} else {
		err = s.billing.Release(ctx, job.ReservationID)
	}
	if err != nil {
		s.logger.Error("Failed to settle billing on cancel",
			zap.String("job_id", job.ID),
			zap.String("reservation_id", job.ReservationID),
			zap.Error(err))
	}
}

// cancelSupersededJob cancels at most one stale PENDING job of the user
// that is about to be replaced by a new start request.
func (s *jobService) cancelSupersededJob(ctx context.Context, userID string) {
	pending, err := s.jobRepo.FindPendingJobByUser(ctx, userID)
	if err != nil {
		s.logger.Warn("Self-heal lookup failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if pending == nil || pending.Age() < s.cfg.Generator.ActivationTimeout {
		return
	}

	affected, err := s.jobRepo.CancelJob(ctx, pending.ID, time.Now())
	if err != nil {
		s.logger.Warn("Self-heal cancel failed", zap.String("job_id", pending.ID), zap.Error(err))
		return
	}
	if affected > 0 {
		s.settleOnCancel(ctx, pending)
		metrics.JobsFinished.WithLabelValues(string(domain.JobStatusCancelled)).Inc()
		s.logger.Info("Superseded stale job cancelled",
			zap.String("job_id", pending.ID),
			zap.String("user_id", userID))
	}
}

func estimateChunkCount(contentLength, chunkSize int) int {
	if chunkSize <= 0 || contentLength <= 0 {
		return 1
	}
	n := (contentLength + chunkSize - 1) / chunkSize
	if n < 1 {
		n = 1
	}
	return n
}
