package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-forge/internal/config"
	"quiz-forge/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		Generator: config.GeneratorConfig{
			ChunkSize:            1000,
			WorkerCount:          2,
			MaxChunkFailureRatio: 0.5,
			DispatchQueueSize:    8,
			ActivationTimeout:    2 * time.Minute,
			ReaperInterval:       time.Minute,
			MinCancelAge:         10 * time.Second,
		},
		Billing: config.BillingConfig{
			CostPerQuestion: 1,
			MinimumFee:      5,
		},
	}
}

type jobServiceMocks struct {
	jobRepo     *MockJobRepository
	docRepo     *MockDocumentRepository
	rateLimiter *MockRateLimiter
	billing     *MockBillingService
	queue       *DispatchQueue
}

func newTestJobService(cfg *config.Config) (JobService, *jobServiceMocks) {
	m := &jobServiceMocks{
		jobRepo:     new(MockJobRepository),
		docRepo:     new(MockDocumentRepository),
		rateLimiter: new(MockRateLimiter),
		billing:     new(MockBillingService),
		queue:       NewDispatchQueue(cfg.Generator.DispatchQueueSize),
	}
	svc := NewJobService(m.jobRepo, m.docRepo, m.rateLimiter, m.billing, m.queue, cfg, zap.NewNop())
	return svc, m
}

func validRequest() *domain.GenerationRequest {
	return &domain.GenerationRequest{
		DocumentID: "doc1",
		Title:      "Networking Basics",
		QuestionMix: domain.QuestionMix{
			domain.QuestionTypeMultipleChoice: 3,
			domain.QuestionTypeTrueFalse:      2,
		},
	}
}

func TestCreateJob(t *testing.T) {
	svc, m := newTestJobService(testConfig())
	ctx := context.Background()

	doc := &domain.Document{ID: "doc1", UserID: "user1", Content: string(make([]byte, 2500))}
	m.rateLimiter.On("CheckAndRecordStart", ctx, "user1").Return(nil)
	m.docRepo.On("GetDocumentByID", ctx, "doc1").Return(doc, nil)
	m.jobRepo.On("FindPendingJobByUser", ctx, "user1").Return(nil, nil)
	// 3 chunks x 5 questions x 1 credit
	m.billing.On("Reserve", ctx, "user1", int64(15)).Return("resv1", nil)
	m.jobRepo.On("CreateJob", ctx, mock.AnythingOfType("*domain.GenerationJob")).Return(nil)

	job, err := svc.CreateJob(ctx, "user1", validRequest())
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, 3, job.TotalChunks)
	assert.Equal(t, "resv1", job.ReservationID)
	assert.NotEmpty(t, job.RequestData)
	assert.NotNil(t, job.EstimatedCompletion)

	// The committed job ID must be on the dispatch queue.
	select {
	case id := <-m.queue.Chan():
		assert.Equal(t, job.ID, id)
	default:
		t.Fatal("expected job on dispatch queue")
	}
	m.jobRepo.AssertExpectations(t)
	m.billing.AssertExpectations(t)
}

func TestCreateJobRateLimited(t *testing.T) {
	svc, m := newTestJobService(testConfig())
	ctx := context.Background()

	m.rateLimiter.On("CheckAndRecordStart", ctx, "user1").
		Return(domain.NewRateLimitedError("rate limit exceeded for start:minute window"))

	job, err := svc.CreateJob(ctx, "user1", validRequest())
	assert.Nil(t, job)
	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrRateLimited, domainErr.Code)
	m.docRepo.AssertNotCalled(t, "GetDocumentByID")
}

func TestCreateJobDocumentNotFound(t *testing.T) {
	svc, m := newTestJobService(testConfig())
	ctx := context.Background()

	m.rateLimiter.On("CheckAndRecordStart", ctx, "user1").Return(nil)
	m.docRepo.On("GetDocumentByID", ctx, "doc1").Return(nil, nil)

	_, err := svc.CreateJob(ctx, "user1", validRequest())
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrDocumentNotFound, domainErr.Code)
}

func TestCreateJobForeignDocument(t *testing.T) {
	svc, m := newTestJobService(testConfig())
	ctx := context.Background()

	doc := &domain.Document{ID: "doc1", UserID: "someone-else", Content: "text"}
	m.rateLimiter.On("CheckAndRecordStart", ctx, "user1").Return(nil)
	m.docRepo.On("GetDocumentByID", ctx, "doc1").Return(doc, nil)

	_, err := svc.CreateJob(ctx, "user1", validRequest())
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrForbidden, domainErr.Code)
	m.billing.AssertNotCalled(t, "Reserve")
}

func TestCreateJobInsertFailureReleasesReservation(t *testing.T) {
	svc, m := newTestJobService(testConfig())
	ctx := context.Background()

	doc := &domain.Document{ID: "doc1", UserID: "user1", Content: "short text"}
	m.rateLimiter.On("CheckAndRecordStart", ctx, "user1").Return(nil)
	m.docRepo.On("GetDocumentByID", ctx, "doc1").Return(doc, nil)
	m.jobRepo.On("FindPendingJobByUser", ctx, "user1").Return(nil, nil)
	m.billing.On("Reserve", ctx, "user1", mock.AnythingOfType("int64")).Return("resv1", nil)
	m.jobRepo.On("CreateJob", ctx, mock.Anything).Return(errors.New("insert failed"))
	m.billing.On("Release", ctx, "resv1").Return(nil)

	_, err := svc.CreateJob(ctx, "user1", validRequest())
	assert.Error(t, err)
	m.billing.AssertCalled(t, "Release", ctx, "resv1")
}

func TestCreateJobInvalidMix(t *testing.T) {
	svc, _ := newTestJobService(testConfig())

	req := validRequest()
	req.QuestionMix = domain.QuestionMix{}
	_, err := svc.CreateJob(context.Background(), "user1", req)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrInvalidInput, domainErr.Code)
}

func TestCancelJobTerminalIsNoOp(t *testing.T) {
	svc, m := newTestJobService(testConfig())
	ctx := context.Background()

	done := &domain.GenerationJob{
		ID: "job1", UserID: "user1", Status: domain.JobStatusCompleted,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	m.jobRepo.On("GetJobByID", ctx, "job1").Return(done, nil)

	job, err := svc.CancelJob(ctx, "job1", "user1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	m.jobRepo.AssertNotCalled(t, "CancelJob")
	m.rateLimiter.AssertNotCalled(t, "CheckAndRecordCancel")
}

func TestCancelJobTooYoung(t *testing.T) {
	svc, m := newTestJobService(testConfig())
	ctx := context.Background()

	fresh := &domain.GenerationJob{
		ID: "job1", UserID: "user1", Status: domain.JobStatusPending,
		CreatedAt: time.Now(),
	}
	m.jobRepo.On("GetJobByID", ctx, "job1").Return(fresh, nil)

	_, err := svc.CancelJob(ctx, "job1", "user1")
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrInvalidInput, domainErr.Code)
	m.jobRepo.AssertNotCalled(t, "CancelJob")
}

func TestCancelJobReleasesWhenNeverStarted(t *testing.T) {
	svc, m := newTestJobService(testConfig())
	ctx := context.Background()

	pending := &domain.GenerationJob{
		ID: "job1", UserID: "user1", Status: domain.JobStatusPending,
		ReservationID: "resv1", CreatedAt: time.Now().Add(-time.Minute),
	}
	cancelled := &domain.GenerationJob{
		ID: "job1", UserID: "user1", Status: domain.JobStatusCancelled,
		ReservationID: "resv1", CreatedAt: pending.CreatedAt,
	}
	m.jobRepo.On("GetJobByID", ctx, "job1").Return(pending, nil).Once()
	m.rateLimiter.On("CheckAndRecordCancel", ctx, "user1").Return(nil)
	m.jobRepo.On("CancelJob", ctx, "job1", mock.AnythingOfType("time.Time")).Return(int64(1), nil)
	m.jobRepo.On("GetJobByID", ctx, "job1").Return(cancelled, nil).Once()
	m.billing.On("Release", ctx, "resv1").Return(nil)

	job, err := svc.CancelJob(ctx, "job1", "user1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, job.Status)
	m.billing.AssertCalled(t, "Release", ctx, "resv1")
	m.billing.AssertNotCalled(t, "Commit")
}

func TestCancelJobCommitsMinimumFeeWhenStarted(t *testing.T) {
	cfg := testConfig()
	svc, m := newTestJobService(cfg)
	ctx := context.Background()

	started := time.Now().Add(-30 * time.Second)
	processing := &domain.GenerationJob{
		ID: "job1", UserID: "user1", Status: domain.JobStatusProcessing,
		ReservationID: "resv1", StartedAt: &started,
		CreatedAt: time.Now().Add(-time.Minute),
	}
	cancelled := &domain.GenerationJob{
		ID: "job1", UserID: "user1", Status: domain.JobStatusCancelled,
		ReservationID: "resv1", StartedAt: &started,
		CreatedAt: processing.CreatedAt,
	}
	m.jobRepo.On("GetJobByID", ctx, "job1").Return(processing, nil).Once()
	m.rateLimiter.On("CheckAndRecordCancel", ctx, "user1").Return(nil)
	m.jobRepo.On("CancelJob", ctx, "job1", mock.AnythingOfType("time.Time")).Return(int64(1), nil)
	m.jobRepo.On("GetJobByID", ctx, "job1").Return(cancelled, nil).Once()
	m.billing.On("Commit", ctx, "resv1", cfg.Billing.MinimumFee).Return(nil)

	job, err := svc.CancelJob(ctx, "job1", "user1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, job.Status)
	m.billing.AssertCalled(t, "Commit", ctx, "resv1", cfg.Billing.MinimumFee)
	m.billing.AssertNotCalled(t, "Release")
}

func TestCancelJobLostRaceReturnsFinalState(t *testing.T) {
	svc, m := newTestJobService(testConfig())
	ctx := context.Background()

	processing := &domain.GenerationJob{
		ID: "job1", UserID: "user1", Status: domain.JobStatusProcessing,
		ReservationID: "resv1", CreatedAt: time.Now().Add(-time.Minute),
	}
	completed := &domain.GenerationJob{
		ID: "job1", UserID: "user1", Status: domain.JobStatusCompleted,
		ReservationID: "resv1", CreatedAt: processing.CreatedAt,
	}
	m.jobRepo.On("GetJobByID", ctx, "job1").Return(processing, nil).Once()
	m.rateLimiter.On("CheckAndRecordCancel", ctx, "user1").Return(nil)
	m.jobRepo.On("CancelJob", ctx, "job1", mock.AnythingOfType("time.Time")).Return(int64(0), nil)
	m.jobRepo.On("GetJobByID", ctx, "job1").Return(completed, nil).Once()

	job, err := svc.CancelJob(ctx, "job1", "user1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	m.billing.AssertNotCalled(t, "Commit")
	m.billing.AssertNotCalled(t, "Release")
}

func TestGetJobOwnership(t *testing.T) {
	svc, m := newTestJobService(testConfig())
	ctx := context.Background()

	job := &domain.GenerationJob{ID: "job1", UserID: "owner", Status: domain.JobStatusPending}
	m.jobRepo.On("GetJobByID", ctx, "job1").Return(job, nil)

	_, err := svc.GetJob(ctx, "job1", "intruder")
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrForbidden, domainErr.Code)
}

func TestGetJobNotFound(t *testing.T) {
	svc, m := newTestJobService(testConfig())
	ctx := context.Background()

	m.jobRepo.On("GetJobByID", ctx, "missing").Return(nil, nil)

	_, err := svc.GetJob(ctx, "missing", "user1")
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrJobNotFound, domainErr.Code)
}

func TestMarkProcessingConflict(t *testing.T) {
	svc, m := newTestJobService(testConfig())
	ctx := context.Background()

	m.jobRepo.On("MarkProcessing", ctx, "job1", mock.AnythingOfType("time.Time")).Return(int64(0), nil)

	err := svc.MarkProcessing(ctx, "job1")
	assert.True(t, domain.IsConcurrencyConflict(err))
}

func TestCompleteCommitsBilling(t *testing.T) {
	svc, m := newTestJobService(testConfig())
	ctx := context.Background()

	job := &domain.GenerationJob{ID: "job1", UserID: "user1", ReservationID: "resv1"}
	m.jobRepo.On("CompleteJob", ctx, "job1", "quiz1", mock.AnythingOfType("time.Time")).Return(int64(1), nil)
	m.jobRepo.On("GetJobByID", ctx, "job1").Return(job, nil)
	m.billing.On("Commit", ctx, "resv1", int64(15)).Return(nil)

	err := svc.Complete(ctx, "job1", "quiz1", 15)
	require.NoError(t, err)
	m.billing.AssertCalled(t, "Commit", ctx, "resv1", int64(15))
}

func TestCompleteConflict(t *testing.T) {
	svc, m := newTestJobService(testConfig())
	ctx := context.Background()

	m.jobRepo.On("CompleteJob", ctx, "job1", "quiz1", mock.AnythingOfType("time.Time")).Return(int64(0), nil)

	err := svc.Complete(ctx, "job1", "quiz1", 15)
	assert.True(t, domain.IsConcurrencyConflict(err))
	m.billing.AssertNotCalled(t, "Commit")
}

func TestFailReleasesReservation(t *testing.T) {
	svc, m := newTestJobService(testConfig())
	ctx := context.Background()

	job := &domain.GenerationJob{ID: "job1", UserID: "user1", ReservationID: "resv1"}
	m.jobRepo.On("FailJob", ctx, "job1", "boom", mock.AnythingOfType("time.Time")).Return(int64(1), nil)
	m.jobRepo.On("GetJobByID", ctx, "job1").Return(job, nil)
	m.billing.On("Release", ctx, "resv1").Return(nil)

	err := svc.Fail(ctx, "job1", "boom")
	require.NoError(t, err)
	m.billing.AssertCalled(t, "Release", ctx, "resv1")
}

func TestCreateJobCancelsSupersededPending(t *testing.T) {
	cfg := testConfig()
	svc, m := newTestJobService(cfg)
	ctx := context.Background()

	stale := &domain.GenerationJob{
		ID: "old-job", UserID: "user1", Status: domain.JobStatusPending,
		ReservationID: "old-resv",
		CreatedAt:     time.Now().Add(-cfg.Generator.ActivationTimeout - time.Minute),
	}
	doc := &domain.Document{ID: "doc1", UserID: "user1", Content: "text"}

	m.rateLimiter.On("CheckAndRecordStart", ctx, "user1").Return(nil)
	m.docRepo.On("GetDocumentByID", ctx, "doc1").Return(doc, nil)
	m.jobRepo.On("FindPendingJobByUser", ctx, "user1").Return(stale, nil)
	m.jobRepo.On("CancelJob", ctx, "old-job", mock.AnythingOfType("time.Time")).Return(int64(1), nil)
	m.billing.On("Release", ctx, "old-resv").Return(nil)
	m.billing.On("Reserve", ctx, "user1", mock.AnythingOfType("int64")).Return("new-resv", nil)
	m.jobRepo.On("CreateJob", ctx, mock.Anything).Return(nil)

	job, err := svc.CreateJob(ctx, "user1", validRequest())
	require.NoError(t, err)
	assert.Equal(t, "new-resv", job.ReservationID)
	m.jobRepo.AssertCalled(t, "CancelJob", ctx, "old-job", mock.AnythingOfType("time.Time"))
	m.billing.AssertCalled(t, "Release", ctx, "old-resv")
}
