package service

import (
	"context"
	"time"

	"quiz-forge/internal/domain"

	"github.com/stretchr/testify/mock"
)

// --- MockJobRepository ---
type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) CreateJob(ctx context.Context, job *domain.GenerationJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) GetJobByID(ctx context.Context, id string) (*domain.GenerationJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GenerationJob), args.Error(1)
}

func (m *MockJobRepository) IncrementCompletedTasks(ctx context.Context, jobID string, delta int, statusLabel string) (int64, error) {
	args := m.Called(ctx, jobID, delta, statusLabel)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockJobRepository) UpdateProcessedChunks(ctx context.Context, jobID string, processedChunks int, statusLabel string) (int64, error) {
	args := m.Called(ctx, jobID, processedChunks, statusLabel)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockJobRepository) SetTotalTasks(ctx context.Context, jobID string, totalChunks, totalTasks int) (int64, error) {
	args := m.Called(ctx, jobID, totalChunks, totalTasks)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockJobRepository) MarkProcessing(ctx context.Context, jobID string, startedAt time.Time) (int64, error) {
	args := m.Called(ctx, jobID, startedAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockJobRepository) CompleteJob(ctx context.Context, jobID, quizID string, completedAt time.Time) (int64, error) {
	args := m.Called(ctx, jobID, quizID, completedAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockJobRepository) FailJob(ctx context.Context, jobID, errorMessage string, completedAt time.Time) (int64, error) {
	args := m.Called(ctx, jobID, errorMessage, completedAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockJobRepository) CancelJob(ctx context.Context, jobID string, completedAt time.Time) (int64, error) {
	args := m.Called(ctx, jobID, completedAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockJobRepository) FindStalePendingJobs(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.GenerationJob, error) {
	args := m.Called(ctx, createdBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.GenerationJob), args.Error(1)
}

func (m *MockJobRepository) FindPendingJobByUser(ctx context.Context, userID string) (*domain.GenerationJob, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GenerationJob), args.Error(1)
}

func (m *MockJobRepository) ListJobsByUser(ctx context.Context, userID string, page, pageSize int) (*domain.JobPage, error) {
	args := m.Called(ctx, userID, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.JobPage), args.Error(1)
}

func (m *MockJobRepository) GetStatistics(ctx context.Context, userID string) (*domain.JobStatistics, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.JobStatistics), args.Error(1)
}

// --- MockDocumentRepository ---
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) GetDocumentByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

// --- MockRateLimiter ---
type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) CheckAndRecordStart(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockRateLimiter) CheckAndRecordCancel(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// --- MockBillingService ---
type MockBillingService struct {
	mock.Mock
}

func (m *MockBillingService) Reserve(ctx context.Context, userID string, estimatedCost int64) (string, error) {
	args := m.Called(ctx, userID, estimatedCost)
	return args.String(0), args.Error(1)
}

func (m *MockBillingService) Commit(ctx context.Context, reservationID string, amount int64) error {
	args := m.Called(ctx, reservationID, amount)
	return args.Error(0)
}

func (m *MockBillingService) Release(ctx context.Context, reservationID string) error {
	args := m.Called(ctx, reservationID)
	return args.Error(0)
}

// --- MockChunkProvider ---
type MockChunkProvider struct {
	mock.Mock
}

func (m *MockChunkProvider) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Chunk), args.Error(1)
}

// --- MockQuestionGenerator ---
type MockQuestionGenerator struct {
	mock.Mock
}

func (m *MockQuestionGenerator) Generate(ctx context.Context, chunkText string, mix domain.QuestionMix) (*domain.QuestionSet, error) {
	args := m.Called(ctx, chunkText, mix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QuestionSet), args.Error(1)
}

// --- MockQuizRepository ---
type MockQuizRepository struct {
	mock.Mock
}

func (m *MockQuizRepository) SaveQuiz(ctx context.Context, quiz *domain.Quiz) error {
	args := m.Called(ctx, quiz)
	return args.Error(0)
}

func (m *MockQuizRepository) GetQuizByID(ctx context.Context, id string) (*domain.Quiz, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Quiz), args.Error(1)
}
