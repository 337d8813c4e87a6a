package domain

import (
	"context"
	"time"
)

// Quiz is a generated quiz. A consolidated quiz carries the union of all
// chunk question sets; a per-chunk quiz (ChunkIndex set) exists for audit.
type Quiz struct {
	ID            string
	JobID         string
	UserID        string
	DocumentID    string
	Title         string
	Difficulty    string
	Tags          []string
	ChunkIndex    *int // nil for the consolidated quiz
	QuestionCount int
	Questions     []Question
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Question is one persisted question belonging to a quiz.
type Question struct {
	ID          string
	QuizID      string
	Text        string
	Type        QuestionType
	Options     []string
	Answer      string
	Explanation string
	ChunkIndex  int
	CreatedAt   time.Time
}

// Validate validates the quiz
func (q *Quiz) Validate() error {
	if q.Title == "" {
		return NewValidationError("title is required")
	}
	if q.JobID == "" {
		return NewValidationError("job ID is required")
	}
	if len(q.Questions) == 0 {
		return NewValidationError("at least one question is required")
	}
	return nil
}

// QuizRepository persists quizzes produced by consolidation.
type QuizRepository interface {
	// SaveQuiz persists a quiz and its questions. The quiz ID must be set.
	SaveQuiz(ctx context.Context, quiz *Quiz) error

	// GetQuizByID retrieves a quiz with its questions, nil when absent.
	GetQuizByID(ctx context.Context, id string) (*Quiz, error)
}

// Document is a source document to be sliced into chunks.
type Document struct {
	ID        string
	UserID    string
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentRepository retrieves source documents for chunking.
type DocumentRepository interface {
	// GetDocumentByID retrieves a document, nil when absent.
	GetDocumentByID(ctx context.Context, id string) (*Document, error)
}
