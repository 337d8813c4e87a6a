package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"quiz-forge/internal/domain"
	"quiz-forge/internal/repository/models"
	"quiz-forge/internal/util"

	"github.com/jmoiron/sqlx"
)

const stringDelimiter = "|||"

// QuizDatabaseAdapter implements domain.QuizRepository using sqlx.DB
type QuizDatabaseAdapter struct {
	db *sqlx.DB
}

// NewQuizDatabaseAdapter creates a new instance of QuizDatabaseAdapter
func NewQuizDatabaseAdapter(db *sqlx.DB) domain.QuizRepository {
	return &QuizDatabaseAdapter{db: db}
}

// SaveQuiz implements domain.QuizRepository. The quiz row and its question
// rows are written in one transaction so a half-saved quiz is never visible.
func (a *QuizDatabaseAdapter) SaveQuiz(ctx context.Context, quiz *domain.Quiz) error {
	model := toModelQuiz(quiz)
	if model == nil {
		return fmt.Errorf("cannot save nil quiz")
	}
	now := time.Now()
	model.CreatedAt = now
	model.UpdatedAt = now
	model.QuestionCount = len(quiz.Questions)

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	quizQuery := `INSERT INTO quizzes (
		id, job_id, user_id, document_id, title, difficulty, tags,
		chunk_index, question_count, created_at, updated_at
	) VALUES (
		:1, :2, :3, :4, :5, :6, :7, :8, :9, :10, :11
	)`

	_, err = tx.ExecContext(ctx, quizQuery,
		model.ID,
		model.JobID,
		model.UserID,
		model.DocumentID,
		model.Title,
		model.Difficulty,
		model.Tags,
		model.ChunkIndex,
		model.QuestionCount,
		model.CreatedAt,
		model.UpdatedAt,
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to save quiz: %w", err)
	}

	questionQuery := `INSERT INTO questions (
		id, quiz_id, question_text, question_type, answer_options,
		correct_answer, explanation, chunk_index, created_at
	) VALUES (
		:1, :2, :3, :4, :5, :6, :7, :8, :9
	)`

	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		if q.ID == "" {
			q.ID = util.NewULID()
		}
		q.QuizID = model.ID
		q.CreatedAt = now

		_, err = tx.ExecContext(ctx, questionQuery,
			q.ID,
			q.QuizID,
			q.Text,
			string(q.Type),
			util.StringToNullString(strings.Join(q.Options, stringDelimiter)),
			q.Answer,
			util.StringToNullString(q.Explanation),
			q.ChunkIndex,
			q.CreatedAt,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to save question for quiz %s: %w", model.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit quiz %s: %w", model.ID, err)
	}

	quiz.QuestionCount = model.QuestionCount
	quiz.CreatedAt = model.CreatedAt
	quiz.UpdatedAt = model.UpdatedAt
	return nil
}

// GetQuizByID implements domain.QuizRepository
func (a *QuizDatabaseAdapter) GetQuizByID(ctx context.Context, id string) (*domain.Quiz, error) {
	var model models.Quiz
	query := `SELECT
		id "id",
		job_id "job_id",
		user_id "user_id",
		document_id "document_id",
		title "title",
		difficulty "difficulty",
		tags "tags",
		chunk_index "chunk_index",
		question_count "question_count",
		created_at "created_at",
		updated_at "updated_at"
	FROM quizzes
	WHERE id = :1`

	err := a.db.GetContext(ctx, &model, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get quiz by ID %s: %w", id, err)
	}

	quiz := toDomainQuiz(&model)

	var questionModels []*models.Question
	questionQuery := `SELECT
		id "id",
		quiz_id "quiz_id",
		question_text "question_text",
		question_type "question_type",
		answer_options "answer_options",
		correct_answer "correct_answer",
		explanation "explanation",
		chunk_index "chunk_index",
		created_at "created_at"
	FROM questions
	WHERE quiz_id = :1
	ORDER BY chunk_index ASC, created_at ASC`

	if err := a.db.SelectContext(ctx, &questionModels, questionQuery, id); err != nil {
		return nil, fmt.Errorf("failed to get questions for quiz %s: %w", id, err)
	}

	quiz.Questions = make([]domain.Question, 0, len(questionModels))
	for _, qm := range questionModels {
		quiz.Questions = append(quiz.Questions, *toDomainQuestion(qm))
	}
	return quiz, nil
}

// Helper functions for model conversion
func toModelQuiz(d *domain.Quiz) *models.Quiz {
	if d == nil {
		return nil
	}
	var chunkIndex sql.NullInt64
	if d.ChunkIndex != nil {
		chunkIndex = sql.NullInt64{Int64: int64(*d.ChunkIndex), Valid: true}
	}
	return &models.Quiz{
		ID:            d.ID,
		JobID:         d.JobID,
		UserID:        d.UserID,
		DocumentID:    d.DocumentID,
		Title:         d.Title,
		Difficulty:    util.StringToNullString(d.Difficulty),
		Tags:          util.StringToNullString(strings.Join(d.Tags, stringDelimiter)),
		ChunkIndex:    chunkIndex,
		QuestionCount: d.QuestionCount,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func toDomainQuiz(m *models.Quiz) *domain.Quiz {
	if m == nil {
		return nil
	}
	quiz := &domain.Quiz{
		ID:            m.ID,
		JobID:         m.JobID,
		UserID:        m.UserID,
		DocumentID:    m.DocumentID,
		Title:         m.Title,
		Difficulty:    m.Difficulty.String,
		ChunkIndex:    util.NullInt64ToIntPtr(m.ChunkIndex),
		QuestionCount: m.QuestionCount,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.Tags.Valid && m.Tags.String != "" {
		quiz.Tags = strings.Split(m.Tags.String, stringDelimiter)
	}
	return quiz
}

func toDomainQuestion(m *models.Question) *domain.Question {
	if m == nil {
		return nil
	}
	q := &domain.Question{
		ID:          m.ID,
		QuizID:      m.QuizID,
		Text:        m.QuestionText,
		Type:        domain.QuestionType(m.QuestionType),
		Answer:      m.CorrectAnswer,
		Explanation: m.Explanation.String,
		ChunkIndex:  m.ChunkIndex,
		CreatedAt:   m.CreatedAt,
	}
	if m.AnswerOptions.Valid && m.AnswerOptions.String != "" {
		q.Options = strings.Split(m.AnswerOptions.String, stringDelimiter)
	}
	return q
}
