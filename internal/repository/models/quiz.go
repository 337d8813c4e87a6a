package models

import (
	"database/sql"
	"time"
)

// Quiz is the database model for the quizzes table. ChunkIndex is NULL for
// the consolidated quiz and set for per-chunk audit quizzes.
type Quiz struct {
	ID            string         `db:"id"`
	JobID         string         `db:"job_id"`
	UserID        string         `db:"user_id"`
	DocumentID    string         `db:"document_id"`
	Title         string         `db:"title"`
	Difficulty    sql.NullString `db:"difficulty"`
	Tags          sql.NullString `db:"tags"` // delimiter-joined
	ChunkIndex    sql.NullInt64  `db:"chunk_index"`
	QuestionCount int            `db:"question_count"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

// Question is the database model for the questions table.
type Question struct {
	ID            string         `db:"id"`
	QuizID        string         `db:"quiz_id"`
	QuestionText  string         `db:"question_text"`
	QuestionType  string         `db:"question_type"`
	AnswerOptions sql.NullString `db:"answer_options"` // delimiter-joined
	CorrectAnswer string         `db:"correct_answer"`
	Explanation   sql.NullString `db:"explanation"`
	ChunkIndex    int            `db:"chunk_index"`
	CreatedAt     time.Time      `db:"created_at"`
}

// Document is the database model for the documents table.
type Document struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Title     string    `db:"title"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
