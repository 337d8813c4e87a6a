package repository

import (
	"context"
	"database/sql"
	"fmt"

	"quiz-forge/internal/domain"
	"quiz-forge/internal/repository/models"

	"github.com/jmoiron/sqlx"
)

// DocumentDatabaseAdapter implements domain.DocumentRepository using sqlx.DB
type DocumentDatabaseAdapter struct {
	db *sqlx.DB
}

// NewDocumentDatabaseAdapter creates a new instance of DocumentDatabaseAdapter
func NewDocumentDatabaseAdapter(db *sqlx.DB) domain.DocumentRepository {
	return &DocumentDatabaseAdapter{db: db}
}

// GetDocumentByID implements domain.DocumentRepository
func (a *DocumentDatabaseAdapter) GetDocumentByID(ctx context.Context, id string) (*domain.Document, error) {
	var model models.Document
	query := `SELECT
		id "id",
		user_id "user_id",
		title "title",
		content "content",
		created_at "created_at",
		updated_at "updated_at"
	FROM documents
	WHERE id = :1`

	err := a.db.GetContext(ctx, &model, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document by ID %s: %w", id, err)
	}

	return &domain.Document{
		ID:        model.ID,
		UserID:    model.UserID,
		Title:     model.Title,
		Content:   model.Content,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, nil
}
