package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/role-approval-api/internal/models"
)

// DocumentRepository persists evidence metadata.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// CreateBatchWithTx inserts documents inside an existing transaction.
func (r *DocumentRepository) CreateBatchWithTx(ctx context.Context, tx *sqlx.Tx, docs []models.Document) error {
	const query = `INSERT INTO documents (id, task_id, filename, path, mime_type, size_bytes, created_at)
	VALUES (:id, :task_id, :filename, :path, :mime_type, :size_bytes, :created_at)`
	now := time.Now().UTC()
	for i := range docs {
		if docs[i].ID == "" {
			docs[i].ID = uuid.NewString()
		}
		if docs[i].CreatedAt.IsZero() {
			docs[i].CreatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, query, docs[i]); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
	}
	return nil
}

// ListByTaskIDs returns documents belonging to any of the tasks.
func (r *DocumentRepository) ListByTaskIDs(ctx context.Context, taskIDs []string) ([]models.Document, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, task_id, filename, path, mime_type, size_bytes, created_at
	FROM documents WHERE task_id IN (?) ORDER BY created_at ASC`, taskIDs)
	if err != nil {
		return nil, fmt.Errorf("build documents query: %w", err)
	}
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// GetWithOwner fetches a document together with the user owning its task.
func (r *DocumentRepository) GetWithOwner(ctx context.Context, id string) (*models.DocumentOwner, error) {
	const query = `SELECT d.id, d.task_id, d.filename, d.path, d.mime_type, d.size_bytes, d.created_at, t.user_id AS owner_id
	FROM documents d JOIN tasks t ON t.id = d.task_id WHERE d.id = $1`
	var doc models.DocumentOwner
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteByTask removes all document rows of a task and reports how many were deleted.
func (r *DocumentRepository) DeleteByTask(ctx context.Context, taskID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE task_id = $1`, taskID)
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check document delete rows: %w", err)
	}
	return rows, nil
}
