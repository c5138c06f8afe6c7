package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cms-lvtn-2025/thesis-api/internal/models"
)

// AttachmentRepository persists uploaded file metadata.
type AttachmentRepository struct {
	db *sqlx.DB
}

// NewAttachmentRepository creates an attachment repository.
func NewAttachmentRepository(db *sqlx.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// Create stores attachment metadata.
func (r *AttachmentRepository) Create(ctx context.Context, attachment *models.Attachment, actor string) error {
	if attachment.ID == "" {
		attachment.ID = uuid.NewString()
	}
	attachment.Stamp(actor, time.Now().UTC())
	const query = `INSERT INTO attachments (id, owner_kind, owner_id, file_name, mime_type, size_bytes, storage_path, created_at, updated_at, created_by, updated_by)
VALUES (:id, :owner_kind, :owner_id, :file_name, :mime_type, :size_bytes, :storage_path, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.db.NamedExecContext(ctx, query, attachment); err != nil {
		return fmt.Errorf("create attachment: %w", err)
	}
	return nil
}

// FindByID loads attachment metadata.
func (r *AttachmentRepository) FindByID(ctx context.Context, id string) (*models.Attachment, error) {
	const query = `SELECT id, owner_kind, owner_id, file_name, mime_type, size_bytes, storage_path, created_at, updated_at, created_by, updated_by FROM attachments WHERE id = $1`
	var attachment models.Attachment
	if err := r.db.GetContext(ctx, &attachment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find attachment: %w", err)
	}
	return &attachment, nil
}
