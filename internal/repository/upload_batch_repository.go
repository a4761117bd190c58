package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/martech/internal/db"
	"github.com/rpattn/martech/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type uploadBatchRepository struct {
	q db.DBTX
}

// NewUploadBatchRepository creates a new upload batch repository
func NewUploadBatchRepository(q db.DBTX) UploadBatchRepository {
	return &uploadBatchRepository{q: q}
}

const batchColumns = `b.id, b.file_name, b.uploaded_by, b.status, b.error_message, b.size_bytes,
	b.checksum, b.created_at, b.updated_at, b.completed_at`

// Create inserts a batch. The unique index on file_name turns a concurrent
// duplicate upload into ErrDuplicate.
func (r *uploadBatchRepository) Create(ctx context.Context, batch domain.UploadBatch) (domain.UploadBatch, error) {
	_, err := r.q.Exec(ctx,
		`INSERT INTO upload_batches (id, file_name, uploaded_by, status, error_message, size_bytes, checksum, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		batch.ID,
		batch.FileName,
		batch.UploadedBy,
		string(batch.Status),
		batch.ErrorMessage,
		batch.SizeBytes,
		batch.Checksum,
		batch.CreatedAt,
		batch.UpdatedAt,
	)
	if err != nil {
		return domain.UploadBatch{}, fmt.Errorf("failed to create upload batch: %w", translate(err))
	}
	return batch, nil
}

func (r *uploadBatchRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.UploadBatch, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+batchColumns+`, (SELECT COUNT(*) FROM usage_records u WHERE u.batch_id = b.id)
		 FROM upload_batches b WHERE b.id = $1`, id)
	batch, err := scanBatch(row)
	if err != nil {
		return domain.UploadBatch{}, fmt.Errorf("failed to get upload batch: %w", translate(err))
	}
	return batch, nil
}

func (r *uploadBatchRepository) GetByFileName(ctx context.Context, fileName string) (domain.UploadBatch, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+batchColumns+`, (SELECT COUNT(*) FROM usage_records u WHERE u.batch_id = b.id)
		 FROM upload_batches b WHERE b.file_name = $1`, fileName)
	batch, err := scanBatch(row)
	if err != nil {
		return domain.UploadBatch{}, fmt.Errorf("failed to get upload batch by file name: %w", translate(err))
	}
	return batch, nil
}

// UpdateStatus moves a batch out of Processing. Terminal batches are left
// untouched and reported as ErrNotFound.
func (r *uploadBatchRepository) UpdateStatus(ctx context.Context, update domain.StatusUpdate) error {
	var message *string
	if update.ErrorMessage != "" {
		message = &update.ErrorMessage
	}
	var completedAt *pgtype.Timestamptz
	if update.Status.IsTerminal() {
		completedAt = &pgtype.Timestamptz{Time: update.At, Valid: true}
	}

	tag, err := r.q.Exec(ctx,
		`UPDATE upload_batches
		 SET status = $2, error_message = $3, updated_at = $4, completed_at = $5,
		     size_bytes = CASE WHEN $6::bigint > 0 THEN $6::bigint ELSE size_bytes END,
		     checksum = COALESCE(NULLIF($7::text, ''), checksum)
		 WHERE id = $1 AND status = 'Processing'`,
		update.BatchID, string(update.Status), message, update.At, completedAt,
		update.SizeBytes, update.Checksum,
	)
	if err != nil {
		return fmt.Errorf("failed to update upload batch status: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update upload batch status: %w", ErrNotFound)
	}
	return nil
}

// List returns batches newest first together with their record counts.
func (r *uploadBatchRepository) List(ctx context.Context, limit int, offset int) ([]domain.UploadBatch, error) {
	limit, offset = normalizePage(limit, offset)
	rows, err := r.q.Query(ctx,
		`SELECT `+batchColumns+`, COUNT(u.id)
		 FROM upload_batches b
		 LEFT JOIN usage_records u ON u.batch_id = b.id
		 GROUP BY b.id
		 ORDER BY b.created_at DESC
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list upload batches: %w", err)
	}
	defer rows.Close()

	batches := []domain.UploadBatch{}
	for rows.Next() {
		batch, scanErr := scanBatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan upload batch: %w", scanErr)
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate upload batches: %w", err)
	}
	return batches, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (domain.UploadBatch, error) {
	var (
		batch        domain.UploadBatch
		status       string
		errorMessage pgtype.Text
		completedAt  pgtype.Timestamptz
	)
	if err := row.Scan(
		&batch.ID,
		&batch.FileName,
		&batch.UploadedBy,
		&status,
		&errorMessage,
		&batch.SizeBytes,
		&batch.Checksum,
		&batch.CreatedAt,
		&batch.UpdatedAt,
		&completedAt,
		&batch.RecordCount,
	); err != nil {
		return domain.UploadBatch{}, err
	}
	batch.Status = domain.BatchStatus(status)
	if errorMessage.Valid {
		msg := errorMessage.String
		batch.ErrorMessage = &msg
	}
	if completedAt.Valid {
		at := completedAt.Time
		batch.CompletedAt = &at
	}
	return batch, nil
}
