package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/martech/internal/db"
	"github.com/rpattn/martech/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type ingestionLogRepository struct {
	q db.DBTX
}

// NewIngestionLogRepository wires a repository backed by pgx.
func NewIngestionLogRepository(q db.DBTX) IngestionLogRepository {
	return &ingestionLogRepository{q: q}
}

func (r *ingestionLogRepository) Record(ctx context.Context, entry domain.IngestionLogEntry) error {
	if r.q == nil {
		return fmt.Errorf("ingestion log repository not initialized")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	var rowNumber any
	if entry.RowNumber != nil {
		rowNumber = *entry.RowNumber
	}

	_, err := r.q.Exec(
		ctx,
		`INSERT INTO ingestion_logs (id, batch_id, file_name, row_number, error_message)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ID,
		entry.BatchID,
		entry.FileName,
		rowNumber,
		entry.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to record ingestion log: %w", translate(err))
	}

	return nil
}

func (r *ingestionLogRepository) ListByBatch(ctx context.Context, batchID uuid.UUID, limit int, offset int) ([]domain.IngestionLogEntry, error) {
	if r.q == nil {
		return nil, fmt.Errorf("ingestion log repository not initialized")
	}

	limit, offset = normalizePage(limit, offset)

	rows, err := r.q.Query(
		ctx,
		`SELECT id, batch_id, file_name, row_number, error_message, created_at
		 FROM ingestion_logs
		 WHERE batch_id = $1
		 ORDER BY row_number NULLS FIRST, created_at
		 LIMIT $2 OFFSET $3`,
		batchID,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestion logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.IngestionLogEntry{}
	for rows.Next() {
		var (
			entry     domain.IngestionLogEntry
			rowNumber pgtype.Int4
			createdAt pgtype.Timestamptz
		)
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.BatchID,
			&entry.FileName,
			&rowNumber,
			&entry.Message,
			&createdAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan ingestion log: %w", scanErr)
		}

		if rowNumber.Valid {
			value := int(rowNumber.Int32)
			entry.RowNumber = &value
		}
		if createdAt.Valid {
			entry.CreatedAt = createdAt.Time
		}

		logs = append(logs, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate ingestion logs: %w", rowsErr)
	}

	return logs, nil
}
