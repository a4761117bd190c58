package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/martech/internal/db"
	"github.com/rpattn/martech/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type usageRecordRepository struct {
	q db.DBTX
}

// NewUsageRecordRepository creates a new usage record repository
func NewUsageRecordRepository(q db.DBTX) UsageRecordRepository {
	return &usageRecordRepository{q: q}
}

var usageRecordColumns = []string{
	"id", "batch_id", "advertiser", "brand", "start_date", "end_date",
	"format", "platform", "impressions", "created_at",
}

// CreateMany bulk loads records with COPY. Run it inside WithTx so a failure
// leaves no partial rows behind.
func (r *usageRecordRepository) CreateMany(ctx context.Context, records []domain.UsageRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	source := pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
		rec := records[i]
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		return []any{
			rec.ID,
			rec.BatchID,
			rec.Advertiser,
			rec.Brand,
			rec.StartDate,
			rec.EndDate,
			rec.Format,
			rec.Platform,
			rec.Impressions,
			rec.CreatedAt,
		}, nil
	})

	copied, err := r.q.CopyFrom(ctx, pgx.Identifier{"usage_records"}, usageRecordColumns, source)
	if err != nil {
		return 0, fmt.Errorf("failed to insert usage records: %w", translate(err))
	}
	return copied, nil
}

func (r *usageRecordRepository) List(ctx context.Context, filter domain.RecordFilter, limit int, offset int) ([]domain.UsageRecord, int64, error) {
	limit, offset = normalizePage(limit, offset)

	var batchID any
	if filter.BatchID != nil {
		batchID = *filter.BatchID
	}

	var total int64
	if err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM usage_records WHERE ($1::uuid IS NULL OR batch_id = $1)`,
		batchID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count usage records: %w", err)
	}

	rows, err := r.q.Query(ctx,
		`SELECT id, batch_id, advertiser, brand, start_date, end_date, format, platform, impressions, created_at
		 FROM usage_records
		 WHERE ($1::uuid IS NULL OR batch_id = $1)
		 ORDER BY created_at, id
		 LIMIT $2 OFFSET $3`,
		batchID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list usage records: %w", err)
	}
	defer rows.Close()

	records := []domain.UsageRecord{}
	for rows.Next() {
		var rec domain.UsageRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.BatchID,
			&rec.Advertiser,
			&rec.Brand,
			&rec.StartDate,
			&rec.EndDate,
			&rec.Format,
			&rec.Platform,
			&rec.Impressions,
			&rec.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate usage records: %w", err)
	}
	return records, total, nil
}

// ImpressionsByYear sums impressions per calendar year of the start date.
func (r *usageRecordRepository) ImpressionsByYear(ctx context.Context) ([]domain.YearlyImpressions, error) {
	rows, err := r.q.Query(ctx,
		`SELECT EXTRACT(YEAR FROM start_date)::int AS year, SUM(impressions)::float8 AS total_impressions
		 FROM usage_records
		 GROUP BY 1
		 ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate impressions: %w", err)
	}
	defer rows.Close()

	totals := []domain.YearlyImpressions{}
	for rows.Next() {
		var row domain.YearlyImpressions
		if err := rows.Scan(&row.Year, &row.TotalImpressions); err != nil {
			return nil, fmt.Errorf("failed to scan impressions row: %w", err)
		}
		totals = append(totals, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate impressions rows: %w", err)
	}
	return totals, nil
}
