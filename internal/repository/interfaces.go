package repository

import (
	"context"

	"github.com/rpattn/martech/internal/domain"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user account operations
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
}

// UploadBatchRepository defines the interface for upload batch lifecycle operations
type UploadBatchRepository interface {
	Create(ctx context.Context, batch domain.UploadBatch) (domain.UploadBatch, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.UploadBatch, error)
	GetByFileName(ctx context.Context, fileName string) (domain.UploadBatch, error)
	UpdateStatus(ctx context.Context, update domain.StatusUpdate) error
	List(ctx context.Context, limit int, offset int) ([]domain.UploadBatch, error)
}

// UsageRecordRepository defines the interface for usage record operations
type UsageRecordRepository interface {
	CreateMany(ctx context.Context, records []domain.UsageRecord) (int64, error)
	List(ctx context.Context, filter domain.RecordFilter, limit int, offset int) ([]domain.UsageRecord, int64, error)

	// Reporting
	ImpressionsByYear(ctx context.Context) ([]domain.YearlyImpressions, error)
}

// IngestionLogRepository stores ingestion row issues for observability.
type IngestionLogRepository interface {
	Record(ctx context.Context, entry domain.IngestionLogEntry) error
	ListByBatch(ctx context.Context, batchID uuid.UUID, limit int, offset int) ([]domain.IngestionLogEntry, error)
}

// Store groups the repositories behind a single unit of work. Repositories
// obtained from the Store passed to WithTx's callback see and write only
// that transaction; nothing is visible to other callers until the callback
// returns nil and the commit succeeds.
type Store interface {
	Users() UserRepository
	Batches() UploadBatchRepository
	Records() UsageRecordRepository
	Logs() IngestionLogRepository

	WithTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}
