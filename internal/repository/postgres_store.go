package repository

import (
	"context"

	"github.com/rpattn/martech/internal/db"

	"github.com/jackc/pgx/v5"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	conn *db.Connection
	q    db.DBTX
}

// NewPostgresStore creates a store that runs statements on the pool.
func NewPostgresStore(conn *db.Connection) *PostgresStore {
	return &PostgresStore{conn: conn, q: conn.Pool}
}

func (s *PostgresStore) Users() UserRepository { return NewUserRepository(s.q) }
func (s *PostgresStore) Batches() UploadBatchRepository { return NewUploadBatchRepository(s.q) }
func (s *PostgresStore) Records() UsageRecordRepository { return NewUsageRecordRepository(s.q) }
func (s *PostgresStore) Logs() IngestionLogRepository { return NewIngestionLogRepository(s.q) }
func (s *PostgresStore) Ping(ctx context.Context) error { return s.conn.Ping(ctx) }

// WithTx runs fn inside one transaction. Nested calls join the outer one.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if _, nested := s.q.(pgx.Tx); nested {
		return fn(s)
	}
	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(&PostgresStore{conn: s.conn, q: tx})
	})
}

var _ Store = (*PostgresStore)(nil)
