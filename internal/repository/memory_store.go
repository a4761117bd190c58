package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rpattn/martech/internal/domain"

	"github.com/google/uuid"
)

// MemoryStore is a process-local Store used by tests and by the "memory"
// database driver. Transactions work on a copy of the data that replaces the
// committed state only when the callback succeeds. Transactions serialize
// against every other caller; the callback must only use the Store it is
// handed.
type MemoryStore struct {
	mu        sync.Mutex
	data      *memoryData
	inTx      bool
	commitErr error
}

type memoryData struct {
	users   map[uuid.UUID]domain.User
	batches map[uuid.UUID]domain.UploadBatch
	records []domain.UsageRecord
	logs    []domain.IngestionLogEntry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memoryData{
		users:   make(map[uuid.UUID]domain.User),
		batches: make(map[uuid.UUID]domain.UploadBatch),
	}}
}

// FailCommits makes every following transaction commit fail with err until
// it is called again with nil.
func (s *MemoryStore) FailCommits(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }
func (s *MemoryStore) Batches() UploadBatchRepository { return memoryBatches{s} }
func (s *MemoryStore) Records() UsageRecordRepository { return memoryRecords{s} }
func (s *MemoryStore) Logs() IngestionLogRepository { return memoryLogs{s} }

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &MemoryStore{data: s.data.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	if s.commitErr != nil {
		return fmt.Errorf("failed to commit transaction: %w", s.commitErr)
	}
	s.data = tx.data
	return nil
}

// do runs fn, read or write, against the current data under the store lock.
// Inside a transaction the tx copy is private, so no lock is taken.
func (s *MemoryStore) do(fn func(d *memoryData) error) error {
	if s.inTx {
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (d *memoryData) clone() *memoryData {
	next := &memoryData{
		users:   make(map[uuid.UUID]domain.User, len(d.users)),
		batches: make(map[uuid.UUID]domain.UploadBatch, len(d.batches)),
		records: append([]domain.UsageRecord(nil), d.records...),
		logs:    append([]domain.IngestionLogEntry(nil), d.logs...),
	}
	for id, u := range d.users {
		next.users[id] = u
	}
	for id, b := range d.batches {
		next.batches[id] = b
	}
	return next
}

func (d *memoryData) recordCount(batchID uuid.UUID) int64 {
	var n int64
	for _, rec := range d.records {
		if rec.BatchID == batchID {
			n++
		}
	}
	return n
}

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Create(ctx context.Context, user domain.User) (domain.User, error) {
	err := r.s.do(func(d *memoryData) error {
		for _, existing := range d.users {
			if existing.Username == user.Username {
				return fmt.Errorf("failed to create user: %w", ErrDuplicate)
			}
		}
		d.users[user.ID] = user
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (r memoryUsers) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	var found domain.User
	err := r.s.do(func(d *memoryData) error {
		for _, u := range d.users {
			if u.Username == username {
				found = u
				return nil
			}
		}
		return fmt.Errorf("failed to get user by username: %w", ErrNotFound)
	})
	return found, err
}

type memoryBatches struct{ s *MemoryStore }

func (r memoryBatches) Create(ctx context.Context, batch domain.UploadBatch) (domain.UploadBatch, error) {
	err := r.s.do(func(d *memoryData) error {
		for _, existing := range d.batches {
			if existing.FileName == batch.FileName {
				return fmt.Errorf("failed to create upload batch: %w", ErrDuplicate)
			}
		}
		d.batches[batch.ID] = batch
		return nil
	})
	if err != nil {
		return domain.UploadBatch{}, err
	}
	return batch, nil
}

func (r memoryBatches) GetByID(ctx context.Context, id uuid.UUID) (domain.UploadBatch, error) {
	var found domain.UploadBatch
	err := r.s.do(func(d *memoryData) error {
		batch, ok := d.batches[id]
		if !ok {
			return fmt.Errorf("failed to get upload batch: %w", ErrNotFound)
		}
		batch.RecordCount = d.recordCount(id)
		found = batch
		return nil
	})
	return found, err
}

func (r memoryBatches) GetByFileName(ctx context.Context, fileName string) (domain.UploadBatch, error) {
	var found domain.UploadBatch
	err := r.s.do(func(d *memoryData) error {
		for _, batch := range d.batches {
			if batch.FileName == fileName {
				batch.RecordCount = d.recordCount(batch.ID)
				found = batch
				return nil
			}
		}
		return fmt.Errorf("failed to get upload batch by file name: %w", ErrNotFound)
	})
	return found, err
}

func (r memoryBatches) UpdateStatus(ctx context.Context, update domain.StatusUpdate) error {
	return r.s.do(func(d *memoryData) error {
		batch, ok := d.batches[update.BatchID]
		if !ok || batch.Status != domain.BatchStatusProcessing {
			return fmt.Errorf("failed to update upload batch status: %w", ErrNotFound)
		}
		d.batches[update.BatchID] = batch.Apply(update)
		return nil
	})
}

func (r memoryBatches) List(ctx context.Context, limit int, offset int) ([]domain.UploadBatch, error) {
	limit, offset = normalizePage(limit, offset)
	batches := []domain.UploadBatch{}
	err := r.s.do(func(d *memoryData) error {
		all := make([]domain.UploadBatch, 0, len(d.batches))
		for _, batch := range d.batches {
			batch.RecordCount = d.recordCount(batch.ID)
			all = append(all, batch)
		}
		sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
		batches = append(batches, page(all, limit, offset)...)
		return nil
	})
	return batches, err
}

type memoryRecords struct{ s *MemoryStore }

func (r memoryRecords) CreateMany(ctx context.Context, records []domain.UsageRecord) (int64, error) {
	err := r.s.do(func(d *memoryData) error {
		for _, rec := range records {
			if _, ok := d.batches[rec.BatchID]; !ok {
				return fmt.Errorf("failed to insert usage records: batch %s does not exist", rec.BatchID)
			}
			if rec.Impressions < 0 {
				return fmt.Errorf("failed to insert usage records: negative impressions %v", rec.Impressions)
			}
		}
		for _, rec := range records {
			if rec.ID == uuid.Nil {
				rec.ID = uuid.New()
			}
			d.records = append(d.records, rec)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(records)), nil
}

func (r memoryRecords) List(ctx context.Context, filter domain.RecordFilter, limit int, offset int) ([]domain.UsageRecord, int64, error) {
	limit, offset = normalizePage(limit, offset)
	records := []domain.UsageRecord{}
	var total int64
	err := r.s.do(func(d *memoryData) error {
		matched := make([]domain.UsageRecord, 0, len(d.records))
		for _, rec := range d.records {
			if filter.BatchID != nil && rec.BatchID != *filter.BatchID {
				continue
			}
			matched = append(matched, rec)
		}
		total = int64(len(matched))
		records = append(records, page(matched, limit, offset)...)
		return nil
	})
	return records, total, err
}

func (r memoryRecords) ImpressionsByYear(ctx context.Context) ([]domain.YearlyImpressions, error) {
	totals := []domain.YearlyImpressions{}
	err := r.s.do(func(d *memoryData) error {
		byYear := make(map[int]float64)
		for _, rec := range d.records {
			byYear[rec.StartDate.Year()] += rec.Impressions
		}
		for year, total := range byYear {
			totals = append(totals, domain.YearlyImpressions{Year: year, TotalImpressions: total})
		}
		sort.Slice(totals, func(i, j int) bool { return totals[i].Year < totals[j].Year })
		return nil
	})
	return totals, err
}

type memoryLogs struct{ s *MemoryStore }

func (r memoryLogs) Record(ctx context.Context, entry domain.IngestionLogEntry) error {
	return r.s.do(func(d *memoryData) error {
		if _, ok := d.batches[entry.BatchID]; !ok {
			return fmt.Errorf("failed to record ingestion log: batch %s does not exist", entry.BatchID)
		}
		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
		d.logs = append(d.logs, entry)
		return nil
	})
}

func (r memoryLogs) ListByBatch(ctx context.Context, batchID uuid.UUID, limit int, offset int) ([]domain.IngestionLogEntry, error) {
	limit, offset = normalizePage(limit, offset)
	entries := []domain.IngestionLogEntry{}
	err := r.s.do(func(d *memoryData) error {
		matched := []domain.IngestionLogEntry{}
		for _, entry := range d.logs {
			if entry.BatchID == batchID {
				matched = append(matched, entry)
			}
		}
		entries = append(entries, page(matched, limit, offset)...)
		return nil
	})
	return entries, err
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

var _ Store = (*MemoryStore)(nil)
