package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rpattn/martech/internal/domain"
	"github.com/rpattn/martech/internal/repository"
	"github.com/rpattn/martech/internal/temp"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	successMessage = "File uploaded and processed successfully"
)

// Service ingests usage spreadsheets into upload batches and usage records.
type Service struct {
	store   repository.Store
	staging *temp.Store
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewService creates a new ingestion service.
func NewService(store repository.Store, staging *temp.Store, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store:   store,
		staging: staging,
		log:     log.WithField("component", "ingestion"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Request describes one uploaded file.
type Request struct {
	FileName   string
	UploadedBy uuid.UUID
	Data       io.Reader
}

// Outcome is the normalized result of Ingest. Status is "success" or
// "error"; Kind is empty on success.
type Outcome struct {
	Status    string     `json:"status"`
	Kind      Kind       `json:"kind,omitempty"`
	Message   string     `json:"message"`
	BatchID   *uuid.UUID `json:"batch_id,omitempty"`
	TotalRows int        `json:"total_rows"`
	Inserted  int        `json:"inserted"`
	Skipped   int        `json:"skipped"`
}

// OK reports whether the upload was processed.
func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}

// HTTPStatus maps the outcome onto a response code.
func (o Outcome) HTTPStatus() int {
	switch {
	case o.OK():
		return http.StatusOK
	case o.Kind == KindConflict:
		return http.StatusConflict
	case o.Kind == KindPersistence:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

// CanonicalFileName strips any directory prefix, using either separator,
// from an uploaded file name.
func CanonicalFileName(name string) string {
	name = strings.TrimSpace(name)
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.TrimSpace(name)
}

// Ingest runs one upload through staging, parsing, validation and record
// building. It never returns an error: every failure is folded into the
// Outcome, and once a batch exists it always leaves Processing.
func (s *Service) Ingest(ctx context.Context, req Request) (outcome Outcome) {
	fileName := CanonicalFileName(req.FileName)
	if fileName == "" {
		return Outcome{Status: StatusError, Kind: KindInvalid, Message: "file name is required"}
	}
	if req.Data == nil {
		return Outcome{Status: StatusError, Kind: KindInvalid, Message: "file content is required"}
	}
	log := s.log.WithFields(logrus.Fields{"file_name": fileName, "uploaded_by": req.UploadedBy})

	batch, failure := s.openBatch(ctx, log, fileName, req.UploadedBy)
	if failure != nil {
		return *failure
	}
	log = log.WithField("batch_id", batch.ID)
	log.Info("upload batch created")

	run := &ingestRun{batch: batch, log: log}
	defer func() {
		if p := recover(); p != nil {
			log.WithField("panic", p).Error("ingestion panicked")
			outcome = s.fail(ctx, run, KindUnexpected, fmt.Errorf("unexpected error: %v", p))
		}
	}()
	defer func() {
		if err := s.staging.Remove(batch.ID); err != nil {
			log.WithError(err).Error("failed to remove staged upload")
		}
	}()

	staged, err := s.staging.Stage(batch.ID, filepath.Ext(fileName), req.Data)
	if err != nil {
		return s.fail(ctx, run, KindUnexpected, fmt.Errorf("failed to stage upload: %w", err))
	}
	run.staged = staged

	table, err := s.parseStaged(staged, fileName)
	if err != nil {
		return s.fail(ctx, run, KindParse, err)
	}
	run.totalRows = len(table.Rows)

	if err := ValidateColumns(table); err != nil {
		return s.fail(ctx, run, KindSchema, err)
	}

	now := s.now()
	var (
		records []domain.UsageRecord
		entries []domain.IngestionLogEntry
	)
	for _, result := range BuildRecords(table, batch.ID, now) {
		rowLog := log.WithField("row", result.Row)
		for _, warning := range result.Warnings {
			rowLog.WithField("reason", warning).Warn("ambiguous date")
		}
		if result.Skipped() {
			rowLog.WithField("reason", result.Reason).Warn("row skipped")
			entries = append(entries, domain.NewIngestionLogEntry(batch.ID, fileName, result.Row, result.Reason))
			continue
		}
		records = append(records, *result.Record)
	}
	run.skipped = len(entries)

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if len(records) > 0 {
			if _, err := tx.Records().CreateMany(ctx, records); err != nil {
				return err
			}
		}
		for _, entry := range entries {
			if err := tx.Logs().Record(ctx, entry); err != nil {
				return err
			}
		}
		return tx.Batches().UpdateStatus(ctx, domain.StatusUpdate{
			BatchID:   batch.ID,
			Status:    domain.BatchStatusCompleted,
			SizeBytes: staged.Size,
			Checksum:  staged.Checksum,
			At:        s.now(),
		})
	})
	if err != nil {
		log.WithError(err).Error("failed to persist usage records")
		return s.fail(ctx, run, KindPersistence, &PersistenceError{Op: "saving usage records", Err: err})
	}

	log.WithFields(logrus.Fields{
		"rows":     run.totalRows,
		"inserted": len(records),
		"skipped":  run.skipped,
	}).Info("upload batch completed")

	return Outcome{
		Status:    StatusSuccess,
		Message:   successMessage,
		BatchID:   &batch.ID,
		TotalRows: run.totalRows,
		Inserted:  len(records),
		Skipped:   run.skipped,
	}
}

// ingestRun carries what is known about an in-flight upload so failures can
// be reported with it.
type ingestRun struct {
	batch     domain.UploadBatch
	staged    temp.Staged
	log       logrus.FieldLogger
	totalRows int
	skipped   int
}

// openBatch rejects known file names and creates the Processing batch. The
// unique index on file name turns a lost race into the same conflict.
func (s *Service) openBatch(ctx context.Context, log logrus.FieldLogger, fileName string, uploadedBy uuid.UUID) (domain.UploadBatch, *Outcome) {
	conflict := func() *Outcome {
		err := &ConflictError{FileName: fileName}
		log.Warn(err.Error())
		return &Outcome{Status: StatusError, Kind: KindConflict, Message: err.Error()}
	}
	storeFailure := func(op string, err error) *Outcome {
		perr := &PersistenceError{Op: op, Err: err}
		log.WithError(err).Error("failed to open upload batch")
		return &Outcome{Status: StatusError, Kind: KindPersistence, Message: perr.Error()}
	}

	if _, err := s.store.Batches().GetByFileName(ctx, fileName); err == nil {
		return domain.UploadBatch{}, conflict()
	} else if !errors.Is(err, repository.ErrNotFound) {
		return domain.UploadBatch{}, storeFailure("checking file name", err)
	}

	batch := domain.NewUploadBatch(fileName, uploadedBy)
	batch.CreatedAt = s.now()
	batch.UpdatedAt = batch.CreatedAt
	created, err := s.store.Batches().Create(ctx, batch)
	if errors.Is(err, repository.ErrDuplicate) {
		return domain.UploadBatch{}, conflict()
	}
	if err != nil {
		return domain.UploadBatch{}, storeFailure("creating upload batch", err)
	}
	return created, nil
}

func (s *Service) parseStaged(staged temp.Staged, fileName string) (Table, error) {
	file, err := staged.Open()
	if err != nil {
		return Table{}, fmt.Errorf("failed to open staged upload: %w", err)
	}
	defer file.Close()
	return Parse(fileName, file)
}

// fail marks the batch Failed as a standalone write, outside any transaction
// used for records, and converts cause into an error outcome.
func (s *Service) fail(ctx context.Context, run *ingestRun, kind Kind, cause error) Outcome {
	log := run.log.WithField("kind", kind)
	if kind == KindSchema || kind == KindParse {
		log.WithError(cause).Warn("upload rejected")
	} else {
		log.WithError(cause).Error("upload failed")
	}

	update := domain.StatusUpdate{
		BatchID:      run.batch.ID,
		Status:       domain.BatchStatusFailed,
		ErrorMessage: cause.Error(),
		SizeBytes:    run.staged.Size,
		Checksum:     run.staged.Checksum,
		At:           s.now(),
	}
	if err := s.store.Batches().UpdateStatus(context.WithoutCancel(ctx), update); err != nil {
		log.WithError(err).Error("failed to mark upload batch as failed")
		kind = KindPersistence
	}

	batchID := run.batch.ID
	return Outcome{
		Status:    StatusError,
		Kind:      kind,
		Message:   "Error occurred while processing file: " + cause.Error(),
		BatchID:   &batchID,
		TotalRows: run.totalRows,
		Skipped:   run.skipped,
	}
}
