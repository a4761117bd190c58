package domain

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus tracks the lifecycle of one uploaded file.
type BatchStatus string

const (
	BatchStatusProcessing BatchStatus = "Processing"
	BatchStatusCompleted  BatchStatus = "Completed"
	BatchStatusFailed     BatchStatus = "Failed"
)

// IsTerminal reports whether the status can no longer change.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusFailed
}

// Valid reports whether s is a known status.
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchStatusProcessing, BatchStatusCompleted, BatchStatusFailed:
		return true
	}
	return false
}

// UploadBatch is one uploaded file and its processing state. FileName is
// unique across batches.
type UploadBatch struct {
	ID           uuid.UUID   `json:"id"`
	FileName     string      `json:"file_name"`
	UploadedBy   uuid.UUID   `json:"uploaded_by"`
	Status       BatchStatus `json:"status"`
	ErrorMessage *string     `json:"error,omitempty"`
	SizeBytes    int64       `json:"size_bytes"`
	Checksum     string      `json:"checksum,omitempty"`
	RecordCount  int64       `json:"record_count"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

// NewUploadBatch creates a batch in the Processing state.
func NewUploadBatch(fileName string, uploadedBy uuid.UUID) UploadBatch {
	now := time.Now().UTC()
	return UploadBatch{
		ID:         uuid.New(),
		FileName:   fileName,
		UploadedBy: uploadedBy,
		Status:     BatchStatusProcessing,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// WithStatus returns a copy of the batch moved to status. A non-empty message
// is attached as the batch error.
func (b UploadBatch) WithStatus(status BatchStatus, message string, at time.Time) UploadBatch {
	next := b
	next.Status = status
	next.UpdatedAt = at
	next.ErrorMessage = nil
	if message != "" {
		msg := message
		next.ErrorMessage = &msg
	}
	if status.IsTerminal() {
		completed := at
		next.CompletedAt = &completed
	}
	return next
}

// StatusUpdate describes a lifecycle transition persisted by the repository.
// SizeBytes and Checksum are only applied when set.
type StatusUpdate struct {
	BatchID      uuid.UUID
	Status       BatchStatus
	ErrorMessage string
	SizeBytes    int64
	Checksum     string
	At           time.Time
}

// Apply returns a copy of the batch with update applied.
func (b UploadBatch) Apply(update StatusUpdate) UploadBatch {
	next := b.WithStatus(update.Status, update.ErrorMessage, update.At)
	if update.SizeBytes > 0 {
		next.SizeBytes = update.SizeBytes
	}
	if update.Checksum != "" {
		next.Checksum = update.Checksum
	}
	return next
}
