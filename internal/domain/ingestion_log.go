package domain

import (
	"time"

	"github.com/google/uuid"
)

// IngestionLogEntry captures row level issues that occur during ingestion.
type IngestionLogEntry struct {
	ID        uuid.UUID `json:"id"`
	BatchID   uuid.UUID `json:"batch_id"`
	FileName  string    `json:"file_name"`
	RowNumber *int      `json:"row_number,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// NewIngestionLogEntry builds a log entry for a spreadsheet row. A rowNumber
// of zero means the entry applies to the whole file.
func NewIngestionLogEntry(batchID uuid.UUID, fileName string, rowNumber int, message string) IngestionLogEntry {
	entry := IngestionLogEntry{
		ID:        uuid.New(),
		BatchID:   batchID,
		FileName:  fileName,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if rowNumber > 0 {
		n := rowNumber
		entry.RowNumber = &n
	}
	return entry
}
