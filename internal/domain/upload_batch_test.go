package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewUploadBatchStartsProcessing(t *testing.T) {
	batch := NewUploadBatch("report.xlsx", uuid.New())
	if batch.Status != BatchStatusProcessing {
		t.Fatalf("expected Processing, got %s", batch.Status)
	}
	if batch.CompletedAt != nil || batch.ErrorMessage != nil {
		t.Fatalf("new batch should not carry completion data: %+v", batch)
	}
}

func TestWithStatusSetsTerminalFields(t *testing.T) {
	batch := NewUploadBatch("report.xlsx", uuid.New())
	at := time.Date(2024, 4, 3, 10, 0, 0, 0, time.UTC)

	failed := batch.WithStatus(BatchStatusFailed, "Missing or empty columns: Impr", at)
	if failed.Status != BatchStatusFailed {
		t.Fatalf("expected Failed, got %s", failed.Status)
	}
	if failed.ErrorMessage == nil || *failed.ErrorMessage != "Missing or empty columns: Impr" {
		t.Fatalf("unexpected error message: %v", failed.ErrorMessage)
	}
	if failed.CompletedAt == nil || !failed.CompletedAt.Equal(at) {
		t.Fatalf("expected completion time %v, got %v", at, failed.CompletedAt)
	}
	if batch.Status != BatchStatusProcessing {
		t.Fatalf("original batch mutated: %s", batch.Status)
	}

	completed := failed.WithStatus(BatchStatusCompleted, "", at)
	if completed.ErrorMessage != nil {
		t.Fatalf("expected error message cleared, got %q", *completed.ErrorMessage)
	}
}

func TestBatchStatusValid(t *testing.T) {
	for _, status := range []BatchStatus{BatchStatusProcessing, BatchStatusCompleted, BatchStatusFailed} {
		if !status.Valid() {
			t.Fatalf("expected %s to be valid", status)
		}
	}
	if BatchStatus("Queued").Valid() {
		t.Fatalf("unexpected status accepted")
	}
	if BatchStatusProcessing.IsTerminal() {
		t.Fatalf("Processing must not be terminal")
	}
}

func TestApplyKeepsUnsetStagingFields(t *testing.T) {
	batch := NewUploadBatch("report.xlsx", uuid.New())
	batch.SizeBytes = 42
	batch.Checksum = "abc"
	at := time.Now().UTC()

	next := batch.Apply(StatusUpdate{BatchID: batch.ID, Status: BatchStatusCompleted, At: at})
	if next.SizeBytes != 42 || next.Checksum != "abc" {
		t.Fatalf("expected staging fields kept, got %d %q", next.SizeBytes, next.Checksum)
	}

	next = batch.Apply(StatusUpdate{BatchID: batch.ID, Status: BatchStatusCompleted, SizeBytes: 7, Checksum: "def", At: at})
	if next.SizeBytes != 7 || next.Checksum != "def" || next.Status != BatchStatusCompleted {
		t.Fatalf("expected update applied, got %+v", next)
	}
}
