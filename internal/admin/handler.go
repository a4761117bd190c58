// Package admin serves the administrator views over uploads and usage data.
package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpattn/martech/internal/domain"
	"github.com/rpattn/martech/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Handler exposes read-only admin listings. Routes must be mounted behind
// auth.RequireUser and auth.RequireAdmin.
type Handler struct {
	store repository.Store
	log   logrus.FieldLogger
}

func NewHandler(store repository.Store, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{store: store, log: log.WithField("component", "admin")}
}

// Routes returns the admin router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/log-files", h.ListBatches)
	r.Get("/full-data", h.ListRecords)
	r.Get("/batches/{batchID}/logs", h.ListBatchLogs)
	return r
}

type batchList struct {
	Batches []domain.UploadBatch `json:"batches"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

type recordList struct {
	Records []domain.UsageRecord `json:"records"`
	Total   int64                `json:"total"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

type logList struct {
	Batch   domain.UploadBatch         `json:"batch"`
	Entries []domain.IngestionLogEntry `json:"entries"`
}

// ListBatches lists uploaded files, newest first, with their status and
// record counts.
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	batches, err := h.store.Batches().List(r.Context(), limit, offset)
	if err != nil {
		h.storeFailure(w, err, "failed to list upload batches")
		return
	}
	writeJSON(w, http.StatusOK, batchList{Batches: batches, Limit: limit, Offset: offset})
}

// ListRecords pages through usage records, optionally for one batch.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var filter domain.RecordFilter
	if raw := strings.TrimSpace(r.URL.Query().Get("batch_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid batch_id")
			return
		}
		filter.BatchID = &id
	}

	records, total, err := h.store.Records().List(r.Context(), filter, limit, offset)
	if err != nil {
		h.storeFailure(w, err, "failed to list usage records")
		return
	}
	writeJSON(w, http.StatusOK, recordList{Records: records, Total: total, Limit: limit, Offset: offset})
}

// ListBatchLogs returns the row-level ingestion log of one batch.
func (h *Handler) ListBatchLogs(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "batchID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid batch id")
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	batch, err := h.store.Batches().GetByID(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "batch not found")
		return
	}
	if err != nil {
		h.storeFailure(w, err, "failed to load upload batch")
		return
	}

	entries, err := h.store.Logs().ListByBatch(r.Context(), id, limit, offset)
	if err != nil {
		h.storeFailure(w, err, "failed to list ingestion logs")
		return
	}
	writeJSON(w, http.StatusOK, logList{Batch: batch, Entries: entries})
}

func (h *Handler) storeFailure(w http.ResponseWriter, err error, msg string) {
	h.log.WithError(err).Error(msg)
	writeError(w, http.StatusBadGateway, msg)
}

// pagination reads limit and offset. Zero values are left for the
// repository to default.
func pagination(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	limit, err := nonNegative(q.Get("limit"))
	if err != nil {
		return 0, 0, errors.New("invalid limit")
	}
	offset, err := nonNegative(q.Get("offset"))
	if err != nil {
		return 0, 0, errors.New("invalid offset")
	}
	return limit, offset, nil
}

func nonNegative(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("must be a non-negative integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}
