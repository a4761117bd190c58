package report

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	service *Service
	log     logrus.FieldLogger
}

func NewHTTPHandler(service *Service, log logrus.FieldLogger) http.Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{service: service, log: log}
}

// ServeHTTP returns yearly totals as JSON, or as a workbook download when
// format=xlsx is requested.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "xlsx") {
		data, err := h.service.ImpressionsByYearXLSX(r.Context())
		if err != nil {
			h.log.WithError(err).Error("failed to build results workbook")
			status := http.StatusBadGateway
			if errors.Is(err, ErrWorkbook) {
				status = http.StatusInternalServerError
			}
			http.Error(w, "results unavailable", status)
			return
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="results.xlsx"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	totals, err := h.service.ImpressionsByYear(r.Context())
	if err != nil {
		h.log.WithError(err).Error("failed to load results")
		http.Error(w, "results unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"results": totals})
}
