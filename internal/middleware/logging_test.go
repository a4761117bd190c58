package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestLoggingRecordsStatusAndRequestID(t *testing.T) {
	logger, hook := test.NewNullLogger()
	handler := chimw.RequestID(Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("exists"))
	})))

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.Header.Set(chimw.RequestIDHeader, "req-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatalf("expected an access log entry")
	}
	if entry.Level != logrus.WarnLevel {
		t.Fatalf("expected warn level for 409, got %s", entry.Level)
	}
	if entry.Data["status"] != http.StatusConflict || entry.Data["path"] != "/upload" || entry.Data["bytes"] != 6 {
		t.Fatalf("unexpected fields: %+v", entry.Data)
	}
	if entry.Data["request_id"] != "req-123" {
		t.Fatalf("expected request id, got %v", entry.Data["request_id"])
	}
}

func TestLoggingDefaultsToOK(t *testing.T) {
	logger, hook := test.NewNullLogger()
	Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	entry := hook.LastEntry()
	if entry == nil || entry.Data["status"] != http.StatusOK || entry.Level != logrus.InfoLevel {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if _, ok := entry.Data["request_id"]; ok {
		t.Fatalf("request id should be absent without RequestID middleware")
	}
}
