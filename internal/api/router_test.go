package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rpattn/martech/internal/auth"
	"github.com/rpattn/martech/internal/config"
	"github.com/rpattn/martech/internal/ingestion"
	"github.com/rpattn/martech/internal/report"
	"github.com/rpattn/martech/internal/repository"
	"github.com/rpattn/martech/internal/temp"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	handler http.Handler
	store   *repository.MemoryStore
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := repository.NewMemoryStore()
	staging, err := temp.NewStore(t.TempDir())
	require.NoError(t, err)

	authCfg := config.AuthConfig{
		JWTSecret:      "router-secret",
		Issuer:         "martech",
		TokenTTL:       time.Minute,
		BcryptCost:     bcrypt.MinCost,
		AdminUsernames: []string{"boss"},
	}
	handler := NewRouter(Dependencies{
		Store:          store,
		Auth:           auth.NewService(store.Users(), auth.NewTokens(authCfg), authCfg, logger),
		Ingestion:      ingestion.NewService(store, staging, logger),
		Reports:        report.NewService(store.Records(), logger),
		MaxUploadBytes: 1 << 20,
		AllowedOrigins: []string{"http://localhost:3000"},
		Log:            logger,
	})
	return testServer{handler: handler, store: store}
}

func (s testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s testServer) login(t *testing.T, username string) string {
	t.Helper()
	form := url.Values{"name": {strings.ToUpper(username)}, "username": {username}, "password": {"secret"}}
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, s.do(req).Code)

	form = url.Values{"username": {username}, "password": {"secret"}}
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := s.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result auth.LoginResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result.AccessToken
}

func uploadRequest(t *testing.T, token, fileName string, payload []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func usageWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Advertiser", "Brand", "Start", "End", "Format", "Platform", "Impr"},
		{"A", "B", "03/04/2024", "05/04/2024", "Video", "Web", 100},
		{"A", "B", "15/06/2023", "30/06/2023", "Video", "Web", 40},
		{"A", "B", "not-a-date", "05/04/2024", "Video", "Web", 7},
	}
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, f.SetSheetRow(sheet, cell, &rows[i]))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestUploadFlow(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t, "jane")
	payload := usageWorkbook(t)

	rec := srv.do(uploadRequest(t, "", "usage.xlsx", payload))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(uploadRequest(t, token, "usage.xlsx", payload))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var outcome ingestion.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.Equal(t, ingestion.StatusSuccess, outcome.Status)
	assert.Equal(t, 2, outcome.Inserted)
	assert.Equal(t, 1, outcome.Skipped)

	rec = srv.do(uploadRequest(t, token, "usage.xlsx", payload))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "usage.xlsx already exists")

	rec = srv.do(uploadRequest(t, token, "broken.csv", []byte("Brand\nB\n")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Impr")

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/results", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results":[{"year":2023,"total_impressions":40},{"year":2024,"total_impressions":100}]}`, rec.Body.String())
}

func TestUploadRejectsOversizedBodies(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t, "jane")

	rec := srv.do(uploadRequest(t, token, "huge.csv", bytes.Repeat([]byte("a"), 2<<20)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.login(t, "boss")
	regular := srv.login(t, "jane")
	require.Equal(t, http.StatusOK, srv.do(uploadRequest(t, regular, "usage.xlsx", usageWorkbook(t))).Code)

	for _, path := range []string{"/admin/log-files", "/admin/full-data"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, srv.do(req).Code, path)

		req = httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+regular)
		assert.Equal(t, http.StatusForbidden, srv.do(req).Code, path)

		req = httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+admin)
		assert.Equal(t, http.StatusOK, srv.do(req).Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/log-files", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	rec := srv.do(req)
	var body struct {
		Batches []struct {
			ID          string `json:"id"`
			FileName    string `json:"file_name"`
			Status      string `json:"status"`
			RecordCount int64  `json:"record_count"`
		} `json:"batches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Batches, 1)
	assert.Equal(t, "Completed", body.Batches[0].Status)
	assert.Equal(t, int64(2), body.Batches[0].RecordCount)

	req = httptest.NewRequest(http.MethodGet, "/admin/batches/"+body.Batches[0].ID+"/logs", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	rec = srv.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid Start")
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/upload", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")

	rec := srv.do(req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
