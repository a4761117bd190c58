package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protected(service *Service) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(user.Username))
	})
	return RequireUser(service, nil)(inner)
}

func tokenFor(t *testing.T, service *Service, username string) string {
	t.Helper()
	_, err := service.Register(context.Background(), username, username, "pw")
	require.NoError(t, err)
	result, err := service.Login(context.Background(), username, "pw")
	require.NoError(t, err)
	return result.AccessToken
}

func TestRequireUser(t *testing.T) {
	service, _ := newTestService(t)
	token := tokenFor(t, service, "jane")

	cases := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, status: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer abc.def.ghi", status: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + token, status: http.StatusOK},
		{name: "lower-case scheme", header: "bearer " + token, status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/upload", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			protected(service).ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
				assert.Contains(t, rec.Body.String(), "Could not validate credentials")
			} else {
				assert.Equal(t, "jane", rec.Body.String())
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	service, _ := newTestService(t)
	admin := tokenFor(t, service, "root")
	regular := tokenFor(t, service, "jane")

	handler := RequireUser(service, nil)(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	for token, want := range map[string]int{admin: http.StatusNoContent, regular: http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/admin/log-files", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code)
		if want == http.StatusForbidden {
			assert.Contains(t, rec.Body.String(), "Access forbidden: Admins only")
		}
	}

	rec := httptest.NewRecorder()
	RequireAdmin(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func postForm(handler http.HandlerFunc, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestRegisterAndLoginHandlers(t *testing.T) {
	service, _ := newTestService(t)
	h := NewHTTPHandler(service, nil)

	form := url.Values{"name": {"Jane"}, "username": {"jane"}, "password": {"pw"}}
	rec := postForm(h.Register, form)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "User registered successfully")

	rec = postForm(h.Register, form)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "User already exists with jane")

	rec = postForm(h.Register, url.Values{"username": {"x"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postForm(h.Login, url.Values{"username": {"jane"}, "password": {"pw"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token_type":"bearer"`)
	assert.Contains(t, rec.Body.String(), "Jane login successfully")

	rec = postForm(h.Login, url.Values{"username": {"jane"}, "password": {"nope"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "The credentials are invalid")
}
