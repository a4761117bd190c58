package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rpattn/martech/internal/admin"
	"github.com/rpattn/martech/internal/auth"
	"github.com/rpattn/martech/internal/ingestion"
	"github.com/rpattn/martech/internal/middleware"
	"github.com/rpattn/martech/internal/report"
	"github.com/rpattn/martech/internal/repository"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// Dependencies are the services the router dispatches to.
type Dependencies struct {
	Store          repository.Store
	Auth           *auth.Service
	Ingestion      *ingestion.Service
	Reports        *report.Service
	MaxUploadBytes int64
	AllowedOrigins []string
	Log            logrus.FieldLogger
}

// NewRouter returns the HTTP handler for the whole API.
func NewRouter(deps Dependencies) http.Handler {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimw.Recoverer)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
	})
	r.Use(corsHandler.Handler)

	authHandler := auth.NewHTTPHandler(deps.Auth, log)
	requireUser := auth.RequireUser(deps.Auth, log)

	r.Get("/healthz", healthHandler(deps.Store))
	r.Post("/register", authHandler.Register)
	r.Post("/login", authHandler.Login)
	r.Get("/results", report.NewHTTPHandler(deps.Reports, log).ServeHTTP)

	r.With(requireUser).Method(http.MethodPost, "/upload", ingestion.NewHTTPHandler(deps.Ingestion, deps.MaxUploadBytes))

	r.Route("/admin", func(r chi.Router) {
		r.Use(requireUser, auth.RequireAdmin)
		r.Mount("/", admin.NewHandler(deps.Store, log).Routes())
	})

	return r
}

func healthHandler(store repository.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, code := "ok", http.StatusOK
		if err := store.Ping(ctx); err != nil {
			status, code = "unavailable", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
