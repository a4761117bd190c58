package auth

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Handler serves the register and login form endpoints.
type Handler struct {
	service *Service
	log     logrus.FieldLogger
}

// NewHTTPHandler wraps the service with form-based endpoints.
func NewHTTPHandler(service *Service, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{service: service, log: log}
}

// Register handles POST /register with name, username and password fields.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	_, err := h.service.Register(r.Context(), r.FormValue("name"), r.FormValue("username"), r.FormValue("password"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"message": "User registered successfully"})
	case errors.Is(err, ErrMissingField):
		sendError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUserExists):
		sendError(w, http.StatusConflict, "User already exists with "+r.FormValue("username"))
	default:
		h.log.WithError(err).Error("failed to register user")
		sendError(w, http.StatusBadGateway, "failed to register user")
	}
}

// Login handles POST /login with username and password fields.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Login(r.Context(), r.FormValue("username"), r.FormValue("password"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, ErrInvalidCredentials):
		sendError(w, http.StatusUnauthorized, "The credentials are invalid")
	default:
		h.log.WithError(err).Error("failed to log in user")
		sendError(w, http.StatusBadGateway, "failed to log in")
	}
}
