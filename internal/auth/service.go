package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/martech/internal/config"
	"github.com/rpattn/martech/internal/domain"
	"github.com/rpattn/martech/internal/repository"

	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidCredentials is returned when the username or password is wrong.
	ErrInvalidCredentials = errors.New("the credentials are invalid")
	// ErrUserExists is returned when registering a username that is taken.
	ErrUserExists = errors.New("user already exists")
	// ErrMissingField is returned when a required form field is blank.
	ErrMissingField = errors.New("missing required field")
)

// LoginResult is returned to the client after a successful login.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Message     string    `json:"message"`
	IsAdmin     bool      `json:"is_admin"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Service registers and authenticates users.
type Service struct {
	users      repository.UserRepository
	tokens     *Tokens
	bcryptCost int
	admins     map[string]struct{}
	log        logrus.FieldLogger
}

// NewService creates a new auth service. Usernames listed in
// cfg.AdminUsernames are registered as administrators.
func NewService(users repository.UserRepository, tokens *Tokens, cfg config.AuthConfig, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	admins := make(map[string]struct{}, len(cfg.AdminUsernames))
	for _, name := range cfg.AdminUsernames {
		if name = strings.TrimSpace(name); name != "" {
			admins[strings.ToLower(name)] = struct{}{}
		}
	}
	return &Service{
		users:      users,
		tokens:     tokens,
		bcryptCost: cfg.BcryptCost,
		admins:     admins,
		log:        log.WithField("component", "auth"),
	}
}

// Register creates a user with a hashed password.
func (s *Service) Register(ctx context.Context, name, username, password string) (domain.User, error) {
	name = strings.TrimSpace(name)
	username = strings.TrimSpace(username)
	switch {
	case name == "":
		return domain.User{}, fmt.Errorf("%w: name", ErrMissingField)
	case username == "":
		return domain.User{}, fmt.Errorf("%w: username", ErrMissingField)
	case password == "":
		return domain.User{}, fmt.Errorf("%w: password", ErrMissingField)
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return domain.User{}, fmt.Errorf("%w with %s", ErrUserExists, username)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, err
	}

	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return domain.User{}, err
	}

	_, isAdmin := s.admins[strings.ToLower(username)]
	user, err := s.users.Create(ctx, domain.NewUser(name, username, hash, isAdmin))
	if errors.Is(err, repository.ErrDuplicate) {
		return domain.User{}, fmt.Errorf("%w with %s", ErrUserExists, username)
	}
	if err != nil {
		return domain.User{}, err
	}

	s.log.WithFields(logrus.Fields{"username": user.Username, "admin": user.IsAdmin}).Info("user registered")
	return user, nil
}

// Login checks the password and issues an access token.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repository.ErrNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		s.log.WithField("username", user.Username).Warn("login rejected")
		return LoginResult{}, ErrInvalidCredentials
	}

	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		Message:     fmt.Sprintf("%s login successfully", user.Name),
		IsAdmin:     user.IsAdmin,
		ExpiresAt:   expires,
	}, nil
}

// Authenticate resolves a bearer token to the stored user it was issued for.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.users.GetByUsername(ctx, claims.Username)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, ErrInvalidToken
	}
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}
