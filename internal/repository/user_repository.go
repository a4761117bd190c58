package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/martech/internal/db"
	"github.com/rpattn/martech/internal/domain"
)

// userRepository implements UserRepository interface
type userRepository struct {
	q db.DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(q db.DBTX) UserRepository {
	return &userRepository{q: q}
}

// Create inserts a new user. A taken username yields ErrDuplicate.
func (r *userRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.q.QueryRow(ctx,
		`INSERT INTO users (id, name, username, hashed_password, is_admin, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		user.ID, user.Name, user.Username, user.PasswordHash, user.IsAdmin, user.CreatedAt,
	)
	if err := row.Scan(&user.CreatedAt); err != nil {
		return domain.User{}, fmt.Errorf("failed to create user: %w", translate(err))
	}
	return user, nil
}

// GetByUsername retrieves a user by username
func (r *userRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	var user domain.User
	err := r.q.QueryRow(ctx,
		`SELECT id, name, username, hashed_password, is_admin, created_at
		 FROM users WHERE username = $1`,
		username,
	).Scan(&user.ID, &user.Name, &user.Username, &user.PasswordHash, &user.IsAdmin, &user.CreatedAt)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to get user by username: %w", translate(err))
	}
	return user, nil
}
