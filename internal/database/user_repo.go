package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/tripunite/gateway/internal/domain"
)

// UserRepository reads traveller profiles for the handshake
type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID finds a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user := &domain.User{}
	var email *string
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, name, email, created_at
		FROM users WHERE id = $1
	`, id).Scan(&user.ID, &user.Name, &email, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if email != nil {
		user.Email = *email
	}
	return user, nil
}
