package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// UserRepository looks up accounts inside a single organization.
type UserRepository interface {
	FindMember(ctx context.Context, orgID, email string) (*domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) FindMember(ctx context.Context, orgID, email string) (*domain.User, error) {
	const query = `
        SELECT id, org_id, email, name, created_at
        FROM users WHERE org_id=$1 AND LOWER(email)=LOWER($2)`

	var user domain.User
	if err := r.pool.QueryRow(ctx, query, orgID, email).Scan(
		&user.ID,
		&user.OrgID,
		&user.Email,
		&user.Name,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
