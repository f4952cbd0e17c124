package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyblocks-backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// GetContact returns pgx.ErrNoRows when the user does not exist.
func (r *UserRepo) GetContact(ctx context.Context, userID uuid.UUID) (*models.UserContact, error) {
	c := &models.UserContact{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, full_name FROM users WHERE id = $1`, userID,
	).Scan(&c.UserID, &c.Email, &c.DisplayName)
	if err != nil {
		return nil, err
	}
	return c, nil
}
