package repository

import (
	"context"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/google/uuid"
)

const getUser = `SELECT id, credit_limit, created_at FROM users WHERE id = $1`

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	var u domain.User
	err := q.db.QueryRow(ctx, getUser, id).Scan(&u.ID, &u.CreditLimit, &u.CreatedAt)
	return u, mapErr("get user", err)
}

const upsertUser = `
INSERT INTO users (id, credit_limit)
VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET credit_limit = EXCLUDED.credit_limit
RETURNING created_at
`

// UpsertUser registers the user or replaces its credit limit override.
func (q *Queries) UpsertUser(ctx context.Context, u *domain.User) error {
	err := q.db.QueryRow(ctx, upsertUser, u.ID, u.CreditLimit).Scan(&u.CreatedAt)
	return mapErr("upsert user", err)
}
