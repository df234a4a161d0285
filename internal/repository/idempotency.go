package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const idempotencyColumns = `
idempotency_key, request_hash, method, path, in_progress,
response_status, response_body, content_type, created_at, updated_at
`

const getIdempotencyKey = `SELECT ` + idempotencyColumns + ` FROM idempotency_keys WHERE idempotency_key = $1`

func (q *Queries) GetIdempotencyKey(ctx context.Context, key string) (IdempotencyKey, error) {
	row, err := scanIdempotencyKey(q.db.QueryRow(ctx, getIdempotencyKey, key))
	return row, mapErr("get idempotency key", err)
}

const reserveIdempotencyKey = `
INSERT INTO idempotency_keys (idempotency_key, request_hash, method, path, in_progress)
VALUES ($1, $2, $3, $4, TRUE)
ON CONFLICT (idempotency_key) DO NOTHING
RETURNING ` + idempotencyColumns

// ReserveIdempotencyKey claims key; ErrNotFound means another request already holds it.
func (q *Queries) ReserveIdempotencyKey(ctx context.Context, arg ReserveIdempotencyKeyParams) (IdempotencyKey, error) {
	row, err := scanIdempotencyKey(q.db.QueryRow(ctx, reserveIdempotencyKey,
		arg.IdempotencyKey, arg.RequestHash, arg.Method, arg.Path))
	return row, mapErr("reserve idempotency key", err)
}

const finalizeIdempotencyKey = `
UPDATE idempotency_keys
SET in_progress = FALSE,
    response_status = $1,
    response_body = $2,
    content_type = $3,
    updated_at = NOW()
WHERE idempotency_key = $4 AND request_hash = $5
RETURNING ` + idempotencyColumns

func (q *Queries) FinalizeIdempotencyKey(ctx context.Context, arg FinalizeIdempotencyKeyParams) (IdempotencyKey, error) {
	row, err := scanIdempotencyKey(q.db.QueryRow(ctx, finalizeIdempotencyKey,
		arg.ResponseStatus, arg.ResponseBody, arg.ContentType, arg.IdempotencyKey, arg.RequestHash))
	return row, mapErr("finalize idempotency key", err)
}

const releaseIdempotencyKey = `
DELETE FROM idempotency_keys
WHERE idempotency_key = $1 AND request_hash = $2 AND in_progress
`

// ReleaseIdempotencyKey drops an unfinished reservation so the key can be
// retried. Finished keys are left alone.
func (q *Queries) ReleaseIdempotencyKey(ctx context.Context, key, requestHash string) error {
	_, err := q.db.Exec(ctx, releaseIdempotencyKey, key, requestHash)
	return mapErr("release idempotency key", err)
}

func scanIdempotencyKey(row rowScanner) (IdempotencyKey, error) {
	var (
		k           IdempotencyKey
		status      pgtype.Int4
		contentType pgtype.Text
	)
	err := row.Scan(
		&k.IdempotencyKey,
		&k.RequestHash,
		&k.Method,
		&k.Path,
		&k.InProgress,
		&status,
		&k.ResponseBody,
		&contentType,
		&k.CreatedAt,
		&k.UpdatedAt,
	)
	if err != nil {
		return IdempotencyKey{}, err
	}
	k.ResponseStatus = status.Int32
	k.ContentType = contentType.String
	return k, nil
}
