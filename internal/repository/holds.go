package repository

import (
	"context"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const holdColumns = `
id, user_id, state, amount, transfer_code,
partner_account_identifier, partner_account_scope, capture_line_id,
detail_kind, detail_id, metadata, created_at, updated_at
`

const getHold = `SELECT ` + holdColumns + ` FROM authorization_holds WHERE id = $1`

// GetHold returns the stored hold with its persisted baseline recorded.
func (q *Queries) GetHold(ctx context.Context, id uuid.UUID) (*domain.Hold, error) {
	h, err := scanHold(q.db.QueryRow(ctx, getHold, id))
	if err != nil {
		return nil, mapErr("get hold", err)
	}
	return h, nil
}

const insertHold = `
INSERT INTO authorization_holds (
    id, user_id, state, amount, transfer_code,
    partner_account_identifier, partner_account_scope, capture_line_id,
    detail_kind, detail_id, metadata
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING created_at, updated_at
`

func (q *Queries) InsertHold(ctx context.Context, h *domain.Hold) error {
	kind, detailID := detailColumns(h.Detail)
	err := q.db.QueryRow(ctx, insertHold,
		h.ID,
		h.UserID,
		string(h.State),
		h.Amount,
		string(h.TransferCode),
		string(h.PartnerAccount.Type),
		h.PartnerAccount.Scope,
		ToPgUUID(h.CaptureLineID),
		kind,
		detailID,
		nullableJSON(h.Metadata),
	).Scan(&h.CreatedAt, &h.UpdatedAt)
	return mapErr("insert hold", err)
}

const updateHold = `
UPDATE authorization_holds
SET user_id = $2,
    state = $3,
    amount = $4,
    transfer_code = $5,
    partner_account_identifier = $6,
    partner_account_scope = $7,
    capture_line_id = $8,
    detail_kind = $9,
    detail_id = $10,
    metadata = $11,
    updated_at = NOW()
WHERE id = $1
`

// UpdateHold writes every column and reports the affected row count.
func (q *Queries) UpdateHold(ctx context.Context, h *domain.Hold) (int64, error) {
	kind, detailID := detailColumns(h.Detail)
	tag, err := q.db.Exec(ctx, updateHold,
		h.ID,
		h.UserID,
		string(h.State),
		h.Amount,
		string(h.TransferCode),
		string(h.PartnerAccount.Type),
		h.PartnerAccount.Scope,
		ToPgUUID(h.CaptureLineID),
		kind,
		detailID,
		nullableJSON(h.Metadata),
	)
	if err != nil {
		return 0, mapErr("update hold", err)
	}
	return tag.RowsAffected(), nil
}

const sumHoldingAmount = `
SELECT COALESCE(SUM(amount), 0)::BIGINT
FROM authorization_holds
WHERE user_id = $1 AND state = 'holding' AND id <> $2
`

// SumHoldingAmount totals the open holds of a user, leaving out excludeID.
func (q *Queries) SumHoldingAmount(ctx context.Context, userID, excludeID uuid.UUID) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, sumHoldingAmount, userID, excludeID).Scan(&total)
	return total, mapErr("sum holding amount", err)
}

const listHoldsByUser = `SELECT ` + holdColumns + `
FROM authorization_holds
WHERE user_id = $1 AND ($2 = '' OR state = $2)
ORDER BY created_at, id
`

// ListHoldsByUser lists a user's holds; an empty state matches all.
func (q *Queries) ListHoldsByUser(ctx context.Context, userID uuid.UUID, state domain.HoldState) ([]*domain.Hold, error) {
	return q.listHolds(ctx, "list holds by user", listHoldsByUser, userID, string(state))
}

const listHoldsByDetail = `SELECT ` + holdColumns + `
FROM authorization_holds
WHERE detail_kind = $1 AND detail_id = $2
ORDER BY created_at, id
`

func (q *Queries) ListHoldsByDetail(ctx context.Context, detail domain.DetailRef) ([]*domain.Hold, error) {
	return q.listHolds(ctx, "list holds by detail", listHoldsByDetail, detail.Kind, detail.ID)
}

func (q *Queries) listHolds(ctx context.Context, op, query string, args ...any) ([]*domain.Hold, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	defer rows.Close()

	var holds []*domain.Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, mapErr(op, err)
		}
		holds = append(holds, h)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(op, err)
	}
	return holds, nil
}

func scanHold(row rowScanner) (*domain.Hold, error) {
	var (
		h                    domain.Hold
		state, code, partner string
		captureLineID        pgtype.UUID
		detailKind, detailID pgtype.Text
		metadata             []byte
	)
	err := row.Scan(
		&h.ID,
		&h.UserID,
		&state,
		&h.Amount,
		&code,
		&partner,
		&h.PartnerAccount.Scope,
		&captureLineID,
		&detailKind,
		&detailID,
		&metadata,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	h.State = domain.HoldState(state)
	h.TransferCode = domain.TransferCode(code)
	h.PartnerAccount.Type = domain.AccountType(partner)
	h.CaptureLineID = FromPgUUID(captureLineID)
	h.Detail = detailFromColumns(detailKind, detailID)
	h.Metadata = metadata
	return domain.RestoreHoldFromStorage(h), nil
}
