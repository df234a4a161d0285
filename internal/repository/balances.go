package repository

import (
	"context"

	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const ensureAccountBalance = `
INSERT INTO account_balances (account, scope, balance)
VALUES ($1, $2, 0)
ON CONFLICT (scope, account) DO NOTHING
`

func (q *Queries) EnsureAccountBalance(ctx context.Context, account domain.Account) error {
	_, err := q.db.Exec(ctx, ensureAccountBalance, string(account.Type), account.Scope)
	return mapErr("ensure account balance", err)
}

const lockAccountBalance = `
SELECT balance FROM account_balances
WHERE scope = $1 AND account = $2
FOR UPDATE
`

func (q *Queries) LockAccountBalance(ctx context.Context, account domain.Account) (int64, error) {
	var balance int64
	err := q.db.QueryRow(ctx, lockAccountBalance, account.Scope, string(account.Type)).Scan(&balance)
	return balance, mapErr("lock account balance", err)
}

const getAccountBalance = `
SELECT balance, updated_at FROM account_balances
WHERE scope = $1 AND account = $2
`

func (q *Queries) GetAccountBalance(ctx context.Context, account domain.Account) (domain.AccountBalance, error) {
	row := domain.AccountBalance{Account: account}
	err := q.db.QueryRow(ctx, getAccountBalance, account.Scope, string(account.Type)).Scan(&row.Balance, &row.UpdatedAt)
	return row, mapErr("get account balance", err)
}

const applyBalanceDelta = `
INSERT INTO account_balances (account, scope, balance)
VALUES ($1, $2, $3)
ON CONFLICT (scope, account) DO UPDATE
SET balance = account_balances.balance + EXCLUDED.balance,
    updated_at = NOW()
RETURNING balance
`

// ApplyBalanceDelta adds delta to the cached balance, materializing the row on first use,
// and returns the new balance.
func (q *Queries) ApplyBalanceDelta(ctx context.Context, account domain.Account, delta int64) (int64, error) {
	var balance int64
	err := q.db.QueryRow(ctx, applyBalanceDelta, string(account.Type), account.Scope, delta).Scan(&balance)
	return balance, mapErr("apply balance delta", err)
}

const insertLine = `
INSERT INTO lines (
    id, account, scope, code, amount, balance,
    partner_account, partner_scope, partner_line_id,
    detail_kind, detail_id, metadata
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING seq, created_at
`

func (q *Queries) InsertLine(ctx context.Context, line *domain.Line) error {
	kind, detailID := detailColumns(line.Detail)
	err := q.db.QueryRow(ctx, insertLine,
		line.ID,
		string(line.Account.Type),
		line.Account.Scope,
		string(line.Code),
		line.Amount,
		line.Balance,
		string(line.Partner.Type),
		line.Partner.Scope,
		line.PartnerLineID,
		kind,
		detailID,
		nullableJSON(line.Metadata),
	).Scan(&line.Seq, &line.CreatedAt)
	return mapErr("insert line", err)
}

const lineColumns = `
seq, id, account, scope, code, amount, balance,
partner_account, partner_scope, partner_line_id,
detail_kind, detail_id, metadata, created_at
`

const listLines = `SELECT ` + lineColumns + `
FROM lines
WHERE account = $1 AND scope = $2
ORDER BY seq DESC
LIMIT $3 OFFSET $4
`

func (q *Queries) ListLines(ctx context.Context, arg ListLinesParams) ([]domain.Line, error) {
	rows, err := q.db.Query(ctx, listLines, string(arg.Account.Type), arg.Account.Scope, arg.Limit, arg.Offset)
	if err != nil {
		return nil, mapErr("list lines", err)
	}
	defer rows.Close()

	var lines []domain.Line
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, mapErr("scan line", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list lines", err)
	}
	return lines, nil
}

const getLine = `SELECT ` + lineColumns + ` FROM lines WHERE id = $1`

func (q *Queries) GetLine(ctx context.Context, id uuid.UUID) (domain.Line, error) {
	line, err := scanLine(q.db.QueryRow(ctx, getLine, id))
	return line, mapErr("get line", err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLine(row rowScanner) (domain.Line, error) {
	var (
		line                   domain.Line
		account, code, partner string
		detailKind, detailID   pgtype.Text
		metadata               []byte
	)
	err := row.Scan(
		&line.Seq,
		&line.ID,
		&account,
		&line.Account.Scope,
		&code,
		&line.Amount,
		&line.Balance,
		&partner,
		&line.Partner.Scope,
		&line.PartnerLineID,
		&detailKind,
		&detailID,
		&metadata,
		&line.CreatedAt,
	)
	if err != nil {
		return domain.Line{}, err
	}
	line.Account.Type = domain.AccountType(account)
	line.Code = domain.TransferCode(code)
	line.Partner.Type = domain.AccountType(partner)
	line.Detail = detailFromColumns(detailKind, detailID)
	line.Metadata = metadata
	return line, nil
}
