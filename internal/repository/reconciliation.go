package repository

import (
	"context"

	"github.com/ayo6706/hold-ledger/internal/domain"
)

const getLedgerNet = `SELECT COALESCE(SUM(amount), 0)::BIGINT FROM lines`

// GetLedgerNet sums every line; a balanced ledger returns zero.
func (q *Queries) GetLedgerNet(ctx context.Context) (int64, error) {
	var net int64
	err := q.db.QueryRow(ctx, getLedgerNet).Scan(&net)
	return net, mapErr("get ledger net", err)
}

const listBalanceMismatches = `
WITH sums AS (
    SELECT account, scope, SUM(amount)::BIGINT AS lines_sum, MAX(seq) AS last_seq
    FROM lines
    GROUP BY account, scope
)
SELECT b.account, b.scope, b.balance,
       COALESCE(s.lines_sum, 0)::BIGINT,
       COALESCE(l.balance, 0)::BIGINT
FROM account_balances b
LEFT JOIN sums s ON s.account = b.account AND s.scope = b.scope
LEFT JOIN lines l ON l.seq = s.last_seq
WHERE b.balance <> COALESCE(s.lines_sum, 0)
   OR b.balance <> COALESCE(l.balance, 0)
ORDER BY b.account, b.scope
`

// ListBalanceMismatches returns cached balances that disagree with the sum of their lines
// or with the snapshot on their latest line.
func (q *Queries) ListBalanceMismatches(ctx context.Context) ([]BalanceMismatch, error) {
	rows, err := q.db.Query(ctx, listBalanceMismatches)
	if err != nil {
		return nil, mapErr("list balance mismatches", err)
	}
	defer rows.Close()

	var out []BalanceMismatch
	for rows.Next() {
		var (
			m       BalanceMismatch
			account string
		)
		if err := rows.Scan(&account, &m.Account.Scope, &m.Balance, &m.LinesSum, &m.LatestSnapshot); err != nil {
			return nil, mapErr("scan balance mismatch", err)
		}
		m.Account.Type = domain.AccountType(account)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list balance mismatches", err)
	}
	return out, nil
}

const getLastLineSeq = `SELECT COALESCE(MAX(seq), 0)::BIGINT FROM lines`

func (q *Queries) GetLastLineSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := q.db.QueryRow(ctx, getLastLineSeq).Scan(&seq)
	return seq, mapErr("get last line seq", err)
}

const insertLineCheck = `
INSERT INTO line_checks (last_line_seq, errors_found, log)
VALUES ($1, $2, $3)
RETURNING id, last_line_seq, errors_found, log, created_at
`

func (q *Queries) InsertLineCheck(ctx context.Context, arg InsertLineCheckParams) (LineCheck, error) {
	var c LineCheck
	err := q.db.QueryRow(ctx, insertLineCheck, arg.LastLineSeq, arg.ErrorsFound, arg.Log).
		Scan(&c.ID, &c.LastLineSeq, &c.ErrorsFound, &c.Log, &c.CreatedAt)
	return c, mapErr("insert line check", err)
}
