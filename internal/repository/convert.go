package repository

import (
	"github.com/ayo6706/hold-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ToPgUUID converts an optional uuid into its nullable column form.
func ToPgUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}

// FromPgUUID is the inverse of ToPgUUID.
func FromPgUUID(id pgtype.UUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	u := uuid.UUID(id.Bytes)
	return &u
}

func detailColumns(d *domain.DetailRef) (pgtype.Text, pgtype.Text) {
	if d == nil {
		return pgtype.Text{}, pgtype.Text{}
	}
	return pgtype.Text{String: d.Kind, Valid: true}, pgtype.Text{String: d.ID, Valid: true}
}

func detailFromColumns(kind, id pgtype.Text) *domain.DetailRef {
	if !kind.Valid {
		return nil
	}
	return &domain.DetailRef{Kind: kind.String, ID: id.String}
}

func nullableJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
