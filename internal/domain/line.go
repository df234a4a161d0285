package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// DetailRef is an opaque tagged reference to a record owned by another subsystem.
// The ledger stores and echoes it but never dereferences it.
type DetailRef struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// AccountBalance is the cached balance of one (scope, account) pair.
type AccountBalance struct {
	Account   Account
	Balance   int64
	UpdatedAt time.Time
}

// Line is one immutable debit or credit entry.
type Line struct {
	ID            uuid.UUID
	Seq           int64
	Account       Account
	Code          TransferCode
	Amount        int64
	Balance       int64
	Partner       Account
	PartnerLineID uuid.UUID
	Detail        *DetailRef
	Metadata      json.RawMessage
	CreatedAt     time.Time
}

// MergeMetadata folds extra keys into metadata. Objects are merged key by key;
// any other JSON value is kept under MetadataValueKey.
func MergeMetadata(metadata json.RawMessage, extra map[string]any) (json.RawMessage, error) {
	merged := make(map[string]any, len(extra)+1)
	if !IsNullJSON(metadata) {
		var obj map[string]any
		if err := json.Unmarshal(metadata, &obj); err == nil && obj != nil {
			for k, v := range obj {
				merged[k] = v
			}
		} else {
			var scalar any
			if err := json.Unmarshal(metadata, &scalar); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
			merged[MetadataValueKey] = scalar
		}
	}
	for k, v := range extra {
		merged[k] = v
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return out, nil
}

// IsNullJSON reports whether raw is absent or the JSON literal null.
func IsNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func sameJSON(a, b json.RawMessage) bool {
	if IsNullJSON(a) || IsNullJSON(b) {
		return IsNullJSON(a) == IsNullJSON(b)
	}
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return bytes.Equal(a, b)
	}
	return reflect.DeepEqual(va, vb)
}
