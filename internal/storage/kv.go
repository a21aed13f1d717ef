// Package storage provides the key-value persistence port used by the ledger
// and its adapters (memory, JSON files, SQLite and Redis).
//
// Values are JSON documents stored under a small set of well-known keys.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// Well-known keys.
const (
	KeyExpenses     = "expenses"
	KeyParticipants = "participants"
)

// KV persists JSON documents by key.
type KV interface {
	// Load decodes the value stored at key into dst. found is false when the
	// key has never been written; dst is then left untouched.
	Load(ctx context.Context, key string, dst any) (found bool, err error)
	// Save replaces the value stored at key.
	Save(ctx context.Context, key string, value any) error
	Ping(ctx context.Context) error
	Close() error
}

// LoadOr returns the value at key, or def when the key is absent.
func LoadOr[T any](ctx context.Context, kv KV, key string, def T) (T, error) {
	var v T
	found, err := kv.Load(ctx, key, &v)
	if err != nil {
		return def, err
	}
	if !found {
		return def, nil
	}
	return v, nil
}

func encode(key string, value any) ([]byte, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	return b, nil
}

func decode(key string, data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
