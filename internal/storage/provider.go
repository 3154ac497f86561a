// Package storage provides the durable slots that hold serialized collections.
package storage

import "context"

// DefaultKey is the slot name used when none is configured.
const DefaultKey = "flowcrm_saved_filters"

// Slot is a single named blob that is read and written in full.
type Slot interface {
	// Load returns the slot contents. A slot that was never written
	// returns (nil, nil).
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the slot contents.
	Save(ctx context.Context, data []byte) error
	// Name identifies the slot in logs.
	Name() string
}

// Verify the backends satisfy Slot at compile time.
var (
	_ Slot = (*FileSlot)(nil)
	_ Slot = (*SQLiteSlot)(nil)
	_ Slot = (*RedisSlot)(nil)
	_ Slot = (*MemorySlot)(nil)
)
