package storage

import (
	"context"
	"slices"
	"sync"
)

// MemorySlot is an in-process Slot, used as a test double.
type MemorySlot struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	SaveErr error // returned by Save when set
	LoadErr error // returned by Load when set
}

// NewMemorySlot returns a slot preloaded with data (which may be nil).
func NewMemorySlot(data []byte) *MemorySlot {
	return &MemorySlot{data: slices.Clone(data)}
}

// Name implements Slot.
func (m *MemorySlot) Name() string { return "memory" }

// Load implements Slot.
func (m *MemorySlot) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return slices.Clone(m.data), nil
}

// Save implements Slot.
func (m *MemorySlot) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.data = slices.Clone(data)
	m.saves++
	return nil
}

// Saves returns how many successful writes the slot has seen.
func (m *MemorySlot) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
