package state

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Memory is an in-process Store, ChangeLog, and PriceHistory. It backs the
// engine when no database is configured and the fakes in tests.
type Memory struct {
	mu        sync.Mutex
	snapshots map[string]json.RawMessage
	changes   []ChangeRecord
	prices    []PriceSample
	nextID    int64
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{snapshots: make(map[string]json.RawMessage)}
}

// ReadSnapshot returns the stored snapshot or ErrNotFound.
func (m *Memory) ReadSnapshot(_ context.Context, name string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, ok := m.snapshots[name]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make(json.RawMessage, len(snapshot))
	copy(cp, snapshot)
	return cp, nil
}

// WriteSnapshot stores a copy of the snapshot.
func (m *Memory) WriteSnapshot(_ context.Context, name string, snapshot json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make(json.RawMessage, len(snapshot))
	copy(cp, snapshot)
	m.snapshots[name] = cp
	return nil
}

// AppendChange records a change in memory.
func (m *Memory) AppendChange(_ context.Context, rec ChangeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	rec.ID = m.nextID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.changes = append(m.changes, rec)
	return nil
}

// ListRecentChanges returns up to limit records, newest first.
func (m *Memory) ListRecentChanges(_ context.Context, limit int) ([]ChangeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ChangeRecord, 0, limit)
	for i := len(m.changes) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.changes[i])
	}
	return out, nil
}

// AppendPrices records price samples in memory.
func (m *Memory) AppendPrices(_ context.Context, samples []PriceSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prices = append(m.prices, samples...)
	return nil
}

// ListPricesBetween filters stored samples by monitor, item, and window.
func (m *Memory) ListPricesBetween(_ context.Context, monitor, item string, from, to time.Time) ([]PriceSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]PriceSample, 0)
	for _, sample := range m.prices {
		if sample.Monitor != monitor || sample.Item != item {
			continue
		}
		if sample.ObservedAt.Before(from) || !sample.ObservedAt.Before(to) {
			continue
		}
		out = append(out, sample)
	}
	return out, nil
}

var (
	_ Store        = (*Memory)(nil)
	_ ChangeLog    = (*Memory)(nil)
	_ PriceHistory = (*Memory)(nil)
)
