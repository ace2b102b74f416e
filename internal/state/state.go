// Package state persists per-monitor snapshots and audit records.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates no snapshot has been persisted for the key.
	ErrNotFound = errors.New("state: snapshot not found")
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("state: pool not configured")
)

// Store is the engine's durable key-value snapshot storage: one JSON-shaped
// document per monitored source, last write wins.
type Store interface {
	ReadSnapshot(ctx context.Context, name string) (json.RawMessage, error)
	WriteSnapshot(ctx context.Context, name string, snapshot json.RawMessage) error
}

// ChangeRecord captures an emitted change for auditing.
type ChangeRecord struct {
	ID        int64
	Monitor   string
	Summary   string
	Payload   string
	Delivered bool
	CreatedAt time.Time
}

// ChangeLog records delivered (and delivery-failed) changes.
type ChangeLog interface {
	AppendChange(ctx context.Context, rec ChangeRecord) error
	ListRecentChanges(ctx context.Context, limit int) ([]ChangeRecord, error)
}

// PriceSample is one persisted price observation.
type PriceSample struct {
	Monitor    string
	Item       string
	Field      string
	Price      decimal.Decimal
	ObservedAt time.Time
}

// PriceHistory stores sampled prices for later inspection and export.
type PriceHistory interface {
	AppendPrices(ctx context.Context, samples []PriceSample) error
	ListPricesBetween(ctx context.Context, monitor, item string, from, to time.Time) ([]PriceSample, error)
}
