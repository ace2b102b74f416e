package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	upsertSnapshotSQL = `INSERT INTO monitor_state (name, snapshot, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (name) DO UPDATE
    SET snapshot = EXCLUDED.snapshot,
        updated_at = EXCLUDED.updated_at;`

	readSnapshotSQL = `SELECT snapshot FROM monitor_state WHERE name = $1;`

	insertChangeSQL = `INSERT INTO change_log (monitor, summary, payload, delivered)
    VALUES ($1, $2, $3, $4);`

	listRecentChangesSQL = `SELECT id, monitor, summary, payload, delivered, created_at
    FROM change_log
    ORDER BY created_at DESC
    LIMIT $1;`

	insertPriceSampleSQL = `INSERT INTO price_history (monitor, item, field, price, observed_at)
    VALUES ($1, $2, $3, $4, $5);`

	listPricesBetweenSQL = `SELECT monitor, item, field, price, observed_at
    FROM price_history
    WHERE monitor = $1
      AND item = $2
      AND observed_at >= $3
      AND observed_at < $4
    ORDER BY observed_at;`
)

// PoolConfig carries PostgreSQL connectivity settings.
type PoolConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return pool, nil
}

// PgStore persists snapshots, change audit records, and price history in
// PostgreSQL.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore wires a pgx pool into a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Close releases the underlying pool resources.
func (s *PgStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PgStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// ReadSnapshot loads the persisted snapshot for a monitor.
func (s *PgStore) ReadSnapshot(ctx context.Context, name string) (json.RawMessage, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var snapshot []byte
	if scanErr := pool.QueryRow(ctx, readSnapshotSQL, name).Scan(&snapshot); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read snapshot: %w", scanErr)
	}
	return json.RawMessage(snapshot), nil
}

// WriteSnapshot upserts the snapshot document for a monitor.
func (s *PgStore) WriteSnapshot(ctx context.Context, name string, snapshot json.RawMessage) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, upsertSnapshotSQL, name, []byte(snapshot)); execErr != nil {
		return fmt.Errorf("write snapshot: %w", execErr)
	}
	return nil
}

// AppendChange records an emitted change.
func (s *PgStore) AppendChange(ctx context.Context, rec ChangeRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, insertChangeSQL, rec.Monitor, rec.Summary, rec.Payload, rec.Delivered); execErr != nil {
		return fmt.Errorf("append change: %w", execErr)
	}
	return nil
}

// ListRecentChanges lists the most recent change records.
func (s *PgStore) ListRecentChanges(ctx context.Context, limit int) ([]ChangeRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentChangesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent changes: %w", queryErr)
	}
	defer rows.Close()

	records := make([]ChangeRecord, 0, limit)
	for rows.Next() {
		var rec ChangeRecord
		if err := rows.Scan(&rec.ID, &rec.Monitor, &rec.Summary, &rec.Payload, &rec.Delivered, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// AppendPrices persists a batch of price observations.
func (s *PgStore) AppendPrices(ctx context.Context, samples []PriceSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for _, sample := range samples {
		if _, execErr := pool.Exec(ctx, insertPriceSampleSQL,
			sample.Monitor,
			sample.Item,
			sample.Field,
			sample.Price.String(),
			sample.ObservedAt,
		); execErr != nil {
			return fmt.Errorf("append price sample: %w", execErr)
		}
	}
	return nil
}

// ListPricesBetween lists price samples for one tracked item within a window.
func (s *PgStore) ListPricesBetween(ctx context.Context, monitor, item string, from, to time.Time) ([]PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPricesBetweenSQL, monitor, item, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list prices between: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]PriceSample, 0)
	for rows.Next() {
		var sample PriceSample
		var priceStr string
		if err := rows.Scan(&sample.Monitor, &sample.Item, &sample.Field, &priceStr, &sample.ObservedAt); err != nil {
			return nil, err
		}
		price, convErr := decimal.NewFromString(priceStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse price: %w", convErr)
		}
		sample.Price = price
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

var (
	_ Store        = (*PgStore)(nil)
	_ ChangeLog    = (*PgStore)(nil)
	_ PriceHistory = (*PgStore)(nil)
)
