package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sjsage522/dealworker/logger"
)

// Property is one assessed transaction as stored in the property table
type Property struct {
	ID           int64     `json:"id"`
	DealNumber   *string   `json:"deal_number"`
	PropertyType string    `json:"property_type"`
	Location     string    `json:"location"`
	Price        float64   `json:"price"`
	Area         float64   `json:"area"`
	Category     *string   `json:"category"`
	IsAnomaly    bool      `json:"is_anomaly"`
	CreatedAt    time.Time `json:"created_at"`
}

const schema = `CREATE TABLE IF NOT EXISTS property (
	id            BIGSERIAL PRIMARY KEY,
	deal_number   VARCHAR(100),
	property_type VARCHAR(100),
	location      VARCHAR(200),
	price         DOUBLE PRECISION,
	area          DOUBLE PRECISION,
	category      VARCHAR(100),
	is_anomaly    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PropertyStore persists properties
type PropertyStore interface {
	InsertProperties(ctx context.Context, props []Property) ([]Property, error)
}

// DB is a Postgres backed PropertyStore
type DB struct {
	Pool *pgxpool.Pool
	log  *logger.Logger
}

// Ensure DB implements PropertyStore
var _ PropertyStore = (*DB)(nil)

// Connect opens a connection pool and verifies it
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &DB{Pool: pool, log: logger.ForStore()}, nil
}

// EnsureSchema creates the property table when missing
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create property table: %w", err)
	}
	return nil
}

// InsertProperties stores props in one transaction and returns them with id and created_at set
func (db *DB) InsertProperties(ctx context.Context, props []Property) ([]Property, error) {
	if len(props) == 0 {
		return nil, nil
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, p := range props {
		batch.Queue(
			`INSERT INTO property (deal_number, property_type, location, price, area, category, is_anomaly)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id, created_at`,
			p.DealNumber, p.PropertyType, p.Location, p.Price, p.Area, p.Category, p.IsAnomaly,
		)
	}

	stored := make([]Property, len(props))
	copy(stored, props)

	results := tx.SendBatch(ctx, batch)
	for i := range stored {
		if err := results.QueryRow().Scan(&stored[i].ID, &stored[i].CreatedAt); err != nil {
			results.Close()
			return nil, fmt.Errorf("failed to insert property: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("failed to insert properties: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit properties: %w", err)
	}

	db.log.Info().Int("count", len(stored)).Msg("Properties stored")
	return stored, nil
}

// RecentAnomalies returns the latest anomalous properties
func (db *DB) RecentAnomalies(ctx context.Context, limit int) ([]Property, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, deal_number, property_type, location, price, area, category, is_anomaly, created_at
		 FROM property
		 WHERE is_anomaly
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query anomalies: %w", err)
	}
	defer rows.Close()

	var props []Property
	for rows.Next() {
		var p Property
		err := rows.Scan(
			&p.ID,
			&p.DealNumber,
			&p.PropertyType,
			&p.Location,
			&p.Price,
			&p.Area,
			&p.Category,
			&p.IsAnomaly,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		props = append(props, p)
	}

	return props, rows.Err()
}

// Close closes the pool
func (db *DB) Close() {
	db.Pool.Close()
}
