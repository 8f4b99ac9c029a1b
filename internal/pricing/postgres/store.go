// Package postgres provides a PostgreSQL-backed price table and order
// archive.
//
// Prices live in menu_prices keyed by the normalised product name. Every
// assembled order can be archived as a JSONB document in orders under a
// random UUID. Both tables are created by [Migrate].
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	price, ok, err := store.Price(ctx, "golden eagle")
//	id, err := store.SaveOrder(ctx, doc)
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/voxorder/internal/order"
	"github.com/MrWong99/voxorder/internal/pricing"
)

var _ pricing.Lookup = (*Store)(nil)

// Store holds a single [pgxpool.Pool]. All operations are safe for concurrent
// use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, verifies the connection and runs
// [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Price implements [pricing.Lookup].
func (s *Store) Price(ctx context.Context, key string) (float64, bool, error) {
	const q = `SELECT price FROM menu_prices WHERE product = $1`

	var price float64
	err := s.pool.QueryRow(ctx, q, order.Key(key)).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("postgres store: price %q: %w", key, err)
	}
	return price, true, nil
}

// UpsertPrice inserts or replaces the price of product.
func (s *Store) UpsertPrice(ctx context.Context, product string, price float64) error {
	const q = `
		INSERT INTO menu_prices (product, price, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (product) DO UPDATE
		SET price = EXCLUDED.price, updated_at = now()`

	key := order.Key(product)
	if key == "" {
		return errors.New("postgres store: upsert price: empty product")
	}
	if _, err := s.pool.Exec(ctx, q, key, price); err != nil {
		return fmt.Errorf("postgres store: upsert price %q: %w", key, err)
	}
	return nil
}

// SeedPrices upserts every entry of menu in a single batch.
func (s *Store) SeedPrices(ctx context.Context, menu map[string]float64) error {
	const q = `
		INSERT INTO menu_prices (product, price, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (product) DO UPDATE
		SET price = EXCLUDED.price, updated_at = now()`

	batch := &pgx.Batch{}
	for product, price := range menu {
		if key := order.Key(product); key != "" {
			batch.Queue(q, key, price)
		}
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres store: seed prices: %w", err)
	}
	return nil
}

// Menu returns every stored price keyed by product.
func (s *Store) Menu(ctx context.Context) (map[string]float64, error) {
	rows, err := s.pool.Query(ctx, `SELECT product, price FROM menu_prices`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: menu: %w", err)
	}
	defer rows.Close()

	menu := make(map[string]float64)
	for rows.Next() {
		var (
			product string
			price   float64
		)
		if err := rows.Scan(&product, &price); err != nil {
			return nil, fmt.Errorf("postgres store: menu: scan: %w", err)
		}
		menu[product] = price
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: menu: %w", err)
	}
	return menu, nil
}

// SaveOrder archives doc and returns its generated ID.
func (s *Store) SaveOrder(ctx context.Context, doc order.Document) (uuid.UUID, error) {
	const q = `
		INSERT INTO orders (id, transcription, confidence, item_count, total, document)
		VALUES ($1, $2, $3, $4, $5, $6)`

	body, err := json.Marshal(doc)
	if err != nil {
		return uuid.Nil, fmt.Errorf("postgres store: save order: encode: %w", err)
	}
	id := uuid.New()
	if _, err := s.pool.Exec(ctx, q, id.String(), doc.Transcription, doc.Confidence, len(doc.Items), doc.Total, body); err != nil {
		return uuid.Nil, fmt.Errorf("postgres store: save order: %w", err)
	}
	return id, nil
}

// ErrOrderNotFound is returned by [Store.Order] for an unknown ID.
var ErrOrderNotFound = order.ErrOrderNotFound

// Order loads an archived order document.
func (s *Store) Order(ctx context.Context, id uuid.UUID) (order.Document, error) {
	const q = `SELECT document FROM orders WHERE id = $1`

	var body []byte
	err := s.pool.QueryRow(ctx, q, id.String()).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return order.Document{}, ErrOrderNotFound
	}
	if err != nil {
		return order.Document{}, fmt.Errorf("postgres store: order %s: %w", id, err)
	}
	var doc order.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return order.Document{}, fmt.Errorf("postgres store: order %s: decode: %w", id, err)
	}
	return doc, nil
}

// Ping verifies that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}
