package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlMenuPrices = `
CREATE TABLE IF NOT EXISTS menu_prices (
    product     TEXT              PRIMARY KEY,
    price       DOUBLE PRECISION  NOT NULL CHECK (price >= 0),
    updated_at  TIMESTAMPTZ       NOT NULL DEFAULT now()
);
`

const ddlOrders = `
CREATE TABLE IF NOT EXISTS orders (
    id             UUID              PRIMARY KEY,
    transcription  TEXT              NOT NULL,
    confidence     DOUBLE PRECISION  NOT NULL,
    item_count     INTEGER           NOT NULL,
    total          DOUBLE PRECISION  NOT NULL,
    document       JSONB             NOT NULL,
    created_at     TIMESTAMPTZ       NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders (created_at);
`

// Migrate creates the menu_prices and orders tables if they do not exist.
// It is idempotent and safe to call on every start-up.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlMenuPrices, ddlOrders} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
