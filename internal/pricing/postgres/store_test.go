package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/voxorder/internal/order"
	"github.com/MrWong99/voxorder/internal/pricing/postgres"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if VOXORDER_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("VOXORDER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VOXORDER_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] on an empty schema.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS orders CASCADE",
		"DROP TABLE IF EXISTS menu_prices CASCADE",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("drop schema %q: %v", stmt, err)
		}
	}

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestNewStore_BadDSN(t *testing.T) {
	t.Parallel()

	if _, err := postgres.NewStore(context.Background(), "::not a dsn::"); err == nil {
		t.Fatal("expected error for malformed DSN")
	}
}

func TestStore_Prices(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.Price(ctx, "golden eagle"); ok || err != nil {
		t.Fatalf("empty table Price = %v, %v; want false, nil", ok, err)
	}

	if err := store.SeedPrices(ctx, map[string]float64{"Golden Eagle": 6.25, "rebel": 6.75}); err != nil {
		t.Fatalf("SeedPrices: %v", err)
	}
	p, ok, err := store.Price(ctx, " GOLDEN eagle ")
	if err != nil || !ok || p != 6.25 {
		t.Errorf("Price = %v, %v, %v; want 6.25, true, nil", p, ok, err)
	}

	if err := store.UpsertPrice(ctx, "rebel", 7.00); err != nil {
		t.Fatalf("UpsertPrice: %v", err)
	}
	if p, _, _ := store.Price(ctx, "rebel"); p != 7.00 {
		t.Errorf("rebel = %v after upsert, want 7.00", p)
	}
	if err := store.UpsertPrice(ctx, "  ", 1); err == nil {
		t.Error("expected error for blank product")
	}

	menu, err := store.Menu(ctx)
	if err != nil {
		t.Fatalf("Menu: %v", err)
	}
	if len(menu) != 2 || menu["golden eagle"] != 6.25 {
		t.Errorf("Menu = %v", menu)
	}
}

func TestStore_Orders(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := order.EmptyDocument("a large hot mocha")
	doc.Items = append(doc.Items, order.Line{
		ID:             "item-1",
		Name:           "Mocha",
		ProductID:      10000,
		Size:           order.StringPtr("large"),
		Temperature:    order.StringPtr("hot"),
		Quantity:       1,
		Price:          5,
		Confidence:     1,
		Status:         order.StatusConfirmed,
		Modifiers:      order.EmptyModifierSet(),
		ModifierPrices: []order.ModifierPrice{},
	})
	doc.Confidence, doc.Subtotal, doc.Total = 1, 5, 5

	id, err := store.SaveOrder(ctx, doc)
	if err != nil {
		t.Fatalf("SaveOrder: %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("SaveOrder returned nil UUID")
	}

	got, err := store.Order(ctx, id)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if got.Transcription != doc.Transcription || len(got.Items) != 1 || got.Items[0].Name != "Mocha" || got.Total != 5 {
		t.Errorf("Order = %+v", got)
	}

	if _, err := store.Order(ctx, uuid.New()); !errors.Is(err, postgres.ErrOrderNotFound) {
		t.Errorf("unknown order err = %v, want ErrOrderNotFound", err)
	}
	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
