// Package pricing resolves unit prices for ordered products.
//
// All lookups are keyed by [order.Key] of the product name. A missing
// price is a normal outcome reported through the ok result, never an error;
// errors are reserved for backend failures. Callers decide on a fallback.
package pricing

import (
	"context"
	"errors"
	"maps"
	"slices"

	"github.com/MrWong99/voxorder/internal/order"
)

// Lookup resolves the unit price of a product key.
//
// Implementations must be safe for concurrent use.
type Lookup interface {
	// Price returns the unit price for key. ok is false when the product is
	// unknown. err is non-nil only when the backend itself failed.
	Price(ctx context.Context, key string) (price float64, ok bool, err error)
}

// LookupFunc adapts an ordinary function to [Lookup].
type LookupFunc func(ctx context.Context, key string) (float64, bool, error)

// Price calls f.
func (f LookupFunc) Price(ctx context.Context, key string) (float64, bool, error) {
	return f(ctx, key)
}

// defaultMenu is the demo price table shipped with the binary.
var defaultMenu = map[string]float64{
	"white chocolate mocha":       7.50,
	"rebel":                       6.75,
	"rainbow rebel":               6.75,
	"not so hot":                  3.50,
	"golden eagle":                6.25,
	"lemon poppy seed muffin top": 5.50,
}

// DefaultMenu returns a copy of the built-in demo menu.
func DefaultMenu() map[string]float64 {
	return maps.Clone(defaultMenu)
}

// Table is an in-memory price list. It is immutable after construction.
type Table struct {
	prices map[string]float64
}

var _ Lookup = (*Table)(nil)

// NewTable returns a Table holding a normalised copy of prices. Entries with
// a blank key are ignored.
func NewTable(prices map[string]float64) *Table {
	t := &Table{prices: make(map[string]float64, len(prices))}
	for k, v := range prices {
		if nk := order.Key(k); nk != "" {
			t.prices[nk] = v
		}
	}
	return t
}

// Price implements [Lookup]. It never returns an error.
func (t *Table) Price(_ context.Context, key string) (float64, bool, error) {
	p, ok := t.prices[order.Key(key)]
	return p, ok, nil
}

// Keys returns the product keys in sorted order.
func (t *Table) Keys() []string {
	return slices.Sorted(maps.Keys(t.prices))
}

// Menu returns a copy of the price list.
func (t *Table) Menu() map[string]float64 {
	return maps.Clone(t.prices)
}

// Len returns the number of priced products.
func (t *Table) Len() int { return len(t.prices) }

// Chain returns a Lookup that queries lookups in order and returns the first
// hit. A failing lookup does not stop the chain; its error is only reported
// when no later lookup knows the product.
func Chain(lookups ...Lookup) Lookup {
	return chain(slices.Clone(lookups))
}

type chain []Lookup

func (c chain) Price(ctx context.Context, key string) (float64, bool, error) {
	var errs []error
	for _, l := range c {
		p, ok, err := l.Price(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return p, true, nil
		}
	}
	return 0, false, errors.Join(errs...)
}
