// Package assemble turns validated items into a priced order document.
package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/MrWong99/voxorder/internal/order"
	"github.com/MrWong99/voxorder/internal/pricing"
)

const (
	// DefaultFallbackPrice is charged for products the lookup does not know.
	DefaultFallbackPrice = 5.00

	// DefaultConfirmThreshold is the minimum confidence for a line to be
	// confirmed without review.
	DefaultConfirmThreshold = 0.9

	// productIDStride spaces the synthetic product IDs.
	productIDStride = 10000
)

// Option configures an [Assembler].
type Option func(*Assembler)

// WithFallbackPrice sets the unit price used when the lookup has no entry or
// fails. Default: 5.00.
func WithFallbackPrice(price float64) Option {
	return func(a *Assembler) {
		a.fallback = price
	}
}

// WithConfirmThreshold sets the confidence at or above which a line is
// confirmed. Default: 0.9.
func WithConfirmThreshold(threshold float64) Option {
	return func(a *Assembler) {
		a.threshold = threshold
	}
}

// Assembler prices items and computes order totals. It is immutable after
// construction and safe for concurrent use as long as its lookup is.
type Assembler struct {
	prices    pricing.Lookup
	fallback  float64
	threshold float64
}

// New returns an Assembler resolving prices through prices.
func New(prices pricing.Lookup, opts ...Option) *Assembler {
	a := &Assembler{
		prices:    prices,
		fallback:  DefaultFallbackPrice,
		threshold: DefaultConfirmThreshold,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// FallbackPrice returns the configured fallback unit price.
func (a *Assembler) FallbackPrice() float64 { return a.fallback }

// Assemble builds the order document for transcript from items, in order.
//
// Lines get sequential IDs ("item-1", ...) and synthetic product IDs. A
// failed price lookup is logged and charged at the fallback price. Line
// confidence is rounded to two decimals, while status and the overall
// confidence use the unrounded scores.
func (a *Assembler) Assemble(ctx context.Context, transcript string, items []order.ScoredItem) order.Document {
	doc := order.EmptyDocument(transcript)
	if len(items) == 0 {
		return doc
	}

	title := cases.Title(language.Und)
	var confSum float64
	for i, it := range items {
		n := i + 1
		price := a.price(ctx, it.Product)

		status := order.StatusReview
		if it.Confidence >= a.threshold {
			status = order.StatusConfirmed
		}

		doc.Items = append(doc.Items, order.Line{
			ID:                  fmt.Sprintf("item-%d", n),
			Name:                title.String(it.Product),
			ProductID:           n * productIDStride,
			Size:                it.Size,
			Temperature:         it.Temperature,
			Quantity:            it.Quantity,
			Price:               price,
			Confidence:          round2(it.Confidence),
			Status:              status,
			Modifiers:           it.Modifiers,
			SpecialInstructions: it.SpecialInstructions,
			ModifierPrices:      []order.ModifierPrice{},
		})
		doc.Subtotal += price * float64(it.Quantity)
		confSum += it.Confidence
	}
	doc.Total = doc.Subtotal
	doc.Confidence = confSum / float64(len(items))
	return doc
}

func (a *Assembler) price(ctx context.Context, product string) float64 {
	if a.prices == nil {
		return a.fallback
	}
	key := order.Key(product)
	p, ok, err := a.prices.Price(ctx, key)
	if err != nil {
		slog.Warn("assemble: price lookup failed, using fallback", "product", key, "fallback", a.fallback, "err", err)
		return a.fallback
	}
	if !ok {
		return a.fallback
	}
	return p
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
