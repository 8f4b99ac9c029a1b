// Package order defines the value types that flow through the transcript to
// order pipeline:
//
//	parser     → []RawItem
//	modifier   → []CategorizedItem
//	dedupe     → []CategorizedItem
//	score      → []ScoredItem (+ []Rejection)
//	assemble   → Document
//
// Every value is created fresh per pipeline run and passed forward by value.
// No stage mutates a slice it received from another stage.
package order

import "strings"

// Invariant bounds shared by the validation and assembly stages.
const (
	// MinProductLength is the minimum trimmed product name length.
	MinProductLength = 2

	// MinQuantity and MaxQuantity bound a valid item quantity (inclusive).
	MinQuantity = 1
	MaxQuantity = 20
)

// RawItem is a single item record recovered from the extractor output, with
// defaults applied at the decoding boundary.
type RawItem struct {
	// Product is the spoken product name. Never empty.
	Product string

	// Size is the requested size ("large", "kids", ...) or nil if unspecified.
	Size *string

	// Temperature is "hot", "iced", "blended", ... or nil if unspecified.
	Temperature *string

	// Modifiers holds the free-text customisations in spoken order.
	Modifiers []string

	// Quantity defaults to 1. A value that was present but not an integer is
	// carried as 0 so that validation rejects it.
	Quantity int

	// IsNewItem reports whether the extractor considered this a new item
	// rather than a change to a previous one. Defaults to true.
	IsNewItem bool
}

// CategorizedItem is a RawItem whose modifiers were sorted into a [ModifierSet].
type CategorizedItem struct {
	Product             string
	ProductHint         string
	Size                *string
	Temperature         *string
	Quantity            int
	Modifiers           ModifierSet
	SpecialInstructions string
	IsNewItem           bool
}

// ScoredItem is a CategorizedItem annotated with a confidence in [0, 1].
type ScoredItem struct {
	CategorizedItem
	Confidence float64
}

// Rejection records why an item was dropped during validation.
type Rejection struct {
	Item ScoredItem

	// Kind is a short label suitable for metrics: "length", "blocklist" or
	// "quantity".
	Kind string

	// Reason is the human-readable explanation.
	Reason string
}

// Key returns the lower-cased, trimmed product name used for price lookup and
// signature comparison.
func Key(product string) string {
	return strings.ToLower(strings.TrimSpace(product))
}

// StringPtr returns a pointer to s. Handy for literals in tests and fixtures.
func StringPtr(s string) *string { return &s }

// deref returns *s or "" when s is nil.
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
