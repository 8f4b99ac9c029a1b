package order

import (
	"errors"
	"strings"
)

// ErrOrderNotFound is returned by order archives for an unknown order ID.
var ErrOrderNotFound = errors.New("order not found")

// Status is the review state of an order line.
type Status string

const (
	// StatusConfirmed marks a line whose confidence met the trust threshold.
	StatusConfirmed Status = "confirmed"

	// StatusReview marks a line that needs human confirmation.
	StatusReview Status = "review"
)

// ModifierPrice is a per-modifier surcharge. Reserved: modifier pricing is
// not computed yet, so lines always carry an empty list.
type ModifierPrice struct {
	Modifier string  `json:"modifier"`
	Price    float64 `json:"price"`
}

// Line is a single priced item of a [Document].
type Line struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	ProductID           int             `json:"product_id"`
	Size                *string         `json:"size"`
	Temperature         *string         `json:"temperature"`
	Quantity            int             `json:"quantity"`
	Price               float64         `json:"price"`
	Confidence          float64         `json:"confidence"`
	Status              Status          `json:"status"`
	Modifiers           ModifierSet     `json:"modifiers"`
	SpecialInstructions string          `json:"special_instructions"`
	ModifierPrices      []ModifierPrice `json:"modifier_prices"`
}

// Document is the priced order produced for one transcript. It is the only
// serialised shape the pipeline guarantees.
type Document struct {
	Transcription string  `json:"transcription"`
	Confidence    float64 `json:"confidence"`
	Items         []Line  `json:"items"`
	Subtotal      float64 `json:"subtotal"`
	Total         float64 `json:"total"`
}

// EmptyDocument returns the document produced when nothing could be
// extracted: no items, zero confidence and zero totals.
func EmptyDocument(transcript string) Document {
	return Document{
		Transcription: transcript,
		Items:         []Line{},
	}
}

// Signature identifies duplicate extractions of the same spoken item.
type Signature struct {
	Product     string
	Size        string
	Temperature string
	Modifiers   string
}

// SignatureOf returns the duplicate-detection signature of item: its
// lower-cased, trimmed product, size and temperature plus the canonical
// serialisation of its modifiers.
func SignatureOf(item CategorizedItem) Signature {
	return Signature{
		Product:     Key(item.Product),
		Size:        strings.ToLower(strings.TrimSpace(deref(item.Size))),
		Temperature: strings.ToLower(strings.TrimSpace(deref(item.Temperature))),
		Modifiers:   item.Modifiers.Canonical(),
	}
}
