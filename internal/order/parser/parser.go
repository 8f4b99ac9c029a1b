// Package parser recovers item records from raw extractor output.
//
// Model output is untrusted. It may be wrapped in markdown fences, surrounded
// by prose, truncated, or not JSON at all. [Parse] never fails: anything it
// cannot understand yields an empty slice. [ParseDetailed] exposes the reason
// for callers that want to log it.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/MrWong99/voxorder/internal/order"
)

// ErrNoArray is returned by [ParseDetailed] when the text contains no
// bracketed span.
var ErrNoArray = errors.New("parser: no JSON array in response")

var (
	fenceRe = regexp.MustCompile("```(?:json)?")
	arrayRe = regexp.MustCompile(`(?s)\[.*\]`)
)

// Record field names the extractor is prompted to emit. Matching is exact:
// "Product" or "QTY" are unknown fields and ignored.
const (
	fieldProduct   = "product"
	fieldSize      = "size"
	fieldTemp      = "temp"
	fieldMods      = "mods"
	fieldQty       = "qty"
	fieldIsNewItem = "is_new_item"
)

// Parse extracts the item list from raw. It returns an empty, non-nil slice
// when nothing usable is found.
func Parse(raw string) []order.RawItem {
	items, _ := ParseDetailed(raw)
	return items
}

// ParseDetailed behaves like [Parse] but also reports why the whole response
// was unusable. Items dropped individually (missing product, not an object)
// do not produce an error.
func ParseDetailed(raw string) ([]order.RawItem, error) {
	items := []order.RawItem{}

	cleaned := fenceRe.ReplaceAllString(raw, "")
	span := arrayRe.FindString(cleaned)
	if span == "" {
		return items, ErrNoArray
	}

	var records []json.RawMessage
	if err := json.Unmarshal([]byte(span), &records); err != nil {
		return items, fmt.Errorf("parser: decode array: %w", err)
	}

	for _, rec := range records {
		item, ok := decodeItem(rec)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// decodeItem applies field defaults to a single record. ok is false when the
// record is not an object or has no usable product.
func decodeItem(rec json.RawMessage) (order.RawItem, bool) {
	// A map keeps field names case-sensitive; struct tags would not.
	var w map[string]json.RawMessage
	if err := json.Unmarshal(rec, &w); err != nil || w == nil {
		return order.RawItem{}, false
	}

	product, ok := decodeString(w[fieldProduct])
	if !ok || product == "" {
		return order.RawItem{}, false
	}

	item := order.RawItem{
		Product:   product,
		Modifiers: decodeStrings(w[fieldMods]),
		Quantity:  decodeQuantity(w[fieldQty]),
		IsNewItem: true,
	}
	if s, ok := decodeString(w[fieldSize]); ok && s != "" {
		item.Size = &s
	}
	if s, ok := decodeString(w[fieldTemp]); ok && s != "" {
		item.Temperature = &s
	}
	var b bool
	if isPresent(w[fieldIsNewItem]) && json.Unmarshal(w[fieldIsNewItem], &b) == nil {
		item.IsNewItem = b
	}
	return item, true
}

func isPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// decodeString returns the trimmed string value of raw. ok is false for
// absent, null, and non-string values.
func decodeString(raw json.RawMessage) (string, bool) {
	if !isPresent(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// decodeStrings returns the string elements of a JSON array in order,
// skipping non-string elements. Anything other than an array yields an empty
// slice.
func decodeStrings(raw json.RawMessage) []string {
	out := []string{}
	if !isPresent(raw) {
		return out
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return out
	}
	for _, e := range elems {
		if s, ok := decodeString(e); ok {
			out = append(out, s)
		}
	}
	return out
}

// decodeQuantity returns 1 when qty is absent or null, the value for an
// integer literal, and 0 (always invalid) for anything else such as 2.5,
// "two" or true.
func decodeQuantity(raw json.RawMessage) int {
	if !isPresent(raw) {
		return 1
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0
	}
	i, err := n.Int64()
	if err != nil || i < -1<<31 || i > 1<<31-1 {
		return 0
	}
	return int(i)
}
