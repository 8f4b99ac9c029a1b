package score

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/voxorder/internal/order"
)

// defaultBlocklist holds conversational filler the extractor tends to
// mistake for products.
var defaultBlocklist = []string{
	"thank", "please", "awesome", "great", "good", "fun", "course",
	"hi", "hello", "hey", "morning", "sister", "team", "game", "goalie",
}

// DefaultBlocklist returns a copy of the built-in noise word list.
func DefaultBlocklist() []string {
	out := make([]string, len(defaultBlocklist))
	copy(out, defaultBlocklist)
	return out
}

// Validator scores items and rejects those that fail the plausibility
// checks. It is immutable after construction and safe for concurrent use.
type Validator struct {
	blocklist     map[string]struct{}
	minQuantity   int
	maxQuantity   int
	minProductLen int
}

// Option configures a [Validator].
type Option func(*Validator)

// WithBlocklist replaces the noise word list. Entries are compared against
// the lower-cased, trimmed product.
func WithBlocklist(words []string) Option {
	return func(v *Validator) {
		v.blocklist = make(map[string]struct{}, len(words))
		for _, w := range words {
			if k := order.Key(w); k != "" {
				v.blocklist[k] = struct{}{}
			}
		}
	}
}

// WithQuantityRange sets the inclusive quantity bounds. Bounds outside
// [order.MinQuantity, order.MaxQuantity] are clamped to it.
func WithQuantityRange(lo, hi int) Option {
	return func(v *Validator) {
		v.minQuantity = min(max(lo, order.MinQuantity), order.MaxQuantity)
		v.maxQuantity = min(max(hi, order.MinQuantity), order.MaxQuantity)
	}
}

// WithMinProductLength sets the minimum trimmed product length in runes.
// Values below order.MinProductLength are raised to it.
func WithMinProductLength(n int) Option {
	return func(v *Validator) {
		v.minProductLen = max(n, order.MinProductLength)
	}
}

// NewValidator returns a Validator with the default blocklist and bounds,
// modified by opts.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		minQuantity:   order.MinQuantity,
		maxQuantity:   order.MaxQuantity,
		minProductLen: order.MinProductLength,
	}
	WithBlocklist(defaultBlocklist)(v)
	for _, o := range opts {
		o(v)
	}
	return v
}

// Rejection kinds reported in [order.Rejection.Kind].
const (
	KindLength    = "length"
	KindBlocklist = "blocklist"
	KindQuantity  = "quantity"
)

// Check reports whether item passes validation. When it does not, reason
// describes the first failed check.
func (v *Validator) Check(item order.CategorizedItem) (reason string, ok bool) {
	kind, reason := v.check(item)
	return reason, kind == ""
}

func (v *Validator) check(item order.CategorizedItem) (kind, reason string) {
	product := strings.TrimSpace(item.Product)
	if utf8.RuneCountInString(product) < v.minProductLen {
		return KindLength, "product name too short"
	}
	if _, blocked := v.blocklist[order.Key(product)]; blocked {
		return KindBlocklist, fmt.Sprintf("false positive: %s", product)
	}
	if item.Quantity < v.minQuantity || item.Quantity > v.maxQuantity {
		return KindQuantity, fmt.Sprintf("invalid quantity: %d", item.Quantity)
	}
	return "", ""
}

// ScoreAndValidate scores every item against source and splits the result
// into accepted items, in input order, and rejections with their reasons.
// Rejections are diagnostics, never errors.
func (v *Validator) ScoreAndValidate(items []order.CategorizedItem, source string) ([]order.ScoredItem, []order.Rejection) {
	accepted := make([]order.ScoredItem, 0, len(items))
	var rejected []order.Rejection
	for _, it := range items {
		scored := order.ScoredItem{CategorizedItem: it, Confidence: Confidence(it, source)}
		if kind, reason := v.check(it); kind != "" {
			rejected = append(rejected, order.Rejection{Item: scored, Kind: kind, Reason: reason})
			continue
		}
		accepted = append(accepted, scored)
	}
	return accepted, rejected
}

// Blocklist returns the active noise words in no particular order.
func (v *Validator) Blocklist() []string {
	out := make([]string, 0, len(v.blocklist))
	for w := range v.blocklist {
		out = append(out, w)
	}
	return out
}
