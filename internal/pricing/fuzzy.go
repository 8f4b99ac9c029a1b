package pricing

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/voxorder/internal/order"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// FuzzyOption configures a [Fuzzy] lookup.
type FuzzyOption func(*Fuzzy)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a menu key
// that also shares a Double Metaphone code with the spoken product.
// Default: 0.70.
func WithPhoneticThreshold(threshold float64) FuzzyOption {
	return func(f *Fuzzy) {
		f.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a menu key with
// no phonetic overlap. Default: 0.85.
func WithFuzzyThreshold(threshold float64) FuzzyOption {
	return func(f *Fuzzy) {
		f.fuzzyThreshold = threshold
	}
}

// Fuzzy resolves misheard product names ("golden eegle") to the closest menu
// key before looking up the price.
//
// Exact keys are tried first. Otherwise every menu key sharing a Double
// Metaphone code with the spoken name is ranked by phrase similarity and
// the best one above the phonetic threshold wins. Phrase similarity pairs
// tokens by Jaro-Winkler and requires both phrases to be covered, so
// "chocolate chip cookie" does not become "white chocolate mocha". When no key is a
// phonetic candidate, pure Jaro-Winkler similarity above the stricter fuzzy
// threshold is accepted.
//
// Fuzzy is read-only after construction and safe for concurrent use.
type Fuzzy struct {
	table             *Table
	keys              []string
	phoneticThreshold float64
	fuzzyThreshold    float64
}

var _ Lookup = (*Fuzzy)(nil)

// NewFuzzy returns a Fuzzy lookup over table.
func NewFuzzy(table *Table, opts ...FuzzyOption) *Fuzzy {
	f := &Fuzzy{
		table:             table,
		keys:              table.Keys(),
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Price implements [Lookup].
func (f *Fuzzy) Price(ctx context.Context, key string) (float64, bool, error) {
	match, _, ok := f.Resolve(key)
	if !ok {
		return 0, false, nil
	}
	return f.table.Price(ctx, match)
}

// Resolve returns the menu key that best matches key together with its
// similarity score. An exact key scores 1.
func (f *Fuzzy) Resolve(key string) (menuKey string, score float64, ok bool) {
	k := order.Key(key)
	if k == "" {
		return "", 0, false
	}
	if _, hit := f.table.prices[k]; hit {
		return k, 1, true
	}

	tokens := strings.Fields(k)
	spoken := metaphoneCodes(tokens)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, candidate := range f.keys {
		candTokens := strings.Fields(candidate)
		s := similarity(tokens, candTokens)

		if overlaps(spoken, metaphoneCodes(candTokens)) {
			if s >= f.phoneticThreshold && (!bestPhonetic || s > bestScore) {
				best, bestScore, bestPhonetic = candidate, s, true
			}
			continue
		}
		if !bestPhonetic && s >= f.fuzzyThreshold && s > bestScore {
			best, bestScore = candidate, s
		}
	}
	if best == "" {
		return "", 0, false
	}
	return best, bestScore, true
}

// metaphoneCodes returns the non-empty primary and secondary Double
// Metaphone codes of every token.
func metaphoneCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// tokenMatch is the Jaro-Winkler score a token needs to count as heard.
const tokenMatch = 0.80

// similarity scores a whole spoken phrase against a whole menu key. Every
// token on each side is paired with its closest token on the other side,
// and tokens without a pair scoring at least tokenMatch contribute nothing.
// The score is the weaker of the two coverages, so one shared word cannot
// carry a phrase. When the token counts differ the space-stripped strings
// are compared too, which forgives split or merged words.
func similarity(spokenTokens, keyTokens []string) float64 {
	best := min(coverage(spokenTokens, keyTokens), coverage(keyTokens, spokenTokens))

	if len(spokenTokens) != len(keyTokens) {
		a := strings.Join(spokenTokens, "")
		b := strings.Join(keyTokens, "")
		if similarLength(a, b) {
			best = max(best, matchr.JaroWinkler(a, b, false))
		}
	}
	return best
}

// coverage is the mean best-pair score of from's tokens against to's tokens.
func coverage(from, to []string) float64 {
	if len(from) == 0 || len(to) == 0 {
		return 0
	}
	var total float64
	for _, a := range from {
		var top float64
		for _, b := range to {
			top = max(top, matchr.JaroWinkler(a, b, false))
		}
		if top >= tokenMatch {
			total += top
		}
	}
	return total / float64(len(from))
}

// similarLength reports whether the shorter string is at least 80% as long
// as the longer one.
func similarLength(a, b string) bool {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	return 5*min(la, lb) >= 4*max(la, lb)
}
