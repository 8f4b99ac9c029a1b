// Package modifier sorts free-text modifiers into the fixed categories of
// [order.ModifierSet].
//
// Categorisation is driven by an ordered table of [Rule] values. Each
// modifier is lower-cased and trimmed, then tested against the rules in
// order; the first rule that matches consumes it. Modifiers no rule matches
// are kept verbatim as special instructions.
package modifier

import (
	"slices"
	"strings"

	"github.com/MrWong99/voxorder/internal/order"
)

// Categorizer applies a fixed rule table. It is immutable after construction
// and safe for concurrent use.
type Categorizer struct {
	rules []Rule
}

// New returns a Categorizer for rules. The table is validated and copied.
func New(rules []Rule) (*Categorizer, error) {
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}
	c := &Categorizer{rules: make([]Rule, len(rules))}
	for i, r := range rules {
		c.rules[i] = r.normalize()
	}
	return c, nil
}

// Default returns a Categorizer for [DefaultRules].
func Default() *Categorizer {
	c, err := New(DefaultRules())
	if err != nil {
		panic("modifier: default rules are invalid: " + err.Error())
	}
	return c
}

// Rules returns a copy of the normalised rule table in priority order.
func (c *Categorizer) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	for i, r := range c.rules {
		out[i] = Rule{
			Category: r.Category,
			Triggers: slices.Clone(r.Triggers),
			Values:   slices.Clone(r.Values),
		}
	}
	return out
}

// Categorize converts each raw item into exactly one categorised item, in the
// same order. It is a pure function of its input.
func (c *Categorizer) Categorize(items []order.RawItem) []order.CategorizedItem {
	out := make([]order.CategorizedItem, 0, len(items))
	for _, it := range items {
		mods, special := c.CategorizeModifiers(it.Modifiers)
		out = append(out, order.CategorizedItem{
			Product:             it.Product,
			ProductHint:         it.Product,
			Size:                clonePtr(it.Size),
			Temperature:         clonePtr(it.Temperature),
			Quantity:            it.Quantity,
			Modifiers:           mods,
			SpecialInstructions: special,
			IsNewItem:           it.IsNewItem,
		})
	}
	return out
}

// CategorizeModifiers sorts mods into a ModifierSet and returns the
// unmatched modifiers joined with ", " in input order. Blank modifiers are
// ignored.
func (c *Categorizer) CategorizeModifiers(mods []string) (order.ModifierSet, string) {
	b := newBuilder()
	var special []string
	for _, raw := range mods {
		mod := normalizeText(raw)
		if mod == "" {
			continue
		}
		rule, ok := c.match(mod)
		if !ok {
			special = append(special, raw)
			continue
		}
		value, resolved := rule.Resolve(mod)
		b.apply(rule.Category, value, resolved)
	}
	return b.build(), strings.Join(special, ", ")
}

func (c *Categorizer) match(mod string) (Rule, bool) {
	for _, r := range c.rules {
		if r.Matches(mod) {
			return r, true
		}
	}
	return Rule{}, false
}

// builder accumulates the values for one item. Only the finished set
// returned by build escapes.
type builder struct {
	toppings  []string
	drizzles  []string
	addIns    []string
	liquid    []string
	packets   []string
	espresso  []string
	milk      *order.Milk
	ice       *order.IceLevel
	sweetness *order.Sweetness
}

func newBuilder() *builder { return &builder{} }

// apply records a matched modifier. For singleton categories an unresolved
// match clears the current value; for sets it adds nothing.
func (b *builder) apply(cat Category, value string, resolved bool) {
	switch cat {
	case CategoryMilk:
		b.milk = nil
		if resolved {
			v := order.Milk(value)
			b.milk = &v
		}
		return
	case CategoryIceLevel:
		b.ice = nil
		if resolved {
			v := order.IceLevel(value)
			b.ice = &v
		}
		return
	case CategorySweetness:
		b.sweetness = nil
		if resolved {
			v := order.Sweetness(value)
			b.sweetness = &v
		}
		return
	}
	if !resolved {
		return
	}
	switch cat {
	case CategoryToppings:
		b.toppings = append(b.toppings, value)
	case CategoryDrizzles:
		b.drizzles = append(b.drizzles, value)
	case CategoryAddIns:
		b.addIns = append(b.addIns, value)
	case CategoryLiquidSweetener:
		b.liquid = append(b.liquid, value)
	case CategorySweetenerPackets:
		b.packets = append(b.packets, value)
	case CategoryEspresso:
		b.espresso = append(b.espresso, value)
	}
}

func (b *builder) build() order.ModifierSet {
	set := order.EmptyModifierSet()
	set.Toppings = append(set.Toppings, b.toppings...)
	set.Drizzles = append(set.Drizzles, b.drizzles...)
	set.AddIns = append(set.AddIns, b.addIns...)
	set.LiquidSweetener = append(set.LiquidSweetener, b.liquid...)
	set.SweetenerPackets = append(set.SweetenerPackets, b.packets...)
	set.Espresso = append(set.Espresso, b.espresso...)
	set.Milk = b.milk
	set.IceLevel = b.ice
	set.Sweetness = b.sweetness
	return set
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
