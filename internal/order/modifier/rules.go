package modifier

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/voxorder/internal/order"
)

// Category names a field of [order.ModifierSet]. The string values match the
// JSON field names of the set.
type Category string

const (
	CategoryToppings         Category = "toppings"
	CategoryDrizzles         Category = "drizzles"
	CategoryAddIns           Category = "add_ins"
	CategoryMilk             Category = "milk"
	CategoryIceLevel         Category = "ice_level"
	CategorySweetness        Category = "sweetness"
	CategoryLiquidSweetener  Category = "liquid_sweetener"
	CategorySweetenerPackets Category = "sweetener_packets"
	CategoryEspresso         Category = "espresso"
)

// Singleton reports whether c holds at most one value. Assigning a singleton
// overwrites any earlier value; set-valued categories accumulate.
func (c Category) Singleton() bool {
	switch c {
	case CategoryMilk, CategoryIceLevel, CategorySweetness:
		return true
	}
	return false
}

func (c Category) known() bool {
	switch c {
	case CategoryToppings, CategoryDrizzles, CategoryAddIns,
		CategoryMilk, CategoryIceLevel, CategorySweetness,
		CategoryLiquidSweetener, CategorySweetenerPackets, CategoryEspresso:
		return true
	}
	return false
}

// Mapping resolves a matched modifier to a canonical value. The first mapping
// whose Contains is a substring of the modifier wins. An empty Contains
// matches anything and is used as the "otherwise" branch.
type Mapping struct {
	Contains string `yaml:"contains"`
	Value    string `yaml:"value"`
}

// Rule is one entry of the ordered category table. A modifier matches the
// rule when it contains any of the Triggers. A matched modifier is consumed
// by the rule even when none of the Values resolves it.
type Rule struct {
	Category Category  `yaml:"category"`
	Triggers []string  `yaml:"triggers"`
	Values   []Mapping `yaml:"values"`
}

// Matches reports whether the normalised modifier text mod triggers r.
func (r Rule) Matches(mod string) bool {
	for _, t := range r.Triggers {
		if strings.Contains(mod, t) {
			return true
		}
	}
	return false
}

// Resolve returns the canonical value for the normalised modifier text mod.
// ok is false when the rule matched but has no mapping for mod.
func (r Rule) Resolve(mod string) (value string, ok bool) {
	for _, m := range r.Values {
		if strings.Contains(mod, m.Contains) {
			return m.Value, true
		}
	}
	return "", false
}

// validate checks a single rule. idx is used for error messages only.
func (r Rule) validate(idx int) error {
	var errs []error
	if !r.Category.known() {
		errs = append(errs, fmt.Errorf("rules[%d]: unknown category %q", idx, r.Category))
	}
	if len(r.Triggers) == 0 {
		errs = append(errs, fmt.Errorf("rules[%d]: at least one trigger is required", idx))
	}
	for j, t := range r.Triggers {
		if strings.TrimSpace(t) == "" {
			errs = append(errs, fmt.Errorf("rules[%d].triggers[%d]: must not be empty", idx, j))
		}
	}
	for j, m := range r.Values {
		if m.Value == "" {
			errs = append(errs, fmt.Errorf("rules[%d].values[%d]: value is required", idx, j))
			continue
		}
		if !validSingleton(r.Category, m.Value) {
			errs = append(errs, fmt.Errorf("rules[%d].values[%d]: %q is not a valid %s", idx, j, m.Value, r.Category))
		}
	}
	return errors.Join(errs...)
}

func validSingleton(c Category, value string) bool {
	switch c {
	case CategoryMilk:
		return order.Milk(value).Valid()
	case CategoryIceLevel:
		return order.IceLevel(value).Valid()
	case CategorySweetness:
		return order.Sweetness(value).Valid()
	}
	return true
}

// normalize returns a copy of r with triggers and substrings lower-cased and
// trimmed so they compare against normalised modifier text.
func (r Rule) normalize() Rule {
	out := Rule{
		Category: r.Category,
		Triggers: make([]string, len(r.Triggers)),
		Values:   make([]Mapping, len(r.Values)),
	}
	for i, t := range r.Triggers {
		out.Triggers[i] = normalizeText(t)
	}
	for i, m := range r.Values {
		out.Values[i] = Mapping{Contains: normalizeText(m.Contains), Value: m.Value}
	}
	return out
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateRules checks every rule in rules and returns all problems joined.
func ValidateRules(rules []Rule) error {
	if len(rules) == 0 {
		return errors.New("modifier: rule table is empty")
	}
	var errs []error
	for i, r := range rules {
		if err := r.validate(i); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoadRules decodes a YAML rule table from r. Unknown keys are rejected.
func LoadRules(r io.Reader) ([]Rule, error) {
	var rules []Rule
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&rules); err != nil {
		return nil, fmt.Errorf("modifier: decode rules: %w", err)
	}
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// DefaultRules returns the built-in rule table in priority order. Each call
// returns a fresh slice.
//
// Two triggers are deliberately inert: "sprink" is consumed as an add-in
// without producing a value, and "2% milk", "nonfat" and "protein milk" are
// consumed as milk and clear it.
func DefaultRules() []Rule {
	return []Rule{
		{
			Category: CategoryToppings,
			Triggers: []string{"soft top", "whip", "whipped cream", "foam"},
			Values: []Mapping{
				{Contains: "soft top", Value: order.SoftTop},
				{Contains: "", Value: order.WhippedCream},
			},
		},
		{
			Category: CategoryDrizzles,
			Triggers: []string{"caramel drizzle", "chocolate drizzle", "white chocolate drizzle"},
			Values: []Mapping{
				{Contains: "caramel", Value: order.CaramelDrizzle},
				{Contains: "white chocolate", Value: order.WhiteChocolateDrizzle},
				{Contains: "chocolate", Value: order.ChocolateDrizzle},
			},
		},
		{
			Category: CategoryAddIns,
			Triggers: []string{"boba", "sprink"},
			Values: []Mapping{
				{Contains: "boba", Value: order.Boba},
			},
		},
		{
			Category: CategoryMilk,
			Triggers: []string{"oat milk", "almond milk", "coconut milk", "2% milk", "nonfat", "protein milk"},
			Values: []Mapping{
				{Contains: "oat", Value: string(order.OatMilk)},
				{Contains: "almond", Value: string(order.AlmondMilk)},
				{Contains: "coconut", Value: string(order.CoconutMilk)},
			},
		},
		{
			Category: CategoryIceLevel,
			Triggers: []string{"no ice", "light ice", "extra ice"},
			Values: []Mapping{
				{Contains: "no ice", Value: string(order.NoIce)},
				{Contains: "light ice", Value: string(order.LightIce)},
				{Contains: "extra ice", Value: string(order.ExtraIce)},
			},
		},
		{
			Category: CategorySweetness,
			Triggers: []string{"extra sweet", "half sweet", "less sweet"},
			Values: []Mapping{
				{Contains: "extra sweet", Value: string(order.ExtraSweet)},
				{Contains: "half sweet", Value: string(order.HalfSweet)},
				{Contains: "less sweet", Value: string(order.HalfSweet)},
			},
		},
		{
			Category: CategoryEspresso,
			Triggers: []string{"extra shot", "double shot", "decaf"},
			Values: []Mapping{
				{Contains: "decaf", Value: order.MakeItDecaf},
				{Contains: "shot", Value: order.ExtraShot},
			},
		},
	}
}
