package order

import "encoding/json"

// Milk is the single alternative-milk choice of an item.
type Milk string

const (
	OatMilk     Milk = "Oat Milk"
	AlmondMilk  Milk = "Almond Milk"
	CoconutMilk Milk = "Coconut Milk"
)

// IceLevel is the single ice-level choice of an item.
type IceLevel string

const (
	NoIce    IceLevel = "No Ice"
	LightIce IceLevel = "Light Ice"
	ExtraIce IceLevel = "Extra Ice"
)

// Sweetness is the single sweetness choice of an item.
type Sweetness string

const (
	ExtraSweet Sweetness = "Extra Sweet"
	HalfSweet  Sweetness = "Half Sweet"
)

// Well-known values for the set-valued categories.
const (
	SoftTop      = "Soft Top"
	WhippedCream = "Whipped Cream"

	CaramelDrizzle        = "Caramel Drizzle"
	ChocolateDrizzle      = "Chocolate Drizzle"
	WhiteChocolateDrizzle = "White Chocolate Drizzle"

	Boba = "Boba"

	ExtraShot   = "Extra Shot"
	MakeItDecaf = "Make it Decaf"
)

// ModifierSet is the categorised form of an item's free-text modifiers.
//
// Set-valued fields keep every matched value in input order, duplicates
// included. They are never nil on a set produced by the modifier package so
// that they encode as [] rather than null.
type ModifierSet struct {
	Toppings         []string   `json:"toppings"`
	Drizzles         []string   `json:"drizzles"`
	AddIns           []string   `json:"add_ins"`
	Milk             *Milk      `json:"milk"`
	IceLevel         *IceLevel  `json:"ice_level"`
	Sweetness        *Sweetness `json:"sweetness"`
	LiquidSweetener  []string   `json:"liquid_sweetener"`
	SweetenerPackets []string   `json:"sweetener_packets"`
	Espresso         []string   `json:"espresso"`
}

// EmptyModifierSet returns a set with every slice initialised and every
// singleton unset.
func EmptyModifierSet() ModifierSet {
	return ModifierSet{
		Toppings:         []string{},
		Drizzles:         []string{},
		AddIns:           []string{},
		LiquidSweetener:  []string{},
		SweetenerPackets: []string{},
		Espresso:         []string{},
	}
}

// Canonical returns a deterministic serialisation of m. Two structurally equal
// sets always produce the same string: struct fields encode in declaration
// order and nil and empty slices are normalised.
func (m ModifierSet) Canonical() string {
	n := m.normalized()
	b, err := json.Marshal(n)
	if err != nil {
		// Only strings and string pointers are encoded; this cannot fail.
		return ""
	}
	return string(b)
}

// Categories returns the non-empty categories of m keyed by their JSON name,
// in declaration order. Used for human-readable summaries.
func (m ModifierSet) Categories() []Category {
	var out []Category
	add := func(name string, vals []string) {
		if len(vals) > 0 {
			out = append(out, Category{Name: name, Values: vals})
		}
	}
	add("toppings", m.Toppings)
	add("drizzles", m.Drizzles)
	add("add_ins", m.AddIns)
	if m.Milk != nil {
		add("milk", []string{string(*m.Milk)})
	}
	if m.IceLevel != nil {
		add("ice_level", []string{string(*m.IceLevel)})
	}
	if m.Sweetness != nil {
		add("sweetness", []string{string(*m.Sweetness)})
	}
	add("liquid_sweetener", m.LiquidSweetener)
	add("sweetener_packets", m.SweetenerPackets)
	add("espresso", m.Espresso)
	return out
}

// Category is a named, non-empty modifier category.
type Category struct {
	Name   string
	Values []string
}

func (m ModifierSet) normalized() ModifierSet {
	nz := func(s []string) []string {
		if s == nil {
			return []string{}
		}
		return s
	}
	m.Toppings = nz(m.Toppings)
	m.Drizzles = nz(m.Drizzles)
	m.AddIns = nz(m.AddIns)
	m.LiquidSweetener = nz(m.LiquidSweetener)
	m.SweetenerPackets = nz(m.SweetenerPackets)
	m.Espresso = nz(m.Espresso)
	return m
}

// MarshalJSON encodes m with empty categories as [] rather than null.
func (m ModifierSet) MarshalJSON() ([]byte, error) {
	type plain ModifierSet
	return json.Marshal(plain(m.normalized()))
}

// Valid reports whether m is one of the known milk choices.
func (m Milk) Valid() bool {
	switch m {
	case OatMilk, AlmondMilk, CoconutMilk:
		return true
	}
	return false
}

// Valid reports whether l is one of the known ice levels.
func (l IceLevel) Valid() bool {
	switch l {
	case NoIce, LightIce, ExtraIce:
		return true
	}
	return false
}

// Valid reports whether s is one of the known sweetness levels.
func (s Sweetness) Valid() bool {
	switch s {
	case ExtraSweet, HalfSweet:
		return true
	}
	return false
}
