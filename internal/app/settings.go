package app

import (
	"fmt"

	"github.com/MrWong99/voxorder/internal/config"
	"github.com/MrWong99/voxorder/internal/extract"
	"github.com/MrWong99/voxorder/internal/order/assemble"
	"github.com/MrWong99/voxorder/internal/order/modifier"
	"github.com/MrWong99/voxorder/internal/order/score"
	"github.com/MrWong99/voxorder/internal/pricing"
)

// BuildSettings builds the hot-swappable pipeline stages from cfg. dynamic,
// if non-nil, is consulted for prices before the static menu.
//
// Price resolution order: dynamic lookup, exact menu entry, then phonetic
// menu match when pricing.fuzzy is enabled. The returned table is the static
// menu in effect.
func BuildSettings(cfg *config.Config, dynamic pricing.Lookup) (extract.Settings, *pricing.Table, error) {
	categorizer := modifier.Default()
	if len(cfg.Rules) > 0 {
		c, err := modifier.New(cfg.Rules)
		if err != nil {
			return extract.Settings{}, nil, fmt.Errorf("app: rules: %w", err)
		}
		categorizer = c
	}

	v := cfg.Validation
	vopts := []score.Option{
		score.WithQuantityRange(v.MinQuantity, v.MaxQuantity),
		score.WithMinProductLength(v.MinProductLength),
	}
	if len(v.Blocklist) > 0 {
		vopts = append(vopts, score.WithBlocklist(v.Blocklist))
	}

	menu := cfg.Pricing.Menu
	if len(menu) == 0 {
		menu = pricing.DefaultMenu()
	}
	table := pricing.NewTable(menu)

	var lookups []pricing.Lookup
	if dynamic != nil {
		lookups = append(lookups, dynamic)
	}
	lookups = append(lookups, table)
	if f := cfg.Pricing.Fuzzy; f.Enabled {
		var fopts []pricing.FuzzyOption
		if f.Threshold > 0 {
			fopts = append(fopts, pricing.WithFuzzyThreshold(f.Threshold))
		}
		lookups = append(lookups, pricing.NewFuzzy(table, fopts...))
	}

	return extract.Settings{
		Categorizer: categorizer,
		Validator:   score.NewValidator(vopts...),
		Assembler: assemble.New(pricing.Chain(lookups...),
			assemble.WithFallbackPrice(cfg.Pricing.FallbackPrice),
			assemble.WithConfirmThreshold(cfg.Pricing.ConfirmThreshold),
		),
	}, table, nil
}
