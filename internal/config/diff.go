package config

import (
	"maps"
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs. The hot-reloadable
// sections are tracked individually; everything else is listed in
// RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RulesChanged is set when the modifier rule table changed.
	RulesChanged bool

	// ValidationChanged is set when blocklist or bounds changed.
	ValidationChanged bool

	// PricingChanged is set when the menu, fallback price, confirm threshold
	// or fuzzy settings changed.
	PricingChanged bool

	// RestartRequired names changed sections that only take effect after a
	// restart.
	RestartRequired []string
}

// Reloadable reports whether any hot-reloadable section changed.
func (d ConfigDiff) Reloadable() bool {
	return d.LogLevelChanged || d.RulesChanged || d.ValidationChanged || d.PricingChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.RulesChanged = !reflect.DeepEqual(old.Rules, new.Rules)
	d.ValidationChanged = !slices.Equal(old.Validation.Blocklist, new.Validation.Blocklist) ||
		old.Validation.MinQuantity != new.Validation.MinQuantity ||
		old.Validation.MaxQuantity != new.Validation.MaxQuantity ||
		old.Validation.MinProductLength != new.Validation.MinProductLength

	op, np := old.Pricing, new.Pricing
	d.PricingChanged = !maps.Equal(op.Menu, np.Menu) ||
		op.FallbackPrice != np.FallbackPrice ||
		op.ConfirmThreshold != np.ConfirmThreshold ||
		op.Fuzzy != np.Fuzzy

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Server.LogFormat != new.Server.LogFormat ||
		old.Server.RequestTimeout != new.Server.RequestTimeout ||
		old.Server.BatchConcurrency != new.Server.BatchConcurrency {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Extraction != new.Extraction {
		d.RestartRequired = append(d.RestartRequired, "extraction")
	}
	if op.PostgresDSN != np.PostgresDSN || op.RedisURL != np.RedisURL ||
		op.CacheTTL != np.CacheTTL || op.ArchiveOrders != np.ArchiveOrders {
		d.RestartRequired = append(d.RestartRequired, "pricing.storage")
	}
	return d
}
