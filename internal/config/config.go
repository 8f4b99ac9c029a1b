// Package config provides the configuration schema, loader, provider
// registry and file watcher for the voxorder service.
package config

import (
	"time"

	"github.com/MrWong99/voxorder/internal/order/modifier"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogFormatText || f == LogFormatJSON
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Extraction ExtractionConfig `yaml:"extraction"`

	// Rules replaces the built-in modifier rule table when non-empty.
	Rules []modifier.Rule `yaml:"rules"`

	Validation ValidationConfig `yaml:"validation"`
	Pricing    PricingConfig    `yaml:"pricing"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP API listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFormat selects text or JSON log output. Default: text.
	LogFormat LogFormat `yaml:"log_format"`

	// RequestTimeout bounds a single API request. Default: 60s.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// BatchConcurrency caps concurrently processed transcripts per batch
	// request. Default: 4.
	BatchConcurrency int `yaml:"batch_concurrency"`
}

// ProvidersConfig declares the extractor model and its ordered fallbacks.
// Each entry selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	LLM          ProviderEntry   `yaml:"llm"`
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`

	// Breaker tunes the circuit breaker in front of every provider.
	Breaker BreakerConfig `yaml:"breaker"`
}

// ProviderEntry is the configuration block of a single model backend.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "ollama").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// BreakerConfig mirrors the circuit breaker settings. Zero values select the
// breaker defaults.
type BreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}

// ExtractionConfig tunes the model call.
type ExtractionConfig struct {
	// Timeout bounds one model call. Default: 30s.
	Timeout time.Duration `yaml:"timeout"`

	// Temperature is the sampling temperature. Default: 0.0.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps the answer length. Default: 1000.
	MaxTokens int `yaml:"max_tokens"`

	// TopP is the nucleus sampling mass. Default: 0.9.
	TopP float64 `yaml:"top_p"`

	// StructuredOutput asks the model for a schema-constrained
	// {"items": [...]} object instead of a free-form JSON array. Only
	// backends with JSON schema support honour it. Default: false.
	StructuredOutput bool `yaml:"structured_output"`
}

// ValidationConfig tunes the item plausibility checks.
type ValidationConfig struct {
	// Blocklist replaces the built-in noise words when non-empty.
	Blocklist []string `yaml:"blocklist"`

	// MinQuantity and MaxQuantity bound item quantities. Default: [1, 20].
	MinQuantity int `yaml:"min_quantity"`
	MaxQuantity int `yaml:"max_quantity"`

	// MinProductLength is the shortest accepted product name. Default: 2.
	MinProductLength int `yaml:"min_product_length"`
}

// PricingConfig configures price resolution and the order archive.
type PricingConfig struct {
	// FallbackPrice is charged for unknown products. Default: 5.00.
	FallbackPrice float64 `yaml:"fallback_price"`

	// ConfirmThreshold is the confidence at which a line is confirmed.
	// Default: 0.9.
	ConfirmThreshold float64 `yaml:"confirm_threshold"`

	// Menu replaces the built-in demo menu when non-empty.
	Menu map[string]float64 `yaml:"menu"`

	// Fuzzy enables phonetic resolution of misheard product names.
	Fuzzy FuzzyConfig `yaml:"fuzzy"`

	// PostgresDSN enables the database price table and the order archive.
	PostgresDSN string `yaml:"postgres_dsn"`

	// RedisURL enables a read-through cache in front of the database.
	RedisURL string `yaml:"redis_url"`

	// CacheTTL is how long cached prices live. Default: 5m.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// ArchiveOrders stores every processed order in Postgres.
	ArchiveOrders bool `yaml:"archive_orders"`
}

// FuzzyConfig tunes phonetic menu matching.
type FuzzyConfig struct {
	Enabled bool `yaml:"enabled"`

	// Threshold is the minimum similarity for a match. Default: 0.85.
	Threshold float64 `yaml:"threshold"`
}

// Defaults.
const (
	DefaultListenAddr       = ":8080"
	DefaultRequestTimeout   = 60 * time.Second
	DefaultBatchConcurrency = 4
	DefaultExtractTimeout   = 30 * time.Second
	DefaultMaxTokens        = 1000
	DefaultTopP             = 0.9
	DefaultMinQuantity      = 1
	DefaultMaxQuantity      = 20
	DefaultMinProductLength = 2
	DefaultFallbackPrice    = 5.00
	DefaultConfirmThreshold = 0.9
	DefaultCacheTTL         = 5 * time.Minute
)

// ApplyDefaults fills zero-valued fields with their defaults. Temperature is
// left alone because zero is its default.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if s.LogFormat == "" {
		s.LogFormat = LogFormatText
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = DefaultRequestTimeout
	}
	if s.BatchConcurrency == 0 {
		s.BatchConcurrency = DefaultBatchConcurrency
	}

	e := &cfg.Extraction
	if e.Timeout == 0 {
		e.Timeout = DefaultExtractTimeout
	}
	if e.MaxTokens == 0 {
		e.MaxTokens = DefaultMaxTokens
	}
	if e.TopP == 0 {
		e.TopP = DefaultTopP
	}

	v := &cfg.Validation
	if v.MinQuantity == 0 {
		v.MinQuantity = DefaultMinQuantity
	}
	if v.MaxQuantity == 0 {
		v.MaxQuantity = DefaultMaxQuantity
	}
	if v.MinProductLength == 0 {
		v.MinProductLength = DefaultMinProductLength
	}

	p := &cfg.Pricing
	if p.FallbackPrice == 0 {
		p.FallbackPrice = DefaultFallbackPrice
	}
	if p.ConfirmThreshold == 0 {
		p.ConfirmThreshold = DefaultConfirmThreshold
	}
	if p.CacheTTL == 0 {
		p.CacheTTL = DefaultCacheTTL
	}
}
