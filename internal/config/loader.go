package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/voxorder/internal/order"
	"github.com/MrWong99/voxorder/internal/order/modifier"
)

// ValidLLMProviders lists the provider names registered by the service.
// Used by [Validate] to warn about unrecognised names.
var ValidLLMProviders = []string{
	"openai", "openai-compat", "anthropic", "ollama", "gemini", "deepseek",
	"mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It expects
// [ApplyDefaults] to have run first.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LogFormat != "" && !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}
	if cfg.Server.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.request_timeout %v must not be negative", cfg.Server.RequestTimeout))
	}
	if cfg.Server.BatchConcurrency < 0 {
		errs = append(errs, fmt.Errorf("server.batch_concurrency %d must not be negative", cfg.Server.BatchConcurrency))
	}

	// Providers
	seen := make(map[string]string)
	entries := append([]ProviderEntry{cfg.Providers.LLM}, cfg.Providers.LLMFallbacks...)
	for i, e := range entries {
		prefix := "providers.llm"
		if i > 0 {
			prefix = fmt.Sprintf("providers.llm_fallbacks[%d]", i-1)
		}
		if e.Name == "" {
			if i > 0 {
				errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			}
			continue
		}
		validateProviderName(prefix, e.Name)
		id := e.Name + "/" + e.Model
		if prev, ok := seen[id]; ok {
			errs = append(errs, fmt.Errorf("%s duplicates %s (%s)", prefix, prev, id))
		}
		seen[id] = prefix
	}
	if cfg.Providers.LLM.Name == "" && len(cfg.Providers.LLMFallbacks) > 0 {
		errs = append(errs, errors.New("providers.llm_fallbacks requires providers.llm"))
	}
	b := cfg.Providers.Breaker
	if b.MaxFailures < 0 || b.HalfOpenMax < 0 || b.ResetTimeout < 0 {
		errs = append(errs, errors.New("providers.breaker values must not be negative"))
	}

	// Extraction
	x := cfg.Extraction
	if x.Timeout < 0 {
		errs = append(errs, fmt.Errorf("extraction.timeout %v must not be negative", x.Timeout))
	}
	if x.Temperature < 0 || x.Temperature > 2 {
		errs = append(errs, fmt.Errorf("extraction.temperature %.2f is out of range [0, 2]", x.Temperature))
	}
	if x.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("extraction.max_tokens %d must not be negative", x.MaxTokens))
	}
	if x.TopP < 0 || x.TopP > 1 {
		errs = append(errs, fmt.Errorf("extraction.top_p %.2f is out of range [0, 1]", x.TopP))
	}

	// Rules
	if len(cfg.Rules) > 0 {
		if err := modifier.ValidateRules(cfg.Rules); err != nil {
			errs = append(errs, fmt.Errorf("rules: %w", err))
		}
	}

	// Validation
	v := cfg.Validation
	// Configured bounds may only tighten the built-in ones.
	if v.MinQuantity < order.MinQuantity || v.MinQuantity > order.MaxQuantity {
		errs = append(errs, fmt.Errorf("validation.min_quantity %d is out of range [%d, %d]", v.MinQuantity, order.MinQuantity, order.MaxQuantity))
	}
	if v.MaxQuantity < order.MinQuantity || v.MaxQuantity > order.MaxQuantity {
		errs = append(errs, fmt.Errorf("validation.max_quantity %d is out of range [%d, %d]", v.MaxQuantity, order.MinQuantity, order.MaxQuantity))
	}
	if v.MinQuantity > v.MaxQuantity {
		errs = append(errs, fmt.Errorf("validation.min_quantity %d exceeds max_quantity %d", v.MinQuantity, v.MaxQuantity))
	}
	if v.MinProductLength < order.MinProductLength {
		errs = append(errs, fmt.Errorf("validation.min_product_length %d is below %d", v.MinProductLength, order.MinProductLength))
	}

	// Pricing
	p := cfg.Pricing
	if p.FallbackPrice < 0 {
		errs = append(errs, fmt.Errorf("pricing.fallback_price %.2f must not be negative", p.FallbackPrice))
	}
	if p.ConfirmThreshold < 0 || p.ConfirmThreshold > 1 {
		errs = append(errs, fmt.Errorf("pricing.confirm_threshold %.2f is out of range [0, 1]", p.ConfirmThreshold))
	}
	for product, price := range p.Menu {
		if price < 0 {
			errs = append(errs, fmt.Errorf("pricing.menu[%q] %.2f must not be negative", product, price))
		}
	}
	if p.Fuzzy.Threshold < 0 || p.Fuzzy.Threshold > 1 {
		errs = append(errs, fmt.Errorf("pricing.fuzzy.threshold %.2f is out of range [0, 1]", p.Fuzzy.Threshold))
	}
	if p.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("pricing.cache_ttl %v must not be negative", p.CacheTTL))
	}
	if p.RedisURL != "" && p.PostgresDSN == "" {
		slog.Warn("pricing.redis_url is set without pricing.postgres_dsn; the cache will front the static menu")
	}
	if p.ArchiveOrders && p.PostgresDSN == "" {
		errs = append(errs, errors.New("pricing.archive_orders requires pricing.postgres_dsn"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is not a known provider.
func validateProviderName(field, name string) {
	if slices.Contains(ValidLLMProviders, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"field", field,
		"name", name,
		"known", ValidLLMProviders,
	)
}
