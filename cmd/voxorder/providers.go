package main

import (
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/voxorder/internal/config"
	"github.com/MrWong99/voxorder/pkg/provider/llm"
	"github.com/MrWong99/voxorder/pkg/provider/llm/anyllm"
	"github.com/MrWong99/voxorder/pkg/provider/llm/openai"
)

// anyllmBackends are served through any-llm-go. They share the same pattern:
// optional APIKey + optional BaseURL.
var anyllmBackends = []string{
	"openai", "anthropic", "gemini",
	"deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// registerBuiltinProviders wires all built-in LLM factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	for _, providerName := range anyllmBackends {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			p, err := anyllm.New(providerName, entry.Model, opts...)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		p, err := anyllm.NewOllama(entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	// openai-compat talks to any OpenAI-compatible endpoint through the
	// official SDK, with optional organization and request_timeout options.
	reg.RegisterLLM("openai-compat", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if raw := optString(entry.Options, "request_timeout"); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return nil, err
			}
			opts = append(opts, openai.WithTimeout(d))
		}
		p, err := openai.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	for _, name := range reg.LLMNames() {
		slog.Debug("registered provider", "kind", "llm", "name", name)
	}
}

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}
