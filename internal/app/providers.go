package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/voxorder/internal/config"
	"github.com/MrWong99/voxorder/internal/observe"
	"github.com/MrWong99/voxorder/internal/resilience"
)

// ErrNoProvider is returned by [BuildProvider] when providers.llm is unset.
var ErrNoProvider = errors.New("app: providers.llm is not configured")

// BuildProvider instantiates the configured model and its fallbacks through
// reg and puts them behind circuit breakers. Breaker transitions are counted
// on m.
func BuildProvider(cfg *config.Config, reg *config.Registry, m *observe.Metrics) (*resilience.LLMFallback, error) {
	pc := cfg.Providers
	if pc.LLM.Name == "" {
		return nil, ErrNoProvider
	}

	fbCfg := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  pc.Breaker.MaxFailures,
			ResetTimeout: pc.Breaker.ResetTimeout,
			HalfOpenMax:  pc.Breaker.HalfOpenMax,
			OnStateChange: func(name string, to resilience.State) {
				if m != nil {
					m.RecordBreakerTransition(context.Background(), name, to.String())
				}
			},
		},
	}

	primary, err := reg.CreateLLM(pc.LLM)
	if err != nil {
		return nil, err
	}
	fb := resilience.NewLLMFallback(primary, providerLabel(pc.LLM, 0), fbCfg)
	for i, entry := range pc.LLMFallbacks {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("app: fallback %d: %w", i, err)
		}
		fb.AddFallback(providerLabel(entry, i+1), p)
	}
	return fb, nil
}

// providerLabel names a provider for logs and metrics. The index keeps two
// entries of the same backend apart.
func providerLabel(e config.ProviderEntry, idx int) string {
	label := e.Name
	if e.Model != "" {
		label += "/" + e.Model
	}
	if idx > 0 {
		label = fmt.Sprintf("%s#%d", label, idx)
	}
	return label
}

// llmReady reports an error when every backend's breaker is open.
func llmReady(fb *resilience.LLMFallback) func(context.Context) error {
	return func(context.Context) error {
		for _, name := range fb.Providers() {
			if b := fb.Breaker(name); b != nil && b.State() != resilience.StateOpen {
				return nil
			}
		}
		return errors.New("every provider circuit is open")
	}
}
