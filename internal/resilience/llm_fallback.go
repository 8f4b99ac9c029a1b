package resilience

import (
	"context"

	"github.com/MrWong99/voxorder/pkg/provider/llm"
)

// LLMFallback is an [llm.Provider] that fails over across several backends.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback returns an LLMFallback preferring primary.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers another backend, tried after those already added.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Providers returns the backend names in try order.
func (f *LLMFallback) Providers() []string { return f.group.Names() }

// Breaker returns the breaker guarding the named backend, or nil.
func (f *LLMFallback) Breaker(name string) *CircuitBreaker { return f.group.Breaker(name) }

// Complete sends req to the first healthy backend.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(ctx, f.group, func(ctx context.Context, p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}
