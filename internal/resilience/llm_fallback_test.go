package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/voxorder/pkg/provider/llm"
	llmmock "github.com/MrWong99/voxorder/pkg/provider/llm/mock"
)

func TestLLMFallback_PrimarySuccess(t *testing.T) {
	primary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "[]"}}
	secondary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "unused"}}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	resp, err := fb.Complete(context.Background(), llm.Prompt("hi"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "[]" {
		t.Fatalf("content = %q, want []", resp.Content)
	}
	if len(primary.Calls()) != 1 || len(secondary.Calls()) != 0 {
		t.Fatalf("calls primary=%d secondary=%d, want 1/0", len(primary.Calls()), len(secondary.Calls()))
	}
}

func TestLLMFallback_Failover(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("primary down")}
	secondary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "from secondary"}}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	req := llm.Prompt("a large hot mocha")
	resp, err := fb.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "from secondary" {
		t.Fatalf("content = %q", resp.Content)
	}
	calls := secondary.Calls()
	if len(calls) != 1 || calls[0].Req.Messages[0].Content != "a large hot mocha" {
		t.Errorf("secondary did not receive the original request: %+v", calls)
	}
}

func TestLLMFallback_AllFail(t *testing.T) {
	fb := NewLLMFallback(&llmmock.Provider{CompleteErr: errors.New("a")}, "a", FallbackConfig{})
	fb.AddFallback("b", &llmmock.Provider{CompleteErr: errors.New("b")})

	if _, err := fb.Complete(context.Background(), llm.Prompt("x")); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if got := fb.Providers(); len(got) != 2 || got[0] != "a" {
		t.Errorf("Providers = %v", got)
	}
	if fb.Breaker("a") == nil {
		t.Error("Breaker(a) = nil")
	}
}
