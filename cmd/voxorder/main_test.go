package main

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voxorder/internal/config"
	"github.com/MrWong99/voxorder/internal/extract"
	"github.com/MrWong99/voxorder/internal/order"
)

func ptr[T any](v T) *T { return &v }

func TestReadTranscript(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "t.txt")
	if err := os.WriteFile(path, []byte("  a rebel please \n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		text    string
		file    string
		stdin   string
		want    string
		wantErr bool
	}{
		{name: "flag text", text: "a mocha", want: "a mocha"},
		{name: "file trimmed", file: path, want: "a rebel please"},
		{name: "stdin", file: "-", stdin: "golden eagle\n", want: "golden eagle"},
		{name: "both", text: "x", file: path, wantErr: true},
		{name: "neither", wantErr: true},
		{name: "missing file", file: filepath.Join(t.TempDir(), "nope"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := readTranscript(tt.text, tt.file, strings.NewReader(tt.stdin))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("transcript = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintSummary(t *testing.T) {
	t.Parallel()

	mods := order.EmptyModifierSet()
	mods.Toppings = []string{order.SoftTop}
	mods.Milk = ptr(order.OatMilk)
	res := &extract.Result{
		Document: order.Document{
			Confidence: 0.75,
			Items: []order.Line{
				{Name: "Mocha", Size: ptr("large"), Temperature: ptr("hot"), Quantity: 1,
					Price: 5, Confidence: 1, Status: order.StatusConfirmed, Modifiers: mods,
					SpecialInstructions: "light foam"},
				{Name: "Rebel", Quantity: 2, Price: 13.5, Confidence: 0.5, Status: order.StatusReview,
					Modifiers: order.EmptyModifierSet()},
			},
			Subtotal: 18.5,
			Total:    18.5,
		},
		Rejected: []order.Rejection{{
			Item:   order.ScoredItem{CategorizedItem: order.CategorizedItem{Product: "thanks"}},
			Kind:   "blocklist",
			Reason: "blocklisted word",
		}},
		Parsed:  3,
		Latency: 1500 * time.Millisecond,
	}

	var buf bytes.Buffer
	printSummary(&buf, res)
	out := buf.String()

	for _, want := range []string{
		"Extracted 2 item(s) in 1.5s (3 parsed, 0 duplicate, 1 rejected)",
		"✓ Mocha (large, hot, x1) $5.00  100%",
		"toppings: Soft Top",
		"milk: Oat Milk",
		"note: light foam",
		"? Rebel (-, -, x2) $13.50  50%",
		"✗ thanks: blocklisted word",
		"Subtotal: $18.50  Total: $18.50  Confidence: 75%",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "drizzles") {
		t.Errorf("summary lists an empty category\n%s", out)
	}
}

func TestOptString(t *testing.T) {
	t.Parallel()
	opts := map[string]any{"organization": "org-1", "retries": 3}
	if got := optString(opts, "organization"); got != "org-1" {
		t.Errorf("organization = %q", got)
	}
	if got := optString(opts, "retries"); got != "" {
		t.Errorf("non-string option = %q, want empty", got)
	}
	if got := optString(nil, "x"); got != "" {
		t.Errorf("nil map = %q, want empty", got)
	}
}

func TestRegisterBuiltinProviders(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	names := reg.LLMNames()
	for _, want := range []string{"anthropic", "ollama", "openai", "openai-compat"} {
		if !slices.Contains(names, want) {
			t.Errorf("LLMNames = %v, missing %q", names, want)
		}
	}

	_, err := reg.CreateLLM(config.ProviderEntry{
		Name:    "openai-compat",
		Model:   "gpt-4o-mini",
		Options: map[string]any{"request_timeout": "soon"},
	})
	if err == nil {
		t.Error("invalid request_timeout accepted")
	}
}
