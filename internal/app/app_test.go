package app_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/voxorder/internal/app"
	"github.com/MrWong99/voxorder/internal/config"
	"github.com/MrWong99/voxorder/internal/observe"
	"github.com/MrWong99/voxorder/internal/pricing"
	"github.com/MrWong99/voxorder/pkg/provider/llm"
	llmmock "github.com/MrWong99/voxorder/pkg/provider/llm/mock"
)

const rebelAnswer = `[{"product":"rebel","size":"medium","temp":"iced","mods":["sugar free vanilla"],"qty":2,"is_new_item":true}]`

// ── helpers ──────────────────────────────────────────────────────────────────

func testConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	return cfg
}

func testMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func newApp(t *testing.T, cfg *config.Config, p llm.Provider, opts ...app.Option) *app.App {
	t.Helper()
	m, _ := testMetrics(t)
	a, err := app.New(context.Background(), cfg, p, append([]app.Option{app.WithMetrics(m)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func rebelProvider() *llmmock.Provider {
	return &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: rebelAnswer}}
}

func linePrice(t *testing.T, a *app.App) float64 {
	t.Helper()
	res, err := a.Extractor().Process(context.Background(), "two medium iced sugar free vanilla rebels")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Document.Items) != 1 {
		t.Fatalf("items = %+v, want one line", res.Document.Items)
	}
	return res.Document.Items[0].Price
}

// ── New ──────────────────────────────────────────────────────────────────────

func TestNew_DefaultMenu(t *testing.T) {
	t.Parallel()
	a := newApp(t, testConfig(t, ""), rebelProvider())

	if got := linePrice(t, a); got != 6.75 {
		t.Errorf("rebel price = %v, want 6.75 from the built-in menu", got)
	}
	menu, err := a.Menu(context.Background())
	if err != nil {
		t.Fatalf("Menu: %v", err)
	}
	if menu["golden eagle"] != 6.25 {
		t.Errorf("menu = %v, want the built-in menu", menu)
	}
}

func TestNew_ConfiguredMenuAndFallback(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, `
pricing:
  fallback_price: 4.25
  menu:
    latte: 4.80
`)
	a := newApp(t, cfg, rebelProvider())

	if got := linePrice(t, a); got != 4.25 {
		t.Errorf("rebel price = %v, want the 4.25 fallback", got)
	}
	menu, _ := a.Menu(context.Background())
	if len(menu) != 1 || menu["latte"] != 4.80 {
		t.Errorf("menu = %v, want only latte", menu)
	}
}

func TestNew_InjectedLookupWins(t *testing.T) {
	t.Parallel()
	lookup := pricing.LookupFunc(func(_ context.Context, key string) (float64, bool, error) {
		if key == "rebel" {
			return 9.10, true, nil
		}
		return 0, false, nil
	})
	a := newApp(t, testConfig(t, ""), rebelProvider(), app.WithLookup(lookup))

	if got := linePrice(t, a); got != 9.10 {
		t.Errorf("rebel price = %v, want 9.10 from the injected lookup", got)
	}
}

func TestNew_FuzzyPricing(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: `[{"product":"golden eagles","qty":1}]`,
	}}
	cfg := testConfig(t, `
pricing:
  fuzzy:
    enabled: true
`)
	a := newApp(t, cfg, p)

	res, err := a.Extractor().Process(context.Background(), "a golden eagles please")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Document.Items) != 1 || res.Document.Items[0].Price != 6.25 {
		t.Errorf("items = %+v, want golden eagle priced at 6.25", res.Document.Items)
	}
}

func TestHandler_ServesOrdersAndHealth(t *testing.T) {
	t.Parallel()
	a := newApp(t, testConfig(t, ""), rebelProvider())
	srv := httptest.NewServer(a.Server().Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/v1/orders", "application/json",
		strings.NewReader(`{"transcript":"two rebels"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("POST /v1/orders = %d, want 200", resp.StatusCode)
	}

	for _, path := range []string{"/healthz", "/readyz", "/v1/menu"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

// ── Apply ────────────────────────────────────────────────────────────────────

func TestApply_RepricesWithoutRestart(t *testing.T) {
	t.Parallel()
	old := testConfig(t, "")
	a := newApp(t, old, rebelProvider())

	next := testConfig(t, `
pricing:
  menu:
    rebel: 7.00
`)
	a.Apply(context.Background(), old, next)

	if got := linePrice(t, a); got != 7.00 {
		t.Errorf("rebel price after reload = %v, want 7.00", got)
	}
	menu, _ := a.Menu(context.Background())
	if menu["rebel"] != 7.00 {
		t.Errorf("menu after reload = %v", menu)
	}
}

func TestApply_ValidationTightened(t *testing.T) {
	t.Parallel()
	old := testConfig(t, "")
	a := newApp(t, old, rebelProvider())

	next := testConfig(t, `
validation:
  max_quantity: 1
`)
	a.Apply(context.Background(), old, next)

	res, err := a.Extractor().Process(context.Background(), "two rebels")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Document.Items) != 0 || len(res.Rejected) != 1 {
		t.Errorf("items = %+v rejected = %+v, want the qty 2 line rejected", res.Document.Items, res.Rejected)
	}
}

func TestApply_LogLevel(t *testing.T) {
	t.Parallel()
	var level slog.LevelVar
	old := testConfig(t, "")
	a := newApp(t, old, rebelProvider(), app.WithLevelVar(&level))

	a.Apply(context.Background(), old, testConfig(t, "server:\n  log_level: debug\n"))
	if level.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level.Level())
	}
}

func TestApply_RestartOnlyChangesKeepSettings(t *testing.T) {
	t.Parallel()
	old := testConfig(t, "")
	a := newApp(t, old, rebelProvider())
	before := a.Extractor().Settings()

	a.Apply(context.Background(), old, testConfig(t, "server:\n  listen_addr: \":9999\"\n"))
	if after := a.Extractor().Settings(); after.Assembler != before.Assembler {
		t.Error("a restart-only change replaced the pipeline settings")
	}
}

// ── BuildProvider ────────────────────────────────────────────────────────────

func TestBuildProvider_FailsOver(t *testing.T) {
	t.Parallel()
	primary := &llmmock.Provider{CompleteErr: errors.New("503")}
	backup := rebelProvider()
	byName := map[string]*llmmock.Provider{"primary": primary, "backup": backup}

	reg := config.NewRegistry()
	for name, p := range byName {
		reg.RegisterLLM(name, func(config.ProviderEntry) (llm.Provider, error) { return p, nil })
	}
	cfg := testConfig(t, `
providers:
  llm: {name: primary, model: big}
  llm_fallbacks:
    - {name: backup, model: small}
`)
	m, reader := testMetrics(t)

	fb, err := app.BuildProvider(cfg, reg, m)
	if err != nil {
		t.Fatalf("BuildProvider: %v", err)
	}
	if got := fb.Providers(); len(got) != 2 || got[0] != "primary/big" || got[1] != "backup/small#1" {
		t.Errorf("Providers = %v", got)
	}

	resp, err := fb.Complete(context.Background(), llm.Prompt("x"))
	if err != nil || resp.Content != rebelAnswer {
		t.Fatalf("Complete = %v, %v; want the backup answer", resp, err)
	}
	if len(primary.Calls()) != 1 || len(backup.Calls()) != 1 {
		t.Errorf("calls primary=%d backup=%d, want 1 each", len(primary.Calls()), len(backup.Calls()))
	}

	// Default max_failures is 5; trip the primary and expect a transition.
	for range 5 {
		_, _ = fb.Complete(context.Background(), llm.Prompt("x"))
	}
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name == "voxorder.breaker.transitions" {
				found = true
			}
		}
	}
	if !found {
		t.Error("breaker transition was not recorded")
	}
}

func TestBuildProvider_Errors(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	if _, err := app.BuildProvider(testConfig(t, ""), reg, nil); !errors.Is(err, app.ErrNoProvider) {
		t.Errorf("no provider: err = %v, want ErrNoProvider", err)
	}

	cfg := testConfig(t, "providers:\n  llm: {name: nowhere}\n")
	if _, err := app.BuildProvider(cfg, reg, nil); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("unregistered: err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestNew_ReadyzReportsOpenCircuits(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.RegisterLLM("down", func(config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{CompleteErr: errors.New("down")}, nil
	})
	cfg := testConfig(t, `
providers:
  llm: {name: down}
  breaker: {max_failures: 1, reset_timeout: 1h}
`)
	fb, err := app.BuildProvider(cfg, reg, nil)
	if err != nil {
		t.Fatalf("BuildProvider: %v", err)
	}
	a := newApp(t, cfg, fb)
	_, _ = fb.Complete(context.Background(), llm.Prompt("x"))

	rec := httptest.NewRecorder()
	a.Server().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz = %d, want 503 with every circuit open", rec.Code)
	}
}

// ── lifecycle ────────────────────────────────────────────────────────────────

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()
	a := newApp(t, testConfig(t, ""), rebelProvider())
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}

func TestRun_StopsWithContext(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, "server:\n  listen_addr: \"127.0.0.1:0\"\n")
	a := newApp(t, cfg, rebelProvider())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := map[config.LogLevel]slog.Level{
		config.LogDebug: slog.LevelDebug,
		config.LogInfo:  slog.LevelInfo,
		config.LogWarn:  slog.LevelWarn,
		config.LogError: slog.LevelError,
		"":              slog.LevelInfo,
	}
	for in, want := range cases {
		if got := app.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
