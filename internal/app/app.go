// Package app wires the voxorder subsystems into a running service.
//
// New builds the price lookups, the extractor and the HTTP server from the
// config; Run serves until the context ends; Apply hot-swaps the parts of a
// changed config that can change without a restart; Shutdown releases
// database and cache connections.
//
// For tests, inject doubles via options (WithLookup, WithArchive, ...). When
// an option is not provided, New creates real implementations from the
// config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrWong99/voxorder/internal/config"
	"github.com/MrWong99/voxorder/internal/extract"
	"github.com/MrWong99/voxorder/internal/health"
	"github.com/MrWong99/voxorder/internal/observe"
	"github.com/MrWong99/voxorder/internal/pricing"
	"github.com/MrWong99/voxorder/internal/pricing/postgres"
	"github.com/MrWong99/voxorder/internal/pricing/rediscache"
	"github.com/MrWong99/voxorder/internal/resilience"
	"github.com/MrWong99/voxorder/internal/server"
	"github.com/MrWong99/voxorder/pkg/provider/llm"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 15 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg      *config.Config
	provider llm.Provider
	metrics  *observe.Metrics
	level    *slog.LevelVar

	// Storage, set up in New when configured.
	store   *postgres.Store
	rdb     *redis.Client
	cache   *rediscache.Cache
	dynamic pricing.Lookup
	archive server.Archive

	table     atomic.Pointer[pricing.Table]
	extractor *extract.Extractor
	server    *server.Server
	checkers  []health.Checker

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics records metrics on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar lets [App.Apply] change the log level at runtime.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithLookup injects the dynamic price lookup instead of connecting to
// pricing.postgres_dsn.
func WithLookup(l pricing.Lookup) Option {
	return func(a *App) { a.dynamic = l }
}

// WithArchive injects the order archive instead of the Postgres store.
func WithArchive(ar server.Archive) Option {
	return func(a *App) { a.archive = ar }
}

// New creates an App extracting orders with provider.
func New(ctx context.Context, cfg *config.Config, provider llm.Provider, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, provider: provider}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Storage ────────────────────────────────────────────────────────
	if err := a.initStorage(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init storage: %w", err)
	}

	// ── 2. Extractor ──────────────────────────────────────────────────────
	settings, table, err := BuildSettings(cfg, a.dynamic)
	if err != nil {
		a.closeAll()
		return nil, err
	}
	a.table.Store(table)

	x := cfg.Extraction
	a.extractor = extract.New(provider,
		extract.WithTimeout(x.Timeout),
		extract.WithTemperature(x.Temperature),
		extract.WithMaxTokens(x.MaxTokens),
		extract.WithTopP(x.TopP),
		extract.WithStructuredOutput(x.StructuredOutput),
		extract.WithProviderName(providerLabel(cfg.Providers.LLM, 0)),
		extract.WithMetrics(a.metrics),
		extract.WithSettings(settings),
	)

	// ── 3. HTTP server ────────────────────────────────────────────────────
	if fb, ok := provider.(*resilience.LLMFallback); ok {
		a.checkers = append(a.checkers, health.Checker{Name: "llm", Check: llmReady(fb)})
	}
	sopts := []server.Option{
		server.WithMetrics(a.metrics),
		server.WithMenu(a.Menu),
		server.WithHealth(a.checkers...),
		server.WithRequestTimeout(cfg.Server.RequestTimeout),
		server.WithBatchLimit(cfg.Server.BatchConcurrency),
	}
	if a.archive != nil {
		sopts = append(sopts, server.WithArchive(a.archive))
	}
	a.server = server.New(a.extractor, sopts...)

	return a, nil
}

// initStorage connects Postgres and Redis when configured. Without Postgres
// the Redis cache fronts the static menu.
func (a *App) initStorage(ctx context.Context) error {
	p := a.cfg.Pricing
	if a.dynamic != nil {
		return nil
	}

	var backing pricing.Lookup = pricing.LookupFunc(func(ctx context.Context, key string) (float64, bool, error) {
		return a.table.Load().Price(ctx, key)
	})
	if p.PostgresDSN != "" {
		store, err := postgres.NewStore(ctx, p.PostgresDSN)
		if err != nil {
			return err
		}
		a.store = store
		a.closers = append(a.closers, func() error { store.Close(); return nil })
		a.checkers = append(a.checkers, health.Ping("postgres", store))
		if len(p.Menu) > 0 {
			if err := store.SeedPrices(ctx, p.Menu); err != nil {
				return err
			}
		}
		if p.ArchiveOrders && a.archive == nil {
			a.archive = store
		}
		backing = store
		a.dynamic = store
	}

	if p.RedisURL == "" {
		return nil
	}
	rdb, err := rediscache.Dial(ctx, p.RedisURL)
	if err != nil {
		return err
	}
	a.rdb = rdb
	a.closers = append(a.closers, rdb.Close)
	a.checkers = append(a.checkers, health.Checker{
		Name:  "redis",
		Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})
	a.cache = rediscache.New(rdb, backing, p.CacheTTL)
	a.dynamic = a.cache
	slog.Info("price cache enabled", "ttl", p.CacheTTL, "postgres", a.store != nil)
	return nil
}

// Extractor returns the pipeline, for one-shot use without HTTP.
func (a *App) Extractor() *extract.Extractor { return a.extractor }

// Server returns the HTTP front end.
func (a *App) Server() *server.Server { return a.server }

// Menu returns the current price table: the stored prices layered over the
// static menu.
func (a *App) Menu(ctx context.Context) (map[string]float64, error) {
	menu := a.table.Load().Menu()
	if a.store == nil {
		return menu, nil
	}
	stored, err := a.store.Menu(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: menu: %w", err)
	}
	maps.Copy(menu, stored)
	return menu, nil
}

// Run serves HTTP on server.listen_addr until ctx is done.
func (a *App) Run(ctx context.Context) error {
	return a.server.ListenAndServe(ctx, a.cfg.Server.ListenAddr, shutdownTimeout)
}

// Apply hot-swaps rules, validation, pricing and log level from next.
// Changes to other sections are logged and take effect after a restart.
func (a *App) Apply(ctx context.Context, old, next *config.Config) {
	d := config.Diff(old, next)
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart", "sections", d.RestartRequired)
	}
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(ParseLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if !d.RulesChanged && !d.ValidationChanged && !d.PricingChanged {
		return
	}

	settings, table, err := BuildSettings(next, a.dynamic)
	if err != nil {
		slog.Error("config reload rejected", "err", err)
		return
	}
	if d.PricingChanged && a.store != nil && len(next.Pricing.Menu) > 0 {
		if err := a.store.SeedPrices(ctx, next.Pricing.Menu); err != nil {
			slog.Warn("failed to store reloaded menu", "err", err)
		}
	}

	a.table.Store(table)
	if d.PricingChanged && a.cache != nil {
		keys := slices.Concat(slices.Collect(maps.Keys(old.Pricing.Menu)), slices.Collect(maps.Keys(next.Pricing.Menu)))
		if err := a.cache.Invalidate(ctx, keys...); err != nil {
			slog.Warn("failed to invalidate price cache", "err", err)
		}
	}
	a.extractor.Reconfigure(settings)
	slog.Info("pipeline reconfigured",
		"rules", d.RulesChanged,
		"validation", d.ValidationChanged,
		"pricing", d.PricingChanged,
	)
}

// Shutdown releases connections in order. It is safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) closeAll() {
	for _, c := range a.closers {
		_ = c()
	}
}

// ParseLevel maps a config level to slog. Unknown values map to Info.
func ParseLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
