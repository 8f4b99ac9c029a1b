// Command voxorder turns drive-thru conversation transcripts into priced
// order documents.
//
// One-shot mode extracts a single transcript and writes the order JSON:
//
//	voxorder -config config.yaml -transcript "a large hot mocha please"
//
// Serve mode runs the HTTP API with config hot reload:
//
//	voxorder -config config.yaml serve
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxorder/internal/app"
	"github.com/MrWong99/voxorder/internal/config"
	"github.com/MrWong99/voxorder/internal/observe"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	transcript := flag.String("transcript", "", "transcript text to extract (one-shot mode)")
	transcriptFile := flag.String("transcript-file", "", "read the transcript from a file, - for stdin (one-shot mode)")
	outPath := flag.String("out", "clean_order.json", "where one-shot mode writes the order document")
	verbose := flag.Bool("verbose", false, "print a per-item summary and the rejected items")
	flag.Parse()
	serve := flag.Arg(0) == "serve"

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxorder: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxorder: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(app.ParseLevel(cfg.Server.LogLevel))
	if *verbose {
		level.Set(slog.LevelDebug)
	}
	slog.SetDefault(newLogger(cfg.Server.LogFormat, &level))

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	provider, err := app.BuildProvider(cfg, reg, observe.DefaultMetrics())
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	slog.Info("provider created", "providers", provider.Providers())

	application, err := app.New(ctx, cfg, provider, app.WithLevelVar(&level))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := application.Shutdown(sctx); err != nil {
			slog.Error("shutdown error", "err", err)
		}
	}()

	if serve {
		return runServer(ctx, application, *configPath)
	}

	text, err := readTranscript(*transcript, *transcriptFile, os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxorder: %v\n", err)
		return 2
	}
	return runOnce(ctx, application, text, *outPath, *verbose)
}

// runServer serves HTTP and hot-reloads the config file until ctx ends.
func runServer(ctx context.Context, application *app.App, configPath string) int {
	watcher, err := config.NewWatcher(configPath, func(old, next *config.Config) {
		application.Apply(ctx, old, next)
	})
	if err != nil {
		slog.Error("failed to watch config", "err", err)
		return 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return application.Run(gctx) })
	g.Go(func() error { return watcher.Run(gctx) })

	slog.Info("server ready, press Ctrl+C to shut down")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// runOnce extracts one transcript and writes the document to outPath.
func runOnce(ctx context.Context, application *app.App, transcript, outPath string, verbose bool) int {
	res, err := application.Extractor().Process(ctx, transcript)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxorder: %v\n", err)
		return 1
	}
	if res.ProviderErr != nil {
		slog.Warn("extraction produced no order", "err", res.ProviderErr)
	}

	data, err := json.MarshalIndent(res.Document, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxorder: encode order: %v\n", err)
		return 1
	}
	if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "voxorder: %v\n", err)
		return 1
	}

	if verbose {
		printSummary(os.Stdout, res)
	}
	fmt.Printf("Order saved to %s\n", outPath)
	return 0
}

// readTranscript returns the transcript from the flag text or from file.
// A file of "-" reads stdin.
func readTranscript(text, file string, stdin io.Reader) (string, error) {
	switch {
	case text != "" && file != "":
		return "", errors.New("-transcript and -transcript-file are mutually exclusive")
	case text != "":
		return text, nil
	case file == "":
		return "", errors.New("no transcript given, use -transcript, -transcript-file or the serve command")
	}

	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(format config.LogFormat, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
