// Package extract turns a transcript into a priced order document.
//
// An [Extractor] asks the language model for a loosely structured item list
// and runs the answer through the order pipeline:
//
//	parse → categorize → dedupe → score/validate → assemble
//
// Model failures, timeouts and malformed answers are not errors. They yield
// an empty document with zero confidence, so callers always get a
// structurally valid order. A blank transcript yields the empty document
// without a model call. The only error returned is the caller's own context
// ending before the pipeline started.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxorder/internal/observe"
	"github.com/MrWong99/voxorder/internal/order"
	"github.com/MrWong99/voxorder/internal/order/assemble"
	"github.com/MrWong99/voxorder/internal/order/dedupe"
	"github.com/MrWong99/voxorder/internal/order/modifier"
	"github.com/MrWong99/voxorder/internal/order/parser"
	"github.com/MrWong99/voxorder/internal/order/score"
	"github.com/MrWong99/voxorder/internal/pricing"
	"github.com/MrWong99/voxorder/pkg/provider/llm"
)


// Defaults for the model call.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultTemperature = 0.0
	DefaultMaxTokens   = 1000
	DefaultTopP        = 0.9
)

// Settings are the hot-swappable pipeline stages. A nil field passed to
// [Extractor.Reconfigure] keeps the current stage.
type Settings struct {
	Categorizer *modifier.Categorizer
	Validator   *score.Validator
	Assembler   *assemble.Assembler
}

// Result is the outcome of one [Extractor.Process] call.
type Result struct {
	// Document is the priced order. It is never nil-valued: on extractor
	// failure it is the empty document.
	Document order.Document

	// Rejected lists the items dropped by validation, with reasons.
	Rejected []order.Rejection

	// Parsed is the number of records recovered from the model answer.
	Parsed int

	// Duplicates is the number of records dropped as repeated extractions.
	Duplicates int

	// Latency is the duration of the model call.
	Latency time.Duration

	// RawResponse is the unparsed model answer.
	RawResponse string

	// ProviderErr is the model failure that produced an empty document, if
	// any. It is informational and never returned as an error.
	ProviderErr error
}

// Option configures an [Extractor].
type Option func(*Extractor)

// WithTimeout bounds each model call. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		e.timeout = d
	}
}

// WithTemperature sets the sampling temperature. Default: 0.0.
func WithTemperature(t float64) Option {
	return func(e *Extractor) {
		e.temperature = t
	}
}

// WithMaxTokens caps the model answer length. Default: 1000.
func WithMaxTokens(n int) Option {
	return func(e *Extractor) {
		e.maxTokens = n
	}
}

// WithTopP sets the nucleus sampling mass. Default: 0.9.
func WithTopP(p float64) Option {
	return func(e *Extractor) {
		e.topP = p
	}
}

// WithStructuredOutput attaches [ItemsSchema] to every model request so that
// backends with JSON schema support constrain their answer. Default: false.
func WithStructuredOutput(on bool) Option {
	return func(e *Extractor) {
		e.structured = on
	}
}

// WithProviderName labels provider metrics. Default: "llm".
func WithProviderName(name string) Option {
	return func(e *Extractor) {
		e.providerName = name
	}
}

// WithMetrics records pipeline metrics on m. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Extractor) {
		e.metrics = m
	}
}

// WithSettings sets the initial pipeline stages. Nil fields keep the
// defaults.
func WithSettings(s Settings) Option {
	return func(e *Extractor) {
		e.initial = s
	}
}

// Extractor runs transcripts through the model and the order pipeline. It is
// safe for concurrent use; [Extractor.Reconfigure] swaps stages atomically
// without affecting runs already in progress.
type Extractor struct {
	provider     llm.Provider
	providerName string
	timeout      time.Duration
	temperature  float64
	maxTokens    int
	topP         float64
	structured   bool
	metrics      *observe.Metrics

	initial  Settings
	settings atomic.Pointer[Settings]
}

// New returns an Extractor calling provider. Without [WithSettings] it uses
// the built-in rule table, the default validator and the default menu.
func New(provider llm.Provider, opts ...Option) *Extractor {
	e := &Extractor{
		provider:     provider,
		providerName: "llm",
		timeout:      DefaultTimeout,
		temperature:  DefaultTemperature,
		maxTokens:    DefaultMaxTokens,
		topP:         DefaultTopP,
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}

	s := Settings{
		Categorizer: modifier.Default(),
		Validator:   score.NewValidator(),
		Assembler:   assemble.New(pricing.NewTable(pricing.DefaultMenu())),
	}
	s = merge(s, e.initial)
	e.settings.Store(&s)
	return e
}

// Settings returns the stages currently in use.
func (e *Extractor) Settings() Settings {
	return *e.settings.Load()
}

// Reconfigure replaces the non-nil stages of s. Runs already in progress
// finish with the stages they started with.
func (e *Extractor) Reconfigure(s Settings) {
	for {
		cur := e.settings.Load()
		next := merge(*cur, s)
		if e.settings.CompareAndSwap(cur, &next) {
			return
		}
	}
}

func merge(base, over Settings) Settings {
	if over.Categorizer != nil {
		base.Categorizer = over.Categorizer
	}
	if over.Validator != nil {
		base.Validator = over.Validator
	}
	if over.Assembler != nil {
		base.Assembler = over.Assembler
	}
	return base
}

// Process extracts the order for transcript.
//
// It returns the context error if ctx is already done. Every other failure,
// and a blank transcript, yields an empty document.
func (e *Extractor) Process(ctx context.Context, transcript string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	if strings.TrimSpace(transcript) == "" {
		e.metrics.RecordOrder(ctx, observe.OutcomeBlank)
		return &Result{Document: order.EmptyDocument(transcript)}, nil
	}

	ctx, span := observe.StartSpan(ctx, "extract.process")
	defer span.End()

	e.metrics.ActiveExtractions.Add(ctx, 1)
	defer e.metrics.ActiveExtractions.Add(ctx, -1)

	start := time.Now()
	defer func() {
		e.metrics.ExtractionDuration.Record(ctx, time.Since(start).Seconds())
	}()

	stages := e.settings.Load()
	log := observe.Logger(ctx)

	raw, latency, err := e.complete(ctx, transcript)
	res := &Result{Latency: latency, RawResponse: raw}
	if err != nil {
		log.Warn("extract: model call failed, returning empty order", "provider", e.providerName, "latency", latency, "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "model call failed")
		e.metrics.RecordOrder(ctx, observe.OutcomeFailed)
		res.Document = order.EmptyDocument(transcript)
		res.ProviderErr = err
		return res, nil
	}

	raws, perr := parser.ParseDetailed(raw)
	if perr != nil {
		log.Debug("extract: unusable model answer", "err", perr, "response", truncate(raw, 800))
	}
	res.Parsed = len(raws)
	e.metrics.ItemsParsed.Add(ctx, int64(len(raws)))

	categorized := stages.Categorizer.Categorize(raws)
	unique := dedupe.Dedupe(categorized)
	res.Duplicates = len(categorized) - len(unique)
	if res.Duplicates > 0 {
		e.metrics.ItemsDuplicate.Add(ctx, int64(res.Duplicates))
	}

	scored, rejected := stages.Validator.ScoreAndValidate(unique, transcript)
	for _, r := range rejected {
		log.Debug("extract: item rejected", "product", r.Item.Product, "reason", r.Reason)
		e.metrics.RecordRejection(ctx, r.Kind)
	}
	res.Rejected = rejected

	res.Document = stages.Assembler.Assemble(ctx, transcript, scored)
	for _, l := range res.Document.Items {
		e.metrics.RecordLine(ctx, string(l.Status))
	}
	if len(res.Document.Items) == 0 {
		e.metrics.RecordOrder(ctx, observe.OutcomeEmpty)
	} else {
		e.metrics.RecordOrder(ctx, observe.OutcomeOK)
		e.metrics.OrderSubtotal.Record(ctx, res.Document.Subtotal)
	}

	span.SetAttributes(
		attribute.Int("order.items.parsed", res.Parsed),
		attribute.Int("order.items.rejected", len(rejected)),
		attribute.Int("order.lines", len(res.Document.Items)),
		attribute.Float64("order.confidence", res.Document.Confidence),
	)
	log.Debug("extract: order assembled",
		"parsed", res.Parsed,
		"duplicates", res.Duplicates,
		"rejected", len(rejected),
		"lines", len(res.Document.Items),
		"total", res.Document.Total,
		"latency", latency,
	)
	return res, nil
}

// complete performs the bounded model call and returns the answer text.
func (e *Extractor) complete(ctx context.Context, transcript string) (string, time.Duration, error) {
	ctx, span := observe.StartSpan(ctx, "extract.llm")
	defer span.End()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	req := llm.Prompt(BuildPrompt(transcript))
	req.Temperature = e.temperature
	req.MaxTokens = e.maxTokens
	req.TopP = e.topP
	if e.structured {
		req.ResponseSchema = ItemsSchema()
	}

	start := time.Now()
	resp, err := e.provider.Complete(ctx, req)
	latency := time.Since(start)
	e.metrics.LLMDuration.Record(ctx, latency.Seconds(), metric.WithAttributes(observe.Attr("provider", e.providerName)))

	if err != nil {
		e.metrics.RecordProviderRequest(ctx, e.providerName, "error")
		e.metrics.RecordProviderError(ctx, e.providerName, errorKind(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", latency, fmt.Errorf("extract: complete: %w", err)
	}
	e.metrics.RecordProviderRequest(ctx, e.providerName, "ok")
	if resp == nil {
		return "", latency, nil
	}
	span.SetAttributes(
		attribute.Int("llm.tokens.total", resp.Usage.TotalTokens),
		attribute.String("llm.finish_reason", resp.FinishReason),
	)
	if resp.FinishReason == llm.FinishLength {
		observe.Logger(ctx).Warn("model answer truncated at max tokens",
			"provider", e.providerName,
			"max_tokens", e.maxTokens,
		)
	}
	return resp.Content, latency, nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// ProcessBatch processes transcripts concurrently, at most limit at a time
// (unbounded when limit <= 0). Results are in input order. Blank
// transcripts get empty documents like in [Extractor.Process].
func (e *Extractor) ProcessBatch(ctx context.Context, transcripts []string, limit int) ([]*Result, error) {
	results := make([]*Result, len(transcripts))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, t := range transcripts {
		g.Go(func() error {
			res, err := e.Process(gctx, t)
			if err != nil {
				return fmt.Errorf("extract: transcript %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
