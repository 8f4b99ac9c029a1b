// Package observe wires OpenTelemetry metrics and tracing into the order
// pipeline and the HTTP API.
//
// Instruments are created through the OTel Metrics API and exported to
// Prometheus by [InitProvider]. [DefaultMetrics] uses the global meter
// provider; tests build their own with [NewMetrics] and a manual reader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope of every voxorder instrument.
const meterName = "github.com/MrWong99/voxorder"

// Outcome labels for [Metrics.Orders].
const (
	OutcomeOK      = "ok"      // at least one line was produced
	OutcomeEmpty   = "empty"   // the extractor answered but nothing survived
	OutcomeFailed  = "failed"  // the extractor call failed or timed out
	OutcomeBlank   = "blank"   // the transcript had no text; the model was not called
)

// Metrics holds the application's OTel instruments. The OTel types handle
// their own synchronisation.
type Metrics struct {
	// ExtractionDuration covers a full transcript-to-document run.
	ExtractionDuration metric.Float64Histogram

	// LLMDuration covers the extractor model call alone.
	LLMDuration metric.Float64Histogram

	// HTTPRequestDuration is labelled with method and route.
	HTTPRequestDuration metric.Float64Histogram

	// OrderSubtotal records the subtotal of every non-empty order.
	OrderSubtotal metric.Float64Histogram

	// Orders counts processed transcripts by "outcome".
	Orders metric.Int64Counter

	// ItemsParsed counts records recovered from extractor output.
	ItemsParsed metric.Int64Counter

	// ItemsDuplicate counts records dropped as duplicate extractions.
	ItemsDuplicate metric.Int64Counter

	// ItemsRejected counts records dropped by validation, by "reason".
	ItemsRejected metric.Int64Counter

	// Lines counts order lines by "status" (confirmed, review).
	Lines metric.Int64Counter

	// ProviderRequests counts model calls by "provider" and "status".
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed model calls by "provider" and "kind".
	ProviderErrors metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes by "provider"
	// and "state".
	BreakerTransitions metric.Int64Counter

	// ActiveExtractions is the number of transcripts currently in flight.
	ActiveExtractions metric.Int64UpDownCounter
}

// latencyBuckets are histogram boundaries in seconds sized for model
// round-trips.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60,
}

// subtotalBuckets are histogram boundaries in currency units.
var subtotalBuckets = []float64{
	2, 5, 10, 15, 20, 30, 50, 75, 100,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ExtractionDuration, err = m.Float64Histogram("voxorder.extraction.duration",
		metric.WithDescription("Latency of a full transcript to order run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("voxorder.llm.duration",
		metric.WithDescription("Latency of the extractor model call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxorder.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.OrderSubtotal, err = m.Float64Histogram("voxorder.order.subtotal",
		metric.WithDescription("Subtotal of assembled orders."),
		metric.WithExplicitBucketBoundaries(subtotalBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Orders, err = m.Int64Counter("voxorder.orders",
		metric.WithDescription("Processed transcripts by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ItemsParsed, err = m.Int64Counter("voxorder.items.parsed",
		metric.WithDescription("Item records recovered from extractor output."),
	); err != nil {
		return nil, err
	}
	if met.ItemsDuplicate, err = m.Int64Counter("voxorder.items.duplicate",
		metric.WithDescription("Item records dropped as duplicate extractions."),
	); err != nil {
		return nil, err
	}
	if met.ItemsRejected, err = m.Int64Counter("voxorder.items.rejected",
		metric.WithDescription("Item records dropped by validation, by reason."),
	); err != nil {
		return nil, err
	}
	if met.Lines, err = m.Int64Counter("voxorder.lines",
		metric.WithDescription("Order lines by review status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("voxorder.provider.requests",
		metric.WithDescription("Extractor model calls by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voxorder.provider.errors",
		metric.WithDescription("Failed extractor model calls by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("voxorder.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by provider and new state."),
	); err != nil {
		return nil, err
	}

	if met.ActiveExtractions, err = m.Int64UpDownCounter("voxorder.active_extractions",
		metric.WithDescription("Transcripts currently being processed."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the shared [Metrics] built on the global meter
// provider. It panics if instrument creation fails, which the global provider
// never does.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordOrder counts one processed transcript.
func (m *Metrics) RecordOrder(ctx context.Context, outcome string) {
	m.Orders.Add(ctx, 1, metric.WithAttributes(Attr("outcome", outcome)))
}

// RecordRejection counts one item dropped by validation.
func (m *Metrics) RecordRejection(ctx context.Context, reason string) {
	m.ItemsRejected.Add(ctx, 1, metric.WithAttributes(Attr("reason", reason)))
}

// RecordLine counts one assembled order line.
func (m *Metrics) RecordLine(ctx context.Context, status string) {
	m.Lines.Add(ctx, 1, metric.WithAttributes(Attr("status", status)))
}

// RecordProviderRequest counts one model call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			Attr("provider", provider),
			Attr("status", status),
		),
	)
}

// RecordProviderError counts one failed model call. kind is a short error
// class such as "timeout" or "transport".
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			Attr("provider", provider),
			Attr("kind", kind),
		),
	)
}

// RecordBreakerTransition counts one circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, provider, state string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			Attr("provider", provider),
			Attr("state", state),
		),
	)
}
