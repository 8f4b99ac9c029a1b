package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns Metrics backed by a ManualReader.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the value of the int64 sum data point carrying key=value.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", name)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	t.Fatalf("metric %q has no data point with %s=%s", name, key, value)
	return 0
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"voxorder.extraction.duration", m.ExtractionDuration},
		{"voxorder.llm.duration", m.LLMDuration},
		{"voxorder.http.request.duration", m.HTTPRequestDuration},
		{"voxorder.order.subtotal", m.OrderSubtotal},
	}
	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 12.5)
	}

	rm := collect(t, reader)
	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestRecordOrder(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordOrder(ctx, OutcomeOK)
	m.RecordOrder(ctx, OutcomeOK)
	m.RecordOrder(ctx, OutcomeFailed)

	rm := collect(t, reader)
	if got := sumFor(t, rm, "voxorder.orders", "outcome", OutcomeOK); got != 2 {
		t.Errorf("ok orders = %d, want 2", got)
	}
	if got := sumFor(t, rm, "voxorder.orders", "outcome", OutcomeFailed); got != 1 {
		t.Errorf("failed orders = %d, want 1", got)
	}
}

func TestItemCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ItemsParsed.Add(ctx, 4)
	m.ItemsDuplicate.Add(ctx, 1)
	m.RecordRejection(ctx, "blocklist")
	m.RecordRejection(ctx, "blocklist")
	m.RecordRejection(ctx, "quantity")
	m.RecordLine(ctx, "confirmed")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "voxorder.items.rejected", "reason", "blocklist"); got != 2 {
		t.Errorf("blocklist rejections = %d, want 2", got)
	}
	if got := sumFor(t, rm, "voxorder.lines", "status", "confirmed"); got != 1 {
		t.Errorf("confirmed lines = %d, want 1", got)
	}

	for name, want := range map[string]int64{
		"voxorder.items.parsed":    4,
		"voxorder.items.duplicate": 1,
	} {
		met := findMetric(rm, name)
		if met == nil {
			t.Fatalf("metric %q not found", name)
		}
		sum := met.Data.(metricdata.Sum[int64])
		if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != want {
			t.Errorf("%s = %+v, want %d", name, sum.DataPoints, want)
		}
	}
}

func TestProviderCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "openai", "ok")
	m.RecordProviderRequest(ctx, "openai", "error")
	m.RecordProviderError(ctx, "openai", "timeout")
	m.RecordBreakerTransition(ctx, "openai", "open")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "voxorder.provider.requests", "status", "ok"); got != 1 {
		t.Errorf("ok requests = %d, want 1", got)
	}
	if got := sumFor(t, rm, "voxorder.provider.errors", "kind", "timeout"); got != 1 {
		t.Errorf("timeout errors = %d, want 1", got)
	}
	if got := sumFor(t, rm, "voxorder.breaker.transitions", "state", "open"); got != 1 {
		t.Errorf("open transitions = %d, want 1", got)
	}
}

func TestActiveExtractions(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveExtractions.Add(ctx, 1)
	m.ActiveExtractions.Add(ctx, 1)
	m.ActiveExtractions.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "voxorder.active_extractions")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 1 {
		t.Errorf("active extractions = %+v, want 1", sum.DataPoints)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
