package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func testSetup(t *testing.T) (*Metrics, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()

	m, reader := newTestMetrics(t)

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	return m, reader, exp
}

// routed mounts h under pattern on a ServeMux wrapped by the middleware.
func routed(m *Metrics, pattern string, h http.HandlerFunc) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(pattern, h)
	return Middleware(m)(mux)
}

func TestMiddleware_SetsCorrelationID(t *testing.T) {
	m, _, _ := testSetup(t)

	var captured string
	h := routed(m, "GET /test", func(w http.ResponseWriter, r *http.Request) {
		captured = CorrelationID(r.Context())
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/test", nil))

	if len(captured) != 32 {
		t.Errorf("correlation ID = %q, want 32 hex chars", captured)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != captured {
		t.Errorf("response X-Correlation-ID = %q, want %q", got, captured)
	}
}

func TestMiddleware_RequestID(t *testing.T) {
	m, _, _ := testSetup(t)

	var captured string
	h := routed(m, "GET /test", func(w http.ResponseWriter, r *http.Request) {
		captured = RequestID(r.Context())
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/test", nil))
	if len(captured) != 36 {
		t.Errorf("generated request ID = %q, want a UUID", captured)
	}
	if rec.Header().Get(RequestIDHeader) != captured {
		t.Errorf("response %s = %q, want %q", RequestIDHeader, rec.Header().Get(RequestIDHeader), captured)
	}

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(RequestIDHeader, "client-supplied")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if captured != "client-supplied" {
		t.Errorf("request ID = %q, want client-supplied", captured)
	}
}

func TestMiddleware_SpanNamedByRoute(t *testing.T) {
	m, _, exp := testSetup(t)

	h := routed(m, "GET /v1/things/{id}", func(w http.ResponseWriter, _ *http.Request) {})
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/v1/things/42", nil))

	spans := exp.GetSpans()
	if len(spans) == 0 {
		t.Fatal("middleware did not create a span")
	}
	if want := "HTTP GET /v1/things/{id}"; spans[0].Name != want {
		t.Errorf("span name = %q, want %q", spans[0].Name, want)
	}
}

func TestMiddleware_RecordsDurationByRoute(t *testing.T) {
	m, reader, _ := testSetup(t)

	h := routed(m, "GET /v1/things/{id}", func(w http.ResponseWriter, _ *http.Request) {})
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/v1/things/1", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/v1/things/2", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nope", nil))

	rm := collect(t, reader)
	met := findMetric(rm, "voxorder.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist := met.Data.(metricdata.Histogram[float64])

	counts := map[string]uint64{}
	for _, dp := range hist.DataPoints {
		route, _ := dp.Attributes.Value("route")
		counts[route.AsString()] += dp.Count
	}
	if counts["GET /v1/things/{id}"] != 2 {
		t.Errorf("route counts = %v, want 2 for the pattern", counts)
	}
	if counts["unmatched"] != 1 {
		t.Errorf("route counts = %v, want 1 unmatched", counts)
	}
}

func TestMiddleware_CapturesStatusCode(t *testing.T) {
	m, _, exp := testSetup(t)

	h := routed(m, "GET /teapot", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/teapot", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("response status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	spans := exp.GetSpans()
	if len(spans) == 0 {
		t.Fatal("no spans recorded")
	}
	found := false
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "http.response.status_code" && a.Value.AsInt64() == http.StatusTeapot {
			found = true
		}
	}
	if !found {
		t.Error("span missing http.response.status_code attribute")
	}
}

func TestMiddleware_PropagatesW3CTraceContext(t *testing.T) {
	m, _, _ := testSetup(t)

	var captured string
	h := routed(m, "GET /propagate", func(w http.ResponseWriter, r *http.Request) {
		captured = CorrelationID(r.Context())
	})
	req := httptest.NewRequest("GET", "/propagate", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	const want = "4bf92f3577b34da6a3ce929d0e0e4736"
	if captured != want {
		t.Errorf("correlation ID = %q, want %q", captured, want)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != want {
		t.Errorf("response X-Correlation-ID = %q, want %q", got, want)
	}
}
