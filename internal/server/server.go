// Package server exposes the order pipeline over HTTP.
//
// Routes:
//
//	POST /v1/orders        {"transcript": "..."}       → order document
//	POST /v1/orders/batch  {"transcripts": ["...", …]} → [order document]
//	GET  /v1/orders/{id}                               → archived document
//	GET  /v1/menu                                      → current price table
//	GET  /healthz, /readyz, /metrics
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/voxorder/internal/extract"
	"github.com/MrWong99/voxorder/internal/health"
	"github.com/MrWong99/voxorder/internal/observe"
	"github.com/MrWong99/voxorder/internal/order"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Extractor is the pipeline the server drives.
type Extractor interface {
	Process(ctx context.Context, transcript string) (*extract.Result, error)
	ProcessBatch(ctx context.Context, transcripts []string, limit int) ([]*extract.Result, error)
}

// Archive persists processed orders. Order returns an error wrapping
// [order.ErrOrderNotFound] for unknown IDs.
type Archive interface {
	SaveOrder(ctx context.Context, doc order.Document) (uuid.UUID, error)
	Order(ctx context.Context, id uuid.UUID) (order.Document, error)
}

// MenuFunc returns the current price table.
type MenuFunc func(ctx context.Context) (map[string]float64, error)

// Option configures a [Server].
type Option func(*Server)

// WithArchive stores every processed order in a. Archive failures are
// logged and do not fail the request.
func WithArchive(a Archive) Option {
	return func(s *Server) { s.archive = a }
}

// WithMenu serves GET /v1/menu from fn.
func WithMenu(fn MenuFunc) Option {
	return func(s *Server) { s.menu = fn }
}

// WithHealth registers readiness checkers.
func WithHealth(checkers ...health.Checker) Option {
	return func(s *Server) { s.checkers = append(s.checkers, checkers...) }
}

// WithMetrics records HTTP metrics on m. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMetricsHandler serves /metrics with h. Default: promhttp.Handler().
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithRequestTimeout bounds each request. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.requestTimeout = d }
}

// WithBatchLimit caps concurrently processed transcripts per batch.
func WithBatchLimit(n int) Option {
	return func(s *Server) { s.batchLimit = n }
}

// Server is the HTTP front end of the pipeline.
type Server struct {
	extractor      Extractor
	archive        Archive
	menu           MenuFunc
	checkers       []health.Checker
	metrics        *observe.Metrics
	metricsHandler http.Handler
	requestTimeout time.Duration
	batchLimit     int
}

// New returns a Server driving ex.
func New(ex Extractor, opts ...Option) *Server {
	s := &Server{
		extractor:  ex,
		batchLimit: 4,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.metricsHandler == nil {
		s.metricsHandler = promhttp.Handler()
	}
	return s
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/orders", s.handleOrder)
	mux.HandleFunc("POST /v1/orders/batch", s.handleBatch)
	mux.HandleFunc("GET /v1/orders/{id}", s.handleGetOrder)
	mux.HandleFunc("GET /v1/menu", s.handleMenu)
	mux.Handle("GET /metrics", s.metricsHandler)
	health.New(s.checkers...).Register(mux)
	return observe.Middleware(s.metrics)(mux)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return nil
}

type orderRequest struct {
	Transcript *string `json:"transcript"`
}

type batchRequest struct {
	Transcripts []string `json:"transcripts"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	var req orderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Transcript == nil {
		writeError(w, http.StatusBadRequest, "transcript is required")
		return
	}
	res, err := s.extractor.Process(ctx, *req.Transcript)
	if err != nil {
		s.writeProcessError(w, r, err)
		return
	}
	if id, ok := s.save(ctx, res.Document); ok {
		w.Header().Set("Location", "/v1/orders/"+id.String())
	}
	writeJSON(w, http.StatusOK, res.Document)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Transcripts) == 0 {
		writeError(w, http.StatusBadRequest, "transcripts must not be empty")
		return
	}
	results, err := s.extractor.ProcessBatch(ctx, req.Transcripts, s.batchLimit)
	if err != nil {
		s.writeProcessError(w, r, err)
		return
	}
	docs := make([]order.Document, len(results))
	for i, res := range results {
		docs[i] = res.Document
		s.save(ctx, res.Document)
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "order archive is disabled")
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	doc, err := s.archive.Order(r.Context(), id)
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case err != nil:
		observe.Logger(r.Context()).Error("server: load order", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load order")
	default:
		writeJSON(w, http.StatusOK, doc)
	}
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	if s.menu == nil {
		writeJSON(w, http.StatusOK, map[string]float64{})
		return
	}
	menu, err := s.menu(r.Context())
	if err != nil {
		observe.Logger(r.Context()).Error("server: load menu", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load menu")
		return
	}
	writeJSON(w, http.StatusOK, menu)
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.requestTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.requestTimeout)
}

// save archives doc if an archive is configured.
func (s *Server) save(ctx context.Context, doc order.Document) (uuid.UUID, bool) {
	if s.archive == nil {
		return uuid.Nil, false
	}
	id, err := s.archive.SaveOrder(ctx, doc)
	if err != nil {
		observe.Logger(ctx).Warn("server: archive order failed", "err", err)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) writeProcessError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		observe.Logger(r.Context()).Error("server: process transcript", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
