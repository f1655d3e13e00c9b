// Package http serves the engine's read API plus the operational endpoints
// (health, readiness, metrics). All station payloads come straight from the
// in-memory snapshot; no handler ever blocks on upstream calls.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/riverwatch/station-engine/internal/domain"
)

// SnapshotSource is the read surface the engine exposes to HTTP handlers.
type SnapshotSource interface {
	Snapshot() []domain.ClassifiedStation
	MapView(v domain.Viewport) []domain.ClassifiedStation
	Station(id string) (domain.ClassifiedStation, bool)
	CheckReadiness(ctx context.Context) error
}

// Server exposes the station API and health, readiness, and metrics routes.
type Server struct {
	httpServer *http.Server
	source     SnapshotSource
	logger     *slog.Logger
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(addr string, source SnapshotSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		source: source,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/stations", s.handleStations)
	mux.HandleFunc("GET /api/stations/{id}", s.handleStation)
	mux.HandleFunc("GET /api/stations/{id}/series", s.handleSeries)
	mux.HandleFunc("GET /api/map", s.handleMap)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.source.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleStations(w http.ResponseWriter, _ *http.Request) {
	stations := s.source.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(stations),
		"stations": stations,
	})
}

func (s *Server) handleStation(w http.ResponseWriter, r *http.Request) {
	station, ok := s.source.Station(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "station not found"})
		return
	}
	writeJSON(w, http.StatusOK, station)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	station, ok := s.source.Station(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "station not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"station_id":  station.StationID,
		"trend":       station.Trend,
		"trend_value": station.TrendValue,
		"series":      station.Series,
	})
}

// handleMap returns the deduplicated, viewport-filtered station set for map
// rendering. All four bounds parameters are required.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	v, err := parseViewport(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	stations := s.source.MapView(v)
	writeJSON(w, http.StatusOK, map[string]any{
		"zoom":     v.Zoom(),
		"count":    len(stations),
		"stations": stations,
	})
}

func parseViewport(r *http.Request) (domain.Viewport, error) {
	var v domain.Viewport
	var err error
	if v.MinLat, err = queryFloat(r, "minLat"); err != nil {
		return v, err
	}
	if v.MaxLat, err = queryFloat(r, "maxLat"); err != nil {
		return v, err
	}
	if v.MinLon, err = queryFloat(r, "minLon"); err != nil {
		return v, err
	}
	if v.MaxLon, err = queryFloat(r, "maxLon"); err != nil {
		return v, err
	}
	return v, nil
}

func queryFloat(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, &paramError{name: name, reason: "missing"}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &paramError{name: name, reason: "not a number"}
	}
	return f, nil
}

type paramError struct {
	name   string
	reason string
}

func (e *paramError) Error() string {
	return "query parameter " + e.name + ": " + e.reason
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
