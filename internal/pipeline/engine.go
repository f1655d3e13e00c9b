// Package pipeline orchestrates a refresh cycle: fetch live readings,
// resolve thresholds, classify, synthesize series, resolve coordinates, and
// swap the result in as the current snapshot. Cycles are last-writer-wins;
// a superseded refresh is simply replaced, never interrupted mid-flight.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/riverwatch/station-engine/internal/domain"
	"github.com/riverwatch/station-engine/internal/observability"
)

// ReadingsFetcher pulls the current live reading for every station.
type ReadingsFetcher interface {
	FetchReadings(ctx context.Context) ([]domain.LiveReading, error)
}

// CoordinateResolver assigns a position to every classified station.
type CoordinateResolver interface {
	ResolveAll(ctx context.Context, stations []domain.ClassifiedStation) []domain.ClassifiedStation
}

// SnapshotPublisher pushes a refreshed snapshot to downstream consumers.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, stations []domain.ClassifiedStation) error
}

// Engine runs refresh cycles and holds the latest classified snapshot.
type Engine struct {
	fetcher    ReadingsFetcher
	thresholds *domain.ThresholdTable
	coords     CoordinateResolver
	sink       SnapshotPublisher // nil when the Kafka sink is disabled
	logger     *slog.Logger
	metrics    *observability.Metrics

	mu       sync.RWMutex
	snapshot []domain.ClassifiedStation
	byID     map[string]int
	ready    atomic.Bool
}

// New creates an Engine. The threshold table's stage observer is wired to
// the resolver-stage metric so cascade depth is visible in monitoring.
func New(fetcher ReadingsFetcher, thresholds *domain.ThresholdTable, coords CoordinateResolver, sink SnapshotPublisher, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	thresholds.StageObserver = func(stage int) {
		metrics.ResolverStages.WithLabelValues(strconv.Itoa(stage)).Inc()
	}
	return &Engine{
		fetcher:    fetcher,
		thresholds: thresholds,
		coords:     coords,
		sink:       sink,
		logger:     logger,
		metrics:    metrics,
	}
}

// Refresh executes one full cycle. Only a total upstream failure is
// returned as an error; every per-station problem degrades to a fallback
// and the station stays in the snapshot.
func (e *Engine) Refresh(ctx context.Context) error {
	start := time.Now()

	readings, err := e.fetcher.FetchReadings(ctx)
	if err != nil {
		e.metrics.RefreshErrors.Inc()
		return fmt.Errorf("refresh cycle: %w", err)
	}

	stations := make([]domain.ClassifiedStation, 0, len(readings))
	dropped := 0
	for _, r := range readings {
		if !r.HasIdentity() {
			dropped++
			continue
		}
		stations = append(stations, e.classifyReading(r))
	}
	if dropped > 0 {
		e.metrics.ReadingsDropped.Add(float64(dropped))
		e.logger.Warn("dropped readings without identity", "count", dropped)
	}

	stations = e.coords.ResolveAll(ctx, stations)

	e.setSnapshot(stations)
	e.metrics.ReadingsProcessed.Add(float64(len(stations)))
	e.metrics.StationsCurrent.Set(float64(len(stations)))
	e.metrics.RefreshCycles.Inc()
	e.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	e.metrics.EngineReady.Set(1)

	e.publish(ctx, stations)

	e.logger.Info("refresh cycle complete",
		"stations", len(stations),
		"dropped", dropped,
		"duration", time.Since(start),
	)
	return nil
}

// classifyReading folds one live reading into a classified station:
// threshold cascade, status, deterministic fallback series, and trend.
func (e *Engine) classifyReading(r domain.LiveReading) domain.ClassifiedStation {
	rec := e.thresholds.Resolve(domain.ThresholdQuery{
		StationName: r.Name,
		Region:      r.Region,
		RiverID:     r.River,
	})
	if rec == nil {
		e.metrics.ThresholdMisses.Inc()
	}

	status := domain.StatusUnknown
	if r.HasLevel {
		status = domain.ClassifyAgainst(r.Level, rec)
	}

	seriesKey := r.StationID
	if seriesKey == "" {
		seriesKey = r.Name
	}
	series := domain.SynthesizeSeries(seriesKey, r.Level)
	trend, trendValue := domain.DeriveTrend(series.Day)

	e.metrics.StatusTotal.WithLabelValues(string(status)).Inc()

	return domain.ClassifiedStation{
		LiveReading: r,
		Thresholds:  rec,
		Status:      status,
		Series:      series,
		Trend:       trend,
		TrendValue:  trendValue,
	}
}

func (e *Engine) publish(ctx context.Context, stations []domain.ClassifiedStation) {
	if e.sink == nil {
		return
	}
	if err := e.sink.PublishSnapshot(ctx, stations); err != nil {
		e.metrics.SinkErrors.Inc()
		e.logger.Error("snapshot publish failed", "error", err)
		return
	}
	e.metrics.SinkPublished.Add(float64(len(stations)))
}

func (e *Engine) setSnapshot(stations []domain.ClassifiedStation) {
	byID := make(map[string]int, len(stations))
	for i, s := range stations {
		if s.StationID != "" {
			if _, exists := byID[s.StationID]; !exists {
				byID[s.StationID] = i
			}
		}
	}

	e.mu.Lock()
	e.snapshot = stations
	e.byID = byID
	e.mu.Unlock()
	e.ready.Store(true)
}

// Snapshot returns the latest classified station list, NOT deduplicated;
// list and search surfaces want every station.
func (e *Engine) Snapshot() []domain.ClassifiedStation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.ClassifiedStation, len(e.snapshot))
	copy(out, e.snapshot)
	return out
}

// MapView returns the snapshot prepared for map rendering: spatially
// deduplicated, then filtered by the viewport's zoom and bounds.
func (e *Engine) MapView(v domain.Viewport) []domain.ClassifiedStation {
	return domain.FilterVisible(domain.Deduplicate(e.Snapshot()), v)
}

// Station looks up one classified station by stable id.
func (e *Engine) Station(id string) (domain.ClassifiedStation, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	i, ok := e.byID[id]
	if !ok {
		return domain.ClassifiedStation{}, false
	}
	return e.snapshot[i], true
}

// CheckReadiness returns nil once the engine holds at least one snapshot.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if !e.ready.Load() {
		return errors.New("engine has not completed a refresh cycle yet")
	}
	return nil
}
