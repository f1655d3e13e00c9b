// Package resolver implements the coordinate resolution cascade: static
// table by id, static table by name, persistent cache, throttled geocoding,
// and finally the country-centroid default. It never fails a station; every
// reading leaves with some coordinate.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/riverwatch/station-engine/internal/domain"
	"github.com/riverwatch/station-engine/internal/observability"
)

// Country centroid used when the whole cascade comes up empty.
const (
	centroidLat = 52.0693
	centroidLon = 19.4803
)

// StaticTable answers coordinate lookups from the curated reference asset.
type StaticTable interface {
	ByID(stationID string) (lat, lon float64, ok bool)
	ByName(normalizedName string) (lat, lon float64, ok bool)
}

// Cache persists geocoded coordinates across sessions, keyed by station id.
// It is read once per resolution pass and appended to after each batch.
type Cache interface {
	Load(ctx context.Context) (map[string]domain.GeocodeResult, error)
	SaveBatch(ctx context.Context, entries map[string]domain.GeocodeResult) error
}

// Options tune geocoding batching. Batches bound concurrent calls against
// the third-party service; the delay between batches keeps the request rate
// inside its usage policy.
type Options struct {
	Country    string
	BatchSize  int
	BatchDelay time.Duration
}

// CoordinateResolver resolves station positions through the fallback
// cascade. All collaborators are injected so tests can substitute fakes and
// assert call counts; a nil cache or geocoder simply disables those stages.
type CoordinateResolver struct {
	static   StaticTable
	cache    Cache
	geocoder domain.Geocoder
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	opts     Options
}

// New creates a CoordinateResolver.
func New(static StaticTable, cache Cache, geocoder domain.Geocoder, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, opts Options) *CoordinateResolver {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 8
	}
	return &CoordinateResolver{
		static:   static,
		cache:    cache,
		geocoder: geocoder,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		opts:     opts,
	}
}

// ResolveAll assigns a coordinate to every station in place and returns the
// slice. Stations the fast stages cannot place are geocoded in throttled
// batches; individual geocode failures leave the station on the centroid
// default, flagged for retry on a later refresh.
func (r *CoordinateResolver) ResolveAll(ctx context.Context, stations []domain.ClassifiedStation) []domain.ClassifiedStation {
	cached := r.loadCache(ctx)

	var pending []int // indexes that need geocoding
	for i := range stations {
		coord, ok := r.resolveFast(stations[i], cached)
		if ok {
			stations[i].Coordinate = coord
			r.countSource(coord.Source)
			continue
		}
		pending = append(pending, i)
	}

	r.geocodePending(ctx, stations, pending)
	return stations
}

// resolveFast runs the cascade stages that need no network: coordinates
// already attached to the reading, the static table by id, the static table
// by normalized name, then the persistent cache.
func (r *CoordinateResolver) resolveFast(s domain.ClassifiedStation, cached map[string]domain.GeocodeResult) (domain.Coordinate, bool) {
	if s.HasCoords {
		return domain.Coordinate{Latitude: s.Latitude, Longitude: s.Longitude, Source: domain.CoordUpstream}, true
	}
	if s.StationID != "" {
		if lat, lon, ok := r.static.ByID(s.StationID); ok {
			return domain.Coordinate{Latitude: lat, Longitude: lon, Source: domain.CoordStaticID}, true
		}
	}
	if name := domain.Normalize(s.Name); name != "" {
		if lat, lon, ok := r.static.ByName(name); ok {
			return domain.Coordinate{Latitude: lat, Longitude: lon, Source: domain.CoordStaticName}, true
		}
	}
	if s.StationID != "" {
		if hit, ok := cached[s.StationID]; ok && hit.Found {
			return domain.Coordinate{Latitude: hit.Latitude, Longitude: hit.Longitude, Source: domain.CoordCache}, true
		}
	}
	return domain.Coordinate{}, false
}

// geocodePending resolves the remaining stations through the geocoder in
// batches of BatchSize with BatchDelay between batches. Results are written
// back to the persistent cache after each batch so an interrupted run still
// keeps its progress.
func (r *CoordinateResolver) geocodePending(ctx context.Context, stations []domain.ClassifiedStation, pending []int) {
	if len(pending) == 0 {
		return
	}
	if r.geocoder == nil {
		for _, i := range pending {
			stations[i].Coordinate = r.centroid(false)
			r.countSource(domain.CoordDefault)
		}
		return
	}

	for start := 0; start < len(pending); start += r.opts.BatchSize {
		end := min(start+r.opts.BatchSize, len(pending))
		batch := pending[start:end]

		batchStart := r.clock.Now()
		results := make([]domain.GeocodeResult, len(batch))
		failures := make([]bool, len(batch))

		var wg sync.WaitGroup
		for bi, si := range batch {
			wg.Add(1)
			go func(bi, si int) {
				defer wg.Done()
				results[bi], failures[bi] = r.geocodeOne(ctx, stations[si].LiveReading)
			}(bi, si)
		}
		wg.Wait()

		saved := make(map[string]domain.GeocodeResult, len(batch))
		for bi, si := range batch {
			switch {
			case results[bi].Found:
				stations[si].Coordinate = domain.Coordinate{
					Latitude:  results[bi].Latitude,
					Longitude: results[bi].Longitude,
					Source:    domain.CoordGeocoded,
				}
				r.countSource(domain.CoordGeocoded)
				if stations[si].StationID != "" {
					saved[stations[si].StationID] = results[bi]
				}
			default:
				stations[si].Coordinate = r.centroid(failures[bi])
				r.countSource(domain.CoordDefault)
			}
		}
		r.saveCache(ctx, saved)

		if r.metrics != nil {
			r.metrics.GeocodeBatchDuration.Observe(r.clock.Since(batchStart).Seconds())
		}

		// Throttle between batches, not after the last one.
		if end < len(pending) && r.opts.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				for _, si := range pending[end:] {
					stations[si].Coordinate = r.centroid(true)
					r.countSource(domain.CoordDefault)
				}
				return
			case <-r.clock.After(r.opts.BatchDelay):
			}
		}
	}
}

// geocodeOne tries progressively simpler queries for one station:
// "<name> <river>, <region>", then "<name>, <region>", then "<name>".
// An error aborts the cascade (the next refresh retries); an empty result
// falls through to the next, simpler query.
func (r *CoordinateResolver) geocodeOne(ctx context.Context, reading domain.LiveReading) (domain.GeocodeResult, bool) {
	for _, query := range geocodeQueries(reading) {
		result, err := r.geocoder.Geocode(ctx, query, r.opts.Country)
		if err != nil {
			r.logger.Warn("geocoding failed",
				"station_id", reading.StationID,
				"query", query,
				"error", err,
			)
			r.countGeocode("error")
			return domain.GeocodeResult{}, true
		}
		if result.Found {
			r.countGeocode("success")
			return result, false
		}
		r.countGeocode("empty")
	}
	return domain.GeocodeResult{}, false
}

// geocodeQueries composes the query fallback list for a reading. The river
// placeholder "-" and empty fields shrink the list rather than producing
// malformed queries.
func geocodeQueries(reading domain.LiveReading) []string {
	name := reading.Name
	if name == "" {
		return nil
	}
	river := reading.River
	if domain.Normalize(river) == "" {
		river = ""
	}

	var queries []string
	if river != "" && reading.Region != "" {
		queries = append(queries, fmt.Sprintf("%s %s, %s", name, river, reading.Region))
	}
	if reading.Region != "" {
		queries = append(queries, fmt.Sprintf("%s, %s", name, reading.Region))
	}
	queries = append(queries, name)
	return queries
}

func (r *CoordinateResolver) centroid(retry bool) domain.Coordinate {
	return domain.Coordinate{
		Latitude:     centroidLat,
		Longitude:    centroidLon,
		Source:       domain.CoordDefault,
		RetryGeocode: retry,
	}
}

func (r *CoordinateResolver) loadCache(ctx context.Context) map[string]domain.GeocodeResult {
	if r.cache == nil {
		return nil
	}
	cached, err := r.cache.Load(ctx)
	if err != nil {
		r.logger.Warn("coordinate cache load failed, continuing without it", "error", err)
		return nil
	}
	return cached
}

func (r *CoordinateResolver) saveCache(ctx context.Context, entries map[string]domain.GeocodeResult) {
	if r.cache == nil || len(entries) == 0 {
		return
	}
	if err := r.cache.SaveBatch(ctx, entries); err != nil {
		r.logger.Warn("coordinate cache write failed", "entries", len(entries), "error", err)
		return
	}
	if r.metrics != nil {
		r.metrics.CacheWrites.Add(float64(len(entries)))
	}
}

func (r *CoordinateResolver) countSource(src domain.CoordSource) {
	if r.metrics != nil {
		r.metrics.CoordSources.WithLabelValues(string(src)).Inc()
	}
}

func (r *CoordinateResolver) countGeocode(outcome string) {
	if r.metrics != nil {
		r.metrics.GeocodeRequests.WithLabelValues(outcome).Inc()
	}
}
