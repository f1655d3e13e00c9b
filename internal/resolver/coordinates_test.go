package resolver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverwatch/station-engine/internal/domain"
	"github.com/riverwatch/station-engine/internal/observability"
)

// --- fakes ---

type fakeStatic struct {
	byID   map[string][2]float64
	byName map[string][2]float64
}

func (f fakeStatic) ByID(id string) (float64, float64, bool) {
	c, ok := f.byID[id]
	return c[0], c[1], ok
}

func (f fakeStatic) ByName(name string) (float64, float64, bool) {
	c, ok := f.byName[name]
	return c[0], c[1], ok
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]domain.GeocodeResult
	loadErr error
	loads   int
	saves   int
}

func (f *fakeCache) Load(_ context.Context) (map[string]domain.GeocodeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := make(map[string]domain.GeocodeResult, len(f.entries))
	for k, v := range f.entries {
		out[k] = v
	}
	return out, nil
}

func (f *fakeCache) SaveBatch(_ context.Context, entries map[string]domain.GeocodeResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.entries == nil {
		f.entries = make(map[string]domain.GeocodeResult)
	}
	for k, v := range entries {
		f.entries[k] = v
	}
	return nil
}

type fakeGeocoder struct {
	mu      sync.Mutex
	queries []string
	answer  func(query string) (domain.GeocodeResult, error)
}

func (f *fakeGeocoder) Geocode(_ context.Context, query, _ string) (domain.GeocodeResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.answer == nil {
		return domain.GeocodeResult{}, nil
	}
	return f.answer(query)
}

func (f *fakeGeocoder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newResolver(static StaticTable, cache Cache, geo domain.Geocoder, opts Options) *CoordinateResolver {
	if opts.Country == "" {
		opts.Country = "pl"
	}
	return New(static, cache, geo, clockwork.NewRealClock(), discardLogger(), observability.NewMetricsForTesting(), opts)
}

func reading(id, name, river, region string) domain.ClassifiedStation {
	return domain.ClassifiedStation{
		LiveReading: domain.LiveReading{StationID: id, Name: name, River: river, Region: region},
	}
}

// --- tests ---

func TestResolveAll_UpstreamCoordinatesWin(t *testing.T) {
	geo := &fakeGeocoder{}
	r := newResolver(fakeStatic{byID: map[string][2]float64{"1": {50, 18}}}, nil, geo, Options{})

	s := reading("1", "Wisła", "", "śląskie")
	s.Latitude, s.Longitude, s.HasCoords = 49.65, 18.86, true

	out := r.ResolveAll(context.Background(), []domain.ClassifiedStation{s})

	require.Len(t, out, 1)
	assert.Equal(t, domain.CoordUpstream, out[0].Coordinate.Source)
	assert.Equal(t, 49.65, out[0].Coordinate.Latitude)
	assert.Zero(t, geo.calls(), "attached coordinates must bypass every other stage")
}

func TestResolveAll_StaticTableByID(t *testing.T) {
	geo := &fakeGeocoder{}
	static := fakeStatic{
		byID:   map[string][2]float64{"152210010": {52.2442, 21.0394}},
		byName: map[string][2]float64{"warszawa bulwary": {1, 1}},
	}
	r := newResolver(static, nil, geo, Options{})

	out := r.ResolveAll(context.Background(), []domain.ClassifiedStation{reading("152210010", "Warszawa Bulwary", "Wisła", "mazowieckie")})

	assert.Equal(t, domain.CoordStaticID, out[0].Coordinate.Source)
	assert.Equal(t, 52.2442, out[0].Coordinate.Latitude)
	assert.Zero(t, geo.calls())
}

func TestResolveAll_StaticTableByName(t *testing.T) {
	static := fakeStatic{byName: map[string][2]float64{"nowy sacz": {49.6236, 20.695}}}
	r := newResolver(static, nil, &fakeGeocoder{}, Options{})

	out := r.ResolveAll(context.Background(), []domain.ClassifiedStation{reading("unknown-id", "Nowy Sącz", "Dunajec", "małopolskie")})

	assert.Equal(t, domain.CoordStaticName, out[0].Coordinate.Source)
	assert.Equal(t, 49.6236, out[0].Coordinate.Latitude)
}

func TestResolveAll_PersistentCache(t *testing.T) {
	geo := &fakeGeocoder{}
	cache := &fakeCache{entries: map[string]domain.GeocodeResult{
		"777": {Latitude: 51.1, Longitude: 17.0, Found: true},
	}}
	r := newResolver(fakeStatic{}, cache, geo, Options{})

	out := r.ResolveAll(context.Background(), []domain.ClassifiedStation{reading("777", "Stacja Testowa", "", "")})

	assert.Equal(t, domain.CoordCache, out[0].Coordinate.Source)
	assert.Equal(t, 51.1, out[0].Coordinate.Latitude)
	assert.Equal(t, 1, cache.loads, "cache is read once per pass")
	assert.Zero(t, geo.calls())
}

func TestResolveAll_GeocodeAndWriteBack(t *testing.T) {
	geo := &fakeGeocoder{answer: func(string) (domain.GeocodeResult, error) {
		return domain.GeocodeResult{Latitude: 53.42, Longitude: 14.55, Found: true}, nil
	}}
	cache := &fakeCache{}
	r := newResolver(fakeStatic{}, cache, geo, Options{})

	out := r.ResolveAll(context.Background(), []domain.ClassifiedStation{reading("888", "Szczecin Most", "Odra", "zachodniopomorskie")})

	assert.Equal(t, domain.CoordGeocoded, out[0].Coordinate.Source)
	assert.Equal(t, 53.42, out[0].Coordinate.Latitude)
	require.Equal(t, 1, cache.saves, "geocoded result must be persisted")
	assert.Equal(t, 53.42, cache.entries["888"].Latitude)

	// A second pass resolves from the cache without touching the geocoder.
	calls := geo.calls()
	out = r.ResolveAll(context.Background(), []domain.ClassifiedStation{reading("888", "Szczecin Most", "Odra", "zachodniopomorskie")})
	assert.Equal(t, domain.CoordCache, out[0].Coordinate.Source)
	assert.Equal(t, calls, geo.calls())
}

func TestResolveAll_QueryFallbackCascade(t *testing.T) {
	geo := &fakeGeocoder{answer: func(query string) (domain.GeocodeResult, error) {
		if query == "Krosno" {
			return domain.GeocodeResult{Latitude: 49.68, Longitude: 21.76, Found: true}, nil
		}
		return domain.GeocodeResult{}, nil
	}}
	r := newResolver(fakeStatic{}, nil, geo, Options{})

	out := r.ResolveAll(context.Background(), []domain.ClassifiedStation{reading("9", "Krosno", "Wisłok", "podkarpackie")})

	assert.Equal(t, []string{
		"Krosno Wisłok, podkarpackie",
		"Krosno, podkarpackie",
		"Krosno",
	}, geo.queries, "richer queries must be tried first")
	assert.Equal(t, domain.CoordGeocoded, out[0].Coordinate.Source)
}

func TestResolveAll_PlaceholderRiverSkipped(t *testing.T) {
	geo := &fakeGeocoder{}
	r := newResolver(fakeStatic{}, nil, geo, Options{})

	r.ResolveAll(context.Background(), []domain.ClassifiedStation{reading("9", "Krosno", "-", "podkarpackie")})

	assert.Equal(t, []string{"Krosno, podkarpackie", "Krosno"}, geo.queries)
}

func TestResolveAll_GeocodeErrorFallsToCentroidWithRetry(t *testing.T) {
	geo := &fakeGeocoder{answer: func(string) (domain.GeocodeResult, error) {
		return domain.GeocodeResult{}, errors.New("rate limited")
	}}
	cache := &fakeCache{}
	r := newResolver(fakeStatic{}, cache, geo, Options{})

	out := r.ResolveAll(context.Background(), []domain.ClassifiedStation{reading("5", "Gdzieś", "", "pomorskie")})

	c := out[0].Coordinate
	assert.Equal(t, domain.CoordDefault, c.Source)
	assert.InDelta(t, 52.0693, c.Latitude, 0.0001)
	assert.InDelta(t, 19.4803, c.Longitude, 0.0001)
	assert.True(t, c.RetryGeocode, "failed geocodes must be retried on a later refresh")
	assert.Equal(t, 1, geo.calls(), "an error aborts the per-station query cascade")
	assert.Zero(t, cache.saves)
}

func TestResolveAll_ExhaustedQueriesFallToCentroidWithoutRetry(t *testing.T) {
	geo := &fakeGeocoder{} // always empty, never errors
	r := newResolver(fakeStatic{}, nil, geo, Options{})

	out := r.ResolveAll(context.Background(), []domain.ClassifiedStation{reading("5", "Zupełnie Nieznana", "", "")})

	assert.Equal(t, domain.CoordDefault, out[0].Coordinate.Source)
	assert.False(t, out[0].Coordinate.RetryGeocode, "a clean not-found is not retryable")
}

func TestResolveAll_NilGeocoderUsesCentroid(t *testing.T) {
	r := newResolver(fakeStatic{}, nil, nil, Options{})

	out := r.ResolveAll(context.Background(), []domain.ClassifiedStation{reading("5", "Gdzieś", "", "")})

	assert.Equal(t, domain.CoordDefault, out[0].Coordinate.Source)
}

func TestResolveAll_FailureIsolation(t *testing.T) {
	geo := &fakeGeocoder{answer: func(query string) (domain.GeocodeResult, error) {
		if query == "Pechowa" {
			return domain.GeocodeResult{}, errors.New("boom")
		}
		return domain.GeocodeResult{Latitude: 54.0, Longitude: 18.0, Found: true}, nil
	}}
	r := newResolver(fakeStatic{}, nil, geo, Options{})

	out := r.ResolveAll(context.Background(), []domain.ClassifiedStation{
		reading("1", "Pechowa", "", ""),
		reading("2", "Szczęśliwa", "", ""),
	})

	assert.Equal(t, domain.CoordDefault, out[0].Coordinate.Source)
	assert.Equal(t, domain.CoordGeocoded, out[1].Coordinate.Source, "one station's failure must not abort the batch")
}

func TestResolveAll_BatchesBoundConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0

	geo := &fakeGeocoder{answer: func(string) (domain.GeocodeResult, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return domain.GeocodeResult{Latitude: 1, Longitude: 1, Found: true}, nil
	}}
	r := newResolver(fakeStatic{}, nil, geo, Options{BatchSize: 3})

	stations := make([]domain.ClassifiedStation, 8)
	for i := range stations {
		stations[i] = reading("", "Stacja", "", "")
	}
	r.ResolveAll(context.Background(), stations)

	assert.Equal(t, 8, geo.calls())
	assert.LessOrEqual(t, peak, 3, "no more than one batch may be in flight")
}

func TestResolveAll_ThrottlesBetweenBatches(t *testing.T) {
	fc := clockwork.NewFakeClock()
	geo := &fakeGeocoder{answer: func(string) (domain.GeocodeResult, error) {
		return domain.GeocodeResult{Latitude: 1, Longitude: 1, Found: true}, nil
	}}
	r := New(fakeStatic{}, nil, geo, fc, discardLogger(), observability.NewMetricsForTesting(),
		Options{Country: "pl", BatchSize: 2, BatchDelay: 1500 * time.Millisecond})

	stations := make([]domain.ClassifiedStation, 5)
	for i := range stations {
		stations[i] = reading("", "Stacja", "", "")
	}

	done := make(chan struct{})
	go func() {
		r.ResolveAll(context.Background(), stations)
		close(done)
	}()

	// Three batches of 2+2+1 mean two inter-batch delays.
	for i := 0; i < 2; i++ {
		fc.BlockUntil(1)
		fc.Advance(1500 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("resolver did not finish; throttling appears stuck")
	}
	assert.Equal(t, 5, geo.calls())
}

func TestResolveAll_CacheLoadFailureTolerated(t *testing.T) {
	cache := &fakeCache{loadErr: errors.New("disk broke")}
	geo := &fakeGeocoder{answer: func(string) (domain.GeocodeResult, error) {
		return domain.GeocodeResult{Latitude: 2, Longitude: 2, Found: true}, nil
	}}
	r := newResolver(fakeStatic{}, cache, geo, Options{})

	out := r.ResolveAll(context.Background(), []domain.ClassifiedStation{reading("1", "Stacja", "", "")})

	assert.Equal(t, domain.CoordGeocoded, out[0].Coordinate.Source)
}
