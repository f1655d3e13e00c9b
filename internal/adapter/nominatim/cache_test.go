package nominatim

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/riverwatch/station-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingGeocoder struct {
	calls  int
	result domain.GeocodeResult
	err    error
}

func (g *countingGeocoder) Geocode(_ context.Context, _, _ string) (domain.GeocodeResult, error) {
	g.calls++
	return g.result, g.err
}

func TestCachedGeocoder_CachesHits(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodeResult{Latitude: 52.2, Longitude: 21.0, Found: true}}
	c := NewCachedGeocoder(inner, 10)

	for i := 0; i < 3; i++ {
		result, err := c.Geocode(context.Background(), "Warszawa", "pl")
		require.NoError(t, err)
		assert.True(t, result.Found)
	}
	assert.Equal(t, 1, inner.calls, "repeated identical queries must hit the cache")
}

func TestCachedGeocoder_DoesNotCacheMisses(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodeResult{}}
	c := NewCachedGeocoder(inner, 10)

	_, err := c.Geocode(context.Background(), "Nigdzie", "pl")
	require.NoError(t, err)
	_, err = c.Geocode(context.Background(), "Nigdzie", "pl")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls, "not-found responses must stay retryable")
}

func TestCachedGeocoder_DoesNotCacheErrors(t *testing.T) {
	inner := &countingGeocoder{err: errors.New("rate limited")}
	c := NewCachedGeocoder(inner, 10)

	_, err := c.Geocode(context.Background(), "Warszawa", "pl")
	require.Error(t, err)
	_, err = c.Geocode(context.Background(), "Warszawa", "pl")
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedGeocoder_DistinctCountriesDistinctKeys(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodeResult{Latitude: 1, Longitude: 1, Found: true}}
	c := NewCachedGeocoder(inner, 10)

	_, _ = c.Geocode(context.Background(), "Warszawa", "pl")
	_, _ = c.Geocode(context.Background(), "Warszawa", "de")

	assert.Equal(t, 2, inner.calls)
}

func TestLRUCache_EvictsOldest(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", domain.GeocodeResult{Latitude: 1, Found: true})
	c.put("b", domain.GeocodeResult{Latitude: 2, Found: true})

	// Touch "a" so "b" becomes least recently used.
	_, ok := c.get("a")
	require.True(t, ok)

	c.put("c", domain.GeocodeResult{Latitude: 3, Found: true})

	_, ok = c.get("b")
	assert.False(t, ok, "least recently used entry must be evicted")
	_, ok = c.get("a")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
}

func TestLRUCache_UpdateMovesToFront(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", domain.GeocodeResult{Latitude: 1, Found: true})
	c.put("b", domain.GeocodeResult{Latitude: 2, Found: true})
	c.put("a", domain.GeocodeResult{Latitude: 9, Found: true})
	c.put("c", domain.GeocodeResult{Latitude: 3, Found: true})

	got, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, 9.0, got.Latitude)
	_, ok = c.get("b")
	assert.False(t, ok)
}

func TestLRUCache_ManyEntries(t *testing.T) {
	c := newLRUCache(100)
	for i := 0; i < 250; i++ {
		c.put(fmt.Sprintf("key-%d", i), domain.GeocodeResult{Latitude: float64(i), Found: true})
	}
	assert.Len(t, c.entries, 100)
}
