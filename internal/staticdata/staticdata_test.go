package staticdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/riverwatch/station-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadThresholds_Embedded(t *testing.T) {
	table, err := LoadThresholds("")
	require.NoError(t, err)
	assert.Greater(t, table.Len(), 20)

	rec := table.Resolve(domain.ThresholdQuery{StationName: "Wisła", Region: "śląskie", RiverID: "soła"})
	require.NotNil(t, rec)
	assert.Equal(t, 150.0, rec.WarningLevel)
	assert.Equal(t, 180.0, rec.AlarmLevel)
}

func TestLoadThresholds_DuplicateNamesPreserveOrder(t *testing.T) {
	table, err := LoadThresholds("")
	require.NoError(t, err)

	// "Przewóz" exists in two regions; without disambiguating keys the
	// first declared record must win.
	rec := table.Resolve(domain.ThresholdQuery{StationName: "Przewóz"})
	require.NotNil(t, rec)
	assert.Equal(t, "lubuskie", rec.Region)
}

func TestLoadThresholds_FileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.json")
	content := `[{"station_name":"Testowo","region":"mazowieckie","river_id":"liwiec","warning_level":100,"alarm_level":140}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := LoadThresholds(path)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
}

func TestLoadThresholds_Invalid(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadThresholds(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
	})

	t.Run("empty table", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.json")
		require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))
		_, err := LoadThresholds(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty")
	})

	t.Run("nameless record", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"warning_level":1,"alarm_level":2}]`), 0o644))
		_, err := LoadThresholds(path)
		require.Error(t, err)
	})
}

func TestLoadCoordinates_Embedded(t *testing.T) {
	table, err := LoadCoordinates("")
	require.NoError(t, err)

	lat, lon, ok := table.ByID("152210010")
	require.True(t, ok)
	assert.InDelta(t, 52.2442, lat, 0.0001)
	assert.InDelta(t, 21.0394, lon, 0.0001)

	lat, _, ok = table.ByName(domain.Normalize("Warszawa Bulwary"))
	require.True(t, ok)
	assert.InDelta(t, 52.2442, lat, 0.0001)

	_, _, ok = table.ByID("000000000")
	assert.False(t, ok)
}
