// Package staticdata loads the hand-curated reference tables: warning/alarm
// thresholds and known station coordinates. Both ship embedded in the binary
// and can be overridden with external files, keeping the resolution
// algorithms independent of how the tables are stored.
package staticdata

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/riverwatch/station-engine/internal/domain"
)

//go:embed assets/thresholds.json
var embeddedThresholds []byte

//go:embed assets/coordinates.json
var embeddedCoordinates []byte

// LoadThresholds reads the threshold reference table. An empty path loads
// the embedded default asset. Declaration order in the file is preserved;
// the resolver's tie-break depends on it.
func LoadThresholds(path string) (*domain.ThresholdTable, error) {
	records, err := RawThresholds(path)
	if err != nil {
		return nil, err
	}
	return domain.NewThresholdTable(records), nil
}

// RawThresholds reads the threshold asset as a plain record slice, in
// declaration order. Used by the asset validator.
func RawThresholds(path string) ([]domain.ThresholdRecord, error) {
	data, err := readAsset(path, embeddedThresholds)
	if err != nil {
		return nil, fmt.Errorf("load thresholds: %w", err)
	}

	var records []domain.ThresholdRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse thresholds: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("threshold table is empty")
	}
	for i, r := range records {
		if r.StationName == "" {
			return nil, fmt.Errorf("threshold record %d has no station name", i)
		}
	}
	return records, nil
}

// CoordinateRecord is one row of the static coordinate asset.
type CoordinateRecord struct {
	StationID   string  `json:"station_id,omitempty"`
	StationName string  `json:"station_name,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// CoordinateTable answers static coordinate lookups by stable station id or
// by normalized station name.
type CoordinateTable struct {
	byID   map[string]CoordinateRecord
	byName map[string]CoordinateRecord
}

// LoadCoordinates reads the static coordinate table. An empty path loads
// the embedded default asset.
func LoadCoordinates(path string) (*CoordinateTable, error) {
	entries, err := RawCoordinates(path)
	if err != nil {
		return nil, err
	}

	t := &CoordinateTable{
		byID:   make(map[string]CoordinateRecord, len(entries)),
		byName: make(map[string]CoordinateRecord, len(entries)),
	}
	for _, e := range entries {
		if e.StationID != "" {
			if _, dup := t.byID[e.StationID]; !dup {
				t.byID[e.StationID] = e
			}
		}
		if e.StationName != "" {
			key := domain.Normalize(e.StationName)
			if _, dup := t.byName[key]; !dup {
				t.byName[key] = e
			}
		}
	}
	return t, nil
}

// RawCoordinates reads the coordinate asset as a plain record slice, in
// declaration order. Used by the asset validator.
func RawCoordinates(path string) ([]CoordinateRecord, error) {
	data, err := readAsset(path, embeddedCoordinates)
	if err != nil {
		return nil, fmt.Errorf("load coordinates: %w", err)
	}

	var entries []CoordinateRecord
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse coordinates: %w", err)
	}
	for i, e := range entries {
		if e.StationID == "" && e.StationName == "" {
			return nil, fmt.Errorf("coordinate entry %d has neither id nor name", i)
		}
	}
	return entries, nil
}

// ByID looks a coordinate up by stable station id.
func (t *CoordinateTable) ByID(stationID string) (lat, lon float64, ok bool) {
	e, ok := t.byID[stationID]
	return e.Latitude, e.Longitude, ok
}

// ByName looks a coordinate up by normalized station name.
func (t *CoordinateTable) ByName(normalizedName string) (lat, lon float64, ok bool) {
	e, ok := t.byName[normalizedName]
	return e.Latitude, e.Longitude, ok
}

// Len returns the number of distinct keys the table answers for.
func (t *CoordinateTable) Len() int { return len(t.byID) + len(t.byName) }

func readAsset(path string, embedded []byte) ([]byte, error) {
	if path == "" {
		return embedded, nil
	}
	return os.ReadFile(path)
}
