package domain

import "time"

// Status is the danger classification of a station reading.
type Status string

const (
	StatusLow     Status = "low"
	StatusNormal  Status = "normal"
	StatusWarning Status = "warning"
	StatusAlarm   Status = "alarm"
	StatusUnknown Status = "unknown"
)

// Trend describes the direction of the recent water-level series.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// CoordSource records which step of the coordinate cascade produced a position.
type CoordSource string

const (
	CoordUpstream    CoordSource = "upstream"      // reading already carried coordinates
	CoordStaticID    CoordSource = "static-by-id"  // static table, keyed by station id
	CoordStaticName  CoordSource = "static-by-name"
	CoordCache       CoordSource = "cache"         // persistent cache from a prior geocoding run
	CoordGeocoded    CoordSource = "geocoded"
	CoordDefault     CoordSource = "default"       // country centroid fallback
)

// LiveReading is the typed form of one upstream station record, mapped from
// the duck-typed upstream JSON at the ingestion boundary. Immutable; one per
// fetch cycle.
type LiveReading struct {
	StationID  string    `json:"station_id"`
	Name       string    `json:"name"`
	River      string    `json:"river"`  // may be the "-" placeholder
	Region     string    `json:"region"` // administrative unit (voivodeship)
	Level      float64   `json:"level"`  // centimetres; 0 may mean "no reading"
	HasLevel   bool      `json:"has_level"`
	Latitude   float64   `json:"latitude,omitempty"`
	Longitude  float64   `json:"longitude,omitempty"`
	HasCoords  bool      `json:"has_coords"`
	MeasuredAt time.Time `json:"measured_at"`
}

// HasIdentity reports whether the reading can be attributed to a station at
// all. Readings without any identity are dropped, not propagated as errors.
func (r LiveReading) HasIdentity() bool {
	return r.StationID != "" || r.Name != ""
}

// ThresholdRecord is one row of the hand-curated reference table. Station
// names are NOT unique across the network; Index preserves declaration order
// because the resolver's final tie-break depends on it.
type ThresholdRecord struct {
	StationName  string  `json:"station_name"`
	Region       string  `json:"region"`
	RiverID      string  `json:"river_id"` // normalized river key
	WarningLevel float64 `json:"warning_level"`
	AlarmLevel   float64 `json:"alarm_level"`
	LowLevel     float64 `json:"low_level,omitempty"`
	Index        int     `json:"-"`
}

// Coordinate is a resolved WGS-84 position together with its provenance.
type Coordinate struct {
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	Source    CoordSource `json:"source"`
	// RetryGeocode marks a station whose geocoding failed this cycle and
	// should be attempted again on a later refresh.
	RetryGeocode bool `json:"retry_geocode,omitempty"`
}

// SeriesPoint is one synthesized or real historical sample.
type SeriesPoint struct {
	At    time.Time `json:"at"`
	Level float64   `json:"level"`
}

// SeriesBundle holds the per-range series for one station.
type SeriesBundle struct {
	Day   []SeriesPoint `json:"day"`   // 24h: 7 points, 4h apart
	Week  []SeriesPoint `json:"week"`  // 7d: 7 daily points
	Month []SeriesPoint `json:"month"` // 30d: 7 points, 5 days apart
}

// ClassifiedStation is the sole output type of the engine: a live reading
// folded together with resolved thresholds, classification, position, and
// trend. Rebuilt wholesale on every refresh cycle.
type ClassifiedStation struct {
	LiveReading

	Thresholds *ThresholdRecord `json:"thresholds,omitempty"`
	Status     Status           `json:"status"`
	Coordinate Coordinate       `json:"coordinate"`
	Trend      Trend            `json:"trend"`
	TrendValue float64          `json:"trend_value"`
	Series     SeriesBundle     `json:"series"`
}

// HasKnownThresholds reports whether at least one of the station's warning or
// alarm levels is a real curated value rather than a sentinel.
func (s ClassifiedStation) HasKnownThresholds() bool {
	if s.Thresholds == nil {
		return false
	}
	return !IsSentinelLevel(s.Thresholds.WarningLevel) || !IsSentinelLevel(s.Thresholds.AlarmLevel)
}
