package domain

import "math"

// Viewport is the visible map region, described by its bounding box in
// degrees. LatSpan drives the zoom derivation.
type Viewport struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// LatSpan returns the angular height of the viewport.
func (v Viewport) LatSpan() float64 { return v.MaxLat - v.MinLat }

// LonSpan returns the angular width of the viewport.
func (v Viewport) LonSpan() float64 { return v.MaxLon - v.MinLon }

// Zoom derives a web-map style zoom level from the viewport's angular span.
func (v Viewport) Zoom() int {
	span := v.LatSpan()
	if span <= 0 {
		return maxZoom
	}
	z := int(math.Round(math.Log2(360 / span)))
	if z < 0 {
		return 0
	}
	if z > maxZoom {
		return maxZoom
	}
	return z
}

// expanded returns the viewport grown by margin times its own span on every
// side, so stations just off-screen stay rendered while panning.
func (v Viewport) expanded(margin float64) Viewport {
	dLat := v.LatSpan() * margin
	dLon := v.LonSpan() * margin
	return Viewport{
		MinLat: v.MinLat - dLat,
		MaxLat: v.MaxLat + dLat,
		MinLon: v.MinLon - dLon,
		MaxLon: v.MaxLon + dLon,
	}
}

// contains reports whether a station's resolved coordinate falls inside the
// viewport bounds.
func (v Viewport) contains(s ClassifiedStation) bool {
	c := s.Coordinate
	return c.Latitude >= v.MinLat && c.Latitude <= v.MaxLat &&
		c.Longitude >= v.MinLon && c.Longitude <= v.MaxLon
}

// Zoom bands and viewport margins. Below mediumZoom the whole country fits
// on screen and density is acceptable, so every station with curated
// thresholds renders. Above it, only stations near the viewport render,
// with a slightly wider margin at street-level zooms where panning is fast.
const (
	mediumZoom = 7
	highZoom   = 10
	maxZoom    = 19

	mediumMargin = 0.6
	highMargin   = 0.7
)

// FilterVisible decides which deduplicated stations should render for the
// given viewport. Alarm and warning stations are always included regardless
// of zoom or bounds. Stations whose thresholds are entirely sentinel are
// excluded from the bulk paths; they can still enter through the
// alarm/warning gate, which per the classifier's sentinel rule should not
// happen — the check is defensive only.
func FilterVisible(stations []ClassifiedStation, v Viewport) []ClassifiedStation {
	zoom := v.Zoom()

	var bounds Viewport
	switch {
	case zoom < mediumZoom:
		// country scale: no bounds test
	case zoom < highZoom:
		bounds = v.expanded(mediumMargin)
	default:
		bounds = v.expanded(highMargin)
	}

	out := make([]ClassifiedStation, 0, len(stations))
	for _, s := range stations {
		if s.Status == StatusAlarm || s.Status == StatusWarning {
			out = append(out, s)
			continue
		}
		if !s.HasKnownThresholds() {
			continue
		}
		if zoom < mediumZoom || bounds.contains(s) {
			out = append(out, s)
		}
	}
	return out
}
