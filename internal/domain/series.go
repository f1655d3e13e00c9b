package domain

import (
	"hash/fnv"
	"math"
	"strconv"
	"time"
)

// Range buckets for synthesized series. Each bucket has a fixed point count,
// spacing, and oscillation amplitude.
type rangeBucket struct {
	points    int
	step      time.Duration
	amplitude float64
}

var (
	bucketDay   = rangeBucket{points: 7, step: 4 * time.Hour, amplitude: 5}
	bucketWeek  = rangeBucket{points: 7, step: 24 * time.Hour, amplitude: 10}
	bucketMonth = rangeBucket{points: 7, step: 5 * 24 * time.Hour, amplitude: 15}
)

// trendStableBand is the absolute 24h delta below which the trend reads
// as stable rather than up or down.
const trendStableBand = 2

// numericSeed derives a stable numeric seed from a station id. Numeric ids
// are used directly; anything else hashes through FNV-32a so the synthesizer
// stays deterministic for alphanumeric upstream keys.
func numericSeed(stationID string) int64 {
	if n, err := strconv.ParseInt(stationID, 10, 64); err == nil {
		return n
	}
	h := fnv.New32a()
	h.Write([]byte(stationID))
	return int64(h.Sum32())
}

// synthesizePoints produces one deterministic pseudo-series. Every value is
// a pure function of (stationID, index, bucket) around the current level —
// no randomness, no time seeding beyond the wall-clock labels.
func synthesizePoints(stationID string, level float64, b rangeBucket) []SeriesPoint {
	id := numericSeed(stationID)
	now := clock.Now().UTC()
	oldest := now.Add(-time.Duration(b.points-1) * b.step)

	points := make([]SeriesPoint, b.points)
	for i := 0; i < b.points; i++ {
		seed := float64(id*10 + int64(i))
		value := level + math.Round(math.Sin(seed*0.1+float64(i)*0.7)*b.amplitude)
		if value < 0 {
			value = 0
		}
		points[i] = SeriesPoint{
			At:    oldest.Add(time.Duration(i) * b.step),
			Level: value,
		}
	}
	return points
}

// SynthesizeSeries builds the 24h/7d/30d fallback series for a station that
// has no real history upstream. Repeated calls with the same (stationID,
// level) under a frozen clock produce byte-identical output.
func SynthesizeSeries(stationID string, level float64) SeriesBundle {
	return SeriesBundle{
		Day:   synthesizePoints(stationID, level, bucketDay),
		Week:  synthesizePoints(stationID, level, bucketWeek),
		Month: synthesizePoints(stationID, level, bucketMonth),
	}
}

// DeriveTrend classifies the direction of a 24h series as the signed delta
// between its newest and oldest points. Deltas inside the stable band in
// either direction read as stable.
func DeriveTrend(day []SeriesPoint) (Trend, float64) {
	if len(day) < 2 {
		return TrendStable, 0
	}
	delta := day[len(day)-1].Level - day[0].Level
	switch {
	case math.Abs(delta) < trendStableBand:
		return TrendStable, delta
	case delta > 0:
		return TrendUp, delta
	default:
		return TrendDown, delta
	}
}
