package domain

import "fmt"

// dedupePrecision is the coordinate rounding used to form location groups:
// 3 decimal degrees, about 111 m. Stations whose resolved positions round to
// the same cell are display duplicates on a map.
const dedupePrecision = "%.3f|%.3f"

// majorRivers is the fixed set of main-stem river names (normalized) that
// win ties between otherwise equal co-located stations.
var majorRivers = map[string]struct{}{
	"wisla": {},
	"odra":  {},
	"warta": {},
	"bug":   {},
	"narew": {},
	"san":   {},
}

// locationKey buckets a station by its rounded coordinates.
func locationKey(s ClassifiedStation) string {
	return fmt.Sprintf(dedupePrecision, s.Coordinate.Latitude, s.Coordinate.Longitude)
}

// statusRank orders statuses for deduplication only: alarm above warning
// above everything else. Low/unknown/normal are equal here; level decides.
func statusRank(s Status) int {
	switch s {
	case StatusAlarm:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}

// beats reports whether challenger strictly outranks incumbent under the
// deduplication priority: status severity, then level magnitude, then
// major-river membership. Equal-priority challengers lose, which keeps the
// first-encountered station as the representative.
func beats(challenger, incumbent ClassifiedStation) bool {
	cr, ir := statusRank(challenger.Status), statusRank(incumbent.Status)
	if cr != ir {
		return cr > ir
	}
	if challenger.Level != incumbent.Level {
		return challenger.Level > incumbent.Level
	}
	_, cMajor := majorRivers[Normalize(challenger.River)]
	_, iMajor := majorRivers[Normalize(incumbent.River)]
	return cMajor && !iMajor
}

// Deduplicate reduces the station list to at most one representative per
// location group. It is a fold, not a sort: each group keeps a single
// incumbent, replaced only by a strictly higher-priority challenger, so the
// result is order-independent apart from the explicit first-encountered
// tie-break. Input order is preserved in the output; running Deduplicate on
// its own output is a fixed point.
func Deduplicate(stations []ClassifiedStation) []ClassifiedStation {
	best := make(map[string]int, len(stations)) // key -> index into out
	out := make([]ClassifiedStation, 0, len(stations))

	for _, s := range stations {
		key := locationKey(s)
		if i, ok := best[key]; ok {
			if beats(s, out[i]) {
				out[i] = s
			}
			continue
		}
		best[key] = len(out)
		out = append(out, s)
	}
	return out
}
