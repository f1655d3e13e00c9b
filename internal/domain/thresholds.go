package domain

import "strings"

// ThresholdQuery is the (possibly ambiguous) live identity a reading carries.
// Region and RiverID are optional; empty values simply disable the cascade
// stages that need them.
type ThresholdQuery struct {
	StationName string
	Region      string
	RiverID     string
}

// thresholdEntry pairs a record with its precomputed normalized keys.
type thresholdEntry struct {
	rec    ThresholdRecord
	name   string
	region string
	river  string
}

// ThresholdTable resolves live station identities against the static
// reference table. The table keeps declaration order: duplicate station
// names are genuine in the source network and the final tie-break is
// "first record in table order".
type ThresholdTable struct {
	entries []thresholdEntry

	// StageObserver, when set, is invoked with the 1-based stage number
	// each time a cascade stage is consulted. Used by metrics and by tests
	// that assert later stages are never reached after a match.
	StageObserver func(stage int)
}

// NewThresholdTable builds a resolver table, assigning each record its
// insertion index and precomputing normalized comparison keys.
func NewThresholdTable(records []ThresholdRecord) *ThresholdTable {
	t := &ThresholdTable{entries: make([]thresholdEntry, 0, len(records))}
	for i, rec := range records {
		rec.Index = i
		t.entries = append(t.entries, thresholdEntry{
			rec:    rec,
			name:   Normalize(rec.StationName),
			region: Normalize(rec.Region),
			river:  Normalize(rec.RiverID),
		})
	}
	return t
}

// Len returns the number of loaded threshold records.
func (t *ThresholdTable) Len() int { return len(t.entries) }

func (t *ThresholdTable) observe(stage int) {
	if t.StageObserver != nil {
		t.StageObserver(stage)
	}
}

// Resolve runs the six-stage lookup cascade and returns the single best
// matching record, or nil when the cascade is exhausted. A stage is only
// consulted when every earlier stage produced zero results or could not
// settle on exactly one record. The stage order is load-bearing: the
// reference table contains near-duplicate names whose resolution depends
// on it.
func (t *ThresholdTable) Resolve(q ThresholdQuery) *ThresholdRecord {
	name := Normalize(q.StationName)
	if name == "" {
		return nil
	}
	region := Normalize(q.Region)
	river := Normalize(q.RiverID)

	// Stage 1: name + region + river, unambiguous only.
	if region != "" && river != "" {
		t.observe(1)
		cands := t.filter(func(e thresholdEntry) bool {
			return e.name == name && e.region == region && e.river == river
		})
		if len(cands) == 1 {
			return clone(cands[0])
		}
	}

	// Stage 2: name + region, river as a preference among survivors.
	if region != "" {
		t.observe(2)
		cands := t.filter(func(e thresholdEntry) bool {
			return e.name == name && e.region == region
		})
		if len(cands) > 0 {
			cands = narrow(cands, func(e thresholdEntry) bool { return river != "" && e.river == river })
			return clone(cands[0])
		}
	}

	// Stage 3: name + river, region as a preference among survivors.
	if river != "" {
		t.observe(3)
		cands := t.filter(func(e thresholdEntry) bool {
			return e.name == name && e.river == river
		})
		if len(cands) > 0 {
			cands = narrow(cands, func(e thresholdEntry) bool { return region != "" && e.region == region })
			return clone(cands[0])
		}
	}

	// Stage 4: name alone, narrowed by region then river.
	t.observe(4)
	cands := t.filter(func(e thresholdEntry) bool { return e.name == name })
	if len(cands) > 0 {
		cands = narrow(cands, func(e thresholdEntry) bool { return region != "" && e.region == region })
		cands = narrow(cands, func(e thresholdEntry) bool { return river != "" && e.river == river })
		return clone(cands[0])
	}

	// Stage 5: substring match either direction, narrowed the same way.
	t.observe(5)
	cands = t.filter(func(e thresholdEntry) bool {
		return strings.Contains(e.name, name) || strings.Contains(name, e.name)
	})
	if len(cands) > 0 {
		cands = narrow(cands, func(e thresholdEntry) bool { return region != "" && e.region == region })
		cands = narrow(cands, func(e thresholdEntry) bool { return river != "" && e.river == river })
		return clone(cands[0])
	}

	// Stage 6: cascade exhausted.
	t.observe(6)
	return nil
}

// filter returns entries matching pred, in table order.
func (t *ThresholdTable) filter(pred func(thresholdEntry) bool) []thresholdEntry {
	var out []thresholdEntry
	for _, e := range t.entries {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// narrow keeps the candidates matching pred, unless that would empty the
// set, in which case the original candidates survive. The head of the
// returned slice is always the first record in table order.
func narrow(cands []thresholdEntry, pred func(thresholdEntry) bool) []thresholdEntry {
	var out []thresholdEntry
	for _, e := range cands {
		if pred(e) {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return cands
	}
	return out
}

func clone(e thresholdEntry) *ThresholdRecord {
	rec := e.rec
	return &rec
}
