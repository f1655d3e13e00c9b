// Command validate runs integrity checks over the static reference assets:
// the threshold table and the coordinate table. It verifies record shape,
// level ordering, cascade resolvability, and cross-table consistency.
//
// Usage:
//
//	go run ./cmd/validate
//	go run ./cmd/validate -thresholds data/thresholds.json -coordinates data/coordinates.json
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/riverwatch/station-engine/internal/domain"
	"github.com/riverwatch/station-engine/internal/staticdata"
)

// Poland's bounding box, with a little slack for border stations.
const (
	minLat = 48.9
	maxLat = 55.0
	minLon = 13.9
	maxLon = 24.2
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	thresholdsPath := flag.String("thresholds", "", "threshold table JSON (empty uses the embedded asset)")
	coordinatesPath := flag.String("coordinates", "", "coordinate table JSON (empty uses the embedded asset)")
	flag.Parse()

	if code := run(*thresholdsPath, *coordinatesPath); code != 0 {
		os.Exit(code)
	}
}

func run(thresholdsPath, coordinatesPath string) int {
	fmt.Println("=== Reference Asset Validation ===")
	fmt.Println()

	table, err := staticdata.LoadThresholds(thresholdsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load thresholds: %v\n", err)
		return 1
	}
	records, err := staticdata.RawThresholds(thresholdsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load raw thresholds: %v\n", err)
		return 1
	}
	coords, err := staticdata.RawCoordinates(coordinatesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load coordinates: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateThresholdLevels(records),
		validateThresholdDuplicates(records),
		validateSelfResolution(table, records),
		validateCoordinateBounds(coords),
		validateCrossReference(table, coords),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-44s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d thresholds, %d coordinates\n", len(records), len(coords))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// validateThresholdLevels checks that real (non-sentinel) levels are
// positive and ordered: low < warning < alarm.
func validateThresholdLevels(records []domain.ThresholdRecord) *phase {
	p := &phase{name: "Phase 1: Threshold Levels"}

	for i, rec := range records {
		warnReal := !domain.IsSentinelLevel(rec.WarningLevel)
		alarmReal := !domain.IsSentinelLevel(rec.AlarmLevel)
		lowReal := rec.LowLevel != 0 && !domain.IsSentinelLevel(rec.LowLevel)

		if warnReal && alarmReal && rec.WarningLevel >= rec.AlarmLevel {
			p.errorf("record %d (%s): warning %g >= alarm %g", i, rec.StationName, rec.WarningLevel, rec.AlarmLevel)
		}
		if lowReal && warnReal && rec.LowLevel >= rec.WarningLevel {
			p.errorf("record %d (%s): low %g >= warning %g", i, rec.StationName, rec.LowLevel, rec.WarningLevel)
		}
		if rec.StationName == "" {
			p.errorf("record %d: empty station name", i)
		}
	}
	return p
}

// validateThresholdDuplicates flags exact (name, region, river) duplicates.
// Duplicate names across regions or rivers are genuine; a full triple
// duplicate means the later record can never win the cascade.
func validateThresholdDuplicates(records []domain.ThresholdRecord) *phase {
	p := &phase{name: "Phase 2: Threshold Duplicates"}

	seen := map[string]int{}
	for i, rec := range records {
		key := domain.Normalize(rec.StationName) + "|" + domain.Normalize(rec.Region) + "|" + domain.Normalize(rec.RiverID)
		if prev, ok := seen[key]; ok {
			p.errorf("record %d (%s) duplicates record %d: same name, region, and river", i, rec.StationName, prev)
			continue
		}
		seen[key] = i
	}
	return p
}

// validateSelfResolution verifies every record resolves back to itself when
// queried with its own identity.
func validateSelfResolution(table *domain.ThresholdTable, records []domain.ThresholdRecord) *phase {
	p := &phase{name: "Phase 3: Cascade Self-Resolution"}

	for i, rec := range records {
		got := table.Resolve(domain.ThresholdQuery{
			StationName: rec.StationName,
			Region:      rec.Region,
			RiverID:     rec.RiverID,
		})
		if got == nil {
			p.errorf("record %d (%s): cascade exhausted for its own identity", i, rec.StationName)
			continue
		}
		if got.Index != i {
			p.errorf("record %d (%s): resolves to record %d (%s)", i, rec.StationName, got.Index, got.StationName)
		}
	}
	return p
}

// validateCoordinateBounds checks every static coordinate lies inside the
// country bounding box.
func validateCoordinateBounds(coords []staticdata.CoordinateRecord) *phase {
	p := &phase{name: "Phase 4: Coordinate Bounds"}

	for i, c := range coords {
		if c.StationID == "" && c.StationName == "" {
			p.errorf("entry %d: no station id or name", i)
		}
		if c.Latitude < minLat || c.Latitude > maxLat {
			p.errorf("entry %d (%s): latitude %g outside [%g, %g]", i, c.StationName, c.Latitude, minLat, maxLat)
		}
		if c.Longitude < minLon || c.Longitude > maxLon {
			p.errorf("entry %d (%s): longitude %g outside [%g, %g]", i, c.StationName, c.Longitude, minLon, maxLon)
		}
	}
	return p
}

// validateCrossReference warns when a named coordinate entry has no
// threshold record at all; such stations always classify as unknown.
func validateCrossReference(table *domain.ThresholdTable, coords []staticdata.CoordinateRecord) *phase {
	p := &phase{name: "Phase 5: Cross-Table Consistency"}

	for i, c := range coords {
		if c.StationName == "" {
			continue
		}
		if table.Resolve(domain.ThresholdQuery{StationName: c.StationName}) == nil {
			p.errorf("entry %d (%s): no threshold record resolves for this name", i, c.StationName)
		}
	}
	return p
}
