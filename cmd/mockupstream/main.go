// Command mockupstream serves a deterministic stand-in for the public
// hydrological API, built from the embedded reference assets. It lets the
// engine run end to end offline:
//
//	go run ./cmd/mockupstream -addr :9090
//	UPSTREAM_URL=http://localhost:9090 go run ./cmd/engine
//
// Levels oscillate deterministically around each station's warning level so
// every status class shows up without hand-editing fixtures.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/riverwatch/station-engine/internal/domain"
	"github.com/riverwatch/station-engine/internal/staticdata"
)

// mockReading mirrors the upstream wire format.
type mockReading struct {
	StationID  string `json:"id_stacji"`
	Station    string `json:"stacja"`
	River      string `json:"rzeka"`
	Region     string `json:"województwo"`
	WaterLevel string `json:"stan_wody"`
	MeasuredAt string `json:"stan_wody_data_pomiaru"`
}

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	thresholdsPath := flag.String("thresholds", "", "threshold table JSON (empty uses the embedded asset)")
	flag.Parse()

	records, err := staticdata.RawThresholds(*thresholdsPath)
	if err != nil {
		log.Fatalf("load thresholds: %v", err)
	}

	// Readings are served without lat/lon so the coordinate cascade gets
	// exercised against the static table and geocoder.
	http.HandleFunc("GET /", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(buildPayload(records, time.Now())); err != nil {
			log.Printf("encode payload: %v", err)
		}
	})

	log.Printf("mock upstream listening on %s (%d stations)", *addr, len(records))
	log.Fatal(http.ListenAndServe(*addr, nil))
}

// buildPayload synthesizes one reading per threshold record. The level swings
// around the warning level on a per-station phase, so a fraction of stations
// sits in warning or alarm at any moment and the mix shifts slowly over time.
func buildPayload(records []domain.ThresholdRecord, now time.Time) []mockReading {
	out := make([]mockReading, 0, len(records))
	for i, rec := range records {
		base := rec.WarningLevel
		if domain.IsSentinelLevel(base) {
			base = 200
		}

		phase := float64(i)*0.9 + float64(now.Unix()/3600)*0.3
		level := base + math.Round(math.Sin(phase)*base*0.25)
		if level < 0 {
			level = 0
		}

		out = append(out, mockReading{
			StationID:  fmt.Sprintf("9%08d", i),
			Station:    rec.StationName,
			River:      rec.RiverID,
			Region:     rec.Region,
			WaterLevel: fmt.Sprintf("%g", level),
			MeasuredAt: now.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	return out
}
