// Package hydro fetches live water-level readings from the public
// hydrological API. The upstream uses ad-hoc Polish field names and
// string-encoded numbers; everything is mapped to the typed domain record
// right here at the boundary so the rest of the pipeline never sees raw
// upstream fields.
package hydro

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/riverwatch/station-engine/internal/domain"
)

// ErrUpstreamUnavailable marks a total fetch failure. It is the only hard
// error a refresh cycle surfaces; per-station problems degrade instead.
var ErrUpstreamUnavailable = errors.New("upstream readings unavailable")

// measuredAtLayout is the upstream timestamp format, e.g. "2026-08-29 10:10:00".
const measuredAtLayout = "2006-01-02 15:04:05"

// rawReading mirrors the upstream JSON verbatim.
type rawReading struct {
	StationID  string  `json:"id_stacji"`
	Station    string  `json:"stacja"`
	River      string  `json:"rzeka"`
	Region     string  `json:"województwo"`
	WaterLevel *string `json:"stan_wody"`
	MeasuredAt string  `json:"stan_wody_data_pomiaru"`
	Latitude   *string `json:"lat"`
	Longitude  *string `json:"lon"`
}

// Client fetches the full station list from the upstream API.
type Client struct {
	httpClient *http.Client
	url        string
	logger     *slog.Logger
}

// NewClient creates an upstream readings client.
func NewClient(url string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		logger:     logger,
	}
}

// FetchReadings downloads and maps the current reading for every station.
// Any transport or decode failure wraps ErrUpstreamUnavailable; the engine
// never synthesizes live readings.
func (c *Client) FetchReadings(ctx context.Context) ([]domain.LiveReading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstreamUnavailable, resp.StatusCode, body)
	}

	var raws []rawReading
	if err := json.NewDecoder(resp.Body).Decode(&raws); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrUpstreamUnavailable, err)
	}

	readings := make([]domain.LiveReading, 0, len(raws))
	for _, raw := range raws {
		readings = append(readings, mapReading(raw))
	}
	return readings, nil
}

// mapReading converts one upstream record to the typed domain form,
// coercing string-encoded decimals and tolerating absent values.
func mapReading(raw rawReading) domain.LiveReading {
	r := domain.LiveReading{
		StationID: strings.TrimSpace(raw.StationID),
		Name:      strings.TrimSpace(raw.Station),
		River:     strings.TrimSpace(raw.River),
		Region:    strings.TrimSpace(raw.Region),
	}

	if raw.WaterLevel != nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(*raw.WaterLevel), 64); err == nil {
			r.Level = v
			r.HasLevel = true
		}
	}

	if t, err := parseMeasuredAt(raw.MeasuredAt); err == nil {
		r.MeasuredAt = t
	}

	if raw.Latitude != nil && raw.Longitude != nil {
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(*raw.Latitude), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(*raw.Longitude), 64)
		if errLat == nil && errLon == nil && (lat != 0 || lon != 0) {
			r.Latitude, r.Longitude, r.HasCoords = lat, lon, true
		}
	}

	return r
}

// parseMeasuredAt accepts the upstream "YYYY-MM-DD HH:MM:SS" layout, RFC
// 3339, or epoch seconds.
func parseMeasuredAt(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if t, err := time.Parse(measuredAtLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(epoch, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
