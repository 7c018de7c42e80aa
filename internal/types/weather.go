package types

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Observation is a single timestamped station reading. All speeds are m/s.
type Observation struct {
	Timestamp        time.Time `json:"timestamp" validate:"required"`
	WindSpeed        float64   `json:"wind_speed_m_s" validate:"gte=0"`
	WindGust         float64   `json:"wind_gust_m_s" validate:"gte=0"`
	WindDirectionDeg float64   `json:"wind_direction_deg" validate:"gte=0,lte=360"`
	TemperatureC     float64   `json:"temperature_c"`
	HumidityPct      float64   `json:"humidity_pct" validate:"gte=0,lte=100"`
	PressureHPa      float64   `json:"pressure_hpa" validate:"gt=0"`
	PrecipitationMM  *float64  `json:"precipitation_mm,omitempty"`
}

// ObservationSeries is an ordered sequence of observations for one location.
type ObservationSeries struct {
	LocationID   string        `json:"location_id"`
	Observations []Observation `json:"observations"`
}

// Len returns the number of observations.
func (s ObservationSeries) Len() int { return len(s.Observations) }

// Latest returns the most recent observation. ok is false for an empty series.
func (s ObservationSeries) Latest() (Observation, bool) {
	if len(s.Observations) == 0 {
		return Observation{}, false
	}
	return s.Observations[len(s.Observations)-1], true
}

// Schema is the ordered list of feature column names. Every FeatureRow in a
// FeatureSet carries values in exactly this order.
type Schema []string

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c == name {
			return i
		}
	}
	return -1
}

// Equal reports whether two schemas have the same columns in the same order.
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// FeatureRow is one engineered feature vector.
//
// Segment identifies the contiguous run the row belongs to after gap splitting;
// Step is the row's cadence index within that segment. Interpolated marks rows
// synthesized by gap filling.
type FeatureRow struct {
	Timestamp    time.Time `json:"timestamp"`
	Segment      int       `json:"segment"`
	Step         int       `json:"step"`
	Interpolated bool      `json:"interpolated"`
	Values       []float64 `json:"values"`
}

// FeatureSet is the output of one feature build.
type FeatureSet struct {
	Schema Schema       `json:"schema"`
	Rows   []FeatureRow `json:"rows"`
	// Excluded counts rows dropped for insufficient lag/tendency/rolling history.
	Excluded int `json:"excluded"`
	// Segments is the number of contiguous segments produced by gap splitting.
	Segments int `json:"segments"`
	// LatestAt is the final grid point of the input series, whether or not it
	// produced a row. Zero when the set was not built from a series.
	LatestAt time.Time `json:"latest_at,omitzero"`
}

// Fresh reports whether row is at the set's final grid point. Every row is
// fresh when LatestAt is unknown.
func (s *FeatureSet) Fresh(row FeatureRow) bool {
	return s.LatestAt.IsZero() || !row.Timestamp.Before(s.LatestAt)
}

// FeatureWindow is a fixed-length, contiguous stack of feature rows.
type FeatureWindow struct {
	Schema Schema
	Rows   []FeatureRow
}

// Len returns the number of rows in the window.
func (w FeatureWindow) Len() int { return len(w.Rows) }

// Last returns the most recent row. It panics on an empty window.
func (w FeatureWindow) Last() FeatureRow { return w.Rows[len(w.Rows)-1] }

// Column returns the value of the named column in every row, oldest first.
func (w FeatureWindow) Column(name string) ([]float64, error) {
	idx := w.Schema.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not in schema", name)
	}
	out := make([]float64, len(w.Rows))
	for i, r := range w.Rows {
		out[i] = r.Values[idx]
	}
	return out, nil
}

// Horizon is a forecast lead time in whole hours.
type Horizon int

// String renders the horizon as "3h".
func (h Horizon) String() string { return strconv.Itoa(int(h)) + "h" }

// Duration converts the horizon to a time.Duration.
func (h Horizon) Duration() time.Duration { return time.Duration(h) * time.Hour }

// MarshalText encodes the horizon as "3h" so maps keyed by Horizon render naturally.
func (h Horizon) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// UnmarshalText accepts "3h" or "3".
func (h *Horizon) UnmarshalText(b []byte) error {
	v, err := ParseHorizon(string(b))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// ParseHorizon parses "3h" or "3" into a positive Horizon.
func ParseHorizon(s string) (Horizon, error) {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s), "h"))
	if err != nil {
		return 0, fmt.Errorf("invalid horizon %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid horizon %q: must be positive", s)
	}
	return Horizon(n), nil
}

// SortHorizons returns a sorted, de-duplicated copy of hs.
func SortHorizons(hs []Horizon) []Horizon {
	seen := make(map[Horizon]struct{}, len(hs))
	out := make([]Horizon, 0, len(hs))
	for _, h := range hs {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Forecast sources.
const (
	SourceModel       = "model"
	SourcePersistence = "persistence"
)

// HorizonForecast is the median and tail wind speed (m/s) for one horizon.
// Tail >= Median holds for every forecast produced by the forecast adapter.
type HorizonForecast struct {
	Horizon Horizon `json:"horizon"`
	Median  float64 `json:"median_m_s"`
	Tail    float64 `json:"tail_m_s"`
	Source  string  `json:"source,omitempty"`
}

// ForecastSet maps horizons to their forecasts.
type ForecastSet map[Horizon]HorizonForecast

// Horizons returns the set's horizons in ascending order.
func (f ForecastSet) Horizons() []Horizon {
	out := make([]Horizon, 0, len(f))
	for h := range f {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Sorted returns the forecasts in ascending horizon order.
func (f ForecastSet) Sorted() []HorizonForecast {
	hs := f.Horizons()
	out := make([]HorizonForecast, len(hs))
	for i, h := range hs {
		out[i] = f[h]
	}
	return out
}

// Thresholds are the wind limits a decision is made against, in m/s.
type Thresholds struct {
	MedianMax float64 `json:"median_max_m_s" validate:"gt=0"`
	TailMax   float64 `json:"tail_max_m_s" validate:"gt=0"`
}

// Validate checks that both limits are finite and positive.
func (t Thresholds) Validate() error {
	if math.IsNaN(t.MedianMax) || math.IsInf(t.MedianMax, 0) || t.MedianMax <= 0 {
		return ConfigError("median_max_m_s must be a positive finite number, got %v", t.MedianMax)
	}
	if math.IsNaN(t.TailMax) || math.IsInf(t.TailMax, 0) || t.TailMax <= 0 {
		return ConfigError("tail_max_m_s must be a positive finite number, got %v", t.TailMax)
	}
	return nil
}

// HorizonCheck is the per-horizon outcome of a decision.
type HorizonCheck struct {
	Horizon  Horizon `json:"horizon"`
	Median   float64 `json:"median_m_s"`
	Tail     float64 `json:"tail_m_s"`
	MedianOK bool    `json:"median_ok"`
	TailOK   bool    `json:"tail_ok"`
}

// Passed reports whether both checks passed.
func (c HorizonCheck) Passed() bool { return c.MedianOK && c.TailOK }

// Decision is the outcome of applying thresholds to a forecast set.
type Decision struct {
	CanPlay          bool           `json:"can_play"`
	ViolatedHorizons []Horizon      `json:"violated_horizons"`
	Reason           string         `json:"reason"`
	ThresholdsUsed   Thresholds     `json:"thresholds_used"`
	Checks           []HorizonCheck `json:"checks"`
}
