package types

import "time"

// Fallback reasons recorded when the advisor degrades to persistence.
const (
	FallbackNone                = ""
	FallbackInsufficientHistory = "insufficient_history"
	FallbackForecastError       = "forecast_error"
)

// Advice is the full answer for one location: the decision plus the forecasts
// it was derived from. It is what the presentation layer renders.
type Advice struct {
	ID             string            `json:"id"`
	LocationID     string            `json:"location_id"`
	IssuedAt       time.Time         `json:"issued_at"`
	ObservedAt     time.Time         `json:"observed_at"`
	Decision       Decision          `json:"decision"`
	Forecasts      []HorizonForecast `json:"forecasts"`
	SafetyScore    float64           `json:"safety_score"`
	ModelName      string            `json:"model"`
	FallbackReason string            `json:"fallback_reason,omitempty"`
	// AlternativeTimes lists forecast valid times that pass on their own
	// when play is vetoed now.
	AlternativeTimes []time.Time `json:"alternative_times,omitempty"`
}

// DecisionEvent is published to the decision queue for the presentation layer.
type DecisionEvent struct {
	EventID    string    `json:"event_id"`
	AdviceID   string    `json:"advice_id"`
	LocationID string    `json:"location_id"`
	CanPlay    bool      `json:"can_play"`
	Reason     string    `json:"reason"`
	IssuedAt   time.Time `json:"issued_at"`
	Advice     Advice    `json:"advice"`
}

// DecisionRecord is a persisted decision-log entry.
type DecisionRecord struct {
	ID               string            `json:"id"`
	LocationID       string            `json:"location_id"`
	IssuedAt         time.Time         `json:"issued_at"`
	CanPlay          bool              `json:"can_play"`
	ViolatedHorizons []Horizon         `json:"violated_horizons"`
	Reason           string            `json:"reason"`
	MedianMax        float64           `json:"median_max_m_s"`
	TailMax          float64           `json:"tail_max_m_s"`
	Forecasts        []HorizonForecast `json:"forecasts"`
	ModelName        string            `json:"model"`
	FallbackReason   string            `json:"fallback_reason,omitempty"`
}

// AdviceRequest asks for advice for one location. Horizons and Thresholds
// default to the configured values when omitted.
type AdviceRequest struct {
	LocationID   string        `json:"location_id" validate:"required,max=128"`
	Observations []Observation `json:"observations" validate:"required,min=1,max=2000,dive"`
	Horizons     []int         `json:"horizons,omitempty" validate:"omitempty,max=12,dive,min=1,max=168"`
	Thresholds   *Thresholds   `json:"thresholds,omitempty"`
}

// Series returns the request's observations as a series.
func (r AdviceRequest) Series() ObservationSeries {
	return ObservationSeries{LocationID: r.LocationID, Observations: r.Observations}
}

// BatchAdviceRequest asks for advice for several locations at once.
type BatchAdviceRequest struct {
	Requests []AdviceRequest `json:"requests" validate:"required,min=1,dive"`
}

// BatchAdviceResult separates successes from failures, keyed by location ID.
type BatchAdviceResult struct {
	Advice map[string]*Advice     `json:"advice"`
	Errors map[string]ErrorDetail `json:"errors,omitempty"`
}

// ErrorDetail is a lightweight error structure used in batch error maps.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ForecastInput is one horizon of a client-supplied forecast set.
type ForecastInput struct {
	Horizon int     `json:"horizon" validate:"min=1"`
	Median  float64 `json:"median_m_s"`
	Tail    float64 `json:"tail_m_s"`
}

// DecideRequest runs the decision engine on client-supplied forecasts.
type DecideRequest struct {
	Forecasts  []ForecastInput `json:"forecasts" validate:"required,min=1,dive"`
	Thresholds *Thresholds     `json:"thresholds,omitempty"`
}

// ForecastSet converts the inputs into a ForecastSet. A repeated horizon keeps
// the last entry.
func (r DecideRequest) ForecastSet() ForecastSet {
	out := make(ForecastSet, len(r.Forecasts))
	for _, f := range r.Forecasts {
		h := Horizon(f.Horizon)
		out[h] = HorizonForecast{Horizon: h, Median: f.Median, Tail: f.Tail}
	}
	return out
}
