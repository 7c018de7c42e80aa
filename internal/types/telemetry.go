package types

// CloudWatch metric names. All components MUST use these constants.
const (
	MetricAdviceIssued     = "AdviceIssued"
	MetricAdviceCanPlay    = "AdviceCanPlay"
	MetricForecastFallback = "ForecastFallback"
	MetricTailClamped      = "TailClamped"
	MetricRowsExcluded     = "FeatureRowsExcluded"
	MetricInferenceLatency = "InferenceLatency"
	MetricAPIRequestCount  = "APIRequestCount"
	MetricAPILatency       = "APILatency"

	DimHorizon  = "Horizon"
	DimReason   = "Reason"
	DimSource   = "Source"
	DimEndpoint = "Endpoint"
	DimStatus   = "Status"

	MetricNamespace = "CourtWind"
)
