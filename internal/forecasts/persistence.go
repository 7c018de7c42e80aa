package forecasts

import (
	"context"

	"courtwind/internal/types"
)

// WindSpeedColumn is the feature column persistence reads its value from.
const WindSpeedColumn = "wind_speed_m_s"

// Persistence forecasts the most recent observed wind speed at every horizon.
type Persistence struct{}

// Name implements Model.
func (Persistence) Name() string { return types.SourcePersistence }

// Predict implements Model.
func (Persistence) Predict(_ context.Context, window types.FeatureWindow, horizons []types.Horizon) (map[types.Horizon]Prediction, error) {
	idx := window.Schema.Index(WindSpeedColumn)
	if idx < 0 {
		return nil, types.ConfigError("window schema has no %s column", WindSpeedColumn)
	}
	if window.Len() == 0 {
		return nil, types.NewAppError(types.ErrCodeInsufficientHistory, "persistence needs at least one row", nil)
	}

	latest := window.Last().Values[idx]
	out := make(map[types.Horizon]Prediction, len(horizons))
	for _, h := range horizons {
		out[h] = Prediction{Median: latest}
	}
	return out, nil
}
