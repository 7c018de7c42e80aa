package features

import (
	"fmt"

	"courtwind/internal/types"
)

// Raw column names.
const (
	ColWindSpeed   = "wind_speed_m_s"
	ColWindGust    = "wind_gust_m_s"
	ColTemperature = "temperature_c"
	ColHumidity    = "humidity_pct"
	ColPressure    = "pressure_hpa"
)

// Derived column names that do not depend on configuration.
const (
	ColHourSin = "hour_sin"
	ColHourCos = "hour_cos"
	ColDowSin  = "dow_sin"
	ColDowCos  = "dow_cos"
	ColDoySin  = "doy_sin"
	ColDoyCos  = "doy_cos"
	ColWindU   = "wind_u"
	ColWindV   = "wind_v"
)

// Columns returns the feature schema for cfg. The order here is the only place
// column order is defined; training and inference both read it from here.
//
// Wind direction and precipitation are not columns. Direction is carried by
// wind_u/wind_v.
func Columns(cfg Config) types.Schema {
	cols := types.Schema{ColWindSpeed, ColWindGust, ColTemperature, ColHumidity, ColPressure}
	for _, lag := range cfg.LagOffsets {
		cols = append(cols, SpeedLagColumn(lag))
	}
	for _, lag := range cfg.GustLagOffsets {
		cols = append(cols, GustLagColumn(lag))
	}
	cols = append(cols,
		ColHourSin, ColHourCos,
		ColDowSin, ColDowCos,
		ColDoySin, ColDoyCos,
		PressureTendencyColumn(cfg.PressureTendencySteps),
		ColWindU, ColWindV,
	)
	for _, stat := range []string{"mean", "std", "min", "max"} {
		cols = append(cols, fmt.Sprintf("wind_speed_roll_%s_%d", stat, cfg.RollingWindow))
	}
	return cols
}

// SpeedLagColumn names the wind speed lag column for a lookback of k steps.
func SpeedLagColumn(k int) string { return fmt.Sprintf("wind_speed_lag_%d", k) }

// GustLagColumn names the wind gust lag column for a lookback of k steps.
func GustLagColumn(k int) string { return fmt.Sprintf("wind_gust_lag_%d", k) }

// PressureTendencyColumn names the pressure tendency column over k steps.
func PressureTendencyColumn(k int) string { return fmt.Sprintf("pressure_tendency_%d", k) }
