package features

import (
	"math"
	"time"
)

// Cyclical returns sin(2πx/period) and cos(2πx/period).
func Cyclical(x, period float64) (sin, cos float64) {
	angle := 2 * math.Pi * x / period
	return math.Sin(angle), math.Cos(angle)
}

// HourOfDay returns the fractional hour in [0, 24).
func HourOfDay(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
}

// DayOfWeek returns 0 for Monday through 6 for Sunday.
func DayOfWeek(t time.Time) float64 {
	return float64((int(t.Weekday()) + 6) % 7)
}

// DayOfYear returns the 1-based day of year and the period to encode it with:
// 366 in leap years and 365 otherwise.
func DayOfYear(t time.Time) (day, period float64) {
	period = 365
	if isLeap(t.Year()) {
		period = 366
	}
	return float64(t.YearDay()), period
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

// WindComponents decomposes a meteorological wind (direction the wind blows
// FROM, degrees clockwise from north) into u (eastward) and v (northward)
// components: u = -speed*sin(dir), v = -speed*cos(dir).
func WindComponents(speed, directionDeg float64) (u, v float64) {
	rad := directionDeg * math.Pi / 180
	return -speed * math.Sin(rad), -speed * math.Cos(rad)
}

// circularMeanDeg averages directions on the unit circle. The result is in
// [0, 360).
func circularMeanDeg(degs []float64) float64 {
	var sx, sy float64
	for _, d := range degs {
		r := d * math.Pi / 180
		sx += math.Sin(r)
		sy += math.Cos(r)
	}
	return normalizeDeg(math.Atan2(sx, sy) * 180 / math.Pi)
}

// lerpDeg interpolates between two directions along the shorter arc.
func lerpDeg(a, b, frac float64) float64 {
	delta := math.Mod(b-a+540, 360) - 180
	return normalizeDeg(a + delta*frac)
}

func normalizeDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

func lerp(a, b, frac float64) float64 {
	return a + (b-a)*frac
}
