package signals

import (
	"math"
	"time"

	"github.com/resonantmigration/worldstate-service/internal/models"
)

// ComputeSolar derives sun position analytically from the coordinate and
// the UTC instant. No network, no failure mode.
//
// Declination uses the 23.45 sin approximation anchored at day 81, the
// hour angle is measured from solar noon at 12 - lng/15, and daylight is
// elevation above -0.833 degrees, the standard refraction horizon.
func ComputeSolar(lat, lng float64, t time.Time) models.Solar {
	t = t.UTC()
	dayOfYear := float64(t.YearDay())
	utcHour := float64(t.Hour()) + float64(t.Minute())/60

	solarNoon := 12 - lng/15
	hourAngle := radians((utcHour - solarNoon) * 15)

	decl := radians(23.45 * math.Sin((2*math.Pi/365)*(dayOfYear-81)))
	latRad := radians(lat)

	sinEl := math.Sin(latRad)*math.Sin(decl) + math.Cos(latRad)*math.Cos(decl)*math.Cos(hourAngle)
	elevationDeg := math.Asin(clamp(sinEl, -1, 1)) * 180 / math.Pi

	uv := 0.0
	if elevationDeg > 0 {
		uv = math.Min(11, elevationDeg/8)
	}
	return models.Solar{
		IsDaylight:   elevationDeg > -0.833,
		SunElevation: elevationDeg,
		UVIndex:      uv,
	}
}
