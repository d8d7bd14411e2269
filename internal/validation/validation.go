package validation

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrNotANumber is returned when a coordinate does not parse as a float.
var ErrNotANumber = errors.New("coordinate is not a number")

// ErrLatOutOfRange is returned when latitude is outside [-90, 90].
var ErrLatOutOfRange = errors.New("latitude out of range")

// ErrLngOutOfRange is returned when longitude is outside [-180, 180].
var ErrLngOutOfRange = errors.New("longitude out of range")

// ParseCoordinates parses lat/lng query values and enforces the valid
// ranges (lat in [-90, 90], lng in [-180, 180], boundaries inclusive).
// Empty strings fall back to the provided defaults; present-but-malformed
// values are an error suitable for a 400 response.
func ParseCoordinates(latStr, lngStr string, defaultLat, defaultLng float64) (lat, lng float64, err error) {
	lat, err = parseCoord(latStr, defaultLat)
	if err != nil {
		return 0, 0, err
	}
	lng, err = parseCoord(lngStr, defaultLng)
	if err != nil {
		return 0, 0, err
	}
	if lat < -90 || lat > 90 {
		return 0, 0, ErrLatOutOfRange
	}
	if lng < -180 || lng > 180 {
		return 0, 0, ErrLngOutOfRange
	}
	return lat, lng, nil
}

func parseCoord(s string, defaultVal float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrNotANumber
	}
	// ParseFloat accepts "NaN" and "Inf" spellings; neither is a coordinate,
	// and NaN would slip through the range checks below.
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotANumber
	}
	return v, nil
}
