package signals

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/resonantmigration/worldstate-service/internal/circuitbreaker"
	"github.com/resonantmigration/worldstate-service/internal/models"
)

const earthRadiusKm = 6371

// TierraFetcher reads the last hour of earthquakes from the USGS event
// feed and reduces them to the quake nearest the requested coordinate.
type TierraFetcher struct {
	core
	baseURL string
	now     func() time.Time
}

func NewTierraFetcher(baseURL string, timeout time.Duration, breaker *circuitbreaker.CircuitBreaker) *TierraFetcher {
	return &TierraFetcher{core: newCore("tierra", timeout, breaker), baseURL: baseURL, now: time.Now}
}

type usgsResponse struct {
	Features []struct {
		Properties struct {
			Mag *float64 `json:"mag"`
		} `json:"properties"`
		Geometry struct {
			Coordinates []float64 `json:"coordinates"` // lng, lat, depth
		} `json:"geometry"`
	} `json:"features"`
}

// Fetch returns the nearest quake of the last hour plus the total count.
// An empty feed is a failure: a planet with zero recorded quakes in an
// hour means the feed is broken, not that the ground is still.
func (f *TierraFetcher) Fetch(ctx context.Context, lat, lng float64) (models.Tierra, error) {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return models.Tierra{}, fmt.Errorf("tierra: invalid base URL: %w", err)
	}
	params := url.Values{}
	params.Set("format", "geojson")
	params.Set("starttime", f.now().UTC().Add(-time.Hour).Format(time.RFC3339))
	params.Set("minmagnitude", "0")
	params.Set("orderby", "time")
	params.Set("limit", "20")
	u.RawQuery = params.Encode()

	var resp usgsResponse
	if err := f.getJSON(ctx, u.String(), nil, &resp); err != nil {
		return models.Tierra{}, err
	}
	if len(resp.Features) == 0 {
		return models.Tierra{}, fmt.Errorf("tierra: %w", ErrEmptyFeed)
	}

	nearestDist := math.Inf(1)
	var nearestMag float64
	for _, feat := range resp.Features {
		if len(feat.Geometry.Coordinates) < 2 {
			continue
		}
		qLng, qLat := feat.Geometry.Coordinates[0], feat.Geometry.Coordinates[1]
		dist := haversineKm(lat, lng, qLat, qLng)
		if dist < nearestDist {
			nearestDist = dist
			nearestMag = orDefault(feat.Properties.Mag, 0)
		}
	}
	if math.IsInf(nearestDist, 1) {
		return models.Tierra{}, fmt.Errorf("tierra: no located quakes: %w", ErrUnusablePayload)
	}

	return models.Tierra{
		NearestMagnitude:  math.Max(0, nearestMag),
		NearestDistanceKm: math.Round(nearestDist),
		TotalLastHour:     len(resp.Features),
	}, nil
}

// haversineKm is the great-circle distance between two coordinates.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
