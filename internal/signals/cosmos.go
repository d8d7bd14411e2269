package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/resonantmigration/worldstate-service/internal/circuitbreaker"
	"github.com/resonantmigration/worldstate-service/internal/models"
)

// CosmosFetcher reads the planetary Kp index from the NOAA space weather
// feed. The feed is a JSON array of minutely entries; only the newest
// entry matters.
type CosmosFetcher struct {
	core
	baseURL string
}

func NewCosmosFetcher(baseURL string, timeout time.Duration, breaker *circuitbreaker.CircuitBreaker) *CosmosFetcher {
	return &CosmosFetcher{core: newCore("cosmos", timeout, breaker), baseURL: baseURL}
}

type swpcEntry struct {
	KpIndex   *float64 `json:"kp_index"`
	SolarWind *float64 `json:"solar_wind"`
}

// Fetch returns the latest geomagnetic reading. An empty feed is a failure.
func (f *CosmosFetcher) Fetch(ctx context.Context) (models.Cosmos, error) {
	var entries []swpcEntry
	if err := f.getJSON(ctx, f.baseURL, nil, &entries); err != nil {
		return models.Cosmos{}, err
	}
	if len(entries) == 0 {
		return models.Cosmos{}, fmt.Errorf("cosmos: %w", ErrEmptyFeed)
	}
	latest := entries[len(entries)-1]
	return models.Cosmos{
		KpIndex:   orDefault(latest.KpIndex, 2),
		SolarWind: orDefault(latest.SolarWind, 400),
	}, nil
}
