package signals

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/resonantmigration/worldstate-service/internal/circuitbreaker"
	"github.com/resonantmigration/worldstate-service/internal/models"
)

// ClimaFetcher reads current weather from the Open-Meteo forecast API.
type ClimaFetcher struct {
	core
	baseURL string
}

func NewClimaFetcher(baseURL string, timeout time.Duration, breaker *circuitbreaker.CircuitBreaker) *ClimaFetcher {
	return &ClimaFetcher{core: newCore("clima", timeout, breaker), baseURL: baseURL}
}

type openMeteoResponse struct {
	Current struct {
		Temperature   *float64 `json:"temperature_2m"`
		WindSpeed     *float64 `json:"wind_speed_10m"`
		WindDirection *float64 `json:"wind_direction_10m"`
		UVIndex       *float64 `json:"uv_index"`
		Humidity      *float64 `json:"relative_humidity_2m"`
	} `json:"current"`
}

// Fetch returns current conditions at the coordinate. Missing individual
// readings fall back to neutral values; a missing current block fails.
func (f *ClimaFetcher) Fetch(ctx context.Context, lat, lng float64) (models.Clima, error) {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return models.Clima{}, fmt.Errorf("clima: invalid base URL: %w", err)
	}
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", lat))
	params.Set("longitude", fmt.Sprintf("%.4f", lng))
	params.Set("current", "temperature_2m,wind_speed_10m,wind_direction_10m,uv_index,relative_humidity_2m")
	params.Set("timezone", "auto")
	u.RawQuery = params.Encode()

	var resp openMeteoResponse
	if err := f.getJSON(ctx, u.String(), nil, &resp); err != nil {
		return models.Clima{}, err
	}
	if resp.Current.Temperature == nil && resp.Current.WindSpeed == nil {
		return models.Clima{}, fmt.Errorf("clima: %w", ErrUnusablePayload)
	}
	return models.Clima{
		Temp:     orDefault(resp.Current.Temperature, 20),
		Wind:     orDefault(resp.Current.WindSpeed, 10),
		WindDir:  orDefault(resp.Current.WindDirection, 0),
		UV:       orDefault(resp.Current.UVIndex, 3),
		Humidity: orDefault(resp.Current.Humidity, 60),
	}, nil
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
