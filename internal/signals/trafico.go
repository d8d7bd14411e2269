package signals

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/resonantmigration/worldstate-service/internal/circuitbreaker"
	"github.com/resonantmigration/worldstate-service/internal/fallback"
	"github.com/resonantmigration/worldstate-service/internal/models"
)

// TraficoFetcher resolves road congestion near the coordinate. With a
// TomTom key it reads the flow segment API; without one, or on any
// failure, it simulates density from the local hour. Fetch never
// returns an error.
type TraficoFetcher struct {
	core
	baseURL string
	apiKey  string
	now     func() time.Time
}

func NewTraficoFetcher(baseURL, apiKey string, timeout time.Duration, breaker *circuitbreaker.CircuitBreaker) *TraficoFetcher {
	return &TraficoFetcher{
		core:    newCore("trafico", timeout, breaker),
		baseURL: baseURL,
		apiKey:  apiKey,
		now:     time.Now,
	}
}

type tomtomResponse struct {
	FlowSegmentData *struct {
		CurrentSpeed  *float64 `json:"currentSpeed"`
		FreeFlowSpeed *float64 `json:"freeFlowSpeed"`
	} `json:"flowSegmentData"`
}

// Fetch returns observed congestion when TomTom responds, otherwise a
// rush-hour simulation for the coordinate's rough timezone.
func (f *TraficoFetcher) Fetch(ctx context.Context, lat, lng float64) (models.Trafico, error) {
	if f.apiKey != "" {
		if t, ok := f.fetchTomTom(ctx, lat, lng); ok {
			return t, nil
		}
	}
	return fallback.SimulateTrafico(lng, f.now()), nil
}

func (f *TraficoFetcher) fetchTomTom(ctx context.Context, lat, lng float64) (models.Trafico, bool) {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return models.Trafico{}, false
	}
	params := url.Values{}
	params.Set("key", f.apiKey)
	params.Set("point", fmt.Sprintf("%f,%f", lat, lng))
	params.Set("unit", "kmph")
	u.RawQuery = params.Encode()

	var resp tomtomResponse
	if err := f.getJSON(ctx, u.String(), nil, &resp); err != nil {
		return models.Trafico{}, false
	}
	seg := resp.FlowSegmentData
	if seg == nil {
		return models.Trafico{}, false
	}

	current := orDefault(seg.CurrentSpeed, 30)
	free := math.Max(1, orDefault(seg.FreeFlowSpeed, 50))
	speedRatio := math.Min(1, current/free)
	return models.Trafico{
		Density:    1 - speedRatio,
		SpeedRatio: speedRatio,
		Source:     "tomtom",
	}, true
}
