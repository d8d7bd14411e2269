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

// EconomiaFetcher reads the top crypto markets from CoinGecko and
// condenses the 24h percentage moves into a volatility index and a
// trend direction.
type EconomiaFetcher struct {
	core
	baseURL string
}

func NewEconomiaFetcher(baseURL string, timeout time.Duration, breaker *circuitbreaker.CircuitBreaker) *EconomiaFetcher {
	return &EconomiaFetcher{core: newCore("economia", timeout, breaker), baseURL: baseURL}
}

type coinGeckoMarket struct {
	PriceChangePct24h *float64 `json:"price_change_percentage_24h"`
}

// Fetch computes volatility as the population standard deviation of the
// 24h moves, scaled by 5 and capped at 100. The trend is the sign of the
// average move with a one percent dead zone. An empty market list is a
// failure.
func (f *EconomiaFetcher) Fetch(ctx context.Context) (models.Economia, error) {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return models.Economia{}, fmt.Errorf("economia: invalid base URL: %w", err)
	}
	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("order", "market_cap_desc")
	params.Set("per_page", "10")
	params.Set("page", "1")
	params.Set("sparkline", "false")
	params.Set("price_change_percentage", "24h")
	u.RawQuery = params.Encode()

	var markets []coinGeckoMarket
	if err := f.getJSON(ctx, u.String(), nil, &markets); err != nil {
		return models.Economia{}, err
	}
	if len(markets) == 0 {
		return models.Economia{}, fmt.Errorf("economia: %w", ErrEmptyFeed)
	}

	changes := make([]float64, 0, len(markets))
	for _, m := range markets {
		v := orDefault(m.PriceChangePct24h, 0)
		if math.IsNaN(v) {
			continue
		}
		changes = append(changes, v)
	}
	if len(changes) == 0 {
		return models.Economia{}, fmt.Errorf("economia: no usable moves: %w", ErrUnusablePayload)
	}

	var sum float64
	for _, v := range changes {
		sum += v
	}
	mean := sum / float64(len(changes))

	var variance float64
	for _, v := range changes {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(changes))
	volatility := math.Min(100, math.Sqrt(variance)*5)

	trend := models.TrendNeutral
	if mean > 1 {
		trend = models.TrendUp
	} else if mean < -1 {
		trend = models.TrendDown
	}

	return models.Economia{
		VolatilityIndex: volatility,
		TrendDir:        trend,
	}, nil
}
