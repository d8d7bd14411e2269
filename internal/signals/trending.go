package signals

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/resonantmigration/worldstate-service/internal/circuitbreaker"
	"github.com/resonantmigration/worldstate-service/internal/fallback"
	"github.com/resonantmigration/worldstate-service/internal/models"
)

// TrendingFetcher resolves the current trending keyword. With a Twitter
// bearer token it reads the worldwide trends endpoint; without one, or
// when Twitter fails, it derives a keyword from the attention signal.
// The derivation ladder never fails, so Fetch never returns an error.
type TrendingFetcher struct {
	core
	baseURL     string
	bearerToken string
}

func NewTrendingFetcher(baseURL, bearerToken string, timeout time.Duration, breaker *circuitbreaker.CircuitBreaker) *TrendingFetcher {
	return &TrendingFetcher{
		core:        newCore("trending", timeout, breaker),
		baseURL:     baseURL,
		bearerToken: bearerToken,
	}
}

type twitterTrendsResponse []struct {
	Trends []struct {
		Name        string `json:"name"`
		TweetVolume *int64 `json:"tweet_volume"`
	} `json:"trends"`
}

// Fetch returns the trending keyword for the coordinate. Twitter errors
// degrade silently to the attention-derived keyword.
func (f *TrendingFetcher) Fetch(ctx context.Context, atencion models.Atencion) (models.Trending, error) {
	if f.bearerToken != "" {
		if t, ok := f.fetchTwitter(ctx); ok {
			return t, nil
		}
	}
	return fallback.DeriveTrending(atencion), nil
}

func (f *TrendingFetcher) fetchTwitter(ctx context.Context) (models.Trending, bool) {
	// WOEID 1 is the worldwide bucket.
	url := strings.TrimSuffix(f.baseURL, "/") + "?id=1"
	header := http.Header{}
	header.Set("Authorization", "Bearer "+f.bearerToken)

	var resp twitterTrendsResponse
	if err := f.getJSON(ctx, url, header, &resp); err != nil {
		return models.Trending{}, false
	}
	if len(resp) == 0 || len(resp[0].Trends) == 0 {
		return models.Trending{}, false
	}

	top := resp[0].Trends[0]
	keyword := strings.ToUpper(strings.TrimPrefix(top.Name, "#"))
	if len(keyword) > 20 {
		keyword = keyword[:20]
	}
	volume := int64(50000)
	if top.TweetVolume != nil {
		volume = *top.TweetVolume
	}
	score := float64(volume) / 1_000_000
	if score > 1 {
		score = 1
	}
	return models.Trending{Keyword: keyword, Score: score, Source: "twitter"}, true
}
