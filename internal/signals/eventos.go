package signals

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/resonantmigration/worldstate-service/internal/circuitbreaker"
	"github.com/resonantmigration/worldstate-service/internal/models"
)

// EventosFetcher reads the recent global news window from the GDELT DOC
// API and condenses it into an average tone score, a conflict density,
// and a dominant theme.
type EventosFetcher struct {
	core
	baseURL string
}

func NewEventosFetcher(baseURL string, timeout time.Duration, breaker *circuitbreaker.CircuitBreaker) *EventosFetcher {
	return &EventosFetcher{core: newCore("eventos", timeout, breaker), baseURL: baseURL}
}

type gdeltResponse struct {
	Articles []struct {
		Title  string `json:"title"`
		V2Tone string `json:"V2Tone"`
	} `json:"articles"`
}

// Fetch averages the V2Tone of the last half hour of articles. Zero
// articles or zero parseable tones is a failure.
func (f *EventosFetcher) Fetch(ctx context.Context) (models.Eventos, error) {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return models.Eventos{}, fmt.Errorf("eventos: invalid base URL: %w", err)
	}
	params := url.Values{}
	params.Set("query", "*")
	params.Set("mode", "artlist")
	params.Set("maxrecords", "25")
	params.Set("format", "json")
	params.Set("timespan", "30min")
	u.RawQuery = params.Encode()

	var resp gdeltResponse
	if err := f.getJSON(ctx, u.String(), nil, &resp); err != nil {
		return models.Eventos{}, err
	}
	if len(resp.Articles) == 0 {
		return models.Eventos{}, fmt.Errorf("eventos: %w", ErrEmptyFeed)
	}

	var sum float64
	var count int
	var titles []string
	for _, a := range resp.Articles {
		titles = append(titles, a.Title)
		// V2Tone is a comma-separated vector; the first field is the tone.
		field, _, _ := strings.Cut(a.V2Tone, ",")
		tone, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil || math.IsNaN(tone) {
			continue
		}
		sum += tone
		count++
	}
	if count == 0 {
		return models.Eventos{}, fmt.Errorf("eventos: no parseable tones: %w", ErrUnusablePayload)
	}

	tone := clamp(sum/float64(count), -100, 100)
	return models.Eventos{
		ToneScore:       tone,
		ConflictDensity: math.Max(0, -tone) / 100,
		DominantTheme:   dominantTheme(titles, tone),
	}, nil
}

func dominantTheme(titles []string, tone float64) string {
	joined := strings.ToLower(strings.Join(titles, " "))
	switch {
	case containsAny(joined, "war", "attack", "killed", "conflict"):
		return "conflict"
	case containsAny(joined, "market", "economy", "trade"):
		return "economy"
	case containsAny(joined, "science", "research", "space"):
		return "science"
	case tone > 10:
		return "culture"
	default:
		return "politics"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
