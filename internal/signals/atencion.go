package signals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/resonantmigration/worldstate-service/internal/circuitbreaker"
	"github.com/resonantmigration/worldstate-service/internal/models"
)

// AtencionFetcher reads yesterday's most viewed English Wikipedia
// articles and condenses them into a dominant theme and palette key.
// The pageviews API only has complete data through yesterday, so the
// date in the path is always the previous UTC day.
type AtencionFetcher struct {
	core
	baseURL string
	now     func() time.Time
}

func NewAtencionFetcher(baseURL string, timeout time.Duration, breaker *circuitbreaker.CircuitBreaker) *AtencionFetcher {
	return &AtencionFetcher{core: newCore("atencion", timeout, breaker), baseURL: baseURL, now: time.Now}
}

type pageviewsResponse struct {
	Items []struct {
		Articles []struct {
			Article string `json:"article"`
		} `json:"articles"`
	} `json:"items"`
}

// Fetch returns up to ten article titles plus a keyword-derived theme.
// An empty article list is not a failure: the neutral culture theme
// still renders.
func (f *AtencionFetcher) Fetch(ctx context.Context) (models.Atencion, error) {
	yesterday := f.now().UTC().Add(-24 * time.Hour)
	url := fmt.Sprintf("%s/%04d/%02d/%02d",
		strings.TrimSuffix(f.baseURL, "/"),
		yesterday.Year(), int(yesterday.Month()), yesterday.Day())

	var resp pageviewsResponse
	if err := f.getJSON(ctx, url, nil, &resp); err != nil {
		return models.Atencion{}, err
	}

	var topArticles []string
	if len(resp.Items) > 0 {
		raw := resp.Items[0].Articles
		if len(raw) > 20 {
			raw = raw[:20]
		}
		for _, a := range raw {
			title := strings.ReplaceAll(a.Article, "_", " ")
			if title == "Main Page" || title == "Special:Search" {
				continue
			}
			topArticles = append(topArticles, title)
			if len(topArticles) == 10 {
				break
			}
		}
	}

	theme, palette := articleTheme(topArticles)
	return models.Atencion{
		TopTheme:    theme,
		Palette:     palette,
		TopArticles: topArticles,
	}, nil
}

func articleTheme(titles []string) (theme, palette string) {
	text := strings.ToLower(strings.Join(titles, " "))
	switch {
	case containsAny(text, "election", "president", "minister"):
		return "politics", "politics"
	case containsAny(text, "war", "attack", "conflict"):
		return "conflict", "conflict"
	case containsAny(text, "science", "space", "research"):
		return "science", "science"
	case containsAny(text, "sport", "championship", "league"):
		return "sports", "sports"
	default:
		return "culture", "default"
	}
}
