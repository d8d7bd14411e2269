// Package fallback produces substitute signal values. Tier 1 is a fixed
// documented default per signal. Tier 2 derives a value algebraically from
// signals that did succeed, so a single upstream outage does not produce
// an obviously inert artifact. Traffic and foot-traffic are simulated from
// local time heuristics regardless of any fetch outcome.
package fallback

import (
	"math"
	"strings"
	"time"

	"github.com/resonantmigration/worldstate-service/internal/models"
)

// Static defaults, used when nothing better is known.

func Clima() models.Clima {
	return models.Clima{Temp: 20, Wind: 10, WindDir: 0, UV: 3, Humidity: 60}
}

func Eventos() models.Eventos {
	return models.Eventos{ToneScore: 0, ConflictDensity: 0.3, DominantTheme: "culture"}
}

func Cosmos() models.Cosmos {
	return models.Cosmos{KpIndex: 2, SolarWind: 400}
}

func Economia() models.Economia {
	return models.Economia{VolatilityIndex: 20, TrendDir: models.TrendNeutral}
}

func Atencion() models.Atencion {
	return models.Atencion{TopTheme: "science", Palette: "default", TopArticles: []string{}}
}

func Tierra() models.Tierra {
	return models.Tierra{NearestMagnitude: 0, NearestDistanceKm: 9999, TotalLastHour: 0}
}

func Trending() models.Trending {
	return models.Trending{Keyword: "RESONANCE", Score: 0.5, Source: "synthetic"}
}

func Trafico() models.Trafico {
	return models.Trafico{Density: 0.3, SpeedRatio: 0.7, Source: "synthetic"}
}

func Afluencia() models.Afluencia {
	return models.Afluencia{Density: 0.3, PeakHour: false, Source: "synthetic"}
}

// DeriveEventos synthesizes a news tone from signals that did resolve.
// A geomagnetic storm, a falling market and a burst of earthquakes each
// push the tone negative; a rising market pushes it up. Thresholds:
// tone < -20 reads as conflict, tone > 10 as culture, else politics.
func DeriveEventos(cosmos models.Cosmos, economia models.Economia, tierra models.Tierra) models.Eventos {
	tone := -(cosmos.KpIndex / 9) * 30
	switch economia.TrendDir {
	case models.TrendDown:
		tone -= 20
	case models.TrendUp:
		tone += 10
	}
	tone -= (float64(tierra.TotalLastHour) / 20) * 15
	tone = math.Round(tone)

	theme := "politics"
	if tone < -20 {
		theme = "conflict"
	} else if tone > 10 {
		theme = "culture"
	}
	return models.Eventos{
		ToneScore:       tone,
		ConflictDensity: math.Max(0, -tone) / 100,
		DominantTheme:   theme,
	}
}

// trendingThemeKeywords maps an attention theme to a fixed keyword for the
// last-resort trending value.
var trendingThemeKeywords = map[string]string{
	"politics": "ELECTION",
	"conflict": "CONFLICT",
	"science":  "DISCOVERY",
	"sports":   "CHAMPIONSHIP",
	"culture":  "CULTURE",
	"economy":  "MARKETS",
}

// DeriveTrending builds a trending value from the attention signal: the top
// article when one exists, otherwise a fixed keyword for the theme.
func DeriveTrending(atencion models.Atencion) models.Trending {
	if len(atencion.TopArticles) > 0 {
		words := strings.Fields(atencion.TopArticles[0])
		if len(words) > 2 {
			words = words[:2]
		}
		keyword := truncate(strings.ToUpper(strings.Join(words, " ")), 20)
		return models.Trending{Keyword: keyword, Score: 0.5, Source: "wikipedia"}
	}
	keyword, ok := trendingThemeKeywords[atencion.TopTheme]
	if !ok {
		keyword = "RESONANCE"
	}
	return models.Trending{Keyword: keyword, Score: 0.3, Source: "synthetic"}
}

// SimulateTrafico estimates road density from the local hour: near-empty
// at night, congested at rush hours.
func SimulateTrafico(lng float64, now time.Time) models.Trafico {
	h := localHour(lng, now)
	isRush := (h >= 7 && h <= 9) || (h >= 17 && h <= 19)
	isNight := h >= 23 || h <= 5
	density := 0.35
	if isNight {
		density = 0.1
	} else if isRush {
		density = 0.75
	}
	return models.Trafico{Density: density, SpeedRatio: 1 - density, Source: "synthetic"}
}

// SimulateAfluencia estimates foot traffic from local hour and weekday,
// nudged by the news tone: good news draws crowds out, conflict keeps
// them home. Result is clamped to [0, 1].
func SimulateAfluencia(lng float64, now time.Time, eventos models.Eventos) models.Afluencia {
	h := localHour(lng, now)
	dow := now.UTC().Weekday()
	isWeekend := dow == time.Sunday || dow == time.Saturday
	isPeak := (h >= 11 && h <= 14) || (h >= 18 && h <= 22)
	isMorning := h >= 7 && h <= 10

	base := 0.25
	if isPeak {
		base = 0.7
	} else if isMorning {
		base = 0.45
	}
	if isWeekend {
		base *= 1.25
	}
	if eventos.ToneScore > 20 {
		base += 0.1
	}
	base -= eventos.ConflictDensity * 0.2

	return models.Afluencia{
		Density:  math.Max(0, math.Min(1, base)),
		PeakHour: isPeak,
		Source:   "synthetic",
	}
}

// localHour approximates the local hour from longitude (15 degrees per hour).
func localHour(lng float64, now time.Time) int {
	hour := now.UTC().Hour() + int(math.Round(lng/15))
	return ((hour % 24) + 24) % 24
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
