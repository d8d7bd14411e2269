package fallback

import (
	"math"
	"testing"
	"time"

	"github.com/resonantmigration/worldstate-service/internal/models"
)

func TestDeriveEventos_StormCrashQuakes(t *testing.T) {
	// kp 9 storm, falling market, 15 quakes in the hour:
	// -(9/9)*30 - 20 - (15/20)*15 = -61.25, rounded to -61.
	ev := DeriveEventos(
		models.Cosmos{KpIndex: 9},
		models.Economia{TrendDir: models.TrendDown},
		models.Tierra{TotalLastHour: 15},
	)
	if ev.ToneScore != -61 {
		t.Errorf("tone = %v, want -61", ev.ToneScore)
	}
	if ev.DominantTheme != "conflict" {
		t.Errorf("theme = %q, want conflict", ev.DominantTheme)
	}
	if math.Abs(ev.ConflictDensity-0.61) > 1e-9 {
		t.Errorf("conflictDensity = %v, want 0.61", ev.ConflictDensity)
	}
}

func TestDeriveEventos_QuietWorld(t *testing.T) {
	// kp 0, rising market, no quakes: tone = +10, culture territory.
	ev := DeriveEventos(
		models.Cosmos{KpIndex: 0},
		models.Economia{TrendDir: models.TrendUp},
		models.Tierra{TotalLastHour: 0},
	)
	if ev.ToneScore != 10 {
		t.Errorf("tone = %v, want 10", ev.ToneScore)
	}
	if ev.DominantTheme != "politics" {
		t.Errorf("theme = %q, want politics (10 is not > 10)", ev.DominantTheme)
	}
	if ev.ConflictDensity != 0 {
		t.Errorf("conflictDensity = %v, want 0", ev.ConflictDensity)
	}
}

func TestDeriveTrending_FromTopArticle(t *testing.T) {
	tests := []struct {
		name    string
		article string
		want    string
	}{
		{"two words kept", "Solar Eclipse of 2026", "SOLAR ECLIPSE"},
		{"single word", "Cricket", "CRICKET"},
		{"long words truncated", "Extraordinarily Longwindedarticle", "EXTRAORDINARILY LONG"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := DeriveTrending(models.Atencion{TopArticles: []string{tc.article}})
			if tr.Keyword != tc.want {
				t.Errorf("keyword = %q, want %q", tr.Keyword, tc.want)
			}
			if tr.Source != "wikipedia" || tr.Score != 0.5 {
				t.Errorf("got source=%q score=%v, want wikipedia 0.5", tr.Source, tr.Score)
			}
		})
	}
}

func TestDeriveTrending_FromTheme(t *testing.T) {
	tests := []struct {
		theme string
		want  string
	}{
		{"politics", "ELECTION"},
		{"conflict", "CONFLICT"},
		{"science", "DISCOVERY"},
		{"sports", "CHAMPIONSHIP"},
		{"culture", "CULTURE"},
		{"economy", "MARKETS"},
		{"somethingelse", "RESONANCE"},
	}
	for _, tc := range tests {
		t.Run(tc.theme, func(t *testing.T) {
			tr := DeriveTrending(models.Atencion{TopTheme: tc.theme})
			if tr.Keyword != tc.want {
				t.Errorf("keyword = %q, want %q", tr.Keyword, tc.want)
			}
			if tr.Source != "synthetic" || tr.Score != 0.3 {
				t.Errorf("got source=%q score=%v, want synthetic 0.3", tr.Source, tr.Score)
			}
		})
	}
}

// All times below are UTC at lng 0, so local hour equals UTC hour.
func TestSimulateTrafico_Heuristics(t *testing.T) {
	tests := []struct {
		name string
		hour int
		want float64
	}{
		{"dead of night", 3, 0.1},
		{"morning rush", 8, 0.75},
		{"evening rush", 18, 0.75},
		{"midday base", 13, 0.35},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			now := time.Date(2026, 6, 10, tc.hour, 0, 0, 0, time.UTC)
			tr := SimulateTrafico(0, now)
			if tr.Density != tc.want {
				t.Errorf("density = %v, want %v", tr.Density, tc.want)
			}
			if tr.SpeedRatio != 1-tc.want {
				t.Errorf("speedRatio = %v, want %v", tr.SpeedRatio, 1-tc.want)
			}
			if tr.Source != "synthetic" {
				t.Errorf("source = %q, want synthetic", tr.Source)
			}
		})
	}
}

func TestSimulateTrafico_LongitudeShiftsLocalHour(t *testing.T) {
	// 03:00 UTC is night at Greenwich but mid-morning rush in Tokyo (+9h).
	now := time.Date(2026, 6, 10, 3, 0, 0, 0, time.UTC)
	if d := SimulateTrafico(139.65, now).Density; d != 0.35 {
		t.Errorf("Tokyo density = %v, want 0.35 (noon local)", d)
	}
	now = time.Date(2026, 6, 9, 23, 0, 0, 0, time.UTC)
	if d := SimulateTrafico(139.65, now).Density; d != 0.75 {
		t.Errorf("Tokyo density = %v, want 0.75 (08:00 local rush)", d)
	}
}

func TestSimulateAfluencia_Heuristics(t *testing.T) {
	neutral := models.Eventos{}
	// Wednesday lunch peak.
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	af := SimulateAfluencia(0, now, neutral)
	if af.Density != 0.7 || !af.PeakHour {
		t.Errorf("lunch peak: density=%v peak=%v, want 0.7 true", af.Density, af.PeakHour)
	}

	// Saturday lunch peak gets the weekend multiplier.
	saturday := time.Date(2026, 6, 13, 12, 0, 0, 0, time.UTC)
	af = SimulateAfluencia(0, saturday, neutral)
	if math.Abs(af.Density-0.875) > 1e-9 {
		t.Errorf("weekend peak density = %v, want 0.875", af.Density)
	}

	// Good news adds footfall, conflict subtracts it.
	af = SimulateAfluencia(0, now, models.Eventos{ToneScore: 30})
	if math.Abs(af.Density-0.8) > 1e-9 {
		t.Errorf("good-news density = %v, want 0.8", af.Density)
	}
	af = SimulateAfluencia(0, now, models.Eventos{ConflictDensity: 1})
	if math.Abs(af.Density-0.5) > 1e-9 {
		t.Errorf("conflict density = %v, want 0.5", af.Density)
	}
}

func TestSimulateAfluencia_Clamped(t *testing.T) {
	// 03:00 off-peak base 0.25 with full conflict pull stays non-negative.
	now := time.Date(2026, 6, 10, 3, 0, 0, 0, time.UTC)
	af := SimulateAfluencia(0, now, models.Eventos{ConflictDensity: 2})
	if af.Density < 0 {
		t.Errorf("density = %v, want clamped to >= 0", af.Density)
	}
}
