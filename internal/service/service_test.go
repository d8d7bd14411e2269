package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/resonantmigration/worldstate-service/internal/cache"
	"github.com/resonantmigration/worldstate-service/internal/models"
	"github.com/resonantmigration/worldstate-service/internal/track"
)

var errUpstream = errors.New("upstream down")

type mockClima struct {
	value models.Clima
	err   error
	calls atomic.Int64
}

func (m *mockClima) Fetch(ctx context.Context, lat, lng float64) (models.Clima, error) {
	m.calls.Add(1)
	return m.value, m.err
}

type mockEventos struct {
	value models.Eventos
	err   error
}

func (m *mockEventos) Fetch(ctx context.Context) (models.Eventos, error) { return m.value, m.err }

type mockCosmos struct {
	value models.Cosmos
	err   error
}

func (m *mockCosmos) Fetch(ctx context.Context) (models.Cosmos, error) { return m.value, m.err }

type mockEconomia struct {
	value models.Economia
	err   error
}

func (m *mockEconomia) Fetch(ctx context.Context) (models.Economia, error) { return m.value, m.err }

type mockAtencion struct {
	value models.Atencion
	err   error
}

func (m *mockAtencion) Fetch(ctx context.Context) (models.Atencion, error) { return m.value, m.err }

type mockTierra struct {
	value models.Tierra
	err   error
}

func (m *mockTierra) Fetch(ctx context.Context, lat, lng float64) (models.Tierra, error) {
	return m.value, m.err
}

type mockTrending struct {
	value models.Trending
	seen  models.Atencion
}

func (m *mockTrending) Fetch(ctx context.Context, atencion models.Atencion) (models.Trending, error) {
	m.seen = atencion
	return m.value, nil
}

type mockTrafico struct {
	value models.Trafico
}

func (m *mockTrafico) Fetch(ctx context.Context, lat, lng float64) (models.Trafico, error) {
	return m.value, nil
}

func liveFetchers() (Fetchers, *mockClima, *mockTrending) {
	clima := &mockClima{value: models.Clima{Temp: 24, Wind: 12, UV: 5, Humidity: 40}}
	trending := &mockTrending{value: models.Trending{Keyword: "ECLIPSE", Score: 0.8, Source: "twitter"}}
	return Fetchers{
		Clima:    clima,
		Eventos:  &mockEventos{value: models.Eventos{ToneScore: 3.5, DominantTheme: "culture"}},
		Cosmos:   &mockCosmos{value: models.Cosmos{KpIndex: 3, SolarWind: 420}},
		Economia: &mockEconomia{value: models.Economia{VolatilityIndex: 35, TrendDir: models.TrendUp}},
		Atencion: &mockAtencion{value: models.Atencion{TopTheme: "science", Palette: "science", TopArticles: []string{"Comet Discovery"}}},
		Tierra:   &mockTierra{value: models.Tierra{NearestMagnitude: 4.1, NearestDistanceKm: 230, TotalLastHour: 6}},
		Trending: trending,
		Trafico:  &mockTrafico{value: models.Trafico{Density: 0.4, SpeedRatio: 0.6, Source: "tomtom"}},
	}, clima, trending
}

func failingFetchers() Fetchers {
	return Fetchers{
		Clima:    &mockClima{err: errUpstream},
		Eventos:  &mockEventos{err: errUpstream},
		Cosmos:   &mockCosmos{err: errUpstream},
		Economia: &mockEconomia{err: errUpstream},
		Atencion: &mockAtencion{err: errUpstream},
		Tierra:   &mockTierra{err: errUpstream},
		Trending: &mockTrending{value: models.Trending{Keyword: "RESONANCE", Score: 0.3, Source: "synthetic"}},
		Trafico:  &mockTrafico{value: models.Trafico{Density: 0.35, SpeedRatio: 0.65, Source: "synthetic"}},
	}
}

func newTestService(f Fetchers) *WorldStateService {
	return New(f, cache.NewInMemoryCache(), nil, Options{CacheTTL: 5 * time.Minute}, zap.NewNop())
}

func TestGetWorldState_AllLive(t *testing.T) {
	track.Reset()
	defer track.Reset()

	fetchers, _, trendingMock := liveFetchers()
	svc := newTestService(fetchers)

	ws, cached, err := svc.GetWorldState(context.Background(), 19.4326, -99.1332)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cached {
		t.Error("first request reported as cached")
	}

	for _, signal := range []string{"clima", "eventos", "cosmos", "economia", "atencion", "tierra"} {
		if got := ws.ApiHealth[signal].Status; got != models.StatusLive {
			t.Errorf("apiHealth[%s] = %q, want live", signal, got)
		}
	}
	if got := ws.ApiHealth["trending"].Status; got != models.StatusLive {
		t.Errorf("apiHealth[trending] = %q, want live", got)
	}
	if got := ws.ApiHealth["trafico"].Status; got != models.StatusLive {
		t.Errorf("apiHealth[trafico] = %q, want live", got)
	}
	if got := ws.ApiHealth["solar"].Status; got != models.StatusLive {
		t.Errorf("apiHealth[solar] = %q, want live", got)
	}
	if got := ws.ApiHealth["afluencia"].Status; got != models.StatusSimulated {
		t.Errorf("apiHealth[afluencia] = %q, want simulated", got)
	}

	if ws.Seed == "" || len(ws.Seed) != 64 {
		t.Errorf("seed = %q, want 64 hex chars", ws.Seed)
	}
	if ws.EditionNumber != 1 {
		t.Errorf("editionNumber = %d, want 1", ws.EditionNumber)
	}
	if trendingMock.seen.TopTheme != "science" {
		t.Errorf("trending consumed atencion theme %q, want the settled value", trendingMock.seen.TopTheme)
	}

	if fallbacks, total := track.FallbackRate(time.Minute); fallbacks != 0 || total != 1 {
		t.Errorf("outcome tracking = (%d, %d), want clean cycle (0, 1)", fallbacks, total)
	}
}

func TestGetWorldState_CacheHit(t *testing.T) {
	track.Reset()
	defer track.Reset()

	fetchers, climaMock, _ := liveFetchers()
	svc := newTestService(fetchers)
	ctx := context.Background()

	first, cached, err := svc.GetWorldState(ctx, 19.4326, -99.1332)
	if err != nil || cached {
		t.Fatalf("first call: cached=%v err=%v", cached, err)
	}
	second, cached, err := svc.GetWorldState(ctx, 19.4326, -99.1332)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !cached {
		t.Error("second call not served from cache")
	}
	if second.Seed != first.Seed || second.EditionNumber != first.EditionNumber {
		t.Error("cached state differs from the state that was stored")
	}
	if climaMock.calls.Load() != 1 {
		t.Errorf("clima fetched %d times, want 1", climaMock.calls.Load())
	}

	// A nearby coordinate quantizes to the same key.
	_, cached, err = svc.GetWorldState(ctx, 19.4301, -99.1299)
	if err != nil {
		t.Fatalf("nearby call: %v", err)
	}
	if !cached {
		t.Error("nearby coordinate missed the shared cache entry")
	}
}

// Every upstream failing must still yield a complete, renderable state.
func TestGetWorldState_AllUpstreamsFail(t *testing.T) {
	track.Reset()
	defer track.Reset()

	svc := newTestService(failingFetchers())
	ws, _, err := svc.GetWorldState(context.Background(), 19.4326, -99.1332)
	if err != nil {
		t.Fatalf("degraded cycle returned error: %v", err)
	}

	for _, signal := range []string{"clima", "eventos", "cosmos", "economia", "atencion", "tierra"} {
		if got := ws.ApiHealth[signal].Status; got != models.StatusFallback {
			t.Errorf("apiHealth[%s] = %q, want fallback", signal, got)
		}
	}
	if got := ws.ApiHealth["trending"].Status; got != models.StatusSimulated {
		t.Errorf("apiHealth[trending] = %q, want simulated", got)
	}
	if got := ws.ApiHealth["trafico"].Status; got != models.StatusSimulated {
		t.Errorf("apiHealth[trafico] = %q, want simulated", got)
	}

	if ws.Clima.Temp != 20 {
		t.Errorf("clima.temp = %v, want static default 20", ws.Clima.Temp)
	}
	if ws.Tierra.NearestDistanceKm != 9999 {
		t.Errorf("tierra.nearestDistanceKm = %v, want static default 9999", ws.Tierra.NearestDistanceKm)
	}
	if ws.Seed == "" {
		t.Error("degraded state missing seed")
	}

	// Eventos degrades by derivation from the (static) cosmos, economia and
	// tierra defaults: kp 2, neutral trend, 0 quakes gives tone -7.
	if ws.Eventos.ToneScore != -7 {
		t.Errorf("derived tone = %v, want -7", ws.Eventos.ToneScore)
	}
	if ws.Eventos.DominantTheme != "politics" {
		t.Errorf("derived theme = %q, want politics", ws.Eventos.DominantTheme)
	}

	if fallbacks, total := track.FallbackRate(time.Minute); fallbacks != 1 || total != 1 {
		t.Errorf("outcome tracking = (%d, %d), want fallback cycle (1, 1)", fallbacks, total)
	}
}

func TestGetWorldState_EditionIncrements(t *testing.T) {
	track.Reset()
	defer track.Reset()

	fetchers, _, _ := liveFetchers()
	svc := newTestService(fetchers)
	ctx := context.Background()

	a, _, _ := svc.GetWorldState(ctx, 19.43, -99.13)
	b, _, _ := svc.GetWorldState(ctx, 40.42, -3.70)
	if a.EditionNumber != 1 || b.EditionNumber != 2 {
		t.Errorf("editions = %d, %d, want 1, 2", a.EditionNumber, b.EditionNumber)
	}
}

func TestGetWorldState_PlaceholderLocationCode(t *testing.T) {
	track.Reset()
	defer track.Reset()

	fetchers, _, _ := liveFetchers()
	svc := newTestService(fetchers) // nil geocoder

	ws, _, err := svc.GetWorldState(context.Background(), 19.4326, -99.1332)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ws.Location.CityCode != "CDMX" {
		t.Errorf("cityCode = %q, want CDMX from the coordinate box", ws.Location.CityCode)
	}
	if ws.Location.Lat != 19.4326 || ws.Location.Lng != -99.1332 {
		t.Errorf("location echoes (%v, %v), want requested coordinates", ws.Location.Lat, ws.Location.Lng)
	}
}

func TestBuildFallbackState_Complete(t *testing.T) {
	fetchers, _, _ := liveFetchers()
	svc := newTestService(fetchers)

	ws := svc.BuildFallbackState(19.4326, -99.1332)
	if ws.Seed == "" {
		t.Error("fallback state missing seed")
	}
	if len(ws.ApiHealth) != 10 {
		t.Errorf("apiHealth has %d entries, want all 10 signals tagged", len(ws.ApiHealth))
	}
	if ws.ApiHealth["clima"].Status != models.StatusFallback {
		t.Errorf("apiHealth[clima] = %q, want fallback", ws.ApiHealth["clima"].Status)
	}
	if ws.Afluencia.Source != "synthetic" {
		t.Errorf("afluencia.source = %q, want synthetic", ws.Afluencia.Source)
	}
}
