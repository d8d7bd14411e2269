// Package service assembles world states. One aggregation cycle fans out
// to the upstream fetchers, substitutes fallbacks for whatever failed,
// and produces a fully populated, immutable WorldState. A cycle always
// succeeds unless the caller's context dies; upstream failures degrade
// the result, they never propagate.
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/resonantmigration/worldstate-service/internal/cache"
	"github.com/resonantmigration/worldstate-service/internal/fallback"
	"github.com/resonantmigration/worldstate-service/internal/geocode"
	"github.com/resonantmigration/worldstate-service/internal/models"
	"github.com/resonantmigration/worldstate-service/internal/observability"
	"github.com/resonantmigration/worldstate-service/internal/seed"
	"github.com/resonantmigration/worldstate-service/internal/signals"
	"github.com/resonantmigration/worldstate-service/internal/track"
)

// Fetcher interfaces, one per network-backed signal. Narrow on purpose:
// tests substitute single-method fakes.
type (
	ClimaFetcher interface {
		Fetch(ctx context.Context, lat, lng float64) (models.Clima, error)
	}
	EventosFetcher interface {
		Fetch(ctx context.Context) (models.Eventos, error)
	}
	CosmosFetcher interface {
		Fetch(ctx context.Context) (models.Cosmos, error)
	}
	EconomiaFetcher interface {
		Fetch(ctx context.Context) (models.Economia, error)
	}
	AtencionFetcher interface {
		Fetch(ctx context.Context) (models.Atencion, error)
	}
	TierraFetcher interface {
		Fetch(ctx context.Context, lat, lng float64) (models.Tierra, error)
	}
	TrendingFetcher interface {
		Fetch(ctx context.Context, atencion models.Atencion) (models.Trending, error)
	}
	TraficoFetcher interface {
		Fetch(ctx context.Context, lat, lng float64) (models.Trafico, error)
	}
)

// Fetchers bundles all upstream fetchers for injection.
type Fetchers struct {
	Clima    ClimaFetcher
	Eventos  EventosFetcher
	Cosmos   CosmosFetcher
	Economia EconomiaFetcher
	Atencion AtencionFetcher
	Tierra   TierraFetcher
	Trending TrendingFetcher
	Trafico  TraficoFetcher
}

// Options configures optional service behavior.
type Options struct {
	CacheTTL        time.Duration
	Coalesce        bool
	CoalesceTimeout time.Duration
}

// WorldStateService is the aggregation orchestrator.
type WorldStateService struct {
	fetchers  Fetchers
	cache     cache.Cache
	geocoder  geocode.Resolver
	ttl       time.Duration
	logger    *zap.Logger
	coalescer *coalescer
	editions  atomic.Int64
	now       func() time.Time
}

// New creates a WorldStateService. geocoder may be nil; placeholder codes
// are used instead.
func New(fetchers Fetchers, c cache.Cache, geocoder geocode.Resolver, opts Options, logger *zap.Logger) *WorldStateService {
	s := &WorldStateService{
		fetchers: fetchers,
		cache:    c,
		geocoder: geocoder,
		ttl:      opts.CacheTTL,
		logger:   logger,
		now:      time.Now,
	}
	if opts.Coalesce {
		s.coalescer = newCoalescer(opts.CoalesceTimeout)
	}
	return s
}

// GetWorldState returns the world state for the coordinate, serving from
// cache when a fresh entry exists for the quantized location. The bool
// reports whether the state came from cache.
func (s *WorldStateService) GetWorldState(ctx context.Context, lat, lng float64) (models.WorldState, bool, error) {
	key := cache.Key(lat, lng)

	if ws, ok, err := s.cache.Get(ctx, key); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		observability.CacheHitsTotal.Inc()
		return ws, true, nil
	}

	run := func(ctx context.Context) (models.WorldState, error) {
		ws, err := s.aggregate(ctx, lat, lng)
		if err != nil {
			return models.WorldState{}, err
		}
		if err := s.cache.Set(ctx, key, ws, s.ttl); err != nil {
			observability.CacheErrorsTotal.WithLabelValues("set").Inc()
			s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
		return ws, nil
	}

	var ws models.WorldState
	var err error
	if s.coalescer != nil {
		ws, err = s.coalescer.do(ctx, key, run)
	} else {
		ws, err = run(ctx)
	}
	if err != nil {
		return models.WorldState{}, false, err
	}
	return ws, false, nil
}

// settled is the outcome of one fetcher goroutine.
type settled[T any] struct {
	value     T
	err       error
	latencyMs int64
}

func settle[T any](ctx context.Context, wg *sync.WaitGroup, out *settled[T], fn func(context.Context) (T, error)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		start := time.Now()
		out.value, out.err = fn(ctx)
		out.latencyMs = time.Since(start).Milliseconds()
	}()
}

// aggregate runs one full aggregation cycle. Phase one fans out the six
// core fetchers; each settles independently so one slow provider never
// cancels another. Phase two runs trending and trafico, which consume
// phase-one results. Solar and afluencia are computed locally.
func (s *WorldStateService) aggregate(ctx context.Context, lat, lng float64) (models.WorldState, error) {
	var (
		wg       sync.WaitGroup
		clima    settled[models.Clima]
		eventos  settled[models.Eventos]
		cosmos   settled[models.Cosmos]
		economia settled[models.Economia]
		atencion settled[models.Atencion]
		tierra   settled[models.Tierra]
	)
	settle(ctx, &wg, &clima, func(ctx context.Context) (models.Clima, error) {
		return s.fetchers.Clima.Fetch(ctx, lat, lng)
	})
	settle(ctx, &wg, &eventos, s.fetchers.Eventos.Fetch)
	settle(ctx, &wg, &cosmos, s.fetchers.Cosmos.Fetch)
	settle(ctx, &wg, &economia, s.fetchers.Economia.Fetch)
	settle(ctx, &wg, &atencion, s.fetchers.Atencion.Fetch)
	settle(ctx, &wg, &tierra, func(ctx context.Context) (models.Tierra, error) {
		return s.fetchers.Tierra.Fetch(ctx, lat, lng)
	})
	wg.Wait()

	if ctx.Err() != nil {
		return models.WorldState{}, ctx.Err()
	}

	health := make(map[string]models.ApiHealthEntry, 10)
	var failed []string

	cosmosVal := cosmos.value
	if cosmos.err != nil {
		cosmosVal = fallback.Cosmos()
		observability.SignalFallbacksTotal.WithLabelValues("cosmos", "static").Inc()
		failed = append(failed, "cosmos")
	}
	economiaVal := economia.value
	if economia.err != nil {
		economiaVal = fallback.Economia()
		observability.SignalFallbacksTotal.WithLabelValues("economia", "static").Inc()
		failed = append(failed, "economia")
	}
	tierraVal := tierra.value
	if tierra.err != nil {
		tierraVal = fallback.Tierra()
		observability.SignalFallbacksTotal.WithLabelValues("tierra", "static").Inc()
		failed = append(failed, "tierra")
	}
	climaVal := clima.value
	if clima.err != nil {
		climaVal = fallback.Clima()
		observability.SignalFallbacksTotal.WithLabelValues("clima", "static").Inc()
		failed = append(failed, "clima")
	}
	atencionVal := atencion.value
	if atencion.err != nil {
		atencionVal = fallback.Atencion()
		observability.SignalFallbacksTotal.WithLabelValues("atencion", "static").Inc()
		failed = append(failed, "atencion")
	}

	// News tone degrades to a derivation from the signals that did land,
	// so a quiet GDELT outage still tracks real geomagnetic and market mood.
	eventosVal := eventos.value
	if eventos.err != nil {
		eventosVal = fallback.DeriveEventos(cosmosVal, economiaVal, tierraVal)
		observability.SignalFallbacksTotal.WithLabelValues("eventos", "derived").Inc()
		failed = append(failed, "eventos")
	}

	health["clima"] = liveOrFallback(clima.err, clima.latencyMs)
	health["eventos"] = liveOrFallback(eventos.err, eventos.latencyMs)
	health["cosmos"] = liveOrFallback(cosmos.err, cosmos.latencyMs)
	health["economia"] = liveOrFallback(economia.err, economia.latencyMs)
	health["atencion"] = liveOrFallback(atencion.err, atencion.latencyMs)
	health["tierra"] = liveOrFallback(tierra.err, tierra.latencyMs)

	now := s.now().UTC()
	solar := signals.ComputeSolar(lat, lng, now)
	health["solar"] = models.ApiHealthEntry{Status: models.StatusLive}

	var (
		wg2      sync.WaitGroup
		trending settled[models.Trending]
		trafico  settled[models.Trafico]
	)
	settle(ctx, &wg2, &trending, func(ctx context.Context) (models.Trending, error) {
		return s.fetchers.Trending.Fetch(ctx, atencionVal)
	})
	settle(ctx, &wg2, &trafico, func(ctx context.Context) (models.Trafico, error) {
		return s.fetchers.Trafico.Fetch(ctx, lat, lng)
	})
	wg2.Wait()

	trendingVal := trending.value
	if trending.err != nil {
		trendingVal = fallback.Trending()
		observability.SignalFallbacksTotal.WithLabelValues("trending", "simulated").Inc()
	}
	traficoVal := trafico.value
	if trafico.err != nil {
		traficoVal = fallback.Trafico()
		observability.SignalFallbacksTotal.WithLabelValues("trafico", "simulated").Inc()
	}
	health["trending"] = edgeHealth(trendingVal.Source != "synthetic", trending.latencyMs)
	health["trafico"] = edgeHealth(traficoVal.Source == "tomtom", trafico.latencyMs)

	afluenciaVal := fallback.SimulateAfluencia(lng, now, eventosVal)
	health["afluencia"] = models.ApiHealthEntry{Status: models.StatusSimulated}

	ws := models.WorldState{
		Location:    s.resolveLocation(ctx, lat, lng),
		Clima:       climaVal,
		Eventos:     eventosVal,
		Cosmos:      cosmosVal,
		Economia:    economiaVal,
		Atencion:    atencionVal,
		Tierra:      tierraVal,
		Solar:       solar,
		Trending:    trendingVal,
		Trafico:     traficoVal,
		Afluencia:   afluenciaVal,
		ApiHealth:   health,
		GeneratedAt: now,
	}
	ws.Seed = seed.FromWorldState(ws)
	ws.EditionNumber = s.editions.Add(1)

	if len(failed) > 0 {
		track.RecordFallback()
		s.logger.Warn("aggregation degraded",
			zap.Float64("lat", lat), zap.Float64("lng", lng),
			zap.Strings("failedSignals", failed),
			zap.Int64("edition", ws.EditionNumber))
	} else {
		track.RecordClean()
	}
	observability.WorldStatesGeneratedTotal.Inc()
	s.logger.Debug("world state generated",
		zap.Float64("lat", lat), zap.Float64("lng", lng),
		zap.String("seed", ws.Seed),
		zap.Int64("edition", ws.EditionNumber))

	return ws, nil
}

// BuildFallbackState produces a fully static world state for the
// coordinate. Used when a cycle itself cannot run: the caller still gets
// a complete, renderable state rather than an error.
func (s *WorldStateService) BuildFallbackState(lat, lng float64) models.WorldState {
	now := s.now().UTC()
	eventosVal := fallback.Eventos()

	health := map[string]models.ApiHealthEntry{
		"clima":     {Status: models.StatusFallback},
		"eventos":   {Status: models.StatusFallback},
		"cosmos":    {Status: models.StatusFallback},
		"economia":  {Status: models.StatusFallback},
		"atencion":  {Status: models.StatusFallback},
		"tierra":    {Status: models.StatusFallback},
		"solar":     {Status: models.StatusLive},
		"trending":  {Status: models.StatusSimulated},
		"trafico":   {Status: models.StatusSimulated},
		"afluencia": {Status: models.StatusSimulated},
	}

	ws := models.WorldState{
		Location:    models.Location{Lat: lat, Lng: lng, CityCode: geocode.CoordFallback(lat, lng)},
		Clima:       fallback.Clima(),
		Eventos:     eventosVal,
		Cosmos:      fallback.Cosmos(),
		Economia:    fallback.Economia(),
		Atencion:    fallback.Atencion(),
		Tierra:      fallback.Tierra(),
		Solar:       signals.ComputeSolar(lat, lng, now),
		Trending:    fallback.Trending(),
		Trafico:     fallback.SimulateTrafico(lng, now),
		Afluencia:   fallback.SimulateAfluencia(lng, now, eventosVal),
		ApiHealth:   health,
		GeneratedAt: now,
	}
	ws.Seed = seed.FromWorldState(ws)
	ws.EditionNumber = s.editions.Add(1)
	return ws
}

func (s *WorldStateService) resolveLocation(ctx context.Context, lat, lng float64) models.Location {
	loc := models.Location{Lat: lat, Lng: lng}
	if s.geocoder != nil {
		if place, err := s.geocoder.Resolve(ctx, lat, lng); err == nil {
			loc.City = place.City
			loc.CityCode = place.Code
			return loc
		}
	}
	loc.CityCode = geocode.CoordFallback(lat, lng)
	return loc
}

func liveOrFallback(err error, latencyMs int64) models.ApiHealthEntry {
	status := models.StatusLive
	if err != nil {
		status = models.StatusFallback
	}
	return models.ApiHealthEntry{Status: status, LatencyMs: latencyMs}
}

func edgeHealth(live bool, latencyMs int64) models.ApiHealthEntry {
	if live {
		return models.ApiHealthEntry{Status: models.StatusLive, LatencyMs: latencyMs}
	}
	return models.ApiHealthEntry{Status: models.StatusSimulated}
}
