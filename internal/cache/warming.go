package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/resonantmigration/worldstate-service/internal/config"
	"github.com/resonantmigration/worldstate-service/internal/models"
	"github.com/resonantmigration/worldstate-service/internal/observability"
)

// StateFetcher is implemented by the service layer to aggregate a world
// state for a coordinate. Declared here to avoid a circular dependency on
// the service package.
type StateFetcher interface {
	GetWorldState(ctx context.Context, lat, lng float64) (models.WorldState, bool, error)
}

// Warmer prefetches world states for a list of tracked coordinates so the
// first visitor of a popular city never pays a cold aggregation cycle.
type Warmer struct {
	fetcher StateFetcher
	logger  *zap.Logger
}

// NewWarmer creates a Warmer that uses the given fetcher and logger.
func NewWarmer(fetcher StateFetcher, logger *zap.Logger) *Warmer {
	return &Warmer{fetcher: fetcher, logger: logger}
}

// Warm aggregates each coordinate concurrently, populating the cache via
// the fetcher. Returns an aggregated error if any coordinate failed.
func (w *Warmer) Warm(ctx context.Context, coords []config.Coordinate) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming cache", zap.Int("coordinates", len(coords)))
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(coords))
	for _, c := range coords {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := w.fetcher.GetWorldState(ctx, c.Lat, c.Lng)
			if err != nil {
				errCh <- fmt.Errorf("warm %s: %w", c.Name, err)
			}
		}()
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if w.logger != nil {
		w.logger.Info("cache warming complete",
			zap.Int("coordinates", len(coords)),
			zap.Int("errors", len(errs)),
			zap.Duration("duration", time.Since(start)))
	}
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %v", errs)
	}
	return nil
}

// WarmPeriodic runs an initial Warm, then refreshes at the given interval
// until ctx is done.
func (w *Warmer) WarmPeriodic(ctx context.Context, coords []config.Coordinate, interval time.Duration) error {
	if err := w.Warm(ctx, coords); err != nil && w.logger != nil {
		w.logger.Warn("initial cache warm failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, coords); err != nil && w.logger != nil {
				w.logger.Warn("periodic cache warm failed", zap.Error(err))
			}
		}
	}
}
