package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/resonantmigration/worldstate-service/internal/config"
	"github.com/resonantmigration/worldstate-service/internal/models"
)

type recordingFetcher struct {
	mu     sync.Mutex
	coords [][2]float64
	fail   map[[2]float64]bool
}

func (f *recordingFetcher) GetWorldState(ctx context.Context, lat, lng float64) (models.WorldState, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coords = append(f.coords, [2]float64{lat, lng})
	if f.fail[[2]float64{lat, lng}] {
		return models.WorldState{}, false, errors.New("aggregation failed")
	}
	return models.WorldState{Seed: "warmed"}, false, nil
}

var warmCoords = []config.Coordinate{
	{Name: "Mexico City", Lat: 19.4326, Lng: -99.1332},
	{Name: "Madrid", Lat: 40.4168, Lng: -3.7038},
	{Name: "Tokyo", Lat: 35.6762, Lng: 139.6503},
}

func TestWarm_FetchesEveryCoordinate(t *testing.T) {
	fetcher := &recordingFetcher{}
	w := NewWarmer(fetcher, nil)

	if err := w.Warm(context.Background(), warmCoords); err != nil {
		t.Fatalf("warm: %v", err)
	}
	if len(fetcher.coords) != len(warmCoords) {
		t.Errorf("fetched %d coordinates, want %d", len(fetcher.coords), len(warmCoords))
	}
	seen := make(map[[2]float64]bool)
	for _, c := range fetcher.coords {
		seen[c] = true
	}
	for _, c := range warmCoords {
		if !seen[[2]float64{c.Lat, c.Lng}] {
			t.Errorf("coordinate %s never fetched", c.Name)
		}
	}
}

func TestWarm_PartialFailureStillWarmsTheRest(t *testing.T) {
	fetcher := &recordingFetcher{fail: map[[2]float64]bool{
		{40.4168, -3.7038}: true,
	}}
	w := NewWarmer(fetcher, nil)

	err := w.Warm(context.Background(), warmCoords)
	if err == nil {
		t.Fatal("expected an aggregated error for the failed coordinate")
	}
	if len(fetcher.coords) != len(warmCoords) {
		t.Errorf("fetched %d coordinates, want all %d despite one failure", len(fetcher.coords), len(warmCoords))
	}
}

func TestWarm_NoCoordinates(t *testing.T) {
	w := NewWarmer(&recordingFetcher{}, nil)
	if err := w.Warm(context.Background(), nil); err != nil {
		t.Errorf("warm with no coordinates: %v", err)
	}
}
