// Package geocode resolves coordinates to a place name and short code.
// Resolution is best-effort: the Nominatim resolver may fail, in which
// case callers fall back to the coordinate-placeholder resolver. A
// geocoding failure never blocks aggregation.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Place is a resolved location label.
type Place struct {
	City string // empty when only a placeholder code is known
	Code string // short display code, always set
}

// Resolver turns coordinates into a Place.
type Resolver interface {
	Resolve(ctx context.Context, lat, lng float64) (Place, error)
}

// ErrNoPlace is returned when the upstream response contains no usable address.
var ErrNoPlace = errors.New("no place in geocoding response")

const userAgent = "ElOjo/1.0 (+https://resonantmigration.xyz)"

// NominatimResolver resolves via the OpenStreetMap Nominatim reverse API.
type NominatimResolver struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewNominatimResolver creates a resolver against baseURL with the given
// per-call timeout.
func NewNominatimResolver(baseURL string, timeout time.Duration) *NominatimResolver {
	return &NominatimResolver{
		baseURL: baseURL,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

type nominatimResponse struct {
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		County  string `json:"county"`
		State   string `json:"state"`
	} `json:"address"`
}

// Resolve reverse-geocodes the coordinate. The returned Place carries the
// most specific available label (city > town > village > county > state)
// and its display code.
func (r *NominatimResolver) Resolve(ctx context.Context, lat, lng float64) (Place, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	u, err := url.Parse(r.baseURL)
	if err != nil {
		return Place{}, fmt.Errorf("invalid geocoder URL: %w", err)
	}
	params := url.Values{}
	params.Set("lat", formatCoord(lat))
	params.Set("lon", formatCoord(lng))
	params.Set("format", "json")
	params.Set("zoom", "10")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Place{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en")

	resp, err := r.client.Do(req)
	if err != nil {
		return Place{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Place{}, fmt.Errorf("geocode: HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Place{}, fmt.Errorf("read geocode response: %w", err)
	}
	var nr nominatimResponse
	if err := json.Unmarshal(body, &nr); err != nil {
		return Place{}, fmt.Errorf("parse geocode response: %w", err)
	}

	city := firstNonEmpty(nr.Address.City, nr.Address.Town, nr.Address.Village, nr.Address.County, nr.Address.State)
	if city == "" {
		return Place{}, ErrNoPlace
	}
	return Place{City: city, Code: CodeForCity(city)}, nil
}

// PlaceholderResolver derives a code from the coordinates alone. It never fails.
type PlaceholderResolver struct{}

func (PlaceholderResolver) Resolve(ctx context.Context, lat, lng float64) (Place, error) {
	return Place{Code: CoordFallback(lat, lng)}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func formatCoord(v float64) string {
	return fmt.Sprintf("%.6f", v)
}
