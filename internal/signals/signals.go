// Package signals holds one fetcher per upstream provider. Every fetcher
// enforces its own request timeout, translates the raw payload into a
// typed signal value, and surfaces any problem as a single, final error.
// Fetchers never retry and keep no state beyond an optional circuit
// breaker; converting failures into fallback values is the caller's job.
package signals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/resonantmigration/worldstate-service/internal/circuitbreaker"
	"github.com/resonantmigration/worldstate-service/internal/observability"
)

var (
	// ErrUpstreamFailure marks a non-2xx response from a provider.
	ErrUpstreamFailure = errors.New("upstream failure")
	// ErrEmptyFeed marks a response with zero usable entries. An empty
	// seismic or market feed is a failure, not zero activity.
	ErrEmptyFeed = errors.New("empty feed")
	// ErrUnusablePayload marks a response that parsed but carried no data.
	ErrUnusablePayload = errors.New("unusable payload")
)

const userAgent = "ElOjo/1.0 (+https://resonantmigration.xyz)"

// core is what every network-backed fetcher shares: a signal name for
// metrics, a per-fetcher timeout, and an optional circuit breaker.
type core struct {
	signal  string
	timeout time.Duration
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
}

func newCore(signal string, timeout time.Duration, breaker *circuitbreaker.CircuitBreaker) core {
	return core{
		signal:  signal,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
	}
}

// getJSON performs one GET against rawURL and decodes the body into out,
// recording fetch metrics. The call is bounded by the fetcher's timeout and
// routed through the circuit breaker when one is configured.
func (c *core) getJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	call := func() error { return c.doRequest(ctx, rawURL, header, out) }

	start := time.Now()
	var err error
	if c.breaker != nil {
		err = c.breaker.Call(call)
	} else {
		err = call()
	}
	observability.SignalFetchDuration.WithLabelValues(c.signal).Observe(time.Since(start).Seconds())
	observability.SignalFetchesTotal.WithLabelValues(c.signal, statusLabel(err)).Inc()
	return err
}

func (c *core) doRequest(ctx context.Context, rawURL string, header http.Header, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.signal, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	if corrID := correlationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s: request timeout: %w", c.signal, err)
		}
		return fmt.Errorf("%s: http request: %w", c.signal, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: %w: HTTP %d", c.signal, ErrUpstreamFailure, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", c.signal, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: %w: %v", c.signal, ErrUnusablePayload, err)
	}
	return nil
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, circuitbreaker.ErrOpen):
		return "breaker_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

func correlationID(ctx context.Context) string {
	if v := ctx.Value("correlation_id"); v != nil {
		if corrID, ok := v.(string); ok {
			return corrID
		}
	}
	return ""
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
