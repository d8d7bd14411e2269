package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/resonantmigration/worldstate-service/internal/lifecycle"
	"github.com/resonantmigration/worldstate-service/internal/models"
	"github.com/resonantmigration/worldstate-service/internal/service"
	"github.com/resonantmigration/worldstate-service/internal/track"
	"github.com/resonantmigration/worldstate-service/internal/validation"
)

// Default coordinate when the query omits lat/lng: Mexico City.
const (
	defaultLat = 19.4326
	defaultLng = -99.1332
)

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitPerMinute   int
	DegradedWindow       time.Duration
	DegradedFallbackPct  int
	StartTime            time.Time
	// CachePing, when set, checks cache reachability. Used when backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	worldService     *service.WorldStateService
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(worldService *service.WorldStateService, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	return &Handler{
		worldService: worldService,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetWorldState handles GET /world-state?lat=&lng=.
//
// Upstream trouble never surfaces as a 5xx here: when the aggregation
// cycle itself cannot run, the response degrades to a fully static state
// with every signal tagged fallback or simulated.
func (h *Handler) GetWorldState(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, lng, err := validation.ParseCoordinates(q.Get("lat"), q.Get("lng"), defaultLat, defaultLng)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, nil, "Invalid coordinates", false)
		return
	}

	ws, cached, err := h.worldService.GetWorldState(r.Context(), lat, lng)
	if err != nil {
		if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
			logger.Debug("aggregation cycle failed, serving static state", zap.Error(err))
		}
		ws = h.worldService.BuildFallbackState(lat, lng)
		cached = false
	}

	if !cached {
		w.Header().Set("Cache-Control", "public, max-age=300")
	}
	writeEnvelope(w, http.StatusOK, &ws, "", cached)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if result.status == "degraded" {
		checks["aggregation"] = "unhealthy"
	} else {
		checks["aggregation"] = "healthy"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "worldstate-service",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus evaluates health conditions in priority order:
// shutting-down > overloaded > degraded > healthy. Degraded means the
// recent fallback rate breached the configured percentage; the service
// still answers every request, but orchestrators should know the states
// it serves are increasingly synthetic.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if h.healthConfig.OverloadWindow > 0 && h.healthConfig.RateLimitPerMinute > 0 {
		capacity := float64(h.healthConfig.RateLimitPerMinute) * h.healthConfig.OverloadWindow.Minutes()
		threshold := capacity * float64(h.healthConfig.OverloadThresholdPct) / 100
		if float64(track.DenialCount(h.healthConfig.OverloadWindow)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedFallbackPct > 0 {
		fallbacks, total := track.FallbackRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(fallbacks) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedFallbackPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "fallback_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeEnvelope writes the response envelope shared by every world-state
// response: data, error (null when absent), cached, fetchedAt.
func writeEnvelope(w http.ResponseWriter, status int, data *models.WorldState, errMsg string, cached bool) {
	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.APIResponse{
		Data:      data,
		Error:     errPtr,
		Cached:    cached,
		FetchedAt: time.Now().UTC(),
	})
}
