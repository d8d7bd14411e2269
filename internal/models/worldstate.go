package models

import "time"

// Health status values for a signal in the ApiHealth map.
const (
	StatusLive      = "live"      // value came from a successful upstream call
	StatusFallback  = "fallback"  // fetch failed; static or derived substitute used
	StatusSimulated = "simulated" // value is always synthesized, no fetch attempted
)

// Trend directions for Economia.
const (
	TrendUp      = "up"
	TrendDown    = "down"
	TrendNeutral = "neutral"
)

// Location is the request coordinate plus the best-effort resolved place.
type Location struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	City     string  `json:"city,omitempty"`
	CityCode string  `json:"cityCode,omitempty"`
}

// Clima is current atmospheric conditions at the location.
type Clima struct {
	Temp     float64 `json:"temp"`     // degrees C
	Wind     float64 `json:"wind"`     // km/h
	WindDir  float64 `json:"windDir"`  // 0-360 degrees
	UV       float64 `json:"uv"`       // 0-11
	Humidity float64 `json:"humidity"` // 0-100 percent
}

// Eventos is global news tone derived from recent articles.
type Eventos struct {
	ToneScore       float64 `json:"toneScore"`       // -100 to +100
	ConflictDensity float64 `json:"conflictDensity"` // 0-1
	DominantTheme   string  `json:"dominantTheme"`   // conflict|economy|science|culture|politics
}

// Cosmos is geomagnetic activity.
type Cosmos struct {
	KpIndex   float64 `json:"kpIndex"`   // 0-9
	SolarWind float64 `json:"solarWind"` // km/s
}

// Economia is crypto-market volatility and trend.
type Economia struct {
	VolatilityIndex float64 `json:"volatilityIndex"` // 0-100
	TrendDir        string  `json:"trendDir"`        // up|down|neutral
}

// Atencion is what readers are paying attention to (top encyclopedia pageviews).
type Atencion struct {
	TopTheme    string   `json:"topTheme"`
	Palette     string   `json:"palette"`
	TopArticles []string `json:"topArticles"`
}

// Tierra is recent seismic activity relative to the location.
type Tierra struct {
	NearestMagnitude  float64 `json:"nearestMagnitude"`
	NearestDistanceKm float64 `json:"nearestDistanceKm"`
	TotalLastHour     int     `json:"totalLastHour"`
}

// Solar is the analytically computed sun position. It has no upstream
// dependency and therefore no failure mode.
type Solar struct {
	IsDaylight   bool    `json:"isDaylight"`
	SunElevation float64 `json:"sunElevation"` // degrees, -90 to +90
	UVIndex      float64 `json:"uvIndex"`      // 0-11
}

// Trending is the current top trending keyword.
type Trending struct {
	Keyword string  `json:"keyword"` // <= 20 chars, uppercase
	Score   float64 `json:"score"`   // 0-1
	Source  string  `json:"source"`  // twitter|wikipedia|synthetic
}

// Trafico is road traffic density near the location.
type Trafico struct {
	Density    float64 `json:"density"`    // 0-1, 1 = gridlock
	SpeedRatio float64 `json:"speedRatio"` // current/free-flow, 0-1
	Source     string  `json:"source"`     // tomtom|synthetic
}

// Afluencia is foot-traffic density, always synthesized from local time.
type Afluencia struct {
	Density  float64 `json:"density"` // 0-1
	PeakHour bool    `json:"peakHour"`
	Source   string  `json:"source"` // always "synthetic"
}

// ApiHealthEntry records how one signal's value was obtained.
type ApiHealthEntry struct {
	Status    string `json:"status"` // live|fallback|simulated
	LatencyMs int64  `json:"latencyMs,omitempty"`
}

// WorldState is the aggregate produced once per cache-miss request.
// Every signal field is always populated (live or fallback); the aggregate
// is immutable once assembled and replaced, not mutated, on refresh.
type WorldState struct {
	Location      Location                  `json:"location"`
	Clima         Clima                     `json:"clima"`
	Eventos       Eventos                   `json:"eventos"`
	Cosmos        Cosmos                    `json:"cosmos"`
	Economia      Economia                  `json:"economia"`
	Atencion      Atencion                  `json:"atencion"`
	Tierra        Tierra                    `json:"tierra"`
	Solar         Solar                     `json:"solar"`
	Trending      Trending                  `json:"trending"`
	Trafico       Trafico                   `json:"trafico"`
	Afluencia     Afluencia                 `json:"afluencia"`
	ApiHealth     map[string]ApiHealthEntry `json:"apiHealth"`
	GeneratedAt   time.Time                 `json:"generatedAt"`
	Seed          string                    `json:"seed"`
	EditionNumber int64                     `json:"editionNumber"`
}

// APIResponse is the envelope returned by GET /world-state.
type APIResponse struct {
	Data      *WorldState `json:"data"`
	Error     *string     `json:"error"`
	Cached    bool        `json:"cached"`
	FetchedAt time.Time   `json:"fetchedAt"`
}
