package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Coordinate is a named warm-up location from the config file.
type Coordinate struct {
	Name string
	Lat  float64
	Lng  float64
}

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	RequestTimeout time.Duration

	CacheTTL     time.Duration
	CacheBackend string // "in_memory" or "memcached"

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	// Per-identity fixed-window limit (requests per window).
	RateLimitPerMinute int
	RateLimitWindow    time.Duration
	// Global token bucket in front of the per-identity limiter. 0 disables.
	RateLimitRPS   int
	RateLimitBurst int

	// Per-fetcher timeouts. The core six providers share FetchTimeout;
	// trending/trafico are faster edges and get their own bound.
	FetchTimeout     time.Duration
	EdgeFetchTimeout time.Duration
	GeocodeTimeout   time.Duration

	OpenMeteoURL string
	GDELTURL     string
	SWPCURL      string
	CoinGeckoURL string
	WikimediaURL string
	USGSURL      string
	TwitterURL   string
	TomTomURL    string
	NominatimURL string

	// Optional provider credentials. When absent the trending and traffic
	// signals are simulated rather than fetched.
	TwitterBearerToken string
	TomTomAPIKey       string

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	CoalesceEnabled bool
	CoalesceTimeout time.Duration

	WarmCache          bool
	WarmInterval       time.Duration
	TrackedCoordinates []Coordinate

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	OverloadWindow       time.Duration
	OverloadThresholdPct int
	DegradedWindow       time.Duration
	DegradedFallbackPct  int
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Warm struct {
			Enabled  bool   `yaml:"enabled"`
			Interval string `yaml:"interval"`
			Tracked  []struct {
				Name string  `yaml:"name"`
				Lat  float64 `yaml:"lat"`
				Lng  float64 `yaml:"lng"`
			} `yaml:"tracked"`
		} `yaml:"warm"`
	} `yaml:"cache"`

	RateLimit struct {
		PerMinute int    `yaml:"per_minute"`
		Window    string `yaml:"window"`
		GlobalRPS int    `yaml:"global_rps"`
		Burst     int    `yaml:"burst"`
	} `yaml:"rate_limit"`

	Signals struct {
		FetchTimeout     string `yaml:"fetch_timeout"`
		EdgeFetchTimeout string `yaml:"edge_fetch_timeout"`
		GeocodeTimeout   string `yaml:"geocode_timeout"`
		Providers        struct {
			OpenMeteo string `yaml:"open_meteo"`
			GDELT     string `yaml:"gdelt"`
			SWPC      string `yaml:"swpc"`
			CoinGecko string `yaml:"coingecko"`
			Wikimedia string `yaml:"wikimedia"`
			USGS      string `yaml:"usgs"`
			Twitter   string `yaml:"twitter"`
			TomTom    string `yaml:"tomtom"`
			Nominatim string `yaml:"nominatim"`
		} `yaml:"providers"`
	} `yaml:"signals"`

	Reliability struct {
		CircuitBreakerEnabled          bool   `yaml:"circuit_breaker_enabled"`
		CircuitBreakerFailureThreshold int    `yaml:"circuit_breaker_failure_threshold"`
		CircuitBreakerSuccessThreshold int    `yaml:"circuit_breaker_success_threshold"`
		CircuitBreakerTimeout          string `yaml:"circuit_breaker_timeout"`
		CoalesceEnabled                *bool  `yaml:"coalesce_enabled"`
		CoalesceTimeout                string `yaml:"coalesce_timeout"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedFallbackPct  int    `yaml:"degraded_fallback_pct"`
	} `yaml:"lifecycle"`
}

type secretsFile struct {
	TwitterBearerToken string `yaml:"twitter_bearer_token"`
	TomTomAPIKey       string `yaml:"tomtom_api_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml. Provider credentials come from TWITTER_BEARER_TOKEN /
// TOMTOM_API_KEY env or the secrets file; both are optional. Call from
// project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)

	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 5*time.Minute)
	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.WarmCache = fc.Cache.Warm.Enabled
	cfg.WarmInterval = parseDurationOrZero(fc.Cache.Warm.Interval, 0)
	for _, c := range fc.Cache.Warm.Tracked {
		cfg.TrackedCoordinates = append(cfg.TrackedCoordinates, Coordinate{Name: c.Name, Lat: c.Lat, Lng: c.Lng})
	}

	cfg.RateLimitPerMinute = fc.RateLimit.PerMinute
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 10
	}
	cfg.RateLimitWindow = parseDuration(fc.RateLimit.Window, time.Minute)
	cfg.RateLimitRPS = fc.RateLimit.GlobalRPS
	cfg.RateLimitBurst = fc.RateLimit.Burst
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = cfg.RateLimitRPS * 2
	}

	cfg.FetchTimeout = parseDuration(fc.Signals.FetchTimeout, 5*time.Second)
	cfg.EdgeFetchTimeout = parseDuration(fc.Signals.EdgeFetchTimeout, 4*time.Second)
	cfg.GeocodeTimeout = parseDuration(fc.Signals.GeocodeTimeout, 4*time.Second)

	p := fc.Signals.Providers
	cfg.OpenMeteoURL = defaultStr(p.OpenMeteo, "https://api.open-meteo.com/v1/forecast")
	cfg.GDELTURL = defaultStr(p.GDELT, "https://api.gdeltproject.org/api/v2/doc/doc")
	cfg.SWPCURL = defaultStr(p.SWPC, "https://services.swpc.noaa.gov/json/planetary_k_index_1m.json")
	cfg.CoinGeckoURL = defaultStr(p.CoinGecko, "https://api.coingecko.com/api/v3/coins/markets")
	cfg.WikimediaURL = defaultStr(p.Wikimedia, "https://wikimedia.org/api/rest_v1/metrics/pageviews/top/en.wikipedia/all-access")
	cfg.USGSURL = defaultStr(p.USGS, "https://earthquake.usgs.gov/fdsnws/event/1/query")
	cfg.TwitterURL = defaultStr(p.Twitter, "https://api.twitter.com/1.1/trends/place.json")
	cfg.TomTomURL = defaultStr(p.TomTom, "https://api.tomtom.com/traffic/services/4/flowSegmentData/absolute/10/json")
	cfg.NominatimURL = defaultStr(p.Nominatim, "https://nominatim.openstreetmap.org/reverse")

	cfg.TwitterBearerToken = os.Getenv("TWITTER_BEARER_TOKEN")
	cfg.TomTomAPIKey = os.Getenv("TOMTOM_API_KEY")
	if cfg.TwitterBearerToken == "" || cfg.TomTomAPIKey == "" {
		secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
		secretsData, err := os.ReadFile(secretsPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read secrets file: %w", err)
			}
		} else {
			var sec secretsFile
			if err := yaml.Unmarshal(secretsData, &sec); err != nil {
				return nil, fmt.Errorf("parse secrets file: %w", err)
			}
			if cfg.TwitterBearerToken == "" {
				cfg.TwitterBearerToken = sec.TwitterBearerToken
			}
			if cfg.TomTomAPIKey == "" {
				cfg.TomTomAPIKey = sec.TomTomAPIKey
			}
		}
	}

	cfg.CircuitBreakerEnabled = fc.Reliability.CircuitBreakerEnabled
	cfg.CircuitBreakerFailureThreshold = fc.Reliability.CircuitBreakerFailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = fc.Reliability.CircuitBreakerSuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 2
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.Reliability.CircuitBreakerTimeout, 30*time.Second)

	cfg.CoalesceEnabled = true
	if fc.Reliability.CoalesceEnabled != nil {
		cfg.CoalesceEnabled = *fc.Reliability.CoalesceEnabled
	}
	cfg.CoalesceTimeout = parseDuration(fc.Reliability.CoalesceTimeout, 10*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 5*time.Minute)
	cfg.DegradedFallbackPct = fc.Lifecycle.DegradedFallbackPct
	if cfg.DegradedFallbackPct <= 0 {
		cfg.DegradedFallbackPct = 50
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultStr(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty
// string or parse error. Zero or negative durations are returned as-is.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
// The outer request timeout must cover the slowest fetcher plus geocoding,
// otherwise every cold request dies at the middleware deadline.
func validate(cfg *Config) error {
	if cfg.FetchTimeout <= 0 {
		return fmt.Errorf("signals.fetch_timeout must be positive")
	}
	minOuter := cfg.FetchTimeout + cfg.EdgeFetchTimeout + cfg.GeocodeTimeout
	if cfg.RequestTimeout <= minOuter {
		cfg.RequestTimeout = minOuter + time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	return nil
}
