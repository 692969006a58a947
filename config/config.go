package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraping  ScrapingConfig
	Tracker   TrackerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Notify    NotifyConfig
	Schedule  ScheduleConfig
	Log       LogConfig
}

// ServerConfig controls the reporting HTTP server.
type ServerConfig struct {
	Host string // default: "127.0.0.1"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the headless browser used by the "browser" strategy.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is passed to the browser launcher and the HTTP transport.
	Proxy string

	// WaitTimeout bounds the wait for the results container.
	WaitTimeout time.Duration // default: 10s

	// BlockedResourceTypes lists resource types to block while rendering.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string
}

// ScrapingConfig controls how results pages are fetched.
type ScrapingConfig struct {
	// Strategy selects the fetch mechanism: "http", "browser" or "api".
	Strategy string // default: "http"

	// ResultsPerPage is the requested result window (num=).
	ResultsPerPage int // default: 100

	// DelayBetweenRequests is the base pause between keyword checks.
	DelayBetweenRequests time.Duration // default: 5s

	// JitterMax is the upper bound of the extra random pause.
	JitterMax time.Duration // default: 2s

	// FetchDelayMin/Max bound the pre-request delay of the http strategy.
	FetchDelayMin time.Duration // default: 2s
	FetchDelayMax time.Duration // default: 5s

	// RenderDelayMin/Max bound the post-render delay of the browser strategy.
	RenderDelayMin time.Duration // default: 1s
	RenderDelayMax time.Duration // default: 3s

	// RequestTimeout bounds a single http fetch.
	RequestTimeout time.Duration // default: 10s

	// SearchURL is the results endpoint.
	SearchURL string // default: "https://www.google.com/search"

	// UserAgents overrides the built-in identity rotation (comma-separated).
	UserAgents []string

	// APIKey and APIURL configure the delegated fetch service.
	APIKey     string
	APIURL     string        // default: "http://api.scraperapi.com"
	APITimeout time.Duration // default: 60s
}

// TrackerConfig controls run concurrency and per-host protection.
type TrackerConfig struct {
	// Workers is the number of concurrent checks. 1 is strictly sequential.
	Workers int // default: 1

	// HostRPS and HostBurst bound the request rate per search host.
	HostRPS   float64 // default: 0.5
	HostBurst int     // default: 1

	// HostConcurrency caps in-flight requests per search host.
	HostConcurrency int // default: 2

	// BreakerFailures consecutive network failures open the breaker.
	BreakerFailures uint32 // default: 5

	// BreakerCooldown is how long the breaker stays open.
	BreakerCooldown time.Duration // default: 60s
}

// DatabaseConfig controls the ranking store.
type DatabaseConfig struct {
	Path string // default: "data/rankings.db"
}

// AuthConfig controls API key authentication for the reporting API.
type AuthConfig struct {
	Enabled bool // default: false
	APIKeys []string
}

// RateLimitConfig controls per-identity rate limiting of the reporting API.
type RateLimitConfig struct {
	RequestsPerSecond float64 // default: 5
	Burst             int     // default: 10
}

// NotifyConfig controls alert webhook delivery. Empty URL disables it.
type NotifyConfig struct {
	WebhookURL    string
	WebhookSecret string
}

// ScheduleConfig controls the in-process daemon schedule.
type ScheduleConfig struct {
	Cron string // default: "0 6 * * *"
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("RANKWATCH_HOST", "127.0.0.1"),
			Port: envIntOr("RANKWATCH_PORT", 8080),
			Mode: envOr("RANKWATCH_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:    envBoolOr("RANKWATCH_HEADLESS", true),
			NoSandbox:   envBoolOr("RANKWATCH_NO_SANDBOX", false),
			BrowserBin:  os.Getenv("RANKWATCH_BROWSER_BIN"),
			Proxy:       os.Getenv("RANKWATCH_PROXY"),
			WaitTimeout: envDurationOr("RANKWATCH_WAIT_TIMEOUT", 10*time.Second),
			BlockedResourceTypes: envSliceOr("RANKWATCH_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
		},
		Scraping: ScrapingConfig{
			Strategy:             envOr("RANKWATCH_STRATEGY", "http"),
			ResultsPerPage:       envIntOr("RANKWATCH_RESULTS_PER_PAGE", 100),
			DelayBetweenRequests: envDurationOr("RANKWATCH_DELAY", 5*time.Second),
			JitterMax:            envDurationOr("RANKWATCH_JITTER", 2*time.Second),
			FetchDelayMin:        envDurationOr("RANKWATCH_FETCH_DELAY_MIN", 2*time.Second),
			FetchDelayMax:        envDurationOr("RANKWATCH_FETCH_DELAY_MAX", 5*time.Second),
			RenderDelayMin:       envDurationOr("RANKWATCH_RENDER_DELAY_MIN", 1*time.Second),
			RenderDelayMax:       envDurationOr("RANKWATCH_RENDER_DELAY_MAX", 3*time.Second),
			RequestTimeout:       envDurationOr("RANKWATCH_REQUEST_TIMEOUT", 10*time.Second),
			SearchURL:            envOr("RANKWATCH_SEARCH_URL", "https://www.google.com/search"),
			UserAgents:           envSliceOr("RANKWATCH_USER_AGENTS", nil),
			APIKey:               os.Getenv("RANKWATCH_API_KEY"),
			APIURL:               envOr("RANKWATCH_API_URL", "http://api.scraperapi.com"),
			APITimeout:           envDurationOr("RANKWATCH_API_TIMEOUT", 60*time.Second),
		},
		Tracker: TrackerConfig{
			Workers:         envIntOr("RANKWATCH_WORKERS", 1),
			HostRPS:         envFloatOr("RANKWATCH_HOST_RPS", 0.5),
			HostBurst:       envIntOr("RANKWATCH_HOST_BURST", 1),
			HostConcurrency: envIntOr("RANKWATCH_HOST_CONCURRENCY", 2),
			BreakerFailures: uint32(envIntOr("RANKWATCH_BREAKER_FAILURES", 5)),
			BreakerCooldown: envDurationOr("RANKWATCH_BREAKER_COOLDOWN", 60*time.Second),
		},
		Database: DatabaseConfig{
			Path: envOr("RANKWATCH_DB_PATH", "data/rankings.db"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("RANKWATCH_AUTH_ENABLED", false),
			APIKeys: envSliceOr("RANKWATCH_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("RANKWATCH_RATE_RPS", 5.0),
			Burst:             envIntOr("RANKWATCH_RATE_BURST", 10),
		},
		Notify: NotifyConfig{
			WebhookURL:    os.Getenv("RANKWATCH_WEBHOOK_URL"),
			WebhookSecret: os.Getenv("RANKWATCH_WEBHOOK_SECRET"),
		},
		Schedule: ScheduleConfig{
			Cron: envOr("RANKWATCH_SCHEDULE", "0 6 * * *"),
		},
		Log: LogConfig{
			Level:  envOr("RANKWATCH_LOG_LEVEL", "info"),
			Format: envOr("RANKWATCH_LOG_FORMAT", "text"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
