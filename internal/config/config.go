package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Cfg is the global configuration loaded at startup.
var Cfg Config

// Config holds all application configuration.
type Config struct {
	// Server
	Port    string
	BaseURL string

	// Sentry
	SentryDSN         string
	SentryEnvironment string
	SentryRelease     string

	// Scraper
	ScraperEnabled  bool
	ScraperInterval time.Duration
	EnrichWorkers   int

	// Channels
	ChannelTF1 bool
	ChannelM6  bool

	// Telecom operator (invoice extraction)
	OperatorBaseURL string

	// Rate limiter
	RateLimitRPS   int
	RateLimitBurst int

	// Rules link checker
	LinkCheckEnabled  bool
	LinkCheckInterval time.Duration
	LinkCheckDelay    time.Duration

	// HTTP
	UserAgent   string
	HTTPTimeout time.Duration

	// Gzip
	GzipEnabled bool

	// Admin
	AdminAPIKey string

	// Logging
	LogDebug bool
}

// Load reads .env (if present) and populates Cfg from environment variables.
func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using environment variables")
	}

	Cfg = Config{
		Port:    envOr("PORT", "8080"),
		BaseURL: envOr("BASE_URL", "https://api.tvgamerefund.fr"),

		SentryDSN:         os.Getenv("SENTRY_DSN"),
		SentryEnvironment: envOr("SENTRY_ENVIRONMENT", "production"),
		SentryRelease:     envOr("SENTRY_RELEASE", "tvgamerefund@1.0.0"),

		ScraperEnabled:  envBool("SCRAPER_ENABLED", true),
		ScraperInterval: envDuration("SCRAPER_INTERVAL", 12*time.Hour),
		EnrichWorkers:   envInt("ENRICH_WORKERS", 4),

		ChannelTF1: envBool("CHANNEL_TF1", true),
		ChannelM6:  envBool("CHANNEL_M6", true),

		OperatorBaseURL: envOr("OPERATOR_BASE_URL", "https://mobile.free.fr/account/v2/api/SI"),

		RateLimitRPS:   envInt("RATE_LIMIT_RPS", 30),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 60),

		LinkCheckEnabled:  envBool("LINKCHECK_ENABLED", true),
		LinkCheckInterval: envDuration("LINKCHECK_INTERVAL", 24*time.Hour),
		LinkCheckDelay:    envDuration("LINKCHECK_DELAY", 5*time.Second),

		UserAgent:   envOr("USER_AGENT", "Mozilla/5.0 (compatible; TVGameRefundBot/1.0; +https://tvgamerefund.fr)"),
		HTTPTimeout: envDuration("HTTP_TIMEOUT", 30*time.Second),

		GzipEnabled: envBool("GZIP_ENABLED", true),

		AdminAPIKey: os.Getenv("ADMIN_API_KEY"),

		LogDebug: envBool("LOG_DEBUG", false),
	}

	log.Printf("config: loaded (port=%s, scraper=%v, tf1=%v, m6=%v)",
		Cfg.Port, Cfg.ScraperEnabled, Cfg.ChannelTF1, Cfg.ChannelM6)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
