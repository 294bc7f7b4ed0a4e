package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Config holds runtime configuration values for the wiki server.
type Config struct {
	DBPath        string
	DBLogSQL      bool
	ServerPort    int
	LogLevel      string
	SentryDSN     string
	Environment   string
	StaticDir     string
	FrontPage     string
	RateLimit     RateLimitConfig
	ShutdownGrace time.Duration
}

// RateLimitConfig configures the per-client token bucket applied to page requests.
type RateLimitConfig struct {
	Burst             int
	RequestsPerSecond float64
	ClientTTL         time.Duration
}

const (
	defaultDBPath         = "./data/wiki.db"
	defaultServerPort     = 8000
	defaultLogLevel       = "info"
	defaultEnvironment    = "development"
	defaultFrontPage      = "FrontPage"
	defaultRateLimitBurst = 30
	defaultRateLimitRPS   = 10
	defaultRateLimitTTL   = 10 * time.Minute
	defaultShutdownGrace  = 10 * time.Second
)

// Load reads configuration values from environment variables, applying defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:      getEnv("DB_PATH", defaultDBPath),
		LogLevel:    getEnv("LOG_LEVEL", defaultLogLevel),
		SentryDSN:   os.Getenv("SENTRY_DSN"),
		Environment: getEnv("ENV", defaultEnvironment),
		StaticDir:   strings.TrimSpace(os.Getenv("STATIC_DIR")),
		FrontPage:   strings.TrimSpace(getEnv("FRONT_PAGE", defaultFrontPage)),
	}

	portValue := getEnv("SERVER_PORT", strconv.Itoa(defaultServerPort))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid SERVER_PORT value: %s", portValue)
	}
	if port <= 0 || port > 65535 {
		return nil, eris.Errorf("invalid SERVER_PORT value: %s", portValue)
	}
	cfg.ServerPort = port

	if raw := os.Getenv("DB_LOG_SQL"); raw != "" {
		logSQL, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid DB_LOG_SQL value: %s", raw)
		}
		cfg.DBLogSQL = logSQL
	}

	burstValue := getEnv("RATE_LIMIT_BURST", strconv.Itoa(defaultRateLimitBurst))
	burst, err := strconv.Atoi(burstValue)
	if err != nil || burst <= 0 {
		return nil, eris.Errorf("invalid RATE_LIMIT_BURST value: %s", burstValue)
	}
	cfg.RateLimit.Burst = burst

	rpsValue := getEnv("RATE_LIMIT_RPS", strconv.Itoa(defaultRateLimitRPS))
	rps, err := strconv.ParseFloat(rpsValue, 64)
	if err != nil || rps <= 0 {
		return nil, eris.Errorf("invalid RATE_LIMIT_RPS value: %s", rpsValue)
	}
	cfg.RateLimit.RequestsPerSecond = rps

	cfg.RateLimit.ClientTTL, err = getDuration("RATE_LIMIT_CLIENT_TTL", defaultRateLimitTTL)
	if err != nil {
		return nil, err
	}

	cfg.ShutdownGrace, err = getDuration("SHUTDOWN_GRACE", defaultShutdownGrace)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	if value <= 0 {
		return 0, eris.Errorf("invalid %s value: %s", key, raw)
	}

	return value, nil
}
