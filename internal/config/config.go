package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config centralises runtime configuration.
type Config struct {
	HTTPPort        string
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int

	StorageDriver string
	DatabaseURL   string
	SeedFixtures  bool

	JWTSecret      string
	JWTIssuer      string
	JWTExpiry      time.Duration
	AllowedOrigins []string

	LogLevel  string
	LogFormat string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CatalogTTL    time.Duration

	KafkaBrokers    []string
	KafkaOrderTopic string

	AuthRatePerMinute int
	AuthRateBurst     int
	AuthRateIdleTTL   time.Duration

	// TrustedProxies lists the peers whose X-Forwarded-For header is believed.
	TrustedProxies []netip.Prefix

	OperatorEmail    string
	OperatorPassword string
}

// Load reads configuration from environment variables providing sane defaults.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	httpPort := getEnv("HTTP_PORT", "")
	if httpPort == "" {
		httpPort = getEnv("PORT", "8080")
	}
	driver := strings.ToLower(getEnv("STORAGE_DRIVER", DriverPostgres))

	cfg := Config{
		HTTPPort:        httpPort,
		ReadTimeoutSec:  getIntEnv("HTTP_READ_TIMEOUT", 15),
		WriteTimeoutSec: getIntEnv("HTTP_WRITE_TIMEOUT", 15),
		IdleTimeoutSec:  getIntEnv("HTTP_IDLE_TIMEOUT", 60),

		StorageDriver: driver,
		DatabaseURL:   resolveDatabaseURL(),
		SeedFixtures:  getBoolEnv("CATALOG_SEED_FIXTURES", driver == DriverMemory),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTIssuer:      getEnv("JWT_ISSUER", "backoffice"),
		JWTExpiry:      getDurationEnv("JWT_EXPIRY", 12*time.Hour),
		AllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*"), "*"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		CatalogTTL:    getDurationEnv("CATALOG_CACHE_TTL", 30*time.Second),

		KafkaBrokers:    splitCSV(getEnv("KAFKA_BROKERS", "")),
		KafkaOrderTopic: getEnv("KAFKA_ORDER_TOPIC", "order_events"),

		AuthRatePerMinute: getIntEnv("AUTH_RATE_LIMIT_PER_MINUTE", 30),
		AuthRateBurst:     getIntEnv("AUTH_RATE_LIMIT_BURST", 15),
		AuthRateIdleTTL:   getDurationEnv("AUTH_RATE_LIMIT_IDLE_TTL", 15*time.Minute),

		OperatorEmail:    getEnv("BOOTSTRAP_OPERATOR_EMAIL", ""),
		OperatorPassword: getEnv("BOOTSTRAP_OPERATOR_PASSWORD", ""),
	}

	proxies, err := parsePrefixes(splitCSV(getEnv("TRUSTED_PROXIES", "")))
	if err != nil {
		return Config{}, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	cfg.TrustedProxies = proxies

	switch cfg.StorageDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("database configuration missing: provide DATABASE_URL or PG* env vars")
		}
	case DriverMemory:
	default:
		return Config{}, fmt.Errorf("STORAGE_DRIVER %q is not supported", cfg.StorageDriver)
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if (cfg.OperatorEmail == "") != (cfg.OperatorPassword == "") {
		return Config{}, fmt.Errorf("BOOTSTRAP_OPERATOR_EMAIL and BOOTSTRAP_OPERATOR_PASSWORD must be set together")
	}
	return cfg, nil
}

// CacheEnabled reports whether a redis address was configured.
func (c Config) CacheEnabled() bool { return c.RedisAddr != "" }

// EventsEnabled reports whether kafka brokers were configured.
func (c Config) EventsEnabled() bool { return len(c.KafkaBrokers) > 0 }
