package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HTTP_PORT", "PORT", "STORAGE_DRIVER", "DATABASE_URL", "POSTGRES_URL", "PGURL",
		"DATABASE_URL_FILE", "PGURL_FILE", "PGHOST", "POSTGRES_HOST", "DATABASE_HOST",
		"PGUSER", "POSTGRES_USER", "DATABASE_USERNAME", "DATABASE_USER",
		"PGPASSWORD", "POSTGRES_PASSWORD", "DATABASE_PASSWORD",
		"PGDATABASE", "POSTGRES_DB", "POSTGRES_DATABASE", "DATABASE_NAME",
		"PGPORT", "POSTGRES_PORT", "DATABASE_PORT",
		"PGSSLMODE", "PGSSL_MODE", "PGSSL", "POSTGRES_SSL_MODE",
		"CATALOG_SEED_FIXTURES", "JWT_SECRET", "KAFKA_BROKERS", "REDIS_ADDR",
		"CATALOG_CACHE_TTL", "CORS_ALLOWED_ORIGINS",
		"BOOTSTRAP_OPERATOR_EMAIL", "BOOTSTRAP_OPERATOR_PASSWORD",
		"TRUSTED_PROXIES", "AUTH_RATE_LIMIT_IDLE_TTL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_MemoryDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected config to load, got %v", err)
	}
	if cfg.HTTPPort != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.HTTPPort)
	}
	if !cfg.SeedFixtures {
		t.Errorf("Expected fixtures to be seeded by default for the memory driver")
	}
	if cfg.CacheEnabled() || cfg.EventsEnabled() {
		t.Errorf("Expected cache and events disabled without addresses")
	}
	if cfg.CatalogTTL != 30*time.Second || cfg.KafkaOrderTopic != "order_events" {
		t.Errorf("Unexpected defaults: ttl=%s topic=%s", cfg.CatalogTTL, cfg.KafkaOrderTopic)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"*"}) {
		t.Errorf("Expected wildcard origin, got %v", cfg.AllowedOrigins)
	}
	if len(cfg.TrustedProxies) != 0 {
		t.Errorf("Expected no trusted proxies by default, got %v", cfg.TrustedProxies)
	}
	if cfg.AuthRateIdleTTL != 15*time.Minute {
		t.Errorf("Expected 15m limiter idle ttl, got %s", cfg.AuthRateIdleTTL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "9000")
	t.Setenv("CATALOG_SEED_FIXTURES", "false")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CATALOG_CACHE_TTL", "1m")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.7,::1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected config to load, got %v", err)
	}
	if cfg.HTTPPort != "9000" {
		t.Errorf("Expected PORT fallback, got %s", cfg.HTTPPort)
	}
	if cfg.SeedFixtures {
		t.Errorf("Expected seeding disabled")
	}
	if !reflect.DeepEqual(cfg.KafkaBrokers, []string{"k1:9092", "k2:9092"}) {
		t.Errorf("Unexpected brokers %v", cfg.KafkaBrokers)
	}
	if !cfg.CacheEnabled() || cfg.CatalogTTL != time.Minute {
		t.Errorf("Expected cache enabled with 1m ttl, got %v %s", cfg.CacheEnabled(), cfg.CatalogTTL)
	}
	wantProxies := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.168.1.7/32"),
		netip.MustParsePrefix("::1/128"),
	}
	if !reflect.DeepEqual(cfg.TrustedProxies, wantProxies) {
		t.Errorf("Expected proxies %v, got %v", wantProxies, cfg.TrustedProxies)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"postgres without url", map[string]string{"JWT_SECRET": "s"}, "database configuration missing"},
		{"unknown driver", map[string]string{"JWT_SECRET": "s", "STORAGE_DRIVER": "mongo"}, "not supported"},
		{"missing secret", map[string]string{"STORAGE_DRIVER": "memory"}, "JWT_SECRET"},
		{"bad proxy", map[string]string{"STORAGE_DRIVER": "memory", "JWT_SECRET": "s", "TRUSTED_PROXIES": "10.0.0.0/33"}, "TRUSTED_PROXIES"},
		{"half operator", map[string]string{"STORAGE_DRIVER": "memory", "JWT_SECRET": "s", "BOOTSTRAP_OPERATOR_EMAIL": "a@b.c"}, "must be set together"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestResolveDatabaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgresql://u:p@db:5432/shop")
	if got := resolveDatabaseURL(); got != "postgres://u:p@db:5432/shop" {
		t.Errorf("Expected normalised scheme, got %s", got)
	}

	clearEnv(t)
	t.Setenv("PGHOST", "db")
	t.Setenv("PGUSER", "shop")
	t.Setenv("PGSSLMODE", "disable")
	if got := resolveDatabaseURL(); got != "postgres://shop@db:5432/shop?sslmode=disable" {
		t.Errorf("Unexpected url from PG* vars: %s", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nexport DOTENV_A=\"quoted\"\nDOTENV_B='single'\n\nDOTENV_C=plain\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOTENV_A", "")
	t.Setenv("DOTENV_B", "")
	t.Setenv("DOTENV_C", "")

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("Expected .env to load, got %v", err)
	}
	for key, want := range map[string]string{"DOTENV_A": "quoted", "DOTENV_B": "single", "DOTENV_C": "plain"} {
		if got := os.Getenv(key); got != want {
			t.Errorf("%s: expected %q, got %q", key, want, got)
		}
	}

	bad := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(bad, []byte("NOEQUALS\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := loadDotEnv(bad); err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Errorf("Expected line error, got %v", err)
	}
	if err := loadDotEnv(filepath.Join(t.TempDir(), "missing")); err != nil {
		t.Errorf("Expected missing file to be ignored, got %v", err)
	}
}
