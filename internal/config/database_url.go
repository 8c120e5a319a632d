package config

import (
	"net"
	"net/url"
	"os"
	"strings"
)

// resolveDatabaseURL finds a postgres DSN. A full URL wins, then a URL read
// from a file, then one assembled from PG* style parts. It returns "" when
// neither a host nor a user is known.
func resolveDatabaseURL() string {
	for _, key := range []string{"DATABASE_URL", "POSTGRES_URL", "PGURL"} {
		if dsn := coerceDatabaseURL(os.Getenv(key)); dsn != "" {
			return dsn
		}
	}
	for _, key := range []string{"DATABASE_URL_FILE", "PGURL_FILE"} {
		if dsn := coerceDatabaseURL(readEnvFile(key)); dsn != "" {
			return dsn
		}
	}

	host := firstEnv("PGHOST", "POSTGRES_HOST", "DATABASE_HOST")
	user := firstEnv("PGUSER", "POSTGRES_USER", "DATABASE_USERNAME", "DATABASE_USER")
	if host == "" || user == "" {
		return ""
	}
	port := firstEnv("PGPORT", "POSTGRES_PORT", "DATABASE_PORT")
	if port == "" {
		port = "5432"
	}
	database := firstEnv("PGDATABASE", "POSTGRES_DB", "POSTGRES_DATABASE", "DATABASE_NAME")
	if database == "" {
		database = user
	}

	dsn := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + database,
		User:   url.User(user),
	}
	if password := firstEnv("PGPASSWORD", "POSTGRES_PASSWORD", "DATABASE_PASSWORD"); password != "" {
		dsn.User = url.UserPassword(user, password)
	}
	sslMode := firstEnv("PGSSLMODE", "PGSSL_MODE", "PGSSL", "POSTGRES_SSL_MODE")
	if sslMode == "" {
		sslMode = "require"
	}
	dsn.RawQuery = url.Values{"sslmode": {sslMode}}.Encode()
	return dsn.String()
}

// coerceDatabaseURL accepts postgres:// and postgresql:// URLs and normalises
// the scheme. Anything else yields "".
func coerceDatabaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(raw, "postgresql://"); ok {
		return "postgres://" + rest
	}
	if strings.HasPrefix(raw, "postgres://") {
		return raw
	}
	return ""
}

func readEnvFile(key string) string {
	path := os.Getenv(key)
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
