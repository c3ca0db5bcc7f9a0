package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	ListenAddr string
	LogLevel   string
	LogFormat  string

	APIURL     string
	APIPrefix  string
	APITimeout time.Duration
	// ProxyAPI forwards APIPrefix/* to the pharmacy API.
	ProxyAPI bool

	StoreDriver   string
	DatabaseURL   string
	PGDriver      string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	StorageSecret string

	CookieSecure      bool
	SessionRevalidate time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	// Service account used by the reindex command to read the catalog.
	ServiceUser     string
	ServicePassword string
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	cfg := &Config{
		ListenAddr: getenv("PORTAL_ADDR", ":3000"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogFormat:  getenv("LOG_FORMAT", "json"),

		APIURL:     getenv("API_URL", "http://localhost:8000"),
		APIPrefix:  getenv("API_PREFIX", "/api"),
		APITimeout: durationDefault("API_TIMEOUT", 10*time.Second),
		ProxyAPI:   boolDefault("API_PROXY", false),

		StoreDriver:   strings.ToLower(getenv("STORE_DRIVER", StoreSQLite)),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		PGDriver:      getenv("PG_DRIVER", "pgx"),
		SQLitePath:    getenv("SQLITE_PATH", "portal.db"),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		StorageSecret: os.Getenv("STORAGE_SECRET"),

		CookieSecure:      boolDefault("COOKIE_SECURE", false),
		SessionRevalidate: durationDefault("SESSION_REVALIDATE", 5*time.Minute),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getenv("KAFKA_TOPIC", "portal_events"),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    getenv("ES_INDEX", "medicines"),

		ServiceUser:     os.Getenv("SERVICE_USERNAME"),
		ServicePassword: os.Getenv("SERVICE_PASSWORD"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite, StoreRedis:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("missing required env DATABASE_URL for store driver %q", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.PGDriver != "pgx" && c.PGDriver != "postgres" {
		return fmt.Errorf("unknown PG_DRIVER %q", c.PGDriver)
	}
	if c.StorageSecret != "" && len(c.StorageSecret) < 32 {
		return fmt.Errorf("STORAGE_SECRET must be at least 32 bytes")
	}
	if c.APIURL == "" {
		return fmt.Errorf("missing required env API_URL")
	}
	return nil
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func boolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func durationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
