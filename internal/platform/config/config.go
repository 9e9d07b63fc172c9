package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend selects the persistence implementation for template and visit stores.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendPostgres Backend = "postgres"
	BackendMongo    Backend = "mongo"
)

// Config captures process-level configuration. FromEnv keeps main lean.
type Config struct {
	Addr    string
	Backend Backend

	PostgresDSN   string
	MongoURI      string
	MongoDatabase string

	RedisURL         string
	ResolverCacheTTL time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	JWTSigningKey string
	JWTIssuer     string
}

// FromEnv builds a Config from environment variables with development defaults.
func FromEnv() Config {
	cfg := Config{
		Addr:             envOr("PATROL_ADDR", ":8080"),
		Backend:          Backend(envOr("PATROL_BACKEND", string(BackendMemory))),
		PostgresDSN:      os.Getenv("PATROL_POSTGRES_DSN"),
		MongoURI:         os.Getenv("PATROL_MONGO_URI"),
		MongoDatabase:    envOr("PATROL_MONGO_DATABASE", "patrol"),
		RedisURL:         os.Getenv("PATROL_REDIS_URL"),
		ResolverCacheTTL: envDuration("PATROL_RESOLVER_CACHE_TTL", 5*time.Minute),
		KafkaTopic:       envOr("PATROL_KAFKA_TOPIC", "patrol.audit"),
		JWTSigningKey:    os.Getenv("PATROL_JWT_SIGNING_KEY"),
		JWTIssuer:        envOr("PATROL_JWT_ISSUER", "patrol"),
	}
	if brokers := os.Getenv("PATROL_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
