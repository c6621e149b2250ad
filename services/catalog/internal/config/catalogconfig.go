package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends accepted by STORE_BACKEND.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type TMDBConfig struct {
	APIKey   string
	BaseURL  string
	Language string
	Timeout  time.Duration
}

type BreakerConfig struct {
	// FailureThreshold of 0 disables the breaker.
	FailureThreshold uint32
	Timeout          time.Duration
}

type CatalogConfig struct {
	TMDB    TMDBConfig
	Breaker BreakerConfig

	StoreBackend string
	DatabaseURL  string
	RedisURL     string
	NATSURL      string

	CacheTTL               time.Duration
	CacheInvalidateSubject string

	PlayerBaseURL        string
	RateLimitRPS         float64
	RateLimitBurst       int
	// TrustProxyHeaders makes the rate limiter key on X-Forwarded-For/X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders    bool
	NormalizeConcurrency int
}

func LoadCatalog() (CatalogConfig, error) {
	cfg := CatalogConfig{
		TMDB: TMDBConfig{
			APIKey:   strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
			BaseURL:  strings.TrimSpace(os.Getenv("TMDB_BASE_URL")),
			Language: strings.TrimSpace(os.Getenv("TMDB_LANGUAGE")),
		},
		StoreBackend:           strings.ToLower(strings.TrimSpace(os.Getenv("STORE_BACKEND"))),
		DatabaseURL:            strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:               strings.TrimSpace(os.Getenv("REDIS_URL")),
		NATSURL:                strings.TrimSpace(os.Getenv("NATS_URL")),
		CacheInvalidateSubject: strings.TrimSpace(os.Getenv("CACHE_INVALIDATE_SUBJECT")),
		PlayerBaseURL:          strings.TrimSpace(os.Getenv("PLAYER_BASE_URL")),
	}
	if cfg.TMDB.APIKey == "" {
		return CatalogConfig{}, errors.New("TMDB_API_KEY is required")
	}
	if cfg.TMDB.BaseURL == "" {
		cfg.TMDB.BaseURL = "https://api.themoviedb.org/3"
	}
	if cfg.CacheInvalidateSubject == "" {
		// kept outside catalog.> so invalidations are not persisted by the outbox stream
		cfg.CacheInvalidateSubject = "streambox.cache.invalidate"
	}

	switch cfg.StoreBackend {
	case "":
		cfg.StoreBackend = StoreMemory
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return CatalogConfig{}, errors.New("DATABASE_URL is required for STORE_BACKEND=postgres")
		}
	case StoreRedis:
		if cfg.RedisURL == "" {
			return CatalogConfig{}, errors.New("REDIS_URL is required for STORE_BACKEND=redis")
		}
	default:
		return CatalogConfig{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	var err error
	if cfg.TMDB.Timeout, err = envDuration("TMDB_TIMEOUT", 10*time.Second); err != nil {
		return CatalogConfig{}, err
	}
	if cfg.Breaker.Timeout, err = envDuration("CB_TIMEOUT", 30*time.Second); err != nil {
		return CatalogConfig{}, err
	}
	threshold, err := envInt("CB_FAILURE_THRESHOLD", 0)
	if err != nil {
		return CatalogConfig{}, err
	}
	cfg.Breaker.FailureThreshold = uint32(threshold)

	ttl, err := envInt("CACHE_TTL_SECONDS", 3600)
	if err != nil {
		return CatalogConfig{}, err
	}
	cfg.CacheTTL = time.Duration(ttl) * time.Second

	if cfg.RateLimitBurst, err = envInt("RATE_LIMIT_BURST", 40); err != nil {
		return CatalogConfig{}, err
	}
	if cfg.NormalizeConcurrency, err = envInt("NORMALIZE_CONCURRENCY", 8); err != nil {
		return CatalogConfig{}, err
	}
	if v := strings.TrimSpace(os.Getenv("TRUST_PROXY_HEADERS")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return CatalogConfig{}, fmt.Errorf("invalid TRUST_PROXY_HEADERS %q", v)
		}
		cfg.TrustProxyHeaders = b
	}
	cfg.RateLimitRPS = 20
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return CatalogConfig{}, fmt.Errorf("invalid RATE_LIMIT_RPS %q", v)
		}
		cfg.RateLimitRPS = f
	}
	return cfg, nil
}

func envInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return d, nil
}
