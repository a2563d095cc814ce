package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrSpotifySecretMissing = errors.New("SPOTIFY_CLIENT_ID is set but SPOTIFY_CLIENT_SECRET is not")
	ErrInvalidCacheLimit    = errors.New("invalid CACHE_LIMIT_MB")
	ErrInvalidLookupTTL     = errors.New("invalid LOOKUP_CACHE_TTL")
)

// Config is the process configuration, read from the environment with an
// optional .env file.
type Config struct {
	SpotifyClientID     string
	SpotifyClientSecret string
	CacheDir            string
	CacheLimitBytes     int64
	LookupTTL           time.Duration
	DefaultPlaylist     string
}

// SpotifyEnabled reports whether cross-provider links can be resolved.
func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}

func LoadConfig() (*Config, error) {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := &Config{
		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		CacheDir:            os.Getenv("CACHE_DIR"),
		DefaultPlaylist:     os.Getenv("DEFAULT_PLAYLIST"),
		CacheLimitBytes:     512 << 20,
		LookupTTL:           10 * time.Minute,
	}

	if cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret == "" {
		return nil, ErrSpotifySecretMissing
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = ".streamcache"
	}

	if v := os.Getenv("CACHE_LIMIT_MB"); v != "" {
		mb, err := strconv.ParseInt(v, 10, 64)
		if err != nil || mb <= 0 {
			return nil, ErrInvalidCacheLimit
		}
		cfg.CacheLimitBytes = mb << 20
	}
	if v := os.Getenv("LOOKUP_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl <= 0 {
			return nil, ErrInvalidLookupTTL
		}
		cfg.LookupTTL = ttl
	}

	return cfg, nil
}
