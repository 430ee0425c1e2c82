package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything main needs to wire the service.
type Config struct {
	Addr          string
	DatabaseURL   string
	Redis         RedisConfig
	JWTSigningKey string

	// BlobKeyHex is the hex-encoded 32-byte AES key for selfie encryption
	// at rest. Mandatory when a real blob backend is configured.
	BlobKeyHex string

	// SweepInterval is how often the retention sweeper scans for expired
	// verification sessions. A deployment parameter, not a correctness one.
	SweepInterval time.Duration

	// SessionTTL is how long a verification session may stay open before
	// the sweeper destroys its selfies.
	SessionTTL time.Duration

	AdminToken string
}

// RedisConfig configures the optional Redis blob backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:          envOr("TWINSALE_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		BlobKeyHex:    os.Getenv("BLOB_ENCRYPTION_KEY"),
		SweepInterval: envDuration("SWEEP_INTERVAL", time.Hour),
		SessionTTL:    envDuration("VERIFICATION_SESSION_TTL", 24*time.Hour),
		AdminToken:    os.Getenv("ADMIN_TOKEN"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
