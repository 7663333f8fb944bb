package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Presence PresenceConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig is optional; an empty Addr disables the cross-instance
// presence relay and the service runs single-node.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

// PresenceConfig holds every presence timing in one place. The source of
// these values: heartbeats every 20s, a row counts as online while its
// last_seen is younger than 45s, widgets poll every 15s.
type PresenceConfig struct {
	HeartbeatInterval time.Duration
	StaleThreshold    time.Duration
	PollInterval      time.Duration
	Retention         time.Duration
	FallbackWhatsapp  string
	FallbackEmail     string
}

// Validate enforces the flap-tolerance constraint: the threshold must
// survive one missed heartbeat.
func (p *PresenceConfig) Validate() error {
	if p.StaleThreshold <= 2*p.HeartbeatInterval {
		return fmt.Errorf("presence: stale threshold %s must exceed twice the heartbeat interval %s",
			p.StaleThreshold, p.HeartbeatInterval)
	}
	return nil
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Env:          getEnv("APP_ENV", "development"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DATABASE_DSN", "inmo:inmo@tcp(localhost:3306)/inmo?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			AccessSecret:  getEnv("JWT_ACCESS_SECRET", "change-me-in-production"),
			RefreshSecret: getEnv("JWT_REFRESH_SECRET", "change-me-refresh"),
			AccessExpiry:  15 * time.Minute,
			RefreshExpiry: 168 * time.Hour,
			Issuer:        "inmopresence",
		},
		Presence: PresenceConfig{
			HeartbeatInterval: getEnvDuration("PRESENCE_HEARTBEAT_INTERVAL", 20*time.Second),
			StaleThreshold:    getEnvDuration("PRESENCE_STALE_THRESHOLD", 45*time.Second),
			PollInterval:      getEnvDuration("PRESENCE_POLL_INTERVAL", 15*time.Second),
			Retention:         getEnvDuration("PRESENCE_RETENTION", 24*time.Hour),
			FallbackWhatsapp:  getEnv("OFFLINE_WHATSAPP", ""),
			FallbackEmail:     getEnv("OFFLINE_EMAIL", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
