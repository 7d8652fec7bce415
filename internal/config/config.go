package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Argon2    Argon2Config
	WebAuthn  WebAuthnConfig
	Redis     RedisConfig
	SPA       SPAConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
}

type ServerConfig struct {
	Port    string
	DevMode bool
}

type DatabaseConfig struct {
	Path string
}

type JWTConfig struct {
	SecretKey     string
	AccessExpiry  int64 // seconds
	RefreshExpiry int64 // seconds
	// GeneratedSecret is set when no JWT_SECRET_KEY was configured and a
	// random one was minted; tokens will not survive a restart.
	GeneratedSecret bool
}

type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
}

type WebAuthnConfig struct {
	RPID   string
	RPName string
	Origin string
}

type RedisConfig struct {
	// URL enables the Redis challenge store when set, e.g.
	// redis://localhost:6379/0. Empty selects the in-memory store.
	URL string
}

type SPAConfig struct {
	Dir string
}

type RateLimitConfig struct {
	// PerMinute is the per-IP request budget; 0 disables limiting.
	PerMinute int64
}

type AuditConfig struct {
	// WebhookURL mirrors auth audit events to an external endpoint when set.
	WebhookURL string
}

func Load() (*Config, error) {
	viper.AutomaticEnv()
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		viper.SetConfigFile(p)
		_ = viper.ReadInConfig()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "5700"),
			DevMode: viper.GetBool("DEV_MODE"),
		},
		Database: DatabaseConfig{
			Path: getEnvOrDefault("DATABASE_PATH", "farm.db"),
		},
		JWT: JWTConfig{
			SecretKey:     os.Getenv("JWT_SECRET_KEY"),
			AccessExpiry:  viper.GetInt64("JWT_ACCESS_EXPIRY"),
			RefreshExpiry: viper.GetInt64("JWT_REFRESH_EXPIRY"),
		},
		Argon2: Argon2Config{
			Memory:      uint32(viper.GetInt("ARGON2_MEMORY")),
			Iterations:  uint32(viper.GetInt("ARGON2_ITERATIONS")),
			Parallelism: uint8(viper.GetInt("ARGON2_PARALLELISM")),
		},
		WebAuthn: WebAuthnConfig{
			RPID:   getEnvOrDefault("WEBAUTHN_RP_ID", "localhost"),
			RPName: getEnvOrDefault("WEBAUTHN_RP_NAME", "FarmDB"),
			Origin: getEnvOrDefault("WEBAUTHN_ORIGIN", "http://localhost:5700"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		SPA: SPAConfig{
			Dir: getEnvOrDefault("SPA_DIR", "static"),
		},
		RateLimit: RateLimitConfig{
			PerMinute: viper.GetInt64("RATE_LIMIT_PER_IP"),
		},
		Audit: AuditConfig{
			WebhookURL: os.Getenv("AUDIT_WEBHOOK_URL"),
		},
	}

	if cfg.JWT.SecretKey == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.JWT.SecretKey = secret
		cfg.JWT.GeneratedSecret = true
	}
	if cfg.JWT.AccessExpiry <= 0 {
		cfg.JWT.AccessExpiry = 900 // 15 min
	}
	if cfg.JWT.RefreshExpiry <= 0 {
		cfg.JWT.RefreshExpiry = 2592000 // 30 days
	}
	if cfg.Argon2.Memory == 0 {
		cfg.Argon2.Memory = 64 * 1024
	}
	if cfg.Argon2.Iterations == 0 {
		cfg.Argon2.Iterations = 3
	}
	if cfg.Argon2.Parallelism == 0 {
		cfg.Argon2.Parallelism = 2
	}
	return cfg, nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
