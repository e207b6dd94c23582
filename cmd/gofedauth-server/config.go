package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	goFedAuth "github.com/MrEthical07/goFedAuth"
	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type serverConfig struct {
	ListenAddr      string        `env:"LISTEN_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	JWTSecret     string        `env:"JWT_SECRET"`
	JWTSecretB64  bool          `env:"JWT_SECRET_BASE64" envDefault:"false"`
	JWTIssuer     string        `env:"JWT_ISSUER"`
	JWTAudience   string        `env:"JWT_AUDIENCE"`
	JWTKeyID      string        `env:"JWT_KEY_ID"`
	AccessTTL     time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
	JWTLeeway     time.Duration `env:"JWT_LEEWAY" envDefault:"0s"`
	CacheGate     bool          `env:"CACHE_GATE" envDefault:"false"`
	CacheCapacity int           `env:"CACHE_CAPACITY" envDefault:"1000"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"15m"`

	GoogleClientID    string        `env:"GOOGLE_CLIENT_ID"`
	FacebookAppID     string        `env:"FACEBOOK_APP_ID"`
	FacebookAppSecret string        `env:"FACEBOOK_APP_SECRET"`
	ProviderTimeout   time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"5s"`
	ProviderRetries   uint          `env:"PROVIDER_RETRIES" envDefault:"2"`

	SQLitePath  string `env:"SQLITE_PATH" envDefault:"gofedauth.db"`
	RedisAddr   string `env:"REDIS_ADDR"`
	RedisPrefix string `env:"REDIS_PREFIX" envDefault:"gfa"`

	SweepHour    int  `env:"SWEEP_HOUR" envDefault:"2"`
	SweepOnStart bool `env:"SWEEP_ON_START" envDefault:"false"`

	LoginThrottle      bool          `env:"LOGIN_THROTTLE" envDefault:"false"`
	LoginMaxAttempts   int           `env:"LOGIN_MAX_ATTEMPTS" envDefault:"5"`
	LoginWindow        time.Duration `env:"LOGIN_WINDOW" envDefault:"15m"`
	LoginThrottlePerIP bool          `env:"LOGIN_THROTTLE_PER_IP" envDefault:"false"`

	AuditLog bool `env:"AUDIT_LOG" envDefault:"true"`

	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogDevelopment bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
}

func loadConfig() (serverConfig, error) {
	var cfg serverConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return cfg, errors.New("JWT_SECRET is required")
	}
	if cfg.LoginThrottle && cfg.RedisAddr == "" {
		return cfg, errors.New("LOGIN_THROTTLE requires REDIS_ADDR")
	}
	if cfg.SweepHour < 0 || cfg.SweepHour > 23 {
		return cfg, fmt.Errorf("SWEEP_HOUR %d out of range 0-23", cfg.SweepHour)
	}
	return cfg, nil
}

func (c serverConfig) signingKey() ([]byte, error) {
	if !c.JWTSecretB64 {
		return []byte(c.JWTSecret), nil
	}
	key, err := base64.StdEncoding.DecodeString(c.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("decode JWT_SECRET: %w", err)
	}
	return key, nil
}

// engineConfig maps the environment onto the engine configuration.
func (c serverConfig) engineConfig() (goFedAuth.Config, error) {
	key, err := c.signingKey()
	if err != nil {
		return goFedAuth.Config{}, err
	}

	cfg := goFedAuth.DefaultConfig()
	cfg.JWT.PrivateKey = key
	cfg.JWT.Issuer = c.JWTIssuer
	cfg.JWT.Audience = c.JWTAudience
	cfg.JWT.KeyID = c.JWTKeyID
	cfg.JWT.AccessTTL = c.AccessTTL
	cfg.JWT.RefreshTTL = c.RefreshTTL
	cfg.JWT.Leeway = c.JWTLeeway

	cfg.AccessCache.GateValidation = c.CacheGate
	cfg.AccessCache.Capacity = c.CacheCapacity
	cfg.AccessCache.TTL = c.CacheTTL

	cfg.Federation.GoogleClientID = c.GoogleClientID
	cfg.Federation.FacebookAppID = c.FacebookAppID
	cfg.Federation.FacebookAppSecret = c.FacebookAppSecret
	cfg.Federation.Timeout = c.ProviderTimeout
	cfg.Federation.MaxRetries = c.ProviderRetries

	cfg.Storage.RedisPrefix = c.RedisPrefix
	cfg.Throttle = goFedAuth.ThrottleConfig{
		Enabled:     c.LoginThrottle,
		MaxAttempts: c.LoginMaxAttempts,
		Window:      c.LoginWindow,
		PerIP:       c.LoginThrottlePerIP,
	}
	cfg.Audit.Enabled = c.AuditLog

	if err := cfg.Validate(); err != nil {
		return goFedAuth.Config{}, err
	}
	return cfg, nil
}

func (c serverConfig) logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	zc := zap.NewProductionConfig()
	if c.LogDevelopment {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
