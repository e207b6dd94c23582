package goFedAuth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goFedAuth/federation"
	"github.com/MrEthical07/goFedAuth/password"
)

// Config defines a public type used by goFedAuth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT         JWTConfig
	Federation  FederationConfig
	AccessCache AccessCacheConfig
	Password    PasswordConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
	Storage     StorageConfig
	Throttle    ThrottleConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls token signing and validation.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	// PrivateKey is the HMAC secret for hs256 (at least 32 bytes) or the
	// Ed25519 private key (raw or PEM).
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	Audience   string
	Leeway     time.Duration
	// MaxFutureIAT bounds how far in the future an iat claim may be.
	MaxFutureIAT time.Duration
	KeyID        string
	// VerifyKeys lists additional keys by kid, for rotation.
	VerifyKeys map[string][]byte
}

/*
====================================
FEDERATION CONFIG
====================================
*/

// FederationConfig configures the built-in provider verifiers. A provider
// whose credentials are empty is left unconfigured and its login fails with
// ErrProvider.
type FederationConfig struct {
	GoogleClientID    string
	GoogleUserInfoURL string

	FacebookAppID     string
	FacebookAppSecret string
	FacebookGraphURL  string

	// Timeout applies to each provider HTTP attempt.
	Timeout        time.Duration
	MaxRetries     uint
	InitialBackoff time.Duration

	// Roles overrides the default role given to accounts created from a
	// provider profile (Google BRAND, Facebook USER).
	Roles map[Provider]Role
}

/*
====================================
ACCESS CACHE CONFIG
====================================
*/

// AccessCacheConfig sizes the last-issued access token cache.
type AccessCacheConfig struct {
	Capacity int
	TTL      time.Duration
	// GateValidation makes ValidateAccess reject tokens that are not the
	// user's currently cached access token. Off by default: a correctly
	// signed, unexpired token stays valid after logout until it expires.
	GateValidation bool
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig controls Argon2id hashing.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	UpgradeOnLogin   bool
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig controls the Redis refresh store and per-user locking.
type StorageConfig struct {
	RedisPrefix string
	// PurgeBatch bounds how many expired records one Redis purge step removes.
	PurgeBatch int
	// LockStripes is the number of mutexes per-user issuance is spread over.
	LockStripes int
}

/*
====================================
THROTTLE CONFIG
====================================
*/

// ThrottleConfig limits failed password sign-ins. It needs a Redis client.
type ThrottleConfig struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
	PerIP       bool
}

// DefaultConfig returns a configuration with every non-secret field set.
// Signing keys and provider credentials must still be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			MaxFutureIAT:  10 * time.Minute,
		},
		Federation: FederationConfig{
			Timeout:        5 * time.Second,
			MaxRetries:     2,
			InitialBackoff: 100 * time.Millisecond,
		},
		AccessCache: AccessCacheConfig{
			Capacity: 1000,
			TTL:      15 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:           pw.Memory,
			Time:             pw.Time,
			Parallelism:      pw.Parallelism,
			SaltLength:       pw.SaltLength,
			KeyLength:        pw.KeyLength,
			MaxPasswordBytes: password.DefaultMaxPasswordBytes,
			UpgradeOnLogin:   true,
		},
		Audit: AuditConfig{
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Storage: StorageConfig{
			RedisPrefix: "gfa",
			PurgeBatch:  500,
			LockStripes: 256,
		},
		Throttle: ThrottleConfig{
			MaxAttempts: 5,
			Window:      15 * time.Minute,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	if cfg.Federation.Roles != nil {
		out.Federation.Roles = make(map[Provider]Role, len(cfg.Federation.Roles))
		for p, r := range cfg.Federation.Roles {
			out.Federation.Roles[p] = r
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate returns the first configuration problem found, or nil.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.MaxFutureIAT < 0 || c.JWT.MaxFutureIAT > 24*time.Hour {
		return errors.New("JWT MaxFutureIAT must be between 0 and 24h")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}

	// Federation
	if c.Federation.Timeout <= 0 {
		return errors.New("Federation Timeout must be > 0")
	}
	if c.Federation.MaxRetries > 10 {
		return errors.New("Federation MaxRetries must be <= 10")
	}
	if (c.Federation.FacebookAppID == "") != (c.Federation.FacebookAppSecret == "") {
		return errors.New("Federation FacebookAppID and FacebookAppSecret must be set together")
	}
	for p, r := range c.Federation.Roles {
		if p != ProviderGoogle && p != ProviderFacebook {
			return fmt.Errorf("Federation Roles has unsupported provider %q", p)
		}
		if !r.Valid() {
			return fmt.Errorf("Federation Roles has invalid role %q", r)
		}
	}

	// Access cache
	if c.AccessCache.Capacity <= 0 {
		return errors.New("AccessCache Capacity must be > 0")
	}
	if c.AccessCache.TTL <= 0 {
		return errors.New("AccessCache TTL must be > 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxPasswordBytes != 0 && c.Password.MaxPasswordBytes < password.MinPasswordBytes {
		return fmt.Errorf("Password MaxPasswordBytes must be >= %d", password.MinPasswordBytes)
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Storage
	if strings.TrimSpace(c.Storage.RedisPrefix) == "" {
		return errors.New("Storage RedisPrefix must not be empty")
	}
	if c.Storage.PurgeBatch <= 0 {
		return errors.New("Storage PurgeBatch must be > 0")
	}
	if c.Storage.LockStripes <= 0 {
		return errors.New("Storage LockStripes must be > 0")
	}

	// Throttle
	if c.Throttle.Enabled {
		if c.Throttle.MaxAttempts <= 0 {
			return errors.New("Throttle MaxAttempts must be > 0")
		}
		if c.Throttle.Window <= 0 {
			return errors.New("Throttle Window must be > 0")
		}
	}

	return nil
}

func (c FederationConfig) clientConfig(onRetry func(error, time.Duration)) federation.ClientConfig {
	return federation.ClientConfig{
		Timeout:        c.Timeout,
		MaxRetries:     c.MaxRetries,
		InitialBackoff: c.InitialBackoff,
		OnRetry:        onRetry,
	}
}
