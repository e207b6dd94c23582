package goFedAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goFedAuth/cache"
	"github.com/MrEthical07/goFedAuth/federation"
	internalaudit "github.com/MrEthical07/goFedAuth/internal/audit"
	"github.com/MrEthical07/goFedAuth/internal/flows"
	"github.com/MrEthical07/goFedAuth/internal/keylock"
	"github.com/MrEthical07/goFedAuth/internal/rate"
	"github.com/MrEthical07/goFedAuth/jwt"
	"github.com/MrEthical07/goFedAuth/password"
	"github.com/MrEthical07/goFedAuth/refresh"
	"github.com/MrEthical07/goFedAuth/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// dummyPassword is hashed once at Build so unknown-email sign-ins pay for
// one Argon2 verification like known ones do.
const dummyPassword = "goFedAuth-timing-equalizer"

// PasswordHasher hashes and verifies local passwords. *password.Argon2 is
// the default.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// Builder defines a public type used by goFedAuth APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	refreshStore refresh.Store
	users        UserRepository
	hasher       PasswordHasher
	google       Verifier
	facebook     Verifier
	auditSink    AuditSink
	logger       *zap.Logger
	now          func() time.Time

	built bool
}

// New describes the new operation and its observable behavior.
//
// New returns a Builder holding DefaultConfig. Nothing is allocated beyond
// the builder itself until Build.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis stores refresh tokens in Redis unless WithRefreshStore is also
// used. The login throttle always uses this client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRefreshStore sets the refresh token store directly, for example a
// *sqlite.Store.
func (b *Builder) WithRefreshStore(store refresh.Store) *Builder {
	b.refreshStore = store
	return b
}

func (b *Builder) WithUserRepository(users UserRepository) *Builder {
	b.users = users
	return b
}

func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithGoogleVerifier replaces the verifier built from
// Config.Federation.GoogleClientID.
func (b *Builder) WithGoogleVerifier(v Verifier) *Builder {
	b.google = v
	return b
}

// WithFacebookVerifier replaces the verifier built from the Facebook app
// credentials in Config.Federation.
func (b *Builder) WithFacebookVerifier(v Verifier) *Builder {
	b.facebook = v
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the wall clock for token issuance, validation, cache
// expiry and purges.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build validates the configuration, constructs every component and returns
// a ready Engine. A Builder can be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("user repository required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := NewMetrics(cfg.Metrics)

	// -------- REFRESH STORE --------
	store := b.refreshStore
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("refresh store or redis client required")
		}
		store = session.NewRefreshStore(
			b.redis,
			cfg.Storage.RedisPrefix,
			session.WithClock(now),
			session.WithPurgeBatch(cfg.Storage.PurgeBatch),
		)
	}

	// -------- LOGIN THROTTLE --------
	var throttle *rate.Limiter
	if cfg.Throttle.Enabled {
		if b.redis == nil {
			return nil, errors.New("login throttle requires a redis client")
		}
		throttle = rate.New(b.redis, rate.Config{
			Prefix:      cfg.Storage.RedisPrefix,
			MaxAttempts: cfg.Throttle.MaxAttempts,
			Window:      cfg.Throttle.Window,
			PerIP:       cfg.Throttle.PerIP,
		})
	}

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		MaxFutureIAT:  cfg.JWT.MaxFutureIAT,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	// -------- PASSWORDS --------
	hasher := b.hasher
	if hasher == nil {
		ph, err := password.NewArgon2(password.Config{
			Memory:           cfg.Password.Memory,
			Time:             cfg.Password.Time,
			Parallelism:      cfg.Password.Parallelism,
			SaltLength:       cfg.Password.SaltLength,
			KeyLength:        cfg.Password.KeyLength,
			MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
		})
		if err != nil {
			return nil, err
		}
		hasher = ph
	}
	if !cfg.Password.UpgradeOnLogin {
		hasher = fixedHasher{hasher}
	}
	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	// -------- ACCESS CACHE / LOCKS --------
	accessCache := cache.NewAccessTokens(cache.Config{
		Capacity: cfg.AccessCache.Capacity,
		TTL:      cfg.AccessCache.TTL,
		Now:      now,
		OnEvict:  func(string) { metrics.Inc(MetricAccessCacheEviction) },
	})
	locks := keylock.New(cfg.Storage.LockStripes)

	// -------- PROVIDERS --------
	clientCfg := cfg.Federation.clientConfig(func(err error, wait time.Duration) {
		metrics.Inc(MetricProviderRetry)
		logger.Debug("retrying provider call", zap.Duration("wait", wait), zap.Error(err))
	})
	google := b.google
	if google == nil && cfg.Federation.GoogleClientID != "" {
		g, err := federation.NewGoogle(context.Background(), federation.GoogleConfig{
			ClientID:    cfg.Federation.GoogleClientID,
			UserInfoURL: cfg.Federation.GoogleUserInfoURL,
			Client:      clientCfg,
		})
		if err != nil {
			return nil, err
		}
		google = g
	}
	facebook := b.facebook
	if facebook == nil && cfg.Federation.FacebookAppID != "" {
		f, err := federation.NewFacebook(federation.FacebookConfig{
			AppID:     cfg.Federation.FacebookAppID,
			AppSecret: cfg.Federation.FacebookAppSecret,
			GraphURL:  cfg.Federation.FacebookGraphURL,
			Client:    clientCfg,
		})
		if err != nil {
			return nil, err
		}
		facebook = f
	}
	resolver := federation.NewResolver(b.users, cfg.Federation.Roles)

	// -------- FLOWS --------
	warn := flows.Warnf(logger.Warn)
	sessionDeps := flows.SessionDeps{
		Tokens: jm,
		Store:  store,
		Cache:  accessCache,
		Lock:   locks.Lock,
	}

	engine := &Engine{
		config:       cloneConfig(cfg),
		tokens:       jm,
		accessCache:  accessCache,
		refreshStore: store,
		google:       google,
		facebook:     facebook,
		throttle:     throttle,
		metrics:      metrics,
		logger:       logger,
		now:          now,
	}
	engine.flow = flows.New(flows.Deps{
		Register: flows.RegisterDeps{
			Users:            b.users,
			Hasher:           hasher,
			MinPasswordBytes: password.MinPasswordBytes,
			Session:          sessionDeps,
		},
		Authenticate: flows.AuthenticateDeps{
			Users:     b.users,
			Hasher:    hasher,
			DummyHash: dummyHash,
			Session:   sessionDeps,
			Warn:      warn,
		},
		Federated: flows.FederatedDeps{
			Resolver: resolver,
			Session:  sessionDeps,
		},
		Refresh: flows.RefreshDeps{
			Tokens: jm,
			Users:  b.users,
			Store:  store,
			Cache:  accessCache,
			Now:    now,
			Lock:   locks.Lock,
		},
		Logout: flows.LogoutDeps{
			Store: store,
			Cache: accessCache,
			Lock:  locks.Lock,
		},
		Validate: flows.ValidateDeps{
			Tokens:        jm,
			Users:         b.users,
			Cache:         accessCache,
			GateWithCache: cfg.AccessCache.GateValidation,
		},
		Purge: flows.PurgeDeps{
			Store: store,
			Now:   now,
		},
	})
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true

	return engine, nil
}

// fixedHasher hides NeedsUpgrade so stored hashes are never rewritten.
type fixedHasher struct {
	PasswordHasher
}
