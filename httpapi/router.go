package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	goFedAuth "github.com/MrEthical07/goFedAuth"
	"github.com/MrEthical07/goFedAuth/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine is the subset of *goFedAuth.Engine served over HTTP.
type Engine interface {
	middleware.Validator
	Register(ctx context.Context, req goFedAuth.RegisterRequest) (*goFedAuth.AuthResponse, error)
	Authenticate(ctx context.Context, email, password string) (*goFedAuth.AuthResponse, error)
	LoginWithGoogle(ctx context.Context, idToken string) (*goFedAuth.AuthResponse, error)
	LoginWithFacebook(ctx context.Context, accessToken string) (*goFedAuth.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*goFedAuth.AuthResponse, error)
	Logout(ctx context.Context, refreshToken string) (*goFedAuth.AuthResponse, error)
	Health(ctx context.Context) error
}

// Options configures NewRouter.
type Options struct {
	// Logger receives request failures and recovered panics. Defaults to a
	// no-op logger.
	Logger *zap.Logger
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
	// HealthTimeout bounds the /healthz store ping. Defaults to 2s.
	HealthTimeout time.Duration
	// MaxBodyBytes caps JSON request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
}

const requestIDHeader = "X-Request-ID"

type api struct {
	engine Engine
	logger *zap.Logger
	opts   Options
}

// NewRouter describes the new router operation and its observable behavior.
//
// NewRouter returns a chi router serving engine. Every request gets a request
// id (taken from X-Request-ID or generated) which, together with the client
// address and user agent, is attached to the context for audit events.
func NewRouter(engine Engine, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 2 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	a := &api{engine: engine, logger: opts.Logger, opts: opts}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(requestContext)
	r.Use(a.recoverer)

	r.Get("/healthz", a.health)
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(engine))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", a.register)
			r.Post("/authenticate", a.authenticate)
			r.Post("/google", a.google)
			r.Post("/facebook", a.facebook)
			r.Post("/refresh-token", a.refresh)
			r.Post("/logout", a.logout)
		})

		r.With(middleware.RequireIdentity).Get("/demo-controller", a.demo)
	})

	return r
}

func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := goFedAuth.WithRequestID(r.Context(), id)
		ctx = goFedAuth.WithClientIP(ctx, clientIP(r))
		ctx = goFedAuth.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *api) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			a.logger.Error("panic serving request",
				zap.Any("panic", rec),
				zap.String("path", r.URL.Path),
				zap.String("request_id", goFedAuth.RequestIDFromContext(r.Context())),
				zap.Stack("stack"),
			)
			middleware.WriteError(w, r, http.StatusInternalServerError, internalMessage)
		}()
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr, which RealIP may already have
// replaced with a bare forwarded address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func requestFields(r *http.Request, err error) []zap.Field {
	return []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", goFedAuth.RequestIDFromContext(r.Context())),
		zap.Error(err),
	}
}
