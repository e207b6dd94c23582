package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod defines a public type used by goFedAuth APIs.
//
// SigningMethod instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SigningMethod string

const (
	// MethodEd25519 is an exported constant or variable used by the authentication engine.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 is an exported constant or variable used by the authentication engine.
	MethodHS256 SigningMethod = "hs256"
)

// TokenType distinguishes access tokens from refresh tokens sharing one encoding.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

var (
	// ErrMalformed reports input that is not a structurally valid token.
	ErrMalformed = errors.New("token malformed")
	// ErrSignatureInvalid reports a token this service did not sign or does not accept.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrExpired reports a correctly signed token past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrSubjectMismatch reports a valid token issued for a different subject.
	ErrSubjectMismatch = errors.New("token subject mismatch")
)

// Config defines a public type used by goFedAuth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
	// Now overrides the wall clock for issuance and validation.
	Now func() time.Time
}

// Manager signs and verifies access and refresh tokens.
type Manager struct {
	config Config
}

// Claims is the payload carried by both token kinds. Subject holds the email.
type Claims struct {
	UserID int64     `json:"uid,omitempty"`
	Type   TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// Subject identifies the user a token is minted for.
type Subject struct {
	UserID int64
	Email  string
}

// Issued is a signed token and its embedded expiry.
type Issued struct {
	Token     string
	ExpiresAt time.Time
}

// NewManager describes the newmanager operation and its observable behavior.
//
// NewManager may return an error when input validation, dependency calls, or security checks fail.
// NewManager does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must not be shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("hs256 requires a secret of at least 32 bytes")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return &Manager{config: cfg}, nil
}

// IssueAccess mints a short-lived access token for s.
func (j *Manager) IssueAccess(s Subject) (Issued, error) {
	return j.issue(s, TypeAccess, j.config.AccessTTL)
}

// IssueRefresh mints a long-lived refresh token for s.
func (j *Manager) IssueRefresh(s Subject) (Issued, error) {
	return j.issue(s, TypeRefresh, j.config.RefreshTTL)
}

func (j *Manager) issue(s Subject, typ TokenType, ttl time.Duration) (Issued, error) {
	now := j.config.Now()
	claims := Claims{
		UserID: s.UserID,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.Email,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    j.config.Issuer,
		},
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	token := jwt.NewWithClaims(j.getMethod(), claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}

	signKey, err := j.getSignKey()
	if err != nil {
		return Issued{}, err
	}
	signed, err := token.SignedString(signKey)
	if err != nil {
		return Issued{}, err
	}

	return Issued{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// ExtractSubject verifies the signature of tokenStr without checking its
// temporal claims, so callers can learn whose token it is even after expiry.
// It fails with ErrMalformed or ErrSignatureInvalid.
func (j *Manager) ExtractSubject(tokenStr string) (*Claims, error) {
	return j.parse(tokenStr, false)
}

// Verify describes the verify operation and its observable behavior.
//
// Verify returns nil only when the signature is valid, the subject equals
// email and the token has not expired. Otherwise it returns exactly one of
// ErrMalformed, ErrSignatureInvalid, ErrExpired or ErrSubjectMismatch.
func (j *Manager) Verify(tokenStr, email string) (*Claims, error) {
	claims, err := j.parse(tokenStr, true)
	if err != nil {
		return nil, err
	}
	if claims.Subject != email {
		return nil, ErrSubjectMismatch
	}
	return claims, nil
}

// Parse validates signature and temporal claims and returns the claims
// regardless of subject.
func (j *Manager) Parse(tokenStr string) (*Claims, error) {
	return j.parse(tokenStr, true)
}

// IsValid reports whether tokenStr is a live token for email. Expired,
// mismatched and badly signed tokens yield false with a nil error; only
// structurally malformed input returns an error.
func (j *Manager) IsValid(tokenStr, email string) (bool, error) {
	_, err := j.Verify(tokenStr, email)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrMalformed):
		return false, err
	default:
		return false, nil
	}
}

func (j *Manager) parse(tokenStr string, validateClaims bool) (*Claims, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return nil, ErrMalformed
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.getMethod().Alg()}),
		jwt.WithTimeFunc(j.config.Now),
	}
	if validateClaims {
		if j.config.Leeway > 0 {
			options = append(options, jwt.WithLeeway(j.config.Leeway))
		}
		if j.config.Issuer != "" {
			options = append(options, jwt.WithIssuer(j.config.Issuer))
		}
		if j.config.Audience != "" {
			options = append(options, jwt.WithAudience(j.config.Audience))
		}
	} else {
		options = append(options, jwt.WithoutClaimsValidation())
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, j.keyFunc)
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrSignatureInvalid
	}
	if validateClaims && claims.IssuedAt != nil && j.config.MaxFutureIAT > 0 {
		maxAllowed := j.config.Now().Add(j.config.MaxFutureIAT)
		if claims.IssuedAt.Time.After(maxAllowed) {
			return nil, fmt.Errorf("%w: iat too far in the future", ErrSignatureInvalid)
		}
	}

	return claims, nil
}

func (j *Manager) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != j.getMethod().Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(j.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := j.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return j.keyBytesToVerifyKey(key)
	}

	if j.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if kid != j.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	return j.getVerifyKey()
}

// classify folds golang-jwt errors into the four failure kinds. Issuer,
// audience and not-before failures count as signature failures: the token was
// not minted for this service.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
}

func (j *Manager) getMethod() jwt.SigningMethod {
	switch j.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (j *Manager) getSignKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return j.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(j.config.PrivateKey)
	}
}

func (j *Manager) getVerifyKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return j.config.PrivateKey, nil
	default:
		return parseEdPublicKey(j.config.PublicKey)
	}
}

func (j *Manager) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
