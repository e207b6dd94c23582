package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func edConfig(pub ed25519.PublicKey, priv ed25519.PrivateKey) Config {
	return Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "a@x.com",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	token, err := tok.SignedString([]byte("secret-secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.Verify(token, "a@x.com"); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for wrong algorithm, got %v", err)
	}
}

func TestParseIssuerAudienceAndLeeway(t *testing.T) {
	pub, priv := newEdKeys(t)
	cfg := edConfig(pub, priv)
	cfg.Issuer = "gofedauth"
	cfg.Audience = "api"
	cfg.Leeway = 30 * time.Second
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	access, err := m.IssueAccess(Subject{UserID: 1, Email: "a@x.com"})
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	if _, err := m.Verify(access.Token, "a@x.com"); err != nil {
		t.Fatalf("expected valid token to verify: %v", err)
	}

	sign := func(c Claims) string {
		s, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, c).SignedString(priv)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	badIssuer := sign(Claims{Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "a@x.com",
		Issuer:    "other",
		Audience:  gjwt.ClaimStrings{"api"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
	}})
	if _, err := m.Verify(badIssuer, "a@x.com"); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected wrong issuer to fail as signature invalid, got %v", err)
	}

	badAudience := sign(Claims{Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "a@x.com",
		Issuer:    "gofedauth",
		Audience:  gjwt.ClaimStrings{"other-api"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
	}})
	if _, err := m.Verify(badAudience, "a@x.com"); err == nil {
		t.Fatal("expected wrong audience to fail")
	}

	within := sign(Claims{Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "a@x.com",
		Issuer:    "gofedauth",
		Audience:  gjwt.ClaimStrings{"api"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-15 * time.Second)),
		IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	if _, err := m.Verify(within, "a@x.com"); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}

	expired := sign(Claims{Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "a@x.com",
		Issuer:    "gofedauth",
		Audience:  gjwt.ClaimStrings{"api"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-2 * time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-3 * time.Minute)),
	}})
	if _, err := m.Verify(expired, "a@x.com"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected expired token to fail with ErrExpired, got %v", err)
	}
}

func TestParseUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	cfg := edConfig(pub1, priv1)
	cfg.KeyID = "k1"
	cfg.VerifyKeys = map[string][]byte{"k1": pub1}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "a@x.com",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k2"
	token, err := tok.SignedString(priv1)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Parse(token); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected unknown kid failure, got %v", err)
	}

	tok2 := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok2.Header["kid"] = "k1"
	good, _ := tok2.SignedString(priv1)
	if _, err := m.Parse(good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	m2, _ := NewManager(Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodEd25519, PublicKey: pub2, VerifyKeys: map[string][]byte{"k2": pub2}})
	if _, err := m2.Parse(good); err == nil {
		t.Fatal("expected parse failure with mismatched key set")
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cases := map[string]Config{
		"zero ttl":      {SigningMethod: MethodHS256, PrivateKey: make([]byte, 32), RefreshTTL: time.Hour},
		"short refresh": {SigningMethod: MethodHS256, PrivateKey: make([]byte, 32), AccessTTL: time.Hour, RefreshTTL: time.Minute},
		"short secret":  {SigningMethod: MethodHS256, PrivateKey: []byte("short"), AccessTTL: time.Minute, RefreshTTL: time.Hour},
		"big leeway":    {SigningMethod: MethodHS256, PrivateKey: make([]byte, 32), AccessTTL: time.Minute, RefreshTTL: time.Hour, Leeway: time.Hour},
		"no method":     {PrivateKey: make([]byte, 32), AccessTTL: time.Minute, RefreshTTL: time.Hour},
		"ed no pubkey":  {SigningMethod: MethodEd25519, AccessTTL: time.Minute, RefreshTTL: time.Hour},
	}
	for name, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("%s: expected configuration error", name)
		}
	}
}
