package federation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goFedAuth/user"
	"google.golang.org/api/idtoken"
)

type fakeValidator struct {
	payload  *idtoken.Payload
	err      error
	audience string
}

func (f *fakeValidator) Validate(_ context.Context, _ string, audience string) (*idtoken.Payload, error) {
	f.audience = audience
	return f.payload, f.err
}

func testClientConfig() ClientConfig {
	return ClientConfig{Timeout: 2 * time.Second, InitialBackoff: time.Millisecond}
}

func newTestGoogle(t *testing.T, v IDTokenValidator, userInfoURL string) *Google {
	t.Helper()
	g, err := NewGoogle(context.Background(), GoogleConfig{
		ClientID:    "client-123",
		UserInfoURL: userInfoURL,
		Validator:   v,
		Client:      testClientConfig(),
	})
	if err != nil {
		t.Fatalf("NewGoogle: %v", err)
	}
	return g
}

func TestGoogleVerifyIDToken(t *testing.T) {
	v := &fakeValidator{payload: &idtoken.Payload{
		Subject: "g-1",
		Claims: map[string]any{
			"email":          "ada@x.com",
			"given_name":     "Ada",
			"family_name":    "Lovelace",
			"picture":        "https://pic",
			"email_verified": true,
		},
	}}
	g := newTestGoogle(t, v, "http://127.0.0.1:1/unused")

	p, err := g.Verify(context.Background(), "id-token")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if v.audience != "client-123" {
		t.Fatalf("expected client id as audience, got %q", v.audience)
	}
	want := Profile{Provider: user.ProviderGoogle, ExternalID: "g-1", Email: "ada@x.com", FirstName: "Ada", LastName: "Lovelace", PictureURL: "https://pic", EmailVerified: true}
	if *p != want {
		t.Fatalf("unexpected profile %+v", *p)
	}
}

func TestGoogleFallsBackToUserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer opaque-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"g-2","email":"b@x.com","email_verified":"true","given_name":"Bo","family_name":"Ek"}`))
	}))
	defer srv.Close()

	g := newTestGoogle(t, &fakeValidator{err: errors.New("idtoken: invalid token")}, srv.URL)
	p, err := g.Verify(context.Background(), "opaque-token")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.ExternalID != "g-2" || p.Email != "b@x.com" || !p.EmailVerified || p.FirstName != "Bo" {
		t.Fatalf("unexpected fallback profile %+v", p)
	}
}

func TestGoogleBothFailCombinesMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	g := newTestGoogle(t, &fakeValidator{err: errors.New("bad signature")}, srv.URL)
	_, err := g.Verify(context.Background(), "secret-id-token")
	if !errors.Is(err, ErrProvider) || !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected provider invalid-token error, got %v", err)
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "failed to validate Google token: bad signature | fallback failed: ") {
		t.Fatalf("unexpected message %q", msg)
	}
	if strings.Contains(msg, "secret-id-token") {
		t.Fatalf("message leaks token: %q", msg)
	}
}

func TestGoogleEmptyToken(t *testing.T) {
	g := newTestGoogle(t, &fakeValidator{}, "http://127.0.0.1:1")
	if _, err := g.Verify(context.Background(), " "); !errors.Is(err, ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestNewGoogleRequiresClientID(t *testing.T) {
	_, err := NewGoogle(context.Background(), GoogleConfig{Validator: &fakeValidator{}})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
