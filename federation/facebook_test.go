package federation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goFedAuth/user"
)

const (
	fbAppID     = "app-1"
	fbAppSecret = "s3cr3t-app"
	fbUserToken = "EAAB-user-token"
)

func graphServer(t *testing.T, debugBody, meBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/debug_token":
			if q.Get("access_token") != fbAppID+"|"+fbAppSecret || q.Get("input_token") != fbUserToken {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(debugBody))
		case "/me":
			if q.Get("access_token") != fbUserToken || q.Get("fields") != facebookProfileFields {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(meBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestFacebook(t *testing.T, graphURL string, cfg ClientConfig) *Facebook {
	t.Helper()
	fb, err := NewFacebook(FacebookConfig{AppID: fbAppID, AppSecret: fbAppSecret, GraphURL: graphURL, Client: cfg})
	if err != nil {
		t.Fatalf("NewFacebook: %v", err)
	}
	return fb
}

func TestFacebookVerify(t *testing.T) {
	srv := graphServer(t,
		`{"data":{"is_valid":true,"app_id":"app-1"}}`,
		`{"id":"fb-9","email":"c@x.com","first_name":"Cy","last_name":"Do","picture":{"data":{"url":"https://fb/pic"}}}`,
	)
	defer srv.Close()

	p, err := newTestFacebook(t, srv.URL, testClientConfig()).Verify(context.Background(), fbUserToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	want := Profile{Provider: user.ProviderFacebook, ExternalID: "fb-9", Email: "c@x.com", FirstName: "Cy", LastName: "Do", PictureURL: "https://fb/pic", EmailVerified: true}
	if *p != want {
		t.Fatalf("unexpected profile %+v", *p)
	}
}

func TestFacebookWithoutEmailIsUnverified(t *testing.T) {
	srv := graphServer(t, `{"data":{"is_valid":true}}`, `{"id":"fb-10","name":"Solo Name"}`)
	defer srv.Close()

	p, err := newTestFacebook(t, srv.URL, testClientConfig()).Verify(context.Background(), fbUserToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.Email != "" || p.EmailVerified || p.FirstName != "Solo" || p.LastName != "Name" {
		t.Fatalf("unexpected profile %+v", p)
	}
}

func TestFacebookRejectsInvalidAndForeignTokens(t *testing.T) {
	cases := map[string]string{
		"invalid":     `{"data":{"is_valid":false}}`,
		"foreign app": `{"data":{"is_valid":true,"app_id":"other"}}`,
		"no data":     `{}`,
	}
	for name, debug := range cases {
		t.Run(name, func(t *testing.T) {
			srv := graphServer(t, debug, `{"id":"x"}`)
			defer srv.Close()
			_, err := newTestFacebook(t, srv.URL, testClientConfig()).Verify(context.Background(), fbUserToken)
			if !errors.Is(err, ErrProvider) || !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected invalid token provider error, got %v", err)
			}
		})
	}
}

func TestFacebookErrorsNeverLeakSecrets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	_, err := newTestFacebook(t, srv.URL, testClientConfig()).Verify(context.Background(), fbUserToken)
	if !errors.Is(err, ErrProvider) || !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable provider error, got %v", err)
	}
	msg := err.Error()
	for _, secret := range []string{fbAppSecret, fbUserToken} {
		if strings.Contains(msg, secret) {
			t.Fatalf("error %q leaks %q", msg, secret)
		}
	}
}

func TestFacebookRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/debug_token" && calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Path == "/debug_token" {
			_, _ = w.Write([]byte(`{"data":{"is_valid":true}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"fb-11"}`))
	}))
	defer srv.Close()

	cfg := testClientConfig()
	cfg.MaxRetries = 2
	var retries atomic.Int32
	cfg.OnRetry = func(error, time.Duration) { retries.Add(1) }
	if _, err := newTestFacebook(t, srv.URL, cfg).Verify(context.Background(), fbUserToken); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if calls.Load() != 3 || retries.Load() != 2 {
		t.Fatalf("expected 3 calls and 2 retries, got %d and %d", calls.Load(), retries.Load())
	}
}

func TestFacebookGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testClientConfig()
	cfg.MaxRetries = 1
	_, err := newTestFacebook(t, srv.URL, cfg).Verify(context.Background(), fbUserToken)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestFacebookClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := testClientConfig()
	cfg.MaxRetries = 3
	_, err := newTestFacebook(t, srv.URL, cfg).Verify(context.Background(), fbUserToken)
	if !errors.Is(err, ErrInvalidToken) || calls.Load() != 1 {
		t.Fatalf("expected single attempt with invalid token, got %d calls err=%v", calls.Load(), err)
	}
}

func TestNewFacebookRequiresCredentials(t *testing.T) {
	if _, err := NewFacebook(FacebookConfig{AppID: "x"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
