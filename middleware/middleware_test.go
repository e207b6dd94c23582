package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	goFedAuth "github.com/MrEthical07/goFedAuth"
)

type fakeValidator struct {
	tokens map[string]*goFedAuth.Identity
	calls  int
}

func (f *fakeValidator) ValidateAccess(_ context.Context, token string) (*goFedAuth.Identity, error) {
	f.calls++
	if id, ok := f.tokens[token]; ok {
		return id, nil
	}
	return nil, goFedAuth.ErrUnauthorized
}

func newFakeValidator() *fakeValidator {
	return &fakeValidator{tokens: map[string]*goFedAuth.Identity{
		"user-token":  {UserID: 1, Email: "a@example.com", Role: goFedAuth.RoleUser},
		"brand-token": {UserID: 2, Email: "b@example.com", Role: goFedAuth.RoleBrand},
	}}
}

func echoIdentity(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		_, _ = w.Write([]byte("anonymous"))
		return
	}
	_, _ = w.Write([]byte(id.Email))
}

func serve(h http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/demo-controller", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticatePassesThroughWithoutHeader(t *testing.T) {
	v := newFakeValidator()
	rec := serve(Authenticate(v)(http.HandlerFunc(echoIdentity)), "")
	if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
	if v.calls != 0 {
		t.Fatal("validator must not be called without a header")
	}
}

func TestAuthenticateIgnoresOtherSchemes(t *testing.T) {
	v := newFakeValidator()
	h := Authenticate(v)(http.HandlerFunc(echoIdentity))
	for _, header := range []string{"Basic dXNlcjpwYXNz", "Token user-token", "Bearer"} {
		rec := serve(h, header)
		if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
			t.Fatalf("%q: expected anonymous pass-through, got %d %q", header, rec.Code, rec.Body.String())
		}
	}
	if v.calls != 0 {
		t.Fatal("validator must not be called for other schemes")
	}

	protected := Authenticate(v)(RequireIdentity(http.HandlerFunc(echoIdentity)))
	if rec := serve(protected, "Basic dXNlcjpwYXNz"); rec.Code != http.StatusForbidden {
		t.Fatalf("protected route with basic auth: expected 403, got %d", rec.Code)
	}
}

func TestAuthenticateAttachesIdentity(t *testing.T) {
	rec := serve(Authenticate(newFakeValidator())(http.HandlerFunc(echoIdentity)), "Bearer user-token")
	if rec.Code != http.StatusOK || rec.Body.String() != "a@example.com" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}

	rec = serve(Authenticate(newFakeValidator())(http.HandlerFunc(echoIdentity)), "bearer user-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("scheme must be case-insensitive, got %d", rec.Code)
	}
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	for _, header := range []string{"Bearer nope", "Bearer   "} {
		rec := serve(Authenticate(newFakeValidator())(http.HandlerFunc(echoIdentity)), header)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%q: expected 401, got %d", header, rec.Code)
		}
		var body ErrorBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%q: decode error body: %v", header, err)
		}
		if body.Status != http.StatusUnauthorized || body.Path != "/api/v1/demo-controller" || body.Error != "Unauthorized" {
			t.Fatalf("%q: unexpected body %+v", header, body)
		}
	}
}

func TestRequireIdentityAndRole(t *testing.T) {
	v := newFakeValidator()
	protected := Authenticate(v)(RequireIdentity(http.HandlerFunc(echoIdentity)))

	if rec := serve(protected, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("anonymous: expected 403, got %d", rec.Code)
	}
	if rec := serve(protected, "Bearer user-token"); rec.Code != http.StatusOK {
		t.Fatalf("authenticated: expected 200, got %d", rec.Code)
	}

	brandOnly := Authenticate(v)(RequireRole(goFedAuth.RoleBrand, goFedAuth.RoleAdmin)(http.HandlerFunc(echoIdentity)))
	if rec := serve(brandOnly, "Bearer user-token"); rec.Code != http.StatusForbidden {
		t.Fatalf("wrong role: expected 403, got %d", rec.Code)
	}
	if rec := serve(brandOnly, "Bearer brand-token"); rec.Code != http.StatusOK {
		t.Fatalf("brand: expected 200, got %d", rec.Code)
	}
	if rec := serve(brandOnly, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("anonymous: expected 403, got %d", rec.Code)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		token string
		ok    bool
	}{
		"Bearer abc":  {"abc", true},
		"BEARER abc ": {"abc", true},
		"Bearer":      {"", false},
		"Token abc":   {"", false},
	}
	for header, want := range cases {
		token, ok := bearerToken(header)
		if token != want.token || ok != want.ok {
			t.Fatalf("%q: got (%q, %v), want (%q, %v)", header, token, ok, want.token, want.ok)
		}
	}
}
