package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	goFedAuth "github.com/MrEthical07/goFedAuth"
	"github.com/MrEthical07/goFedAuth/middleware"
	"go.uber.org/zap"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleRequest struct {
	IDToken string `json:"idToken"`
	Token   string `json:"token"`
}

type facebookRequest struct {
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// decode reads a JSON body into dst. Unknown fields are ignored.
func (a *api) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, a.opts.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errMalformedBody)
		}
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return nil
}

func (a *api) register(w http.ResponseWriter, r *http.Request) {
	var req goFedAuth.RegisterRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r)(a.engine.Register(r.Context(), req))
}

func (a *api) authenticate(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r)(a.engine.Authenticate(r.Context(), req.Email, req.Password))
}

func (a *api) google(w http.ResponseWriter, r *http.Request) {
	var req googleRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	token := req.IDToken
	if token == "" {
		token = req.Token
	}
	a.respond(w, r)(a.engine.LoginWithGoogle(r.Context(), token))
}

func (a *api) facebook(w http.ResponseWriter, r *http.Request) {
	var req facebookRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	token := req.AccessToken
	if token == "" {
		token = req.Token
	}
	a.respond(w, r)(a.engine.LoginWithFacebook(r.Context(), token))
}

func (a *api) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r)(a.engine.Refresh(r.Context(), req.RefreshToken))
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	resp, err := a.engine.Logout(r.Context(), req.RefreshToken)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, resp.Message)
}

func (a *api) demo(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Hello from secured endpoint",
		"userId":  id.UserID,
		"role":    id.Role,
	})
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.opts.HealthTimeout)
	defer cancel()

	if err := a.engine.Health(ctx); err != nil {
		a.logger.Warn("health check failed", zap.Error(err))
		middleware.WriteError(w, r, http.StatusServiceUnavailable, "Service unavailable")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respond writes a successful AuthResponse or maps the error.
func (a *api) respond(w http.ResponseWriter, r *http.Request) func(*goFedAuth.AuthResponse, error) {
	return func(resp *goFedAuth.AuthResponse, err error) {
		if err != nil {
			a.fail(w, r, err)
			return
		}
		middleware.WriteJSON(w, http.StatusOK, resp)
	}
}
