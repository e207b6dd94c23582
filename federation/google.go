package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goFedAuth/user"
	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

// DefaultGoogleUserInfoURL is the OpenID userinfo endpoint used as fallback.
const DefaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// IDTokenValidator checks a Google ID token against an audience.
// *idtoken.Validator satisfies it.
type IDTokenValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

// GoogleConfig configures the Google verifier.
type GoogleConfig struct {
	ClientID    string
	UserInfoURL string
	// Validator defaults to an idtoken.Validator using the fetcher's client.
	Validator IDTokenValidator
	Client    ClientConfig
}

// Google verifies Google ID tokens. When the signed token cannot be
// validated it asks the userinfo endpoint, treating the token as a bearer
// credential.
type Google struct {
	clientID    string
	userInfoURL string
	validator   IDTokenValidator
	fetch       *fetcher
}

// NewGoogle builds a Google verifier.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("%w: google client id is required", ErrNotConfigured)
	}
	g := &Google{
		clientID:    cfg.ClientID,
		userInfoURL: cfg.UserInfoURL,
		validator:   cfg.Validator,
		fetch:       newFetcher(cfg.Client),
	}
	if g.userInfoURL == "" {
		g.userInfoURL = DefaultGoogleUserInfoURL
	}
	if g.validator == nil {
		v, err := idtoken.NewValidator(ctx, option.WithHTTPClient(g.fetch.client))
		if err != nil {
			return nil, fmt.Errorf("google id token validator: %w", err)
		}
		g.validator = v
	}
	return g, nil
}

// Verify describes the verify operation and its observable behavior.
//
// Verify returns the profile from the signed ID token, or from the userinfo
// endpoint when signature validation fails. When both fail the returned
// *Error carries both diagnostics.
func (g *Google) Verify(ctx context.Context, idToken string) (*Profile, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, providerError(user.ProviderGoogle, ErrInvalidToken, "failed to validate Google token: empty token")
	}

	profile, primaryErr := g.verifyIDToken(ctx, idToken)
	if primaryErr == nil {
		return profile, nil
	}
	profile, fallbackErr := g.userInfo(ctx, idToken)
	if fallbackErr == nil {
		return profile, nil
	}

	secrets := []string{idToken}
	return nil, providerError(user.ProviderGoogle, causeOf(fallbackErr), fmt.Sprintf(
		"failed to validate Google token: %s | fallback failed: %s",
		scrub(primaryErr.Error(), secrets),
		scrub(fallbackErr.Error(), secrets),
	))
}

func (g *Google) verifyIDToken(ctx context.Context, idToken string) (*Profile, error) {
	payload, err := g.validator.Validate(ctx, idToken, g.clientID)
	if err != nil {
		return nil, err
	}
	if payload == nil || payload.Subject == "" {
		return nil, errors.New("invalid Google ID token")
	}
	return &Profile{
		Provider:      user.ProviderGoogle,
		ExternalID:    payload.Subject,
		Email:         claimString(payload.Claims, "email"),
		FirstName:     claimString(payload.Claims, "given_name"),
		LastName:      claimString(payload.Claims, "family_name"),
		PictureURL:    claimString(payload.Claims, "picture"),
		EmailVerified: claimBool(payload.Claims, "email_verified"),
	}, nil
}

type googleUserInfo struct {
	Sub           string   `json:"sub"`
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	GivenName     string   `json:"given_name"`
	FamilyName    string   `json:"family_name"`
	Picture       string   `json:"picture"`
}

func (g *Google) userInfo(ctx context.Context, accessToken string) (*Profile, error) {
	client := g.fetch.withTransport(&oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}),
		Base:   g.fetch.baseTransport(),
	})

	var info googleUserInfo
	if err := g.fetch.getJSON(ctx, client, g.userInfoURL, &info, accessToken); err != nil {
		return nil, fmt.Errorf("userinfo request: %w", err)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("%w: userinfo response missing subject", ErrInvalidToken)
	}
	return &Profile{
		Provider:      user.ProviderGoogle,
		ExternalID:    info.Sub,
		Email:         info.Email,
		FirstName:     info.GivenName,
		LastName:      info.FamilyName,
		PictureURL:    info.Picture,
		EmailVerified: bool(info.EmailVerified),
	}, nil
}

func claimString(claims map[string]any, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

func claimBool(claims map[string]any, key string) bool {
	switch v := claims[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

// flexBool accepts true, false, "true" and "false".
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = flexBool(claimBool(map[string]any{"v": raw}, "v"))
	return nil
}
