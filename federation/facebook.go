package federation

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/MrEthical07/goFedAuth/user"
)

// DefaultFacebookGraphURL is the Graph API root.
const DefaultFacebookGraphURL = "https://graph.facebook.com"

const facebookProfileFields = "id,name,email,first_name,last_name,picture"

// FacebookConfig configures the Facebook verifier.
type FacebookConfig struct {
	AppID     string
	AppSecret string
	GraphURL  string
	Client    ClientConfig
}

// Facebook verifies user access tokens with the Graph API debug_token
// endpoint and then reads the profile from /me.
type Facebook struct {
	appID     string
	appSecret string
	graphURL  string
	fetch     *fetcher
}

// NewFacebook builds a Facebook verifier.
func NewFacebook(cfg FacebookConfig) (*Facebook, error) {
	if strings.TrimSpace(cfg.AppID) == "" || strings.TrimSpace(cfg.AppSecret) == "" {
		return nil, fmt.Errorf("%w: facebook app id and secret are required", ErrNotConfigured)
	}
	graphURL := strings.TrimRight(cfg.GraphURL, "/")
	if graphURL == "" {
		graphURL = DefaultFacebookGraphURL
	}
	return &Facebook{
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		graphURL:  graphURL,
		fetch:     newFetcher(cfg.Client),
	}, nil
}

type facebookDebugToken struct {
	Data struct {
		IsValid bool   `json:"is_valid"`
		AppID   string `json:"app_id"`
	} `json:"data"`
}

type facebookMe struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Picture   struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

// Verify checks accessToken against the configured app and returns the
// user's profile. EmailVerified is true whenever Facebook returned an email.
func (f *Facebook) Verify(ctx context.Context, accessToken string) (*Profile, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, providerError(user.ProviderFacebook, ErrInvalidToken, "failed to verify Facebook token: empty token")
	}
	secrets := []string{accessToken, url.QueryEscape(accessToken), f.appSecret, url.QueryEscape(f.appSecret)}

	debugURL := f.graphURL + "/debug_token?" + url.Values{
		"input_token":  {accessToken},
		"access_token": {f.appID + "|" + f.appSecret},
	}.Encode()
	var debug facebookDebugToken
	if err := f.fetch.getJSON(ctx, nil, debugURL, &debug, secrets...); err != nil {
		return nil, providerError(user.ProviderFacebook, causeOf(err), "failed to verify Facebook token: "+scrub(err.Error(), secrets))
	}
	if !debug.Data.IsValid {
		return nil, providerError(user.ProviderFacebook, ErrInvalidToken, "failed to verify Facebook token: invalid Facebook access token")
	}
	if debug.Data.AppID != "" && debug.Data.AppID != f.appID {
		return nil, providerError(user.ProviderFacebook, ErrInvalidToken, "failed to verify Facebook token: Facebook token app ID does not match")
	}

	meURL := f.graphURL + "/me?" + url.Values{
		"fields":       {facebookProfileFields},
		"access_token": {accessToken},
	}.Encode()
	var me facebookMe
	if err := f.fetch.getJSON(ctx, nil, meURL, &me, secrets...); err != nil {
		return nil, providerError(user.ProviderFacebook, causeOf(err), "failed to validate Facebook token: "+scrub(err.Error(), secrets))
	}
	if me.ID == "" {
		return nil, providerError(user.ProviderFacebook, ErrInvalidToken, "failed to validate Facebook token: profile missing id")
	}

	first, last := me.FirstName, me.LastName
	if first == "" && last == "" && me.Name != "" {
		first, last, _ = strings.Cut(strings.TrimSpace(me.Name), " ")
	}
	return &Profile{
		Provider:      user.ProviderFacebook,
		ExternalID:    me.ID,
		Email:         me.Email,
		FirstName:     first,
		LastName:      last,
		PictureURL:    me.Picture.Data.URL,
		EmailVerified: me.Email != "",
	}, nil
}
