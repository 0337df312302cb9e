// Package auth signs session tokens and talks to the OAuth2 identity provider.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// ErrProviderDisabled is returned when no client credentials are configured
var ErrProviderDisabled = errors.New("identity provider is not configured")

// Profile is the identity the provider vouches for
type Profile struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// IdentityProvider runs the authorization-code flow
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Profile, error)
}

// OAuthProvider is an OpenID Connect provider reached with oauth2 and a userinfo endpoint
type OAuthProvider struct {
	oauth       *oauth2.Config
	client      *resty.Client
	userInfoURL string
}

// NewGoogleProvider returns a Google sign-in provider
func NewGoogleProvider(clientID, clientSecret, redirectURL string) (*OAuthProvider, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrProviderDisabled
	}
	return NewOAuthProvider(&oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     endpoints.Google,
	}, googleUserInfoURL), nil
}

// NewOAuthProvider returns a provider for any oauth2 endpoint
func NewOAuthProvider(cfg *oauth2.Config, userInfoURL string) *OAuthProvider {
	return &OAuthProvider{
		oauth:       cfg,
		client:      resty.New(),
		userInfoURL: userInfoURL,
	}
}

func (p *OAuthProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for a token and loads the user's profile
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*Profile, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	var profile Profile
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(tok.AccessToken).
		SetResult(&profile).
		Get(p.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("userinfo rejected (status %d): %s", resp.StatusCode(), resp.String())
	}
	if profile.Email == "" || !profile.EmailVerified {
		return nil, errors.New("provider returned no verified email")
	}
	return &profile, nil
}
