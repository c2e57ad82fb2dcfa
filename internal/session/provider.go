package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	TypeCredentials = "credentials"
	TypeOAuth       = "oauth"

	GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

type Provider interface {
	ID() string
	Name() string
	Type() string
}

// CredentialField describes one input of a credentials sign-in form.
type CredentialField struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Type        string `json:"type"`
	Placeholder string `json:"placeholder,omitempty"`
}

// AuthorizeFunc validates submitted credentials. A nil user with a nil error
// means the credentials were rejected.
type AuthorizeFunc func(ctx context.Context, credentials map[string]string) (*User, error)

type CredentialsProvider struct {
	DisplayName string
	Fields      []CredentialField
	Authorize   AuthorizeFunc
}

func (p *CredentialsProvider) ID() string   { return "credentials" }
func (p *CredentialsProvider) Type() string { return TypeCredentials }

func (p *CredentialsProvider) Name() string {
	if p.DisplayName == "" {
		return "Credentials"
	}
	return p.DisplayName
}

// OAuthProvider signs users in with the authorization code flow and reads the
// profile from an OpenID Connect userinfo endpoint.
type OAuthProvider struct {
	ProviderID   string
	DisplayName  string
	Config       oauth2.Config
	UserInfoURL  string
	AuthCodeOpts []oauth2.AuthCodeOption
	// HTTPClient is used for the token exchange and the userinfo request.
	HTTPClient *http.Client
}

func (p *OAuthProvider) ID() string   { return p.ProviderID }
func (p *OAuthProvider) Name() string { return p.DisplayName }
func (p *OAuthProvider) Type() string { return TypeOAuth }

// Google returns the Google OAuth provider.
func Google(clientID, clientSecret string) *OAuthProvider {
	return &OAuthProvider{
		ProviderID:  "google",
		DisplayName: "Google",
		Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		},
		UserInfoURL:  GoogleUserInfoURL,
		AuthCodeOpts: []oauth2.AuthCodeOption{oauth2.AccessTypeOnline},
	}
}

func (p *OAuthProvider) context(ctx context.Context) context.Context {
	if p.HTTPClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, p.HTTPClient)
	}
	return ctx
}

// AuthCodeURL returns the consent page URL for the given state.
func (p *OAuthProvider) AuthCodeURL(state, redirectURL string) string {
	cfg := p.Config
	cfg.RedirectURL = redirectURL
	return cfg.AuthCodeURL(state, p.AuthCodeOpts...)
}

type userInfo struct {
	Sub     string `json:"sub"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// Exchange trades the authorization code for a token and fetches the profile.
func (p *OAuthProvider) Exchange(ctx context.Context, code, redirectURL string) (*User, error) {
	ctx = p.context(ctx)
	cfg := p.Config
	cfg.RedirectURL = redirectURL

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	resp, err := cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("userinfo returned %d: %s", resp.StatusCode, body)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("userinfo response has no subject")
	}

	return &User{ID: info.Sub, Name: info.Name, Email: info.Email, Image: info.Picture}, nil
}
