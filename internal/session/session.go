// Package session implements a cookie based session framework with pluggable
// sign-in providers. Credentials and OAuth providers are supported; a signed
// session token carries the identity between requests.
package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultMaxAge     = 30 * 24 * time.Hour
	DefaultSignInPage = "/signin"
	BasePath          = "/api/auth"
)

var (
	ErrInvalidSession  = errors.New("invalid or expired session")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrMissingSecret   = errors.New("session secret is required")
)

// User is the identity exposed to clients through the session.
type User struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`
}

type Session struct {
	User    *User     `json:"user,omitempty"`
	Expires time.Time `json:"expires"`
}

// SessionCallback shapes the session returned to clients. It receives the
// decoded session token so values such as the subject can be surfaced.
type SessionCallback func(ctx context.Context, s *Session, tok *Token) *Session

type Callbacks struct {
	Session SessionCallback
}

type Pages struct {
	SignIn string
}

type Options struct {
	Providers []Provider
	Secret    string
	Callbacks Callbacks
	Pages     Pages
	// BaseURL is the externally visible origin used to build OAuth redirect
	// URLs. When empty it is derived from the incoming request.
	BaseURL string
	MaxAge  time.Duration
	// SecureCookies marks every cookie Secure. Enable behind TLS.
	SecureCookies bool
	Logger        *zap.SugaredLogger
}

func (o Options) signInPage() string {
	if o.Pages.SignIn == "" {
		return DefaultSignInPage
	}
	return o.Pages.SignIn
}

func (o Options) maxAge() time.Duration {
	if o.MaxAge <= 0 {
		return DefaultMaxAge
	}
	return o.MaxAge
}
