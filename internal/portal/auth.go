package portal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/MediSynth-io/authkit/internal/auth"
	"github.com/MediSynth-io/authkit/internal/config"
	"github.com/MediSynth-io/authkit/internal/session"
	"github.com/MediSynth-io/authkit/internal/store"
)

// AuthOptions assembles the session framework configuration for the portal:
// a credentials provider backed by authorize, Google sign-in, and the
// callback that exposes the subject as user.id.
func AuthOptions(cfg config.SessionConfig, authorize session.AuthorizeFunc, log *zap.SugaredLogger) session.Options {
	credentials := &session.CredentialsProvider{
		DisplayName: "Credentials",
		Fields: []session.CredentialField{
			{Key: "username", Label: "email", Type: "text"},
			{Key: "password", Label: "password", Type: "password"},
		},
		Authorize: authorize,
	}

	return session.Options{
		Providers: []session.Provider{
			credentials,
			session.Google(cfg.Google.ClientID, cfg.Google.ClientSecret),
		},
		Secret:        cfg.Secret,
		Callbacks:     session.Callbacks{Session: exposeSubject},
		Pages:         session.Pages{SignIn: cfg.SignInPage},
		BaseURL:       cfg.BaseURL,
		MaxAge:        cfg.MaxAge,
		SecureCookies: strings.HasPrefix(cfg.BaseURL, "https://"),
		Logger:        log,
	}
}

func exposeSubject(_ context.Context, s *session.Session, tok *session.Token) *session.Session {
	if s.User != nil {
		s.User.ID = tok.Subject
	}
	return s
}

// StoreAuthorizer checks submitted credentials against the user store.
func StoreAuthorizer(users store.UserStore, bcryptCost int) (session.AuthorizeFunc, error) {
	dummy, err := auth.HashPassword("not-a-real-password", bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return func(ctx context.Context, creds map[string]string) (*session.User, error) {
		email := strings.TrimSpace(creds["username"])
		password := creds["password"]
		if email == "" || password == "" {
			return nil, nil
		}

		user, err := users.GetUserByEmail(ctx, email)
		if errors.Is(err, store.ErrUserNotFound) {
			auth.CheckPassword(dummy, password)
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("lookup user: %w", err)
		}
		if !auth.CheckPassword(user.Password, password) {
			return nil, nil
		}

		return &session.User{
			ID:    strconv.FormatInt(user.ID, 10),
			Name:  user.Name,
			Email: user.Email,
		}, nil
	}, nil
}

// StaticAuthorizer accepts any submission and returns the configured identity.
// Only for local development.
func StaticAuthorizer(id config.StaticIdentity) session.AuthorizeFunc {
	return func(context.Context, map[string]string) (*session.User, error) {
		return &session.User{ID: id.ID, Name: id.Name, Email: id.Email}, nil
	}
}

// Authorizer picks the authorize step configured in cfg.
func Authorizer(cfg config.Config, users store.UserStore, log *zap.SugaredLogger) (session.AuthorizeFunc, error) {
	if cfg.Session.Credentials.Static.Enabled {
		log.Warnw("credentials provider uses a static identity; do not enable this in production",
			"id", cfg.Session.Credentials.Static.ID)
		return StaticAuthorizer(cfg.Session.Credentials.Static), nil
	}
	return StoreAuthorizer(users, cfg.JWT.BcryptCost)
}
