// Package portal is the browser facing sign-in site. It hosts the session
// endpoints and renders the sign-in and account pages.
package portal

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MediSynth-io/authkit/internal/config"
	"github.com/MediSynth-io/authkit/internal/handlers"
	"github.com/MediSynth-io/authkit/internal/logging"
	"github.com/MediSynth-io/authkit/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

type Portal struct {
	Config config.Config
	Router *chi.Mux

	sessions  *session.Handler
	templates map[string]*template.Template
	log       *zap.SugaredLogger
}

func New(cfg config.Config, authorize session.AuthorizeFunc, log *zap.SugaredLogger) (*Portal, error) {
	if cfg.PortalPort == 0 {
		return nil, errors.New("Must have at least a port to start portal")
	}
	if authorize == nil {
		return nil, errors.New("portal requires a credentials authorizer")
	}
	if log == nil {
		log = logging.Nop()
	}

	sessions, err := session.New(AuthOptions(cfg.Session, authorize, log))
	if err != nil {
		return nil, fmt.Errorf("session handler: %w", err)
	}
	if cfg.Session.Google.ClientID == "" {
		log.Warnw("google sign-in is not configured; set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	p := &Portal{
		Config:    cfg,
		Router:    chi.NewRouter(),
		sessions:  sessions,
		templates: templates,
		log:       log,
	}
	p.setupRoutes()
	return p, nil
}

// parseTemplates pairs every page with the shared base layout.
func parseTemplates() (map[string]*template.Template, error) {
	pages, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("find templates: %w", err)
	}

	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		name := page[len("templates/"):]
		if name == "base.html" {
			continue
		}
		ts, err := template.ParseFS(templateFS, "templates/base.html", page)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		templates[name] = ts
	}
	return templates, nil
}

// Serve listens on the portal port until ctx is cancelled.
func (p *Portal) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", p.Config.PortalPort),
		Handler:           p.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return handlers.ListenAndServe(ctx, srv, p.log)
}
