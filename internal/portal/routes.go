package portal

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MediSynth-io/authkit/internal/logging"
	"github.com/MediSynth-io/authkit/internal/session"
)

func (p *Portal) setupRoutes() {
	r := p.Router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(p.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/heartbeat"))

	r.Mount(session.BasePath, p.sessions.Routes())
	r.Get(p.sessions.SignInPage(), p.handleSignIn)

	r.Group(func(r chi.Router) {
		r.Use(p.sessions.Require)
		r.Get("/", p.handleHome)
	})

	r.NotFound(p.handleNotFound)
}
