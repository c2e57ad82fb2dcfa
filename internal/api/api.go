package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/MediSynth-io/authkit/internal/auth"
	"github.com/MediSynth-io/authkit/internal/config"
	"github.com/MediSynth-io/authkit/internal/handlers"
	"github.com/MediSynth-io/authkit/internal/logging"
	"github.com/MediSynth-io/authkit/internal/store"
)

type Api struct {
	Config config.Config
	Router *chi.Mux

	users  store.UserStore
	tokens *auth.TokenManager
	log    *zap.SugaredLogger

	// compared against when the email is unknown so that both login
	// failures cost one bcrypt comparison
	dummyHash string
}

func NewApi(cfg config.Config, users store.UserStore, tokens *auth.TokenManager, log *zap.SugaredLogger) (*Api, error) {
	if cfg.APIPort == 0 {
		return nil, errors.New("Must have at least a port to start API")
	}
	if users == nil || tokens == nil {
		return nil, errors.New("api requires a user store and a token manager")
	}
	if log == nil {
		log = logging.Nop()
	}

	dummy, err := auth.HashPassword("not-a-real-password", cfg.JWT.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	api := &Api{
		Config:    cfg,
		Router:    chi.NewRouter(),
		users:     users,
		tokens:    tokens,
		log:       log,
		dummyHash: dummy,
	}

	api.setupRoutes()
	return api, nil
}

func (api *Api) setupRoutes() {
	r := api.Router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(api.log))
	r.Use(api.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   api.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Heartbeat("/heartbeat"))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/", api.handle(api.Health, msgInternal))

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", api.handle(api.RegisterHandler, "Registration failed"))
		r.Post("/login", api.handle(api.LoginHandler, "Login failed"))

		r.Group(func(r chi.Router) {
			r.Use(auth.AuthMiddleware(api.tokens))
			r.Get("/me", api.handle(api.MeHandler, msgInternal))
			r.Post("/logout", api.handle(api.LogoutHandler, msgInternal))
			r.Post("/refresh", api.handle(api.RefreshHandler, "Token refresh failed"))
		})
	})
}

// Serve listens on the configured port until ctx is cancelled, then drains
// in-flight requests.
func (api *Api) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", api.Config.APIPort),
		Handler:           api.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return handlers.ListenAndServe(ctx, srv, api.log)
}

func (api *Api) Health(w http.ResponseWriter, r *http.Request) error {
	return api.respond(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Server is running",
	})
}
