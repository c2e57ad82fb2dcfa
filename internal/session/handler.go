package session

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MediSynth-io/authkit/internal/handlers"
	"github.com/MediSynth-io/authkit/internal/logging"
)

const (
	SessionCookie  = "authkit.session-token"
	stateCookie    = "authkit.state"
	callbackCookie = "authkit.callback-url"

	stateMaxAge  = 10 * time.Minute
	maxBodyBytes = 1 << 20

	ErrorCredentialsSignin = "CredentialsSignin"
	ErrorOAuthCallback     = "OAuthCallback"
	ErrorCallback          = "Callback"
)

// Handler serves the session endpoints under BasePath.
type Handler struct {
	opts      Options
	providers map[string]Provider
	order     []Provider
	codec     *tokenCodec
	log       *zap.SugaredLogger
}

func New(opts Options) (*Handler, error) {
	if opts.Secret == "" {
		return nil, ErrMissingSecret
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	h := &Handler{
		opts:      opts,
		providers: make(map[string]Provider, len(opts.Providers)),
		codec:     newTokenCodec(opts.Secret, opts.maxAge()),
		log:       log,
	}
	for _, p := range opts.Providers {
		if p == nil {
			continue
		}
		if _, dup := h.providers[p.ID()]; dup {
			return nil, fmt.Errorf("duplicate provider %q", p.ID())
		}
		h.providers[p.ID()] = p
		h.order = append(h.order, p)
	}
	return h, nil
}

// Providers returns the configured providers in registration order.
func (h *Handler) Providers() []Provider {
	return h.order
}

// Provider looks up a provider by id.
func (h *Handler) Provider(id string) (Provider, error) {
	p, ok := h.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	return p, nil
}

func (h *Handler) oauthProvider(r *http.Request) (*OAuthProvider, bool) {
	p, err := h.Provider(chi.URLParam(r, "provider"))
	if err != nil {
		return nil, false
	}
	op, ok := p.(*OAuthProvider)
	return op, ok
}

func (h *Handler) SignInPage() string {
	return h.opts.signInPage()
}

// Routes returns the session endpoints; mount them at BasePath.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/providers", h.handleProviders)
	r.Get("/session", h.handleSession)
	r.Get("/signin/{provider}", h.handleSignIn)
	r.Post("/callback/credentials", h.handleCredentials)
	r.Get("/callback/{provider}", h.handleOAuthCallback)
	r.Post("/signout", h.handleSignOut)
	return r
}

// GetSession decodes the session cookie of r and applies the session callback.
func (h *Handler) GetSession(r *http.Request) (*Session, error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return nil, ErrInvalidSession
	}
	tok, err := h.codec.decode(c.Value)
	if err != nil {
		return nil, err
	}

	s := &Session{
		User:    &User{Name: tok.Name, Email: tok.Email, Image: tok.Picture},
		Expires: tok.ExpiresAt.Time.UTC(),
	}
	if cb := h.opts.Callbacks.Session; cb != nil {
		s = cb(r.Context(), s, tok)
	}
	if s == nil {
		return nil, ErrInvalidSession
	}
	return s, nil
}

// Require redirects requests without a valid session to the sign-in page,
// passing the original location as callbackUrl.
func (h *Handler) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := h.GetSession(r); err != nil {
			target := withQuery(h.SignInPage(), "callbackUrl", r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type providerInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	SignInURL   string `json:"signinUrl"`
	CallbackURL string `json:"callbackUrl"`
}

func (h *Handler) handleProviders(w http.ResponseWriter, r *http.Request) {
	base := h.baseURL(r)
	out := make(map[string]providerInfo, len(h.order))
	for _, p := range h.order {
		out[p.ID()] = providerInfo{
			ID:          p.ID(),
			Name:        p.Name(),
			Type:        p.Type(),
			SignInURL:   base + BasePath + "/signin/" + p.ID(),
			CallbackURL: base + BasePath + "/callback/" + p.ID(),
		}
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.GetSession(r)
	if err != nil {
		h.writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

func (h *Handler) handleCredentials(w http.ResponseWriter, r *http.Request) {
	p, ok := h.providers["credentials"].(*CredentialsProvider)
	if !ok || p.Authorize == nil {
		h.writeError(w, http.StatusNotFound, "Unknown provider")
		return
	}

	values, err := readValues(w, r)
	if err != nil {
		h.log.Infow("rejecting credentials sign-in", "error", err)
		h.redirectError(w, r, ErrorCredentialsSignin)
		return
	}

	creds := make(map[string]string, len(p.Fields))
	for _, f := range p.Fields {
		creds[f.Key] = values[f.Key]
	}

	user, err := p.Authorize(r.Context(), creds)
	if err != nil {
		h.log.Errorw("credentials authorize failed", "error", err)
		h.redirectError(w, r, ErrorCredentialsSignin)
		return
	}
	if user == nil {
		h.redirectError(w, r, ErrorCredentialsSignin)
		return
	}

	if err := h.startSession(w, user); err != nil {
		h.log.Errorw("could not start session", "provider", p.ID(), "error", err)
		h.redirectError(w, r, ErrorCallback)
		return
	}
	http.Redirect(w, r, h.safeCallbackURL(values["callbackUrl"]), http.StatusSeeOther)
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	p, ok := h.oauthProvider(r)
	if !ok {
		h.writeError(w, http.StatusNotFound, "Unknown provider")
		return
	}

	state := uuid.NewString()
	h.setCookie(w, stateCookie, state, stateMaxAge)
	h.setCookie(w, callbackCookie, h.safeCallbackURL(r.URL.Query().Get("callbackUrl")), stateMaxAge)

	http.Redirect(w, r, p.AuthCodeURL(state, h.callbackURL(r, p.ID())), http.StatusFound)
}

func (h *Handler) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	p, ok := h.oauthProvider(r)
	if !ok {
		h.writeError(w, http.StatusNotFound, "Unknown provider")
		return
	}

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		h.log.Infow("oauth provider returned an error", "provider", p.ID(), "error", e)
		h.redirectError(w, r, ErrorOAuthCallback)
		return
	}

	st, err := r.Cookie(stateCookie)
	if err != nil || st.Value == "" ||
		subtle.ConstantTimeCompare([]byte(st.Value), []byte(q.Get("state"))) != 1 {
		h.log.Warnw("oauth state mismatch", "provider", p.ID())
		h.redirectError(w, r, ErrorOAuthCallback)
		return
	}
	h.clearCookie(w, stateCookie)

	dest := "/"
	if c, err := r.Cookie(callbackCookie); err == nil {
		dest = h.safeCallbackURL(c.Value)
	}
	h.clearCookie(w, callbackCookie)

	user, err := p.Exchange(r.Context(), q.Get("code"), h.callbackURL(r, p.ID()))
	if err != nil {
		h.log.Errorw("oauth exchange failed", "provider", p.ID(), "error", err)
		h.redirectError(w, r, ErrorOAuthCallback)
		return
	}

	if err := h.startSession(w, user); err != nil {
		h.log.Errorw("could not start session", "provider", p.ID(), "error", err)
		h.redirectError(w, r, ErrorCallback)
		return
	}
	http.Redirect(w, r, dest, http.StatusFound)
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	values, _ := readValues(w, r)
	h.clearCookie(w, SessionCookie)
	http.Redirect(w, r, h.safeCallbackURL(values["callbackUrl"]), http.StatusSeeOther)
}

func (h *Handler) startSession(w http.ResponseWriter, u *User) error {
	raw, _, err := h.codec.encode(u)
	if err != nil {
		return err
	}
	h.setCookie(w, SessionCookie, raw, h.opts.maxAge())
	return nil
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, withQuery(h.SignInPage(), "error", code), http.StatusSeeOther)
}

func (h *Handler) baseURL(r *http.Request) string {
	if h.opts.BaseURL != "" {
		return strings.TrimRight(h.opts.BaseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (h *Handler) callbackURL(r *http.Request, providerID string) string {
	return h.baseURL(r) + BasePath + "/callback/" + providerID
}

// safeCallbackURL only allows same-site destinations: a local path, or an
// absolute URL under the configured BaseURL.
func (h *Handler) safeCallbackURL(raw string) string {
	if base := strings.TrimRight(h.opts.BaseURL, "/"); base != "" {
		if raw == base || strings.HasPrefix(raw, base+"/") {
			return raw
		}
	}
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "/"
	}
	return raw
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	if err := handlers.WriteJSON(w, status, v); err != nil {
		h.log.Errorw("could not write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	if err := handlers.WriteError(w, status, msg); err != nil {
		h.log.Errorw("could not write response", "error", err)
	}
}

// readValues reads a form or JSON body into a flat map.
func readValues(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	values := map[string]string{}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
			return values, fmt.Errorf("decode body: %w", err)
		}
		return values, nil
	}

	if err := r.ParseForm(); err != nil {
		return values, fmt.Errorf("parse form: %w", err)
	}
	for k := range r.PostForm {
		values[k] = r.PostForm.Get(k)
	}
	return values, nil
}

func withQuery(path string, kv ...string) string {
	u, err := url.Parse(path)
	if err != nil {
		return path
	}
	q := u.Query()
	for i := 0; i+1 < len(kv); i += 2 {
		q.Set(kv[i], kv[i+1])
	}
	u.RawQuery = q.Encode()
	return u.String()
}
