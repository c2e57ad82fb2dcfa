package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const testSecret = "session-test-secret"

func credentialsProvider() *CredentialsProvider {
	return &CredentialsProvider{
		Fields: []CredentialField{
			{Key: "username", Label: "email", Type: "text"},
			{Key: "password", Label: "password", Type: "password"},
		},
		Authorize: func(_ context.Context, c map[string]string) (*User, error) {
			switch {
			case c["username"] == "boom":
				return nil, errors.New("backend down")
			case c["username"] == "jane@example.com" && c["password"] == "secret123":
				return &User{ID: "42", Name: "Jane", Email: "jane@example.com"}, nil
			}
			return nil, nil
		},
	}
}

func copySub(_ context.Context, s *Session, tok *Token) *Session {
	if s.User != nil {
		s.User.ID = tok.Subject
	}
	return s
}

func newTestHandler(t *testing.T, providers ...Provider) (*Handler, http.Handler) {
	t.Helper()
	if len(providers) == 0 {
		providers = []Provider{credentialsProvider()}
	}
	h, err := New(Options{
		Providers: providers,
		Secret:    testSecret,
		Callbacks: Callbacks{Session: copySub},
		Pages:     Pages{SignIn: "/signin"},
		BaseURL:   "http://portal.test",
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Mount(BasePath, h.Routes())
	return h, r
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func postForm(router http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func getSession(t *testing.T, router http.Handler, c *http.Cookie) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, BasePath+"/session", nil)
	if c != nil {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestNew(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, err = New(Options{Secret: "x", Providers: []Provider{credentialsProvider(), credentialsProvider()}})
	assert.Error(t, err)

	h, err := New(Options{Secret: "x"})
	require.NoError(t, err)
	assert.Equal(t, DefaultSignInPage, h.SignInPage())
}

func TestProviders(t *testing.T) {
	_, router := newTestHandler(t, credentialsProvider(), Google("id", "secret"))

	req := httptest.NewRequest(http.MethodGet, BasePath+"/providers", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]providerInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, providerInfo{
		ID:          "google",
		Name:        "Google",
		Type:        TypeOAuth,
		SignInURL:   "http://portal.test/api/auth/signin/google",
		CallbackURL: "http://portal.test/api/auth/callback/google",
	}, body["google"])
	assert.Equal(t, TypeCredentials, body["credentials"].Type)
}

func TestSessionWithoutCookie(t *testing.T) {
	_, router := newTestHandler(t)
	assert.Empty(t, getSession(t, router, nil))
	assert.Empty(t, getSession(t, router, &http.Cookie{Name: SessionCookie, Value: "garbage"}))
}

func TestCredentialsSignIn(t *testing.T) {
	_, router := newTestHandler(t)

	rr := postForm(router, BasePath+"/callback/credentials", url.Values{
		"username":    {"jane@example.com"},
		"password":    {"secret123"},
		"callbackUrl": {"/dashboard"},
	})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard", rr.Header().Get("Location"))

	c := cookieNamed(rr.Result(), SessionCookie)
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, int(DefaultMaxAge.Seconds()), c.MaxAge)

	body := getSession(t, router, c)
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "42", user["id"])
	assert.Equal(t, "Jane", user["name"])
	assert.Equal(t, "jane@example.com", user["email"])
	assert.NotEmpty(t, body["expires"])
}

func TestCredentialsSignInJSON(t *testing.T) {
	_, router := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, BasePath+"/callback/credentials",
		strings.NewReader(`{"username":"jane@example.com","password":"secret123"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
	assert.NotNil(t, cookieNamed(rr.Result(), SessionCookie))
}

func TestCredentialsSignInRejected(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{"wrong password", url.Values{"username": {"jane@example.com"}, "password": {"nope"}}},
		{"empty form", url.Values{}},
		{"authorize error", url.Values{"username": {"boom"}, "password": {"x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, router := newTestHandler(t)
			rr := postForm(router, BasePath+"/callback/credentials", tt.form)
			assert.Equal(t, http.StatusSeeOther, rr.Code)
			assert.Equal(t, "/signin?error=CredentialsSignin", rr.Header().Get("Location"))
			assert.Nil(t, cookieNamed(rr.Result(), SessionCookie))
		})
	}
}

func TestCallbackURLMustBeLocal(t *testing.T) {
	h, _ := newTestHandler(t)
	assert.Equal(t, "/", h.safeCallbackURL("https://evil.example/steal"))
	assert.Equal(t, "/", h.safeCallbackURL("//evil.example"))
	assert.Equal(t, "/", h.safeCallbackURL(""))
	assert.Equal(t, "/a?b=c", h.safeCallbackURL("/a?b=c"))
	assert.Equal(t, "http://portal.test/x", h.safeCallbackURL("http://portal.test/x"))
}

func TestSignOut(t *testing.T) {
	_, router := newTestHandler(t)

	rr := postForm(router, BasePath+"/signout", url.Values{"callbackUrl": {"/signin"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/signin", rr.Header().Get("Location"))

	c := cookieNamed(rr.Result(), SessionCookie)
	require.NotNil(t, c)
	assert.Empty(t, c.Value)
	assert.Less(t, c.MaxAge, 0)
}

func TestRequire(t *testing.T) {
	h, router := newTestHandler(t)
	protected := h.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	rr := httptest.NewRecorder()
	protected.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/signin?callbackUrl=%2Fdashboard", rr.Header().Get("Location"))

	login := postForm(router, BasePath+"/callback/credentials", url.Values{
		"username": {"jane@example.com"}, "password": {"secret123"},
	})
	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookieNamed(login.Result(), SessionCookie))
	rr = httptest.NewRecorder()
	protected.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestExpiredSession(t *testing.T) {
	h, router := newTestHandler(t)
	h.codec.now = func() time.Time { return time.Now().Add(-2 * DefaultMaxAge) }
	raw, _, err := h.codec.encode(&User{ID: "1"})
	require.NoError(t, err)
	h.codec.now = time.Now

	assert.Empty(t, getSession(t, router, &http.Cookie{Name: SessionCookie, Value: raw}))
}

func fakeGoogle(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"g-1001","name":"Gopher","email":"gopher@example.com","picture":"https://img.example/g.png"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func googleAgainst(srv *httptest.Server) *OAuthProvider {
	p := Google("client-id", "client-secret")
	p.Config.Endpoint = oauth2.Endpoint{
		AuthURL:   srv.URL + "/auth",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	p.UserInfoURL = srv.URL + "/userinfo"
	p.HTTPClient = srv.Client()
	return p
}

func TestOAuthSignInRedirect(t *testing.T) {
	srv := fakeGoogle(t)
	_, router := newTestHandler(t, googleAgainst(srv))

	req := httptest.NewRequest(http.MethodGet, BasePath+"/signin/google?callbackUrl=/dashboard", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusFound, rr.Code)

	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/auth", loc.Scheme+"://"+loc.Host+loc.Path)
	assert.Equal(t, "client-id", loc.Query().Get("client_id"))
	assert.Equal(t, "http://portal.test/api/auth/callback/google", loc.Query().Get("redirect_uri"))
	assert.Equal(t, "openid email profile", loc.Query().Get("scope"))

	state := cookieNamed(rr.Result(), stateCookie)
	require.NotNil(t, state)
	assert.Equal(t, state.Value, loc.Query().Get("state"))
	assert.Equal(t, "/dashboard", cookieNamed(rr.Result(), callbackCookie).Value)
}

func oauthCallback(router http.Handler, query string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, BasePath+"/callback/google?"+query, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestOAuthCallback(t *testing.T) {
	srv := fakeGoogle(t)
	_, router := newTestHandler(t, googleAgainst(srv))

	rr := oauthCallback(router, "state=s-1&code=good-code",
		&http.Cookie{Name: stateCookie, Value: "s-1"},
		&http.Cookie{Name: callbackCookie, Value: "/dashboard"})
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/dashboard", rr.Header().Get("Location"))

	c := cookieNamed(rr.Result(), SessionCookie)
	require.NotNil(t, c)
	body := getSession(t, router, c)
	user := body["user"].(map[string]any)
	assert.Equal(t, "g-1001", user["id"])
	assert.Equal(t, "Gopher", user["name"])
	assert.Equal(t, "https://img.example/g.png", user["image"])
}

func TestOAuthCallbackFailures(t *testing.T) {
	srv := fakeGoogle(t)
	_, router := newTestHandler(t, googleAgainst(srv))
	state := &http.Cookie{Name: stateCookie, Value: "s-1"}

	tests := []struct {
		name    string
		query   string
		cookies []*http.Cookie
	}{
		{"state mismatch", "state=other&code=good-code", []*http.Cookie{state}},
		{"missing state cookie", "state=s-1&code=good-code", nil},
		{"provider error", "error=access_denied&state=s-1", []*http.Cookie{state}},
		{"bad code", "state=s-1&code=bad-code", []*http.Cookie{state}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := oauthCallback(router, tt.query, tt.cookies...)
			assert.Equal(t, http.StatusSeeOther, rr.Code)
			assert.Equal(t, "/signin?error=OAuthCallback", rr.Header().Get("Location"))
			assert.Nil(t, cookieNamed(rr.Result(), SessionCookie))
		})
	}
}

func TestUnknownProvider(t *testing.T) {
	_, router := newTestHandler(t)

	for _, path := range []string{"/signin/github", "/callback/github", "/signin/credentials"} {
		req := httptest.NewRequest(http.MethodGet, BasePath+path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
		assert.JSONEq(t, `{"error":"Unknown provider"}`, rr.Body.String())
	}
}

func TestProviderLookup(t *testing.T) {
	h, _ := newTestHandler(t)

	p, err := h.Provider("credentials")
	require.NoError(t, err)
	assert.Equal(t, "Credentials", p.Name())

	_, err = h.Provider("github")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
