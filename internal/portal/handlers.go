package portal

import (
	"bytes"
	"net/http"
	"net/url"

	"github.com/MediSynth-io/authkit/internal/session"
)

var signInErrors = map[string]string{
	session.ErrorCredentialsSignin: "Sign in failed. Check the details you provided are correct.",
	session.ErrorOAuthCallback:     "Could not sign in with that provider. Try again.",
}

type oauthLink struct {
	Name string
	URL  string
}

func (p *Portal) handleSignIn(w http.ResponseWriter, r *http.Request) {
	callbackURL := r.URL.Query().Get("callbackUrl")
	if callbackURL == "" {
		callbackURL = "/"
	}

	data := map[string]interface{}{
		"CallbackURL": callbackURL,
	}
	if code := r.URL.Query().Get("error"); code != "" {
		msg, ok := signInErrors[code]
		if !ok {
			msg = "Unable to sign in."
		}
		data["Error"] = msg
	}

	var links []oauthLink
	for _, prov := range p.sessions.Providers() {
		switch pv := prov.(type) {
		case *session.CredentialsProvider:
			data["Credentials"] = pv
		case *session.OAuthProvider:
			links = append(links, oauthLink{
				Name: pv.Name(),
				URL:  session.BasePath + "/signin/" + pv.ID() + "?callbackUrl=" + url.QueryEscape(callbackURL),
			})
		}
	}
	data["OAuth"] = links

	p.renderTemplate(w, r, http.StatusOK, "signin.html", "Sign in", data)
}

func (p *Portal) handleHome(w http.ResponseWriter, r *http.Request) {
	s, err := p.sessions.GetSession(r)
	if err != nil {
		http.Redirect(w, r, p.sessions.SignInPage(), http.StatusFound)
		return
	}
	p.renderTemplate(w, r, http.StatusOK, "home.html", "Account", map[string]interface{}{
		"Session":    s,
		"SignInPage": p.sessions.SignInPage(),
	})
}

func (p *Portal) handleNotFound(w http.ResponseWriter, r *http.Request) {
	p.renderTemplate(w, r, http.StatusNotFound, "404.html", "Not Found", map[string]interface{}{
		"Path": r.URL.Path,
	})
}

func (p *Portal) renderTemplate(w http.ResponseWriter, r *http.Request, status int, name, title string, data map[string]interface{}) {
	ts, ok := p.templates[name]
	if !ok {
		p.log.Errorw("template not found", "template", name)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	data["Title"] = title

	var buf bytes.Buffer
	if err := ts.ExecuteTemplate(&buf, "base", data); err != nil {
		p.log.Errorw("render template", "template", name, "path", r.URL.Path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
