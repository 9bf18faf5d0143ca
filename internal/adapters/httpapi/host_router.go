package httpapi

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/skyporter/luggage-api/internal/app/apperr"
	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/platform/auth/session"
)

// HostRouter maps portal subdomains onto path prefixes:
//
//	admin.<base>/x      -> /admin/x
//	contractor.<base>/x -> /contractor/x
//
// Other hosts pass through unchanged.
type HostRouter struct {
	BaseDomain string
	Next       http.Handler
}

func (h HostRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if portal, ok := h.portalFor(r.Host); ok {
		prefix := "/" + string(portal)
		if r.URL.Path != prefix && !strings.HasPrefix(r.URL.Path, prefix+"/") {
			r2 := r.Clone(r.Context())
			r2.URL.Path = prefix + r.URL.Path
			if r.URL.RawPath != "" {
				r2.URL.RawPath = prefix + r.URL.RawPath
			}
			r = r2
		}
	}
	h.Next.ServeHTTP(w, r)
}

func (h HostRouter) portalFor(host string) (session.Portal, bool) {
	if h.BaseDomain == "" {
		return "", false
	}
	if hp, _, err := net.SplitHostPort(host); err == nil {
		host = hp
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	sub, ok := strings.CutSuffix(host, "."+strings.ToLower(h.BaseDomain))
	if !ok {
		return "", false
	}
	p := session.Portal(sub)
	return p, p.Valid()
}

// RequirePortalSession gates a portal mount on its session cookie and puts the session
// subject in the request context.
func RequirePortalSession(m *session.Manager, portal session.Portal, loginURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(portal.CookieName())
			if err != nil || c.Value == "" {
				rejectPortal(w, r, loginURL, "missing session")
				return
			}
			claims, err := m.Parse(c.Value, portal)
			if err != nil {
				rejectPortal(w, r, loginURL, "invalid session")
				return
			}
			ctx := WithSubject(r.Context(), domain.SubjectID(claims.Subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// rejectPortal redirects browsers to the login page and answers API clients with 401.
func rejectPortal(w http.ResponseWriter, r *http.Request, loginURL, msg string) {
	if loginURL != "" && r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html") {
		target := loginURL
		if u, err := url.Parse(loginURL); err == nil {
			q := u.Query()
			q.Set("next", r.URL.RequestURI())
			u.RawQuery = q.Encode()
			target = u.String()
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	writeError(w, r, http.StatusUnauthorized, apperr.CodeUnauthorized, msg, nil)
}
