package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/skyporter/luggage-api/internal/platform/auth/session"
)

type RouterOptions struct {
	// AuthMiddleware guards /v1. Defaults to rejecting every request.
	AuthMiddleware func(http.Handler) http.Handler
	Logger         zerolog.Logger
	// BaseDomain enables admin.<base> / contractor.<base> host rewriting.
	BaseDomain string
	LoginURL   string
}

// NewRouter constructs the API HTTP router.
func NewRouter(s *Server, opts RouterOptions) http.Handler {
	s.Init()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	if s.Metrics != nil {
		r.Use(instrument(s.Metrics))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}

	auth := opts.AuthMiddleware
	if auth == nil {
		auth = func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeAppError(w, r, errUnauthorized)
			})
		}
	}

	r.Route("/v1", func(r chi.Router) {
		if s.Sessions != nil {
			r.Delete("/session", s.deleteSession)
		}
		r.Group(func(r chi.Router) {
			r.Use(auth)
			s.mountAPI(r)
			if s.Sessions != nil {
				r.Post("/session", s.createSession)
			}
		})
	})

	if s.Sessions != nil {
		for _, p := range []session.Portal{session.PortalAdmin, session.PortalContractor} {
			r.Route("/"+string(p), func(r chi.Router) {
				r.Use(RequirePortalSession(s.Sessions, p, opts.LoginURL))
				s.mountAPI(r)
			})
		}
	}

	if opts.BaseDomain != "" {
		return HostRouter{BaseDomain: opts.BaseDomain, Next: r}
	}
	return r
}

// mountAPI registers the handlers shared by /v1 and the portal mounts.
func (s *Server) mountAPI(r chi.Router) {
	r.Post("/actions", s.handleAction)
	r.Get("/profiles/me", s.getMe)
	r.Post("/profiles/me", s.provisionMe)
	r.Post("/contracts", s.bookContract)
	r.Get("/contracts/{id}", s.getContract)
	r.Get("/contracts/{id}/invoice.pdf", s.getInvoice)
	r.Get("/contracts/{id}/track", s.getTrack)
	if s.Hub != nil {
		r.Get("/realtime", s.streamEvents)
	}
}
