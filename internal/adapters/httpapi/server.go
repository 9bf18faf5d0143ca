package httpapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/skyporter/luggage-api/internal/adapters/realtime"
	"github.com/skyporter/luggage-api/internal/app/chat"
	"github.com/skyporter/luggage-api/internal/app/contracts"
	"github.com/skyporter/luggage-api/internal/app/insights"
	"github.com/skyporter/luggage-api/internal/app/invoices"
	"github.com/skyporter/luggage-api/internal/app/payments"
	"github.com/skyporter/luggage-api/internal/app/pricing"
	"github.com/skyporter/luggage-api/internal/app/stats"
	"github.com/skyporter/luggage-api/internal/app/tracking"
	"github.com/skyporter/luggage-api/internal/app/users"
	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/platform/auth/session"
	"github.com/skyporter/luggage-api/internal/platform/metrics"
	clockport "github.com/skyporter/luggage-api/internal/ports/out/clock"
	"github.com/skyporter/luggage-api/internal/ports/out/idempotency"
)

// Server holds the application services the HTTP handlers call into.
type Server struct {
	Users     *users.Service
	Chat      *chat.Service
	Contracts *contracts.Service
	Pricing   *pricing.Service
	Payments  *payments.Service
	Tracking  *tracking.Service
	Stats     *stats.Service
	Insights  *insights.Service
	Invoices  *invoices.Service

	Idem     idempotency.Store
	Sessions *session.Manager
	Hub      *realtime.Hub
	Metrics  *metrics.Metrics
	Clock    clockport.Clock

	validate *validator.Validate
	actions  map[string]actionSpec
}

// Init builds the action registry. NewRouter calls it.
func (s *Server) Init() {
	if s.validate == nil {
		s.validate = newValidator()
	}
	if s.actions == nil {
		s.actions = s.registry()
	}
}

// caller resolves the authenticated subject to an active profile.
func (s *Server) caller(r *http.Request) (domain.Profile, error) {
	sub, ok := SubjectFromContext(r.Context())
	if !ok {
		return domain.Profile{}, errUnauthorized
	}
	return s.Users.Resolve(r.Context(), sub)
}
