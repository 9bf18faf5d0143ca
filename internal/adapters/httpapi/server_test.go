package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/skyporter/luggage-api/internal/adapters/invoicepdf"
	memclock "github.com/skyporter/luggage-api/internal/adapters/memory/clock"
	memcontractrepo "github.com/skyporter/luggage-api/internal/adapters/memory/contractrepo"
	memidempotency "github.com/skyporter/luggage-api/internal/adapters/memory/idempotency"
	memlocationrepo "github.com/skyporter/luggage-api/internal/adapters/memory/locationrepo"
	memmessagerepo "github.com/skyporter/luggage-api/internal/adapters/memory/messagerepo"
	mempaymentrepo "github.com/skyporter/luggage-api/internal/adapters/memory/paymentrepo"
	mempricingrepo "github.com/skyporter/luggage-api/internal/adapters/memory/pricingrepo"
	memprofilerepo "github.com/skyporter/luggage-api/internal/adapters/memory/profilerepo"
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
)

const (
	testBaseDomain = "luggage.test"
	testLoginURL   = "https://login.luggage.test/signin"

	adminSub      = "admin-sub"
	contractorSub = "contractor-sub"
	driverSub     = "driver-sub"
	regionID      = domain.PricingRegionID("region-sfo")
)

type testEnv struct {
	h        http.Handler
	srv      *Server
	clk      *memclock.ManualClock
	profiles *memprofilerepo.Repo
	sessions *session.Manager

	admin, contractor, driver domain.Profile
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	log := zerolog.Nop()

	profiles := memprofilerepo.NewRepo()
	contractRepo := memcontractrepo.NewRepo()
	messages := memmessagerepo.NewRepo()
	pricingRepo := mempricingrepo.NewRepo()
	paymentRepo := mempaymentrepo.NewRepo()
	locations := memlocationrepo.NewRepo()

	m := metrics.New()
	hub := realtime.NewHub(log, realtime.WithBuffer(16), realtime.WithMetrics(m.RealtimeSubscribers, m.RealtimeDropped))
	sessions := session.NewManager("test-session-secret", time.Hour, clk, false, "")

	pricingSvc := pricing.NewService(pricingRepo, contractRepo)
	statsSvc := stats.NewService(contractRepo, paymentRepo)
	srv := &Server{
		Users:     users.NewService(profiles, contractRepo, messages, clk, log),
		Chat:      chat.NewService(messages, profiles, hub, clk, log),
		Contracts: contracts.NewService(contractRepo, profiles, pricingSvc, hub, clk, log),
		Pricing:   pricingSvc,
		Payments:  payments.NewService(paymentRepo, contractRepo, clk, log),
		Tracking:  tracking.NewService(contractRepo, locations, hub, clk, log),
		Stats:     statsSvc,
		Insights:  insights.NewService(statsSvc, nil, log, insights.WithFallbackCounter(m.InsightFallbacks)),
		Invoices:  invoices.NewService(contractRepo, profiles, pricingRepo, paymentRepo, invoicepdf.NewRenderer("SkyPorter Luggage"), clk),
		Idem:      memidempotency.NewStore(),
		Sessions:  sessions,
		Hub:       hub,
		Metrics:   m,
		Clock:     clk,
	}

	env := &testEnv{srv: srv, clk: clk, profiles: profiles, sessions: sessions}
	env.admin = env.seedProfile(t, "p-admin", adminSub, domain.RoleAdmin, "Ada Admin")
	env.contractor = env.seedProfile(t, "p-contractor", contractorSub, domain.RoleContractor, "Carl Contractor")
	env.driver = env.seedProfile(t, "p-driver", driverSub, domain.RoleDelivery, "Dana Driver")

	require.NoError(t, pricingRepo.Upsert(context.Background(), domain.PricingRegion{
		ID:           regionID,
		Name:         "San Francisco",
		BaseFeeCents: 1500,
		PerBagCents:  700,
		PerKgCents:   50,
		Currency:     "USD",
		Active:       true,
	}))

	env.h = NewRouter(srv, RouterOptions{
		AuthMiddleware: NewDevAuthMiddleware(""),
		Logger:         log,
		BaseDomain:     testBaseDomain,
		LoginURL:       testLoginURL,
	})
	return env
}

func (e *testEnv) seedProfile(t *testing.T, id domain.ProfileID, sub domain.SubjectID, role domain.Role, name string) domain.Profile {
	t.Helper()
	now := e.clk.Now()
	p := domain.Profile{
		ID:        id,
		Subject:   sub,
		Role:      role,
		Status:    domain.ProfileStatusActive,
		FullName:  name,
		Email:     string(id) + "@luggage.test",
		Verified:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, e.profiles.Create(context.Background(), p))
	return p
}

func (e *testEnv) do(t *testing.T, method, path, subject string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if subject != "" {
		req.Header.Set("X-Debug-Subject", subject)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) action(t *testing.T, subject, name string, params any) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, http.MethodPost, "/v1/actions", subject, map[string]any{"action": name, "params": params}, nil)
}

// actionOK calls name, requires a 200 and decodes data into out.
func (e *testEnv) actionOK(t *testing.T, subject, name string, params, out any) {
	t.Helper()
	rec := e.action(t, subject, name, params)
	require.Equal(t, http.StatusOK, rec.Code, "%s: %s", name, rec.Body.String())
	if out != nil {
		decodeData(t, rec, out)
	}
}

func (e *testEnv) book(t *testing.T, key string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, http.MethodPost, "/v1/contracts", contractorSub, body, map[string]string{"Idempotency-Key": key})
}

func (e *testEnv) bookOK(t *testing.T) domain.Contract {
	t.Helper()
	rec := e.book(t, "k-"+e.clk.Now().Format(time.RFC3339Nano), bookingBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c domain.Contract
	decodeData(t, rec, &c)
	return c
}

func bookingBody() map[string]any {
	return map[string]any{
		"regionId":       regionID,
		"airline":        "Pacific Air",
		"flightNumber":   "pa 101",
		"passengerName":  "Pat Passenger",
		"pickupAddress":  "SFO Terminal 2",
		"dropoffAddress": "1 Market St, San Francisco",
		"pickup":         map[string]any{"lat": 37.6213, "lng": -122.379},
		"dropoff":        map[string]any{"lat": 37.7941, "lng": -122.3951},
		"scheduledAt":    "2026-03-03T15:00:00Z",
		"luggage": []map[string]any{
			{"tagNumber": "pa123456", "description": "Blue suitcase", "weightKg": 18.5, "quantity": 1},
			{"tagNumber": "PA654321", "description": "Golf bag", "weightKg": 9, "quantity": 2},
		},
	}
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	env := struct {
		Data json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, out), string(env.Data))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er), rec.Body.String())
	return er.Error
}
