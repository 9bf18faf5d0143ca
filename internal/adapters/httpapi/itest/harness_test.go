package itest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skyporter/luggage-api/internal/adapters/httpapi"
	"github.com/skyporter/luggage-api/internal/adapters/invoicepdf"
	memclock "github.com/skyporter/luggage-api/internal/adapters/memory/clock"
	memcontractrepo "github.com/skyporter/luggage-api/internal/adapters/memory/contractrepo"
	memidempotency "github.com/skyporter/luggage-api/internal/adapters/memory/idempotency"
	memlocationrepo "github.com/skyporter/luggage-api/internal/adapters/memory/locationrepo"
	memmessagerepo "github.com/skyporter/luggage-api/internal/adapters/memory/messagerepo"
	mempaymentrepo "github.com/skyporter/luggage-api/internal/adapters/memory/paymentrepo"
	mempricingrepo "github.com/skyporter/luggage-api/internal/adapters/memory/pricingrepo"
	memprofilerepo "github.com/skyporter/luggage-api/internal/adapters/memory/profilerepo"
	pgcontractrepo "github.com/skyporter/luggage-api/internal/adapters/postgres/contractrepo"
	pgidempotency "github.com/skyporter/luggage-api/internal/adapters/postgres/idempotency"
	pglocationrepo "github.com/skyporter/luggage-api/internal/adapters/postgres/locationrepo"
	pgmessagerepo "github.com/skyporter/luggage-api/internal/adapters/postgres/messagerepo"
	pgpaymentrepo "github.com/skyporter/luggage-api/internal/adapters/postgres/paymentrepo"
	pgpricingrepo "github.com/skyporter/luggage-api/internal/adapters/postgres/pricingrepo"
	pgprofilerepo "github.com/skyporter/luggage-api/internal/adapters/postgres/profilerepo"
	postgres_testutil "github.com/skyporter/luggage-api/internal/adapters/postgres/testutil"
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
	contractrepoport "github.com/skyporter/luggage-api/internal/ports/out/contractrepo"
	idempotencyport "github.com/skyporter/luggage-api/internal/ports/out/idempotency"
	locationrepoport "github.com/skyporter/luggage-api/internal/ports/out/locationrepo"
	messagerepoport "github.com/skyporter/luggage-api/internal/ports/out/messagerepo"
	paymentrepoport "github.com/skyporter/luggage-api/internal/ports/out/paymentrepo"
	pricingrepoport "github.com/skyporter/luggage-api/internal/ports/out/pricingrepo"
	profilerepoport "github.com/skyporter/luggage-api/internal/ports/out/profilerepo"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		return []backend{backendMemory, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|postgres|all)")
		return nil
	}
}

type testServer struct {
	baseURL string
	client  *http.Client
	clk     *memclock.ManualClock

	// adminSubject is a pre-seeded active admin; admins cannot self-provision.
	adminSubject string
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	const issuer = "itest-issuer"
	clk := memclock.NewManualClock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	log := zerolog.Nop()

	var (
		profileRepo  profilerepoport.Repository
		contractRepo contractrepoport.Repository
		messageRepo  messagerepoport.Repository
		pricingRepo  pricingrepoport.Repository
		paymentRepo  paymentrepoport.Repository
		locationRepo locationrepoport.Repository
		idemStore    idempotencyport.Store
	)

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		profileRepo = pgprofilerepo.NewRepo(pool, issuer)
		contractRepo = pgcontractrepo.NewRepo(pool)
		messageRepo = pgmessagerepo.NewRepo(pool)
		pricingRepo = pgpricingrepo.NewRepo(pool)
		paymentRepo = pgpaymentrepo.NewRepo(pool)
		locationRepo = pglocationrepo.NewRepo(pool)
		idemStore = pgidempotency.NewStore(pool, issuer)
	case backendMemory:
		profileRepo = memprofilerepo.NewRepo()
		contractRepo = memcontractrepo.NewRepo()
		messageRepo = memmessagerepo.NewRepo()
		pricingRepo = mempricingrepo.NewRepo()
		paymentRepo = mempaymentrepo.NewRepo()
		locationRepo = memlocationrepo.NewRepo()
		idemStore = memidempotency.NewStore()
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	hub := realtime.NewHub(log)
	pricingSvc := pricing.NewService(pricingRepo, contractRepo)
	statsSvc := stats.NewService(contractRepo, paymentRepo)
	api := &httpapi.Server{
		Users:     users.NewService(profileRepo, contractRepo, messageRepo, clk, log),
		Chat:      chat.NewService(messageRepo, profileRepo, hub, clk, log),
		Contracts: contracts.NewService(contractRepo, profileRepo, pricingSvc, hub, clk, log),
		Pricing:   pricingSvc,
		Payments:  payments.NewService(paymentRepo, contractRepo, clk, log),
		Tracking:  tracking.NewService(contractRepo, locationRepo, hub, clk, log),
		Stats:     statsSvc,
		Insights:  insights.NewService(statsSvc, nil, log),
		Invoices:  invoices.NewService(contractRepo, profileRepo, pricingRepo, paymentRepo, invoicepdf.NewRenderer("SkyPorter Luggage"), clk),
		Idem:      idemStore,
		Sessions:  session.NewManager("itest-secret", time.Hour, clk, false, ""),
		Hub:       hub,
		Clock:     clk,
	}

	adminSubject := "itest|admin-" + uuid.NewString()
	now := clk.Now()
	if err := profileRepo.Create(context.Background(), domain.Profile{
		ID:        domain.ProfileID(uuid.NewString()),
		Subject:   domain.SubjectID(adminSubject),
		Role:      domain.RoleAdmin,
		Status:    domain.ProfileStatusActive,
		FullName:  "Itest Admin",
		Email:     "admin-" + uuid.NewString() + "@itest.example",
		Verified:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	// Integration tests use the dev auth middleware to stay fully local and deterministic.
	// An empty default subject means requests MUST provide X-Debug-Subject.
	handler := httpapi.NewRouter(api, httpapi.RouterOptions{
		AuthMiddleware: httpapi.NewDevAuthMiddleware(""),
		Logger:         log,
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL:      srv.URL,
		client:       srv.Client(),
		clk:          clk,
		adminSubject: adminSubject,
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, subject string, body any, hdr ...string) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if subject != "" {
		req.Header.Set("X-Debug-Subject", subject)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

// action calls POST /v1/actions and returns the raw data payload on 200.
func (s *testServer) action(t *testing.T, subject, name string, params any) (int, []byte) {
	t.Helper()
	status, body, _ := s.doJSON(t, http.MethodPost, "/v1/actions", subject, map[string]any{"action": name, "params": params})
	return status, body
}

func (s *testServer) mustAction(t *testing.T, subject, name string, params any, out any) {
	t.Helper()
	status, body := s.action(t, subject, name, params)
	if status != http.StatusOK {
		t.Fatalf("%s: status=%d want=%d body=%s", name, status, http.StatusOK, string(body))
	}
	if out != nil {
		env := mustUnmarshal[struct {
			Data json.RawMessage `json:"data"`
		}](t, body)
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("%s: decode data: %v body=%s", name, err, string(body))
		}
	}
}

type errorResponse struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestId string `json:"requestId"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	if status != wantStatus {
		t.Fatalf("status=%d want=%d body=%s", status, wantStatus, string(body))
	}
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}

func requireHeaderPresent(t *testing.T, h http.Header, key string) {
	t.Helper()
	if strings.TrimSpace(h.Get(key)) == "" {
		t.Fatalf("expected header %q to be present", key)
	}
}
