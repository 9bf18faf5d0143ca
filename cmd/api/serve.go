package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	amqpadapter "github.com/skyporter/luggage-api/internal/adapters/amqp"
	"github.com/skyporter/luggage-api/internal/adapters/gemini"
	"github.com/skyporter/luggage-api/internal/adapters/httpapi"
	"github.com/skyporter/luggage-api/internal/adapters/invoicepdf"
	memcontractrepo "github.com/skyporter/luggage-api/internal/adapters/memory/contractrepo"
	memidempotency "github.com/skyporter/luggage-api/internal/adapters/memory/idempotency"
	memlocationrepo "github.com/skyporter/luggage-api/internal/adapters/memory/locationrepo"
	memmessagerepo "github.com/skyporter/luggage-api/internal/adapters/memory/messagerepo"
	mempaymentrepo "github.com/skyporter/luggage-api/internal/adapters/memory/paymentrepo"
	mempricingrepo "github.com/skyporter/luggage-api/internal/adapters/memory/pricingrepo"
	memprofilerepo "github.com/skyporter/luggage-api/internal/adapters/memory/profilerepo"
	postgres "github.com/skyporter/luggage-api/internal/adapters/postgres"
	pgcontractrepo "github.com/skyporter/luggage-api/internal/adapters/postgres/contractrepo"
	pgidempotency "github.com/skyporter/luggage-api/internal/adapters/postgres/idempotency"
	pglocationrepo "github.com/skyporter/luggage-api/internal/adapters/postgres/locationrepo"
	pgmessagerepo "github.com/skyporter/luggage-api/internal/adapters/postgres/messagerepo"
	pgpaymentrepo "github.com/skyporter/luggage-api/internal/adapters/postgres/paymentrepo"
	pgpricingrepo "github.com/skyporter/luggage-api/internal/adapters/postgres/pricingrepo"
	pgprofilerepo "github.com/skyporter/luggage-api/internal/adapters/postgres/profilerepo"
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
	"github.com/skyporter/luggage-api/internal/platform/auth/jwtverifier"
	"github.com/skyporter/luggage-api/internal/platform/auth/session"
	platformclock "github.com/skyporter/luggage-api/internal/platform/clock"
	"github.com/skyporter/luggage-api/internal/platform/config"
	"github.com/skyporter/luggage-api/internal/platform/logging"
	"github.com/skyporter/luggage-api/internal/platform/metrics"
	contractrepoport "github.com/skyporter/luggage-api/internal/ports/out/contractrepo"
	"github.com/skyporter/luggage-api/internal/ports/out/events"
	idempotencyport "github.com/skyporter/luggage-api/internal/ports/out/idempotency"
	insightsport "github.com/skyporter/luggage-api/internal/ports/out/insights"
	locationrepoport "github.com/skyporter/luggage-api/internal/ports/out/locationrepo"
	messagerepoport "github.com/skyporter/luggage-api/internal/ports/out/messagerepo"
	paymentrepoport "github.com/skyporter/luggage-api/internal/ports/out/paymentrepo"
	pricingrepoport "github.com/skyporter/luggage-api/internal/ports/out/pricingrepo"
	profilerepoport "github.com/skyporter/luggage-api/internal/ports/out/profilerepo"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.LogLevel, cfg.LogFormat, nil)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

type repositories struct {
	profiles  profilerepoport.Repository
	contracts contractrepoport.Repository
	messages  messagerepoport.Repository
	pricing   pricingrepoport.Repository
	payments  paymentrepoport.Repository
	locations locationrepoport.Repository
	idem      idempotencyport.Store
}

func openRepositories(ctx context.Context, cfg config.Config) (repositories, func(), error) {
	if cfg.StorageBackend != config.StoragePostgres {
		return repositories{
			profiles:  memprofilerepo.NewRepo(),
			contracts: memcontractrepo.NewRepo(),
			messages:  memmessagerepo.NewRepo(),
			pricing:   mempricingrepo.NewRepo(),
			payments:  mempaymentrepo.NewRepo(),
			locations: memlocationrepo.NewRepo(),
			idem:      memidempotency.NewStore(),
		}, func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return repositories{}, nil, err
	}
	issuer := cfg.AuthIssuer()
	return postgresRepositories(pool, issuer), pool.Close, nil
}

func postgresRepositories(pool *pgxpool.Pool, issuer string) repositories {
	return repositories{
		profiles:  pgprofilerepo.NewRepo(pool, issuer),
		contracts: pgcontractrepo.NewRepo(pool),
		messages:  pgmessagerepo.NewRepo(pool),
		pricing:   pgpricingrepo.NewRepo(pool),
		payments:  pgpaymentrepo.NewRepo(pool),
		locations: pglocationrepo.NewRepo(pool),
		idem:      pgidempotency.NewStore(pool, issuer),
	}
}

func serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	// Auth configuration:
	// - Production: JWT_* env vars and bearer auth
	// - Local dev: AUTH_MODE=dev bypasses JWT verification and uses X-Debug-Subject
	m := metrics.New()

	var authMW func(http.Handler) http.Handler
	switch cfg.AuthMode {
	case config.AuthModeDev:
		log.Warn().Msg("AUTH_MODE=dev: bearer tokens are not verified")
		authMW = httpapi.NewDevAuthMiddleware(cfg.DevSubject)
	default:
		authMW = httpapi.NewAuthMiddleware(jwtverifier.New(cfg.JWT), httpapi.CountAuthFailures(m.AuthFailures))
	}

	repos, closeRepos, err := openRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepos()

	clk := platformclock.NewSystemClock()

	hub := realtime.NewHub(logging.Component(log, "realtime"),
		realtime.WithMetrics(m.RealtimeSubscribers, m.RealtimeDropped))
	var pub events.Publisher = hub
	if cfg.AMQPURL != "" {
		mq, err := amqpadapter.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return err
		}
		defer func() { _ = mq.Close() }()
		pub = realtime.Fanout{hub, mq}
		log.Info().Str("exchange", cfg.AMQPExchange).Msg("mirroring realtime events to amqp")
	}

	var gen insightsport.Generator
	if cfg.GeminiAPIKey != "" {
		gen = gemini.NewClient(gemini.Config{
			APIKey:   cfg.GeminiAPIKey,
			Model:    cfg.GeminiModel,
			BaseURL:  cfg.GeminiBaseURL,
			Timeout:  cfg.GeminiTimeout,
			RetryMax: 2,
		}, logging.Component(log, "gemini"))
	} else {
		log.Info().Msg("GEMINI_API_KEY unset: insights use the local summary")
	}

	pricingSvc := pricing.NewService(repos.pricing, repos.contracts)
	statsSvc := stats.NewService(repos.contracts, repos.payments)
	api := &httpapi.Server{
		Users:     users.NewService(repos.profiles, repos.contracts, repos.messages, clk, logging.Component(log, "users")),
		Chat:      chat.NewService(repos.messages, repos.profiles, pub, clk, logging.Component(log, "chat")),
		Contracts: contracts.NewService(repos.contracts, repos.profiles, pricingSvc, pub, clk, logging.Component(log, "contracts")),
		Pricing:   pricingSvc,
		Payments:  payments.NewService(repos.payments, repos.contracts, clk, logging.Component(log, "payments")),
		Tracking:  tracking.NewService(repos.contracts, repos.locations, pub, clk, logging.Component(log, "tracking")),
		Stats:     statsSvc,
		Insights:  insights.NewService(statsSvc, gen, logging.Component(log, "insights"), insights.WithFallbackCounter(m.InsightFallbacks)),
		Invoices:  invoices.NewService(repos.contracts, repos.profiles, repos.pricing, repos.payments, invoicepdf.NewRenderer("SkyPorter Luggage"), clk),
		Idem:      repos.idem,
		Sessions:  session.NewManager(cfg.SessionSecret, cfg.SessionTTL, clk, cfg.CookieSecure, cookieDomain(cfg.BaseDomain)),
		Hub:       hub,
		Metrics:   m,
		Clock:     clk,
	}

	go runJanitor(ctx, repos.idem, clk, cfg.IdempotencyTTL, cfg.IdempotencySweep, logging.Component(log, "janitor"))

	handler := httpapi.NewRouter(api, httpapi.RouterOptions{
		AuthMiddleware: authMW,
		Logger:         log,
		BaseDomain:     cfg.BaseDomain,
		LoginURL:       cfg.LoginURL,
	})

	srv := newHTTPServer(":"+cfg.Port, handler, hub)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("storage", cfg.StorageBackend).Str("authMode", cfg.AuthMode).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newHTTPServer ends realtime streams when shutdown begins; otherwise open SSE
// connections would hold Shutdown until its deadline.
func newHTTPServer(addr string, h http.Handler, hub *realtime.Hub) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv.RegisterOnShutdown(hub.Close)
	return srv
}

// cookieDomain shares portal cookies across subdomains. Bare hosts like localhost get a
// host-only cookie.
func cookieDomain(base string) string {
	if strings.Contains(base, ".") {
		return base
	}
	return ""
}
