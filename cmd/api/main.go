package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/backend-pressing/internal/address"
	"github.com/noah-isme/backend-pressing/internal/app"
	"github.com/noah-isme/backend-pressing/internal/auth"
	"github.com/noah-isme/backend-pressing/internal/catalog"
	"github.com/noah-isme/backend-pressing/internal/common"
	"github.com/noah-isme/backend-pressing/internal/config"
	"github.com/noah-isme/backend-pressing/internal/events"
	"github.com/noah-isme/backend-pressing/internal/geo"
	"github.com/noah-isme/backend-pressing/internal/handoff"
	"github.com/noah-isme/backend-pressing/internal/health"
	"github.com/noah-isme/backend-pressing/internal/obs"
	"github.com/noah-isme/backend-pressing/internal/order"
	"github.com/noah-isme/backend-pressing/internal/pricing"
	"github.com/noah-isme/backend-pressing/internal/ratelimit"
	"github.com/noah-isme/backend-pressing/internal/reconcile"
	"github.com/noah-isme/backend-pressing/internal/security"
)

const (
	metricsNamespace = "pressing"
	adminRole        = "admin"
)

func main() {
	cfg := config.MustLoad()
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.ServiceName).With().
		Str("env", cfg.AppEnv).
		Str("component", "api").
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	deps, err := app.New(startCtx, cfg, logger, "api")
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	if cfg.MetricsEnabled {
		obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	}

	loader, err := deps.CatalogLoader()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog loader")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Loader: loader})

	resolver := geo.NewResolver(cfg.Regions)
	addressService := address.NewService(resolver, geo.DefaultMetroBox, address.NewFormatter(cfg.MetroCity, cfg.Country, ""))
	addressHandler := address.NewHandler(address.HandlerConfig{
		Service:       addressService,
		Resolver:      resolver,
		Metro:         geo.DefaultMetroBox,
		Fallback:      cfg.FallbackPosition(),
		RecenterDelay: cfg.RecenterDelay,
		Logger:        logger.With().Str("module", "address").Logger(),
	})

	redisOpt, err := deps.AsynqRedis()
	if err != nil {
		logger.Fatal().Err(err).Msg("parse asynq redis options")
	}
	taskClient := asynq.NewClient(redisOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close asynq client")
		}
	}()
	bus := &events.Bus{
		Store: deps.EventStore(),
		Scheduler: handoff.NewPublisher(taskClient, handoff.PublisherConfig{
			Queue:    cfg.HandoffQueue,
			MaxRetry: cfg.HandoffMaxRetry,
			Logger:   logger.With().Str("module", "handoff").Logger(),
		}),
		Notifiers: []events.Notifier{logNotifier(logger)},
	}

	orderLogger := logger.With().Str("module", "order").Logger()
	orderService, err := order.NewService(order.ServiceConfig{
		Catalog:    loader,
		Reconciler: reconcile.New(orderLogger),
		Pricing:    pricing.NewEngine(cfg.Pricing, orderLogger),
		Addresses:  addressService,
		Events:     bus,
		Logger:     orderLogger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise order service")
	}
	orderHandler := order.NewHandler(orderService)
	orderAdmin := &order.AdminHandler{Events: deps.EventStore()}

	verifier, err := auth.NewVerifier(auth.VerifierConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise token verifier")
	}
	authMiddleware := auth.Middleware{Verifier: verifier}
	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}

	limiterStore, err := ratelimit.NewStore(deps.Redis, "")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limit store")
	}
	addressLimit := mustRateLimit(logger, limiterStore, cfg.RateLimitAddress, "address")
	draftLimit := mustRateLimit(logger, limiterStore, cfg.RateLimitDrafts, "drafts")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.TracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.MetricsEnabled {
		httpMetrics := obs.NewHTTPMetrics(metricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), nil)
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(security.Headers{HSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), os.Getenv("SECURE_PPROF_BASIC_AUTH_USER"), os.Getenv("SECURE_PPROF_BASIC_AUTH_PASS")))
	}

	healthHandler := health.Handler{Checkers: deps.Checkers()}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/regions", addressHandler.Regions)
		v.Route("/address", func(a chi.Router) {
			a.Use(addressLimit.Middleware)
			a.Post("/resolve", addressHandler.Resolve)
			a.Post("/text", addressHandler.Text)
		})

		v.Get("/businesses/{businessID}/services", catalogHandler.Services)
		v.Post("/pricing/quote", orderHandler.Quote)

		v.With(draftLimit.Middleware, authMiddleware.Optional, idem.Middleware).
			Post("/orders/drafts", orderHandler.CreateDraft)

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.Require)
			admin.Use(auth.RequireRole(adminRole))
			admin.Get("/drafts/{draftID}/events", orderAdmin.DraftEvents)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-ctx.Done()
	health.SetReady(false)
	logger.Info().Msg("shutdown requested")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}
	logger.Info().Msg("server stopped")
}

func mustRateLimit(logger zerolog.Logger, store limiter.Store, rate, group string) ratelimit.Handler {
	lim, err := ratelimit.New(store, rate)
	if err != nil {
		logger.Fatal().Err(err).Str("group", group).Msg("initialise rate limiter")
	}
	return ratelimit.Handler{
		Limiter: lim,
		Key:     ratelimit.ByClientIP(group),
		Logger:  logger.With().Str("module", "ratelimit").Logger(),
	}
}

// logNotifier writes every emitted domain event to the log.
func logNotifier(logger zerolog.Logger) events.NotifierFunc {
	return func(_ context.Context, ev events.Event) error {
		logger.Info().
			Str("event_id", ev.ID.String()).
			Str("topic", ev.Topic).
			Str("aggregate_id", ev.AggregateID).
			Msg("domain_event")
		return nil
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
