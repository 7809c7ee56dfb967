package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/access-service/internal/admin"
	"github.com/prperemyshlev/access-service/internal/cache"
	"github.com/prperemyshlev/access-service/internal/config"
	"github.com/prperemyshlev/access-service/internal/entitlement"
	"github.com/prperemyshlev/access-service/internal/handler"
	"github.com/prperemyshlev/access-service/internal/relay"
	"github.com/prperemyshlev/access-service/internal/repository"
	"github.com/prperemyshlev/access-service/internal/service"
	"github.com/prperemyshlev/access-service/internal/session"
	"github.com/prperemyshlev/access-service/internal/utils"
	"github.com/prperemyshlev/access-service/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const (
	serviceName     = "access-service"
	shutdownTimeout = 5 * time.Second
)

type App struct {
	infra    Infrastructure
	config   *config.Config
	router   *gin.Engine
	server   *http.Server
	sessions *session.Manager
	jobs     *Jobs
}

type handlers struct {
	auth        *handler.AuthHandler
	session     *handler.SessionHandler
	catalog     *handler.CatalogHandler
	preferences *handler.PreferencesHandler
	admin       *handler.AdminHandler
	webhook     *handler.WebhookHandler
}

func NewApp(infra Infrastructure, cfg *config.Config) (*App, error) {
	logger := infra.Logger()
	repos := repository.NewRepositories(infra.Postgres())

	jwtManager := utils.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry.Duration,
		cfg.JWT.RefreshTokenExpiry.Duration,
	)

	var oauth service.OAuthProvider
	if cfg.OAuth.Enabled() {
		oauth = service.NewGoogleProvider(cfg.OAuth.GoogleClientID, cfg.OAuth.GoogleClientSecret, cfg.OAuth.GoogleRedirectURL)
	}

	events := service.NewBroadcaster()
	authService := service.NewAuthService(
		repos,
		jwtManager,
		service.NewRevocationList(infra.Redis()),
		events,
		oauth,
		cfg.Security.BCryptCost,
		cfg.JWT.RefreshTokenExpiry.Duration,
		logger,
	)

	adminStore := cache.NewAdminStore(infra.Redis())
	lastKnown := admin.NewLastKnown()
	resolver := session.NewResolver(
		repos.Profile,
		adminStore,
		admin.NewEvaluator(cfg.Admin.Emails),
		lastKnown,
		session.Timeouts{
			FullQuery:   cfg.Session.FullQueryTimeout.Duration,
			NarrowQuery: cfg.Session.NarrowQueryTimeout.Duration,
			CacheAccess: cfg.Session.CacheTimeout.Duration,
		},
		logger,
	)
	sessions := session.NewManager(authService, resolver, cfg.Session.LoadingCeiling.Duration, logger)

	entitlements := entitlement.NewResolver(repos.Subscription, repos.Plan, logger)

	registry := relay.LoadRegistry(
		cfg.Relay.Functions,
		cfg.Relay.SigningSecret,
		relay.NewHTTPClient(cfg.Relay.InvokeTimeout.Duration),
		logger,
	)
	logger.Info("webhook relay configured", zap.Strings("providers", cfg.Relay.Functions.Names()))

	jobs, err := NewJobs(cfg.Jobs, repos.Subscription, sessions, cfg.JWT.AccessTokenExpiry.Duration, logger)
	if err != nil {
		return nil, err
	}

	h := handlers{
		auth:        handler.NewAuthHandler(authService, cfg.Env == "production", logger),
		session:     handler.NewSessionHandler(entitlements),
		catalog:     handler.NewCatalogHandler(entitlements, repos.Subscription, logger),
		preferences: handler.NewPreferencesHandler(cache.NewPreferenceStore(infra.Redis()), logger),
		admin:       handler.NewAdminHandler(adminStore, lastKnown, sessions, logger),
		webhook:     handler.NewWebhookHandler(registry, logger),
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(handler.LoggerMiddleware(logger, "/health", "/ready", "/metrics"))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	limiter := service.NewRateLimiter(infra.Redis())
	setupRoutes(router, cfg, h, authService, sessions, limiter, registry.Providers(), NewHealthChecker(infra), infra.MetricsHandler(), logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:    infra,
		config:   cfg,
		router:   router,
		server:   srv,
		sessions: sessions,
		jobs:     jobs,
	}, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	h handlers,
	authService service.AuthService,
	sessions *session.Manager,
	limiter *service.RateLimiter,
	providers []string,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
	logger *zap.Logger,
) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", Liveness)
	router.GET("/ready", healthChecker.Handler)

	for _, provider := range providers {
		router.POST("/api/webhook-"+provider, h.webhook.Relay(provider))
	}

	rateLimit := handler.RateLimitMiddleware(
		limiter,
		cfg.Security.RateLimitRequests,
		cfg.Security.RateLimitWindow.Duration,
		handler.IPBasedKey,
		logger,
	)
	requireAuth := handler.AuthMiddleware(authService)
	withSession := handler.SessionMiddleware(sessions)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/sign-up", rateLimit, h.auth.SignUp)
			auth.POST("/sign-in", rateLimit, h.auth.SignIn)
			auth.POST("/refresh", rateLimit, h.auth.Refresh)
			auth.POST("/sign-out", requireAuth, h.auth.SignOut)
			auth.GET("/oauth/google", h.auth.OAuthStart)
			auth.GET("/oauth/google/callback", rateLimit, h.auth.OAuthCallback)
		}

		api.GET("/plans", h.catalog.Plans)
		api.GET("/plans/cheapest", h.catalog.CheapestPlan)

		user := api.Group("", requireAuth, withSession)
		{
			user.GET("/session", h.session.Get)
			user.POST("/session/refresh", h.session.Refresh)
			user.GET("/access/:feature", h.session.Access)
			user.GET("/subscriptions", h.catalog.Subscriptions)
			user.GET("/preferences", h.preferences.Get)
			user.PUT("/preferences", h.preferences.Put)
		}

		adminAPI := api.Group("/admin", requireAuth, withSession, handler.RequireAdmin())
		{
			adminAPI.POST("/users/:id/unblock", h.admin.Unblock)
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	logger := a.infra.Logger()
	errChan := make(chan error, 1)

	a.sessions.Start()
	a.jobs.Start()

	go func() {
		logger.Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		logger.Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		logger.Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	logger := a.infra.Logger()
	logger.Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	a.sessions.Stop()
	if err := a.jobs.Stop(ctx); err != nil {
		logger.Warn("scheduled jobs did not finish", zap.Error(err))
	}

	if err := a.infra.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
		return err
	}

	logger.Info("Application exited successfully")
	return nil
}
