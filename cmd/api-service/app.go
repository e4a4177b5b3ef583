package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"pulse/internal/actiontoken"
	"pulse/internal/analytics"
	"pulse/internal/auth"
	"pulse/internal/config"
	"pulse/internal/constants"
	"pulse/internal/dashboard"
	"pulse/internal/logger"
	"pulse/internal/mailer"
	"pulse/internal/preferences"
	"pulse/internal/project"
	"pulse/internal/user"
	"pulse/pkg/bootstrap"
	"pulse/pkg/circuitbreaker"
	"pulse/pkg/health"
	"pulse/pkg/metrics"
	"pulse/pkg/middleware"
	"pulse/pkg/migrations"
	"pulse/pkg/ratelimit"
	"pulse/pkg/tracing"
)

const serviceName = "api-service"

type App struct {
	*bootstrap.Base
	limiter        *ratelimit.Limiter
	server         *http.Server
	router         *gin.Engine
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName)
	}
	return &App{
		Base: bootstrap.NewBase(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	if err := a.initStores(ctx); err != nil {
		return err
	}

	if a.Config.Database.RunMigrations {
		if err := a.migrate(ctx); err != nil {
			return err
		}
	}

	if err := a.initRouter(ctx); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}

	return nil
}

// initStores connects PostgreSQL, Redis and MongoDB. The API cannot serve
// without any of them.
func (a *App) initStores(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return a.InitStores(initCtx)
}

func (a *App) migrate(ctx context.Context) error {
	if err := migrations.RunPostgres(a.Stores.Postgres); err != nil {
		return fmt.Errorf("failed to migrate postgres: %w", err)
	}
	if err := migrations.EnsureMongoIndexes(ctx, a.Stores.Analytics); err != nil {
		return fmt.Errorf("failed to create mongodb indexes: %w", err)
	}
	a.Logger.InfowCtx(ctx, "Database migrations applied")
	return nil
}

// initMailer publishes mail jobs to Kafka. Without a usable producer mail
// is rendered and sent in-process.
func (a *App) initMailer(ctx context.Context) (mailer.Mailer, error) {
	err := a.InitProducer(serviceName)
	if err == nil {
		return mailer.NewProducer(a.Producer, a.Config.Broker.Kafka.MailTopic, serviceName, a.Logger), nil
	}

	a.Logger.WarnwCtx(ctx, "Mail producer unavailable, sending mail in-process", "error", err)
	renderer, err := mailer.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to load mail templates: %w", err)
	}
	return mailer.NewDispatcher(renderer, mailer.NewSender(a.Config.Mail, a.Logger), a.Logger), nil
}

func (a *App) initRouter(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(serviceName))
		router.Use(tracing.TraceIDMiddleware())
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.Config.Management.RateLimit.Enabled {
		rateLimitConfig := ratelimit.RateLimitConfig{
			RPS:             a.Config.Management.RateLimit.RPS,
			Burst:           a.Config.Management.RateLimit.Burst,
			CleanupInterval: time.Duration(a.Config.Management.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.Config.Management.RateLimit.MaxAge) * time.Second,
		}
		a.limiter = ratelimit.NewLimiter(rateLimitConfig, ratelimit.ClientIPKey)
		router.Use(a.limiter.Middleware())
		a.Logger.InfowCtx(ctx, "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	if err := dashboard.RegisterValidators(); err != nil {
		return err
	}

	mail, err := a.initMailer(ctx)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenManager(a.Config.Auth.JWT)
	if err != nil {
		return fmt.Errorf("failed to create token manager: %w", err)
	}
	passwords := auth.NewPasswordHasher(a.Config.Auth.BcryptCost)

	users := user.NewRepository(a.Stores.Postgres)
	actionTokens := actiontoken.NewRepository(a.Stores.Postgres)
	analyticsStore := analytics.NewStore(a.Stores.Analytics)

	prefsBreaker := circuitbreaker.NewWrapper(circuitbreaker.FromConfig("redis-preferences", a.Config.CircuitBreaker))
	prefs := preferences.NewRedisStore(a.Stores.Redis, prefsBreaker, a.Logger)

	projects := project.NewRepository(a.Stores.Postgres)

	userService := user.NewService(users, user.Dependencies{
		Projects:  projects,
		Tokens:    actionTokens,
		Mailer:    mail,
		Passwords: passwords,
	},
		user.WithAnalytics(analyticsStore),
		user.WithCooldown(user.NewRedisCooldown(a.Stores.Redis, a.Config.Management.ConfirmationCooldown, a.Logger)),
		user.WithManagementConfig(a.Config.Management),
		user.WithLogger(a.Logger),
	)

	authService := auth.NewService(users, actionTokens, passwords, tokens,
		auth.NewGoogleVerifier(a.Config.Auth.Google, a.Config.CircuitBreaker), mail, a.Logger)

	dashboardService := dashboard.NewService(analyticsStore, prefs, projects, dashboard.NewLoader(), a.Config.Dashboard, a.Logger)

	authenticate := auth.Authenticate(tokens)
	guards := user.Guards{
		Authenticate: authenticate,
		Member:       auth.RequireRoles(constants.RoleCustomer, constants.RoleAdmin),
		Admin:        auth.RequireRoles(constants.RoleAdmin),
	}

	auth.NewHandler(authService, a.Logger, a.Config.Management.ClientURL).RegisterRoutes(router)
	user.NewHandler(userService, a.Logger, a.Config.Management.Selfhosted, a.Config.Management.ClientURL).RegisterRoutes(router, guards)
	dashboard.NewHandler(dashboardService, prefs, a.Logger).RegisterRoutes(router, authenticate)

	metrics.RegisterAPIMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterCircuitBreakerMetrics()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.Stores.Postgres))
	healthRegistry.RegisterOptional(health.NewRedisChecker(a.Stores.Redis))
	healthRegistry.RegisterOptional(health.NewMongoDBChecker(a.Stores.Mongo))

	router.GET("/health", healthRegistry.Handler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.router = router
	return nil
}

func (a *App) Run(ctx context.Context) error {
	if a.limiter != nil {
		go a.limiter.RunCleanup(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		a.Logger.InfowCtx(ctx, "Server listening", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.InfowCtx(ctx, "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	var serverErr error
	if a.server != nil {
		serverErr = a.server.Shutdown(shutdownCtx)
	}

	return a.Base.Shutdown(shutdownCtx, func(ctx context.Context) []error {
		var errs []error
		if serverErr != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", serverErr))
		}
		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}
		return errs
	})
}
