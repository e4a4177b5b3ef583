package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"pulse/internal/config"
	"pulse/internal/constants"
	"pulse/internal/logger"
	"pulse/internal/mailer"
	"pulse/pkg/bootstrap"
	"pulse/pkg/health"
	"pulse/pkg/metrics"
	"pulse/pkg/tracing"
)

const serviceName = "mailer-service"

type App struct {
	*bootstrap.Base
	dispatcher     *mailer.Dispatcher
	tracerProvider *tracing.TracerProvider
	server         *http.Server
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

	renderer, err := mailer.NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to load mail templates: %w", err)
	}
	a.dispatcher = mailer.NewDispatcher(renderer, mailer.NewSender(a.Config.Mail, a.Logger), a.Logger)

	if err := a.InitConsumer(serviceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	metrics.RegisterMailerMetrics()
	metrics.RegisterBrokerMetrics()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewFuncChecker("templates", func(ctx context.Context) error {
		if !renderer.Has(mailer.TemplateSignUp) {
			return errors.New("templates not loaded")
		}
		return nil
	}))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `{"status":"%s"}`, h.Status)
	})

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: mux,
	}

	a.Logger.InfowCtx(ctx, "Mailer initialized", "smtp_enabled", a.Config.Mail.Enabled, "topic", a.Config.Broker.Kafka.MailTopic)
	return nil
}

// Run serves metrics and health while consuming the mail topic, until ctx
// is done or either of them fails.
func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		err := a.Consumer.Consume(gCtx, a.Config.Broker.Kafka.MailTopic, a.dispatcher.Handle)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.Base.Shutdown(ctx, func(ctx context.Context) []error {
		if a.tracerProvider == nil {
			return nil
		}
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			return []error{fmt.Errorf("tracer provider shutdown error: %w", err)}
		}
		return nil
	})
}
