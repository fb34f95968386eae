package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "localclaw/docs"
	"localclaw/internal/config"
	"localclaw/internal/handlers"
	"localclaw/internal/jobs"
	"localclaw/internal/middleware"
	"localclaw/internal/repositories"
	"localclaw/internal/services"
	"localclaw/pkg/database"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting LocalClaw orchestrator",
		zap.String("version", middleware.Version),
		zap.Int("port", cfg.Server.Port),
		zap.String("image", cfg.Runtime.Image),
	)

	pool, err := database.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConnections, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	if cfg.Database.EnsureSchema {
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}
	}

	rt, err := newRuntime(cfg, logger)
	if err != nil {
		return err
	}

	locker, redisClient, err := newLocker(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	archive, err := newArchive(cfg.Archive, cfg.Runtime.CallTimeout, logger)
	if err != nil {
		return err
	}

	ollama, err := services.NewOllamaClient(cfg.Ollama.URL)
	if err != nil {
		return err
	}

	// Repositories and services
	usageRepo := repositories.NewUsageRepo(pool)
	admissionSvc := services.NewAdmissionService(usageRepo, rt.clock, cfg.Quota.DailySeconds, cfg.Quota.QuantumSeconds, rt.metrics, logger)
	modelSvc := services.NewModelService(ollama, cfg.Ollama.PullTimeout, rt.metrics, logger)
	synthesizer := services.NewConfigSynthesizer(cfg.Gateway.Token, cfg.Ollama.URL, cfg.Ollama.Model)
	provisionerSvc := services.NewProvisionerService(rt.backend, rt.agents, services.ProvisionerOptions{
		Image:       cfg.Runtime.Image,
		Network:     cfg.Runtime.Network,
		CallTimeout: cfg.Runtime.CallTimeout,
		PullTimeout: cfg.Runtime.PullTimeout,
	}, rt.metrics, logger)
	deploySvc := services.NewDeployService(admissionSvc, rt.reaper, modelSvc, synthesizer, provisionerSvc, archive, locker, services.DeployOptions{
		GatewayToken:  cfg.Gateway.Token,
		PublicBaseURL: cfg.Runtime.PublicBaseURL,
		NamePrefixes:  cfg.Runtime.NamePrefixes,
	}, rt.metrics, logger)
	pairingSvc := services.NewPairingService(rt.backend, cfg.Runtime.NamePrefixes, cfg.Runtime.CallTimeout, rt.metrics, logger)

	notifier := services.NewNotifier(services.SMTPOptions{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	}, logger)
	razorpaySvc := services.NewRazorpayService(cfg.Billing.KeyID, cfg.Billing.KeySecret, cfg.Billing.WebhookSecret)
	billingSvc := services.NewBillingService(razorpaySvc, usageRepo, notifier, rt.clock, services.BillingOptions{
		PlanID:     cfg.Billing.PlanID,
		PassAmount: cfg.Billing.PassAmount,
		PassDays:   cfg.Billing.PassDays,
	}, logger)

	// Background jobs
	if cfg.Jobs.Enabled {
		scheduler, err := jobs.NewJobScheduler(rt.clock, rt.backend, rt.agents, locker, jobs.Options{
			DirectorySweepInterval: cfg.Jobs.DirectorySweepInterval,
			GaugeInterval:          cfg.Jobs.GaugeInterval,
			Prefixes:               cfg.Runtime.NamePrefixes,
			CallTimeout:            cfg.Runtime.CallTimeout,
		}, rt.metrics, logger)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer func() {
			if err := scheduler.Stop(); err != nil {
				logger.Error("Failed to stop job scheduler", zap.Error(err))
			}
		}()
	}

	// HTTP
	jwtMiddleware, releaseJWKS, err := middleware.NewJWTMiddleware(middleware.JWTOptions{
		Secret:  cfg.Auth.JWTSecret,
		JWKSURL: cfg.Auth.JWKSURL,
	}, logger)
	if err != nil {
		return err
	}
	defer releaseJWKS()

	healthChecks := map[string]handlers.HealthCheck{
		"database": pool.Ping,
		"docker":   rt.backend.Ping,
	}
	if redisClient != nil {
		healthChecks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	agentHandlers := handlers.NewAgentHandlers(deploySvc, admissionSvc, pairingSvc, logger)
	billingHandlers := handlers.NewBillingHandlers(billingSvc, logger)
	webhookHandlers := handlers.NewWebhookHandlers(billingSvc, logger)
	healthHandlers := handlers.NewHealthHandlers(healthChecks, 3*time.Second, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	e.Use(requestLogger(logger))
	e.Use(echoMiddleware.CORS())
	e.Pre(echoMiddleware.RemoveTrailingSlash())

	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)
	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{})))
	}
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	e.POST("/webhooks/razorpay", webhookHandlers.RazorpayWebhook)

	v1 := middleware.VersionRoute(e, "v1", jwtMiddleware)
	v1.POST("/agents/deploy", agentHandlers.DeployAgent)
	v1.POST("/agents/heartbeat", agentHandlers.Heartbeat)
	v1.GET("/agents/pairing", agentHandlers.PairingStream)
	v1.POST("/billing/checkout", billingHandlers.Checkout)

	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		logger.Info("HTTP server started", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errChan:
		logger.Error("HTTP server error", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down HTTP server", zap.Error(err))
	}
	logger.Info("LocalClaw orchestrator stopped")
	return nil
}

// requestLogger routes echo's access log into zap
func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health" || c.Path() == "/health/ready"
		},
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("path", v.URIPath),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				logger.Warn("Request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("Request", fields...)
			return nil
		},
	})
}
