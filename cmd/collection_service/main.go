package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/cleardue/golang_services/internal/campaign_service/adapters/mailprovider"
	campaignapp "github.com/cleardue/golang_services/internal/campaign_service/app"
	campaignpg "github.com/cleardue/golang_services/internal/campaign_service/repository/postgres"
	campaignhttp "github.com/cleardue/golang_services/internal/campaign_service/transport/http"
	deliveryhttp "github.com/cleardue/golang_services/internal/delivery_service/adapters/http"
	deliveryapp "github.com/cleardue/golang_services/internal/delivery_service/app"
	deliverypg "github.com/cleardue/golang_services/internal/delivery_service/repository/postgres"
	"github.com/cleardue/golang_services/internal/platform/config"
	"github.com/cleardue/golang_services/internal/platform/database"
	"github.com/cleardue/golang_services/internal/platform/logger"
	"github.com/cleardue/golang_services/internal/platform/messagebroker"
	reminderapp "github.com/cleardue/golang_services/internal/reminder_service/app"
	reminderdomain "github.com/cleardue/golang_services/internal/reminder_service/domain"
	reminderpg "github.com/cleardue/golang_services/internal/reminder_service/repository/postgres"
	reminderhttp "github.com/cleardue/golang_services/internal/reminder_service/transport/http"
)

const (
	serviceName     = "collection-service"
	shutdownTimeout = 15 * time.Second
)

// httpLogger logs every HTTP request using slog, with the chi request id.
func httpLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			requestID := chiMiddleware.GetReqID(r.Context())

			next.ServeHTTP(ww, r)

			logger.LogAttrs(r.Context(), slog.LevelInfo, "HTTP request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", ww.Status()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.String("request_id", requestID),
				slog.String("remote_ip", r.RemoteAddr),
			)
		}
		return http.HandlerFunc(fn)
	}
}

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load("./configs", "config.defaults")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	appLogger := logger.New(cfg.LogLevel).With("service", serviceName)

	appLogger.Info("Collection service starting...",
		"http_port", cfg.ServerPort,
		"log_level", cfg.LogLevel,
		"mail_provider", cfg.MailProviderName,
	)

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Successfully connected to PostgreSQL")

	natsClient, err := messagebroker.NewNATSClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("Successfully connected to NATS")

	// Repositories.
	campaignRepo := campaignpg.NewPgCampaignRepository(dbPool, appLogger)
	sendLogRepo := campaignpg.NewPgSendLogRepository(dbPool, appLogger)
	quotaRepo := campaignpg.NewPgQuotaRepository(dbPool, appLogger)
	deliveryRepo := deliverypg.NewPgDeliveryRepository(dbPool, appLogger)
	invoiceRepo := reminderpg.NewPgInvoiceRepository(dbPool, appLogger)
	customerRepo := reminderpg.NewPgCustomerRepository(dbPool, appLogger)
	bucketConfigRepo := reminderpg.NewPgBucketConfigRepository(dbPool, appLogger)

	// Mail provider selection. The mock provider is the default for local
	// and test environments.
	var provider mailprovider.Adapter
	switch cfg.MailProviderName {
	case "postmark":
		provider = mailprovider.NewPostmarkProvider(appLogger, cfg.MailProviderAPIURL, cfg.MailProviderAPIKey, nil)
	default:
		provider = mailprovider.NewMockMailProvider(appLogger)
	}
	appLogger.Info("Mail provider initialized", "name", provider.GetName())

	runnerCfg := campaignapp.RunnerConfig{
		BatchSize:      cfg.CampaignBatchSize,
		BatchDelay:     cfg.CampaignBatchDelay,
		MaxRetries:     cfg.CampaignMaxRetries,
		RetryBaseDelay: cfg.CampaignRetryBaseDelay,
		DailyQuota:     cfg.CompanyDailySendQuota,
		FromAddress:    cfg.MailFromAddress,
		FromName:       cfg.MailFromName,
	}
	campaignRunner := campaignapp.NewCampaignRunner(
		campaignRepo, sendLogRepo, quotaRepo, provider, natsClient, appLogger, runnerCfg)
	appLogger.Info("Campaign runner initialized",
		"batch_size", runnerCfg.BatchSize, "batch_delay", runnerCfg.BatchDelay.String())

	eventProcessor := deliveryapp.NewEventProcessor(deliveryRepo, natsClient, appLogger)

	reminderService := reminderapp.NewReminderAppService(
		invoiceRepo, customerRepo, bucketConfigRepo, campaignRepo, campaignRunner,
		reminderdomain.DefaultConsolidationPolicy(), appLogger)

	validate := validator.New(validator.WithRequiredStructEnabled())

	campaignHandler := campaignhttp.NewCampaignHandler(campaignRunner, campaignRepo, validate, appLogger)
	webhookHandler := deliveryhttp.NewWebhookHandler(eventProcessor, appLogger)
	evaluationHandler := reminderhttp.NewEvaluationHandler(reminderService, appLogger)

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Recoverer)
	router.Use(httpLogger(appLogger))

	router.Route("/campaigns", campaignHandler.RegisterRoutes)
	router.Post("/webhooks/email/events", webhookHandler.HandleDeliveryEvent)
	router.Route("/internal", evaluationHandler.RegisterRoutes)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		appLogger.Info("HTTP server starting", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server ListenAndServe error", "error", err)
			return err
		}
		appLogger.Info("HTTP server shut down gracefully.")
		return nil
	})

	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)

	g.Go(func() error {
		select {
		case sig := <-stopSignal:
			appLogger.Info("Received termination signal", "signal", sig.String())
			mainCancel()
			return nil
		case <-groupCtx.Done():
			return nil
		}
	})

	g.Go(func() error {
		<-groupCtx.Done()
		appLogger.Info("Initiating graceful shutdown...")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		var shutdownErrors error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("HTTP server graceful shutdown failed", "error", err)
			shutdownErrors = errors.Join(shutdownErrors, fmt.Errorf("http shutdown: %w", err))
		}

		// Let in-flight campaign execution loops finish their current batch
		// and persist a terminal or paused status before the process exits.
		appLogger.Info("Waiting for active campaign loops to drain...")
		campaignRunner.Wait()
		appLogger.Info("Campaign loops drained.")

		return shutdownErrors
	})

	appLogger.Info("Collection service is ready and running.")
	if err := g.Wait(); err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Service group encountered an error during run/shutdown", "error", err)
		}
	}

	appLogger.Info("Collection service shut down successfully.")
}
