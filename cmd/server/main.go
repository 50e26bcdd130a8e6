package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"platanotify/internal/api"
	"platanotify/internal/channel"
	"platanotify/internal/config"
	"platanotify/internal/db"
	"platanotify/internal/dispatch"
	"platanotify/internal/metrics"
	"platanotify/internal/notify"
	"platanotify/internal/reply"
	"platanotify/internal/sweep"
)

func main() {

	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ------------------------------------------------
	// Config
	// ------------------------------------------------
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ------------------------------------------------
	// Root Context + Shutdown
	// ------------------------------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	// ------------------------------------------------
	// Database
	// ------------------------------------------------
	store, err := db.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer store.Close()

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	metrics.Init()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Channel Adapters
	// ------------------------------------------------
	var emailProvider channel.EmailProvider
	switch cfg.EmailProvider {
	case "smtp":
		emailProvider = &channel.SMTPProvider{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
		}
	default:
		emailProvider = channel.NewMailgunProvider(cfg.MailgunDomain, cfg.MailgunAPIKey)
	}

	emailChannel := &channel.EmailChannel{Provider: emailProvider, From: cfg.EmailFrom}
	whatsappChannel := channel.NewWhatsAppChannel(
		cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom)

	// ------------------------------------------------
	// Dispatch Engine
	// ------------------------------------------------
	policy := dispatch.RetryPolicy{
		MaxAttempts:   cfg.RetryAttempts,
		InitialDelay:  cfg.RetryInitialDelay,
		BackoffFactor: cfg.RetryBackoffFactor,
		MaxDelay:      cfg.RetryMaxDelay,
	}

	sender := dispatch.NewSender(policy, logger, emailChannel, whatsappChannel)
	dispatcher := dispatch.NewDispatcher(sender, cfg.ConcurrencyLimit, logger)

	// ------------------------------------------------
	// Sweeps
	// ------------------------------------------------
	throttle := sweep.NewThrottleCache(cfg.ThrottleRetention)

	followup := sweep.NewFollowupSweep(store, dispatcher, cfg.SiteBaseURL, cfg.APIBaseURL, logger)
	availability := sweep.NewAvailabilitySweep(
		store, store, sender, throttle, cfg.SweepSendRate, cfg.SiteBaseURL, logger)

	scheduler, err := sweep.NewScheduler(cfg.SweepInterval, logger)
	if err != nil {
		logger.Fatal("scheduler init failed", zap.Error(err))
	}
	if err := scheduler.Add(ctx, followup); err != nil {
		logger.Fatal("scheduling visit followup sweep failed", zap.Error(err))
	}
	if err := scheduler.Add(ctx, availability); err != nil {
		logger.Fatal("scheduling availability sweep failed", zap.Error(err))
	}
	scheduler.Start()

	// ------------------------------------------------
	// HTTP API Server
	// ------------------------------------------------
	notifier := notify.NewService(store, dispatcher, cfg.SiteBaseURL, logger)
	replies := reply.NewHandler(store, store, sender, cfg.SiteBaseURL, logger)

	apiHandler := &api.Handler{
		Store:      store,
		Dispatcher: dispatcher,
		Notify:     notifier,
		Reply:      replies,
		Log:        logger,
	}

	apiServer := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: apiHandler.Routes(),
	}

	go func() {
		logger.Info("api server started", zap.String("port", cfg.APIPort))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Wait for shutdown
	// ------------------------------------------------
	<-ctx.Done()

	logger.Info("shutting down services...")

	if err := scheduler.Stop(); err != nil {
		logger.Error("scheduler shutdown failed", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}

	logger.Info("application shutdown complete")
}
