package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nasiyabot/backend/internal/audit"
	"github.com/nasiyabot/backend/internal/bot"
	"github.com/nasiyabot/backend/internal/config"
	"github.com/nasiyabot/backend/internal/database"
	"github.com/nasiyabot/backend/internal/handlers"
	applog "github.com/nasiyabot/backend/internal/logger"
	mW "github.com/nasiyabot/backend/internal/middleware"
	"github.com/nasiyabot/backend/internal/notify"
	"github.com/nasiyabot/backend/internal/scheduler"
	"github.com/nasiyabot/backend/internal/services"
	"github.com/nasiyabot/backend/internal/session"
	"github.com/nasiyabot/backend/internal/telegram"
	"go.uber.org/zap"
)

const webhookPath = "/webhook"

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := applog.New(&cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.FileUsed != "" {
		logger.Info("Configuration loaded", zap.String("file", cfg.FileUsed))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	store := database.InitDatabase(ctx, logger)
	defer store.Close()

	var sessions session.Store = session.NewMemoryStore()
	if cfg.Session.Backend == "redis" {
		if redisClient := database.InitRedis(ctx, logger); redisClient != nil {
			defer redisClient.Close()
			sessions = session.NewRedisStore(redisClient, cfg.Session.TTL)
		} else {
			logger.Warn("Falling back to in-memory sessions")
		}
	}

	// The HTTP timeout must outlast a long poll.
	client := telegram.NewClient(cfg.Bot.APIURL, cfg.Bot.Token, cfg.Bot.PollTimeout+15*time.Second, logger)
	notifier := notify.NewNotifier(client, logger)

	// Initialize services
	phones := services.NewPhoneService(cfg.PhoneRegion)
	identity := services.NewIdentityService(store, cfg.Admin.IDs, cfg.Admin.Usernames)
	ledger := services.NewLedgerService(store, phones, audit.NewAuditLogger(logger), logger)
	reports := services.NewReportService(store, phones, cfg.Location, logger)
	reminders := services.NewReminderService(store, notifier, cfg.Notify.ReminderDelay, logger)
	subscriptions := services.NewSubscriptionService(store, ledger, identity, notifier, cfg.Location, cfg.Admin.Contact, logger)
	backups := services.NewBackupService(store, reports, identity, notifier, cfg.Location, logger)

	dispatcher := bot.New(client, store, bot.Services{
		Ledger:    ledger,
		Identity:  identity,
		Reports:   reports,
		Reminders: reminders,
		Phones:    phones,
	}, sessions, notifier, bot.Config{
		AdminContact:   cfg.Admin.Contact,
		BroadcastDelay: cfg.Notify.BroadcastDelay,
	}, logger)

	// Daily jobs
	sched := scheduler.NewScheduler(scheduler.Config{
		Interval:   cfg.Schedule.Interval,
		Location:   cfg.Location,
		JobTimeout: 30 * time.Minute,
	}, logger)
	jobs := []struct {
		at  string
		job scheduler.Job
	}{
		{cfg.Schedule.DigestAt, reminders},
		{cfg.Schedule.SubscriptionAt, subscriptions},
		{cfg.Schedule.BackupAt, backups},
	}
	for _, j := range jobs {
		if err := sched.Register(j.at, j.job); err != nil {
			logger.Fatal("Failed to register job", zap.String("job", j.job.Name()), zap.Error(err))
		}
	}
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// Setup router
	r := chi.NewRouter()
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", handlers.NewHealthHandler(store.DB(), logger).Health)

	var webhook *handlers.WebhookHandler
	var poller sync.WaitGroup
	switch cfg.Bot.Mode {
	case "webhook":
		webhook = handlers.NewWebhookHandler(ctx, dispatcher, logger)
		r.With(mW.WebhookSecret(cfg.Bot.WebhookSecret)).Post(webhookPath, webhook.ServeUpdate)

		url := strings.TrimSuffix(cfg.Bot.WebhookURL, "/") + webhookPath
		if err := client.SetWebhook(ctx, url, cfg.Bot.WebhookSecret); err != nil {
			logger.Fatal("Failed to register webhook", zap.Error(err))
		}
		logger.Info("Webhook registered", zap.String("url", url))
	default:
		// A leftover webhook makes getUpdates fail with a conflict.
		if err := client.DeleteWebhook(ctx); err != nil {
			logger.Warn("Failed to delete webhook", zap.Error(err))
		}
		poller.Add(1)
		go func() {
			defer poller.Done()
			telegram.NewPoller(client, dispatcher, cfg.Bot.PollTimeout, logger).Run(ctx)
		}()
	}

	// Start server
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("addr", cfg.HTTPAddr), zap.String("mode", cfg.Bot.Mode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	logger.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if webhook != nil {
		webhook.Close()
	}
	poller.Wait()
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error("Scheduler did not stop cleanly", zap.Error(err))
	}

	logger.Info("Server stopped")
}
