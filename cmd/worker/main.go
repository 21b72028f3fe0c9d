package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gymhub_app_echo/internal/config"
	"gymhub_app_echo/internal/logger"
	"gymhub_app_echo/internal/services"
	"gymhub_app_echo/internal/tasks"
)

const pollInterval = 5 * time.Minute

func main() {
	cfg := config.Load()
	logger.Init(cfg.Log)

	if cfg.Database.URL == "" {
		slog.Error("DATABASE_URL not set")
		os.Exit(1)
	}
	db, err := services.InitDB(cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}

	// Create context that cancels on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := tasks.Deps{
		DB:            db,
		Announcements: services.NewAnnouncementService(db, time.Now),
		CountryCode:   cfg.Waha.CountryCode,
		Clock:         time.Now,
	}

	if email := services.NewEmailService(cfg.SMTP); email.Configured() {
		deps.Mailer = email
	} else {
		slog.Warn("SMTP not configured, email delivery disabled")
	}

	if cfg.Waha.BaseURL != "" && cfg.Waha.APIKey != "" {
		deps.Whatsapp = services.NewWahaService(cfg.Waha)
	} else {
		slog.Warn("WAHA not configured, WhatsApp delivery disabled")
	}

	if push, err := services.InitFirebasePush(ctx, cfg.FirebaseCredentialsPath); err != nil {
		slog.Warn("firebase initialization failed, push notifications disabled", "err", err)
	} else {
		deps.Push = push
	}

	registry := tasks.NewRegistry()
	tasks.DefineTasks(registry, deps)

	if n, err := tasks.SeedRecurring(ctx, db, time.Now(), cfg.Location); err != nil {
		slog.Error("failed to seed recurring tasks", "err", err)
	} else if n > 0 {
		slog.Info("seeded recurring tasks", "count", n)
	}

	slog.Info("worker started", "interval", pollInterval.String())
	tasks.NewRunner(db, registry, time.Now).Run(ctx, pollInterval)
	slog.Info("worker stopped")
}
