package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gymhub_app_echo/internal/config"
	"gymhub_app_echo/internal/handlers"
	"gymhub_app_echo/internal/logger"
	"gymhub_app_echo/internal/models"
	"gymhub_app_echo/internal/services"
)

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
	if err := services.AutoMigrate(db); err != nil {
		slog.Error("failed to run database migrations", "err", err)
		os.Exit(1)
	}

	// Optional integrations degrade to disabled features
	var cache *services.RedisCache
	if cfg.RedisURL != "" {
		cache, err = services.NewRedisCache(cfg.RedisURL)
		if err != nil {
			slog.Warn("redis unavailable, caching and throttling disabled", "err", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	} else {
		slog.Warn("REDIS_URL not set, caching and throttling disabled")
	}

	var mailer services.Mailer
	if email := services.NewEmailService(cfg.SMTP); email.Configured() {
		mailer = email
	} else {
		slog.Warn("SMTP not configured, outgoing email disabled")
	}

	var gateway services.PaymentGatewayClient
	if cfg.Midtrans.ServerKey != "" {
		gateway = services.NewMidtransService(cfg.Midtrans)
	} else {
		slog.Warn("MIDTRANS_SERVER_KEY not set, hub checkout disabled")
	}

	if cfg.BiometricAPIKey == "" {
		slog.Warn("BIOMETRIC_API_KEY not set, biometric webhook will reject every request")
	}

	now := services.Clock(time.Now)
	tokens := services.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	users := services.NewUserService(db, mailer, now)

	e := handlers.NewRouter(handlers.Services{
		Tokens:        tokens,
		Auth:          services.NewAuthService(db, tokens, mailer, cache, now),
		Users:         users,
		Plans:         services.NewPlanService(db, now),
		Attendance:    services.NewAttendanceService(db, cfg.Location, now),
		Announcements: services.NewAnnouncementService(db, now),
		Sessions:      services.NewWorkoutSessionService(db, cache, models.DefaultCalorieEstimator, cfg.Location, now),
		Hub:           services.NewHubService(db, gateway, mailer, cfg.HubMonthlyPrice, cfg.AppURL, now),

		BiometricAPIKey: cfg.BiometricAPIKey,
		Now:             now,
	})

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", "err", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "err", err)
	}
}
