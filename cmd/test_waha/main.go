package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"gymhub_app_echo/internal/config"
	"gymhub_app_echo/internal/services"
)

// Sends one WhatsApp message through the configured WAHA instance, to check
// the credentials the worker will use for announcement delivery.
func main() {
	phone := flag.String("phone", "", "Phone number (e.g. 08123456789 or 628123456789)")
	group := flag.String("group", "", "WhatsApp group id, instead of -phone")
	msg := flag.String("msg", "Test message from the gym announcement worker", "Message body")
	flag.Parse()

	if *phone == "" && *group == "" {
		slog.Error("provide -phone or -group")
		os.Exit(1)
	}

	cfg := config.Load()
	service := services.NewWahaService(cfg.Waha)

	chatID := services.NormalizeChatID(*phone, cfg.Waha.CountryCode)
	if *group != "" {
		chatID = services.GroupChatID(*group)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	slog.Info("sending message", "chat_id", chatID)
	if err := service.SendMessage(ctx, chatID, *msg); err != nil {
		slog.Error("failed to send message", "err", err)
		os.Exit(1)
	}
	slog.Info("message sent")
}
