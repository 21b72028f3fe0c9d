package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gymhub_app_echo/internal/config"
)

// WhatsappSender delivers a text message to a WhatsApp chat
type WhatsappSender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// WahaService talks to a WAHA (WhatsApp HTTP API) instance
type WahaService struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewWahaService(cfg config.WahaConfig) *WahaService {
	return &WahaService{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *WahaService) makeRequest(ctx context.Context, endpoint string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("request to %s failed with status %d: %s", endpoint, resp.StatusCode, string(body))
	}

	return nil
}

// NormalizeChatID adds the WhatsApp suffix and rewrites a local leading 0
// into the configured country code
func NormalizeChatID(chatID, countryCode string) string {
	chatID = strings.TrimSpace(chatID)

	if strings.HasSuffix(chatID, "@g.us") {
		return chatID
	}

	chatID = strings.TrimSuffix(chatID, "@c.us")
	chatID = strings.TrimPrefix(chatID, "+")
	chatID = strings.NewReplacer(" ", "", "-", "").Replace(chatID)

	if countryCode != "" && strings.HasPrefix(chatID, "0") {
		chatID = countryCode + strings.TrimPrefix(chatID, "0")
	}

	return chatID + "@c.us"
}

// GroupChatID turns a bare group id into a WAHA group chat id
func GroupChatID(groupID string) string {
	if strings.HasSuffix(groupID, "@g.us") {
		return groupID
	}
	return groupID + "@g.us"
}

// SendMessage marks the chat seen, then sends the text
func (s *WahaService) SendMessage(ctx context.Context, chatID, text string) error {
	if err := s.makeRequest(ctx, "/api/sendSeen", map[string]string{
		"chatId":  chatID,
		"session": "default",
	}); err != nil {
		return fmt.Errorf("failed to send seen: %w", err)
	}

	if err := s.makeRequest(ctx, "/api/sendText", map[string]string{
		"chatId":  chatID,
		"text":    text,
		"session": "default",
	}); err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}

	return nil
}
