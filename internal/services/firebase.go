package services

import (
	"context"
	"fmt"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"gymhub_app_echo/internal/models"
)

// AnnouncementTopic is the FCM topic member apps subscribe to
const AnnouncementTopic = "announcements"

// PushNotifier publishes announcement pushes
type PushNotifier interface {
	PushAnnouncement(ctx context.Context, a models.Announcement) error
}

// FirebasePush sends pushes through Firebase Cloud Messaging
type FirebasePush struct {
	client *messaging.Client
}

// InitFirebasePush initializes the Firebase Admin SDK messaging client
func InitFirebasePush(ctx context.Context, credPath string) (*FirebasePush, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credPath))
	if err != nil {
		return nil, err
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, err
	}
	return &FirebasePush{client: client}, nil
}

// PushAnnouncement notifies subscribed apps; clients re-check visibility on fetch
func (p *FirebasePush) PushAnnouncement(ctx context.Context, a models.Announcement) error {
	msg := &messaging.Message{
		Topic: AnnouncementTopic,
		Notification: &messaging.Notification{
			Title: a.Title,
			Body:  truncate(a.Message, 180),
		},
		Data: map[string]string{
			"announcement_id": strconv.FormatUint(uint64(a.ID), 10),
			"priority":        string(a.Priority),
			"category":        a.Category,
		},
	}
	if a.Priority == models.PriorityCritical {
		msg.Android = &messaging.AndroidConfig{Priority: "high"}
	}
	if _, err := p.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
