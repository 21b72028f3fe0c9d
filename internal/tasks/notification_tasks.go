package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"gymhub_app_echo/internal/models"
	"gymhub_app_echo/internal/services"
)

const retryDelay = 5 * time.Minute

var errChannelDisabled = errors.New("delivery channel not configured")

// SendAnnouncementArgs are the arguments of a send_announcement task. The
// first run has no UserIDs and targets the whole audience; retries carry
// only the recipients that failed.
type SendAnnouncementArgs struct {
	AnnouncementID uint   `json:"announcement_id"`
	UserIDs        []uint `json:"user_ids,omitempty"`
	AttemptCount   int    `json:"attempt_count"`
}

// SendAnnouncementTask pushes a published announcement to the app topic and
// delivers it to each recipient over their preferred channel
type SendAnnouncementTask struct {
	db            *gorm.DB
	announcements *services.AnnouncementService
	mailer        services.Mailer
	whatsapp      services.WhatsappSender
	push          services.PushNotifier
	countryCode   string
	now           services.Clock
}

func (t *SendAnnouncementTask) TaskID() string {
	return models.TaskSendAnnouncement
}

type deliveryReport struct {
	total, success, skipped int
	failures                []string
	failedUsers             []uint
}

func (t *SendAnnouncementTask) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	args, err := parseArgs[SendAnnouncementArgs](task.Arguments)
	if err != nil {
		return nil, err
	}
	if args.AnnouncementID == 0 {
		return nil, fmt.Errorf("announcement_id not provided or invalid")
	}

	var a models.Announcement
	if err := t.db.WithContext(ctx).First(&a, args.AnnouncementID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return map[string]interface{}{"status": "skipped", "message": "announcement was deleted"}, nil
		}
		return nil, fmt.Errorf("failed to load announcement: %w", err)
	}

	now := t.now()
	if !a.IsActive || (a.ExpiresAt != nil && a.ExpiresAt.Before(now)) {
		return map[string]interface{}{"status": "skipped", "message": "announcement is not live"}, nil
	}

	result := map[string]interface{}{"announcement_id": a.ID, "attempt": args.AttemptCount}

	// the topic push goes out once, on the first attempt
	if args.AttemptCount == 0 && t.push != nil {
		if err := t.push.PushAnnouncement(ctx, a); err != nil {
			slog.Warn("announcement push failed", "announcement_id", a.ID, "err", err)
			result["push"] = "failed"
		} else {
			result["push"] = "sent"
		}
	}

	recipients, err := t.recipients(ctx, a, args.UserIDs, now)
	if err != nil {
		return nil, err
	}
	report, err := t.deliver(ctx, a, recipients)
	if err != nil {
		return nil, err
	}

	result["total"] = report.total
	result["success"] = report.success
	result["skipped"] = report.skipped
	result["failure"] = len(report.failedUsers)

	if len(report.failedUsers) == 0 {
		return result, nil
	}
	result["errors"] = report.failures

	next := args.AttemptCount + 1
	if next >= task.MaxAttempt {
		slog.Warn("announcement delivery gave up", "announcement_id", a.ID, "failed_users", len(report.failedUsers))
		return result, fmt.Errorf("max attempts reached, failed to deliver to %d users", len(report.failedUsers))
	}

	retry, err := models.BuildScheduledTask(t.TaskID(), SendAnnouncementArgs{
		AnnouncementID: a.ID,
		UserIDs:        report.failedUsers,
		AttemptCount:   next,
	}, now.Add(retryDelay), nil, models.ScheduledTaskTypeOneTime, task.MaxAttempt)
	if err != nil {
		return nil, err
	}
	if err := t.db.WithContext(ctx).Create(retry).Error; err != nil {
		return nil, fmt.Errorf("failed to schedule retry: %w", err)
	}
	slog.Info("announcement delivery rescheduled", "announcement_id", a.ID, "failed_users", len(report.failedUsers), "attempt", next)
	result["retry_task_id"] = retry.ID
	return result, nil
}

// recipients resolves the audience, or re-checks visibility for a retry list
func (t *SendAnnouncementTask) recipients(ctx context.Context, a models.Announcement, ids []uint, now time.Time) ([]models.User, error) {
	if len(ids) == 0 {
		return t.announcements.Recipients(ctx, a)
	}
	var users []models.User
	if err := t.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to load recipients: %w", err)
	}
	out := users[:0]
	for i := range users {
		if a.Audience.Includes(&users[i], now) {
			out = append(out, users[i])
		}
	}
	return out, nil
}

func (t *SendAnnouncementTask) deliver(ctx context.Context, a models.Announcement, users []models.User) (*deliveryReport, error) {
	report := &deliveryReport{total: len(users)}
	if len(users) == 0 {
		return report, nil
	}

	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	var rows []models.UserNotifPreference
	if err := t.db.WithContext(ctx).Where("user_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	prefs := make(map[uint]models.UserNotifPreference, len(rows))
	for _, p := range rows {
		prefs[p.UserID] = p
	}

	// members sharing a WhatsApp group get one message
	sentGroups := map[string]bool{}

	for _, u := range users {
		pref, ok := prefs[u.ID]
		if !ok {
			pref = models.DefaultNotifPreference(u.ID)
		}

		var err error
		switch pref.Channel {
		case models.NotificationChannelEmail:
			err = t.sendEmail(ctx, a, u)
		case models.NotificationChannelWhatsapp:
			var chatID string
			chatID, err = t.chatID(u, pref)
			if err == nil {
				if sentGroups[chatID] {
					report.success++
					continue
				}
				err = t.sendWhatsapp(ctx, a, chatID)
				if err == nil && pref.WhatsappTargetType == models.WhatsappTargetTypeGroup {
					sentGroups[chatID] = true
				}
			}
		default:
			report.skipped++
			continue
		}

		switch {
		case err == nil:
			report.success++
		case errors.Is(err, errChannelDisabled):
			report.skipped++
		default:
			slog.Warn("announcement delivery failed", "user_id", u.ID, "channel", pref.Channel, "err", err)
			report.failures = append(report.failures, fmt.Sprintf("user %d: %v", u.ID, err))
			report.failedUsers = append(report.failedUsers, u.ID)
		}
	}
	return report, nil
}

func (t *SendAnnouncementTask) sendEmail(ctx context.Context, a models.Announcement, u models.User) error {
	if t.mailer == nil {
		return errChannelDisabled
	}
	return t.mailer.SendTemplate(ctx, u.Email, services.TemplateAnnouncement, map[string]string{
		"name":    u.Name,
		"title":   a.Title,
		"message": a.Message,
	})
}

func (t *SendAnnouncementTask) chatID(u models.User, pref models.UserNotifPreference) (string, error) {
	if pref.WhatsappTargetType == models.WhatsappTargetTypeGroup {
		if strings.TrimSpace(pref.WhatsappGroupID) == "" {
			return "", fmt.Errorf("group ID is empty")
		}
		return services.GroupChatID(strings.TrimSpace(pref.WhatsappGroupID)), nil
	}
	if strings.TrimSpace(u.Phone) == "" {
		return "", fmt.Errorf("phone number is empty")
	}
	return services.NormalizeChatID(u.Phone, t.countryCode), nil
}

func (t *SendAnnouncementTask) sendWhatsapp(ctx context.Context, a models.Announcement, chatID string) error {
	if t.whatsapp == nil {
		return errChannelDisabled
	}
	return t.whatsapp.SendMessage(ctx, chatID, fmt.Sprintf("*%s*\n\n%s", a.Title, a.Message))
}

// parseArgs decodes a task's JSON argument map into T
func parseArgs[T any](raw map[string]interface{}) (T, error) {
	var out T
	b, err := json.Marshal(raw)
	if err != nil {
		return out, fmt.Errorf("failed to marshal args: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("failed to unmarshal args: %w", err)
	}
	return out, nil
}

// argUint reads a numeric argument that may have round-tripped through JSON
func argUint(args map[string]interface{}, key string) (uint, bool) {
	switch v := args[key].(type) {
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case uint:
		return v, true
	case json.Number:
		n, err := v.Int64()
		if err != nil || n < 0 {
			return 0, false
		}
		return uint(n), true
	}
	return 0, false
}
