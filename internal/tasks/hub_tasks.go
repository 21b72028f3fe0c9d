package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"gymhub_app_echo/internal/models"
	"gymhub_app_echo/internal/services"
)

const defaultReminderDays = 3

// ExpireHubAccessTask clears the premium hub flag of members whose window
// has ended. It is seeded as a daily recurring task.
type ExpireHubAccessTask struct {
	db  *gorm.DB
	now services.Clock
}

func (t *ExpireHubAccessTask) TaskID() string {
	return models.TaskExpireHubAccess
}

func (t *ExpireHubAccessTask) HandleExecution(ctx context.Context, _ models.ScheduledTask) (map[string]interface{}, error) {
	now := t.now()
	res := t.db.WithContext(ctx).Model(&models.User{}).
		Where("has_premium_hub_access = ? AND hub_access_end_date IS NOT NULL AND hub_access_end_date < ?", true, now).
		Update("has_premium_hub_access", false)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to expire hub access: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		slog.Info("hub access expired", "users", res.RowsAffected)
	}
	return map[string]interface{}{
		"status":  "success",
		"expired": res.RowsAffected,
	}, nil
}

// HubExpiryReminderTask emails members whose access ends in the day that
// lies days_before days from now, so a daily run reminds each member once.
type HubExpiryReminderTask struct {
	db     *gorm.DB
	mailer services.Mailer
	now    services.Clock
}

func (t *HubExpiryReminderTask) TaskID() string {
	return models.TaskHubExpiryReminder
}

func (t *HubExpiryReminderTask) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	if t.mailer == nil {
		return map[string]interface{}{"status": "skipped", "message": "email is not configured"}, nil
	}

	days := defaultReminderDays
	if v, ok := argUint(task.Arguments, "days_before"); ok && v > 0 {
		days = int(v)
	}
	now := t.now()
	from := now.Add(time.Duration(days-1) * 24 * time.Hour)
	to := now.Add(time.Duration(days) * 24 * time.Hour)

	var users []models.User
	if err := t.db.WithContext(ctx).
		Where("has_premium_hub_access = ? AND hub_access_end_date > ? AND hub_access_end_date <= ?", true, from, to).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to load expiring members: %w", err)
	}

	sent, failed := 0, 0
	for _, u := range users {
		err := t.mailer.SendTemplate(ctx, u.Email, services.TemplateHubExpiring, map[string]string{
			"name":     u.Name,
			"end_date": u.HubAccessEndDate.Format("2 January 2006"),
		})
		if err != nil {
			slog.Warn("hub expiry reminder failed", "user_id", u.ID, "err", err)
			failed++
			continue
		}
		sent++
	}

	return map[string]interface{}{
		"status":  "success",
		"matched": len(users),
		"sent":    sent,
		"failed":  failed,
	}, nil
}
