package tasks

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"gymhub_app_echo/internal/models"
	"gymhub_app_echo/internal/services"
)

// Deps carries what the task handlers need. Nil senders disable the
// matching delivery channel.
type Deps struct {
	DB            *gorm.DB
	Announcements *services.AnnouncementService
	Mailer        services.Mailer
	Whatsapp      services.WhatsappSender
	Push          services.PushNotifier
	CountryCode   string
	Clock         services.Clock
}

// DefineTasks registers all available tasks
func DefineTasks(r *Registry, d Deps) {
	now := d.Clock
	if now == nil {
		now = time.Now
	}

	r.RegisterDefinition(&LogInfoTask{})
	r.RegisterDefinition(&ExpireHubAccessTask{db: d.DB, now: now})
	r.RegisterDefinition(&HubExpiryReminderTask{db: d.DB, mailer: d.Mailer, now: now})
	r.RegisterDefinition(&SendAnnouncementTask{
		db:            d.DB,
		announcements: d.Announcements,
		mailer:        d.Mailer,
		whatsapp:      d.Whatsapp,
		push:          d.Push,
		countryCode:   d.CountryCode,
		now:           now,
	})
}

// recurringTask is a housekeeping task every deployment runs
type recurringTask struct {
	name string
	rule string
	hour int
	args map[string]interface{}
}

var housekeeping = []recurringTask{
	{name: models.TaskExpireHubAccess, rule: "FREQ=DAILY", hour: 0},
	{name: models.TaskHubExpiryReminder, rule: "FREQ=DAILY", hour: 9, args: map[string]interface{}{"days_before": defaultReminderDays}},
}

// SeedRecurring creates the daily housekeeping tasks when they are missing.
// It is safe to call on every worker start.
func SeedRecurring(ctx context.Context, db *gorm.DB, now time.Time, loc *time.Location) (int, error) {
	created := 0
	for _, h := range housekeeping {
		var n int64
		if err := db.WithContext(ctx).Model(&models.ScheduledTask{}).
			Where("task_name = ? AND task_type = ? AND status IN ?", h.name, models.ScheduledTaskTypeRecurring,
				[]models.ScheduledTaskStatus{models.ScheduledTaskStatusActive, models.ScheduledTaskStatusRunning}).
			Count(&n).Error; err != nil {
			return created, fmt.Errorf("failed to check %s: %w", h.name, err)
		}
		if n > 0 {
			continue
		}

		local := now.In(loc)
		due := time.Date(local.Year(), local.Month(), local.Day(), h.hour, 0, 0, 0, loc)
		if !due.After(now) {
			due = due.AddDate(0, 0, 1)
		}
		rule := h.rule
		args := h.args
		if args == nil {
			args = map[string]interface{}{}
		}
		task, err := models.BuildScheduledTask(h.name, args, due, &rule, models.ScheduledTaskTypeRecurring, 1)
		if err != nil {
			return created, err
		}
		if err := db.WithContext(ctx).Create(task).Error; err != nil {
			return created, fmt.Errorf("failed to seed %s: %w", h.name, err)
		}
		created++
	}
	return created, nil
}
