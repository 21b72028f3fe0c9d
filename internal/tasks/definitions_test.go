package tasks

import (
	"context"
	"testing"
	"time"

	"gymhub_app_echo/internal/models"
)

func TestDefineTasks(t *testing.T) {
	r := NewRegistry()
	DefineTasks(r, Deps{DB: newTestDB(t)})

	for _, name := range []string{models.TaskLogInfo, models.TaskExpireHubAccess, models.TaskHubExpiryReminder, models.TaskSendAnnouncement} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("%s is not registered", name)
		}
	}
	if _, ok := r.Get("unknown"); ok {
		t.Errorf("unknown task resolved")
	}
}

func TestSeedRecurring(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	loc := time.FixedZone("WIB", 7*3600)
	// 10:30 local, past both seed hours
	now := time.Date(2026, 9, 1, 3, 30, 0, 0, time.UTC)

	n, err := SeedRecurring(ctx, db, now, loc)
	if err != nil || n != 2 {
		t.Fatalf("first seed = %d, %v", n, err)
	}

	var seeded []models.ScheduledTask
	db.Order("task_name").Find(&seeded)
	wantDue := map[string]time.Time{
		models.TaskExpireHubAccess:   time.Date(2026, 9, 2, 0, 0, 0, 0, loc),
		models.TaskHubExpiryReminder: time.Date(2026, 9, 2, 9, 0, 0, 0, loc),
	}
	for _, task := range seeded {
		if task.TaskType != models.ScheduledTaskTypeRecurring || task.RecurringInterval == nil || *task.RecurringInterval != "FREQ=DAILY" {
			t.Errorf("%s: type %s rule %v", task.TaskName, task.TaskType, task.RecurringInterval)
		}
		if task.MaxAttempt != 1 {
			t.Errorf("%s: max attempt %d", task.TaskName, task.MaxAttempt)
		}
		if !task.Due.Equal(wantDue[task.TaskName]) {
			t.Errorf("%s: due %v, want %v", task.TaskName, task.Due, wantDue[task.TaskName])
		}
	}

	n, err = SeedRecurring(ctx, db, now, loc)
	if err != nil || n != 0 {
		t.Errorf("second seed = %d, %v", n, err)
	}

	// a disabled task no longer counts
	db.Model(&models.ScheduledTask{}).Where("task_name = ?", models.TaskExpireHubAccess).
		Update("status", models.ScheduledTaskStatusDisabled)
	n, err = SeedRecurring(ctx, db, now, loc)
	if err != nil || n != 1 {
		t.Errorf("reseed after disable = %d, %v", n, err)
	}
}
