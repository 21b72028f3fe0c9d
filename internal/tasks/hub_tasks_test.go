package tasks

import (
	"context"
	"slices"
	"testing"
	"time"

	"gymhub_app_echo/internal/models"
	"gymhub_app_echo/internal/services"
)

var hubNow = time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

func hubMember(email string, active bool, end time.Time) *models.User {
	return &models.User{Name: email, Email: email, Role: models.RoleUser, HasPremiumHubAccess: active, HubAccessEndDate: &end}
}

func TestExpireHubAccess(t *testing.T) {
	db := newTestDB(t)
	task := &ExpireHubAccessTask{db: db, now: func() time.Time { return hubNow }}

	lapsed := hubMember("lapsed@example.com", true, hubNow.Add(-time.Minute))
	current := hubMember("current@example.com", true, hubNow.Add(time.Hour))
	revoked := hubMember("revoked@example.com", false, hubNow.Add(-48*time.Hour))
	for _, u := range []*models.User{lapsed, current, revoked} {
		mustCreate(t, db, u)
	}

	result, err := task.HandleExecution(context.Background(), models.ScheduledTask{})
	if err != nil {
		t.Fatalf("HandleExecution: %v", err)
	}
	if result["expired"] != int64(1) {
		t.Errorf("expired = %v, want 1", result["expired"])
	}

	tests := []struct {
		user *models.User
		want bool
	}{
		{lapsed, false},
		{current, true},
		{revoked, false},
	}
	for _, tt := range tests {
		var got models.User
		db.First(&got, tt.user.ID)
		if got.HasPremiumHubAccess != tt.want {
			t.Errorf("%s access = %v, want %v", got.Email, got.HasPremiumHubAccess, tt.want)
		}
		if got.HubAccessEndDate == nil {
			t.Errorf("%s end date was cleared", got.Email)
		}
	}

	// a second run finds nothing left to expire
	result, _ = task.HandleExecution(context.Background(), models.ScheduledTask{})
	if result["expired"] != int64(0) {
		t.Errorf("second run expired = %v", result["expired"])
	}
}

func TestHubExpiryReminderWindow(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{failFor: map[string]bool{"bounce@example.com": true}}
	task := &HubExpiryReminderTask{db: db, mailer: mailer, now: func() time.Time { return hubNow }}

	day := 24 * time.Hour
	members := []struct {
		email  string
		active bool
		end    time.Time
	}{
		{"inside@example.com", true, hubNow.Add(2*day + 3*time.Hour)},
		{"edge@example.com", true, hubNow.Add(3 * day)},
		{"bounce@example.com", true, hubNow.Add(2*day + time.Hour)},
		{"early@example.com", true, hubNow.Add(2 * day)},
		{"late@example.com", true, hubNow.Add(3*day + time.Minute)},
		{"inactive@example.com", false, hubNow.Add(2*day + 3*time.Hour)},
	}
	for _, m := range members {
		mustCreate(t, db, hubMember(m.email, m.active, m.end))
	}

	args := map[string]interface{}{"days_before": float64(3)}
	result, err := task.HandleExecution(context.Background(), models.ScheduledTask{Arguments: args})
	if err != nil {
		t.Fatalf("HandleExecution: %v", err)
	}
	if result["matched"] != 3 || result["sent"] != 2 || result["failed"] != 1 {
		t.Errorf("result = %v", result)
	}

	slices.Sort(mailer.sent)
	want := []string{
		services.TemplateHubExpiring + ":edge@example.com",
		services.TemplateHubExpiring + ":inside@example.com",
	}
	if !slices.Equal(mailer.sent, want) {
		t.Errorf("sent = %v, want %v", mailer.sent, want)
	}
}

func TestHubExpiryReminderDefaultsAndDisabled(t *testing.T) {
	db := newTestDB(t)
	mustCreate(t, db, hubMember("soon@example.com", true, hubNow.Add(defaultReminderDays*24*time.Hour-time.Hour)))

	mailer := &fakeMailer{}
	task := &HubExpiryReminderTask{db: db, mailer: mailer, now: func() time.Time { return hubNow }}
	result, err := task.HandleExecution(context.Background(), models.ScheduledTask{})
	if err != nil {
		t.Fatal(err)
	}
	if result["sent"] != 1 {
		t.Errorf("default window result = %v", result)
	}

	task.mailer = nil
	result, err = task.HandleExecution(context.Background(), models.ScheduledTask{})
	if err != nil || result["status"] != "skipped" {
		t.Errorf("without a mailer = %v, %v", result, err)
	}
}
