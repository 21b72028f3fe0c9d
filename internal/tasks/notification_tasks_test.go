package tasks

import (
	"context"
	"slices"
	"testing"
	"time"

	"gorm.io/gorm"

	"gymhub_app_echo/internal/models"
	"gymhub_app_echo/internal/services"
)

var sendNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

type announcementFixture struct {
	db       *gorm.DB
	mailer   *fakeMailer
	whatsapp *fakeWhatsapp
	push     *fakePush
	task     *SendAnnouncementTask
	users    map[string]*models.User
}

func newAnnouncementFixture(t *testing.T) *announcementFixture {
	t.Helper()
	db := newTestDB(t)
	clock := func() time.Time { return sendNow }
	f := &announcementFixture{
		db:       db,
		mailer:   &fakeMailer{failFor: map[string]bool{"bounce@example.com": true}},
		whatsapp: &fakeWhatsapp{},
		push:     &fakePush{},
		users:    map[string]*models.User{},
	}
	f.task = &SendAnnouncementTask{
		db:            db,
		announcements: services.NewAnnouncementService(db, clock),
		mailer:        f.mailer,
		whatsapp:      f.whatsapp,
		push:          f.push,
		countryCode:   "62",
		now:           clock,
	}

	members := []struct {
		key   string
		email string
		phone string
		pref  *models.UserNotifPreference
	}{
		{"email", "ok@example.com", "", nil},
		{"bounce", "bounce@example.com", "", nil},
		{"personal", "wa@example.com", "0812-1111-2222", &models.UserNotifPreference{Channel: models.NotificationChannelWhatsapp, WhatsappTargetType: models.WhatsappTargetTypePersonal}},
		{"group1", "g1@example.com", "", &models.UserNotifPreference{Channel: models.NotificationChannelWhatsapp, WhatsappTargetType: models.WhatsappTargetTypeGroup, WhatsappGroupID: "120363"}},
		{"group2", "g2@example.com", "", &models.UserNotifPreference{Channel: models.NotificationChannelWhatsapp, WhatsappTargetType: models.WhatsappTargetTypeGroup, WhatsappGroupID: "120363"}},
		{"muted", "mute@example.com", "", &models.UserNotifPreference{Channel: models.NotificationChannelNone, WhatsappTargetType: models.WhatsappTargetTypePersonal}},
	}
	for _, m := range members {
		u := &models.User{Name: m.key, Email: m.email, Phone: m.phone, Role: models.RoleUser}
		mustCreate(t, db, u)
		if m.pref != nil {
			m.pref.UserID = u.ID
			mustCreate(t, db, m.pref)
		}
		f.users[m.key] = u
	}
	return f
}

func (f *announcementFixture) announce(t *testing.T, a models.Announcement) *models.Announcement {
	t.Helper()
	if a.Audience.Type == "" {
		a.Audience = models.Audience{Type: models.AudienceAll}
	}
	a.IsActive = true
	mustCreate(t, f.db, &a)
	return &a
}

func sendTask(t *testing.T, args SendAnnouncementArgs, maxAttempt int) models.ScheduledTask {
	t.Helper()
	task, err := models.BuildScheduledTask(models.TaskSendAnnouncement, args, sendNow, nil, models.ScheduledTaskTypeOneTime, maxAttempt)
	if err != nil {
		t.Fatal(err)
	}
	return *task
}

func TestSendAnnouncementDelivers(t *testing.T) {
	f := newAnnouncementFixture(t)
	ctx := context.Background()
	a := f.announce(t, models.Announcement{Title: "Holiday hours", Message: "Closed Monday"})

	result, err := f.task.HandleExecution(ctx, sendTask(t, SendAnnouncementArgs{AnnouncementID: a.ID}, 3))
	if err != nil {
		t.Fatalf("HandleExecution: %v", err)
	}

	if result["total"] != 6 || result["success"] != 4 || result["skipped"] != 1 || result["failure"] != 1 {
		t.Errorf("result = %v", result)
	}
	if result["push"] != "sent" || !slices.Equal(f.push.pushed, []uint{a.ID}) {
		t.Errorf("push = %v %v", result["push"], f.push.pushed)
	}
	if !slices.Equal(f.mailer.sent, []string{services.TemplateAnnouncement + ":ok@example.com"}) {
		t.Errorf("emails = %v", f.mailer.sent)
	}
	wantChats := []string{"6281211112222@c.us", "120363@g.us"}
	if !slices.Equal(f.whatsapp.chats, wantChats) {
		t.Errorf("whatsapp chats = %v, want %v", f.whatsapp.chats, wantChats)
	}

	// only the bounced member is retried
	var retries []models.ScheduledTask
	f.db.Where("task_name = ?", models.TaskSendAnnouncement).Find(&retries)
	if len(retries) != 1 {
		t.Fatalf("retry tasks = %d, want 1", len(retries))
	}
	retry := retries[0]
	if !retry.Due.Equal(sendNow.Add(retryDelay)) || retry.MaxAttempt != 3 {
		t.Errorf("retry due %v max %d", retry.Due, retry.MaxAttempt)
	}
	args, err := parseArgs[SendAnnouncementArgs](retry.Arguments)
	if err != nil {
		t.Fatal(err)
	}
	if args.AttemptCount != 1 || !slices.Equal(args.UserIDs, []uint{f.users["bounce"].ID}) {
		t.Errorf("retry args = %+v", args)
	}
}

func TestSendAnnouncementRetryGivesUp(t *testing.T) {
	f := newAnnouncementFixture(t)
	ctx := context.Background()
	a := f.announce(t, models.Announcement{Title: "T", Message: "M"})

	args := SendAnnouncementArgs{AnnouncementID: a.ID, UserIDs: []uint{f.users["bounce"].ID, f.users["email"].ID}, AttemptCount: 2}
	result, err := f.task.HandleExecution(ctx, sendTask(t, args, 3))
	if err == nil {
		t.Fatalf("expected an error once attempts are exhausted, got %v", result)
	}
	if result["success"] != 1 || result["failure"] != 1 {
		t.Errorf("result = %v", result)
	}
	if len(f.push.pushed) != 0 {
		t.Errorf("retries must not push again")
	}
	var n int64
	f.db.Model(&models.ScheduledTask{}).Count(&n)
	if n != 0 {
		t.Errorf("a retry was scheduled after the last attempt")
	}
}

func TestSendAnnouncementRespectsAudience(t *testing.T) {
	f := newAnnouncementFixture(t)
	ctx := context.Background()
	only := f.users["email"].ID
	a := f.announce(t, models.Announcement{Title: "T", Message: "M", Audience: models.Audience{Type: models.AudienceSpecificUsers, UserIDs: []uint{only}}})

	// a retry list naming someone outside the audience is filtered
	args := SendAnnouncementArgs{AnnouncementID: a.ID, UserIDs: []uint{only, f.users["personal"].ID}, AttemptCount: 1}
	result, err := f.task.HandleExecution(ctx, sendTask(t, args, 3))
	if err != nil {
		t.Fatal(err)
	}
	if result["total"] != 1 || len(f.whatsapp.chats) != 0 {
		t.Errorf("result = %v, chats %v", result, f.whatsapp.chats)
	}
}

func TestSendAnnouncementSkips(t *testing.T) {
	f := newAnnouncementFixture(t)
	ctx := context.Background()

	expired := sendNow.Add(-time.Hour)
	stale := f.announce(t, models.Announcement{Title: "Old", Message: "M", ExpiresAt: &expired})

	tests := []struct {
		name string
		args SendAnnouncementArgs
	}{
		{"deleted", SendAnnouncementArgs{AnnouncementID: 9999}},
		{"expired", SendAnnouncementArgs{AnnouncementID: stale.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.task.HandleExecution(ctx, sendTask(t, tt.args, 3))
			if err != nil {
				t.Fatalf("err = %v", err)
			}
			if result["status"] != "skipped" {
				t.Errorf("result = %v", result)
			}
		})
	}

	if _, err := f.task.HandleExecution(ctx, sendTask(t, SendAnnouncementArgs{}, 3)); err == nil {
		t.Errorf("missing announcement id accepted")
	}
	if len(f.mailer.sent)+len(f.whatsapp.chats) != 0 {
		t.Errorf("skipped announcements were delivered")
	}
}

func TestSendAnnouncementDisabledChannels(t *testing.T) {
	f := newAnnouncementFixture(t)
	f.task.mailer = nil
	f.task.whatsapp = nil
	a := f.announce(t, models.Announcement{Title: "T", Message: "M"})

	result, err := f.task.HandleExecution(context.Background(), sendTask(t, SendAnnouncementArgs{AnnouncementID: a.ID}, 3))
	if err != nil {
		t.Fatal(err)
	}
	if result["failure"] != 0 || result["skipped"] != 6 {
		t.Errorf("result = %v", result)
	}
}
