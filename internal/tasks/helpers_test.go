package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/gorm"

	"gymhub_app_echo/internal/config"
	"gymhub_app_echo/internal/models"
	"gymhub_app_echo/internal/services"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := services.InitDB(config.DatabaseConfig{Driver: "sqlite", URL: filepath.Join(t.TempDir(), "tasks.db")})
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// fakeMailer fails for the addresses listed in failFor
type fakeMailer struct {
	mu      sync.Mutex
	failFor map[string]bool
	sent    []string
}

func (m *fakeMailer) SendTemplate(_ context.Context, to, template string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[to] {
		return fmt.Errorf("mailbox %s unavailable", to)
	}
	m.sent = append(m.sent, template+":"+to)
	return nil
}

type fakeWhatsapp struct {
	mu    sync.Mutex
	chats []string
}

func (w *fakeWhatsapp) SendMessage(_ context.Context, chatID, _ string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chats = append(w.chats, chatID)
	return nil
}

type fakePush struct {
	pushed []uint
}

func (p *fakePush) PushAnnouncement(_ context.Context, a models.Announcement) error {
	p.pushed = append(p.pushed, a.ID)
	return nil
}

func mustCreate(t *testing.T, db *gorm.DB, v interface{}) {
	t.Helper()
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("create %T: %v", v, err)
	}
}
