package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"gymhub_app_echo/internal/config"
	"gymhub_app_echo/internal/models"
	"gymhub_app_echo/internal/services"
)

const testBiometricKey = "device-key"

type testApp struct {
	e      *echo.Echo
	db     *gorm.DB
	tokens *services.TokenService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := services.InitDB(config.DatabaseConfig{Driver: "sqlite", URL: filepath.Join(t.TempDir(), "api.db")})
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

	now := services.Clock(time.Now)
	tokens := services.NewTokenService("test-secret", time.Hour)
	users := services.NewUserService(db, nil, now)
	e := NewRouter(Services{
		Tokens:        tokens,
		Auth:          services.NewAuthService(db, tokens, nil, nil, now),
		Users:         users,
		Plans:         services.NewPlanService(db, now),
		Attendance:    services.NewAttendanceService(db, time.UTC, now),
		Announcements: services.NewAnnouncementService(db, now),
		Sessions:      services.NewWorkoutSessionService(db, nil, models.DefaultCalorieEstimator, time.UTC, now),
		Hub:           services.NewHubService(db, nil, nil, 100000, "http://localhost", now),

		BiometricAPIKey: testBiometricKey,
		Now:             now,
	})
	return &testApp{e: e, db: db, tokens: tokens}
}

func (a *testApp) user(t *testing.T, u models.User) (*models.User, string) {
	t.Helper()
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if err := a.db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := a.tokens.Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return &u, token
}

type apiResponse struct {
	code int
	body map[string]interface{}
}

func (a *testApp) do(t *testing.T, method, path, token, body string, headers ...string) apiResponse {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	res := apiResponse{code: rec.Code}
	if err := json.Unmarshal(rec.Body.Bytes(), &res.body); err != nil {
		t.Fatalf("%s %s: body %q is not JSON: %v", method, path, rec.Body.String(), err)
	}
	return res
}

func TestRouterAccessControl(t *testing.T) {
	app := newTestApp(t)
	_, member := app.user(t, models.User{Name: "Member", Email: "member@example.com"})
	_, admin := app.user(t, models.User{Name: "Admin", Email: "admin@example.com", Role: models.RoleAdmin})
	end := time.Now().Add(30 * 24 * time.Hour)
	_, hubber := app.user(t, models.User{Name: "Hub", Email: "hub@example.com", HasPremiumHubAccess: true, HubAccessEndDate: &end})

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"health is public", http.MethodGet, "/health", "", http.StatusOK},
		{"me needs a token", http.MethodGet, "/me", "", http.StatusUnauthorized},
		{"me", http.MethodGet, "/me", member, http.StatusOK},
		{"admin route as member", http.MethodGet, "/admin/users", member, http.StatusForbidden},
		{"admin route as admin", http.MethodGet, "/admin/users", admin, http.StatusOK},
		{"hub route without access", http.MethodGet, "/workout-session/current", member, http.StatusForbidden},
		{"hub route with access", http.MethodGet, "/workout-session/current", hubber, http.StatusOK},
		{"admin passes hub gate", http.MethodGet, "/workout-session/current", admin, http.StatusOK},
		{"no plan assigned", http.MethodGet, "/workout/my-plan", hubber, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := app.do(t, tt.method, tt.path, tt.token, "")
			if res.code != tt.want {
				t.Fatalf("status = %d, want %d (%v)", res.code, tt.want, res.body)
			}
			success := res.code == http.StatusOK
			if res.body["success"] != success {
				t.Errorf("success = %v, want %v", res.body["success"], success)
			}
			if !success && res.body["message"] == "" {
				t.Errorf("error without message")
			}
		})
	}
}

func TestRouterErrorShape(t *testing.T) {
	app := newTestApp(t)

	res := app.do(t, http.MethodPost, "/auth/register", "", `{"name":"X","email":"not-an-email","password":"Sup3rSecret!"}`)
	if res.code != http.StatusBadRequest || res.body["message"] != "email must be a valid email" {
		t.Errorf("register validation = %d %v", res.code, res.body)
	}

	res = app.do(t, http.MethodPost, "/auth/login", "", `{"email":`)
	if res.code != http.StatusBadRequest || res.body["message"] != "invalid request body" {
		t.Errorf("malformed body = %d %v", res.code, res.body)
	}

	res = app.do(t, http.MethodGet, "/nowhere", "", "")
	if res.code != http.StatusNotFound || res.body["success"] != false {
		t.Errorf("unknown route = %d %v", res.code, res.body)
	}
}

func TestRouterAttendance(t *testing.T) {
	app := newTestApp(t)
	_, token := app.user(t, models.User{Name: "Member", Email: "member@example.com"})

	res := app.do(t, http.MethodPost, "/attendance/check-in", token, "")
	if res.code != http.StatusOK || res.body["streak"] != float64(1) {
		t.Fatalf("check-in = %d %v", res.code, res.body)
	}
	res = app.do(t, http.MethodPost, "/attendance/check-in", token, "")
	if res.code != http.StatusBadRequest {
		t.Errorf("second check-in = %d %v", res.code, res.body)
	}
	res = app.do(t, http.MethodPost, "/attendance/check-out", token, "")
	if res.code != http.StatusOK {
		t.Errorf("check-out = %d %v", res.code, res.body)
	}
}

func TestRouterBiometricWebhook(t *testing.T) {
	app := newTestApp(t)
	bio := "FP-001"
	u, _ := app.user(t, models.User{Name: "Member", Email: "member@example.com", BiometricID: &bio})

	body := `{"biometricId":"FP-001","type":"check-in"}`
	tests := []struct {
		name string
		key  string
		body string
		want int
	}{
		{"missing key", "", body, http.StatusUnauthorized},
		{"wrong key", "guess", body, http.StatusUnauthorized},
		{"bad type", testBiometricKey, `{"biometricId":"FP-001","type":"wave"}`, http.StatusBadRequest},
		{"unknown member", testBiometricKey, `{"biometricId":"FP-404","type":"check-in"}`, http.StatusNotFound},
		{"check-in", testBiometricKey, body, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.key != "" {
				headers = []string{"X-Biometric-Key", tt.key}
			}
			res := app.do(t, http.MethodPost, "/biometric/push-attendance", "", tt.body, headers...)
			if res.code != tt.want {
				t.Fatalf("status = %d, want %d (%v)", res.code, tt.want, res.body)
			}
		})
	}

	var n int64
	app.db.Model(&models.AttendanceRecord{}).Where("user_id = ?", u.ID).Count(&n)
	if n != 1 {
		t.Errorf("attendance rows = %d, want 1", n)
	}
}

func TestRouterMidtransNotificationWithoutGateway(t *testing.T) {
	app := newTestApp(t)

	res := app.do(t, http.MethodPost, "/payments/midtrans/notification", "", `{"order_id":"HUB-1","status_code":"200","gross_amount":"100000.00","signature_key":"x","transaction_status":"settlement"}`)
	if res.code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 (%v)", res.code, res.body)
	}

	var logged int64
	app.db.Model(&models.PaymentCallbackHistory{}).Count(&logged)
	if logged != 1 {
		t.Errorf("callback history rows = %d, want 1", logged)
	}

	res = app.do(t, http.MethodPost, "/payments/midtrans/notification", "", `not json`)
	if res.code != http.StatusBadRequest {
		t.Errorf("garbage payload = %d", res.code)
	}
}
