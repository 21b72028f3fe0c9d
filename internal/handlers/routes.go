package handlers

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"gymhub_app_echo/internal/middleware"
	"gymhub_app_echo/internal/services"
)

// Services is everything the HTTP layer needs, built once at startup
type Services struct {
	Tokens        *services.TokenService
	Auth          *services.AuthService
	Users         *services.UserService
	Plans         *services.PlanService
	Attendance    *services.AttendanceService
	Announcements *services.AnnouncementService
	Sessions      *services.WorkoutSessionService
	Hub           *services.HubService

	BiometricAPIKey string
	Now             func() time.Time
}

// NewRouter builds the Echo instance with every route group. Admin and hub
// routes stack their gate on top of RequireAuth.
func NewRouter(s Services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.JSONErrorHandler
	e.Validator = middleware.NewRequestValidator()

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger())

	authHandler := NewAuthHandler(s.Auth)
	meHandler := NewMeHandler(s.Users, s.Auth)
	userHandler := NewUserHandler(s.Users)
	planHandler := NewPlanHandler(s.Plans)
	attendanceHandler := NewAttendanceHandler(s.Attendance)
	announcementHandler := NewAnnouncementHandler(s.Announcements, s.Users)
	sessionHandler := NewWorkoutSessionHandler(s.Sessions)
	hubHandler := NewHubHandler(s.Hub)

	e.GET("/health", func(c echo.Context) error {
		return ok(c, echo.Map{"status": "ok"})
	})

	// Public routes
	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/verify-email", authHandler.VerifyEmail)
	auth.POST("/resend-otp", authHandler.ResendOTP)
	auth.POST("/login", authHandler.Login)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/reset-password", authHandler.ResetPassword)

	e.POST("/payments/midtrans/notification", hubHandler.MidtransNotification)
	e.POST("/biometric/push-attendance", attendanceHandler.PushAttendance, middleware.BiometricKey(s.BiometricAPIKey))

	// Signed-in members
	requireAuth := middleware.RequireAuth(s.Tokens)
	requireHub := middleware.RequireHubAccess(s.Users, s.Now)

	me := e.Group("/me", requireAuth)
	me.GET("", meHandler.Me)
	me.PUT("/profile", meHandler.UpdateProfile)
	me.PUT("/password", meHandler.ChangePassword)
	me.GET("/notification-preference", meHandler.GetNotifPreference)
	me.PUT("/notification-preference", meHandler.UpdateNotifPreference)

	attendance := e.Group("/attendance", requireAuth)
	attendance.POST("/check-in", attendanceHandler.CheckIn)
	attendance.POST("/check-out", attendanceHandler.CheckOut)
	attendance.GET("/status", attendanceHandler.Status)
	attendance.GET("/history", attendanceHandler.History)

	announcements := e.Group("/announcements", requireAuth)
	announcements.GET("", announcementHandler.Feed)
	announcements.GET("/unread-count", announcementHandler.UnreadCount)
	announcements.POST("/read", announcementHandler.MarkRead)
	announcements.POST("/dismiss", announcementHandler.Dismiss)

	hubRoutes := e.Group("/hub", requireAuth)
	hubRoutes.POST("/checkout", hubHandler.Checkout)
	hubRoutes.GET("/payments", hubHandler.Payments)

	// Premium hub
	e.GET("/workout/my-plan", planHandler.MyWorkoutPlan, requireAuth, requireHub)
	e.GET("/diet/my-plan", planHandler.MyDietPlan, requireAuth, requireHub)

	ws := e.Group("/workout-session", requireAuth, requireHub)
	ws.POST("/start", sessionHandler.Start)
	ws.POST("/pause", sessionHandler.Pause)
	ws.POST("/resume", sessionHandler.Resume)
	ws.POST("/next-exercise", sessionHandler.NextExercise)
	ws.POST("/prev-exercise", sessionHandler.PrevExercise)
	ws.POST("/update-set", sessionHandler.UpdateSet)
	ws.POST("/complete", sessionHandler.Complete)
	ws.POST("/cancel", sessionHandler.Cancel)
	ws.GET("/current", sessionHandler.Current)
	ws.GET("/history", sessionHandler.History)
	ws.GET("/stats-weekly", sessionHandler.WeeklyStats)
	ws.GET("/stats-monthly", sessionHandler.MonthlyStats)

	// Admin
	admin := e.Group("/admin", requireAuth, middleware.RequireAdmin())
	admin.GET("/users", userHandler.ListUsers)
	admin.POST("/users", userHandler.StoreUser)
	admin.GET("/users/:id", userHandler.GetUser)
	admin.PUT("/users/:id", userHandler.UpdateUser)
	admin.DELETE("/users/:id", userHandler.DeleteUser)
	admin.PUT("/users/:id/hub-access", userHandler.GrantHubAccess)
	admin.DELETE("/users/:id/hub-access", userHandler.RevokeHubAccess)
	admin.PUT("/users/:id/membership", userHandler.SetMembership)

	admin.GET("/workouts", planHandler.ListWorkoutPlans)
	admin.POST("/workouts", planHandler.StoreWorkoutPlan)
	admin.GET("/workouts/:id", planHandler.GetWorkoutPlan)
	admin.PUT("/workouts/:id", planHandler.UpdateWorkoutPlan)
	admin.DELETE("/workouts/:id", planHandler.DeleteWorkoutPlan)
	admin.POST("/workouts/:id/assign", planHandler.AssignWorkoutPlan)
	admin.DELETE("/workouts/:id/assign/:userId", planHandler.UnassignWorkoutPlan)

	admin.GET("/diet", planHandler.ListDietPlans)
	admin.POST("/diet", planHandler.StoreDietPlan)
	admin.GET("/diet/:id", planHandler.GetDietPlan)
	admin.PUT("/diet/:id", planHandler.UpdateDietPlan)
	admin.DELETE("/diet/:id", planHandler.DeleteDietPlan)
	admin.POST("/diet/:id/assign", planHandler.AssignDietPlan)
	admin.DELETE("/diet/:id/assign/:userId", planHandler.UnassignDietPlan)

	admin.GET("/attendance", attendanceHandler.AdminList)
	admin.POST("/attendance/absent", attendanceHandler.MarkAbsent)

	admin.GET("/announcements", announcementHandler.List)
	admin.POST("/announcements", announcementHandler.Store)
	admin.GET("/announcements/:id", announcementHandler.Get)
	admin.PUT("/announcements/:id", announcementHandler.Update)
	admin.DELETE("/announcements/:id", announcementHandler.Delete)
	admin.GET("/announcements/:id/stats", announcementHandler.Stats)

	return e
}
