package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gorm.io/gorm"

	"gymhub_app_echo/internal/apperror"
	"gymhub_app_echo/internal/models"
)

const (
	statsCacheTTL  = 5 * time.Minute
	startLockTTL   = 5 * time.Second
	weeklyDays     = 7
	monthlyDays    = 30
	statsPeriodWk  = "weekly"
	statsPeriodMon = "monthly"
)

var activeStates = []models.SessionState{models.SessionInProgress, models.SessionPaused}

type StartSessionInput struct {
	WorkoutPlanID *uint                 `json:"workoutPlanId"`
	Name          string                `json:"name" validate:"max=255"`
	Exercises     []models.PlanExercise `json:"exercises" validate:"dive"`
}

type UpdateSetInput struct {
	ExerciseIndex int      `json:"exerciseIndex" validate:"gte=0"`
	SetIndex      int      `json:"setIndex" validate:"gte=0"`
	Reps          *int     `json:"reps"`
	WeightKG      *float64 `json:"weight"`
	Completed     *bool    `json:"completed"`
}

type CompleteSessionInput struct {
	SessionID         *uint  `json:"sessionId"`
	PerceivedExertion *int   `json:"perceivedExertion" validate:"omitempty,gte=1,lte=10"`
	Notes             string `json:"notes" validate:"max=2000"`
}

type CancelSessionInput struct {
	SessionID *uint  `json:"sessionId"`
	Reason    string `json:"reason" validate:"max=500"`
}

type SessionHistoryFilter struct {
	State models.SessionState
	Page
}

// DayStat is one calendar day of a stats window
type DayStat struct {
	Date          string  `json:"date"`
	Sessions      int     `json:"sessions"`
	TotalVolume   float64 `json:"totalVolume"`
	Calories      float64 `json:"calories"`
	ActiveMinutes float64 `json:"activeMinutes"`
}

type SessionStats struct {
	Period             string    `json:"period"`
	From               string    `json:"from"`
	To                 string    `json:"to"`
	Sessions           int       `json:"totalSessions"`
	TotalVolume        float64   `json:"totalVolume"`
	TotalCalories      float64   `json:"totalCalories"`
	ActiveMinutes      float64   `json:"activeMinutes"`
	AvgDurationMinutes float64   `json:"avgDurationMinutes"`
	Days               []DayStat `json:"days"`
}

// WorkoutSessionService persists the workout session state machine
type WorkoutSessionService struct {
	db       *gorm.DB
	cache    *RedisCache
	estimate models.CalorieEstimator
	loc      *time.Location
	now      Clock
}

func NewWorkoutSessionService(db *gorm.DB, cache *RedisCache, estimate models.CalorieEstimator, loc *time.Location, clock Clock) *WorkoutSessionService {
	if estimate == nil {
		estimate = models.DefaultCalorieEstimator
	}
	if loc == nil {
		loc = time.Local
	}
	return &WorkoutSessionService{db: db, cache: cache, estimate: estimate, loc: loc, now: clock.orDefault()}
}

// Start opens a new session from a plan or an ad-hoc exercise list
func (s *WorkoutSessionService) Start(ctx context.Context, userID uint, in StartSessionInput) (snap *models.SessionSnapshot, err error) {
	now := s.now()

	var planID *uint
	name := in.Name
	var exercises []models.SessionExercise
	switch {
	case in.WorkoutPlanID != nil:
		var plan models.WorkoutPlan
		if err := s.db.WithContext(ctx).First(&plan, *in.WorkoutPlanID).Error; err != nil {
			if isNotFound(err) {
				return nil, ErrWorkoutPlanNotFound
			}
			return nil, apperror.Wrap(err, "failed to start session")
		}
		planID = &plan.ID
		if name == "" {
			name = plan.Name
		}
		exercises = models.ExercisesFromPlan(plan)
	case len(in.Exercises) > 0:
		exercises = models.ExercisesFromPlan(models.WorkoutPlan{Exercises: in.Exercises})
	default:
		return nil, apperror.Validation("workoutPlanId or exercises is required")
	}

	session, err := models.NewWorkoutSession(userID, name, planID, exercises, now)
	if err != nil {
		return nil, err
	}

	// absorbs double taps before they reach the database
	lockKey := fmt.Sprintf("workout:start:%d", userID)
	if ok, lockErr := s.cache.SetNX(ctx, lockKey, now.Unix(), startLockTTL); lockErr == nil {
		if !ok {
			return nil, models.ErrSessionAlreadyActive
		}
		// held only while the pre-check and insert run
		defer s.cache.Delete(ctx, lockKey)
	}

	var active int64
	if err := s.db.WithContext(ctx).Model(&models.WorkoutSession{}).
		Where("user_id = ? AND state IN ?", userID, activeStates).Count(&active).Error; err != nil {
		return nil, apperror.Wrap(err, "failed to start session")
	}
	if active > 0 {
		return nil, models.ErrSessionAlreadyActive
	}

	// the partial unique index settles races the pre-check misses
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, models.ErrSessionAlreadyActive
		}
		return nil, apperror.Wrap(err, "failed to start session")
	}
	out := session.Snapshot(now)
	return &out, nil
}

// Current returns the active session, or nil when there is none
func (s *WorkoutSessionService) Current(ctx context.Context, userID uint) (*models.SessionSnapshot, error) {
	session, err := s.active(ctx, s.db, userID)
	if err != nil {
		if errors.Is(err, models.ErrNoActiveSession) {
			return nil, nil
		}
		return nil, err
	}
	out := session.Snapshot(s.now())
	return &out, nil
}

func (s *WorkoutSessionService) Pause(ctx context.Context, userID uint) (*models.SessionSnapshot, error) {
	return s.mutateActive(ctx, userID, func(ws *models.WorkoutSession, now time.Time) error {
		return ws.Pause(now)
	})
}

func (s *WorkoutSessionService) Resume(ctx context.Context, userID uint) (*models.SessionSnapshot, error) {
	return s.mutateActive(ctx, userID, func(ws *models.WorkoutSession, now time.Time) error {
		return ws.Resume(now)
	})
}

func (s *WorkoutSessionService) NextExercise(ctx context.Context, userID uint) (*models.SessionSnapshot, error) {
	return s.mutateActive(ctx, userID, func(ws *models.WorkoutSession, now time.Time) error {
		return ws.NextExercise(now)
	})
}

func (s *WorkoutSessionService) PrevExercise(ctx context.Context, userID uint) (*models.SessionSnapshot, error) {
	return s.mutateActive(ctx, userID, func(ws *models.WorkoutSession, now time.Time) error {
		return ws.PrevExercise(now)
	})
}

func (s *WorkoutSessionService) UpdateSet(ctx context.Context, userID uint, in UpdateSetInput) (*models.SessionSnapshot, error) {
	if in.Reps == nil && in.WeightKG == nil && in.Completed == nil {
		return nil, apperror.Validation("one of reps, weight or completed is required")
	}
	return s.mutateActive(ctx, userID, func(ws *models.WorkoutSession, now time.Time) error {
		return ws.UpdateSet(now, in.ExerciseIndex, in.SetIndex, models.SetUpdate{
			Reps:      in.Reps,
			WeightKG:  in.WeightKG,
			Completed: in.Completed,
		}, s.estimate)
	})
}

// Complete finishes the targeted or active session
func (s *WorkoutSessionService) Complete(ctx context.Context, userID uint, in CompleteSessionInput) (*models.SessionSnapshot, error) {
	snap, err := s.mutateFinishing(ctx, userID, in.SessionID, func(ws *models.WorkoutSession, now time.Time) error {
		return ws.Complete(now, in.PerceivedExertion, in.Notes, s.estimate)
	})
	if err == nil {
		s.invalidateStats(ctx, userID)
	}
	return snap, err
}

// Cancel abandons the targeted or active session
func (s *WorkoutSessionService) Cancel(ctx context.Context, userID uint, in CancelSessionInput) (*models.SessionSnapshot, error) {
	snap, err := s.mutateFinishing(ctx, userID, in.SessionID, func(ws *models.WorkoutSession, now time.Time) error {
		return ws.Cancel(now, in.Reason, s.estimate)
	})
	if err == nil {
		s.invalidateStats(ctx, userID)
	}
	return snap, err
}

// History pages finished and running sessions, newest first
func (s *WorkoutSessionService) History(ctx context.Context, userID uint, f SessionHistoryFilter) ([]models.SessionSnapshot, Pagination, error) {
	page := f.Page.normalize()
	q := s.db.WithContext(ctx).Model(&models.WorkoutSession{}).Where("user_id = ?", userID)
	if f.State != "" {
		q = q.Where("state = ?", f.State)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, Pagination{}, apperror.Wrap(err, "failed to load session history")
	}
	var sessions []models.WorkoutSession
	if err := q.Session(&gorm.Session{}).Order("start_time DESC, id DESC").
		Offset(page.offset()).Limit(page.Limit).Find(&sessions).Error; err != nil {
		return nil, Pagination{}, apperror.Wrap(err, "failed to load session history")
	}
	now := s.now()
	out := make([]models.SessionSnapshot, len(sessions))
	for i := range sessions {
		out[i] = sessions[i].Snapshot(now)
	}
	return out, newPagination(page, total), nil
}

func (s *WorkoutSessionService) WeeklyStats(ctx context.Context, userID uint) (*SessionStats, error) {
	return s.stats(ctx, userID, statsPeriodWk, weeklyDays)
}

func (s *WorkoutSessionService) MonthlyStats(ctx context.Context, userID uint) (*SessionStats, error) {
	return s.stats(ctx, userID, statsPeriodMon, monthlyDays)
}

func (s *WorkoutSessionService) statsKey(userID uint, period string) string {
	return fmt.Sprintf("workout:stats:%d:%s:%s", userID, period, models.DateKey(s.now(), s.loc))
}

func (s *WorkoutSessionService) invalidateStats(ctx context.Context, userID uint) {
	err := s.cache.Delete(ctx, s.statsKey(userID, statsPeriodWk), s.statsKey(userID, statsPeriodMon))
	if err != nil && !errors.Is(err, ErrCacheDisabled) {
		slog.Warn("failed to invalidate workout stats", "user_id", userID, "err", err)
	}
}

// stats aggregates completed sessions over the last days calendar days,
// today included
func (s *WorkoutSessionService) stats(ctx context.Context, userID uint, period string, days int) (*SessionStats, error) {
	return GetOrSet(s.cache, ctx, s.statsKey(userID, period), statsCacheTTL, func() (*SessionStats, error) {
		now := s.now().In(s.loc)
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
		from := today.AddDate(0, 0, -(days - 1))

		var sessions []models.WorkoutSession
		if err := s.db.WithContext(ctx).
			Where("user_id = ? AND state = ? AND start_time >= ?", userID, models.SessionCompleted, from).
			Order("start_time").Find(&sessions).Error; err != nil {
			return nil, apperror.Wrap(err, "failed to load workout stats")
		}
		return buildStats(period, from, days, sessions, s.loc), nil
	})
}

func buildStats(period string, from time.Time, days int, sessions []models.WorkoutSession, loc *time.Location) *SessionStats {
	st := &SessionStats{
		Period: period,
		From:   models.DateKey(from, loc),
		To:     models.DateKey(from.AddDate(0, 0, days-1), loc),
		Days:   make([]DayStat, days),
	}
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		key := models.DateKey(from.AddDate(0, 0, i), loc)
		st.Days[i] = DayStat{Date: key}
		index[key] = i
	}

	var totalDurationMs int64
	for _, ws := range sessions {
		i, ok := index[models.DateKey(ws.StartTime, loc)]
		if !ok {
			continue
		}
		minutes := float64(ws.DurationMs) / float64(time.Minute/time.Millisecond)
		d := &st.Days[i]
		d.Sessions++
		d.TotalVolume += ws.TotalVolume
		d.Calories += ws.CaloriesBurned
		d.ActiveMinutes += minutes

		st.Sessions++
		st.TotalVolume += ws.TotalVolume
		st.TotalCalories += ws.CaloriesBurned
		st.ActiveMinutes += minutes
		totalDurationMs += ws.DurationMs
	}
	if st.Sessions > 0 {
		st.AvgDurationMinutes = round1(float64(totalDurationMs) / float64(st.Sessions) / float64(time.Minute/time.Millisecond))
	}
	st.TotalCalories = round1(st.TotalCalories)
	st.ActiveMinutes = round1(st.ActiveMinutes)
	for i := range st.Days {
		st.Days[i].Calories = round1(st.Days[i].Calories)
		st.Days[i].ActiveMinutes = round1(st.Days[i].ActiveMinutes)
	}
	return st
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func (s *WorkoutSessionService) active(ctx context.Context, db *gorm.DB, userID uint) (*models.WorkoutSession, error) {
	var session models.WorkoutSession
	err := db.WithContext(ctx).Where("user_id = ? AND state IN ?", userID, activeStates).
		Order("start_time DESC").First(&session).Error
	if isNotFound(err) {
		return nil, models.ErrNoActiveSession
	}
	if err != nil {
		return nil, apperror.Wrap(err, "failed to load session")
	}
	return &session, nil
}

// mutateActive applies fn to the user's active session and saves it
func (s *WorkoutSessionService) mutateActive(ctx context.Context, userID uint, fn func(*models.WorkoutSession, time.Time) error) (*models.SessionSnapshot, error) {
	return s.mutate(ctx, func(tx *gorm.DB) (*models.WorkoutSession, error) {
		return s.active(ctx, tx, userID)
	}, fn)
}

// mutateFinishing targets sessionID when given, else the active session,
// else the latest one so a repeated finish reports the right conflict
func (s *WorkoutSessionService) mutateFinishing(ctx context.Context, userID uint, sessionID *uint, fn func(*models.WorkoutSession, time.Time) error) (*models.SessionSnapshot, error) {
	return s.mutate(ctx, func(tx *gorm.DB) (*models.WorkoutSession, error) {
		var session models.WorkoutSession
		if sessionID != nil {
			err := tx.Where("id = ? AND user_id = ?", *sessionID, userID).First(&session).Error
			if isNotFound(err) {
				return nil, apperror.NotFound("workout session not found")
			}
			return &session, err
		}
		ws, err := s.active(ctx, tx, userID)
		if !errors.Is(err, models.ErrNoActiveSession) {
			return ws, err
		}
		err = tx.Where("user_id = ?", userID).Order("start_time DESC, id DESC").First(&session).Error
		if isNotFound(err) {
			return nil, models.ErrNoActiveSession
		}
		return &session, err
	}, fn)
}

func (s *WorkoutSessionService) mutate(ctx context.Context, load func(tx *gorm.DB) (*models.WorkoutSession, error), fn func(*models.WorkoutSession, time.Time) error) (*models.SessionSnapshot, error) {
	now := s.now()
	var session *models.WorkoutSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ws, err := load(tx)
		if err != nil {
			return err
		}
		if err := fn(ws, now); err != nil {
			return err
		}
		session = ws
		return tx.Save(ws).Error
	})
	if err != nil {
		return nil, apperror.Wrap(err, "failed to update session")
	}
	out := session.Snapshot(now)
	return &out, nil
}
