package models

import (
	"math"
	"strings"
	"time"

	"gymhub_app_echo/internal/apperror"
)

// SessionState is the single lifecycle state of a workout session
type SessionState string

const (
	SessionInProgress SessionState = "in_progress"
	SessionPaused     SessionState = "paused"
	SessionCompleted  SessionState = "completed"
	SessionCancelled  SessionState = "cancelled"
)

// Terminal reports whether no further mutation is accepted
func (s SessionState) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

var (
	ErrSessionAlreadyActive    = apperror.Conflict("a workout session is already active")
	ErrNoActiveSession         = apperror.NotFound("no active workout session")
	ErrSessionFinished         = apperror.Conflict("workout session is already finished")
	ErrSessionAlreadyPaused    = apperror.Conflict("workout session is already paused")
	ErrSessionNotPaused        = apperror.Conflict("workout session is not paused")
	ErrSessionAlreadyCompleted = apperror.Conflict("workout session is already completed")
	ErrSessionAlreadyCancelled = apperror.Conflict("workout session is already cancelled")
	ErrNoNextExercise          = apperror.Conflict("already at the last exercise")
	ErrNoPrevExercise          = apperror.Conflict("already at the first exercise")
	ErrExerciseOutOfRange      = apperror.Validation("exercise index out of range")
	ErrSetOutOfRange           = apperror.Validation("set index out of range")
)

// SessionSet is one target set and what was actually done
type SessionSet struct {
	TargetReps     int        `json:"target_reps"`
	TargetWeightKG float64    `json:"target_weight_kg"`
	Reps           int        `json:"reps"`
	WeightKG       float64    `json:"weight_kg"`
	Completed      bool       `json:"completed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// SessionExercise is one exercise of a session with its fixed list of sets
type SessionExercise struct {
	Name        string       `json:"name"`
	RestSeconds int          `json:"rest_seconds,omitempty"`
	Notes       string       `json:"notes,omitempty"`
	Sets        []SessionSet `json:"sets"`
	IsActive    bool         `json:"is_active"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// CalorieEstimator turns lifted volume and active time into kcal
type CalorieEstimator func(volumeKG float64, active time.Duration) float64

// DefaultCalorieEstimator charges 4 kcal per active minute plus 1 kcal per 100 kg lifted
func DefaultCalorieEstimator(volumeKG float64, active time.Duration) float64 {
	kcal := active.Minutes()*4 + volumeKG/100
	return math.Round(kcal*10) / 10
}

// WorkoutSession tracks one member's in-progress workout
type WorkoutSession struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// At most one non-terminal session per user
	UserID        uint         `gorm:"not null;index:idx_workout_sessions_user;uniqueIndex:idx_workout_sessions_active_user,where:state <> 'completed' AND state <> 'cancelled'" json:"user_id"`
	WorkoutPlanID *uint        `json:"workout_plan_id"`
	Name          string       `gorm:"type:varchar(255)" json:"name"`
	State         SessionState `gorm:"type:varchar(20);not null;index" json:"state"`

	Exercises            []SessionExercise `gorm:"serializer:json" json:"exercises"`
	CurrentExerciseIndex int               `json:"current_exercise_index"`

	StartTime      time.Time  `gorm:"index" json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	PauseStartTime *time.Time `json:"pause_start_time"`
	TotalPausedMs  int64      `json:"total_paused_time_ms"`
	DurationMs     int64      `json:"duration_ms"`

	TotalVolume       float64 `json:"total_volume"`
	CaloriesBurned    float64 `json:"calories_burned"`
	PerceivedExertion *int    `json:"perceived_exertion"`
	Notes             string  `gorm:"type:text" json:"notes"`
}

// NewWorkoutSession starts a session at now with the first exercise active
func NewWorkoutSession(userID uint, name string, planID *uint, exercises []SessionExercise, now time.Time) (*WorkoutSession, error) {
	if len(exercises) == 0 {
		return nil, apperror.Validation("at least one exercise is required")
	}
	for i, ex := range exercises {
		if strings.TrimSpace(ex.Name) == "" {
			return nil, apperror.Validationf("exercise %d has no name", i)
		}
		if len(ex.Sets) == 0 {
			return nil, apperror.Validationf("exercise %q has no sets", ex.Name)
		}
		exercises[i].IsActive = false
		exercises[i].StartedAt = nil
		exercises[i].CompletedAt = nil
	}
	exercises[0].IsActive = true
	exercises[0].StartedAt = &now

	if name == "" {
		name = "Workout " + now.Format("2006-01-02")
	}
	return &WorkoutSession{
		UserID:        userID,
		WorkoutPlanID: planID,
		Name:          name,
		State:         SessionInProgress,
		Exercises:     exercises,
		StartTime:     now,
	}, nil
}

// TotalPaused is the accumulated paused time excluding any open pause
func (s *WorkoutSession) TotalPaused() time.Duration {
	return time.Duration(s.TotalPausedMs) * time.Millisecond
}

// ElapsedTime is wall time minus paused time while active, end minus start once terminal
func (s *WorkoutSession) ElapsedTime(now time.Time) time.Duration {
	if s.State.Terminal() && s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	d := now.Sub(s.StartTime) - s.TotalPaused()
	if s.State == SessionPaused && s.PauseStartTime != nil {
		d -= now.Sub(*s.PauseStartTime)
	}
	if d < 0 {
		return 0
	}
	return d
}

// ActiveTime excludes every pause, including for terminal sessions
func (s *WorkoutSession) ActiveTime(now time.Time) time.Duration {
	if s.State.Terminal() && s.EndTime != nil {
		d := s.EndTime.Sub(s.StartTime) - s.TotalPaused()
		if d < 0 {
			return 0
		}
		return d
	}
	return s.ElapsedTime(now)
}

// Volume sums reps x weight over completed sets
func (s *WorkoutSession) Volume() float64 {
	var total float64
	for _, ex := range s.Exercises {
		for _, set := range ex.Sets {
			if set.Completed {
				total += float64(set.Reps) * set.WeightKG
			}
		}
	}
	return total
}

// CompletedSets counts completed sets across all exercises
func (s *WorkoutSession) CompletedSets() int {
	n := 0
	for _, ex := range s.Exercises {
		for _, set := range ex.Sets {
			if set.Completed {
				n++
			}
		}
	}
	return n
}

// Recompute refreshes the stored aggregates
func (s *WorkoutSession) Recompute(now time.Time, estimate CalorieEstimator) {
	if estimate == nil {
		estimate = DefaultCalorieEstimator
	}
	s.TotalVolume = s.Volume()
	s.CaloriesBurned = estimate(s.TotalVolume, s.ActiveTime(now))
}

func (s *WorkoutSession) guardMutable() error {
	if s.State.Terminal() {
		return ErrSessionFinished
	}
	return nil
}

// Pause moves in_progress to paused
func (s *WorkoutSession) Pause(now time.Time) error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	if s.State == SessionPaused {
		return ErrSessionAlreadyPaused
	}
	s.State = SessionPaused
	s.PauseStartTime = &now
	return nil
}

// Resume moves paused back to in_progress, banking the pause
func (s *WorkoutSession) Resume(now time.Time) error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	if s.State != SessionPaused {
		return ErrSessionNotPaused
	}
	s.closePause(now)
	s.State = SessionInProgress
	return nil
}

func (s *WorkoutSession) closePause(now time.Time) {
	if s.PauseStartTime != nil {
		if gap := now.Sub(*s.PauseStartTime); gap > 0 {
			s.TotalPausedMs += gap.Milliseconds()
		}
	}
	s.PauseStartTime = nil
}

// NextExercise advances the cursor; fails at the last exercise
func (s *WorkoutSession) NextExercise(now time.Time) error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	if s.CurrentExerciseIndex >= len(s.Exercises)-1 {
		return ErrNoNextExercise
	}
	cur := &s.Exercises[s.CurrentExerciseIndex]
	cur.IsActive = false
	if cur.CompletedAt == nil {
		cur.CompletedAt = &now
	}
	s.CurrentExerciseIndex++
	s.activateCurrent(now)
	return nil
}

// PrevExercise moves the cursor back; fails at the first exercise
func (s *WorkoutSession) PrevExercise(now time.Time) error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	if s.CurrentExerciseIndex <= 0 {
		return ErrNoPrevExercise
	}
	s.Exercises[s.CurrentExerciseIndex].IsActive = false
	s.CurrentExerciseIndex--
	s.activateCurrent(now)
	return nil
}

func (s *WorkoutSession) activateCurrent(now time.Time) {
	ex := &s.Exercises[s.CurrentExerciseIndex]
	ex.IsActive = true
	if ex.StartedAt == nil {
		ex.StartedAt = &now
	}
}

// SetUpdate carries the optional fields of an update-set call
type SetUpdate struct {
	Reps      *int
	WeightKG  *float64
	Completed *bool
}

// UpdateSet applies a partial update to one set and refreshes aggregates
func (s *WorkoutSession) UpdateSet(now time.Time, exerciseIndex, setIndex int, upd SetUpdate, estimate CalorieEstimator) error {
	if err := s.guardMutable(); err != nil {
		return err
	}
	if exerciseIndex < 0 || exerciseIndex >= len(s.Exercises) {
		return ErrExerciseOutOfRange
	}
	sets := s.Exercises[exerciseIndex].Sets
	if setIndex < 0 || setIndex >= len(sets) {
		return ErrSetOutOfRange
	}
	if upd.Reps != nil && *upd.Reps < 0 {
		return apperror.Validation("reps must not be negative")
	}
	if upd.WeightKG != nil && *upd.WeightKG < 0 {
		return apperror.Validation("weight must not be negative")
	}

	set := &sets[setIndex]
	if upd.Reps != nil {
		set.Reps = *upd.Reps
	}
	if upd.WeightKG != nil {
		set.WeightKG = *upd.WeightKG
	}
	if upd.Completed != nil {
		set.Completed = *upd.Completed
		if set.Completed {
			set.CompletedAt = &now
		} else {
			set.CompletedAt = nil
		}
	}
	s.Recompute(now, estimate)
	return nil
}

func (s *WorkoutSession) guardFinish() error {
	switch s.State {
	case SessionCompleted:
		return ErrSessionAlreadyCompleted
	case SessionCancelled:
		return ErrSessionAlreadyCancelled
	}
	return nil
}

// Complete finishes the session and freezes its aggregates
func (s *WorkoutSession) Complete(now time.Time, perceivedExertion *int, notes string, estimate CalorieEstimator) error {
	if err := s.guardFinish(); err != nil {
		return err
	}
	if perceivedExertion != nil && (*perceivedExertion < 1 || *perceivedExertion > 10) {
		return apperror.Validation("perceived exertion must be between 1 and 10")
	}
	s.closePause(now)
	cur := &s.Exercises[s.CurrentExerciseIndex]
	cur.IsActive = false
	if cur.CompletedAt == nil {
		cur.CompletedAt = &now
	}
	s.State = SessionCompleted
	s.EndTime = &now
	s.PerceivedExertion = perceivedExertion
	s.appendNote(notes)
	s.Recompute(now, estimate)
	s.DurationMs = s.ActiveTime(now).Milliseconds()
	return nil
}

// Cancel abandons the session; duration includes paused time
func (s *WorkoutSession) Cancel(now time.Time, reason string, estimate CalorieEstimator) error {
	if err := s.guardFinish(); err != nil {
		return err
	}
	s.closePause(now)
	s.Exercises[s.CurrentExerciseIndex].IsActive = false
	s.State = SessionCancelled
	s.EndTime = &now
	if reason = strings.TrimSpace(reason); reason != "" {
		s.appendNote("Cancelled: " + reason)
	}
	s.Recompute(now, estimate)
	s.DurationMs = s.ElapsedTime(now).Milliseconds()
	return nil
}

func (s *WorkoutSession) appendNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if s.Notes == "" {
		s.Notes = note
		return
	}
	s.Notes += "\n" + note
}

// SessionSnapshot is a session plus values derived at read time
type SessionSnapshot struct {
	*WorkoutSession
	ElapsedMs     int64 `json:"elapsed_time_ms"`
	CompletedSets int   `json:"completed_sets"`
	TotalSets     int   `json:"total_sets"`
}

// Snapshot computes the derived read-time values
func (s *WorkoutSession) Snapshot(now time.Time) SessionSnapshot {
	total := 0
	for _, ex := range s.Exercises {
		total += len(ex.Sets)
	}
	return SessionSnapshot{
		WorkoutSession: s,
		ElapsedMs:      s.ElapsedTime(now).Milliseconds(),
		CompletedSets:  s.CompletedSets(),
		TotalSets:      total,
	}
}

// ExercisesFromPlan expands plan targets into session sets
func ExercisesFromPlan(plan WorkoutPlan) []SessionExercise {
	out := make([]SessionExercise, 0, len(plan.Exercises))
	for _, pe := range plan.Exercises {
		n := pe.Sets
		if n < 1 {
			n = 1
		}
		sets := make([]SessionSet, n)
		for i := range sets {
			sets[i] = SessionSet{TargetReps: pe.Reps, TargetWeightKG: pe.WeightKG}
		}
		out = append(out, SessionExercise{
			Name:        pe.Name,
			RestSeconds: pe.RestSeconds,
			Notes:       pe.Notes,
			Sets:        sets,
		})
	}
	return out
}
