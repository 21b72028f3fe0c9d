package services

import (
	"context"
	"slices"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gymhub_app_echo/internal/apperror"
	"gymhub_app_echo/internal/models"
)

var (
	ErrWorkoutPlanNotFound = apperror.NotFound("workout plan not found")
	ErrDietPlanNotFound    = apperror.NotFound("diet plan not found")
	ErrNoPlanAssigned      = apperror.NotFound("no plan assigned")
)

type WorkoutPlanInput struct {
	Name          string                `json:"name" validate:"required,max=255"`
	Description   string                `json:"description"`
	Goal          string                `json:"goal" validate:"max=100"`
	Level         string                `json:"level" validate:"omitempty,oneof=beginner intermediate advanced"`
	DurationWeeks int                   `json:"durationWeeks" validate:"gte=0,lte=104"`
	Exercises     []models.PlanExercise `json:"exercises" validate:"required,min=1,dive"`
	IsTemplate    bool                  `json:"isTemplate"`
}

type DietPlanInput struct {
	Name          string           `json:"name" validate:"required,max=255"`
	Description   string           `json:"description"`
	Goal          string           `json:"goal" validate:"max=100"`
	DailyCalories int              `json:"dailyCalories" validate:"gte=0,lte=10000"`
	WeeklyPlan    []models.DietDay `json:"weeklyPlan" validate:"dive"`
	IsTemplate    bool             `json:"isTemplate"`
}

type PlanFilter struct {
	Search     string
	IsTemplate *bool
	Page
}

// PlanService owns the workout and diet catalogs and their assignments
type PlanService struct {
	db  *gorm.DB
	now Clock
}

func NewPlanService(db *gorm.DB, clock Clock) *PlanService {
	return &PlanService{db: db, now: clock.orDefault()}
}

// validateWeeklyPlan requires one entry per weekday unless the plan is a
// bare template skeleton
func validateWeeklyPlan(days []models.DietDay, isTemplate bool) ([]models.DietDay, error) {
	if isTemplate && len(days) == 0 {
		return nil, nil
	}
	if len(days) != len(models.Weekdays) {
		return nil, apperror.Validationf("weekly plan must have exactly %d days", len(models.Weekdays))
	}
	seen := make(map[string]bool, len(days))
	out := make([]models.DietDay, 0, len(days))
	for _, d := range days {
		day := strings.ToLower(strings.TrimSpace(d.Day))
		if !slices.Contains(models.Weekdays, day) {
			return nil, apperror.Validationf("unknown day %q", d.Day)
		}
		if seen[day] {
			return nil, apperror.Validationf("day %q appears more than once", day)
		}
		seen[day] = true
		d.Day = day
		out = append(out, d)
	}
	// keep monday..sunday order regardless of input order
	slices.SortFunc(out, func(a, b models.DietDay) int {
		return slices.Index(models.Weekdays, a.Day) - slices.Index(models.Weekdays, b.Day)
	})
	return out, nil
}

func listPlans[T any](ctx context.Context, db *gorm.DB, f PlanFilter) ([]T, Pagination, error) {
	page := f.Page.normalize()
	q := db.WithContext(ctx).Model(new(T))
	if term := strings.TrimSpace(f.Search); term != "" {
		q = q.Where("lower(name) LIKE ?", "%"+strings.ToLower(term)+"%")
	}
	if f.IsTemplate != nil {
		q = q.Where("is_template = ?", *f.IsTemplate)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, Pagination{}, apperror.Wrap(err, "failed to list plans")
	}
	var plans []T
	if err := q.Session(&gorm.Session{}).Preload("Assignments").Order("created_at DESC, id DESC").Offset(page.offset()).Limit(page.Limit).Find(&plans).Error; err != nil {
		return nil, Pagination{}, apperror.Wrap(err, "failed to list plans")
	}
	return plans, newPagination(page, total), nil
}

func (s *PlanService) ListWorkoutPlans(ctx context.Context, f PlanFilter) ([]models.WorkoutPlan, Pagination, error) {
	return listPlans[models.WorkoutPlan](ctx, s.db, f)
}

func (s *PlanService) GetWorkoutPlan(ctx context.Context, id uint) (*models.WorkoutPlan, error) {
	var plan models.WorkoutPlan
	if err := s.db.WithContext(ctx).Preload("Assignments").First(&plan, id).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrWorkoutPlanNotFound
		}
		return nil, apperror.Wrap(err, "failed to load workout plan")
	}
	return &plan, nil
}

func (s *PlanService) CreateWorkoutPlan(ctx context.Context, createdBy uint, in WorkoutPlanInput) (*models.WorkoutPlan, error) {
	plan := models.WorkoutPlan{CreatedBy: createdBy}
	applyWorkoutInput(&plan, in)
	if err := s.db.WithContext(ctx).Create(&plan).Error; err != nil {
		return nil, apperror.Wrap(err, "failed to create workout plan")
	}
	return &plan, nil
}

func (s *PlanService) UpdateWorkoutPlan(ctx context.Context, id uint, in WorkoutPlanInput) (*models.WorkoutPlan, error) {
	plan, err := s.GetWorkoutPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	applyWorkoutInput(plan, in)
	if err := s.db.WithContext(ctx).Omit("Assignments").Save(plan).Error; err != nil {
		return nil, apperror.Wrap(err, "failed to update workout plan")
	}
	return plan, nil
}

func applyWorkoutInput(plan *models.WorkoutPlan, in WorkoutPlanInput) {
	plan.Name = strings.TrimSpace(in.Name)
	plan.Description = in.Description
	plan.Goal = in.Goal
	plan.Level = in.Level
	plan.DurationWeeks = in.DurationWeeks
	plan.Exercises = in.Exercises
	plan.IsTemplate = in.IsTemplate
}

// DeleteWorkoutPlan removes the plan, its assignments and any
// current-plan back-references
func (s *PlanService) DeleteWorkoutPlan(ctx context.Context, id uint) error {
	return apperror.Wrap(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("plan_id = ?", id).Delete(&models.WorkoutPlanAssignment{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("current_workout_plan_id = ?", id).
			Update("current_workout_plan_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.WorkoutPlan{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrWorkoutPlanNotFound
		}
		return nil
	}), "failed to delete workout plan")
}

// AssignWorkoutPlan adds users to the plan. Re-assigning refreshes
// assigned_at and the user's current plan.
func (s *PlanService) AssignWorkoutPlan(ctx context.Context, planID uint, userIDs []uint) (*models.WorkoutPlan, error) {
	if _, err := s.GetWorkoutPlan(ctx, planID); err != nil {
		return nil, err
	}
	err := s.assign(ctx, userIDs, func(tx *gorm.DB, userID uint) error {
		a := models.WorkoutPlanAssignment{PlanID: planID, UserID: userID, AssignedAt: s.now()}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "plan_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"assigned_at"}),
		}).Create(&a).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).Update("current_workout_plan_id", planID).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetWorkoutPlan(ctx, planID)
}

func (s *PlanService) UnassignWorkoutPlan(ctx context.Context, planID, userID uint) error {
	return apperror.Wrap(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("plan_id = ? AND user_id = ?", planID, userID).Delete(&models.WorkoutPlanAssignment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.NotFound("assignment not found")
		}
		return tx.Model(&models.User{}).
			Where("id = ? AND current_workout_plan_id = ?", userID, planID).
			Update("current_workout_plan_id", nil).Error
	}), "failed to unassign workout plan")
}

// MyWorkoutPlan returns the user's current plan, else the most recently
// assigned one
func (s *PlanService) MyWorkoutPlan(ctx context.Context, userID uint) (*models.WorkoutPlan, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, apperror.Wrap(err, "failed to load plan")
	}
	if user.CurrentWorkoutPlanID != nil {
		var plan models.WorkoutPlan
		err := s.db.WithContext(ctx).First(&plan, *user.CurrentWorkoutPlanID).Error
		if err == nil {
			return &plan, nil
		}
		if !isNotFound(err) {
			return nil, apperror.Wrap(err, "failed to load plan")
		}
	}

	var a models.WorkoutPlanAssignment
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("assigned_at DESC, id DESC").First(&a).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrNoPlanAssigned
		}
		return nil, apperror.Wrap(err, "failed to load plan")
	}
	var plan models.WorkoutPlan
	if err := s.db.WithContext(ctx).First(&plan, a.PlanID).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrNoPlanAssigned
		}
		return nil, apperror.Wrap(err, "failed to load plan")
	}
	return &plan, nil
}

func (s *PlanService) ListDietPlans(ctx context.Context, f PlanFilter) ([]models.DietPlan, Pagination, error) {
	return listPlans[models.DietPlan](ctx, s.db, f)
}

func (s *PlanService) GetDietPlan(ctx context.Context, id uint) (*models.DietPlan, error) {
	var plan models.DietPlan
	if err := s.db.WithContext(ctx).Preload("Assignments").First(&plan, id).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrDietPlanNotFound
		}
		return nil, apperror.Wrap(err, "failed to load diet plan")
	}
	return &plan, nil
}

func (s *PlanService) CreateDietPlan(ctx context.Context, createdBy uint, in DietPlanInput) (*models.DietPlan, error) {
	plan := models.DietPlan{CreatedBy: createdBy}
	if err := applyDietInput(&plan, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&plan).Error; err != nil {
		return nil, apperror.Wrap(err, "failed to create diet plan")
	}
	return &plan, nil
}

func (s *PlanService) UpdateDietPlan(ctx context.Context, id uint, in DietPlanInput) (*models.DietPlan, error) {
	plan, err := s.GetDietPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyDietInput(plan, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Omit("Assignments").Save(plan).Error; err != nil {
		return nil, apperror.Wrap(err, "failed to update diet plan")
	}
	return plan, nil
}

func applyDietInput(plan *models.DietPlan, in DietPlanInput) error {
	days, err := validateWeeklyPlan(in.WeeklyPlan, in.IsTemplate)
	if err != nil {
		return err
	}
	plan.Name = strings.TrimSpace(in.Name)
	plan.Description = in.Description
	plan.Goal = in.Goal
	plan.DailyCalories = in.DailyCalories
	plan.WeeklyPlan = days
	plan.IsTemplate = in.IsTemplate
	return nil
}

func (s *PlanService) DeleteDietPlan(ctx context.Context, id uint) error {
	return apperror.Wrap(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("plan_id = ?", id).Delete(&models.DietPlanAssignment{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("current_diet_plan_id = ?", id).
			Update("current_diet_plan_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.DietPlan{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrDietPlanNotFound
		}
		return nil
	}), "failed to delete diet plan")
}

func (s *PlanService) AssignDietPlan(ctx context.Context, planID uint, userIDs []uint) (*models.DietPlan, error) {
	if _, err := s.GetDietPlan(ctx, planID); err != nil {
		return nil, err
	}
	err := s.assign(ctx, userIDs, func(tx *gorm.DB, userID uint) error {
		a := models.DietPlanAssignment{PlanID: planID, UserID: userID, AssignedAt: s.now()}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "plan_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"assigned_at"}),
		}).Create(&a).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).Update("current_diet_plan_id", planID).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetDietPlan(ctx, planID)
}

func (s *PlanService) UnassignDietPlan(ctx context.Context, planID, userID uint) error {
	return apperror.Wrap(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("plan_id = ? AND user_id = ?", planID, userID).Delete(&models.DietPlanAssignment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.NotFound("assignment not found")
		}
		return tx.Model(&models.User{}).
			Where("id = ? AND current_diet_plan_id = ?", userID, planID).
			Update("current_diet_plan_id", nil).Error
	}), "failed to unassign diet plan")
}

func (s *PlanService) MyDietPlan(ctx context.Context, userID uint) (*models.DietPlan, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, apperror.Wrap(err, "failed to load plan")
	}
	if user.CurrentDietPlanID != nil {
		var plan models.DietPlan
		err := s.db.WithContext(ctx).First(&plan, *user.CurrentDietPlanID).Error
		if err == nil {
			return &plan, nil
		}
		if !isNotFound(err) {
			return nil, apperror.Wrap(err, "failed to load plan")
		}
	}

	var a models.DietPlanAssignment
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("assigned_at DESC, id DESC").First(&a).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrNoPlanAssigned
		}
		return nil, apperror.Wrap(err, "failed to load plan")
	}
	var plan models.DietPlan
	if err := s.db.WithContext(ctx).First(&plan, a.PlanID).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrNoPlanAssigned
		}
		return nil, apperror.Wrap(err, "failed to load plan")
	}
	return &plan, nil
}

// assign runs link for every distinct user id in one transaction
func (s *PlanService) assign(ctx context.Context, userIDs []uint, link func(tx *gorm.DB, userID uint) error) error {
	if len(userIDs) == 0 {
		return apperror.Validation("at least one user id is required")
	}
	ids := slices.Clone(userIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	var found int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
		return apperror.Wrap(err, "failed to assign plan")
	}
	if int(found) != len(ids) {
		return apperror.NotFound("one or more users not found")
	}

	return apperror.Wrap(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range ids {
			if err := link(tx, id); err != nil {
				return err
			}
		}
		return nil
	}), "failed to assign plan")
}
