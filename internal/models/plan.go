package models

import (
	"time"
)

// PlanExercise is one entry of a workout plan, kept in authored order
type PlanExercise struct {
	Name        string  `json:"name" validate:"required"`
	Sets        int     `json:"sets" validate:"gte=1,lte=20"`
	Reps        int     `json:"reps" validate:"gte=0,lte=200"`
	WeightKG    float64 `json:"weight_kg,omitempty" validate:"gte=0"`
	RestSeconds int     `json:"rest_seconds,omitempty" validate:"gte=0"`
	Notes       string  `json:"notes,omitempty"`
}

// WorkoutPlan is an authored training programme
type WorkoutPlan struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name          string         `gorm:"type:varchar(255)" json:"name"`
	Description   string         `gorm:"type:text" json:"description"`
	Goal          string         `gorm:"type:varchar(100)" json:"goal"`
	Level         string         `gorm:"type:varchar(50)" json:"level"`
	DurationWeeks int            `json:"duration_weeks"`
	Exercises     []PlanExercise `gorm:"serializer:json" json:"exercises"`
	IsTemplate    bool           `gorm:"default:false" json:"is_template"`
	CreatedBy     uint           `json:"created_by"`

	Assignments []WorkoutPlanAssignment `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE" json:"assignments,omitempty"`
}

// WorkoutPlanAssignment links a plan to a member
type WorkoutPlanAssignment struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	PlanID     uint      `gorm:"not null;uniqueIndex:idx_workout_assignment,priority:1" json:"plan_id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_workout_assignment,priority:2;index" json:"user_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Meal is one meal of a diet day
type Meal struct {
	Type     string   `json:"type" validate:"required"` // breakfast, lunch, ...
	Name     string   `json:"name"`
	Items    []string `json:"items,omitempty"`
	Calories int      `json:"calories,omitempty" validate:"gte=0"`
	ProteinG float64  `json:"protein_g,omitempty" validate:"gte=0"`
	CarbsG   float64  `json:"carbs_g,omitempty" validate:"gte=0"`
	FatG     float64  `json:"fat_g,omitempty" validate:"gte=0"`
}

// DietDay is one day of a weekly diet plan
type DietDay struct {
	Day   string `json:"day" validate:"required"`
	Meals []Meal `json:"meals" validate:"dive"`
}

// Weekdays in diet plan order
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// DietPlan is an authored 7-day meal plan
type DietPlan struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name          string    `gorm:"type:varchar(255)" json:"name"`
	Description   string    `gorm:"type:text" json:"description"`
	Goal          string    `gorm:"type:varchar(100)" json:"goal"`
	DailyCalories int       `json:"daily_calories"`
	WeeklyPlan    []DietDay `gorm:"serializer:json" json:"weekly_plan"`
	IsTemplate    bool      `gorm:"default:false" json:"is_template"`
	CreatedBy     uint      `json:"created_by"`

	Assignments []DietPlanAssignment `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE" json:"assignments,omitempty"`
}

// IsSkeleton reports whether the plan is a template with no days filled in
func (p DietPlan) IsSkeleton() bool {
	return p.IsTemplate && len(p.WeeklyPlan) == 0
}

// DietPlanAssignment links a diet plan to a member
type DietPlanAssignment struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	PlanID     uint      `gorm:"not null;uniqueIndex:idx_diet_assignment,priority:1" json:"plan_id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_diet_assignment,priority:2;index" json:"user_id"`
	AssignedAt time.Time `json:"assigned_at"`
}
