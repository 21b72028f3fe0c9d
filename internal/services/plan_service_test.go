package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gymhub_app_echo/internal/apperror"
	"gymhub_app_echo/internal/models"
)

func weekOfMeals() []models.DietDay {
	// deliberately out of order
	days := []string{"sunday", "Monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}
	out := make([]models.DietDay, len(days))
	for i, d := range days {
		out[i] = models.DietDay{Day: d, Meals: []models.Meal{{Type: "breakfast", Name: "Oats", Calories: 350}}}
	}
	return out
}

func TestWorkoutPlanAssignment(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	svc := NewPlanService(db, clock.Now)
	ctx := context.Background()
	admin := createUser(t, db, models.User{Role: models.RoleAdmin})
	member := createUser(t, db, models.User{})

	if _, err := svc.MyWorkoutPlan(ctx, member.ID); !errors.Is(err, ErrNoPlanAssigned) {
		t.Fatalf("MyWorkoutPlan before assignment = %v", err)
	}

	strength, err := svc.CreateWorkoutPlan(ctx, admin.ID, WorkoutPlanInput{
		Name: " Strength ",
		Exercises: []models.PlanExercise{
			{Name: "Deadlift", Sets: 3, Reps: 5},
			{Name: "Pull-up", Sets: 3, Reps: 8},
			{Name: "Plank", Sets: 3, Reps: 1},
		},
	})
	if err != nil {
		t.Fatalf("CreateWorkoutPlan: %v", err)
	}
	cardio, _ := svc.CreateWorkoutPlan(ctx, admin.ID, WorkoutPlanInput{Name: "Cardio", Exercises: []models.PlanExercise{{Name: "Row", Sets: 1, Reps: 1}}})

	assigned, err := svc.AssignWorkoutPlan(ctx, strength.ID, []uint{member.ID, member.ID})
	if err != nil {
		t.Fatalf("AssignWorkoutPlan: %v", err)
	}
	if len(assigned.Assignments) != 1 {
		t.Errorf("assignments = %d, want 1 after dedupe", len(assigned.Assignments))
	}

	mine, err := svc.MyWorkoutPlan(ctx, member.ID)
	if err != nil {
		t.Fatalf("MyWorkoutPlan: %v", err)
	}
	if mine.Name != "Strength" {
		t.Errorf("plan name = %q", mine.Name)
	}
	got := []string{}
	for _, ex := range mine.Exercises {
		got = append(got, ex.Name)
	}
	if len(got) != 3 || got[0] != "Deadlift" || got[1] != "Pull-up" || got[2] != "Plank" {
		t.Errorf("exercise order = %v", got)
	}

	clock.Advance(time.Hour)
	if _, err := svc.AssignWorkoutPlan(ctx, cardio.ID, []uint{member.ID}); err != nil {
		t.Fatal(err)
	}
	if mine, _ := svc.MyWorkoutPlan(ctx, member.ID); mine.ID != cardio.ID {
		t.Errorf("latest assignment should become current, got plan %d", mine.ID)
	}

	// dropping the current plan falls back to the remaining assignment
	if err := svc.DeleteWorkoutPlan(ctx, cardio.ID); err != nil {
		t.Fatalf("DeleteWorkoutPlan: %v", err)
	}
	if mine, err := svc.MyWorkoutPlan(ctx, member.ID); err != nil || mine.ID != strength.ID {
		t.Errorf("after delete = %v, %v", mine, err)
	}

	if err := svc.UnassignWorkoutPlan(ctx, strength.ID, member.ID); err != nil {
		t.Fatalf("UnassignWorkoutPlan: %v", err)
	}
	if err := svc.UnassignWorkoutPlan(ctx, strength.ID, member.ID); apperror.KindOf(err) != apperror.KindNotFound {
		t.Errorf("second unassign = %v", err)
	}
	if _, err := svc.AssignWorkoutPlan(ctx, strength.ID, []uint{member.ID, 4242}); apperror.KindOf(err) != apperror.KindNotFound {
		t.Errorf("assign unknown user = %v", err)
	}
	if err := svc.DeleteWorkoutPlan(ctx, 4242); !errors.Is(err, ErrWorkoutPlanNotFound) {
		t.Errorf("delete missing = %v", err)
	}
}

func TestDietPlanWeeklyValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewPlanService(db, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		in      DietPlanInput
		wantErr bool
	}{
		{"full week", DietPlanInput{Name: "Cut", WeeklyPlan: weekOfMeals()}, false},
		{"template skeleton", DietPlanInput{Name: "Blank", IsTemplate: true}, false},
		{"missing days", DietPlanInput{Name: "Short", WeeklyPlan: weekOfMeals()[:5]}, true},
		{"duplicate day", DietPlanInput{Name: "Dup", WeeklyPlan: append(weekOfMeals()[:6], models.DietDay{Day: "sunday"})}, true},
		{"unknown day", DietPlanInput{Name: "Odd", WeeklyPlan: append(weekOfMeals()[:6], models.DietDay{Day: "funday"})}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := svc.CreateDietPlan(ctx, 1, tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateDietPlan err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if apperror.KindOf(err) != apperror.KindValidation {
					t.Errorf("kind = %v, want validation", apperror.KindOf(err))
				}
				return
			}
			if len(plan.WeeklyPlan) > 0 && (plan.WeeklyPlan[0].Day != "monday" || plan.WeeklyPlan[6].Day != "sunday") {
				t.Errorf("days not normalized: first %s last %s", plan.WeeklyPlan[0].Day, plan.WeeklyPlan[6].Day)
			}
		})
	}
}

func TestMyDietPlan(t *testing.T) {
	db := newTestDB(t)
	svc := NewPlanService(db, nil)
	ctx := context.Background()
	member := createUser(t, db, models.User{})

	plan, err := svc.CreateDietPlan(ctx, 1, DietPlanInput{Name: "Bulk", DailyCalories: 3000, WeeklyPlan: weekOfMeals()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AssignDietPlan(ctx, plan.ID, []uint{member.ID}); err != nil {
		t.Fatalf("AssignDietPlan: %v", err)
	}
	mine, err := svc.MyDietPlan(ctx, member.ID)
	if err != nil {
		t.Fatalf("MyDietPlan: %v", err)
	}
	if mine.DailyCalories != 3000 || len(mine.WeeklyPlan) != 7 || mine.WeeklyPlan[0].Meals[0].Name != "Oats" {
		t.Errorf("diet plan did not round-trip: %+v", mine)
	}

	if err := svc.UnassignDietPlan(ctx, plan.ID, member.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.MyDietPlan(ctx, member.ID); !errors.Is(err, ErrNoPlanAssigned) {
		t.Errorf("after unassign = %v", err)
	}
}
