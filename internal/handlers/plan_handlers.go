package handlers

import (
	"github.com/labstack/echo/v4"

	"gymhub_app_echo/internal/services"
)

// PlanHandler serves the workout and diet catalogs
type PlanHandler struct {
	plans *services.PlanService
}

func NewPlanHandler(plans *services.PlanService) *PlanHandler {
	return &PlanHandler{plans: plans}
}

type assignRequest struct {
	UserIDs []uint `json:"userIds" validate:"required,min=1,dive,gt=0"`
}

func planFilter(c echo.Context) services.PlanFilter {
	return services.PlanFilter{
		Search:     c.QueryParam("search"),
		IsTemplate: boolQuery(c, "isTemplate"),
		Page:       pageQuery(c),
	}
}

func (h *PlanHandler) ListWorkoutPlans(c echo.Context) error {
	plans, pagination, err := h.plans.ListWorkoutPlans(c.Request().Context(), planFilter(c))
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"plans": plans, "pagination": pagination})
}

func (h *PlanHandler) GetWorkoutPlan(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	plan, err := h.plans.GetWorkoutPlan(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"plan": plan})
}

func (h *PlanHandler) StoreWorkoutPlan(c echo.Context) error {
	var req services.WorkoutPlanInput
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	plan, err := h.plans.CreateWorkoutPlan(c.Request().Context(), currentUserID(c), req)
	if err != nil {
		return err
	}
	return created(c, echo.Map{"plan": plan})
}

func (h *PlanHandler) UpdateWorkoutPlan(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req services.WorkoutPlanInput
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	plan, err := h.plans.UpdateWorkoutPlan(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"plan": plan})
}

func (h *PlanHandler) DeleteWorkoutPlan(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.plans.DeleteWorkoutPlan(c.Request().Context(), id); err != nil {
		return err
	}
	return message(c, "Workout plan deleted")
}

// AssignWorkoutPlan is idempotent; re-assigning refreshes assigned_at
func (h *PlanHandler) AssignWorkoutPlan(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req assignRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	plan, err := h.plans.AssignWorkoutPlan(c.Request().Context(), id, req.UserIDs)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"message": "Workout plan assigned", "plan": plan})
}

func (h *PlanHandler) UnassignWorkoutPlan(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	userID, err := paramID(c, "userId")
	if err != nil {
		return err
	}
	if err := h.plans.UnassignWorkoutPlan(c.Request().Context(), id, userID); err != nil {
		return err
	}
	return message(c, "Workout plan unassigned")
}

func (h *PlanHandler) MyWorkoutPlan(c echo.Context) error {
	plan, err := h.plans.MyWorkoutPlan(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"plan": plan})
}

func (h *PlanHandler) ListDietPlans(c echo.Context) error {
	plans, pagination, err := h.plans.ListDietPlans(c.Request().Context(), planFilter(c))
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"plans": plans, "pagination": pagination})
}

func (h *PlanHandler) GetDietPlan(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	plan, err := h.plans.GetDietPlan(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"plan": plan})
}

func (h *PlanHandler) StoreDietPlan(c echo.Context) error {
	var req services.DietPlanInput
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	plan, err := h.plans.CreateDietPlan(c.Request().Context(), currentUserID(c), req)
	if err != nil {
		return err
	}
	return created(c, echo.Map{"plan": plan})
}

func (h *PlanHandler) UpdateDietPlan(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req services.DietPlanInput
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	plan, err := h.plans.UpdateDietPlan(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"plan": plan})
}

func (h *PlanHandler) DeleteDietPlan(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.plans.DeleteDietPlan(c.Request().Context(), id); err != nil {
		return err
	}
	return message(c, "Diet plan deleted")
}

func (h *PlanHandler) AssignDietPlan(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req assignRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	plan, err := h.plans.AssignDietPlan(c.Request().Context(), id, req.UserIDs)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"message": "Diet plan assigned", "plan": plan})
}

func (h *PlanHandler) UnassignDietPlan(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	userID, err := paramID(c, "userId")
	if err != nil {
		return err
	}
	if err := h.plans.UnassignDietPlan(c.Request().Context(), id, userID); err != nil {
		return err
	}
	return message(c, "Diet plan unassigned")
}

func (h *PlanHandler) MyDietPlan(c echo.Context) error {
	plan, err := h.plans.MyDietPlan(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"plan": plan})
}
