package handlers

import (
	"context"

	"github.com/labstack/echo/v4"

	"gymhub_app_echo/internal/models"
	"gymhub_app_echo/internal/services"
)

type WorkoutSessionHandler struct {
	sessions *services.WorkoutSessionService
}

func NewWorkoutSessionHandler(sessions *services.WorkoutSessionService) *WorkoutSessionHandler {
	return &WorkoutSessionHandler{sessions: sessions}
}

func (h *WorkoutSessionHandler) Start(c echo.Context) error {
	var req services.StartSessionInput
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	session, err := h.sessions.Start(c.Request().Context(), currentUserID(c), req)
	if err != nil {
		return err
	}
	return created(c, echo.Map{"message": "Workout session started", "session": session})
}

func (h *WorkoutSessionHandler) Pause(c echo.Context) error {
	return h.transition(c, h.sessions.Pause)
}

func (h *WorkoutSessionHandler) Resume(c echo.Context) error {
	return h.transition(c, h.sessions.Resume)
}

func (h *WorkoutSessionHandler) NextExercise(c echo.Context) error {
	return h.transition(c, h.sessions.NextExercise)
}

func (h *WorkoutSessionHandler) PrevExercise(c echo.Context) error {
	return h.transition(c, h.sessions.PrevExercise)
}

func (h *WorkoutSessionHandler) transition(c echo.Context, fn func(context.Context, uint) (*models.SessionSnapshot, error)) error {
	session, err := fn(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"session": session})
}

func (h *WorkoutSessionHandler) UpdateSet(c echo.Context) error {
	var req services.UpdateSetInput
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	session, err := h.sessions.UpdateSet(c.Request().Context(), currentUserID(c), req)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"session": session})
}

func (h *WorkoutSessionHandler) Complete(c echo.Context) error {
	var req services.CompleteSessionInput
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	session, err := h.sessions.Complete(c.Request().Context(), currentUserID(c), req)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"message": "Workout session completed", "session": session})
}

func (h *WorkoutSessionHandler) Cancel(c echo.Context) error {
	var req services.CancelSessionInput
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	session, err := h.sessions.Cancel(c.Request().Context(), currentUserID(c), req)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"message": "Workout session cancelled", "session": session})
}

// Current answers with session: null when nothing is running
func (h *WorkoutSessionHandler) Current(c echo.Context) error {
	session, err := h.sessions.Current(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"session": session})
}

func (h *WorkoutSessionHandler) History(c echo.Context) error {
	sessions, pagination, err := h.sessions.History(c.Request().Context(), currentUserID(c), services.SessionHistoryFilter{
		State: models.SessionState(c.QueryParam("state")),
		Page:  pageQuery(c),
	})
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"sessions": sessions, "pagination": pagination})
}

func (h *WorkoutSessionHandler) WeeklyStats(c echo.Context) error {
	stats, err := h.sessions.WeeklyStats(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"stats": stats})
}

func (h *WorkoutSessionHandler) MonthlyStats(c echo.Context) error {
	stats, err := h.sessions.MonthlyStats(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"stats": stats})
}
