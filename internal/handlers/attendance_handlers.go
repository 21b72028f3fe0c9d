package handlers

import (
	"github.com/labstack/echo/v4"

	"gymhub_app_echo/internal/models"
	"gymhub_app_echo/internal/services"
)

type AttendanceHandler struct {
	attendance *services.AttendanceService
}

func NewAttendanceHandler(attendance *services.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

type markAbsentRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *AttendanceHandler) CheckIn(c echo.Context) error {
	res, err := h.attendance.CheckIn(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return ok(c, echo.Map{
		"message":    "Checked in",
		"attendance": res.Record,
		"streak":     res.Streak,
	})
}

func (h *AttendanceHandler) CheckOut(c echo.Context) error {
	rec, err := h.attendance.CheckOut(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"message": "Checked out", "attendance": rec})
}

func (h *AttendanceHandler) Status(c echo.Context) error {
	view, err := h.attendance.Status(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"status": view})
}

// History supports ?from=YYYY-MM-DD&to=YYYY-MM-DD plus paging
func (h *AttendanceHandler) History(c echo.Context) error {
	records, summary, pagination, err := h.attendance.History(c.Request().Context(), currentUserID(c), services.HistoryFilter{
		From: c.QueryParam("from"),
		To:   c.QueryParam("to"),
		Page: pageQuery(c),
	})
	if err != nil {
		return err
	}
	return ok(c, echo.Map{
		"attendance": records,
		"summary":    summary,
		"pagination": pagination,
	})
}

// AdminList shows one day's register, today when ?date= is absent
func (h *AttendanceHandler) AdminList(c echo.Context) error {
	records, pagination, err := h.attendance.ListForDate(c.Request().Context(), services.AdminAttendanceFilter{
		Date:   c.QueryParam("date"),
		Status: models.AttendanceStatus(c.QueryParam("status")),
		Page:   pageQuery(c),
	})
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"attendance": records, "pagination": pagination})
}

func (h *AttendanceHandler) MarkAbsent(c echo.Context) error {
	var req markAbsentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	n, err := h.attendance.MarkAbsent(c.Request().Context(), req.Date)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"marked": n})
}

// PushAttendance is the biometric device webhook
func (h *AttendanceHandler) PushAttendance(c echo.Context) error {
	var req services.BiometricEvent
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := h.attendance.RecordBiometric(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"result": res})
}
