package handlers

import (
	"github.com/labstack/echo/v4"

	"gymhub_app_echo/internal/services"
)

// MeHandler serves the signed-in member's own account routes
type MeHandler struct {
	users *services.UserService
	auth  *services.AuthService
}

func NewMeHandler(users *services.UserService, auth *services.AuthService) *MeHandler {
	return &MeHandler{users: users, auth: auth}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

func (h *MeHandler) Me(c echo.Context) error {
	user, err := h.users.Get(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"user": user})
}

func (h *MeHandler) UpdateProfile(c echo.Context) error {
	var req services.ProfileInput
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.users.UpdateProfile(c.Request().Context(), currentUserID(c), req)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"user": user})
}

func (h *MeHandler) ChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.auth.ChangePassword(c.Request().Context(), currentUserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return message(c, "Password changed")
}

// GetNotifPreference returns the stored preference, or the email default
func (h *MeHandler) GetNotifPreference(c echo.Context) error {
	pref, err := h.users.NotifPreference(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"preference": pref})
}

func (h *MeHandler) UpdateNotifPreference(c echo.Context) error {
	var req services.NotifPreferenceInput
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	pref, err := h.users.SaveNotifPreference(c.Request().Context(), currentUserID(c), req)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"preference": pref})
}
