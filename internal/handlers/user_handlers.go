package handlers

import (
	"github.com/labstack/echo/v4"

	"gymhub_app_echo/internal/apperror"
	"gymhub_app_echo/internal/models"
	"gymhub_app_echo/internal/services"
)

// UserHandler serves the admin user management routes
type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type hubAccessRequest struct {
	Months int `json:"months" validate:"required,gte=1,lte=24"`
}

type membershipRequest struct {
	MembershipType string `json:"membershipType" validate:"required,max=50"`
	Months         int    `json:"months" validate:"required,gte=1,lte=60"`
}

// ListUsers supports ?search=, ?role=, ?page= and ?limit=
func (h *UserHandler) ListUsers(c echo.Context) error {
	users, pagination, err := h.users.List(c.Request().Context(), services.UserFilter{
		Search: c.QueryParam("search"),
		Role:   models.Role(c.QueryParam("role")),
		Page:   pageQuery(c),
	})
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"users": users, "pagination": pagination})
}

func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.users.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"user": user})
}

func (h *UserHandler) StoreUser(c echo.Context) error {
	var req services.CreateUserInput
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.users.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return created(c, echo.Map{"user": user})
}

func (h *UserHandler) UpdateUser(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req services.UpdateUserInput
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.users.Update(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"user": user})
}

func (h *UserHandler) DeleteUser(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if id == currentUserID(c) {
		return apperror.Validation("you cannot delete your own account")
	}
	if err := h.users.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return message(c, "User deleted")
}

func (h *UserHandler) GrantHubAccess(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req hubAccessRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.users.GrantHubAccess(c.Request().Context(), id, req.Months)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"message": "Premium hub access granted", "user": user})
}

func (h *UserHandler) RevokeHubAccess(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.users.RevokeHubAccess(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"message": "Premium hub access revoked", "user": user})
}

func (h *UserHandler) SetMembership(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req membershipRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.users.SetMembership(c.Request().Context(), id, req.MembershipType, req.Months)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"user": user})
}
