package handlers

import (
	"github.com/labstack/echo/v4"

	"gymhub_app_echo/internal/models"
	"gymhub_app_echo/internal/services"
)

type AnnouncementHandler struct {
	announcements *services.AnnouncementService
	users         *services.UserService
}

func NewAnnouncementHandler(announcements *services.AnnouncementService, users *services.UserService) *AnnouncementHandler {
	return &AnnouncementHandler{announcements: announcements, users: users}
}

type announcementActionRequest struct {
	AnnouncementID uint `json:"announcementId" validate:"required,gt=0"`
}

func (h *AnnouncementHandler) List(c echo.Context) error {
	list, pagination, err := h.announcements.List(c.Request().Context(), services.AnnouncementFilter{
		Search:   c.QueryParam("search"),
		Category: c.QueryParam("category"),
		IsActive: boolQuery(c, "isActive"),
		Page:     pageQuery(c),
	})
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"announcements": list, "pagination": pagination})
}

func (h *AnnouncementHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.announcements.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"announcement": a})
}

func (h *AnnouncementHandler) Store(c echo.Context) error {
	var req services.AnnouncementInput
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	a, err := h.announcements.Create(c.Request().Context(), currentUserID(c), req)
	if err != nil {
		return err
	}
	return created(c, echo.Map{"announcement": a})
}

func (h *AnnouncementHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req services.AnnouncementInput
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	a, err := h.announcements.Update(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"announcement": a})
}

func (h *AnnouncementHandler) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.announcements.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return message(c, "Announcement deleted")
}

func (h *AnnouncementHandler) Stats(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	stats, err := h.announcements.Stats(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"stats": stats})
}

// Feed lists what the caller may see; ?includeDismissed=true shows hidden ones
func (h *AnnouncementHandler) Feed(c echo.Context) error {
	user, err := h.member(c)
	if err != nil {
		return err
	}
	includeDismissed := false
	if v := boolQuery(c, "includeDismissed"); v != nil {
		includeDismissed = *v
	}
	items, err := h.announcements.Feed(c.Request().Context(), user, includeDismissed)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"announcements": items, "count": len(items)})
}

func (h *AnnouncementHandler) UnreadCount(c echo.Context) error {
	user, err := h.member(c)
	if err != nil {
		return err
	}
	n, err := h.announcements.UnreadCount(c.Request().Context(), user)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"unreadCount": n})
}

func (h *AnnouncementHandler) MarkRead(c echo.Context) error {
	var req announcementActionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.member(c)
	if err != nil {
		return err
	}
	if err := h.announcements.MarkRead(c.Request().Context(), user, req.AnnouncementID); err != nil {
		return err
	}
	return message(c, "Announcement marked as read")
}

func (h *AnnouncementHandler) Dismiss(c echo.Context) error {
	var req announcementActionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.member(c)
	if err != nil {
		return err
	}
	if err := h.announcements.Dismiss(c.Request().Context(), user, req.AnnouncementID); err != nil {
		return err
	}
	return message(c, "Announcement dismissed")
}

// member loads the caller; visibility depends on membership and hub state
func (h *AnnouncementHandler) member(c echo.Context) (*models.User, error) {
	return h.users.Get(c.Request().Context(), currentUserID(c))
}
