package handlers

import (
	"io"

	"github.com/labstack/echo/v4"

	"gymhub_app_echo/internal/services"
)

// maxNotificationBytes caps the Midtrans notification body we read
const maxNotificationBytes = 64 << 10

type HubHandler struct {
	hub *services.HubService
}

func NewHubHandler(hub *services.HubService) *HubHandler {
	return &HubHandler{hub: hub}
}

type checkoutRequest struct {
	Months int `json:"months" validate:"required,gte=1,lte=12"`
}

// Checkout starts a Snap payment, or returns the pending one for the same months
func (h *HubHandler) Checkout(c echo.Context) error {
	var req checkoutRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := h.hub.Checkout(c.Request().Context(), currentUserID(c), req.Months)
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"payment": res})
}

func (h *HubHandler) Payments(c echo.Context) error {
	payments, err := h.hub.Payments(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return ok(c, echo.Map{"payments": payments})
}

// MidtransNotification receives the gateway's HTTP notification. The raw
// body is kept so it can be stored as received.
func (h *HubHandler) MidtransNotification(c echo.Context) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxNotificationBytes))
	if err != nil {
		return errInvalidBody
	}
	if err := h.hub.HandleNotification(c.Request().Context(), raw); err != nil {
		return err
	}
	return message(c, "OK")
}
