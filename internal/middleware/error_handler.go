package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"gymhub_app_echo/internal/apperror"
)

const genericErrorMessage = "Something went wrong. Please try again later."

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// JSONErrorHandler converts handler errors into {success:false, message}
func JSONErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := genericErrorMessage

	var ae *apperror.Error
	var he *echo.HTTPError
	switch {
	case errors.As(err, &ae):
		code = ae.Status()
		if ae.Kind == apperror.KindUnexpected {
			slog.Error("request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"error", err,
			)
		} else {
			message = ae.Message
		}
	case errors.As(err, &he):
		code = he.Code
		if msg, ok := he.Message.(string); ok && msg != "" {
			message = msg
		} else {
			message = http.StatusText(code)
		}
		if code >= http.StatusInternalServerError {
			slog.Error("request failed", "path", c.Path(), "error", err)
			message = genericErrorMessage
		}
	default:
		slog.Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err,
		)
	}

	body := ErrorResponse{Success: false, Message: message}
	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(code)
	} else {
		writeErr = c.JSON(code, body)
	}
	if writeErr != nil {
		slog.Error("failed to write error response", "error", writeErr)
	}
}
