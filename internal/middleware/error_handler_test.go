package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"gymhub_app_echo/internal/apperror"
)

func TestJSONErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    int
		wantMessage string
	}{
		{"validation", apperror.Validation("name is required"), http.StatusBadRequest, "name is required"},
		{"conflict", apperror.Conflict("email already registered"), http.StatusBadRequest, "email already registered"},
		{"not found", apperror.NotFound("plan not found"), http.StatusNotFound, "plan not found"},
		{"wrapped app error", fmt.Errorf("loading: %w", apperror.Forbidden("nope")), http.StatusForbidden, "nope"},
		{"unexpected hides details", apperror.Wrap(errors.New("connection reset"), "failed to load user"), http.StatusInternalServerError, genericErrorMessage},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, genericErrorMessage},
		{"echo http error", echo.NewHTTPError(http.StatusMethodNotAllowed, "method not allowed"), http.StatusMethodNotAllowed, "method not allowed"},
		{"echo 404", echo.ErrNotFound, http.StatusNotFound, "Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), rec)

			JSONErrorHandler(tt.err, c)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var body ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("body %q: %v", rec.Body.String(), err)
			}
			if body.Success || body.Message != tt.wantMessage {
				t.Errorf("body = %+v, want message %q", body, tt.wantMessage)
			}
		})
	}
}

func TestJSONErrorHandlerCommitted(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), rec)
	if err := c.String(http.StatusOK, "partial"); err != nil {
		t.Fatal(err)
	}

	JSONErrorHandler(errors.New("late failure"), c)
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), "success") {
		t.Errorf("a committed response was rewritten: %d %q", rec.Code, rec.Body.String())
	}
}

func TestRequestValidator(t *testing.T) {
	type payload struct {
		Name  string   `validate:"required"`
		Email string   `validate:"omitempty,email"`
		Kind  string   `validate:"omitempty,oneof=a b"`
		Tags  []string `validate:"omitempty,min=2"`
	}
	v := NewRequestValidator()

	tests := []struct {
		name string
		in   payload
		want string
	}{
		{"ok", payload{Name: "x"}, ""},
		{"required", payload{}, "name is required"},
		{"email", payload{Name: "x", Email: "nope"}, "email must be a valid email"},
		{"oneof", payload{Name: "x", Kind: "c"}, "kind must be one of: a b"},
		{"min", payload{Name: "x", Tags: []string{"t"}}, "tags must have at least 2 item(s)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.in)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate = %v", err)
				}
				return
			}
			if apperror.KindOf(err) != apperror.KindValidation || err.Error() != tt.want {
				t.Errorf("Validate = %v, want %q", err, tt.want)
			}
		})
	}
}
