package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

var errPlanMissing = NotFound("plan not found")

func TestStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{Conflict("dup"), http.StatusBadRequest},
		{Unauthenticated("who"), http.StatusUnauthorized},
		{Forbidden("no"), http.StatusForbidden},
		{NotFound("gone"), http.StatusNotFound},
		{&Error{Kind: KindUnexpected, Message: "boom"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.err.Status(); got != tt.want {
			t.Errorf("%v: status %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "x") != nil {
		t.Fatalf("Wrap(nil) should stay nil")
	}

	cause := errors.New("connection refused")
	wrapped := Wrap(cause, "failed to load plan")
	if KindOf(wrapped) != KindUnexpected || !errors.Is(wrapped, cause) {
		t.Errorf("foreign cause: kind %v, unwraps %v", KindOf(wrapped), errors.Is(wrapped, cause))
	}
	if wrapped.Error() != "failed to load plan: connection refused" {
		t.Errorf("message = %q", wrapped.Error())
	}

	// an *Error already carries the kind the caller should see
	passed := Wrap(fmt.Errorf("lookup: %w", errPlanMissing), "failed to load plan")
	if KindOf(passed) != KindNotFound || passed.Error() != "plan not found" {
		t.Errorf("passthrough = %v (kind %v)", passed, KindOf(passed))
	}
}

func TestKindOfAndIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
		is   bool
	}{
		{"sentinel", errPlanMissing, KindNotFound, true},
		{"same kind and message", NotFound("plan not found"), KindNotFound, true},
		{"wrapped with fmt", fmt.Errorf("ctx: %w", errPlanMissing), KindNotFound, true},
		{"same message other kind", Validation("plan not found"), KindValidation, false},
		{"other message", NotFound("user not found"), KindNotFound, false},
		{"foreign", errors.New("plan not found"), KindUnexpected, false},
		{"formatted", Validationf("invalid %s", "id"), KindValidation, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.kind {
				t.Errorf("KindOf = %v, want %v", got, tt.kind)
			}
			if got := errors.Is(tt.err, errPlanMissing); got != tt.is {
				t.Errorf("errors.Is = %v, want %v", got, tt.is)
			}
		})
	}
}
