package middleware

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"gymhub_app_echo/internal/apperror"
	"gymhub_app_echo/internal/models"
	"gymhub_app_echo/internal/services"
)

// Context keys set by RequireAuth
const (
	ContextUserID    = "userID"
	ContextUserEmail = "userEmail"
	ContextUserRole  = "userRole"
	ContextUser      = "user"
)

var (
	errMissingToken    = apperror.Unauthenticated("missing bearer token")
	errAdminOnly       = apperror.Forbidden("admin access required")
	errHubRequired     = apperror.Forbidden("premium hub access required")
	errBadBiometricKey = apperror.Unauthenticated("invalid biometric api key")
)

// TokenVerifier checks a raw bearer token
type TokenVerifier interface {
	Verify(raw string) (*services.Claims, error)
}

// UserLoader fetches the full user record for the hub gate
type UserLoader interface {
	Get(ctx context.Context, id uint) (*models.User, error)
}

// RequireAuth verifies the Authorization bearer token and stores the claims
// in the request context
func RequireAuth(tokens TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return errMissingToken
			}

			claims, err := tokens.Verify(strings.TrimSpace(raw))
			if err != nil {
				return err
			}

			c.Set(ContextUserID, claims.UserID)
			c.Set(ContextUserEmail, claims.Email)
			c.Set(ContextUserRole, claims.Role)
			return next(c)
		}
	}
}

// RequireAdmin must run after RequireAuth
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !RoleFrom(c).CanManageClub() {
				return errAdminOnly
			}
			return next(c)
		}
	}
}

// RequireHubAccess admits admins and members with an unexpired premium hub
// grant. The loaded user is cached on the context for handlers.
func RequireHubAccess(users UserLoader, now func() time.Time) echo.MiddlewareFunc {
	if now == nil {
		now = time.Now
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if RoleFrom(c).BypassesHubGate() {
				return next(c)
			}

			user, err := users.Get(c.Request().Context(), UserIDFrom(c))
			if err != nil {
				if apperror.KindOf(err) == apperror.KindNotFound {
					return apperror.Unauthenticated("account no longer exists")
				}
				return err
			}
			if !user.HasActiveHubAccess(now()) {
				return errHubRequired
			}

			c.Set(ContextUser, user)
			return next(c)
		}
	}
}

// BiometricKey guards the device webhook with a shared secret header
func BiometricKey(expected string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.Request().Header.Get("X-Biometric-Key")
			if expected == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
				return errBadBiometricKey
			}
			return next(c)
		}
	}
}

// UserIDFrom returns the authenticated user id, zero when absent
func UserIDFrom(c echo.Context) uint {
	id, _ := c.Get(ContextUserID).(uint)
	return id
}

func RoleFrom(c echo.Context) models.Role {
	role, _ := c.Get(ContextUserRole).(models.Role)
	return role
}

// CachedUser returns the user loaded by RequireHubAccess, if any
func CachedUser(c echo.Context) *models.User {
	user, _ := c.Get(ContextUser).(*models.User)
	return user
}
