package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seatsync/internal/model"
	"github.com/iliyamo/seatsync/internal/repository"
	"github.com/iliyamo/seatsync/internal/service"
)

const identityKey = "identity"

// TokenValidator resolves a session token.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (model.SessionInfo, error)
}

// SessionIdentity reads the optional ?token= query parameter.  No token
// means a guest; an invalid or expired token is rejected with 401 before
// any upgrade happens.
func SessionIdentity(v TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := c.QueryParam("token")
			if token == "" {
				c.Set(identityKey, service.Identity(service.Guest{}))
				return next(c)
			}
			s, err := v.Validate(c.Request().Context(), token)
			if errors.Is(err, repository.ErrUnauthorized) {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid or expired session"})
			}
			if err != nil {
				c.Logger().Errorf("session validation failed: %v", err)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
			c.Set(identityKey, service.Identity(service.Authenticated{Session: s}))
			c.Set("user_id", s.UserID.String())
			return next(c)
		}
	}
}

// IdentityFrom returns the identity stored by SessionIdentity, Guest when
// the middleware did not run.
func IdentityFrom(c echo.Context) service.Identity {
	if id, ok := c.Get(identityKey).(service.Identity); ok && id != nil {
		return id
	}
	return service.Guest{}
}
