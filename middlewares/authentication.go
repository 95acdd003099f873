// SPDX-License-Identifier: GPL-3.0-only

package middlewares

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"accountd/apikeys"
	"accountd/commons"
	"accountd/db"
	"accountd/metrics"
	"accountd/models"

	"github.com/labstack/echo/v4"
)

type AuthMethod int

const (
	AuthMethodSession AuthMethod = iota
	AuthMethodAPIKey
)

func (m AuthMethod) String() string {
	switch m {
	case AuthMethodSession:
		return "session"
	case AuthMethodAPIKey:
		return "api_key"
	default:
		return "unknown"
	}
}

// Principal is the authenticated caller of one request.
type Principal struct {
	User    *models.User
	APIKey  *models.APIKey
	Session *models.Session
	Method  AuthMethod
}

const principalKey = "principal"

func SetPrincipal(c echo.Context, p *Principal) {
	c.Set(principalKey, p)
}

func GetPrincipal(c echo.Context) (*Principal, bool) {
	p, ok := c.Get(principalKey).(*Principal)
	return p, ok && p != nil && p.User != nil
}

// RequireSession admits requests carrying a valid session cookie.
func RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		logger := c.Logger()

		cookie, err := c.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			return commons.NewHTTPError(http.StatusUnauthorized, "unauthorized", "Please log in to access this page")
		}

		session, user, err := LoadSession(db.Conn, cookie.Value)
		if err != nil {
			logger.Debug("Session rejected: ", err)
			metrics.AuthOutcome(AuthMethodSession.String(), "rejected")
			return commons.NewHTTPError(http.StatusUnauthorized, "unauthorized", "Invalid or expired session, please log in again")
		}

		now := time.Now()
		if err := db.Conn.Model(session).UpdateColumn("last_used_at", now).Error; err != nil {
			logger.Error("Failed to update session LastUsedAt: ", err)
		}
		session.LastUsedAt = &now

		SetPrincipal(c, &Principal{User: user, Session: session, Method: AuthMethodSession})
		return next(c)
	}
}

// bearerValue extracts the credential of an "Authorization: Bearer <value>" header.
func bearerValue(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// RequireAPIKey admits requests carrying a valid API key as a bearer credential.
// The wrapped handler is never invoked on failure.
func RequireAPIKey(manager *apikeys.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			logger := c.Logger()

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return commons.NewHTTPError(http.StatusUnauthorized, "missing_api_key",
					"Include your API key in the Authorization header: Bearer sk_live_...")
			}
			value, ok := bearerValue(header)
			if !ok {
				return commons.NewHTTPError(http.StatusUnauthorized, "invalid_authorization_format",
					"Use: Authorization: Bearer sk_live_...")
			}

			user, key, err := manager.Authenticate(c.Request().Context(), value)
			if err != nil {
				metrics.AuthOutcome(AuthMethodAPIKey.String(), "rejected")
				return apiKeyError(c, err)
			}
			metrics.AuthOutcome(AuthMethodAPIKey.String(), "success")
			logger.Debugf("API key %d authenticated for user %d", key.ID, user.ID)

			SetPrincipal(c, &Principal{User: user, APIKey: key, Method: AuthMethodAPIKey})
			return next(c)
		}
	}
}

func apiKeyError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, apikeys.ErrInvalidFormat):
		return commons.NewHTTPError(http.StatusUnauthorized, "invalid_api_key_format", "API keys must start with sk_live_")
	case errors.Is(err, apikeys.ErrInvalidKey):
		return commons.NewHTTPError(http.StatusUnauthorized, "invalid_api_key", "The provided API key is invalid")
	case errors.Is(err, apikeys.ErrKeyDisabled):
		return commons.NewHTTPError(http.StatusUnauthorized, "api_key_disabled", "This API key has been disabled")
	case errors.Is(err, apikeys.ErrKeyExpired):
		return commons.NewHTTPError(http.StatusUnauthorized, "api_key_expired", "This API key has expired")
	case errors.Is(err, apikeys.ErrAccountDisabled):
		return commons.NewHTTPError(http.StatusForbidden, "account_disabled", "Your account has been disabled")
	default:
		c.Logger().Error("API key authentication failed: ", err)
		return echo.ErrInternalServerError
	}
}

// OptionalPrincipal attaches a principal when the request carries a valid API
// key or session cookie, and otherwise lets it through anonymously.
func OptionalPrincipal(manager *apikeys.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if value, ok := bearerValue(c.Request().Header.Get(echo.HeaderAuthorization)); ok {
				if user, key, err := manager.Authenticate(c.Request().Context(), value); err == nil {
					SetPrincipal(c, &Principal{User: user, APIKey: key, Method: AuthMethodAPIKey})
					return next(c)
				}
			}
			if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				if session, user, err := LoadSession(db.Conn, cookie.Value); err == nil {
					SetPrincipal(c, &Principal{User: user, Session: session, Method: AuthMethodSession})
				}
			}
			return next(c)
		}
	}
}

// RolesRequired must run after an authentication guard.
func RolesRequired(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, ok := GetPrincipal(c)
			if !ok {
				return commons.NewHTTPError(http.StatusUnauthorized, "unauthorized", "Authentication required")
			}
			if !slices.Contains(roles, principal.User.Role) {
				c.Logger().Warnf("User %d with role %s denied", principal.User.ID, principal.User.Role)
				return commons.NewHTTPError(http.StatusForbidden, "forbidden", "You do not have permission to access this resource")
			}
			return next(c)
		}
	}
}
