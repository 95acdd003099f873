// SPDX-License-Identifier: GPL-3.0-only

package middlewares

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"accountd/commons"
	"accountd/crypto"
	"accountd/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const SessionCookieName = "session_token"

var errInvalidSession = errors.New("invalid session token")

type sessionClaims struct {
	SessionID uint `json:"sid"`
	UserID    uint `json:"uid"`
	jwt.RegisteredClaims
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CreateSession stores a session row for user and returns the signed cookie value.
func CreateSession(c echo.Context, conn *gorm.DB, user *models.User) (string, *models.Session, error) {
	cfg := commons.GetConfig()

	tokenID, err := crypto.GenerateRandomString("st_", 32, "hex")
	if err != nil {
		return "", nil, fmt.Errorf("generate session id: %w", err)
	}

	now := time.Now()
	session := &models.Session{
		Token:      tokenID,
		IPAddress:  optionalString(c.RealIP()),
		UserAgent:  optionalString(c.Request().UserAgent()),
		LastUsedAt: &now,
		ExpiresAt:  now.Add(cfg.SessionTTL),
		UserID:     user.ID,
	}
	if err := conn.Omit("User").Create(session).Error; err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		SessionID: session.ID,
		UserID:    user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			Issuer:    cfg.BaseURL,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	})
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	return signed, session, nil
}

func parseSessionToken(raw string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(commons.GetConfig().JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, errInvalidSession
	}
	if claims.SessionID == 0 || claims.UserID == 0 || claims.ID == "" {
		return nil, errInvalidSession
	}
	return claims, nil
}

// LoadSession resolves a cookie value to a live session and its active owner.
func LoadSession(conn *gorm.DB, raw string) (*models.Session, *models.User, error) {
	claims, err := parseSessionToken(raw)
	if err != nil {
		return nil, nil, err
	}

	var session models.Session
	err = conn.Preload("User").Preload("User.Plan").
		Where("id = ? AND user_id = ? AND token = ?", claims.SessionID, claims.UserID, claims.ID).
		First(&session).Error
	if err != nil {
		return nil, nil, errInvalidSession
	}
	if session.IsExpired(time.Now()) || !session.User.IsActive {
		return nil, nil, errInvalidSession
	}

	user := session.User
	return &session, &user, nil
}

func SetSessionCookie(c echo.Context, value string, expires time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   commons.GetConfig().CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   commons.GetConfig().CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
