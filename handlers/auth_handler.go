// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"time"

	"accountd/commons"
	"accountd/crypto"
	"accountd/db"
	"accountd/metrics"
	"accountd/middlewares"
	"accountd/models"
	"accountd/notifications"
	"accountd/passwordcheck"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const genericResetMessage = "If the email you entered is linked to an account, you'll receive password reset instructions in your mail. Be sure to check your inbox and spam folder."

const genericResendMessage = "If the email you entered belongs to an unconfirmed account, a new confirmation link is on its way."

// passwordFingerprint ties reset tokens to the password they were issued for.
func passwordFingerprint(digest string) string {
	sum := sha256.Sum256([]byte(digest))
	return hex.EncodeToString(sum[:8])
}

func tokenError(err error) *echo.HTTPError {
	if errors.Is(err, crypto.ErrTokenExpired) {
		return commons.NewHTTPError(http.StatusBadRequest, "token_expired", "This link has expired, please request a new one")
	}
	return commons.NewHTTPError(http.StatusBadRequest, "token_invalid", "This link is invalid")
}

func sendConfirmation(c echo.Context, user *models.User) (string, error) {
	cfg := commons.GetConfig()
	token, err := crypto.NewTokenCodecFromConfig().Issue(map[string]any{"uid": user.ID}, crypto.PurposeConfirm)
	if err != nil {
		return "", err
	}
	confirmURL := cfg.BaseURL + "/auth/confirm/" + token

	SendNotification(notifications.NotificationData{
		To:       user.Email,
		Subject:  "Confirm your email",
		Template: notifications.TemplateConfirmEmail,
		Variables: map[string]any{
			"app_name":    cfg.AppName,
			"confirm_url": confirmURL,
		},
	})
	c.Logger().Infof("Confirmation email queued for user %d", user.ID)
	return confirmURL, nil
}

// RegisterHandler godoc
// @Summary      Register a new account
// @Description  Creates an unconfirmed account and emails a confirmation link valid for 24 hours.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        registerRequest  body  RegisterRequest  true  "Registration payload"
// @Success      201 {object} RegisterResponse
// @Failure      400 {object} commons.ErrorBody "Validation error"
// @Failure      409 {object} commons.ErrorBody "Email already registered"
// @Failure      500 {object} commons.ErrorBody "Internal server error"
// @Router       /auth/register [post]
func RegisterHandler(c echo.Context) error {
	logger := c.Logger()

	var req RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	email := commons.NormalizeEmail(req.Email)

	if err := passwordcheck.ValidatePassword(c.Request().Context(), req.Password); err != nil {
		return validationError(err.Error())
	}

	taken, err := emailTaken(db.Conn, email, 0)
	if err != nil {
		logger.Errorf("Failed to check email availability: %v", err)
		return echo.ErrInternalServerError
	}
	if taken {
		return conflictError("An account with this email already exists")
	}

	digest, err := crypto.NewCrypto().HashPassword(req.Password)
	if err != nil {
		logger.Errorf("Failed to hash password: %v", err)
		return echo.ErrInternalServerError
	}

	user := models.User{
		Email:    email,
		Password: digest,
		Role:     models.RoleUser,
		Language: models.LanguageEN,
		IsActive: true,
	}
	if err := db.Conn.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return conflictError("An account with this email already exists")
		}
		logger.Errorf("Failed to create user: %v", err)
		return echo.ErrInternalServerError
	}

	confirmURL, err := sendConfirmation(c, &user)
	if err != nil {
		logger.Errorf("Failed to issue confirmation token: %v", err)
		return echo.ErrInternalServerError
	}
	LogEvent(db.Conn, user.ID, models.Auth, models.Success, "Account registered")

	resp := RegisterResponse{
		Message: "Registration successful. Please check your email to confirm your account.",
		User:    newUserResource(&user),
	}
	if commons.GetConfig().Debug {
		resp.ConfirmURL = confirmURL
	}
	return c.JSON(http.StatusCreated, resp)
}

// ConfirmEmailHandler godoc
// @Summary      Confirm an email address
// @Tags         auth
// @Produce      json
// @Param        token  path  string  true  "Confirmation token"
// @Success      200 {object} GenericResponse
// @Failure      400 {object} commons.ErrorBody "Expired or invalid token"
// @Router       /auth/confirm/{token} [get]
func ConfirmEmailHandler(c echo.Context) error {
	logger := c.Logger()
	cfg := commons.GetConfig()

	payload, err := crypto.NewTokenCodecFromConfig().VerifyPurpose(c.Param("token"), crypto.PurposeConfirm, crypto.ConfirmTokenMaxAge)
	if err != nil {
		logger.Warn("Confirmation token rejected: ", err)
		return tokenError(err)
	}
	userID, err := crypto.UserIDFromPayload(payload)
	if err != nil {
		return tokenError(crypto.ErrTokenInvalid)
	}

	var user models.User
	if err := db.Conn.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tokenError(crypto.ErrTokenInvalid)
		}
		logger.Errorf("Failed to load user: %v", err)
		return echo.ErrInternalServerError
	}

	if user.IsConfirmed() {
		return c.JSON(http.StatusOK, GenericResponse{Message: "Account already confirmed. Please log in."})
	}

	now := time.Now()
	if err := db.Conn.Model(&user).Update("confirmed_at", now).Error; err != nil {
		logger.Errorf("Failed to confirm user: %v", err)
		return echo.ErrInternalServerError
	}
	LogEvent(db.Conn, user.ID, models.Auth, models.Success, "Email confirmed")

	SendNotification(notifications.NotificationData{
		To:       user.Email,
		Subject:  "Welcome to " + cfg.AppName,
		Template: notifications.TemplateWelcome,
		Variables: map[string]any{
			"app_name":  cfg.AppName,
			"email":     user.Email,
			"login_url": cfg.BaseURL + "/auth/login",
		},
	})

	return c.JSON(http.StatusOK, GenericResponse{Message: "Your account has been confirmed. You can now log in."})
}

// ResendConfirmationHandler godoc
// @Summary      Resend the confirmation email
// @Description  Always answers with the same message so account existence is not revealed.
// @Tags         auth
// @Produce      json
// @Param        email  query  string  true  "Account email"
// @Success      200 {object} GenericResponse
// @Router       /auth/resend-confirmation [get]
func ResendConfirmationHandler(c echo.Context) error {
	logger := c.Logger()

	email := commons.NormalizeEmail(c.QueryParam("email"))
	if email != "" {
		var user models.User
		err := db.Conn.Where("email = ?", email).First(&user).Error
		switch {
		case err == nil && !user.IsConfirmed():
			if _, err := sendConfirmation(c, &user); err != nil {
				logger.Errorf("Failed to issue confirmation token: %v", err)
				return echo.ErrInternalServerError
			}
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			logger.Errorf("Failed to look up user: %v", err)
			return echo.ErrInternalServerError
		}
	}

	return c.JSON(http.StatusOK, GenericResponse{Message: genericResendMessage})
}

// LoginHandler godoc
// @Summary      Log in
// @Description  Verifies credentials, sets the session cookie and redirects to next (local paths only) or /profile.
// @Tags         auth
// @Accept       json
// @Param        next          query  string        false  "Local path to continue to"
// @Param        loginRequest  body   LoginRequest  true   "Credentials"
// @Success      303 "Logged in"
// @Failure      400 {object} commons.ErrorBody "Validation error"
// @Failure      401 {object} commons.ErrorBody "Invalid credentials"
// @Failure      403 {object} commons.ErrorBody "Account disabled"
// @Router       /auth/login [post]
func LoginHandler(c echo.Context) error {
	logger := c.Logger()

	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	email := commons.NormalizeEmail(req.Email)

	invalidCredentials := commons.NewHTTPError(http.StatusUnauthorized, "invalid_credentials",
		"Credentials are incorrect, please check your email and password")

	var user models.User
	if err := db.Conn.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.AuthOutcome("password", "invalid_credentials")
			return invalidCredentials
		}
		logger.Errorf("Failed to find user: %v", err)
		return echo.ErrInternalServerError
	}

	if !crypto.NewCrypto().CheckPassword(user.Password, req.Password) {
		metrics.AuthOutcome("password", "invalid_credentials")
		LogEvent(db.Conn, user.ID, models.Auth, models.Failed, "Failed login attempt")
		return invalidCredentials
	}

	if !user.IsActive {
		metrics.AuthOutcome("password", "account_disabled")
		return commons.NewHTTPError(http.StatusForbidden, "account_disabled", "Your account has been disabled")
	}

	if !user.IsConfirmed() {
		metrics.AuthOutcome("password", "unconfirmed")
		return c.Redirect(http.StatusSeeOther, "/auth/resend-confirmation?email="+url.QueryEscape(user.Email))
	}

	token, session, err := middlewares.CreateSession(c, db.Conn, &user)
	if err != nil {
		logger.Errorf("Failed to create session: %v", err)
		return echo.ErrInternalServerError
	}
	middlewares.SetSessionCookie(c, token, session.ExpiresAt)

	metrics.AuthOutcome("password", "success")
	LogEvent(db.Conn, user.ID, models.Auth, models.Success, "Logged in")

	return c.Redirect(http.StatusSeeOther, commons.SafeRedirect(c.QueryParam("next"), "/profile"))
}

// LogoutHandler godoc
// @Summary      Log out
// @Tags         auth
// @Success      204 "Logout successful"
// @Failure      401 {object} commons.ErrorBody "Unauthorized"
// @Router       /auth/logout [post]
func LogoutHandler(c echo.Context) error {
	logger := c.Logger()

	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	if principal.Session != nil {
		if err := db.Conn.Delete(&models.Session{}, principal.Session.ID).Error; err != nil {
			logger.Errorf("Failed to delete session: %v", err)
			return echo.ErrInternalServerError
		}
	}
	middlewares.ClearSessionCookie(c)

	logger.Infof("User %d logged out", principal.User.ID)
	return c.NoContent(http.StatusNoContent)
}

// ForgotPasswordHandler godoc
// @Summary      Request a password reset
// @Description  Emails a reset link valid for 2 hours when the account exists. The response never reveals whether it does.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        forgotPasswordRequest  body  ForgotPasswordRequest  true  "Forgot password request"
// @Success      200 {object} ForgotPasswordResponse
// @Failure      400 {object} commons.ErrorBody "Validation error"
// @Router       /auth/forgot [post]
func ForgotPasswordHandler(c echo.Context) error {
	logger := c.Logger()
	cfg := commons.GetConfig()

	var req ForgotPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	resp := ForgotPasswordResponse{Message: genericResetMessage}

	var user models.User
	if err := db.Conn.Where("email = ?", commons.NormalizeEmail(req.Email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Debug("Password reset requested for unknown email")
			return c.JSON(http.StatusOK, resp)
		}
		logger.Errorf("Failed to find user: %v", err)
		return echo.ErrInternalServerError
	}

	token, err := crypto.NewTokenCodecFromConfig().Issue(map[string]any{
		"uid": user.ID,
		"pwh": passwordFingerprint(user.Password),
	}, crypto.PurposeReset)
	if err != nil {
		logger.Errorf("Failed to issue reset token: %v", err)
		return echo.ErrInternalServerError
	}
	resetURL := cfg.BaseURL + "/auth/reset/" + token

	SendNotification(notifications.NotificationData{
		To:       user.Email,
		Subject:  "Reset your password",
		Template: notifications.TemplateResetPassword,
		Variables: map[string]any{
			"app_name":  cfg.AppName,
			"reset_url": resetURL,
		},
	})

	if cfg.Debug {
		resp.ResetURL = resetURL
	}
	return c.JSON(http.StatusOK, resp)
}

// resetTarget resolves a reset token to the user it was issued for.
func resetTarget(c echo.Context) (*models.User, error) {
	payload, err := crypto.NewTokenCodecFromConfig().VerifyPurpose(c.Param("token"), crypto.PurposeReset, crypto.ResetTokenMaxAge)
	if err != nil {
		c.Logger().Warn("Reset token rejected: ", err)
		return nil, tokenError(err)
	}
	userID, err := crypto.UserIDFromPayload(payload)
	if err != nil {
		return nil, tokenError(crypto.ErrTokenInvalid)
	}

	var user models.User
	if err := db.Conn.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tokenError(crypto.ErrTokenInvalid)
		}
		c.Logger().Errorf("Failed to load user: %v", err)
		return nil, echo.ErrInternalServerError
	}
	if fp, _ := payload["pwh"].(string); fp != passwordFingerprint(user.Password) {
		return nil, tokenError(crypto.ErrTokenInvalid)
	}
	return &user, nil
}

// CheckResetTokenHandler godoc
// @Summary      Check a password reset link
// @Tags         auth
// @Produce      json
// @Param        token  path  string  true  "Reset token"
// @Success      200 {object} GenericResponse
// @Failure      400 {object} commons.ErrorBody "Expired or invalid token"
// @Router       /auth/reset/{token} [get]
func CheckResetTokenHandler(c echo.Context) error {
	if _, err := resetTarget(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, GenericResponse{Message: "Reset link is valid"})
}

// ResetPasswordHandler godoc
// @Summary      Reset the password
// @Description  Sets a new password and ends every session of the account.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        token                 path  string                true  "Reset token"
// @Param        resetPasswordRequest  body  ResetPasswordRequest  true  "New password"
// @Success      200 {object} GenericResponse
// @Failure      400 {object} commons.ErrorBody "Validation error, expired or invalid token"
// @Router       /auth/reset/{token} [post]
func ResetPasswordHandler(c echo.Context) error {
	logger := c.Logger()

	user, err := resetTarget(c)
	if err != nil {
		return err
	}

	var req ResetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := passwordcheck.ValidatePassword(c.Request().Context(), req.Password); err != nil {
		return validationError(err.Error())
	}

	digest, err := crypto.NewCrypto().HashPassword(req.Password)
	if err != nil {
		logger.Errorf("Failed to hash new password: %v", err)
		return echo.ErrInternalServerError
	}

	tx := db.Conn.Begin()
	if tx.Error != nil {
		logger.Errorf("Transaction begin failed: %v", tx.Error)
		return echo.ErrInternalServerError
	}

	if err := tx.Model(&models.User{ID: user.ID}).Update("password", digest).Error; err != nil {
		tx.Rollback()
		logger.Errorf("Failed to update user password: %v", err)
		return echo.ErrInternalServerError
	}

	if err := tx.Where("user_id = ?", user.ID).Delete(&models.Session{}).Error; err != nil {
		tx.Rollback()
		logger.Errorf("Failed to invalidate user sessions: %v", err)
		return echo.ErrInternalServerError
	}

	if err := tx.Commit().Error; err != nil {
		logger.Errorf("Transaction commit failed: %v", err)
		return echo.ErrInternalServerError
	}

	LogEvent(db.Conn, user.ID, models.Auth, models.Success, "Password reset")
	logger.Infof("Password reset successful for user ID: %d", user.ID)
	return c.JSON(http.StatusOK, GenericResponse{
		Message: "Password reset successfully. Please log in with your new password.",
	})
}
