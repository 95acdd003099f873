// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"errors"
	"net/http"

	"accountd/crypto"
	"accountd/db"
	"accountd/middlewares"
	"accountd/models"
	"accountd/passwordcheck"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// GetProfileHandler godoc
// @Summary      Current user
// @Tags         account
// @Produce      json
// @Success      200 {object} UserResource
// @Failure      401 {object} commons.ErrorBody "Unauthorized"
// @Router       /profile [get]
func GetProfileHandler(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserResource(user))
}

// GetAccountHandler godoc
// @Summary      Account overview
// @Description  User resource, billing profile (or null) and current plan (null on the implicit Free plan).
// @Tags         account
// @Produce      json
// @Success      200 {object} AccountOverviewResponse
// @Failure      401 {object} commons.ErrorBody "Unauthorized"
// @Router       /account [get]
func GetAccountHandler(c echo.Context) error {
	logger := c.Logger()

	user, err := currentUser(c)
	if err != nil {
		return err
	}

	resp := AccountOverviewResponse{
		User:             newUserResource(user),
		PlanSubscribedAt: user.PlanSubscribedAt,
	}

	var billing models.BillingProfile
	err = db.Conn.Where("user_id = ?", user.ID).First(&billing).Error
	switch {
	case err == nil:
		resp.Billing = newBillingResource(&billing)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		logger.Errorf("Failed to load billing profile: %v", err)
		return echo.ErrInternalServerError
	}

	if user.Plan != nil {
		plan := newPlanResource(user.Plan)
		resp.Plan = &plan
	}
	return c.JSON(http.StatusOK, resp)
}

// ChangePasswordHandler godoc
// @Summary      Change password
// @Description  Verifies the current password, stores the new one and ends every other session.
// @Tags         account
// @Accept       json
// @Produce      json
// @Param        changePasswordRequest  body  ChangePasswordRequest  true  "Current and new password"
// @Success      200 {object} GenericResponse
// @Failure      400 {object} commons.ErrorBody "Validation error or wrong current password"
// @Failure      401 {object} commons.ErrorBody "Unauthorized"
// @Router       /account/password [put]
func ChangePasswordHandler(c echo.Context) error {
	logger := c.Logger()

	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	user := principal.User

	var req ChangePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	newCrypto := crypto.NewCrypto()
	if !newCrypto.CheckPassword(user.Password, req.CurrentPassword) {
		logger.Warnf("Current password verification failed for user %d", user.ID)
		return validationError("Current password is incorrect")
	}
	if err := passwordcheck.ValidatePassword(c.Request().Context(), req.NewPassword); err != nil {
		return validationError(err.Error())
	}

	digest, err := newCrypto.HashPassword(req.NewPassword)
	if err != nil {
		logger.Errorf("Failed to hash new password: %v", err)
		return echo.ErrInternalServerError
	}

	err = db.Conn.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{ID: user.ID}).Update("password", digest).Error; err != nil {
			return err
		}
		others := tx.Where("user_id = ?", user.ID)
		if principal.Session != nil {
			others = others.Where("id <> ?", principal.Session.ID)
		}
		return others.Delete(&models.Session{}).Error
	})
	if err != nil {
		logger.Errorf("Failed to change password: %v", err)
		return echo.ErrInternalServerError
	}

	LogEvent(db.Conn, user.ID, models.Auth, models.Success, "Password changed")
	return c.JSON(http.StatusOK, GenericResponse{Message: "Password updated successfully"})
}

// DeleteAccountHandler godoc
// @Summary      Delete account
// @Description  Irreversibly deletes the account with its sessions, API keys, billing profile and audit log, then logs out.
// @Tags         account
// @Accept       json
// @Produce      json
// @Param        deleteAccountRequest  body  DeleteAccountRequest  true  "Confirmation"
// @Success      200 {object} GenericResponse
// @Failure      400 {object} commons.ErrorBody "Confirmation missing"
// @Failure      401 {object} commons.ErrorBody "Unauthorized"
// @Router       /account/delete [post]
func DeleteAccountHandler(c echo.Context) error {
	logger := c.Logger()

	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req DeleteAccountRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.Confirm != "DELETE" {
		return validationError("Please type DELETE to confirm account deletion")
	}

	if err := deleteUser(user.ID); err != nil {
		logger.Errorf("Failed to delete account: %v", err)
		return echo.ErrInternalServerError
	}
	middlewares.ClearSessionCookie(c)

	logger.Infof("User account %d deleted", user.ID)
	return c.JSON(http.StatusOK, GenericResponse{Message: "Your account has been deleted"})
}
