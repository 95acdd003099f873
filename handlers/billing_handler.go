// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"accountd/commons"
	"accountd/db"
	"accountd/models"
	"accountd/notifications"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// GetBillingHandler godoc
// @Summary      Billing profile
// @Tags         billing
// @Produce      json
// @Success      200 {object} BillingProfileResource "null when no profile exists yet"
// @Failure      401 {object} commons.ErrorBody "Unauthorized"
// @Router       /account/billing [get]
func GetBillingHandler(c echo.Context) error {
	logger := c.Logger()

	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var billing models.BillingProfile
	if err := db.Conn.Where("user_id = ?", user.ID).First(&billing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusOK, nil)
		}
		logger.Errorf("Failed to load billing profile: %v", err)
		return echo.ErrInternalServerError
	}
	return c.JSON(http.StatusOK, newBillingResource(&billing))
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// UpdateBillingHandler godoc
// @Summary      Create or update the billing profile
// @Tags         billing
// @Accept       json
// @Produce      json
// @Param        billingProfileRequest  body  BillingProfileRequest  true  "Billing details"
// @Success      200 {object} BillingProfileResource
// @Failure      400 {object} commons.ErrorBody "Validation error"
// @Failure      401 {object} commons.ErrorBody "Unauthorized"
// @Router       /account/billing [put]
func UpdateBillingHandler(c echo.Context) error {
	logger := c.Logger()

	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req BillingProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	var billing models.BillingProfile
	err = db.Conn.Where("user_id = ?", user.ID).First(&billing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Errorf("Failed to load billing profile: %v", err)
		return echo.ErrInternalServerError
	}

	billing.UserID = user.ID
	billing.FullName = trimmed(req.FullName)
	billing.Company = trimmed(req.Company)
	billing.Address1 = trimmed(req.Address1)
	billing.Address2 = trimmed(req.Address2)
	billing.City = trimmed(req.City)
	billing.State = trimmed(req.State)
	billing.PostalCode = trimmed(req.PostalCode)
	billing.TaxID = trimmed(req.TaxID)
	billing.Country = trimmed(req.Country)
	if billing.Country != nil {
		upper := strings.ToUpper(*billing.Country)
		billing.Country = &upper
	}

	if err := db.Conn.Save(&billing).Error; err != nil {
		logger.Errorf("Failed to save billing profile: %v", err)
		return echo.ErrInternalServerError
	}

	LogEvent(db.Conn, user.ID, models.Billing, models.Success, "Billing profile updated")
	return c.JSON(http.StatusOK, newBillingResource(&billing))
}

// processPayment is where a payment provider would be charged. Plans are
// assigned without charge.
func processPayment(c echo.Context, user *models.User, plan *models.Plan) error {
	c.Logger().Infof("Payment stub: user %d subscribed to %s (%s) without charge", user.ID, plan.Name, plan.FormattedPrice())
	return nil
}

// SubscribePlanHandler godoc
// @Summary      Switch plan
// @Tags         billing
// @Accept       json
// @Produce      json
// @Param        subscribeRequest  body  SubscribeRequest  true  "Target plan"
// @Success      200 {object} UserResource
// @Failure      400 {object} commons.ErrorBody "Plan is not available"
// @Failure      404 {object} commons.ErrorBody "Plan not found"
// @Router       /account/plan [post]
func SubscribePlanHandler(c echo.Context) error {
	logger := c.Logger()
	cfg := commons.GetConfig()

	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req SubscribeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	var plan models.Plan
	if err := db.Conn.First(&plan, req.PlanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError("Plan not found")
		}
		logger.Errorf("Failed to load plan: %v", err)
		return echo.ErrInternalServerError
	}
	if !plan.IsActive {
		return validationError("This plan is not available")
	}

	if err := processPayment(c, user, &plan); err != nil {
		logger.Errorf("Payment failed: %v", err)
		return echo.ErrInternalServerError
	}

	now := time.Now()
	if err := db.Conn.Model(&models.User{ID: user.ID}).Updates(map[string]any{
		"plan_id":            plan.ID,
		"plan_subscribed_at": now,
	}).Error; err != nil {
		logger.Errorf("Failed to assign plan: %v", err)
		return echo.ErrInternalServerError
	}
	user.PlanID = &plan.ID
	user.Plan = &plan
	user.PlanSubscribedAt = &now

	LogEvent(db.Conn, user.ID, models.Billing, models.Success, fmt.Sprintf("Subscribed to %s", plan.Name))
	SendNotification(notifications.NotificationData{
		To:       user.Email,
		Subject:  "Your plan has changed",
		Template: notifications.TemplatePlanChange,
		Variables: map[string]any{
			"app_name":   cfg.AppName,
			"plan_name":  plan.Name,
			"plan_price": plan.FormattedPrice(),
		},
	})

	return c.JSON(http.StatusOK, newUserResource(user))
}

// CancelPlanHandler godoc
// @Summary      Cancel subscription
// @Description  Returns the account to the implicit Free plan.
// @Tags         billing
// @Produce      json
// @Success      200 {object} UserResource
// @Failure      400 {object} commons.ErrorBody "No subscription"
// @Router       /account/plan [delete]
func CancelPlanHandler(c echo.Context) error {
	logger := c.Logger()
	cfg := commons.GetConfig()

	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if user.PlanID == nil {
		return validationError("You do not have an active subscription")
	}
	previous := user.PlanName()

	if err := db.Conn.Model(&models.User{ID: user.ID}).Updates(map[string]any{
		"plan_id":            nil,
		"plan_subscribed_at": nil,
	}).Error; err != nil {
		logger.Errorf("Failed to cancel plan: %v", err)
		return echo.ErrInternalServerError
	}
	user.PlanID = nil
	user.Plan = nil
	user.PlanSubscribedAt = nil

	LogEvent(db.Conn, user.ID, models.Billing, models.Success, fmt.Sprintf("Cancelled %s", previous))
	SendNotification(notifications.NotificationData{
		To:       user.Email,
		Subject:  "Subscription cancelled",
		Template: notifications.TemplateSubscriptionCancelled,
		Variables: map[string]any{
			"app_name":  cfg.AppName,
			"plan_name": previous,
		},
	})

	return c.JSON(http.StatusOK, newUserResource(user))
}
