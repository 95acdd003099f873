// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"accountd/db"
	"accountd/middlewares"
	"accountd/models"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// ListPlansHandler godoc
// @Summary      Plan catalogue
// @Description  Active plans ordered by sort order. is_current marks the caller's plan when authenticated.
// @Tags         plans
// @Produce      json
// @Success      200 {array} PlanResource
// @Router       /plans [get]
func ListPlansHandler(c echo.Context) error {
	logger := c.Logger()

	var plans []models.Plan
	if err := db.Conn.Where("is_active = ?", true).Order("sort_order ASC").Order("id ASC").Find(&plans).Error; err != nil {
		logger.Errorf("Failed to fetch plans: %v", err)
		return echo.ErrInternalServerError
	}

	var currentPlan string
	if p, ok := middlewares.GetPrincipal(c); ok {
		currentPlan = p.User.PlanName()
	}

	data := make([]PlanResource, 0, len(plans))
	for i := range plans {
		r := newPlanResource(&plans[i])
		r.IsCurrent = currentPlan != "" && plans[i].Name == currentPlan
		data = append(data, r)
	}
	return c.JSON(http.StatusOK, data)
}

// AdminListPlansHandler godoc
// @Summary      All plans
// @Tags         admin
// @Produce      json
// @Success      200 {array} PlanResource
// @Failure      403 {object} commons.ErrorBody "Forbidden"
// @Router       /admin/plans [get]
func AdminListPlansHandler(c echo.Context) error {
	var plans []models.Plan
	if err := db.Conn.Order("sort_order ASC").Order("id ASC").Find(&plans).Error; err != nil {
		c.Logger().Errorf("Failed to fetch plans: %v", err)
		return echo.ErrInternalServerError
	}
	data := make([]PlanResource, 0, len(plans))
	for i := range plans {
		data = append(data, newPlanResource(&plans[i]))
	}
	return c.JSON(http.StatusOK, data)
}

// applyPlanRequest copies a validated request onto plan.
func applyPlanRequest(plan *models.Plan, req *PlanRequest) error {
	price, err := models.ParsePrice(req.Price)
	if err != nil {
		return validationError("price must be a non-negative amount with at most two decimals")
	}

	features := make([]string, 0, len(req.Features))
	for _, f := range req.Features {
		if f = strings.TrimSpace(f); f != "" {
			features = append(features, f)
		}
	}

	period := models.Monthly
	if req.BillingPeriod != "" {
		if period, err = models.ParseBillingPeriod(req.BillingPeriod); err != nil {
			return validationError(err.Error())
		}
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = "USD"
	}

	plan.Name = strings.TrimSpace(req.Name)
	plan.Description = trimmed(req.Description)
	plan.Features = features
	plan.PriceCents = price
	plan.Currency = currency
	plan.BillingPeriod = period
	plan.StripePriceID = trimmed(req.StripePriceID)
	plan.StripeProductID = trimmed(req.StripeProductID)
	plan.IsActive = req.IsActive == nil || *req.IsActive
	plan.IsFeatured = req.IsFeatured
	plan.SortOrder = req.SortOrder
	return nil
}

func planNameTaken(name string, exceptID uint) (bool, error) {
	var count int64
	q := db.Conn.Model(&models.Plan{}).Where("name = ?", name)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

// AdminCreatePlanHandler godoc
// @Summary      Create a plan
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        planRequest  body  PlanRequest  true  "Plan"
// @Success      201 {object} PlanResource
// @Failure      400 {object} commons.ErrorBody "Validation error"
// @Failure      409 {object} commons.ErrorBody "Duplicate name"
// @Router       /admin/plans [post]
func AdminCreatePlanHandler(c echo.Context) error {
	logger := c.Logger()

	admin, err := currentUser(c)
	if err != nil {
		return err
	}

	var req PlanRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	var plan models.Plan
	if err := applyPlanRequest(&plan, &req); err != nil {
		return err
	}

	taken, err := planNameTaken(plan.Name, 0)
	if err != nil {
		logger.Errorf("Failed to check plan name: %v", err)
		return echo.ErrInternalServerError
	}
	if taken {
		return conflictError("A plan with this name already exists")
	}

	if err := db.Conn.Create(&plan).Error; err != nil {
		if isUniqueViolation(err) {
			return conflictError("A plan with this name already exists")
		}
		logger.Errorf("Failed to create plan: %v", err)
		return echo.ErrInternalServerError
	}

	LogEvent(db.Conn, admin.ID, models.Admin, models.Success, fmt.Sprintf("Created plan %s", plan.Name))
	return c.JSON(http.StatusCreated, newPlanResource(&plan))
}

func loadPlan(c echo.Context) (*models.Plan, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, notFoundError("Plan not found")
	}
	var plan models.Plan
	if err := db.Conn.First(&plan, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("Plan not found")
		}
		c.Logger().Errorf("Failed to load plan: %v", err)
		return nil, echo.ErrInternalServerError
	}
	return &plan, nil
}

// AdminUpdatePlanHandler godoc
// @Summary      Update a plan
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id           path  int          true  "Plan id"
// @Param        planRequest  body  PlanRequest  true  "Plan"
// @Success      200 {object} PlanResource
// @Failure      404 {object} commons.ErrorBody "Not found"
// @Failure      409 {object} commons.ErrorBody "Duplicate name"
// @Router       /admin/plans/{id} [put]
func AdminUpdatePlanHandler(c echo.Context) error {
	logger := c.Logger()

	admin, err := currentUser(c)
	if err != nil {
		return err
	}
	plan, err := loadPlan(c)
	if err != nil {
		return err
	}

	var req PlanRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := applyPlanRequest(plan, &req); err != nil {
		return err
	}

	taken, err := planNameTaken(plan.Name, plan.ID)
	if err != nil {
		logger.Errorf("Failed to check plan name: %v", err)
		return echo.ErrInternalServerError
	}
	if taken {
		return conflictError("A plan with this name already exists")
	}

	if err := db.Conn.Save(plan).Error; err != nil {
		if isUniqueViolation(err) {
			return conflictError("A plan with this name already exists")
		}
		logger.Errorf("Failed to update plan: %v", err)
		return echo.ErrInternalServerError
	}

	LogEvent(db.Conn, admin.ID, models.Admin, models.Success, fmt.Sprintf("Updated plan %s", plan.Name))
	return c.JSON(http.StatusOK, newPlanResource(plan))
}

// AdminDeletePlanHandler godoc
// @Summary      Delete a plan
// @Description  Plans with subscribed users cannot be deleted.
// @Tags         admin
// @Param        id  path  int  true  "Plan id"
// @Success      204 "Deleted"
// @Failure      404 {object} commons.ErrorBody "Not found"
// @Failure      409 {object} commons.ErrorBody "Plan has subscribers"
// @Router       /admin/plans/{id} [delete]
func AdminDeletePlanHandler(c echo.Context) error {
	logger := c.Logger()

	admin, err := currentUser(c)
	if err != nil {
		return err
	}
	plan, err := loadPlan(c)
	if err != nil {
		return err
	}

	var subscribers int64
	err = db.Conn.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("plan_id = ?", plan.ID).Count(&subscribers).Error; err != nil {
			return err
		}
		if subscribers > 0 {
			return nil
		}
		return tx.Delete(&models.Plan{}, plan.ID).Error
	})
	if err != nil {
		logger.Errorf("Failed to delete plan: %v", err)
		return echo.ErrInternalServerError
	}
	if subscribers > 0 {
		return conflictError(fmt.Sprintf("Cannot delete plan %s: %d user(s) are subscribed to it", plan.Name, subscribers))
	}

	LogEvent(db.Conn, admin.ID, models.Admin, models.Success, fmt.Sprintf("Deleted plan %s", plan.Name))
	return c.NoContent(http.StatusNoContent)
}
