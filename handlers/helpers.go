// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"accountd/apikeys"
	"accountd/commons"
	"accountd/db"
	"accountd/middlewares"
	"accountd/models"
	"accountd/notifications"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// KeyManager is shared by every handler so that per-user issuance locks hold
// across requests.
var KeyManager *apikeys.Manager

// SendNotification fires an email on its own goroutine. Failures are logged by
// the dispatcher and never reach the caller.
var SendNotification = func(data notifications.NotificationData) {
	go notifications.DispatchNotification(notifications.Email, notifications.ConfiguredProvider(), data)
}

func currentPrincipal(c echo.Context) (*middlewares.Principal, error) {
	p, ok := middlewares.GetPrincipal(c)
	if !ok {
		c.Logger().Error("No authenticated principal in context.")
		return nil, commons.NewHTTPError(http.StatusUnauthorized, "unauthorized", "Authentication required")
	}
	return p, nil
}

func currentUser(c echo.Context) (*models.User, error) {
	p, err := currentPrincipal(c)
	if err != nil {
		return nil, err
	}
	return p.User, nil
}

func newUserResource(u *models.User) UserResource {
	return UserResource{
		ID:          u.ID,
		Email:       u.Email,
		Role:        string(u.Role),
		Language:    string(u.Language),
		Plan:        u.PlanName(),
		IsActive:    u.IsActive,
		IsConfirmed: u.IsConfirmed(),
		CreatedAt:   u.CreatedAt,
	}
}

func newAPIKeyResource(k *models.APIKey) APIKeyResource {
	return APIKeyResource{
		ID:         k.ID,
		Name:       k.Name,
		KeyPrefix:  k.KeyPrefix,
		MaskedKey:  k.MaskedKey(),
		IsActive:   k.IsActive,
		CreatedAt:  k.CreatedAt,
		LastUsedAt: k.LastUsedAt,
		ExpiresAt:  k.ExpiresAt,
	}
}

func newPlanResource(p *models.Plan) PlanResource {
	features := p.Features
	if features == nil {
		features = []string{}
	}
	return PlanResource{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		Features:        features,
		Price:           models.FormatPrice(p.PriceCents),
		Currency:        p.Currency,
		BillingPeriod:   string(p.BillingPeriod),
		FormattedPrice:  p.FormattedPrice(),
		StripePriceID:   p.StripePriceID,
		StripeProductID: p.StripeProductID,
		IsActive:        p.IsActive,
		IsFeatured:      p.IsFeatured,
		SortOrder:       p.SortOrder,
	}
}

func newBillingResource(b *models.BillingProfile) *BillingProfileResource {
	if b == nil {
		return nil
	}
	return &BillingProfileResource{
		FullName:   b.FullName,
		Company:    b.Company,
		Address1:   b.Address1,
		Address2:   b.Address2,
		City:       b.City,
		State:      b.State,
		PostalCode: b.PostalCode,
		Country:    b.Country,
		TaxID:      b.TaxID,
		UpdatedAt:  b.UpdatedAt,
	}
}

func newPagination(page, pageSize int, total int64) PaginationDetails {
	return PaginationDetails{
		Page:         page,
		PageSize:     pageSize,
		TotalRecords: total,
		TotalPages:   int((total + int64(pageSize) - 1) / int64(pageSize)),
	}
}

// deleteUserCascade removes a user and everything it owns inside tx.
func deleteUserCascade(tx *gorm.DB, userID uint) error {
	for _, owned := range []any{&models.Session{}, &models.APIKey{}, &models.BillingProfile{}, &models.EventLog{}} {
		if err := tx.Where("user_id = ?", userID).Delete(owned).Error; err != nil {
			return err
		}
	}
	return tx.Delete(&models.User{}, userID).Error
}

// deleteUser cascades the deletion in one transaction and releases the
// user's issuance lock once it commits.
func deleteUser(userID uint) error {
	if err := db.Conn.Transaction(func(tx *gorm.DB) error {
		return deleteUserCascade(tx, userID)
	}); err != nil {
		return err
	}
	if KeyManager != nil {
		KeyManager.ForgetUser(userID)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "Duplicate entry")
}

// emailTaken reports whether another user already owns email.
func emailTaken(conn *gorm.DB, email string, exceptID uint) (bool, error) {
	var count int64
	q := conn.Model(&models.User{}).Where("email = ?", email)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func parseIDParam(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, notFoundError("Resource not found")
	}
	return uint(id), nil
}
