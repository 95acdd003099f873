// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"accountd/commons"
	"accountd/crypto"
	"accountd/db"
	"accountd/models"
	"accountd/passwordcheck"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const adminUsersPageSize = 20

// AdminListUsersHandler godoc
// @Summary      List users
// @Description  Newest first, 20 per page, optional case-insensitive email substring search.
// @Tags         admin
// @Produce      json
// @Param        page    query  int     false  "Page number"
// @Param        search  query  string  false  "Email substring"
// @Success      200 {object} UserListResponse
// @Failure      403 {object} commons.ErrorBody "Forbidden"
// @Router       /admin/users [get]
func AdminListUsersHandler(c echo.Context) error {
	logger := c.Logger()

	page, pageSize := commons.ParsePagination(c.QueryParam("page"), "", adminUsersPageSize, adminUsersPageSize)

	query := db.Conn.Model(&models.User{})
	if search := strings.ToLower(strings.TrimSpace(c.QueryParam("search"))); search != "" {
		query = query.Where("email LIKE ?", "%"+search+"%")
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logger.Errorf("Failed to count users: %v", err)
		return echo.ErrInternalServerError
	}

	var users []models.User
	if err := query.Preload("Plan").
		Order("created_at DESC").Order("id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&users).Error; err != nil {
		logger.Errorf("Failed to fetch users: %v", err)
		return echo.ErrInternalServerError
	}

	data := make([]UserResource, 0, len(users))
	for i := range users {
		data = append(data, newUserResource(&users[i]))
	}
	return c.JSON(http.StatusOK, UserListResponse{
		Data:       data,
		Pagination: newPagination(page, pageSize, total),
	})
}

// AdminCreateUserHandler godoc
// @Summary      Create a user
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        adminCreateUserRequest  body  AdminCreateUserRequest  true  "User"
// @Success      201 {object} UserResource
// @Failure      400 {object} commons.ErrorBody "Validation error"
// @Failure      409 {object} commons.ErrorBody "Duplicate email"
// @Router       /admin/users [post]
func AdminCreateUserHandler(c echo.Context) error {
	logger := c.Logger()

	admin, err := currentUser(c)
	if err != nil {
		return err
	}

	var req AdminCreateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := passwordcheck.ValidatePassword(c.Request().Context(), req.Password); err != nil {
		return validationError(err.Error())
	}

	role := models.RoleUser
	if req.Role != "" {
		role, _ = models.ParseRole(req.Role)
	}
	language := models.LanguageEN
	if req.Language != "" {
		language, _ = models.ParseLanguage(req.Language)
	}

	email := commons.NormalizeEmail(req.Email)
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
		Role:     role,
		Language: language,
		IsActive: req.IsActive == nil || *req.IsActive,
	}
	if req.IsConfirmed {
		user.Confirm(time.Now())
	}
	if err := db.Conn.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return conflictError("An account with this email already exists")
		}
		logger.Errorf("Failed to create user: %v", err)
		return echo.ErrInternalServerError
	}

	LogEvent(db.Conn, admin.ID, models.Admin, models.Success, fmt.Sprintf("Created user %s", user.Email))
	return c.JSON(http.StatusCreated, newUserResource(&user))
}

func loadTargetUser(c echo.Context) (*models.User, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, notFoundError("User not found")
	}
	var user models.User
	if err := db.Conn.Preload("Plan").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("User not found")
		}
		c.Logger().Errorf("Failed to load user: %v", err)
		return nil, echo.ErrInternalServerError
	}
	return &user, nil
}

// AdminUpdateUserHandler godoc
// @Summary      Update a user
// @Description  Admins cannot demote or deactivate themselves.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id                      path  int                     true  "User id"
// @Param        adminUpdateUserRequest  body  AdminUpdateUserRequest  true  "User"
// @Success      200 {object} UserResource
// @Failure      400 {object} commons.ErrorBody "Validation error or self action"
// @Failure      404 {object} commons.ErrorBody "Not found"
// @Failure      409 {object} commons.ErrorBody "Duplicate email"
// @Router       /admin/users/{id} [put]
func AdminUpdateUserHandler(c echo.Context) error {
	logger := c.Logger()

	admin, err := currentUser(c)
	if err != nil {
		return err
	}
	target, err := loadTargetUser(c)
	if err != nil {
		return err
	}

	var req AdminUpdateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	role, _ := models.ParseRole(req.Role)
	language, _ := models.ParseLanguage(req.Language)

	if target.ID == admin.ID {
		if role != models.RoleAdmin {
			return selfActionError("You cannot remove your own admin role")
		}
		if !*req.IsActive {
			return selfActionError("You cannot deactivate your own account")
		}
	}

	email := commons.NormalizeEmail(req.Email)
	taken, err := emailTaken(db.Conn, email, target.ID)
	if err != nil {
		logger.Errorf("Failed to check email availability: %v", err)
		return echo.ErrInternalServerError
	}
	if taken {
		return conflictError("An account with this email already exists")
	}

	updates := map[string]any{
		"email":     email,
		"role":      role,
		"language":  language,
		"is_active": *req.IsActive,
	}
	switch {
	case *req.IsConfirmed && !target.IsConfirmed():
		updates["confirmed_at"] = time.Now()
	case !*req.IsConfirmed && target.IsConfirmed():
		updates["confirmed_at"] = nil
	}
	if req.NewPassword != "" {
		if err := passwordcheck.ValidatePassword(c.Request().Context(), req.NewPassword); err != nil {
			return validationError(err.Error())
		}
		digest, err := crypto.NewCrypto().HashPassword(req.NewPassword)
		if err != nil {
			logger.Errorf("Failed to hash password: %v", err)
			return echo.ErrInternalServerError
		}
		updates["password"] = digest
	}

	// A new password or a deactivation ends every session of the target.
	endSessions := req.NewPassword != "" || !*req.IsActive
	err = db.Conn.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{ID: target.ID}).Updates(updates).Error; err != nil {
			return err
		}
		if endSessions {
			return tx.Where("user_id = ?", target.ID).Delete(&models.Session{}).Error
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return conflictError("An account with this email already exists")
		}
		logger.Errorf("Failed to update user: %v", err)
		return echo.ErrInternalServerError
	}

	var updated models.User
	if err := db.Conn.Preload("Plan").First(&updated, target.ID).Error; err != nil {
		logger.Errorf("Failed to reload user: %v", err)
		return echo.ErrInternalServerError
	}

	LogEvent(db.Conn, admin.ID, models.Admin, models.Success, fmt.Sprintf("Updated user %s", updated.Email))
	return c.JSON(http.StatusOK, newUserResource(&updated))
}

// AdminDeleteUserHandler godoc
// @Summary      Delete a user
// @Tags         admin
// @Param        id  path  int  true  "User id"
// @Success      204 "Deleted"
// @Failure      400 {object} commons.ErrorBody "Self action"
// @Failure      404 {object} commons.ErrorBody "Not found"
// @Router       /admin/users/{id} [delete]
func AdminDeleteUserHandler(c echo.Context) error {
	logger := c.Logger()

	admin, err := currentUser(c)
	if err != nil {
		return err
	}
	target, err := loadTargetUser(c)
	if err != nil {
		return err
	}
	if target.ID == admin.ID {
		return selfActionError("You cannot delete your own account from the admin console")
	}

	if err := deleteUser(target.ID); err != nil {
		logger.Errorf("Failed to delete user: %v", err)
		return echo.ErrInternalServerError
	}

	LogEvent(db.Conn, admin.ID, models.Admin, models.Success, fmt.Sprintf("Deleted user %s", target.Email))
	return c.NoContent(http.StatusNoContent)
}

// AdminToggleUserStatusHandler godoc
// @Summary      Activate or deactivate a user
// @Description  Deactivation ends every session of the user.
// @Tags         admin
// @Produce      json
// @Param        id  path  int  true  "User id"
// @Success      200 {object} UserResource
// @Failure      400 {object} commons.ErrorBody "Self action"
// @Failure      404 {object} commons.ErrorBody "Not found"
// @Router       /admin/users/{id}/toggle-status [post]
func AdminToggleUserStatusHandler(c echo.Context) error {
	logger := c.Logger()

	admin, err := currentUser(c)
	if err != nil {
		return err
	}
	target, err := loadTargetUser(c)
	if err != nil {
		return err
	}
	if target.ID == admin.ID {
		return selfActionError("You cannot deactivate your own account")
	}

	active := !target.IsActive
	err = db.Conn.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{ID: target.ID}).Update("is_active", active).Error; err != nil {
			return err
		}
		if !active {
			return tx.Where("user_id = ?", target.ID).Delete(&models.Session{}).Error
		}
		return nil
	})
	if err != nil {
		logger.Errorf("Failed to toggle user status: %v", err)
		return echo.ErrInternalServerError
	}
	target.IsActive = active

	state := "Deactivated"
	if active {
		state = "Activated"
	}
	LogEvent(db.Conn, admin.ID, models.Admin, models.Success, fmt.Sprintf("%s user %s", state, target.Email))
	return c.JSON(http.StatusOK, newUserResource(target))
}

// AdminClearBillingHandler godoc
// @Summary      Clear a user's billing profile
// @Tags         admin
// @Param        id  path  int  true  "User id"
// @Success      204 "Cleared"
// @Failure      404 {object} commons.ErrorBody "Not found"
// @Router       /admin/users/{id}/billing [delete]
func AdminClearBillingHandler(c echo.Context) error {
	logger := c.Logger()

	admin, err := currentUser(c)
	if err != nil {
		return err
	}
	target, err := loadTargetUser(c)
	if err != nil {
		return err
	}

	if err := db.Conn.Where("user_id = ?", target.ID).Delete(&models.BillingProfile{}).Error; err != nil {
		logger.Errorf("Failed to clear billing profile: %v", err)
		return echo.ErrInternalServerError
	}

	LogEvent(db.Conn, admin.ID, models.Admin, models.Success, fmt.Sprintf("Cleared billing profile of %s", target.Email))
	return c.NoContent(http.StatusNoContent)
}
