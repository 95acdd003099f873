// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"fmt"
	"net/http"
	"time"

	"accountd/commons"
	"accountd/crypto"
	"accountd/db"
	"accountd/models"
	"accountd/passwordcheck"

	"github.com/labstack/echo/v4"
)

// HealthHandler godoc
// @Summary      Liveness probe
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]bool
// @Router       /healthz [get]
func HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// PingHandler godoc
// @Summary      Ping the API
// @Tags         api
// @Produce      json
// @Success      200 {object} map[string]bool
// @Router       /api/v1/ping [get]
func PingHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"pong": true})
}

// APIMeHandler godoc
// @Summary      Owner of the presented API key
// @Tags         api
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} UserResource
// @Failure      401 {object} commons.ErrorBody "Unauthorized"
// @Router       /api/v1/me [get]
func APIMeHandler(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserResource(user))
}

// APIListUsersHandler godoc
// @Summary      List users
// @Tags         api
// @Produce      json
// @Security     BearerAuth
// @Param        page       query  int  false  "Page number"
// @Param        page_size  query  int  false  "Page size"
// @Success      200 {object} UserListResponse
// @Failure      403 {object} commons.ErrorBody "Forbidden"
// @Router       /api/v1/users [get]
func APIListUsersHandler(c echo.Context) error {
	logger := c.Logger()

	page, pageSize := commons.ParsePagination(c.QueryParam("page"), c.QueryParam("page_size"), 20, 100)

	var total int64
	if err := db.Conn.Model(&models.User{}).Count(&total).Error; err != nil {
		logger.Errorf("Failed to count users: %v", err)
		return echo.ErrInternalServerError
	}

	var users []models.User
	if err := db.Conn.Preload("Plan").
		Order("id ASC").
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

// APICreateUserHandler godoc
// @Summary      Create a user
// @Description  Creates an active, confirmed user. A random password is set when none is given.
// @Tags         api
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        apiCreateUserRequest  body  APICreateUserRequest  true  "User"
// @Success      201 {object} UserResource
// @Failure      400 {object} commons.ErrorBody "Validation error"
// @Failure      403 {object} commons.ErrorBody "Forbidden"
// @Failure      409 {object} commons.ErrorBody "Duplicate email"
// @Router       /api/v1/users [post]
func APICreateUserHandler(c echo.Context) error {
	logger := c.Logger()

	caller, err := currentUser(c)
	if err != nil {
		return err
	}

	var req APICreateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	password := req.Password
	if password == "" {
		if password, err = crypto.GenerateRandomString("", 24, "base64url"); err != nil {
			logger.Errorf("Failed to generate password: %v", err)
			return echo.ErrInternalServerError
		}
	} else if err := passwordcheck.ValidatePassword(c.Request().Context(), password); err != nil {
		return validationError(err.Error())
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

	digest, err := crypto.NewCrypto().HashPassword(password)
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
	user.Confirm(time.Now())
	if err := db.Conn.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return conflictError("An account with this email already exists")
		}
		logger.Errorf("Failed to create user: %v", err)
		return echo.ErrInternalServerError
	}

	LogEvent(db.Conn, caller.ID, models.Admin, models.Success, fmt.Sprintf("Created user %s via API", user.Email))
	return c.JSON(http.StatusCreated, newUserResource(&user))
}
