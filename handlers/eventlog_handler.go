// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"net/http"

	"accountd/commons"
	"accountd/db"
	"accountd/models"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// LogEvent appends an audit entry. Failures are logged and swallowed.
func LogEvent(conn *gorm.DB, userID uint, category models.EventCategory, status models.EventStatus, description string) {
	eventLog := models.EventLog{
		Category: category,
		Status:   status,
		UserID:   userID,
	}
	if description != "" {
		eventLog.Description = &description
	}
	if err := conn.Omit("User").Create(&eventLog).Error; err != nil {
		commons.Logger.Errorf("Failed to create event log: %v", err)
	}
}

// GetEventLogsHandler godoc
// @Summary      List audit events
// @Description  Paginated audit trail of the authenticated user, newest first. Optional category filter.
// @Tags         account
// @Produce      json
// @Param        page      query  int     false  "Page number (default 1)"
// @Param        page_size query  int     false  "Page size (default 20, max 100)"
// @Param        category  query  string  false  "AUTH, APIKEY, ADMIN or BILLING"
// @Success      200 {object} EventLogListResponse
// @Failure      401 {object} commons.ErrorBody "Unauthorized"
// @Failure      500 {object} commons.ErrorBody "Internal server error"
// @Router       /account/events [get]
func GetEventLogsHandler(c echo.Context) error {
	logger := c.Logger()

	user, err := currentUser(c)
	if err != nil {
		return err
	}

	page, pageSize := commons.ParsePagination(c.QueryParam("page"), c.QueryParam("page_size"), 20, 100)

	query := db.Conn.Model(&models.EventLog{}).Where("user_id = ?", user.ID)
	if category := c.QueryParam("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logger.Errorf("Failed to count event logs: %v", err)
		return echo.ErrInternalServerError
	}

	var eventLogs []models.EventLog
	if err := query.Order("created_at DESC").Order("id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&eventLogs).Error; err != nil {
		logger.Errorf("Failed to fetch event logs: %v", err)
		return echo.ErrInternalServerError
	}

	data := make([]EventLogResource, 0, len(eventLogs))
	for _, ev := range eventLogs {
		data = append(data, EventLogResource{
			EID:         ev.EID.String(),
			Category:    string(ev.Category),
			Status:      string(ev.Status),
			Description: ev.Description,
			CreatedAt:   ev.CreatedAt,
		})
	}

	return c.JSON(http.StatusOK, EventLogListResponse{
		Data:       data,
		Pagination: newPagination(page, pageSize, total),
	})
}
