// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"errors"
	"net/http"

	"accountd/commons"

	"github.com/labstack/echo/v4"
)

// HTTPErrorHandler renders every error as {"error", "message"}. Server errors
// never expose internal detail.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	logger := c.Logger()

	status := http.StatusInternalServerError
	body := commons.ErrorBody{}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch m := he.Message.(type) {
		case commons.ErrorBody:
			body = m
		case string:
			body.Message = m
		case error:
			body.Message = m.Error()
		default:
			body.Message = http.StatusText(status)
		}
		if he.Internal != nil {
			logger.Debug("Internal error: ", he.Internal)
		}
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Unhandled error: ", err)
		body = commons.ErrorBody{Error: "internal_error", Message: commons.InternalErrorMessage}
	}
	if body.Error == "" {
		body.Error = commons.DefaultErrorCode(status)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		logger.Error("Failed to write error response: ", err)
	}
}

func validationError(message string) *echo.HTTPError {
	return commons.NewHTTPError(http.StatusBadRequest, "validation_error", message)
}

func conflictError(message string) *echo.HTTPError {
	return commons.NewHTTPError(http.StatusConflict, "conflict", message)
}

func notFoundError(message string) *echo.HTTPError {
	return commons.NewHTTPError(http.StatusNotFound, "not_found", message)
}

func selfActionError(message string) *echo.HTTPError {
	return commons.NewHTTPError(http.StatusBadRequest, "self_action_forbidden", message)
}
