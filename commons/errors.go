// SPDX-License-Identifier: GPL-3.0-only

package commons

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

const InternalErrorMessage = "An unexpected error occurred"

// NewHTTPError builds an echo error carrying a machine readable code.
func NewHTTPError(status int, code, message string) *echo.HTTPError {
	return &echo.HTTPError{
		Code:    status,
		Message: ErrorBody{Error: code, Message: message},
	}
}

// DefaultErrorCode maps a status to the code used when none is given.
func DefaultErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		if status >= 500 {
			return "internal_error"
		}
		return "error"
	}
}
