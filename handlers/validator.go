// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/nyaruka/phonenumbers"
)

// RequestValidator adapts go-playground/validator to echo.Validator.
type RequestValidator struct {
	validate *validator.Validate
}

func NewValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("country", func(fl validator.FieldLevel) bool {
		return IsCountryCode(fl.Field().String())
	})
	return &RequestValidator{validate: v}
}

// IsCountryCode reports whether code is a known ISO 3166-1 alpha-2 region.
func IsCountryCode(code string) bool {
	if len(code) != 2 {
		return false
	}
	return phonenumbers.GetCountryCodeForRegion(strings.ToUpper(code)) != 0
}

func (rv *RequestValidator) Validate(i any) error {
	err := rv.validate.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return validationError(err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return validationError(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required":
		return fmt.Sprintf("%s field is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "eqfield":
		return fmt.Sprintf("%s must match %s", fe.Field(), toSnake(fe.Param()))
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters or items", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters or items", fe.Field(), fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", fe.Field(), fe.Param())
	case "country":
		return fmt.Sprintf("%s must be an ISO 3166-1 alpha-2 country code", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// bindAndValidate decodes the request into req and validates it.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		c.Logger().Debug("Invalid request payload: ", err)
		return validationError("Invalid request payload, please ensure it is well-formed and has content-type application/json header")
	}
	return c.Validate(req)
}

// ConfigureEcho installs the validator and error handler on e.
func ConfigureEcho(e *echo.Echo) {
	e.Validator = NewValidator()
	e.HTTPErrorHandler = HTTPErrorHandler
}
