// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"accountd/apikeys"
	"accountd/commons"
	"accountd/db"
	"accountd/models"

	"github.com/labstack/echo/v4"
)

func apiKeyManagerError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, apikeys.ErrKeyNotFound):
		return notFoundError("API key not found")
	case errors.Is(err, apikeys.ErrQuotaExceeded):
		return commons.NewHTTPError(http.StatusForbidden, "quota_exceeded",
			"You have reached the API key limit for your plan. Upgrade your plan or disable an existing key.")
	default:
		c.Logger().Errorf("API key operation failed: %v", err)
		return echo.ErrInternalServerError
	}
}

// ownedKey loads the :key_id route parameter for the current user.
func ownedKey(c echo.Context) (*models.User, *models.APIKey, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, nil, err
	}
	keyID, err := parseIDParam(c, "key_id")
	if err != nil {
		return nil, nil, notFoundError("API key not found")
	}
	key, err := KeyManager.Get(c.Request().Context(), user.ID, keyID)
	if err != nil {
		return nil, nil, apiKeyManagerError(c, err)
	}
	return user, key, nil
}

// GetAPIKeysHandler godoc
// @Summary      List API keys
// @Description  Masked keys of the current user with the plan quota.
// @Tags         api-keys
// @Produce      json
// @Success      200 {object} APIKeyListResponse
// @Failure      401 {object} commons.ErrorBody "Unauthorized"
// @Router       /account/api-keys [get]
func GetAPIKeysHandler(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	keys, err := KeyManager.List(c.Request().Context(), user.ID)
	if err != nil {
		return apiKeyManagerError(c, err)
	}

	resp := APIKeyListResponse{
		Data:  make([]APIKeyResource, 0, len(keys)),
		Quota: commons.GetConfig().QuotaFor(user.PlanName()),
	}
	for i := range keys {
		resp.Data = append(resp.Data, newAPIKeyResource(&keys[i]))
		if keys[i].IsActive {
			resp.Active++
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// CreateAPIKeyHandler godoc
// @Summary      Create an API key
// @Description  The plaintext key is returned once and cannot be retrieved again.
// @Tags         api-keys
// @Accept       json
// @Produce      json
// @Param        createAPIKeyRequest  body  CreateAPIKeyRequest  false  "Optional name and expiry"
// @Success      201 {object} APIKeySecretResponse
// @Failure      400 {object} commons.ErrorBody "Validation error"
// @Failure      403 {object} commons.ErrorBody "Quota exceeded"
// @Router       /account/api-keys [post]
func CreateAPIKeyHandler(c echo.Context) error {
	logger := c.Logger()

	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req CreateAPIKeyRequest
	if c.Request().ContentLength != 0 {
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return validationError("expires_at must be in the future")
	}

	key, plaintext, err := KeyManager.Issue(c.Request().Context(), user.ID, req.Name, req.ExpiresAt)
	if err != nil {
		if errors.Is(err, apikeys.ErrQuotaExceeded) {
			LogEvent(db.Conn, user.ID, models.APIKeys, models.Failed, "API key quota exceeded")
		}
		return apiKeyManagerError(c, err)
	}

	LogEvent(db.Conn, user.ID, models.APIKeys, models.Success, fmt.Sprintf("Created API key %q", key.Name))
	logger.Infof("API key %d created for user %d", key.ID, user.ID)
	return c.JSON(http.StatusCreated, APIKeySecretResponse{
		Message: "API key created. Copy it now, it will not be shown again.",
		APIKey:  newAPIKeyResource(key),
		Key:     plaintext,
	})
}

// ToggleAPIKeyHandler godoc
// @Summary      Enable or disable an API key
// @Description  Re-enabling counts against the plan quota.
// @Tags         api-keys
// @Produce      json
// @Param        key_id  path  int  true  "API key id"
// @Success      200 {object} APIKeyResource
// @Failure      403 {object} commons.ErrorBody "Quota exceeded"
// @Failure      404 {object} commons.ErrorBody "Not found"
// @Router       /account/api-keys/{key_id}/toggle [post]
func ToggleAPIKeyHandler(c echo.Context) error {
	user, key, err := ownedKey(c)
	if err != nil {
		return err
	}
	if err := KeyManager.Toggle(c.Request().Context(), key); err != nil {
		return apiKeyManagerError(c, err)
	}

	state := "Disabled"
	if key.IsActive {
		state = "Enabled"
	}
	LogEvent(db.Conn, user.ID, models.APIKeys, models.Success, fmt.Sprintf("%s API key %q", state, key.Name))
	return c.JSON(http.StatusOK, newAPIKeyResource(key))
}

// RevokeAPIKeyHandler godoc
// @Summary      Revoke an API key
// @Tags         api-keys
// @Produce      json
// @Param        key_id  path  int  true  "API key id"
// @Success      200 {object} APIKeyResource
// @Failure      404 {object} commons.ErrorBody "Not found"
// @Router       /account/api-keys/{key_id}/revoke [post]
func RevokeAPIKeyHandler(c echo.Context) error {
	user, key, err := ownedKey(c)
	if err != nil {
		return err
	}
	if err := KeyManager.Revoke(c.Request().Context(), key); err != nil {
		return apiKeyManagerError(c, err)
	}
	LogEvent(db.Conn, user.ID, models.APIKeys, models.Success, fmt.Sprintf("Revoked API key %q", key.Name))
	return c.JSON(http.StatusOK, newAPIKeyResource(key))
}

// RegenerateAPIKeyHandler godoc
// @Summary      Regenerate an API key
// @Description  Replaces the secret of the key. The old plaintext stops working immediately.
// @Tags         api-keys
// @Produce      json
// @Param        key_id  path  int  true  "API key id"
// @Success      200 {object} APIKeySecretResponse
// @Failure      404 {object} commons.ErrorBody "Not found"
// @Router       /account/api-keys/{key_id}/regenerate [post]
func RegenerateAPIKeyHandler(c echo.Context) error {
	user, key, err := ownedKey(c)
	if err != nil {
		return err
	}
	plaintext, err := KeyManager.Regenerate(c.Request().Context(), key)
	if err != nil {
		return apiKeyManagerError(c, err)
	}
	LogEvent(db.Conn, user.ID, models.APIKeys, models.Success, fmt.Sprintf("Regenerated API key %q", key.Name))
	return c.JSON(http.StatusOK, APIKeySecretResponse{
		Message: "API key regenerated. Copy it now, it will not be shown again.",
		APIKey:  newAPIKeyResource(key),
		Key:     plaintext,
	})
}

// DeleteAPIKeyHandler godoc
// @Summary      Delete an API key
// @Tags         api-keys
// @Param        key_id  path  int  true  "API key id"
// @Success      204 "Deleted"
// @Failure      404 {object} commons.ErrorBody "Not found"
// @Router       /account/api-keys/{key_id} [delete]
func DeleteAPIKeyHandler(c echo.Context) error {
	user, key, err := ownedKey(c)
	if err != nil {
		return err
	}
	if err := KeyManager.Delete(c.Request().Context(), key); err != nil {
		return apiKeyManagerError(c, err)
	}
	LogEvent(db.Conn, user.ID, models.APIKeys, models.Success, fmt.Sprintf("Deleted API key %q", key.Name))
	return c.NoContent(http.StatusNoContent)
}
