// SPDX-License-Identifier: GPL-3.0-only

package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"accountd/apikeys"
	"accountd/commons"
	"accountd/crypto"
	"accountd/db"
	"accountd/handlers"
	"accountd/middlewares"
	"accountd/models"
	"accountd/notifications"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "http://accountd.test"

type testServer struct {
	t    *testing.T
	e    *echo.Echo
	mu   sync.Mutex
	sent []notifications.NotificationData
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &commons.Config{
		BaseURL:            testBaseURL,
		AppName:            "Accountd",
		SecretKey:          "test-secret",
		TokenSalt:          "test-salt",
		JWTSecret:          "test-jwt-secret",
		SessionTTL:         time.Hour,
		ArgonTime:          1,
		ArgonMemory:        1024,
		ArgonThreads:       1,
		ArgonKeyLen:        32,
		ArgonSaltLen:       16,
		APIKeyQuotas:       map[string]int{"Free": 2, "Pro": 10},
		DefaultAPIKeyQuota: 2,
		AuthRateLimit:      1000,
		AuthRateBurst:      1000,
		EmailProvider:      "mock",
	}
	commons.SetConfig(cfg)

	conn, err := db.Open("sqlite", fmt.Sprintf("file:routes_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	db.Conn = conn

	s := &testServer{t: t, e: echo.New()}
	previous := handlers.SendNotification
	handlers.SendNotification = func(data notifications.NotificationData) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.sent = append(s.sent, data)
	}
	t.Cleanup(func() {
		handlers.SendNotification = previous
		sqlDB, _ := conn.DB()
		sqlDB.Close()
	})

	handlers.ConfigureEcho(s.e)
	RegisterRoutes(s.e, apikeys.NewManager(conn, crypto.NewCrypto(), cfg))
	return s
}

type requestOption func(*http.Request)

func withCookie(cookie *http.Cookie) requestOption {
	return func(r *http.Request) { r.AddCookie(cookie) }
}

func withBearer(key string) requestOption {
	return func(r *http.Request) { r.Header.Set(echo.HeaderAuthorization, "Bearer "+key) }
}

func (s *testServer) do(method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

// lastMail returns the newest captured notification rendered with template.
func (s *testServer) lastMail(template string) notifications.NotificationData {
	s.t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.sent) - 1; i >= 0; i-- {
		if s.sent[i].Template == template {
			return s.sent[i]
		}
	}
	s.t.Fatalf("no %s notification captured", template)
	return notifications.NotificationData{}
}

func (s *testServer) createUser(email, password string, role models.Role, confirmed bool) *models.User {
	s.t.Helper()
	digest, err := crypto.NewCrypto().HashPassword(password)
	require.NoError(s.t, err)
	user := &models.User{Email: email, Password: digest, Role: role, Language: models.LanguageEN, IsActive: true}
	if confirmed {
		user.Confirm(time.Now())
	}
	require.NoError(s.t, db.Conn.Create(user).Error)
	return user
}

func (s *testServer) login(email, password string) *http.Cookie {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password})
	require.Equal(s.t, http.StatusSeeOther, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == middlewares.SessionCookieName && c.Value != "" {
			return c
		}
	}
	s.t.Fatal("login did not set a session cookie")
	return nil
}

func (s *testServer) issueKey(cookie *http.Cookie) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/account/api-keys", map[string]string{"name": "test"}, withCookie(cookie))
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp handlers.APIKeySecretResponse
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Key
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body commons.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

func tokenFrom(t *testing.T, link, prefix string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(link, testBaseURL+prefix), link)
	return strings.TrimPrefix(link, testBaseURL+prefix)
}

func TestRegisterConfirmLogin(t *testing.T) {
	s := newTestServer(t)
	const password = "Sup3r!Secret"

	rec := s.do(http.MethodPost, "/auth/register", map[string]string{
		"email":            "New.User@Example.com",
		"password":         password,
		"password_confirm": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var registered handlers.RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registered))
	assert.Equal(t, "new.user@example.com", registered.User.Email)
	assert.False(t, registered.User.IsConfirmed)
	assert.Equal(t, "Free", registered.User.Plan)
	assert.Empty(t, registered.ConfirmURL)

	rec = s.do(http.MethodPost, "/auth/register", map[string]string{
		"email":            "new.user@example.com",
		"password":         password,
		"password_confirm": password,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", errorCode(t, rec))

	mail := s.lastMail(notifications.TemplateConfirmEmail)
	assert.Equal(t, "new.user@example.com", mail.To)
	confirmToken := tokenFrom(t, mail.Variables["confirm_url"].(string), "/auth/confirm/")

	// unconfirmed accounts are sent to the resend page
	rec = s.do(http.MethodPost, "/auth/login", map[string]string{"email": "new.user@example.com", "password": password})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/resend-confirmation?email="+url.QueryEscape("new.user@example.com"), rec.Header().Get(echo.HeaderLocation))

	// a reset token cannot confirm an account
	rec = s.do(http.MethodPost, "/auth/forgot", map[string]string{"email": "new.user@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	resetToken := tokenFrom(t, s.lastMail(notifications.TemplateResetPassword).Variables["reset_url"].(string), "/auth/reset/")
	rec = s.do(http.MethodGet, "/auth/confirm/"+resetToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "token_invalid", errorCode(t, rec))

	rec = s.do(http.MethodGet, "/auth/confirm/"+confirmToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "new.user@example.com", s.lastMail(notifications.TemplateWelcome).To)

	rec = s.do(http.MethodPost, "/auth/login", map[string]string{"email": "new.user@example.com", "password": "Wrong!Passw0rd"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", errorCode(t, rec))

	rec = s.do(http.MethodPost, "/auth/login?next="+url.QueryEscape("https://evil.example/"), map[string]string{"email": "new.user@example.com", "password": password})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/profile", rec.Header().Get(echo.HeaderLocation))

	rec = s.do(http.MethodPost, "/auth/login?next=%2Faccount", map[string]string{"email": "new.user@example.com", "password": password})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/account", rec.Header().Get(echo.HeaderLocation))

	cookie := s.login("new.user@example.com", password)
	rec = s.do(http.MethodGet, "/profile", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	var profile handlers.UserResource
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.True(t, profile.IsConfirmed)

	rec = s.do(http.MethodPost, "/auth/logout", nil, withCookie(cookie))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodGet, "/profile", nil, withCookie(cookie))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPasswordResetIsSingleUse(t *testing.T) {
	s := newTestServer(t)
	s.createUser("reset@example.com", "Old!Passw0rd", models.RoleUser, true)
	cookie := s.login("reset@example.com", "Old!Passw0rd")

	rec := s.do(http.MethodPost, "/auth/forgot", map[string]string{"email": "nobody@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	var unknown handlers.ForgotPasswordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &unknown))

	rec = s.do(http.MethodPost, "/auth/forgot", map[string]string{"email": "reset@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	var known handlers.ForgotPasswordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &known))
	assert.Equal(t, unknown.Message, known.Message)

	token := tokenFrom(t, s.lastMail(notifications.TemplateResetPassword).Variables["reset_url"].(string), "/auth/reset/")

	rec = s.do(http.MethodGet, "/auth/reset/"+token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/auth/reset/"+token, map[string]string{"password": "New!Passw0rd", "password_confirm": "New!Passw0rd"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the old session is gone and the link no longer works
	rec = s.do(http.MethodGet, "/profile", nil, withCookie(cookie))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(http.MethodGet, "/auth/reset/"+token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.login("reset@example.com", "New!Passw0rd")
}

func TestAdminCannotActOnSelf(t *testing.T) {
	s := newTestServer(t)
	admin := s.createUser("admin@example.com", "Adm1n!Passw0rd", models.RoleAdmin, true)
	member := s.createUser("member@example.com", "Memb3r!Passw0rd", models.RoleUser, true)
	adminCookie := s.login("admin@example.com", "Adm1n!Passw0rd")
	memberCookie := s.login("member@example.com", "Memb3r!Passw0rd")

	rec := s.do(http.MethodGet, "/admin/users", nil, withCookie(memberCookie))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(http.MethodGet, "/admin/users", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	selfPath := fmt.Sprintf("/admin/users/%d", admin.ID)
	rec = s.do(http.MethodPut, selfPath, map[string]any{
		"email":        "admin@example.com",
		"role":         "user",
		"language":     "en",
		"is_active":    true,
		"is_confirmed": true,
	}, withCookie(adminCookie))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "self_action_forbidden", errorCode(t, rec))

	rec = s.do(http.MethodPut, selfPath, map[string]any{
		"email":        "admin@example.com",
		"role":         "admin",
		"language":     "en",
		"is_active":    false,
		"is_confirmed": true,
	}, withCookie(adminCookie))
	assert.Equal(t, "self_action_forbidden", errorCode(t, rec))

	rec = s.do(http.MethodDelete, selfPath, nil, withCookie(adminCookie))
	assert.Equal(t, "self_action_forbidden", errorCode(t, rec))
	rec = s.do(http.MethodPost, selfPath+"/toggle-status", nil, withCookie(adminCookie))
	assert.Equal(t, "self_action_forbidden", errorCode(t, rec))

	var reloaded models.User
	require.NoError(t, db.Conn.First(&reloaded, admin.ID).Error)
	assert.Equal(t, models.RoleAdmin, reloaded.Role)
	assert.True(t, reloaded.IsActive)

	memberPath := fmt.Sprintf("/admin/users/%d", member.ID)
	rec = s.do(http.MethodPut, memberPath, map[string]any{
		"email":        "admin@example.com",
		"role":         "user",
		"language":     "de",
		"is_active":    true,
		"is_confirmed": true,
	}, withCookie(adminCookie))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPut, "/admin/users/9999", map[string]any{
		"email":        "ghost@example.com",
		"role":         "user",
		"language":     "en",
		"is_active":    true,
		"is_confirmed": false,
	}, withCookie(adminCookie))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// deactivating a member ends their sessions
	rec = s.do(http.MethodPost, memberPath+"/toggle-status", nil, withCookie(adminCookie))
	require.Equal(t, http.StatusOK, rec.Code)
	var toggled handlers.UserResource
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toggled))
	assert.False(t, toggled.IsActive)
	rec = s.do(http.MethodGet, "/profile", nil, withCookie(memberCookie))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodDelete, memberPath, nil, withCookie(adminCookie))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	var count int64
	require.NoError(t, db.Conn.Model(&models.User{}).Where("id = ?", member.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAdminListUsersSearchAndPaging(t *testing.T) {
	s := newTestServer(t)
	s.createUser("admin@example.com", "Adm1n!Passw0rd", models.RoleAdmin, true)
	for i := 0; i < 22; i++ {
		s.createUser(fmt.Sprintf("user%02d@example.com", i), "x", models.RoleUser, false)
	}
	s.createUser("someone@other.org", "x", models.RoleUser, false)
	cookie := s.login("admin@example.com", "Adm1n!Passw0rd")

	rec := s.do(http.MethodGet, "/admin/users?page=2", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	var page handlers.UserListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, int64(24), page.Pagination.TotalRecords)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	assert.Len(t, page.Data, 4)

	rec = s.do(http.MethodGet, "/admin/users?search=OTHER.org", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, "someone@other.org", page.Data[0].Email)
}

func TestPlanWithSubscribersCannotBeDeleted(t *testing.T) {
	s := newTestServer(t)
	s.createUser("admin@example.com", "Adm1n!Passw0rd", models.RoleAdmin, true)
	s.createUser("buyer@example.com", "Buy3r!Passw0rd", models.RoleUser, true)
	adminCookie := s.login("admin@example.com", "Adm1n!Passw0rd")
	buyerCookie := s.login("buyer@example.com", "Buy3r!Passw0rd")

	var pro models.Plan
	require.NoError(t, db.Conn.Where("name = ?", "Pro").First(&pro).Error)

	rec := s.do(http.MethodPost, "/account/plan", map[string]uint{"plan_id": pro.ID}, withCookie(buyerCookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Pro", s.lastMail(notifications.TemplatePlanChange).Variables["plan_name"])

	rec = s.do(http.MethodGet, "/plans", nil, withCookie(buyerCookie))
	require.Equal(t, http.StatusOK, rec.Code)
	var plans []handlers.PlanResource
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plans))
	require.Len(t, plans, 3)
	for _, p := range plans {
		assert.Equal(t, p.Name == "Pro", p.IsCurrent, p.Name)
	}

	rec = s.do(http.MethodDelete, fmt.Sprintf("/admin/plans/%d", pro.ID), nil, withCookie(adminCookie))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", errorCode(t, rec))

	rec = s.do(http.MethodPost, "/admin/plans", map[string]any{"name": "Pro", "price": "5.00"}, withCookie(adminCookie))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/admin/plans", map[string]any{
		"name":     "Starter",
		"price":    "4.50",
		"features": []string{"One seat"},
	}, withCookie(adminCookie))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var starter handlers.PlanResource
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &starter))
	assert.Equal(t, "USD 4.50/monthly", starter.FormattedPrice)

	rec = s.do(http.MethodDelete, fmt.Sprintf("/admin/plans/%d", starter.ID), nil, withCookie(adminCookie))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodDelete, "/account/plan", nil, withCookie(buyerCookie))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Pro", s.lastMail(notifications.TemplateSubscriptionCancelled).Variables["plan_name"])
	rec = s.do(http.MethodDelete, fmt.Sprintf("/admin/plans/%d", pro.ID), nil, withCookie(adminCookie))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPlanChangesArePersisted(t *testing.T) {
	s := newTestServer(t)
	buyer := s.createUser("switcher@example.com", "Sw1tch!Passw0rd", models.RoleUser, true)
	cookie := s.login("switcher@example.com", "Sw1tch!Passw0rd")

	var pro, enterprise models.Plan
	require.NoError(t, db.Conn.Where("name = ?", "Pro").First(&pro).Error)
	require.NoError(t, db.Conn.Where("name = ?", "Enterprise").First(&enterprise).Error)

	stored := func() models.User {
		t.Helper()
		var u models.User
		require.NoError(t, db.Conn.First(&u, buyer.ID).Error)
		return u
	}
	overview := func() handlers.AccountOverviewResponse {
		t.Helper()
		rec := s.do(http.MethodGet, "/account", nil, withCookie(cookie))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp handlers.AccountOverviewResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	rec := s.do(http.MethodPost, "/account/plan", map[string]uint{"plan_id": pro.ID}, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	u := stored()
	require.NotNil(t, u.PlanID)
	assert.Equal(t, pro.ID, *u.PlanID)
	require.NotNil(t, u.PlanSubscribedAt)
	proSince := *u.PlanSubscribedAt

	// Pro allows more keys than the default quota
	for i := 0; i < 3; i++ {
		s.issueKey(cookie)
	}

	rec = s.do(http.MethodPost, "/account/plan", map[string]uint{"plan_id": enterprise.ID}, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	u = stored()
	require.NotNil(t, u.PlanID)
	assert.Equal(t, enterprise.ID, *u.PlanID)
	require.NotNil(t, u.PlanSubscribedAt)
	assert.False(t, u.PlanSubscribedAt.Before(proSince))
	resp := overview()
	require.NotNil(t, resp.Plan)
	assert.Equal(t, "Enterprise", resp.Plan.Name)

	// Enterprise has no configured quota and falls back to the default of 2
	rec = s.do(http.MethodPost, "/account/api-keys", map[string]string{"name": "over"}, withCookie(cookie))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "quota_exceeded", errorCode(t, rec))

	rec = s.do(http.MethodPost, "/account/plan", map[string]uint{"plan_id": pro.ID}, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	s.issueKey(cookie)

	rec = s.do(http.MethodDelete, "/account/plan", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	u = stored()
	assert.Nil(t, u.PlanID)
	assert.Nil(t, u.PlanSubscribedAt)
	resp = overview()
	assert.Nil(t, resp.Plan)
	assert.Nil(t, resp.PlanSubscribedAt)

	rec = s.do(http.MethodPost, "/account/api-keys", map[string]string{"name": "free"}, withCookie(cookie))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "quota_exceeded", errorCode(t, rec))

	rec = s.do(http.MethodDelete, "/account/plan", nil, withCookie(cookie))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminPasswordResetEndsSessions(t *testing.T) {
	s := newTestServer(t)
	s.createUser("admin@example.com", "Adm1n!Passw0rd", models.RoleAdmin, true)
	member := s.createUser("member@example.com", "Memb3r!Passw0rd", models.RoleUser, true)
	adminCookie := s.login("admin@example.com", "Adm1n!Passw0rd")
	memberCookie := s.login("member@example.com", "Memb3r!Passw0rd")

	rec := s.do(http.MethodPut, fmt.Sprintf("/admin/users/%d", member.ID), map[string]any{
		"email":        "member@example.com",
		"role":         "user",
		"language":     "en",
		"is_active":    true,
		"is_confirmed": true,
		"new_password": "N3w!Memb3rPass",
	}, withCookie(adminCookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var sessions int64
	require.NoError(t, db.Conn.Model(&models.Session{}).Where("user_id = ?", member.ID).Count(&sessions).Error)
	assert.Zero(t, sessions)
	rec = s.do(http.MethodGet, "/profile", nil, withCookie(memberCookie))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/profile", nil, withCookie(adminCookie))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/auth/login", map[string]string{"email": "member@example.com", "password": "Memb3r!Passw0rd"})
	assert.NotEqual(t, http.StatusSeeOther, rec.Code)
	s.login("member@example.com", "N3w!Memb3rPass")
}

func TestBearerAPI(t *testing.T) {
	s := newTestServer(t)
	s.createUser("admin@example.com", "Adm1n!Passw0rd", models.RoleAdmin, true)
	s.createUser("dev@example.com", "D3v!Passw0rd", models.RoleUser, true)
	adminCookie := s.login("admin@example.com", "Adm1n!Passw0rd")
	devCookie := s.login("dev@example.com", "D3v!Passw0rd")

	rec := s.do(http.MethodGet, "/api/v1/ping", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pong":true}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/v1/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing_api_key", errorCode(t, rec))

	devKey := s.issueKey(devCookie)
	rec = s.do(http.MethodGet, "/api/v1/me", nil, withBearer(devKey))
	require.Equal(t, http.StatusOK, rec.Code)
	var me handlers.UserResource
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "dev@example.com", me.Email)

	rec = s.do(http.MethodGet, "/api/v1/users", nil, withBearer(devKey))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// the Free plan allows two active keys
	s.issueKey(devCookie)
	rec = s.do(http.MethodPost, "/account/api-keys", nil, withCookie(devCookie))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "quota_exceeded", errorCode(t, rec))

	rec = s.do(http.MethodPost, "/account/api-keys", map[string]any{"expires_at": time.Now().Add(-time.Hour)}, withCookie(devCookie))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	adminKey := s.issueKey(adminCookie)
	rec = s.do(http.MethodGet, "/api/v1/users", nil, withBearer(adminKey))
	require.Equal(t, http.StatusOK, rec.Code)
	var users handlers.UserListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	assert.Equal(t, int64(2), users.Pagination.TotalRecords)

	rec = s.do(http.MethodPost, "/api/v1/users", map[string]string{"email": "dev@example.com"}, withBearer(adminKey))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/users", map[string]string{"email": "Bot@Example.com"}, withBearer(adminKey))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created handlers.UserResource
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "bot@example.com", created.Email)
	assert.True(t, created.IsConfirmed)

	rec = s.do(http.MethodGet, "/api/v1/me", nil, withBearer(devKey+"x"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.createUser("dev@example.com", "D3v!Passw0rd", models.RoleUser, true)
	cookie := s.login("dev@example.com", "D3v!Passw0rd")

	key := s.issueKey(cookie)

	rec := s.do(http.MethodGet, "/account/api-keys", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	var list handlers.APIKeyListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, 2, list.Quota)
	assert.Equal(t, key[:12], list.Data[0].KeyPrefix)
	assert.Equal(t, key[:12]+strings.Repeat("*", 32), list.Data[0].MaskedKey)
	keyPath := fmt.Sprintf("/account/api-keys/%d", list.Data[0].ID)

	rec = s.do(http.MethodPost, keyPath+"/toggle", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/api/v1/me", nil, withBearer(key))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "api_key_disabled", errorCode(t, rec))

	rec = s.do(http.MethodPost, keyPath+"/regenerate", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var regenerated handlers.APIKeySecretResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &regenerated))
	assert.NotEqual(t, key, regenerated.Key)
	assert.False(t, regenerated.APIKey.IsActive)

	rec = s.do(http.MethodGet, "/api/v1/me", nil, withBearer(key))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_api_key", errorCode(t, rec))
	rec = s.do(http.MethodGet, "/api/v1/me", nil, withBearer(regenerated.Key))
	assert.Equal(t, "api_key_disabled", errorCode(t, rec))

	rec = s.do(http.MethodPost, keyPath+"/toggle", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/api/v1/me", nil, withBearer(regenerated.Key))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodDelete, keyPath, nil, withCookie(cookie))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodDelete, keyPath, nil, withCookie(cookie))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAccountDeletion(t *testing.T) {
	s := newTestServer(t)
	user := s.createUser("leaving@example.com", "L3aving!Passw0rd", models.RoleUser, true)
	cookie := s.login("leaving@example.com", "L3aving!Passw0rd")
	s.issueKey(cookie)

	rec := s.do(http.MethodPut, "/account/billing", map[string]string{"full_name": "Leaving User", "country": "de"}, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/account/delete", map[string]string{"confirm": "delete"}, withCookie(cookie))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/account/delete", map[string]string{"confirm": "DELETE"}, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, owned := range []any{&models.User{}, &models.APIKey{}, &models.BillingProfile{}, &models.Session{}} {
		var count int64
		q := db.Conn.Model(owned)
		if _, isUser := owned.(*models.User); isUser {
			q = q.Where("id = ?", user.ID)
		} else {
			q = q.Where("user_id = ?", user.ID)
		}
		require.NoError(t, q.Count(&count).Error)
		assert.Zero(t, count, "%T", owned)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
