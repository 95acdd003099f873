// SPDX-License-Identifier: GPL-3.0-only

package notifications

type NotificationTypes string

const (
	Email NotificationTypes = "EMAIL"
)

type NotificationData struct {
	To        string         `json:"to"`
	ToName    *string        `json:"to_name,omitempty"`
	Subject   string         `json:"subject"`
	Template  string         `json:"template"`
	Variables map[string]any `json:"variables,omitempty"`
}

type NotificationProviders string

const (
	Mock  NotificationProviders = "mock"
	SMTP  NotificationProviders = "smtp"
	Queue NotificationProviders = "queue"
)

const (
	TemplateConfirmEmail          = "confirm_email"
	TemplateResetPassword         = "reset_password"
	TemplateWelcome               = "welcome"
	TemplatePlanChange            = "plan_change"
	TemplateSubscriptionCancelled = "subscription_cancelled"
)
