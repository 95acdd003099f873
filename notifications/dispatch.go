// SPDX-License-Identifier: GPL-3.0-only

package notifications

import (
	"fmt"
	"strings"

	"accountd/commons"
	"accountd/metrics"
)

// ConfiguredProvider returns the email provider selected by EMAIL_PROVIDER.
func ConfiguredProvider() NotificationProviders {
	switch p := NotificationProviders(strings.ToLower(commons.GetConfig().EmailProvider)); p {
	case SMTP, Queue:
		return p
	default:
		return Mock
	}
}

func DispatchNotification(_type NotificationTypes, provider NotificationProviders, data NotificationData) error {
	commons.Logger.Debugf("Dispatching notification:\n- type=%s\n- provider=%s", _type, provider)

	if appName := commons.GetConfig().AppName; appName != "" && !strings.HasPrefix(data.Subject, "[") {
		data.Subject = fmt.Sprintf("[%s] %s", appName, data.Subject)
	}

	var err error
	switch _type {
	case Email:
		err = dispatchEmail(provider, data)
	default:
		err = fmt.Errorf("unsupported notification type: %s", _type)
	}
	metrics.NotificationOutcome(string(provider), err)

	if err != nil {
		commons.Logger.Errorf("Failed to dispatch notification:\n%v", err)
		return err
	}

	commons.Logger.Infof("Notification dispatched successfully:\n- type=%s\n- provider=%s", _type, provider)
	return nil
}

func dispatchEmail(provider NotificationProviders, data NotificationData) error {
	switch provider {
	case SMTP:
		return SMTPClient(data)
	case Queue:
		return QueueEmailClient(data)
	case Mock:
		return MockEmailClient(data)
	default:
		return fmt.Errorf("unsupported email provider: %s", provider)
	}
}
