// SPDX-License-Identifier: GPL-3.0-only

package notifications

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"accountd/commons"

	"gopkg.in/gomail.v2"
)

func MockEmailClient(data NotificationData) error {
	commons.Logger.Info("=== MOCK EMAIL NOTIFICATION ===")
	commons.Logger.Infof("To: %s", data.To)
	commons.Logger.Infof("Subject: %s", data.Subject)
	commons.Logger.Infof("Template: %s", data.Template)

	if data.Template != "" {
		htmlBody, err := RenderTemplate(data.Template, data.Variables)
		if err != nil {
			return fmt.Errorf("failed to render template: %w", err)
		}
		commons.Logger.Debugf("Rendered email body:\n%s", htmlBody)
	}

	commons.Logger.Info("=== EMAIL MOCK COMPLETE ===")
	return nil
}

func SMTPClient(data NotificationData) error {
	commons.Logger.Debug("Sending email via SMTP")
	cfg := commons.GetConfig()

	if cfg.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST environment variable is not set")
	}
	if cfg.SMTPFromEmail == "" {
		return fmt.Errorf("SMTP_FROM_EMAIL environment variable is not set")
	}
	if data.To == "" {
		return fmt.Errorf("'to' field is required")
	}
	if data.Subject == "" {
		return fmt.Errorf("'subject' field is required")
	}
	if data.Template == "" {
		return fmt.Errorf("'template' field is required")
	}

	htmlBody, err := RenderTemplate(data.Template, data.Variables)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}

	fromName := cfg.SMTPFromName
	if fromName == "" {
		fromName = cfg.AppName
	}

	message := gomail.NewMessage()
	message.SetHeader("From", message.FormatAddress(cfg.SMTPFromEmail, fromName))
	if data.ToName != nil {
		message.SetHeader("To", message.FormatAddress(data.To, *data.ToName))
	} else {
		message.SetHeader("To", data.To)
	}
	message.SetHeader("Subject", data.Subject)
	message.SetBody("text/html", htmlBody)

	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	dialer.TLSConfig = &tls.Config{ServerName: cfg.SMTPHost}

	if err := dialer.DialAndSend(message); err != nil {
		return fmt.Errorf("failed to send email via SMTP: %w", err)
	}

	commons.Logger.Info("Email sent successfully via SMTP")
	return nil
}

// RenderTemplate renders EMAIL_TEMPLATES_DIR/<name>.html with variables.
func RenderTemplate(templateName string, variables map[string]any) (string, error) {
	templatePath := filepath.Join(commons.GetConfig().EmailTemplatesDir, templateName+".html")

	templateContent, err := os.ReadFile(templatePath)
	if err != nil {
		return "", fmt.Errorf("failed to read template file %s: %w", templatePath, err)
	}

	tmpl, err := template.New(templateName).Parse(string(templateContent))
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", templateName, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, variables); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}

	return buf.String(), nil
}
