package services

import (
	"context"
	"fmt"
	"net/smtp"
	"sort"
	"strings"

	"gymhub_app_echo/internal/config"
)

// Mailer delivers templated email
type Mailer interface {
	SendTemplate(ctx context.Context, to, template string, data map[string]string) error
}

type emailTemplate struct {
	Subject string
	Body    string
}

const (
	TemplateVerifyEmail   = "verify_email"
	TemplateResetPassword = "reset_password"
	TemplateHubActivated  = "hub_activated"
	TemplateHubExpiring   = "hub_expiring"
	TemplateAnnouncement  = "announcement"
)

var emailTemplates = map[string]emailTemplate{
	TemplateVerifyEmail: {
		Subject: "Verify your email",
		Body:    "Hi $name,\n\nYour verification code is $otp. It expires in 10 minutes.",
	},
	TemplateResetPassword: {
		Subject: "Password reset code",
		Body:    "Hi $name,\n\nYour password reset code is $otp. It expires in 10 minutes.\nIgnore this email if you did not ask for a reset.",
	},
	TemplateHubActivated: {
		Subject: "Premium Hub activated",
		Body:    "Hi $name,\n\nYour Premium Hub access is active until $end_date. Enjoy your workouts!",
	},
	TemplateHubExpiring: {
		Subject: "Your Premium Hub access is ending soon",
		Body:    "Hi $name,\n\nYour Premium Hub access ends on $end_date. Renew from the app to keep your plans and session tracking.",
	},
	TemplateAnnouncement: {
		Subject: "$title",
		Body:    "Hi $name,\n\n$message",
	},
}

// RenderTemplate fills a named template with $placeholders from data
func RenderTemplate(name string, data map[string]string) (subject, body string, err error) {
	tpl, ok := emailTemplates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}
	return replacePlaceholders(tpl.Subject, data), replacePlaceholders(tpl.Body, data), nil
}

func replacePlaceholders(text string, data map[string]string) string {
	// longest keys first so $name does not clobber $name_full
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	for _, k := range keys {
		text = strings.ReplaceAll(text, "$"+k, data[k])
	}
	return text
}

// EmailService sends mail over SMTP
type EmailService struct {
	host     string
	port     string
	user     string
	password string
	from     string
}

func NewEmailService(cfg config.SMTPConfig) *EmailService {
	return &EmailService{
		host:     cfg.Host,
		port:     cfg.Port,
		user:     cfg.User,
		password: cfg.Password,
		from:     cfg.From,
	}
}

// Configured reports whether SMTP credentials are present
func (s *EmailService) Configured() bool {
	return s.host != "" && s.port != "" && s.user != "" && s.password != ""
}

func (s *EmailService) SendEmail(to []string, subject, body string) error {
	if !s.Configured() {
		return fmt.Errorf("SMTP credentials not fully configured")
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	auth := smtp.PlainAuth("", s.user, s.password, s.host)

	message := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s\r\n", s.from, strings.Join(to, ", "), subject, body))

	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	if err := smtp.SendMail(addr, auth, s.from, to, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

// SendTemplate renders and sends a named template
func (s *EmailService) SendTemplate(_ context.Context, to, template string, data map[string]string) error {
	subject, body, err := RenderTemplate(template, data)
	if err != nil {
		return err
	}
	return s.SendEmail([]string{to}, subject, body)
}
