// Package mailer is the outbound email collaborator. The auth services only
// depend on the Mailer interface; delivery details stay here.
package mailer

//go:generate mockgen -destination=../mocks/mock_mailer.go -package=mocks github.com/Renagang21/o4o-auth-service/internal/mailer Mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
)

type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
	SendEmailVerification(ctx context.Context, email, token string) error
	SendSecurityAlert(ctx context.Context, email, message string) error
}

// SMTPMailer delivers through a plain SMTP relay.
type SMTPMailer struct {
	addr        string
	from        string
	frontendURL string
}

func NewSMTPMailer(addr, from, frontendURL string) *SMTPMailer {
	return &SMTPMailer{addr: addr, from: from, frontendURL: frontendURL}
}

func (m *SMTPMailer) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.from, to, subject, body)
	if err := smtp.SendMail(m.addr, nil, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}

	return nil
}

func (m *SMTPMailer) SendPasswordReset(_ context.Context, email, token string) error {
	link := fmt.Sprintf("%s/auth/reset-password?token=%s", m.frontendURL, token)

	return m.send(email, "Reset your password",
		"A password reset was requested for your account.\n\n"+
			"Open the link below to choose a new password:\n"+link+"\n\n"+
			"If you did not request this, you can ignore this email.")
}

func (m *SMTPMailer) SendEmailVerification(_ context.Context, email, token string) error {
	link := fmt.Sprintf("%s/auth/verify-email?token=%s", m.frontendURL, token)

	return m.send(email, "Verify your email address",
		"Welcome! Confirm your email address by opening the link below:\n"+link)
}

func (m *SMTPMailer) SendSecurityAlert(_ context.Context, email, message string) error {
	return m.send(email, "Security alert for your account", message)
}

// LogMailer writes deliveries to the log instead of sending them. Used in
// development where no relay is configured.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	m.logger.InfoContext(ctx, "password reset email", "to", email, "token", token)
	return nil
}

func (m *LogMailer) SendEmailVerification(ctx context.Context, email, token string) error {
	m.logger.InfoContext(ctx, "verification email", "to", email, "token", token)
	return nil
}

func (m *LogMailer) SendSecurityAlert(ctx context.Context, email, message string) error {
	m.logger.InfoContext(ctx, "security alert email", "to", email, "message", message)
	return nil
}
