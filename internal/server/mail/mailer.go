// Package mail defines how the server asks for transactional email to be
// delivered. Only a logging implementation ships with the server; a real
// provider plugs in behind the same interface.
package mail

import (
	"context"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/buddyauth/internal/logging"
)

// Mailer delivers account emails.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, link string) error
	SendWelcome(ctx context.Context, to, name string) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(logger logging.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("component", "mailer")}
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	m.logger.Info(ctx, "password reset email", "to", to, "link", link)
	return nil
}

func (m *LogMailer) SendWelcome(ctx context.Context, to, name string) error {
	m.logger.Info(ctx, "welcome email", "to", to, "name", name)
	return nil
}

// ResetLink builds the link a user follows to reset the password.
func ResetLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}
