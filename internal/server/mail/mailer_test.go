package mail

import (
	"bytes"
	"context"
	"testing"

	"github.com/dmitrijs2005/buddyauth/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMailer_SendPasswordReset(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMailer(logging.New(&buf, logging.FormatJSON, "info"))

	err := m.SendPasswordReset(context.Background(), "a@example.com", "http://x/reset-password?token=t")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"to":"a@example.com"`)
	assert.Contains(t, out, `"component":"mailer"`)
	assert.Contains(t, out, "reset-password?token=t")
}

func TestLogMailer_SendWelcome(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMailer(logging.New(&buf, logging.FormatJSON, "info"))

	require.NoError(t, m.SendWelcome(context.Background(), "a@example.com", "Ann"))

	out := buf.String()
	assert.Contains(t, out, "welcome email")
	assert.Contains(t, out, `"to":"a@example.com"`)
	assert.Contains(t, out, `"name":"Ann"`)
}

func TestResetLink(t *testing.T) {
	assert.Equal(t, "http://localhost:3000/reset-password?token=a%2Bb", ResetLink("http://localhost:3000/", "a+b"))
	assert.Equal(t, "/reset-password?token=abc", ResetLink("", "abc"))
}
