package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"student_portal_backend/internal/config"
)

func TestNew_FallsBackToLogMailer(t *testing.T) {
	m, err := New(&config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LogMailer{}, m)
}

func TestNew_SMTPWhenHostSet(t *testing.T) {
	m, err := New(&config.Config{SMTPHost: "smtp.example.com", SMTPPort: 587, SMTPFrom: "no-reply@example.com", SMTPTLS: true}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &SMTPMailer{}, m)
}

func TestLogMailer_Send(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewLogMailer(zap.New(core))

	require.NoError(t, m.Send(context.Background(), Message{To: "a@example.com", Subject: "Verify", Body: "link"}))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "a@example.com", logs.All()[0].ContextMap()["to"])

	assert.Error(t, m.Send(context.Background(), Message{Subject: "no recipient"}))
}
