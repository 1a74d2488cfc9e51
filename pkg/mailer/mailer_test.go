package mailer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"unholygrail/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Deliver(ctx context.Context, msg Message) error {
	return m.Called(ctx, msg).Error(0)
}

func recoverEmail() models.Email {
	return models.Email{
		To:       "a@b.com",
		From:     "admin@unholygrail.org",
		Subject:  "Your UNHOLYGRAIL password reset request",
		Template: models.TemplateRecover,
		Vars: map[string]string{
			"username":        "alice",
			"token":           "abc%2Bdef",
			"client_endpoint": "https://unholygrail.org",
		},
	}
}

func TestMailer_Render(t *testing.T) {
	m, err := New(LogSender{})
	require.NoError(t, err)

	msg, err := m.Render(recoverEmail())
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", msg.To)
	assert.Contains(t, msg.HTML, "Password reset for alice")
	assert.Contains(t, msg.HTML, "https://unholygrail.org/reset?token=abc%2Bdef")

	welcome := recoverEmail()
	welcome.Template = models.TemplateWelcome
	msg, err = m.Render(welcome)
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "Welcome to UNHOLYGRAIL, alice!")
}

func TestMailer_RenderEscapesVars(t *testing.T) {
	m, err := New(LogSender{})
	require.NoError(t, err)

	email := recoverEmail()
	email.Vars["username"] = "<script>alert(1)</script>"
	msg, err := m.Render(email)
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
}

func TestMailer_RenderErrors(t *testing.T) {
	m, err := New(LogSender{})
	require.NoError(t, err)

	email := recoverEmail()
	email.Template = "missing"
	_, err = m.Render(email)
	assert.Error(t, err)

	email = recoverEmail()
	delete(email.Vars, "token")
	_, err = m.Render(email)
	assert.Error(t, err)
}

func TestMailer_Handle(t *testing.T) {
	sender := new(mockSender)
	m, err := New(sender)
	require.NoError(t, err)

	sender.On("Deliver", mock.Anything, mock.MatchedBy(func(msg Message) bool {
		return msg.To == "a@b.com" && strings.Contains(msg.HTML, "alice")
	})).Return(nil).Once()
	assert.NoError(t, m.Handle(context.Background(), recoverEmail()))

	sender.On("Deliver", mock.Anything, mock.Anything).Return(errors.New("relay refused")).Once()
	err = m.Handle(context.Background(), recoverEmail())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "relay refused")

	sender.AssertExpectations(t)
}

func TestSMTPSender_Deliver(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Addr: "smtp.example.org:587", Username: "mailer", Password: "pw"})
	require.NoError(t, err)

	var sent []*mail.Msg
	s.send = func(_ context.Context, msgs ...*mail.Msg) error {
		sent = append(sent, msgs...)
		return nil
	}

	err = s.Deliver(context.Background(), Message{
		To:      "a@b.com",
		From:    "admin@unholygrail.org",
		Subject: "Réinitialisation du mot de passe",
		HTML:    "<p>x</p>",
	})
	require.NoError(t, err)
	require.Len(t, sent, 1)

	rcpts, err := sent[0].GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"a@b.com"}, rcpts)

	var buf bytes.Buffer
	_, err = sent[0].WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	headers := strings.ToLower(raw)
	assert.Contains(t, raw, "admin@unholygrail.org")
	assert.Contains(t, raw, "=?UTF-8?")
	assert.NotContains(t, raw, "Réinitialisation")
	assert.Contains(t, headers, "date:")
	assert.Contains(t, headers, "message-id:")
	assert.Contains(t, headers, "text/html")
	assert.Contains(t, raw, "<p>x</p>")
}

func TestSMTPSender_DeliverErrors(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Addr: "localhost:25"})
	require.NoError(t, err)

	calls := 0
	s.send = func(context.Context, ...*mail.Msg) error {
		calls++
		return errors.New("connection refused")
	}

	err = s.Deliver(context.Background(), Message{To: "not an address", From: "admin@unholygrail.org"})
	assert.Error(t, err)
	assert.Equal(t, 0, calls)

	err = s.Deliver(context.Background(), Message{To: "a@b.com", From: "admin@unholygrail.org", HTML: "<p>x</p>"})
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, 1, calls)
}

func TestNewSMTPSender_InvalidAddr(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{Addr: "no-port"})
	assert.Error(t, err)
}

func TestNewSMTPSender_InvalidPort(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{Addr: "localhost:smtp"})
	assert.Error(t, err)
}
