// Package mailer renders queued emails and hands them to an outgoing transport.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"unholygrail/internal/models"

	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFS embed.FS

// Message is a rendered email ready for a transport.
type Message struct {
	To      string
	From    string
	Subject string
	HTML    string
}

// Sender delivers rendered messages.
type Sender interface {
	Deliver(ctx context.Context, msg Message) error
}

// Mailer renders templated emails and delivers them through a Sender.
type Mailer struct {
	templates *template.Template
	sender    Sender
}

var funcs = template.FuncMap{
	// resetLink joins the client endpoint with an already query-escaped token.
	"resetLink": func(endpoint, token string) template.URL {
		return template.URL(strings.TrimRight(endpoint, "/") + "/reset?token=" + token)
	},
}

// New parses the embedded templates and returns a Mailer using sender.
func New(sender Sender) (*Mailer, error) {
	tmpl, err := template.New("mail").Option("missingkey=error").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse mail templates: %w", err)
	}
	return &Mailer{templates: tmpl, sender: sender}, nil
}

// Render executes the template named by msg.Template.
func (m *Mailer) Render(msg models.Email) (Message, error) {
	name := msg.Template
	if !strings.HasSuffix(name, ".html") {
		name += ".html"
	}
	tmpl := m.templates.Lookup(name)
	if tmpl == nil {
		return Message{}, fmt.Errorf("unknown mail template %q", msg.Template)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, msg.Vars); err != nil {
		return Message{}, fmt.Errorf("failed to render %s: %w", msg.Template, err)
	}

	return Message{
		To:      msg.To,
		From:    msg.From,
		Subject: msg.Subject,
		HTML:    buf.String(),
	}, nil
}

// Handle renders msg and delivers it. It has the shape of a mail queue consumer.
func (m *Mailer) Handle(ctx context.Context, msg models.Email) error {
	rendered, err := m.Render(msg)
	if err != nil {
		return err
	}
	if err := m.sender.Deliver(ctx, rendered); err != nil {
		return fmt.Errorf("failed to deliver %s to %s: %w", msg.Template, msg.To, err)
	}
	logrus.WithFields(logrus.Fields{"template": msg.Template, "to": msg.To}).Info("email delivered")
	return nil
}
