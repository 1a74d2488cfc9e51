package models

// Email templates known to the mailer.
const (
	TemplateWelcome = "welcome-email"
	TemplateRecover = "recover-email"
)

// Email is a templated message queued for delivery.
type Email struct {
	To       string            `json:"to"`
	From     string            `json:"from"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Vars     map[string]string `json:"vars"`
}
