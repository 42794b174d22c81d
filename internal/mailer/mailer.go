package mailer

import (
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"
)

// Mailer sends registration lifecycle notifications over SMTP.
type Mailer struct {
	host string
	port string
	from string
	pass string
	log  *zerolog.Logger
}

func New(host, port, from, pass string, log *zerolog.Logger) *Mailer {
	return &Mailer{host: host, port: port, from: from, pass: pass, log: log}
}

// SendRegistrationEmail notifies the registrant about a lifecycle change.
// windowMinutes is only used for the pending notification.
func (m *Mailer) SendRegistrationEmail(eventTitle, status, recipient string, windowMinutes int) error {
	var subject, body string
	switch status {
	case "pending":
		subject = "Registration received: " + eventTitle
		body = fmt.Sprintf(
			"Hello!\n\nWe received your registration for %q. Please complete the payment within %d minutes, otherwise the registration will be cancelled and the slot released.",
			eventTitle, windowMinutes,
		)
	case "confirmed":
		subject = "Registration confirmed: " + eventTitle
		body = fmt.Sprintf("Hello!\n\nYour registration for %q is confirmed. See you there!", eventTitle)
	case "cancelled":
		subject = "Registration cancelled: " + eventTitle
		body = fmt.Sprintf("Hello!\n\nYour registration for %q has been cancelled.", eventTitle)
	case "completed":
		subject = "Thank you for attending: " + eventTitle
		body = fmt.Sprintf("Hello!\n\nThank you for attending %q. We hope to see you again.", eventTitle)
	default:
		return nil
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.from, recipient, subject, body,
	)

	addr := m.host + ":" + m.port
	auth := smtp.PlainAuth("", m.from, m.pass, m.host)
	if err := smtp.SendMail(addr, auth, m.from, []string{recipient}, []byte(msg)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().
		Str("recipient", recipient).
		Str("status", status).
		Msg("notification email sent")
	return nil
}
