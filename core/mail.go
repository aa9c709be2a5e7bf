package core

import "net/mail"

type (
	// EmailMessage is an outbound email-like notification.
	// Bodies are programmatic (no template layer): BodyStr carries
	// text/plain content and HTMLBody an optional text/html alternative.
	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string
		HTMLBody string
	}

	// EmailService is any service that can send emails.
	EmailService interface {
		// SendMessages sends messages concurrently; delivery is
		// fire-and-forget and must never fail the calling operation.
		SendMessages(messages ...*EmailMessage)
	}
)

func (m *EmailMessage) HasRecipients() bool {
	return len(m.To) > 0 || len(m.Cc) > 0 || len(m.Bcc) > 0
}

func (m *EmailMessage) HasContent() bool {
	return (m.BodyStr != "") || (m.HTMLBody != "")
}
