package core

import (
	"net/mail"
)

type (
	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string

		// simple text/plain content; HTMLContent is optional
		TextContent string
		HTMLContent string
	}

	// EmailService is any service that can send emails.
	// Sends are synchronous: a failed delivery surfaces as an error to the
	// caller, it is never swallowed.
	EmailService interface {
		SendMessages(messages ...*EmailMessage) error
	}
)

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }
