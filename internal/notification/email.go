package notification

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Attachment is a file sent along with an email.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Email is one outgoing message.
type Email struct {
	ToName      string
	ToAddress   string
	Subject     string
	PlainText   string
	HTML        string
	Attachments []Attachment
}

// Mailer delivers emails.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// SendGridMailer sends email through the SendGrid v3 API.
type SendGridMailer struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
}

// NewSendGridMailer creates a mailer. It fails when the key or sender
// address is missing.
func NewSendGridMailer(apiKey, fromEmail, fromName string) (*SendGridMailer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("sendgrid api key is not configured")
	}
	if fromEmail == "" {
		return nil, fmt.Errorf("sendgrid sender address is not configured")
	}
	return &SendGridMailer{
		client:    sendgrid.NewSendClient(apiKey),
		fromName:  fromName,
		fromEmail: fromEmail,
	}, nil
}

// Send delivers e and treats any non-2xx response as an error.
func (m *SendGridMailer) Send(ctx context.Context, e Email) error {
	message := m.buildMessage(e)

	response, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", e.ToAddress, err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}

	log.Printf("Email sent to %s (subject: %s), status %d", e.ToAddress, e.Subject, response.StatusCode)
	return nil
}

func (m *SendGridMailer) buildMessage(e Email) *mail.SGMailV3 {
	from := mail.NewEmail(m.fromName, m.fromEmail)
	to := mail.NewEmail(e.ToName, e.ToAddress)
	message := mail.NewSingleEmail(from, e.Subject, to, e.PlainText, e.HTML)

	for _, a := range e.Attachments {
		att := mail.NewAttachment()
		att.SetContent(base64.StdEncoding.EncodeToString(a.Content))
		att.SetType(a.ContentType)
		att.SetFilename(a.Filename)
		att.SetDisposition("attachment")
		message.AddAttachment(att)
	}
	return message
}
