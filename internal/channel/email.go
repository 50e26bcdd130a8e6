package channel

import (
	"context"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"
	"gopkg.in/gomail.v2"

	"platanotify/internal/models"
)

// EmailProvider is the transport behind the email channel. Mailgun is the
// production provider; SMTP exists for local and staging environments.
type EmailProvider interface {
	SendEmail(ctx context.Context, from, to, subject, htmlBody string) error
}

// EmailChannel adapts an EmailProvider to the Channel interface.
type EmailChannel struct {
	Provider EmailProvider
	From     string
}

func (c *EmailChannel) Name() models.Channel { return models.ChannelEmail }

func (c *EmailChannel) Send(ctx context.Context, msg models.OutboundMessage) error {
	return c.Provider.SendEmail(ctx, c.From, msg.To, msg.Subject, msg.Body)
}

// MailgunProvider sends through the Mailgun HTTP API.
type MailgunProvider struct {
	mg *mailgun.MailgunImpl
}

func NewMailgunProvider(domain, apiKey string) *MailgunProvider {
	return &MailgunProvider{mg: mailgun.NewMailgun(domain, apiKey)}
}

func (p *MailgunProvider) SendEmail(ctx context.Context, from, to, subject, htmlBody string) error {
	m := p.mg.NewMessage(from, subject, "", to)
	m.SetHtml(htmlBody)

	if _, _, err := p.mg.Send(ctx, m); err != nil {
		return fmt.Errorf("mailgun send error: %w", err)
	}
	return nil
}

// SMTPProvider sends through a plain SMTP relay.
type SMTPProvider struct {
	Host     string
	Port     int
	Username string
	Password string
}

func (p *SMTPProvider) SendEmail(_ context.Context, from, to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(p.Host, p.Port, p.Username, p.Password)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send error: %w", err)
	}
	return nil
}
