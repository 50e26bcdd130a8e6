package channel

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"platanotify/internal/models"
)

// WhatsAppChannel delivers messages through Twilio's WhatsApp API.
type WhatsAppChannel struct {
	client *twilio.RestClient
	from   string
}

func NewWhatsAppChannel(accountSID, authToken, from string) *WhatsAppChannel {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &WhatsAppChannel{client: client, from: whatsAppAddr(from)}
}

func (c *WhatsAppChannel) Name() models.Channel { return models.ChannelWhatsApp }

func (c *WhatsAppChannel) Send(_ context.Context, msg models.OutboundMessage) error {
	params := &twilioapi.CreateMessageParams{}
	params.SetFrom(c.from)
	params.SetTo(whatsAppAddr(msg.To))
	params.SetBody(msg.Body)

	resp, err := c.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send error: %w", err)
	}
	if resp.Status != nil && (*resp.Status == "failed" || *resp.Status == "undelivered") {
		return fmt.Errorf("twilio message %s: status %s", deref(resp.Sid), *resp.Status)
	}
	return nil
}

// whatsAppAddr prefixes a phone number with the whatsapp: scheme Twilio
// expects. Already-prefixed numbers pass through unchanged.
func whatsAppAddr(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
