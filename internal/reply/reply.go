// Package reply interprets short-code whatsapp replies from brokers and
// applies the corresponding state transition.
package reply

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"platanotify/internal/metrics"
	"platanotify/internal/models"
)

// ErrUnknownSender means the replying number maps to no registered
// broker. Distinct from an unrecognized reply, which is acknowledged.
var ErrUnknownSender = errors.New("no broker registered for sender number")

// BrokerResolver maps a whatsapp number to a broker. Nil contact with nil
// error means no match.
type BrokerResolver interface {
	BrokerByPhone(ctx context.Context, phone string) (*models.BrokerContact, error)
}

// ListingDeactivator bulk-deactivates a broker's active listings.
type ListingDeactivator interface {
	DeactivateBrokerListings(ctx context.Context, brokerEmail, reason string, now time.Time) (int, error)
}

// MessageSender delivers one message with retries. Satisfied by
// *dispatch.Sender.
type MessageSender interface {
	Send(ctx context.Context, msg models.OutboundMessage) models.DispatchOutcome
}

// Handler is the inbound reply state machine. Recognized inputs after
// trimming: "1" still available, "2" sold, "3" wants an update link.
// Anything else is acknowledged as a no-op.
type Handler struct {
	brokers  BrokerResolver
	listings ListingDeactivator
	sender   MessageSender
	siteURL  string
	logger   *zap.Logger
	now      func() time.Time
}

func NewHandler(brokers BrokerResolver, listings ListingDeactivator, sender MessageSender, siteURL string, logger *zap.Logger) *Handler {
	return &Handler{
		brokers:  brokers,
		listings: listings,
		sender:   sender,
		siteURL:  siteURL,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleReply processes one inbound webhook body from a sender number.
func (h *Handler) HandleReply(ctx context.Context, from, body string) error {
	phone := strings.TrimPrefix(from, "whatsapp:")

	broker, err := h.brokers.BrokerByPhone(ctx, phone)
	if err != nil {
		return fmt.Errorf("resolve sender %s: %w", phone, err)
	}
	if broker == nil {
		metrics.RepliesHandled.WithLabelValues("unknown_sender").Inc()
		return fmt.Errorf("sender %s: %w", phone, ErrUnknownSender)
	}

	switch strings.TrimSpace(body) {
	case "1":
		// Explicit "still available" acknowledgment; nothing to change.
		metrics.RepliesHandled.WithLabelValues("still_available").Inc()
		h.logger.Info("broker confirmed availability", zap.String("broker", broker.BrokerEmail))
		return nil

	case "2":
		return h.markSold(ctx, broker)

	case "3":
		return h.sendUpdateLink(ctx, broker)

	default:
		metrics.RepliesHandled.WithLabelValues("unrecognized").Inc()
		h.logger.Info("unrecognized reply ignored",
			zap.String("broker", broker.BrokerEmail),
			zap.String("body", strings.TrimSpace(body)),
		)
		return nil
	}
}

func (h *Handler) markSold(ctx context.Context, broker *models.BrokerContact) error {
	n, err := h.listings.DeactivateBrokerListings(ctx, broker.BrokerEmail, "sold", h.now())
	if err != nil {
		return fmt.Errorf("deactivate listings for %s: %w", broker.BrokerEmail, err)
	}

	metrics.RepliesHandled.WithLabelValues("sold").Inc()
	h.logger.Info("broker listings deactivated",
		zap.String("broker", broker.BrokerEmail),
		zap.Int("deactivated", n),
	)
	return nil
}

func (h *Handler) sendUpdateLink(ctx context.Context, broker *models.BrokerContact) error {
	out := h.sender.Send(ctx, models.OutboundMessage{
		ID:      uuid.NewString(),
		Channel: models.ChannelWhatsApp,
		To:      broker.WhatsAppNumber,
		Body: fmt.Sprintf(
			"Para atualizar os seus anúncios, acesse %s/corretor/anuncios",
			h.siteURL,
		),
		Metadata: map[string]string{"trigger": "update_link"},
	})
	if !out.Success {
		return fmt.Errorf("update link after %d attempts: %w", out.AttemptsUsed, out.LastError)
	}

	metrics.RepliesHandled.WithLabelValues("update_link").Inc()
	return nil
}
