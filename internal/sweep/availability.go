package sweep

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"platanotify/internal/models"
)

const (
	// staleAfterDefault is how long a listing may go unverified.
	staleAfterDefault = 30
	// staleAfterHighTurnover applies to rentals in fast-moving areas.
	staleAfterHighTurnover = 2
	// instructionalCooldown throttles the "register your whatsapp" email.
	instructionalCooldown = 7 * 24 * time.Hour
)

// highTurnoverKeywords mark addresses in fast-moving rental markets.
// Matching is case-insensitive substring.
var highTurnoverKeywords = []string{"centro", "universit", "praia", "orla"}

// ListingStore is the slice of the store the availability sweep uses.
type ListingStore interface {
	ActiveListings(ctx context.Context) ([]models.Listing, error)
	StampAvailabilityCheck(ctx context.Context, id int64, now time.Time) error
}

// BrokerStore resolves broker contact details. A nil contact with nil
// error means no row is on file.
type BrokerStore interface {
	BrokerByEmail(ctx context.Context, email string) (*models.BrokerContact, error)
}

// MessageSender delivers one message with retries. Satisfied by
// *dispatch.Sender.
type MessageSender interface {
	Send(ctx context.Context, msg models.OutboundMessage) models.DispatchOutcome
}

// AvailabilitySweep walks the active listings and asks brokers to confirm
// the stale ones are still available. Brokers without a whatsapp number
// get a throttled instructional email instead.
type AvailabilitySweep struct {
	listings ListingStore
	brokers  BrokerStore
	sender   MessageSender
	throttle ThrottleCache
	limiter  *rate.Limiter
	siteURL  string
	logger   *zap.Logger
	now      func() time.Time
}

func NewAvailabilitySweep(
	listings ListingStore,
	brokers BrokerStore,
	sender MessageSender,
	throttle ThrottleCache,
	sendRate float64,
	siteURL string,
	logger *zap.Logger,
) *AvailabilitySweep {
	if sendRate <= 0 {
		sendRate = 1
	}
	return &AvailabilitySweep{
		listings: listings,
		brokers:  brokers,
		sender:   sender,
		throttle: throttle,
		limiter:  rate.NewLimiter(rate.Limit(sendRate), 1),
		siteURL:  siteURL,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *AvailabilitySweep) Name() string { return "availability_verification" }

// RunOnce performs one sweep iteration. Per-listing failures are logged
// and the sweep moves on; only the initial query aborts the iteration.
func (s *AvailabilitySweep) RunOnce(ctx context.Context) error {
	listings, err := s.listings.ActiveListings(ctx)
	if err != nil {
		return fmt.Errorf("availability query: %w", err)
	}

	now := s.now()
	checked := 0
	for _, l := range listings {
		if !s.needsCheck(l, now) {
			continue
		}
		if err := s.verifyListing(ctx, l, now); err != nil {
			s.logger.Error("availability check failed",
				zap.Int64("listing_id", l.ID),
				zap.String("broker", l.CreatedBy),
				zap.Error(err),
			)
			continue
		}
		checked++
	}

	s.logger.Info("availability sweep finished",
		zap.Int("active_listings", len(listings)),
		zap.Int("checked", checked),
	)
	return nil
}

// needsCheck applies the staleness threshold: 2 days for rentals in
// high-turnover areas, 30 days otherwise.
func (s *AvailabilitySweep) needsCheck(l models.Listing, now time.Time) bool {
	lastCheck := l.CreatedAt
	if l.LastAvailabilityCheckedAt != nil {
		lastCheck = *l.LastAvailabilityCheckedAt
	}
	days := int(now.Sub(lastCheck).Hours() / 24)

	threshold := staleAfterDefault
	if isHighTurnover(l) {
		threshold = staleAfterHighTurnover
	}
	return days >= threshold
}

func isHighTurnover(l models.Listing) bool {
	if l.PaymentType != models.PaymentRent {
		return false
	}
	addr := strings.ToLower(l.Address)
	for _, kw := range highTurnoverKeywords {
		if strings.Contains(addr, kw) {
			return true
		}
	}
	return false
}

func (s *AvailabilitySweep) verifyListing(ctx context.Context, l models.Listing, now time.Time) error {
	broker, err := s.brokers.BrokerByEmail(ctx, l.CreatedBy)
	if err != nil {
		return fmt.Errorf("broker lookup: %w", err)
	}

	if broker == nil || broker.WhatsAppNumber == "" {
		return s.nudgeRegistration(ctx, l.CreatedBy, now)
	}

	out := s.sender.Send(ctx, models.OutboundMessage{
		ID:      uuid.NewString(),
		Channel: models.ChannelWhatsApp,
		To:      broker.WhatsAppNumber,
		Body:    verificationPrompt(l),
		Metadata: map[string]string{
			"listing_id": fmt.Sprintf("%d", l.ID),
			"trigger":    "availability_check",
		},
	})
	if !out.Success {
		return fmt.Errorf("verification prompt after %d attempts: %w", out.AttemptsUsed, out.LastError)
	}

	if err := s.listings.StampAvailabilityCheck(ctx, l.ID, now); err != nil {
		return err
	}

	// Pace outbound prompts to stay inside the provider's rate limits.
	return s.limiter.Wait(ctx)
}

// nudgeRegistration emails a broker who has no whatsapp number on file,
// at most once per cooldown window.
func (s *AvailabilitySweep) nudgeRegistration(ctx context.Context, brokerEmail string, now time.Time) error {
	if !s.throttle.ShouldNotify(brokerEmail, instructionalCooldown) {
		return nil
	}

	out := s.sender.Send(ctx, models.OutboundMessage{
		ID:      uuid.NewString(),
		Channel: models.ChannelEmail,
		To:      brokerEmail,
		Subject: "Cadastre o seu WhatsApp na Plata",
		Body: fmt.Sprintf(
			`<p>Olá! Para confirmar a disponibilidade dos seus imóveis de forma rápida,
cadastre o seu número de WhatsApp no painel do corretor: <a href="%s/corretor/perfil">%s/corretor/perfil</a></p>`,
			s.siteURL, s.siteURL,
		),
		Metadata: map[string]string{"trigger": "whatsapp_registration_nudge"},
	})
	if !out.Success {
		return fmt.Errorf("registration nudge after %d attempts: %w", out.AttemptsUsed, out.LastError)
	}

	s.throttle.Record(brokerEmail, now)
	return nil
}

// verificationPrompt is the numbered-reply message the inbound state
// machine understands.
func verificationPrompt(l models.Listing) string {
	var b strings.Builder
	if isHighTurnover(l) {
		b.WriteString("⚠️ URGENTE: ")
	}
	fmt.Fprintf(&b, "Olá! O seu imóvel em %s ainda está disponível?\n\n", l.Address)
	b.WriteString("Responda com o número da opção:\n")
	b.WriteString("1 - Sim, continua disponível\n")
	b.WriteString("2 - Não, já foi vendido ou alugado\n")
	b.WriteString("3 - Quero atualizar o anúncio")
	return b.String()
}
