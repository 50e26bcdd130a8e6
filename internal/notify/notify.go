// Package notify builds and dispatches the triggered notification flows:
// new-listing preference matches and the typed marketplace triggers
// (price reductions, visit status changes and the like).
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"platanotify/internal/match"
	"platanotify/internal/models"
)

// Trigger types accepted on the notifications endpoint.
const (
	TriggerPriceReduced     = "price_reduced"
	TriggerStatusUpdate     = "status_update"
	TriggerVisitApproved    = "visit_approved"
	TriggerVisitRejected    = "visit_rejected"
	TriggerVisitAccompanied = "visit_accompanied"
	TriggerVisitRescheduled = "visit_rescheduled"
	TriggerVisitCancelled   = "visit_cancelled"
)

// ErrUnknownTrigger rejects trigger types the service does not know.
var ErrUnknownTrigger = errors.New("unknown notification trigger type")

// Trigger is one typed notification request.
type Trigger struct {
	Type      string `json:"type"`
	ListingID int64  `json:"listing_id,omitempty"`
	UserEmail string `json:"user_email,omitempty"`
	UserPhone string `json:"user_phone,omitempty"`
	UserName  string `json:"user_name,omitempty"`
	Note      string `json:"note,omitempty"`
}

// Store is the read surface the notification flows need.
type Store interface {
	ListingByID(ctx context.Context, id int64) (models.Listing, error)
	SearchPreferences(ctx context.Context) ([]models.SearchPreference, error)
	ViewerEmailsForListing(ctx context.Context, listingID int64) ([]string, error)
}

// Dispatcher is the fan-out capability. Satisfied by *dispatch.Dispatcher.
type Dispatcher interface {
	DispatchAll(ctx context.Context, msgs []models.OutboundMessage) []models.DispatchOutcome
}

type Service struct {
	store      Store
	dispatcher Dispatcher
	siteURL    string
	logger     *zap.Logger
}

func NewService(store Store, dispatcher Dispatcher, siteURL string, logger *zap.Logger) *Service {
	return &Service{store: store, dispatcher: dispatcher, siteURL: siteURL, logger: logger}
}

// NotifyListingMatch evaluates a listing against every stored search
// preference and fans notifications out to the subscribers that qualify.
func (s *Service) NotifyListingMatch(ctx context.Context, listingID int64) ([]models.DispatchOutcome, error) {
	listing, err := s.store.ListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}

	prefs, err := s.store.SearchPreferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("load search preferences: %w", err)
	}

	matched := match.Match(listing, prefs)
	s.logger.Info("listing matched against preferences",
		zap.Int64("listing_id", listingID),
		zap.Int("preferences", len(prefs)),
		zap.Int("matched", len(matched)),
	)
	if len(matched) == 0 {
		return nil, nil
	}

	msgs := match.Notifications(listing, matched, s.siteURL)
	return s.dispatcher.DispatchAll(ctx, msgs), nil
}

// Fire dispatches a typed trigger. Listing-scoped triggers fan out to
// everyone who viewed the listing; visit triggers target the named user.
func (s *Service) Fire(ctx context.Context, t Trigger) ([]models.DispatchOutcome, error) {
	msgs, err := s.messagesFor(ctx, t)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return s.dispatcher.DispatchAll(ctx, msgs), nil
}

func (s *Service) messagesFor(ctx context.Context, t Trigger) ([]models.OutboundMessage, error) {
	switch t.Type {
	case TriggerPriceReduced, TriggerStatusUpdate:
		return s.viewerMessages(ctx, t)
	case TriggerVisitApproved, TriggerVisitRejected, TriggerVisitAccompanied,
		TriggerVisitRescheduled, TriggerVisitCancelled:
		return s.visitMessages(t)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTrigger, t.Type)
	}
}

// viewerMessages notifies every user who viewed the listing.
func (s *Service) viewerMessages(ctx context.Context, t Trigger) ([]models.OutboundMessage, error) {
	listing, err := s.store.ListingByID(ctx, t.ListingID)
	if err != nil {
		return nil, err
	}
	viewers, err := s.store.ViewerEmailsForListing(ctx, t.ListingID)
	if err != nil {
		return nil, fmt.Errorf("load viewers: %w", err)
	}

	link := fmt.Sprintf("%s/imoveis/%d", s.siteURL, listing.ID)
	subject, body := viewerContent(t, listing, link)

	msgs := make([]models.OutboundMessage, 0, len(viewers))
	for _, email := range viewers {
		msgs = append(msgs, models.OutboundMessage{
			ID:      uuid.NewString(),
			Channel: models.ChannelEmail,
			To:      email,
			Subject: subject,
			Body:    body,
			Metadata: map[string]string{
				"listing_id": fmt.Sprintf("%d", listing.ID),
				"trigger":    t.Type,
			},
		})
	}
	return msgs, nil
}

func viewerContent(t Trigger, l models.Listing, link string) (subject, body string) {
	switch t.Type {
	case TriggerPriceReduced:
		return "O imóvel que você visitou baixou de preço!",
			fmt.Sprintf(
				`<h2>Boa notícia!</h2>
<p>O imóvel em %s que você viu está agora por R$ %.2f.</p>
<p><a href="%s">Confira o novo preço</a></p>`,
				l.Address, l.Price, link,
			)
	default: // status_update
		note := t.Note
		if note == "" {
			note = "O anúncio foi atualizado."
		}
		return "Atualização sobre um imóvel que você viu",
			fmt.Sprintf(
				`<h2>Novidades!</h2>
<p>%s</p>
<p>Imóvel: %s</p>
<p><a href="%s">Ver o anúncio</a></p>`,
				note, l.Address, link,
			)
	}
}

// visitMessages targets the single user named in the trigger: email
// always, whatsapp when a phone is present.
func (s *Service) visitMessages(t Trigger) ([]models.OutboundMessage, error) {
	if t.UserEmail == "" {
		return nil, errors.New("visit trigger requires user_email")
	}

	subject, line := visitContent(t)
	meta := map[string]string{"trigger": t.Type}

	msgs := []models.OutboundMessage{{
		ID:       uuid.NewString(),
		Channel:  models.ChannelEmail,
		To:       t.UserEmail,
		Subject:  subject,
		Body:     fmt.Sprintf("<h2>Olá %s!</h2><p>%s</p>", t.UserName, line),
		Metadata: meta,
	}}

	if t.UserPhone != "" {
		msgs = append(msgs, models.OutboundMessage{
			ID:       uuid.NewString(),
			Channel:  models.ChannelWhatsApp,
			To:       t.UserPhone,
			Body:     fmt.Sprintf("Olá %s! %s", t.UserName, line),
			Metadata: meta,
		})
	}
	return msgs, nil
}

func visitContent(t Trigger) (subject, line string) {
	switch t.Type {
	case TriggerVisitApproved:
		return "Visita confirmada", "A sua visita foi aprovada pelo corretor."
	case TriggerVisitRejected:
		return "Visita não aprovada", "Infelizmente a sua visita não pôde ser aprovada. Tente outro horário."
	case TriggerVisitAccompanied:
		return "Visita acompanhada", "A sua visita será acompanhada pelo corretor responsável."
	case TriggerVisitRescheduled:
		return "Visita remarcada", "A sua visita foi remarcada. Confira o novo horário no site."
	default: // visit_cancelled
		return "Visita cancelada", "A sua visita foi cancelada."
	}
}
