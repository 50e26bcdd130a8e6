package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"platanotify/internal/models"
)

// ScheduleStore is the slice of the store the followup sweep reads.
type ScheduleStore interface {
	DueOpenSchedules(ctx context.Context, now time.Time) ([]models.Schedule, error)
}

// Dispatcher is the fan-out capability the sweeps submit batches to.
type Dispatcher interface {
	DispatchAll(ctx context.Context, msgs []models.OutboundMessage) []models.DispatchOutcome
}

// FollowupSweep re-engages visitors whose visit happened but whose
// negotiation is still open: an email carrying close-negotiation action
// links, plus a whatsapp pointer to the feedback page when a phone number
// is on file.
type FollowupSweep struct {
	store      ScheduleStore
	dispatcher Dispatcher
	siteURL    string
	apiURL     string
	logger     *zap.Logger
	now        func() time.Time
}

func NewFollowupSweep(store ScheduleStore, dispatcher Dispatcher, siteURL, apiURL string, logger *zap.Logger) *FollowupSweep {
	return &FollowupSweep{
		store:      store,
		dispatcher: dispatcher,
		siteURL:    siteURL,
		apiURL:     apiURL,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *FollowupSweep) Name() string { return "visit_followup" }

// RunOnce performs one sweep iteration. A store failure aborts the
// iteration; the scheduler rearms regardless.
func (s *FollowupSweep) RunOnce(ctx context.Context) error {
	schedules, err := s.store.DueOpenSchedules(ctx, s.now())
	if err != nil {
		return fmt.Errorf("visit followup query: %w", err)
	}
	if len(schedules) == 0 {
		return nil
	}

	var msgs []models.OutboundMessage
	for _, sched := range schedules {
		msgs = append(msgs, s.messagesFor(sched)...)
	}

	s.logger.Info("visit followup sweep dispatching",
		zap.Int("schedules", len(schedules)),
		zap.Int("messages", len(msgs)),
	)

	s.dispatcher.DispatchAll(ctx, msgs)
	return nil
}

// messagesFor builds the per-schedule pair: the email always, the
// whatsapp only when the visitor left a phone number.
func (s *FollowupSweep) messagesFor(sched models.Schedule) []models.OutboundMessage {
	msgs := []models.OutboundMessage{{
		ID:      uuid.NewString(),
		Channel: models.ChannelEmail,
		To:      sched.UserEmail,
		Subject: "Como foi a sua visita?",
		Body:    s.followupEmailBody(sched),
		Metadata: map[string]string{
			"schedule_id": fmt.Sprintf("%d", sched.ID),
			"trigger":     "visit_followup",
		},
	}}

	if sched.UserPhone != "" {
		msgs = append(msgs, models.OutboundMessage{
			ID:      uuid.NewString(),
			Channel: models.ChannelWhatsApp,
			To:      sched.UserPhone,
			Body: fmt.Sprintf(
				"Olá %s! Você visitou um imóvel conosco e queremos saber como foi. Conte para nós em %s/feedback/%d",
				sched.UserName, s.siteURL, sched.ID,
			),
			Metadata: map[string]string{
				"schedule_id": fmt.Sprintf("%d", sched.ID),
				"trigger":     "visit_followup",
			},
		})
	}

	return msgs
}

func (s *FollowupSweep) followupEmailBody(sched models.Schedule) string {
	link := func(status models.NegotiationStatus) string {
		return fmt.Sprintf("%s/close-negotiation/%d?status=%s", s.apiURL, sched.ID, status)
	}
	return fmt.Sprintf(
		`<h2>Olá %s!</h2>
<p>Você visitou um imóvel no dia %s e gostaríamos de saber como andam as coisas.</p>
<p>Clique na opção que melhor descreve a sua situação:</p>
<ul>
  <li><a href="%s">Fechei negócio</a></li>
  <li><a href="%s">Ainda estou negociando</a></li>
  <li><a href="%s">O imóvel não estava disponível</a></li>
  <li><a href="%s">Não gostei do imóvel</a></li>
</ul>`,
		sched.UserName,
		sched.VisitDate.Format("02/01/2006"),
		link(models.NegotiationClosed),
		link(models.NegotiationNegotiating),
		link(models.NegotiationUnavailable),
		link(models.NegotiationDisliked),
	)
}
