package notify_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"platanotify/internal/db"
	"platanotify/internal/models"
	"platanotify/internal/notify"
)

type stubStore struct {
	listing models.Listing
	prefs   []models.SearchPreference
	viewers []string
}

func (s *stubStore) ListingByID(_ context.Context, id int64) (models.Listing, error) {
	if id != s.listing.ID {
		return models.Listing{}, db.ErrListingNotFound
	}
	return s.listing, nil
}

func (s *stubStore) SearchPreferences(_ context.Context) ([]models.SearchPreference, error) {
	return s.prefs, nil
}

func (s *stubStore) ViewerEmailsForListing(_ context.Context, _ int64) ([]string, error) {
	return s.viewers, nil
}

type stubDispatcher struct {
	batches [][]models.OutboundMessage
}

func (d *stubDispatcher) DispatchAll(_ context.Context, msgs []models.OutboundMessage) []models.DispatchOutcome {
	d.batches = append(d.batches, msgs)
	outcomes := make([]models.DispatchOutcome, len(msgs))
	for i, m := range msgs {
		outcomes[i] = models.DispatchOutcome{Message: m, Success: true, AttemptsUsed: 1}
	}
	return outcomes
}

func testListing() models.Listing {
	return models.Listing{
		ID:           42,
		PropertyType: models.TypeApartment,
		BedroomCount: 2,
		PaymentType:  models.PaymentRent,
		Price:        1800,
		Address:      "Rua das Flores, 120",
		Active:       true,
	}
}

func TestNotifyListingMatch_FansOutToQualifyingSubscribers(t *testing.T) {
	store := &stubStore{
		listing: testListing(),
		prefs: []models.SearchPreference{
			{UserEmail: "match@example.com", PropertyType: models.TypeApartment, PaymentType: models.PaymentAny, MinPrice: 0, MaxPrice: 2000},
			{UserEmail: "nomatch@example.com", PropertyType: models.TypeLand, PaymentType: models.PaymentAny, MinPrice: 0, MaxPrice: 2000},
		},
	}
	d := &stubDispatcher{}
	svc := notify.NewService(store, d, "https://plataimobiliaria.com", zap.NewNop())

	outcomes, err := svc.NotifyListingMatch(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "match@example.com", outcomes[0].Message.To)
}

func TestNotifyListingMatch_UnknownListing(t *testing.T) {
	svc := notify.NewService(&stubStore{listing: testListing()}, &stubDispatcher{}, "https://plataimobiliaria.com", zap.NewNop())

	_, err := svc.NotifyListingMatch(context.Background(), 999)
	assert.ErrorIs(t, err, db.ErrListingNotFound)
}

func TestNotifyListingMatch_NoMatchesNoDispatch(t *testing.T) {
	store := &stubStore{listing: testListing()}
	d := &stubDispatcher{}
	svc := notify.NewService(store, d, "https://plataimobiliaria.com", zap.NewNop())

	outcomes, err := svc.NotifyListingMatch(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.Empty(t, d.batches)
}

func TestFire_PriceReducedNotifiesViewers(t *testing.T) {
	store := &stubStore{
		listing: testListing(),
		viewers: []string{"a@example.com", "b@example.com"},
	}
	d := &stubDispatcher{}
	svc := notify.NewService(store, d, "https://plataimobiliaria.com", zap.NewNop())

	outcomes, err := svc.Fire(context.Background(), notify.Trigger{
		Type: notify.TriggerPriceReduced, ListingID: 42,
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	for _, out := range outcomes {
		assert.Equal(t, models.ChannelEmail, out.Message.Channel)
		assert.Contains(t, out.Message.Subject, "baixou de preço")
	}
}

func TestFire_VisitTriggerTargetsNamedUser(t *testing.T) {
	d := &stubDispatcher{}
	svc := notify.NewService(&stubStore{listing: testListing()}, d, "https://plataimobiliaria.com", zap.NewNop())

	outcomes, err := svc.Fire(context.Background(), notify.Trigger{
		Type:      notify.TriggerVisitApproved,
		UserEmail: "ana@example.com",
		UserPhone: "+5511988887777",
		UserName:  "Ana",
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, models.ChannelEmail, outcomes[0].Message.Channel)
	assert.Equal(t, models.ChannelWhatsApp, outcomes[1].Message.Channel)
	assert.Equal(t, "+5511988887777", outcomes[1].Message.To)
}

func TestFire_VisitTriggerWithoutPhoneSendsEmailOnly(t *testing.T) {
	d := &stubDispatcher{}
	svc := notify.NewService(&stubStore{listing: testListing()}, d, "https://plataimobiliaria.com", zap.NewNop())

	outcomes, err := svc.Fire(context.Background(), notify.Trigger{
		Type:      notify.TriggerVisitCancelled,
		UserEmail: "ana@example.com",
		UserName:  "Ana",
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, models.ChannelEmail, outcomes[0].Message.Channel)
}

func TestFire_VisitTriggerRequiresEmail(t *testing.T) {
	svc := notify.NewService(&stubStore{listing: testListing()}, &stubDispatcher{}, "https://plataimobiliaria.com", zap.NewNop())

	_, err := svc.Fire(context.Background(), notify.Trigger{Type: notify.TriggerVisitApproved})
	assert.Error(t, err)
}

func TestFire_UnknownTriggerRejected(t *testing.T) {
	svc := notify.NewService(&stubStore{listing: testListing()}, &stubDispatcher{}, "https://plataimobiliaria.com", zap.NewNop())

	_, err := svc.Fire(context.Background(), notify.Trigger{Type: "price_doubled"})
	assert.ErrorIs(t, err, notify.ErrUnknownTrigger)
}
