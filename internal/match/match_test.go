package match_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"platanotify/internal/match"
	"platanotify/internal/models"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func sampleListing() models.Listing {
	return models.Listing{
		ID:           42,
		PropertyType: models.TypeApartment,
		BedroomCount: 2,
		Furnished:    true,
		PaymentType:  models.PaymentRent,
		Price:        250000,
		Address:      "Rua das Flores, 120",
	}
}

func TestMatches_TypeEquivalenceScenario(t *testing.T) {
	// A penthouse subscriber with a wildcard payment type and no
	// furnished preference qualifies for an apartment listing one
	// bedroom apart.
	listing := sampleListing()
	pref := models.SearchPreference{
		UserEmail:    "maria@example.com",
		PropertyType: models.TypePenthouse,
		BedroomCount: intPtr(3),
		Furnished:    nil,
		PaymentType:  models.PaymentAny,
		MinPrice:     200000,
		MaxPrice:     300000,
	}

	assert.True(t, match.Matches(listing, pref))
}

func TestMatches_RejectsEachClause(t *testing.T) {
	listing := sampleListing()
	base := models.SearchPreference{
		UserEmail:    "joao@example.com",
		PropertyType: models.TypeApartment,
		BedroomCount: intPtr(2),
		Furnished:    boolPtr(true),
		PaymentType:  models.PaymentRent,
		MinPrice:     200000,
		MaxPrice:     300000,
	}
	require.True(t, match.Matches(listing, base))

	cases := map[string]func(p *models.SearchPreference){
		"type mismatch without equivalence": func(p *models.SearchPreference) { p.PropertyType = models.TypeLand },
		"bedrooms two apart":                func(p *models.SearchPreference) { p.BedroomCount = intPtr(4) },
		"furnished mismatch":                func(p *models.SearchPreference) { p.Furnished = boolPtr(false) },
		"payment mismatch":                  func(p *models.SearchPreference) { p.PaymentType = models.PaymentSale },
		"price below range":                 func(p *models.SearchPreference) { p.MinPrice = 260000 },
		"price above range":                 func(p *models.SearchPreference) { p.MaxPrice = 240000 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			pref := base
			mutate(&pref)
			assert.False(t, match.Matches(listing, pref))
		})
	}
}

func TestMatches_HouseDuplexEquivalence(t *testing.T) {
	listing := sampleListing()
	listing.PropertyType = models.TypeDuplex

	pref := models.SearchPreference{
		PropertyType: models.TypeHouse,
		PaymentType:  models.PaymentAny,
		MinPrice:     0,
		MaxPrice:     1000000,
	}
	assert.True(t, match.Matches(listing, pref))
}

func TestMatches_PriceRangeInclusive(t *testing.T) {
	listing := sampleListing()
	pref := models.SearchPreference{
		PropertyType: models.TypeApartment,
		PaymentType:  models.PaymentAny,
		MinPrice:     250000,
		MaxPrice:     250000,
	}
	assert.True(t, match.Matches(listing, pref))
}

func TestMatch_OrderIndependentAndIdempotent(t *testing.T) {
	listing := sampleListing()
	prefs := []models.SearchPreference{
		{UserEmail: "a@example.com", PropertyType: models.TypeApartment, PaymentType: models.PaymentAny, MinPrice: 0, MaxPrice: 300000},
		{UserEmail: "b@example.com", PropertyType: models.TypeLand, PaymentType: models.PaymentAny, MinPrice: 0, MaxPrice: 300000},
		{UserEmail: "c@example.com", PropertyType: models.TypePenthouse, PaymentType: models.PaymentRent, MinPrice: 100000, MaxPrice: 260000},
	}

	first := match.Match(listing, prefs)
	second := match.Match(listing, prefs)
	require.Equal(t, first, second, "matching twice on unchanged input must agree")

	reversed := []models.SearchPreference{prefs[2], prefs[1], prefs[0]}
	got := match.Match(listing, reversed)

	emails := func(ps []models.SearchPreference) map[string]bool {
		m := make(map[string]bool)
		for _, p := range ps {
			m[p.UserEmail] = true
		}
		return m
	}
	assert.Equal(t, emails(first), emails(got))
	assert.Equal(t, map[string]bool{"a@example.com": true, "c@example.com": true}, emails(first))
}

func TestNotifications_EmailAlwaysWhatsAppWhenPhonePresent(t *testing.T) {
	listing := sampleListing()
	matched := []models.SearchPreference{
		{UserEmail: "a@example.com", UserPhone: "+5511999999999"},
		{UserEmail: "b@example.com"},
	}

	msgs := match.Notifications(listing, matched, "https://plataimobiliaria.com")

	require.Len(t, msgs, 3)

	byChannel := map[models.Channel]int{}
	for _, m := range msgs {
		byChannel[m.Channel]++
		assert.NotEmpty(t, m.ID)
		assert.Contains(t, m.Metadata, "listing_id")
	}
	assert.Equal(t, 2, byChannel[models.ChannelEmail])
	assert.Equal(t, 1, byChannel[models.ChannelWhatsApp])

	assert.Contains(t, msgs[0].Body, "https://plataimobiliaria.com/imoveis/42")
}
