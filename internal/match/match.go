// Package match evaluates new listings against stored search preferences
// and produces the notification batch for the subscribers that qualify.
package match

import (
	"fmt"

	"github.com/google/uuid"

	"platanotify/internal/models"
)

// typeEquivalences are hardcoded business pairings: a subscriber looking
// for one side of a pair is also interested in the other. This is not
// fuzzy matching.
var typeEquivalences = map[string]string{
	models.TypeApartment: models.TypePenthouse,
	models.TypePenthouse: models.TypeApartment,
	models.TypeHouse:     models.TypeDuplex,
	models.TypeDuplex:    models.TypeHouse,
}

// Match returns the subset of prefs that qualify for a notification about
// listing. It is order-independent and has no side effects.
func Match(listing models.Listing, prefs []models.SearchPreference) []models.SearchPreference {
	matched := make([]models.SearchPreference, 0, len(prefs))
	for _, p := range prefs {
		if Matches(listing, p) {
			matched = append(matched, p)
		}
	}
	return matched
}

// Matches reports whether a single preference qualifies. Every clause must
// hold.
func Matches(l models.Listing, p models.SearchPreference) bool {
	return typeMatches(l, p) &&
		bedroomMatches(l, p) &&
		furnishedMatches(l, p) &&
		paymentMatches(l, p) &&
		priceMatches(l, p)
}

func typeMatches(l models.Listing, p models.SearchPreference) bool {
	if l.PropertyType == p.PropertyType {
		return true
	}
	return typeEquivalences[p.PropertyType] == l.PropertyType
}

// bedroomMatches accepts a difference of at most one bedroom when the
// preference states a count; an unset count is "don't care".
func bedroomMatches(l models.Listing, p models.SearchPreference) bool {
	if p.BedroomCount == nil {
		return true
	}
	diff := *p.BedroomCount - l.BedroomCount
	if diff < 0 {
		diff = -diff
	}
	return diff <= 1
}

func furnishedMatches(l models.Listing, p models.SearchPreference) bool {
	return p.Furnished == nil || *p.Furnished == l.Furnished
}

func paymentMatches(l models.Listing, p models.SearchPreference) bool {
	return p.PaymentType == models.PaymentAny || p.PaymentType == l.PaymentType
}

func priceMatches(l models.Listing, p models.SearchPreference) bool {
	return l.Price >= p.MinPrice && l.Price <= p.MaxPrice
}

// Notifications builds the outbound batch for the matched preferences:
// one email per subscriber always, plus a whatsapp message when the
// preference carries a phone number. Both go into the same fan-out so a
// failure on one channel never suppresses the other.
func Notifications(listing models.Listing, matched []models.SearchPreference, siteBaseURL string) []models.OutboundMessage {
	link := fmt.Sprintf("%s/imoveis/%d", siteBaseURL, listing.ID)

	msgs := make([]models.OutboundMessage, 0, 2*len(matched))
	for _, p := range matched {
		msgs = append(msgs, models.OutboundMessage{
			ID:      uuid.NewString(),
			Channel: models.ChannelEmail,
			To:      p.UserEmail,
			Subject: "Novo imóvel compatível com a sua busca",
			Body:    listingEmailBody(listing, link),
			Metadata: map[string]string{
				"listing_id": fmt.Sprintf("%d", listing.ID),
				"trigger":    "listing_match",
			},
		})

		if p.UserPhone != "" {
			msgs = append(msgs, models.OutboundMessage{
				ID:      uuid.NewString(),
				Channel: models.ChannelWhatsApp,
				To:      p.UserPhone,
				Body: fmt.Sprintf(
					"Olá! Acabou de entrar um imóvel que combina com a sua busca: %s, %d quarto(s), R$ %.2f (%s). Veja em %s",
					listing.PropertyType, listing.BedroomCount, listing.Price, listing.PaymentType, link,
				),
				Metadata: map[string]string{
					"listing_id": fmt.Sprintf("%d", listing.ID),
					"trigger":    "listing_match",
				},
			})
		}
	}
	return msgs
}

func listingEmailBody(l models.Listing, link string) string {
	furnished := "não mobiliado"
	if l.Furnished {
		furnished = "mobiliado"
	}
	return fmt.Sprintf(
		`<h2>Encontramos um imóvel para você!</h2>
<p>%s de %d quarto(s), %s, para %s.</p>
<p>Endereço: %s</p>
<p>Preço: R$ %.2f</p>
<p><a href="%s">Ver o anúncio completo</a></p>`,
		l.PropertyType, l.BedroomCount, furnished, l.PaymentType, l.Address, l.Price, link,
	)
}
