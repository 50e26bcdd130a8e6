package models

import "time"

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// OutboundMessage is a single message bound for one recipient on one
// channel. It is immutable after construction; the dispatch call that
// created it owns it until a terminal DispatchOutcome is produced.
type OutboundMessage struct {
	ID       string            `json:"id"`
	Channel  Channel           `json:"channel"`
	To       string            `json:"to"`
	Subject  string            `json:"subject,omitempty"` // unused for whatsapp
	Body     string            `json:"body"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// DispatchOutcome is the terminal result of delivering one OutboundMessage.
type DispatchOutcome struct {
	Message      OutboundMessage
	Success      bool
	AttemptsUsed int
	LastError    error
}

// Property types used across the marketplace.
const (
	TypeApartment = "Apartamento"
	TypePenthouse = "Cobertura"
	TypeHouse     = "Casa"
	TypeDuplex    = "Duplex"
	TypeStudio    = "Kitnet"
	TypeLand      = "Terreno"
)

// Payment types. PaymentAny is the wildcard used by search preferences.
const (
	PaymentRent = "Aluguel"
	PaymentSale = "Venda"
	PaymentAny  = "Qualquer"
)

type Listing struct {
	ID                        int64      `json:"id"`
	PropertyType              string     `json:"property_type"`
	BedroomCount              int        `json:"bedroom_count"`
	Furnished                 bool       `json:"furnished"`
	PaymentType               string     `json:"payment_type"`
	Price                     float64    `json:"price"`
	Address                   string     `json:"address"`
	CreatedBy                 string     `json:"created_by"` // broker email
	Active                    bool       `json:"active"`
	ApprovedAt                *time.Time `json:"approved_at,omitempty"`
	DeactivationReason        string     `json:"deactivation_reason,omitempty"`
	DeactivatedAt             *time.Time `json:"deactivated_at,omitempty"`
	LastAvailabilityCheckedAt *time.Time `json:"last_availability_checked_at,omitempty"`
	CreatedAt                 time.Time  `json:"created_at"`
}

// SearchPreference is a standing subscription to new-listing alerts.
// Nil pointer fields mean "don't care".
type SearchPreference struct {
	UserEmail    string  `json:"user_email"`
	UserPhone    string  `json:"user_phone,omitempty"`
	PropertyType string  `json:"property_type"`
	BedroomCount *int    `json:"bedroom_count,omitempty"`
	Furnished    *bool   `json:"furnished,omitempty"`
	PaymentType  string  `json:"payment_type"`
	MinPrice     float64 `json:"min_price"`
	MaxPrice     float64 `json:"max_price"`
}

type NegotiationStatus string

const (
	NegotiationOpen        NegotiationStatus = "open"
	NegotiationClosed      NegotiationStatus = "closed"
	NegotiationNegotiating NegotiationStatus = "negotiating"
	NegotiationUnavailable NegotiationStatus = "unavailable"
	NegotiationDisliked    NegotiationStatus = "disliked"
)

// ValidCloseStatus reports whether s is a status a visitor may close a
// negotiation with. "open" is not a close target.
func ValidCloseStatus(s NegotiationStatus) bool {
	switch s {
	case NegotiationClosed, NegotiationNegotiating, NegotiationUnavailable, NegotiationDisliked:
		return true
	}
	return false
}

// Schedule is a visit appointment between a user and a listing.
type Schedule struct {
	ID                int64             `json:"id"`
	ListingID         int64             `json:"listing_id"`
	UserEmail         string            `json:"user_email"`
	UserPhone         string            `json:"user_phone,omitempty"`
	UserName          string            `json:"user_name"`
	VisitDate         time.Time         `json:"visit_date"`
	NegotiationStatus NegotiationStatus `json:"negotiation_status"`
}

type BrokerContact struct {
	BrokerEmail    string `json:"broker_email"`
	WhatsAppNumber string `json:"whatsapp_number,omitempty"`
}

// PropertyView records that a user looked at a listing. Viewer emails feed
// the price-reduced and status-update fan-outs.
type PropertyView struct {
	ListingID int64     `json:"listing_id"`
	UserEmail string    `json:"user_email"`
	ViewedAt  time.Time `json:"viewed_at"`
}
