// Package db is the pgx-backed store for listings, visit schedules,
// search preferences, broker contacts and property views. Updates that
// guard a state transition (listing approval) are expressed as conditional
// UPDATEs so two racing callers cannot both win.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"platanotify/internal/models"
)

var (
	// ErrListingNotFound means the listing id matched no row.
	ErrListingNotFound = errors.New("listing not found")
	// ErrAlreadyActive means an approval targeted a listing that is
	// already active. Approval is a one-shot false→true transition.
	ErrAlreadyActive = errors.New("listing is already active")
	// ErrScheduleNotFound means the schedule id matched no row.
	ErrScheduleNotFound = errors.New("schedule not found")
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(conn string) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), conn)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

// ----------------------------
// Listings
// ----------------------------

const listingColumns = `id, property_type, bedroom_count, furnished, payment_type,
	 price, address, created_by, active, approved_at, deactivation_reason,
	 deactivated_at, last_availability_checked_at, created_at`

func scanListing(row pgx.Row) (models.Listing, error) {
	var l models.Listing
	var reason *string
	err := row.Scan(
		&l.ID, &l.PropertyType, &l.BedroomCount, &l.Furnished, &l.PaymentType,
		&l.Price, &l.Address, &l.CreatedBy, &l.Active, &l.ApprovedAt, &reason,
		&l.DeactivatedAt, &l.LastAvailabilityCheckedAt, &l.CreatedAt,
	)
	if err != nil {
		return models.Listing{}, err
	}
	if reason != nil {
		l.DeactivationReason = *reason
	}
	return l, nil
}

func (s *Store) ListingByID(ctx context.Context, id int64) (models.Listing, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id=$1`, id)

	l, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Listing{}, ErrListingNotFound
	}
	if err != nil {
		return models.Listing{}, fmt.Errorf("query listing %d: %w", id, err)
	}
	return l, nil
}

func (s *Store) ActiveListings(ctx context.Context) ([]models.Listing, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE active=true ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query active listings: %w", err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// ApproveListing flips a listing active. The WHERE clause carries the
// expected current state, so approving an already-active listing changes
// nothing and reports ErrAlreadyActive.
func (s *Store) ApproveListing(ctx context.Context, id int64, now time.Time) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE listings
		 SET active=true, approved_at=$1
		 WHERE id=$2 AND active=false`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("approve listing %d: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var active bool
	err = s.Pool.QueryRow(ctx, `SELECT active FROM listings WHERE id=$1`, id).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrListingNotFound
	}
	if err != nil {
		return fmt.Errorf("approve listing %d: %w", id, err)
	}
	return ErrAlreadyActive
}

// StampAvailabilityCheck records that a verification prompt went out for
// the listing.
func (s *Store) StampAvailabilityCheck(ctx context.Context, id int64, now time.Time) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE listings SET last_availability_checked_at=$1 WHERE id=$2`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("stamp availability check for listing %d: %w", id, err)
	}
	return nil
}

// DeactivateBrokerListings deactivates every active listing owned by the
// broker and returns how many were affected.
func (s *Store) DeactivateBrokerListings(ctx context.Context, brokerEmail, reason string, now time.Time) (int, error) {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE listings
		 SET active=false, deactivation_reason=$1, deactivated_at=$2
		 WHERE created_by=$3 AND active=true`,
		reason, now, brokerEmail,
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate listings for %s: %w", brokerEmail, err)
	}
	return int(tag.RowsAffected()), nil
}

// ----------------------------
// Schedules
// ----------------------------

// DueOpenSchedules returns visits whose date has passed and whose
// negotiation is still open.
func (s *Store) DueOpenSchedules(ctx context.Context, now time.Time) ([]models.Schedule, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, listing_id, user_email, user_phone, user_name, visit_date, negotiation_status
		 FROM schedules
		 WHERE visit_date < $1 AND negotiation_status=$2
		 ORDER BY visit_date`,
		now, models.NegotiationOpen,
	)
	if err != nil {
		return nil, fmt.Errorf("query due schedules: %w", err)
	}
	defer rows.Close()

	var schedules []models.Schedule
	for rows.Next() {
		var sc models.Schedule
		var phone *string
		if err := rows.Scan(&sc.ID, &sc.ListingID, &sc.UserEmail, &phone,
			&sc.UserName, &sc.VisitDate, &sc.NegotiationStatus); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		if phone != nil {
			sc.UserPhone = *phone
		}
		schedules = append(schedules, sc)
	}
	return schedules, rows.Err()
}

// CloseNegotiation sets the negotiation status for a visit. This is the
// only path that mutates negotiation_status.
func (s *Store) CloseNegotiation(ctx context.Context, id int64, status models.NegotiationStatus) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE schedules SET negotiation_status=$1 WHERE id=$2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("close negotiation %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// ----------------------------
// Search preferences
// ----------------------------

func (s *Store) SearchPreferences(ctx context.Context) ([]models.SearchPreference, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT user_email, user_phone, property_type, bedroom_count, furnished,
		        payment_type, min_price, max_price
		 FROM search_preferences`,
	)
	if err != nil {
		return nil, fmt.Errorf("query search preferences: %w", err)
	}
	defer rows.Close()

	var prefs []models.SearchPreference
	for rows.Next() {
		var p models.SearchPreference
		var phone *string
		if err := rows.Scan(&p.UserEmail, &phone, &p.PropertyType, &p.BedroomCount,
			&p.Furnished, &p.PaymentType, &p.MinPrice, &p.MaxPrice); err != nil {
			return nil, fmt.Errorf("scan search preference: %w", err)
		}
		if phone != nil {
			p.UserPhone = *phone
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// ----------------------------
// Broker contacts
// ----------------------------

// BrokerByEmail returns nil without error when the broker has no contact
// row on file.
func (s *Store) BrokerByEmail(ctx context.Context, email string) (*models.BrokerContact, error) {
	return s.brokerBy(ctx, `SELECT broker_email, whatsapp_number FROM broker_contacts WHERE broker_email=$1`, email)
}

// BrokerByPhone resolves the broker owning a whatsapp number. Nil without
// error when no broker is registered for it.
func (s *Store) BrokerByPhone(ctx context.Context, phone string) (*models.BrokerContact, error) {
	return s.brokerBy(ctx, `SELECT broker_email, whatsapp_number FROM broker_contacts WHERE whatsapp_number=$1`, phone)
}

func (s *Store) brokerBy(ctx context.Context, query, key string) (*models.BrokerContact, error) {
	var b models.BrokerContact
	var number *string
	err := s.Pool.QueryRow(ctx, query, key).Scan(&b.BrokerEmail, &number)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query broker contact: %w", err)
	}
	if number != nil {
		b.WhatsAppNumber = *number
	}
	return &b, nil
}

// ----------------------------
// Property views
// ----------------------------

// ViewerEmailsForListing returns the distinct users who viewed a listing,
// for price-drop and status-change fan-outs.
func (s *Store) ViewerEmailsForListing(ctx context.Context, listingID int64) ([]string, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT DISTINCT user_email FROM property_views WHERE listing_id=$1`,
		listingID,
	)
	if err != nil {
		return nil, fmt.Errorf("query property views for listing %d: %w", listingID, err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("scan property view: %w", err)
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}
