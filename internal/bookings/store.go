package bookings

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clearlane/tradein-platform/internal/booking"
)

type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store keeps an audit copy of confirmed appointments in Postgres. The
// appraisal backend stays the system of record; rows here back support
// lookups and branch reporting.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

// SaveConfirmed upserts on confirmation number so a replayed submission
// response never produces a duplicate row.
func (s *Store) SaveConfirmed(ctx context.Context, rec booking.ConfirmedRecord) error {
	if strings.TrimSpace(rec.ConfirmationNumber) == "" {
		return fmt.Errorf("bookings: confirmation number is required")
	}
	query := `
		INSERT INTO confirmed_bookings (
			id, confirmation_number, customer_journey_id, visit_id,
			branch_id, time_slot_id, appointment_date, appointment_time,
			email, phone
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (confirmation_number) DO UPDATE
		SET branch_id = EXCLUDED.branch_id,
			time_slot_id = EXCLUDED.time_slot_id,
			appointment_date = EXCLUDED.appointment_date,
			appointment_time = EXCLUDED.appointment_time,
			updated_at = now()
	`
	_, err := s.pool.Exec(ctx, query,
		uuid.New(), rec.ConfirmationNumber, rec.CustomerJourneyID, rec.VisitID,
		rec.BranchID, rec.TimeSlotID, rec.Date, rec.Time,
		rec.Email, rec.Phone)
	if err != nil {
		return fmt.Errorf("bookings: save confirmed booking: %w", err)
	}
	return nil
}

// FindByJourney returns the latest confirmed booking for a customer
// journey, or nil when the journey never completed a booking.
func (s *Store) FindByJourney(ctx context.Context, journeyID string) (*booking.ConfirmedRecord, error) {
	query := `
		SELECT confirmation_number, customer_journey_id, visit_id,
			branch_id, time_slot_id, appointment_date, appointment_time,
			email, phone
		FROM confirmed_bookings
		WHERE customer_journey_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var rec booking.ConfirmedRecord
	err := s.pool.QueryRow(ctx, query, journeyID).Scan(
		&rec.ConfirmationNumber, &rec.CustomerJourneyID, &rec.VisitID,
		&rec.BranchID, &rec.TimeSlotID, &rec.Date, &rec.Time,
		&rec.Email, &rec.Phone)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("bookings: find by journey: %w", err)
	}
	return &rec, nil
}

// CountForBranchDay reports how many confirmed appointments a branch
// holds on a given date.
func (s *Store) CountForBranchDay(ctx context.Context, branchID, date string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM confirmed_bookings
		WHERE branch_id = $1 AND appointment_date = $2
	`
	var count int
	if err := s.pool.QueryRow(ctx, query, branchID, date).Scan(&count); err != nil {
		return 0, fmt.Errorf("bookings: count branch day: %w", err)
	}
	return count, nil
}

// ListRecent returns the newest confirmed bookings, capped at limit.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]booking.ConfirmedRecord, error) {
	query := `
		SELECT confirmation_number, customer_journey_id, visit_id,
			branch_id, time_slot_id, appointment_date, appointment_time,
			email, phone
		FROM confirmed_bookings
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("bookings: list recent: %w", err)
	}
	defer rows.Close()
	var out []booking.ConfirmedRecord
	for rows.Next() {
		var rec booking.ConfirmedRecord
		if err := rows.Scan(
			&rec.ConfirmationNumber, &rec.CustomerJourneyID, &rec.VisitID,
			&rec.BranchID, &rec.TimeSlotID, &rec.Date, &rec.Time,
			&rec.Email, &rec.Phone); err != nil {
			return nil, fmt.Errorf("bookings: scan confirmed booking: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
