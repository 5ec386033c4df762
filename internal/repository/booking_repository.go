package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ankit/flywise/internal/model"
)

// DefaultBookingTimeout is the maximum duration for the complete booking
// transaction, including any lock wait inside the store.
const DefaultBookingTimeout = 5 * time.Second

// BookingRepository runs the booking transaction and booking reads.
type BookingRepository struct {
	pool    *pgxpool.Pool
	flights *FlightRepository
}

// NewBookingRepository creates a booking repository. The flight
// repository provides the tx-scoped seat transition.
func NewBookingRepository(pool *pgxpool.Pool, flights *FlightRepository) *BookingRepository {
	return &BookingRepository{pool: pool, flights: flights}
}

// LegReservation names the held seats for one leg of a booking, in leg
// order.
type LegReservation struct {
	FlightID uuid.UUID
	SeatIDs  []uuid.UUID
}

// CreateBooking persists the booking and books the held seats on every
// leg inside ONE transaction.
//
// All-or-nothing: any seat that is no longer AVAILABLE aborts the whole
// transaction with ErrSeatConflict, leaving no booking row and no seat
// changes. Concurrent attempts for the same seats serialise on the
// conditional UPDATE; exactly one transaction's rows-affected count
// matches and commits.
func (r *BookingRepository) CreateBooking(ctx context.Context, b *model.Booking, legs []LegReservation) (*model.Booking, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultBookingTimeout)
	defer cancel()

	tx, err := r.pool.BeginTx(txCtx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, classifyStoreErr(fmt.Errorf("booking: begin tx: %w", err))
	}
	// Defer rollback — no-op if tx was already committed.
	defer tx.Rollback(ctx)

	// ── Step 1: Insert the booking row ──────────────────
	err = tx.QueryRow(txCtx, `
		INSERT INTO bookings (id, user_id, journey_id, passenger_count,
		                      status, payment_ref, booking_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, b.ID, b.UserID, b.JourneyID, b.PassengerCount, b.Status,
		b.PaymentRef, b.BookingTime,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, classifyStoreErr(fmt.Errorf("booking: insert: %w", err))
	}

	// ── Step 2: Book the held seats on every leg ────────
	for _, leg := range legs {
		if err := r.flights.ReserveSeatsInStore(txCtx, tx, leg.FlightID, leg.SeatIDs, b.ID); err != nil {
			if errors.Is(err, ErrSeatConflict) {
				return nil, ErrSeatConflict
			}
			return nil, fmt.Errorf("booking: leg %s: %w", leg.FlightID, err)
		}
	}

	// ── Step 3: Commit ──────────────────────────────────
	if err := tx.Commit(txCtx); err != nil {
		return nil, classifyStoreErr(fmt.Errorf("booking: commit: %w", err))
	}
	return b, nil
}

// GetBookingByID fetches a booking by id.
func (r *BookingRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	b := &model.Booking{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, journey_id, passenger_count, status,
		       payment_ref, booking_time, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`, id).Scan(
		&b.ID, &b.UserID, &b.JourneyID, &b.PassengerCount, &b.Status,
		&b.PaymentRef, &b.BookingTime, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, classifyStoreErr(fmt.Errorf("get booking %s: %w", id, err))
	}
	return b, nil
}

// SeatsByBooking returns the booked seat labels of a booking grouped by
// flight id. The service layer orders the groups by the journey's legs.
func (r *BookingRepository) SeatsByBooking(ctx context.Context, bookingID uuid.UUID) (map[uuid.UUID][]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT flight_id, label
		FROM seats
		WHERE booking_id = $1 AND status = 'BOOKED'
		ORDER BY length(label), label
	`, bookingID)
	if err != nil {
		return nil, classifyStoreErr(fmt.Errorf("seats by booking %s: %w", bookingID, err))
	}
	defer rows.Close()

	labels := make(map[uuid.UUID][]string)
	for rows.Next() {
		var flightID uuid.UUID
		var label string
		if err := rows.Scan(&flightID, &label); err != nil {
			return nil, fmt.Errorf("scan booked seat: %w", err)
		}
		labels[flightID] = append(labels[flightID], label)
	}
	return labels, rows.Err()
}
