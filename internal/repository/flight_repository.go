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

// seatsPerRow drives the deterministic label scheme: rows of six seats
// lettered A..F, so seat 0 is "1A" and seat 7 is "2B".
const seatsPerRow = 6

// FlightRepository persists flights and their seat inventory.
type FlightRepository struct {
	pool *pgxpool.Pool
}

// NewFlightRepository creates a flight repository backed by the pool.
func NewFlightRepository(pool *pgxpool.Pool) *FlightRepository {
	return &FlightRepository{pool: pool}
}

// SeatLabel returns the label for the n-th seat (0-based) of a flight.
func SeatLabel(n int) string {
	return fmt.Sprintf("%d%c", n/seatsPerRow+1, 'A'+rune(n%seatsPerRow))
}

// CreateFlight persists the flight and allocates totalSeats seat records
// in one transaction. A flight with the same aircraft and departure
// already present yields ErrDuplicate.
func (r *FlightRepository) CreateFlight(ctx context.Context, f *model.Flight, totalSeats int) (*model.Flight, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, classifyStoreErr(fmt.Errorf("create flight: begin tx: %w", err))
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO flights (id, source, destination, departure_utc, arrival_utc,
		                     aircraft_id, price, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, f.ID, f.Source, f.Destination, f.DepartureTime, f.ArrivalTime,
		f.AircraftID, f.Price, f.Status,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return nil, ErrDuplicate
		}
		return nil, classifyStoreErr(fmt.Errorf("create flight: insert: %w", err))
	}

	// Allocate the seat inventory with COPY; one row per seat.
	rows := make([][]interface{}, totalSeats)
	for i := 0; i < totalSeats; i++ {
		rows[i] = []interface{}{uuid.New(), f.ID, SeatLabel(i), model.SeatAvailable}
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"seats"},
		[]string{"id", "flight_id", "label", "status"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return nil, classifyStoreErr(fmt.Errorf("create flight: allocate seats: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classifyStoreErr(fmt.Errorf("create flight: commit: %w", err))
	}
	return f, nil
}

// GetFlight fetches a flight by id.
func (r *FlightRepository) GetFlight(ctx context.Context, id uuid.UUID) (*model.Flight, error) {
	f := &model.Flight{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, source, destination, departure_utc, arrival_utc,
		       aircraft_id, price, status, created_at, updated_at
		FROM flights
		WHERE id = $1
	`, id).Scan(
		&f.ID, &f.Source, &f.Destination, &f.DepartureTime, &f.ArrivalTime,
		&f.AircraftID, &f.Price, &f.Status, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, classifyStoreErr(fmt.Errorf("get flight %s: %w", id, err))
	}
	return f, nil
}

// ListFlightsByDate returns ACTIVE flights departing on the given UTC
// date, ordered by departure. Range predicates keep the departure index
// usable.
func (r *FlightRepository) ListFlightsByDate(ctx context.Context, date time.Time) ([]*model.Flight, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	rows, err := r.pool.Query(ctx, `
		SELECT id, source, destination, departure_utc, arrival_utc,
		       aircraft_id, price, status, created_at, updated_at
		FROM flights
		WHERE status = 'ACTIVE'
		  AND departure_utc >= $1
		  AND departure_utc < $2
		ORDER BY departure_utc ASC
	`, dayStart, dayEnd)
	if err != nil {
		return nil, classifyStoreErr(fmt.Errorf("list flights by date: %w", err))
	}
	defer rows.Close()

	var flights []*model.Flight
	for rows.Next() {
		f := &model.Flight{}
		if err := rows.Scan(
			&f.ID, &f.Source, &f.Destination, &f.DepartureTime, &f.ArrivalTime,
			&f.AircraftID, &f.Price, &f.Status, &f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan flight: %w", err)
		}
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

// CountAvailableSeats returns the count of AVAILABLE seats on a flight.
// Holds in the reservation layer are deliberately not subtracted here:
// availability is computed from durable state only.
func (r *FlightRepository) CountAvailableSeats(ctx context.Context, flightID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)::int
		FROM seats
		WHERE flight_id = $1 AND status = 'AVAILABLE'
	`, flightID).Scan(&count)
	if err != nil {
		return 0, classifyStoreErr(fmt.Errorf("count available seats %s: %w", flightID, err))
	}
	return count, nil
}

// ListAvailableSeats returns the AVAILABLE seats of a flight in cabin
// order (row 1 before row 2, A before B).
func (r *FlightRepository) ListAvailableSeats(ctx context.Context, flightID uuid.UUID) ([]model.Seat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, flight_id, label, status, booking_id, created_at, updated_at
		FROM seats
		WHERE flight_id = $1 AND status = 'AVAILABLE'
		ORDER BY length(label), label
	`, flightID)
	if err != nil {
		return nil, classifyStoreErr(fmt.Errorf("list available seats %s: %w", flightID, err))
	}
	defer rows.Close()

	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.FlightID, &s.Label, &s.Status, &s.BookingID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// ReserveSeatsInStore transitions the given AVAILABLE seats to BOOKED and
// attaches the booking id. Called only inside the booking transaction.
// If any seat is not AVAILABLE the whole statement matches fewer rows
// than requested and ErrSeatConflict is returned; the caller must roll
// the transaction back.
func (r *FlightRepository) ReserveSeatsInStore(ctx context.Context, tx pgx.Tx, flightID uuid.UUID, seatIDs []uuid.UUID, bookingID uuid.UUID) error {
	tag, err := tx.Exec(ctx, `
		UPDATE seats
		SET status = 'BOOKED', booking_id = $1, updated_at = now()
		WHERE flight_id = $2
		  AND id = ANY($3)
		  AND status = 'AVAILABLE'
	`, bookingID, flightID, seatIDs)
	if err != nil {
		return classifyStoreErr(fmt.Errorf("reserve seats %s: %w", flightID, err))
	}
	if tag.RowsAffected() != int64(len(seatIDs)) {
		return ErrSeatConflict
	}
	return nil
}

// ReleaseSeatsInStore returns the given seats to AVAILABLE and clears the
// booking back-reference. Tolerates seats that are already AVAILABLE.
func (r *FlightRepository) ReleaseSeatsInStore(ctx context.Context, flightID uuid.UUID, seatIDs []uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE seats
		SET status = 'AVAILABLE', booking_id = NULL, updated_at = now()
		WHERE flight_id = $1 AND id = ANY($2)
	`, flightID, seatIDs)
	if err != nil {
		return classifyStoreErr(fmt.Errorf("release seats %s: %w", flightID, err))
	}
	return nil
}
