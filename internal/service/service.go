// Package service contains the business logic: flight administration,
// journey generation, cache-first search and the booking engine.
//
// Services return sentinel errors; handlers translate them to HTTP
// status codes with errors.Is and never inspect error strings.
package service

import (
	"errors"

	"github.com/ankit/flywise/internal/repository"
)

// ─── Service errors ─────────────────────────────────────────

var (
	// ErrInvalidInput is returned when request data fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrFlightNotFound is returned when the referenced flight does not
	// exist.
	ErrFlightNotFound = errors.New("flight not found")

	// ErrDuplicateFlight is returned when a flight with the same aircraft
	// and departure already exists.
	ErrDuplicateFlight = errors.New("flight already exists")

	// ErrEventPublish is returned when the flight committed but the
	// flight-created event could not be published. The flight exists;
	// journey generation for it is pending.
	ErrEventPublish = errors.New("event publish failed")

	// ErrJourneyNotFound is returned when the referenced journey does not
	// exist or is not bookable.
	ErrJourneyNotFound = errors.New("journey not found")

	// ErrBookingNotFound is returned when the referenced booking does not
	// exist.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrInsufficientSeats is returned when a leg has fewer unheld
	// available seats than requested passengers.
	ErrInsufficientSeats = errors.New("insufficient seats")

	// ErrSeatConflict is returned when a concurrent booking won the seats
	// first. The caller may retry; no partial booking exists.
	ErrSeatConflict = errors.New("seat conflict")

	// ErrUnavailable is returned when a backing store cannot serve the
	// request.
	ErrUnavailable = errors.New("service unavailable")
)

// classify maps storage errors to service sentinels. Unknown errors
// pass through for the handler's fallback 500 path.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrStoreUnavailable):
		return errors.Join(ErrUnavailable, err)
	default:
		return err
	}
}
