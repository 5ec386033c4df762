package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ankit/flywise/internal/model"
	"github.com/ankit/flywise/internal/repository"
	"github.com/ankit/flywise/internal/reservation"
)

// maxPassengersPerBooking bounds one booking to a realistic party size.
const maxPassengersPerBooking = 9

// journeyGetter loads journeys for booking.
type journeyGetter interface {
	GetJourney(ctx context.Context, id uuid.UUID) (*model.Journey, error)
}

// seatLister returns AVAILABLE seats of a flight in cabin order.
type seatLister interface {
	ListAvailableSeats(ctx context.Context, flightID uuid.UUID) ([]model.Seat, error)
}

// bookingStore runs the booking transaction and reads.
type bookingStore interface {
	CreateBooking(ctx context.Context, b *model.Booking, legs []repository.LegReservation) (*model.Booking, error)
	GetBookingByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	SeatsByBooking(ctx context.Context, bookingID uuid.UUID) (map[uuid.UUID][]string, error)
}

// BookingService books whole journeys all-or-nothing.
//
// Concurrency is handled in two layers. Seat holds serialise concurrent
// attempts early and cheaply; the booking transaction's conditional
// seat updates are the final authority. A booking either books every
// seat on every leg or leaves no trace.
type BookingService struct {
	journeys journeyGetter
	seats    seatLister
	holds    reservation.HoldStore
	store    bookingStore
	holdTTL  time.Duration
	logger   *logrus.Logger
}

// NewBookingService creates the booking service.
func NewBookingService(journeys journeyGetter, seats seatLister, holds reservation.HoldStore, store bookingStore, holdTTL time.Duration, logger *logrus.Logger) *BookingService {
	return &BookingService{
		journeys: journeys,
		seats:    seats,
		holds:    holds,
		store:    store,
		holdTTL:  holdTTL,
		logger:   logger,
	}
}

// CreateBookingInput is the validated request to book a journey.
type CreateBookingInput struct {
	UserID     string
	JourneyID  uuid.UUID
	Passengers int
	PaymentRef string
}

// LegSeats names the booked seat labels of one leg, in leg order.
type LegSeats struct {
	Position int       `json:"position"`
	FlightID uuid.UUID `json:"flight_id"`
	Seats    []string  `json:"seats"`
}

// BookingDetail is a booking together with its per-leg seat labels.
type BookingDetail struct {
	Booking *model.Booking `json:"booking"`
	Legs    []LegSeats     `json:"legs"`
}

func (in *CreateBookingInput) validate() error {
	switch {
	case in.UserID == "":
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	case in.JourneyID == uuid.Nil:
		return fmt.Errorf("%w: journey id is required", ErrInvalidInput)
	case in.Passengers < 1 || in.Passengers > maxPassengersPerBooking:
		return fmt.Errorf("%w: passengers must be between 1 and %d", ErrInvalidInput, maxPassengersPerBooking)
	}
	return nil
}

// heldLeg records acquired holds so they can be released on any exit.
type heldLeg struct {
	flightID uuid.UUID
	seats    []model.Seat
}

func seatIDs(seats []model.Seat) []uuid.UUID {
	ids := make([]uuid.UUID, len(seats))
	for i, s := range seats {
		ids[i] = s.ID
	}
	return ids
}

// CreateBooking books the journey for the given party.
//
//  1. Load the journey; only ACTIVE journeys are bookable.
//  2. Per leg in order: list AVAILABLE seats, drop held ones, pick the
//     first Passengers seats in cabin order.
//  3. Acquire holds leg by leg; a hold conflict releases everything
//     acquired so far and reports ErrSeatConflict.
//  4. Run the booking transaction; its conditional updates are the
//     final check against races the holds could not see.
//  5. Release the holds. They would also lapse on their own, but
//     releasing promptly frees the seats for the next caller.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*BookingDetail, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	journey, err := s.journeys.GetJourney(ctx, in.JourneyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrJourneyNotFound
		}
		return nil, classify(err)
	}
	if journey.Status != model.JourneyActive {
		return nil, ErrJourneyNotFound
	}

	// ── Select seats for every leg ──────────────────────
	selected := make([]heldLeg, 0, len(journey.Legs))
	for _, leg := range journey.Legs {
		available, err := s.seats.ListAvailableSeats(ctx, leg.FlightID)
		if err != nil {
			return nil, classify(err)
		}
		free, err := s.holds.FilterByActiveHolds(ctx, leg.FlightID, seatIDs(available))
		if err != nil {
			return nil, classify(err)
		}
		if len(free) < in.Passengers {
			return nil, ErrInsufficientSeats
		}

		freeSet := make(map[uuid.UUID]struct{}, len(free))
		for _, id := range free {
			freeSet[id] = struct{}{}
		}
		picked := make([]model.Seat, 0, in.Passengers)
		for _, seat := range available {
			if _, ok := freeSet[seat.ID]; !ok {
				continue
			}
			picked = append(picked, seat)
			if len(picked) == in.Passengers {
				break
			}
		}
		selected = append(selected, heldLeg{flightID: leg.FlightID, seats: picked})
	}

	// ── Acquire holds in leg order ──────────────────────
	acquired := make([]heldLeg, 0, len(selected))
	for _, leg := range selected {
		if err := s.holds.AcquireHold(ctx, leg.flightID, seatIDs(leg.seats), s.holdTTL); err != nil {
			s.releaseHolds(ctx, acquired)
			if errors.Is(err, reservation.ErrHoldConflict) {
				return nil, ErrSeatConflict
			}
			return nil, classify(err)
		}
		acquired = append(acquired, leg)
	}
	defer s.releaseHolds(ctx, acquired)

	// ── Commit ──────────────────────────────────────────
	booking := &model.Booking{
		ID:             uuid.New(),
		UserID:         in.UserID,
		JourneyID:      journey.ID,
		PassengerCount: in.Passengers,
		Status:         model.BookingConfirmed,
		PaymentRef:     in.PaymentRef,
		BookingTime:    time.Now().UTC(),
	}
	legs := make([]repository.LegReservation, len(selected))
	for i, leg := range selected {
		legs[i] = repository.LegReservation{FlightID: leg.flightID, SeatIDs: seatIDs(leg.seats)}
	}

	booking, err = s.store.CreateBooking(ctx, booking, legs)
	if err != nil {
		if errors.Is(err, repository.ErrSeatConflict) {
			return nil, ErrSeatConflict
		}
		return nil, classify(err)
	}

	detail := &BookingDetail{Booking: booking, Legs: make([]LegSeats, len(journey.Legs))}
	for i, leg := range journey.Legs {
		labels := make([]string, 0, in.Passengers)
		for _, seat := range selected[i].seats {
			labels = append(labels, seat.Label)
		}
		detail.Legs[i] = LegSeats{Position: leg.Position, FlightID: leg.FlightID, Seats: labels}
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"journey_id": journey.ID,
		"passengers": in.Passengers,
	}).Info("booking confirmed")
	return detail, nil
}

// releaseHolds best-effort releases acquired holds; leftover entries
// lapse when their TTL passes.
func (s *BookingService) releaseHolds(ctx context.Context, held []heldLeg) {
	for _, leg := range held {
		if err := s.holds.ReleaseHold(ctx, leg.flightID, seatIDs(leg.seats)); err != nil {
			s.logger.WithField("flight_id", leg.flightID).
				WithError(err).Warn("hold release failed, entries will expire")
		}
	}
}

// GetBooking returns a booking with its per-leg seat labels, legs in
// journey order.
func (s *BookingService) GetBooking(ctx context.Context, id uuid.UUID) (*BookingDetail, error) {
	booking, err := s.store.GetBookingByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, classify(err)
	}

	journey, err := s.journeys.GetJourney(ctx, booking.JourneyID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, classify(err)
	}

	byFlight, err := s.store.SeatsByBooking(ctx, id)
	if err != nil {
		return nil, classify(err)
	}

	detail := &BookingDetail{Booking: booking}
	if journey != nil {
		detail.Legs = make([]LegSeats, len(journey.Legs))
		for i, leg := range journey.Legs {
			detail.Legs[i] = LegSeats{
				Position: leg.Position,
				FlightID: leg.FlightID,
				Seats:    byFlight[leg.FlightID],
			}
		}
	}
	return detail, nil
}
