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
)

// maxSeatsPerFlight caps the seat inventory allocated per flight.
const maxSeatsPerFlight = 500

// flightStore is the slice of the flight repository the service needs.
type flightStore interface {
	CreateFlight(ctx context.Context, f *model.Flight, totalSeats int) (*model.Flight, error)
	GetFlight(ctx context.Context, id uuid.UUID) (*model.Flight, error)
}

// eventPublisher emits flight-created events after commit.
type eventPublisher interface {
	PublishFlightCreated(ctx context.Context, event *model.FlightCreatedEvent) error
}

// FlightService handles flight administration.
type FlightService struct {
	flights flightStore
	bus     eventPublisher
	logger  *logrus.Logger
}

// NewFlightService creates the flight service.
func NewFlightService(flights flightStore, bus eventPublisher, logger *logrus.Logger) *FlightService {
	return &FlightService{flights: flights, bus: bus, logger: logger}
}

// CreateFlightInput is the validated request to register a flight.
type CreateFlightInput struct {
	Source        string
	Destination   string
	DepartureTime time.Time
	ArrivalTime   time.Time
	AircraftID    string
	Price         float64
	TotalSeats    int
}

func isAirportCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func (in *CreateFlightInput) validate(now time.Time) error {
	switch {
	case !isAirportCode(in.Source):
		return fmt.Errorf("%w: source must be a 3-letter airport code", ErrInvalidInput)
	case !isAirportCode(in.Destination):
		return fmt.Errorf("%w: destination must be a 3-letter airport code", ErrInvalidInput)
	case in.Source == in.Destination:
		return fmt.Errorf("%w: source and destination must differ", ErrInvalidInput)
	case !in.ArrivalTime.After(in.DepartureTime):
		return fmt.Errorf("%w: arrival must be after departure", ErrInvalidInput)
	case !in.DepartureTime.After(now):
		return fmt.Errorf("%w: departure must be in the future", ErrInvalidInput)
	case in.AircraftID == "":
		return fmt.Errorf("%w: aircraft id is required", ErrInvalidInput)
	case in.Price < 0:
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	case in.TotalSeats < 1 || in.TotalSeats > maxSeatsPerFlight:
		return fmt.Errorf("%w: total seats must be between 1 and %d", ErrInvalidInput, maxSeatsPerFlight)
	}
	return nil
}

// CreateFlight validates, persists the flight with its seat inventory,
// then publishes the flight-created event.
//
// If the publish fails after the flight committed, the flight is still
// returned together with ErrEventPublish: the record exists, journey
// generation for it is pending until the event is re-emitted.
func (s *FlightService) CreateFlight(ctx context.Context, in CreateFlightInput) (*model.Flight, error) {
	if err := in.validate(time.Now().UTC()); err != nil {
		return nil, err
	}

	flight := &model.Flight{
		ID:            uuid.New(),
		Source:        in.Source,
		Destination:   in.Destination,
		DepartureTime: in.DepartureTime.UTC(),
		ArrivalTime:   in.ArrivalTime.UTC(),
		AircraftID:    in.AircraftID,
		Price:         in.Price,
		Status:        model.FlightActive,
	}

	flight, err := s.flights.CreateFlight(ctx, flight, in.TotalSeats)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateFlight
		}
		return nil, classify(err)
	}

	event := &model.FlightCreatedEvent{
		FlightID:    flight.ID,
		Source:      flight.Source,
		Destination: flight.Destination,
		Departure:   flight.DepartureTime,
		EmittedAt:   time.Now().UTC(),
	}
	if err := s.bus.PublishFlightCreated(ctx, event); err != nil {
		s.logger.WithFields(logrus.Fields{
			"flight_id": flight.ID,
		}).WithError(err).Error("flight committed but event publish failed")
		return flight, errors.Join(ErrEventPublish, err)
	}

	s.logger.WithFields(logrus.Fields{
		"flight_id": flight.ID,
		"route":     flight.Source + "-" + flight.Destination,
	}).Info("flight registered")
	return flight, nil
}

// GetFlight fetches a flight by id.
func (s *FlightService) GetFlight(ctx context.Context, id uuid.UUID) (*model.Flight, error) {
	flight, err := s.flights.GetFlight(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFlightNotFound
		}
		return nil, classify(err)
	}
	return flight, nil
}
