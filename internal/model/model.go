// Package model contains domain models for the flight booking core.
// These structs map to the PostgreSQL schema defined in migrations/001_create_schema.up.sql.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ─── Enums ──────────────────────────────────────────────────

type FlightStatus string

const (
	FlightActive    FlightStatus = "ACTIVE"
	FlightCancelled FlightStatus = "CANCELLED"
)

type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatBooked    SeatStatus = "BOOKED"
	SeatBlocked   SeatStatus = "BLOCKED"
)

type JourneyStatus string

const (
	JourneyActive   JourneyStatus = "ACTIVE"
	JourneyDisabled JourneyStatus = "DISABLED"
)

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// ─── Domain Models ──────────────────────────────────────────

// Flight maps to the `flights` table.
type Flight struct {
	ID            uuid.UUID    `json:"id"`
	Source        string       `json:"source"`
	Destination   string       `json:"destination"`
	DepartureTime time.Time    `json:"departure_time"`
	ArrivalTime   time.Time    `json:"arrival_time"`
	AircraftID    string       `json:"aircraft_id"`
	Price         float64      `json:"price"`
	Status        FlightStatus `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Duration returns the scheduled air time of the flight.
func (f *Flight) Duration() time.Duration {
	return f.ArrivalTime.Sub(f.DepartureTime)
}

// Seat maps to the `seats` table. A seat is owned exclusively by one
// flight; BookingID is a weak back-reference set only while BOOKED.
type Seat struct {
	ID        uuid.UUID  `json:"id"`
	FlightID  uuid.UUID  `json:"flight_id"`
	Label     string     `json:"label"`
	Status    SeatStatus `json:"status"`
	BookingID *uuid.UUID `json:"booking_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Leg is a single flight within a journey, positioned by 1-based order.
type Leg struct {
	FlightID uuid.UUID `json:"flight_id"`
	Position int       `json:"position"`
}

// Journey maps to the `journeys` table. The ordered leg sequence is the
// canonical identity of a journey; legs are never reordered.
type Journey struct {
	ID            uuid.UUID     `json:"id"`
	Legs          []Leg         `json:"legs"`
	Source        string        `json:"source"`
	Destination   string        `json:"destination"`
	DepartureTime time.Time     `json:"departure_time"`
	ArrivalTime   time.Time     `json:"arrival_time"`
	TotalPrice    float64       `json:"total_price"`
	Status        JourneyStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Duration returns total journey time, first departure to last arrival.
func (j *Journey) Duration() time.Duration {
	return j.ArrivalTime.Sub(j.DepartureTime)
}

// LayoverCount returns the number of connections in the journey.
func (j *Journey) LayoverCount() int {
	if len(j.Legs) == 0 {
		return 0
	}
	return len(j.Legs) - 1
}

// LegSequence returns the canonical identity of the journey: the ordered
// flight ids joined with ">". Two journeys are the same journey iff their
// sequences are equal. Sorting the ids would collapse distinct orderings,
// so the sequence is always taken in leg order.
func (j *Journey) LegSequence() string {
	ids := make([]string, len(j.Legs))
	for i, leg := range j.Legs {
		ids[i] = leg.FlightID.String()
	}
	return strings.Join(ids, ">")
}

// Booking maps to the `bookings` table. The journey is referenced weakly
// by id; seats link back to the booking via their booking_id column.
type Booking struct {
	ID             uuid.UUID     `json:"id"`
	UserID         string        `json:"user_id"`
	JourneyID      uuid.UUID     `json:"journey_id"`
	PassengerCount int           `json:"passenger_count"`
	Status         BookingStatus `json:"status"`
	PaymentRef     string        `json:"payment_ref"`
	BookingTime    time.Time     `json:"booking_time"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// ─── Event payloads ─────────────────────────────────────────

// FlightCreatedEvent is published on the bus after a flight commits.
// The bus partitions by FlightID so per-flight ordering holds.
type FlightCreatedEvent struct {
	FlightID    uuid.UUID `json:"flight_id"`
	Source      string    `json:"src"`
	Destination string    `json:"dst"`
	Departure   time.Time `json:"departure"`
	EmittedAt   time.Time `json:"emitted_at"`
}

// ─── Journey validation ─────────────────────────────────────

// JourneyConstraints are the connection and duration rules every
// persisted journey must satisfy.
type JourneyConstraints struct {
	LayoverMin  time.Duration
	LayoverMax  time.Duration
	MaxDuration time.Duration
	MaxLegs     int
}

// ValidatePath reports whether the ordered flight sequence forms a valid
// journey under the constraints:
//
//   - 1..MaxLegs legs
//   - no flight repeats (no cycles)
//   - each consecutive pair connects at the same airport with a layover
//     inside [LayoverMin, LayoverMax]
//   - first source != last destination
//   - total duration <= MaxDuration
func ValidatePath(flights []*Flight, c JourneyConstraints) bool {
	if len(flights) == 0 || len(flights) > c.MaxLegs {
		return false
	}

	seen := make(map[uuid.UUID]struct{}, len(flights))
	for i, f := range flights {
		if _, dup := seen[f.ID]; dup {
			return false
		}
		seen[f.ID] = struct{}{}

		if i == 0 {
			continue
		}
		prev := flights[i-1]
		if prev.Destination != f.Source {
			return false
		}
		layover := f.DepartureTime.Sub(prev.ArrivalTime)
		if layover < c.LayoverMin || layover > c.LayoverMax {
			return false
		}
	}

	first, last := flights[0], flights[len(flights)-1]
	if first.Source == last.Destination {
		return false
	}
	if last.ArrivalTime.Sub(first.DepartureTime) > c.MaxDuration {
		return false
	}
	return true
}

// NewJourneyFromPath builds a journey from an ordered flight sequence.
// Derived fields (route, times, price) come from the legs; the caller is
// responsible for having validated the path first.
func NewJourneyFromPath(flights []*Flight) *Journey {
	legs := make([]Leg, len(flights))
	total := 0.0
	for i, f := range flights {
		legs[i] = Leg{FlightID: f.ID, Position: i + 1}
		total += f.Price
	}
	first, last := flights[0], flights[len(flights)-1]
	return &Journey{
		ID:            uuid.New(),
		Legs:          legs,
		Source:        first.Source,
		Destination:   last.Destination,
		DepartureTime: first.DepartureTime,
		ArrivalTime:   last.ArrivalTime,
		TotalPrice:    total,
		Status:        JourneyActive,
	}
}
