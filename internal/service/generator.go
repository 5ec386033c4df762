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

// generatorFlightStore is the slice of the flight repository the
// generator needs.
type generatorFlightStore interface {
	GetFlight(ctx context.Context, id uuid.UUID) (*model.Flight, error)
	ListFlightsByDate(ctx context.Context, date time.Time) ([]*model.Flight, error)
}

// journeyStore persists generated journeys idempotently.
type journeyStore interface {
	SaveJourney(ctx context.Context, j *model.Journey) (bool, error)
}

// routeInvalidator drops cached search results for a route. Optional;
// the generator tolerates a nil invalidator.
type routeInvalidator interface {
	InvalidateRoute(ctx context.Context, src, dst string) error
}

// Generator turns flight-created events into bookable journeys.
//
// For each new flight it enumerates every path through the same-day
// flight graph that includes the new flight, validates each path
// against the connection rules, and persists the valid ones. Replays
// are safe: the journey store refuses duplicate leg sequences, so a
// re-delivered event converges to the same journey set.
type Generator struct {
	flights     generatorFlightStore
	journeys    journeyStore
	cache       routeInvalidator
	constraints model.JourneyConstraints
	logger      *logrus.Logger
}

// NewGenerator creates the journey generator. cache may be nil.
func NewGenerator(flights generatorFlightStore, journeys journeyStore, cache routeInvalidator, constraints model.JourneyConstraints, logger *logrus.Logger) *Generator {
	return &Generator{
		flights:     flights,
		journeys:    journeys,
		cache:       cache,
		constraints: constraints,
		logger:      logger,
	}
}

// ProcessFlightCreated handles one flight-created event.
//
// A nil return acks the event. Permanent defects (flight unknown or no
// longer active) are logged and acked; redelivery cannot fix them.
// Store failures return an error so the bus redelivers the event.
func (g *Generator) ProcessFlightCreated(ctx context.Context, event *model.FlightCreatedEvent) error {
	flight, err := g.flights.GetFlight(ctx, event.FlightID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			g.logger.WithField("flight_id", event.FlightID).
				Warn("flight-created event for unknown flight, dropping")
			return nil
		}
		return fmt.Errorf("generator: load flight %s: %w", event.FlightID, err)
	}
	if flight.Status != model.FlightActive {
		g.logger.WithField("flight_id", flight.ID).
			Info("flight no longer active, skipping journey generation")
		return nil
	}

	sameDay, err := g.flights.ListFlightsByDate(ctx, flight.DepartureTime.UTC())
	if err != nil {
		return fmt.Errorf("generator: list same-day flights: %w", err)
	}

	saved := 0
	routes := make(map[[2]string]struct{})
	for _, path := range g.pathsThrough(flight, sameDay) {
		journey := model.NewJourneyFromPath(path)
		inserted, err := g.journeys.SaveJourney(ctx, journey)
		if err != nil {
			return fmt.Errorf("generator: save journey %s: %w", journey.LegSequence(), err)
		}
		if inserted {
			saved++
			routes[[2]string{journey.Source, journey.Destination}] = struct{}{}
		}
	}

	// New journeys change search results; drop stale cache entries so
	// they surface before the TTL lapses. Best effort only.
	if g.cache != nil {
		for route := range routes {
			if err := g.cache.InvalidateRoute(ctx, route[0], route[1]); err != nil {
				g.logger.WithFields(logrus.Fields{
					"source":      route[0],
					"destination": route[1],
				}).WithError(err).Warn("route cache invalidation failed")
			}
		}
	}

	g.logger.WithFields(logrus.Fields{
		"flight_id": flight.ID,
		"journeys":  saved,
	}).Info("journey generation complete")
	return nil
}

// connects reports whether b can follow a: same connection airport and
// a layover inside the configured window.
func (g *Generator) connects(a, b *model.Flight) bool {
	if a.Destination != b.Source {
		return false
	}
	layover := b.DepartureTime.Sub(a.ArrivalTime)
	return layover >= g.constraints.LayoverMin && layover <= g.constraints.LayoverMax
}

// pathsThrough enumerates every valid ordered path that contains pivot,
// built from pivot plus flights in pool. Each path is a prefix chain
// into the pivot, the pivot, and a suffix chain out of it; combining
// all prefix/suffix lengths up to MaxLegs yields the direct journey,
// extensions in both directions, and bridges through the pivot.
func (g *Generator) pathsThrough(pivot *model.Flight, pool []*model.Flight) [][]*model.Flight {
	prefixes := g.chainsInto(pivot, pool)
	suffixes := g.chainsFrom(pivot, pool)

	seen := make(map[string]struct{})
	var paths [][]*model.Flight
	for _, pre := range prefixes {
		for _, suf := range suffixes {
			if len(pre)+1+len(suf) > g.constraints.MaxLegs {
				continue
			}
			path := make([]*model.Flight, 0, len(pre)+1+len(suf))
			path = append(path, pre...)
			path = append(path, pivot)
			path = append(path, suf...)

			if !model.ValidatePath(path, g.constraints) {
				continue
			}
			key := legKey(path)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			paths = append(paths, path)
		}
	}
	return paths
}

// chainsInto returns ordered chains (including the empty chain) that can
// precede pivot, shortest first, up to MaxLegs-1 flights long.
func (g *Generator) chainsInto(pivot *model.Flight, pool []*model.Flight) [][]*model.Flight {
	chains := [][]*model.Flight{{}}
	frontier := [][]*model.Flight{{}}
	for depth := 1; depth < g.constraints.MaxLegs; depth++ {
		var next [][]*model.Flight
		for _, chain := range frontier {
			head := pivot
			if len(chain) > 0 {
				head = chain[0]
			}
			for _, f := range pool {
				if f.ID == pivot.ID || inChain(chain, f.ID) || !g.connects(f, head) {
					continue
				}
				extended := append([]*model.Flight{f}, chain...)
				next = append(next, extended)
			}
		}
		chains = append(chains, next...)
		frontier = next
	}
	return chains
}

// chainsFrom returns ordered chains (including the empty chain) that can
// follow pivot, up to MaxLegs-1 flights long.
func (g *Generator) chainsFrom(pivot *model.Flight, pool []*model.Flight) [][]*model.Flight {
	chains := [][]*model.Flight{{}}
	frontier := [][]*model.Flight{{}}
	for depth := 1; depth < g.constraints.MaxLegs; depth++ {
		var next [][]*model.Flight
		for _, chain := range frontier {
			tail := pivot
			if len(chain) > 0 {
				tail = chain[len(chain)-1]
			}
			for _, f := range pool {
				if f.ID == pivot.ID || inChain(chain, f.ID) || !g.connects(tail, f) {
					continue
				}
				extended := append(append([]*model.Flight{}, chain...), f)
				next = append(next, extended)
			}
		}
		chains = append(chains, next...)
		frontier = next
	}
	return chains
}

func inChain(chain []*model.Flight, id uuid.UUID) bool {
	for _, f := range chain {
		if f.ID == id {
			return true
		}
	}
	return false
}

func legKey(path []*model.Flight) string {
	key := ""
	for i, f := range path {
		if i > 0 {
			key += ">"
		}
		key += f.ID.String()
	}
	return key
}
