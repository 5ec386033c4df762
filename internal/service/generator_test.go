package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankit/flywise/internal/model"
	"github.com/ankit/flywise/internal/repository"
)

// ─── Fakes ──────────────────────────────────────────────────

type fakeFlightStore struct {
	flights map[uuid.UUID]*model.Flight
	listErr error
}

func newFakeFlightStore(flights ...*model.Flight) *fakeFlightStore {
	s := &fakeFlightStore{flights: make(map[uuid.UUID]*model.Flight)}
	for _, f := range flights {
		s.flights[f.ID] = f
	}
	return s
}

func (s *fakeFlightStore) GetFlight(_ context.Context, id uuid.UUID) (*model.Flight, error) {
	f, ok := s.flights[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return f, nil
}

func (s *fakeFlightStore) ListFlightsByDate(_ context.Context, date time.Time) ([]*model.Flight, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	day := date.UTC().Truncate(24 * time.Hour)
	var out []*model.Flight
	for _, f := range s.flights {
		if f.Status == model.FlightActive && f.DepartureTime.UTC().Truncate(24*time.Hour).Equal(day) {
			out = append(out, f)
		}
	}
	return out, nil
}

type fakeJourneyStore struct {
	journeys map[string]*model.Journey
	saveErr  error
}

func newFakeJourneyStore() *fakeJourneyStore {
	return &fakeJourneyStore{journeys: make(map[string]*model.Journey)}
}

func (s *fakeJourneyStore) SaveJourney(_ context.Context, j *model.Journey) (bool, error) {
	if s.saveErr != nil {
		return false, s.saveErr
	}
	key := j.LegSequence()
	if _, exists := s.journeys[key]; exists {
		return false, nil
	}
	s.journeys[key] = j
	return true, nil
}

func (s *fakeJourneyStore) bySequence(flights ...*model.Flight) *model.Journey {
	key := ""
	for i, f := range flights {
		if i > 0 {
			key += ">"
		}
		key += f.ID.String()
	}
	return s.journeys[key]
}

type fakeInvalidator struct {
	routes map[[2]string]int
}

func (f *fakeInvalidator) InvalidateRoute(_ context.Context, src, dst string) error {
	if f.routes == nil {
		f.routes = make(map[[2]string]int)
	}
	f.routes[[2]string{src, dst}]++
	return nil
}

// ─── Helpers ────────────────────────────────────────────────

var genBase = time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)

func genFlight(src, dst string, dep, air time.Duration) *model.Flight {
	return &model.Flight{
		ID:            uuid.New(),
		Source:        src,
		Destination:   dst,
		DepartureTime: genBase.Add(dep),
		ArrivalTime:   genBase.Add(dep + air),
		Price:         100,
		Status:        model.FlightActive,
	}
}

func eventFor(f *model.Flight) *model.FlightCreatedEvent {
	return &model.FlightCreatedEvent{
		FlightID:    f.ID,
		Source:      f.Source,
		Destination: f.Destination,
		Departure:   f.DepartureTime,
		EmittedAt:   time.Now().UTC(),
	}
}

func newTestGenerator(flights *fakeFlightStore, journeys *fakeJourneyStore, cache routeInvalidator) *Generator {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewGenerator(flights, journeys, cache, model.JourneyConstraints{
		LayoverMin:  30 * time.Minute,
		LayoverMax:  4 * time.Hour,
		MaxDuration: 24 * time.Hour,
		MaxLegs:     3,
	}, logger)
}

// ─── Tests ──────────────────────────────────────────────────

func TestGenerator_DirectJourney(t *testing.T) {
	f := genFlight("DEL", "BOM", 0, 2*time.Hour)
	flights := newFakeFlightStore(f)
	journeys := newFakeJourneyStore()
	gen := newTestGenerator(flights, journeys, nil)

	require.NoError(t, gen.ProcessFlightCreated(context.Background(), eventFor(f)))

	require.Len(t, journeys.journeys, 1)
	j := journeys.bySequence(f)
	require.NotNil(t, j, "direct journey must exist")
	assert.Equal(t, "DEL", j.Source)
	assert.Equal(t, "BOM", j.Destination)
	assert.Equal(t, model.JourneyActive, j.Status)
}

func TestGenerator_ForwardAndBackwardExtension(t *testing.T) {
	// A arrives where F departs, B departs where F arrives.
	a := genFlight("CCU", "DEL", 0, time.Hour)             // lands 07:00
	f := genFlight("DEL", "BOM", 2*time.Hour, 2*time.Hour) // 08:00-10:00, layover 1h after A
	b := genFlight("BOM", "GOI", 5*time.Hour, time.Hour)   // 11:00, layover 1h after F

	flights := newFakeFlightStore(a, f, b)
	journeys := newFakeJourneyStore()
	gen := newTestGenerator(flights, journeys, nil)

	require.NoError(t, gen.ProcessFlightCreated(context.Background(), eventFor(f)))

	assert.NotNil(t, journeys.bySequence(f), "direct")
	assert.NotNil(t, journeys.bySequence(f, b), "forward extension")
	assert.NotNil(t, journeys.bySequence(a, f), "backward extension")
	assert.NotNil(t, journeys.bySequence(a, f, b), "bridge through the new flight")
	assert.Len(t, journeys.journeys, 4)
}

func TestGenerator_LayoverWindowEnforced(t *testing.T) {
	f := genFlight("DEL", "BOM", 0, 2*time.Hour) // lands 08:00
	tooTight := genFlight("BOM", "GOI", 2*time.Hour+10*time.Minute, time.Hour)
	tooLoose := genFlight("BOM", "GOI", 7*time.Hour, time.Hour) // 5h layover

	flights := newFakeFlightStore(f, tooTight, tooLoose)
	journeys := newFakeJourneyStore()
	gen := newTestGenerator(flights, journeys, nil)

	require.NoError(t, gen.ProcessFlightCreated(context.Background(), eventFor(f)))

	assert.Len(t, journeys.journeys, 1, "only the direct journey is valid")
	assert.NotNil(t, journeys.bySequence(f))
}

func TestGenerator_RoundTripExcluded(t *testing.T) {
	f := genFlight("DEL", "BOM", 0, 2*time.Hour)
	back := genFlight("BOM", "DEL", 3*time.Hour, 2*time.Hour)

	flights := newFakeFlightStore(f, back)
	journeys := newFakeJourneyStore()
	gen := newTestGenerator(flights, journeys, nil)

	require.NoError(t, gen.ProcessFlightCreated(context.Background(), eventFor(f)))

	assert.Nil(t, journeys.bySequence(f, back), "journey back to its source must not be persisted")
	assert.Len(t, journeys.journeys, 1)
}

func TestGenerator_DurationCapExcluded(t *testing.T) {
	f := genFlight("DEL", "BOM", 0, 21*time.Hour)
	late := genFlight("BOM", "GOI", 23*time.Hour, 2*time.Hour) // 25h total

	flights := newFakeFlightStore(f, late)
	journeys := newFakeJourneyStore()
	gen := newTestGenerator(flights, journeys, nil)

	require.NoError(t, gen.ProcessFlightCreated(context.Background(), eventFor(f)))

	assert.Nil(t, journeys.bySequence(f, late))
	assert.Len(t, journeys.journeys, 1)
}

func TestGenerator_ReplayIsIdempotent(t *testing.T) {
	a := genFlight("CCU", "DEL", 0, time.Hour)
	f := genFlight("DEL", "BOM", 2*time.Hour, 2*time.Hour)

	flights := newFakeFlightStore(a, f)
	journeys := newFakeJourneyStore()
	gen := newTestGenerator(flights, journeys, nil)

	ctx := context.Background()
	require.NoError(t, gen.ProcessFlightCreated(ctx, eventFor(f)))
	before := len(journeys.journeys)

	// Redelivery of the same event converges to the same journey set.
	require.NoError(t, gen.ProcessFlightCreated(ctx, eventFor(f)))
	assert.Equal(t, before, len(journeys.journeys))
}

func TestGenerator_UnknownFlightAcked(t *testing.T) {
	flights := newFakeFlightStore()
	journeys := newFakeJourneyStore()
	gen := newTestGenerator(flights, journeys, nil)

	event := &model.FlightCreatedEvent{FlightID: uuid.New()}
	assert.NoError(t, gen.ProcessFlightCreated(context.Background(), event),
		"unknown flight is permanent, the event must be acked")
	assert.Empty(t, journeys.journeys)
}

func TestGenerator_InactiveFlightSkipped(t *testing.T) {
	f := genFlight("DEL", "BOM", 0, 2*time.Hour)
	f.Status = model.FlightCancelled

	flights := newFakeFlightStore(f)
	journeys := newFakeJourneyStore()
	gen := newTestGenerator(flights, journeys, nil)

	assert.NoError(t, gen.ProcessFlightCreated(context.Background(), eventFor(f)))
	assert.Empty(t, journeys.journeys)
}

func TestGenerator_StoreFailureRetried(t *testing.T) {
	f := genFlight("DEL", "BOM", 0, 2*time.Hour)
	flights := newFakeFlightStore(f)
	journeys := newFakeJourneyStore()
	journeys.saveErr = errors.New("connection reset")
	gen := newTestGenerator(flights, journeys, nil)

	err := gen.ProcessFlightCreated(context.Background(), eventFor(f))
	assert.Error(t, err, "transient store failure must bubble up for redelivery")
}

func TestGenerator_InvalidatesAffectedRoutes(t *testing.T) {
	f := genFlight("DEL", "BOM", 0, 2*time.Hour)
	b := genFlight("BOM", "GOI", 3*time.Hour, time.Hour)

	flights := newFakeFlightStore(f, b)
	journeys := newFakeJourneyStore()
	inv := &fakeInvalidator{}
	gen := newTestGenerator(flights, journeys, inv)

	require.NoError(t, gen.ProcessFlightCreated(context.Background(), eventFor(f)))

	assert.Contains(t, inv.routes, [2]string{"DEL", "BOM"})
	assert.Contains(t, inv.routes, [2]string{"DEL", "GOI"})
}
