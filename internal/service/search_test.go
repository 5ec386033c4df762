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

	"github.com/ankit/flywise/internal/cache"
	"github.com/ankit/flywise/internal/model"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// ─── Fakes ──────────────────────────────────────────────────

type fakeJourneyLister struct {
	journeys []*model.Journey
	err      error
	calls    int
}

func (f *fakeJourneyLister) ListJourneysByRouteAndDate(_ context.Context, _, _ string, _ time.Time) ([]*model.Journey, error) {
	f.calls++
	return f.journeys, f.err
}

type fakeSeatCounter struct {
	counts map[uuid.UUID]int
}

func (f *fakeSeatCounter) CountAvailableSeats(_ context.Context, flightID uuid.UUID) (int, error) {
	return f.counts[flightID], nil
}

type fakeResultCache struct {
	entries map[string][]cache.JourneyView
	getErr  error
	setErr  error
	sets    int
}

func newFakeResultCache() *fakeResultCache {
	return &fakeResultCache{entries: make(map[string][]cache.JourneyView)}
}

func (f *fakeResultCache) Get(_ context.Context, src, dst string, date time.Time) ([]cache.JourneyView, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	views, ok := f.entries[cache.Key(src, dst, date)]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return views, nil
}

func (f *fakeResultCache) Set(_ context.Context, src, dst string, date time.Time, views []cache.JourneyView) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.sets++
	f.entries[cache.Key(src, dst, date)] = views
	return nil
}

// ─── Helpers ────────────────────────────────────────────────

var searchDate = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func searchJourney(price float64, dep, dur time.Duration, legFlights ...uuid.UUID) *model.Journey {
	legs := make([]model.Leg, len(legFlights))
	for i, id := range legFlights {
		legs[i] = model.Leg{FlightID: id, Position: i + 1}
	}
	return &model.Journey{
		ID:            uuid.New(),
		Legs:          legs,
		Source:        "DEL",
		Destination:   "BOM",
		DepartureTime: searchDate.Add(dep),
		ArrivalTime:   searchDate.Add(dep + dur),
		TotalPrice:    price,
		Status:        model.JourneyActive,
	}
}

func searchParams() SearchParams {
	return SearchParams{Source: "DEL", Destination: "BOM", Date: searchDate}
}

// ─── Tests ──────────────────────────────────────────────────

func TestSearch_CacheMissFillsCache(t *testing.T) {
	f1, f2 := uuid.New(), uuid.New()
	j := searchJourney(120, 6*time.Hour, 4*time.Hour, f1, f2)

	lister := &fakeJourneyLister{journeys: []*model.Journey{j}}
	counter := &fakeSeatCounter{counts: map[uuid.UUID]int{f1: 10, f2: 3}}
	rc := newFakeResultCache()
	svc := NewSearchService(lister, counter, rc, testLogger())

	result, err := svc.Search(context.Background(), searchParams())
	require.NoError(t, err)

	require.Len(t, result.Journeys, 1)
	assert.Equal(t, 1, result.TotalMatched)
	assert.Equal(t, 3, result.Journeys[0].AvailableSeats,
		"availability is the bottleneck leg")
	assert.Equal(t, 1, result.Journeys[0].LayoverCount)
	assert.Equal(t, 1, rc.sets, "miss must fill the cache")
	assert.Equal(t, 1, lister.calls)
}

func TestSearch_CacheHitSkipsStore(t *testing.T) {
	lister := &fakeJourneyLister{err: errors.New("store must not be touched")}
	rc := newFakeResultCache()
	rc.entries[cache.Key("DEL", "BOM", searchDate)] = []cache.JourneyView{
		{ID: uuid.New(), TotalPrice: 99, AvailableSeats: 5},
	}
	svc := NewSearchService(lister, &fakeSeatCounter{}, rc, testLogger())

	result, err := svc.Search(context.Background(), searchParams())
	require.NoError(t, err)
	assert.Len(t, result.Journeys, 1)
	assert.Equal(t, 0, lister.calls)
}

func TestSearch_PassengerFilterAndTotal(t *testing.T) {
	rc := newFakeResultCache()
	rc.entries[cache.Key("DEL", "BOM", searchDate)] = []cache.JourneyView{
		{ID: uuid.New(), TotalPrice: 100, AvailableSeats: 1},
		{ID: uuid.New(), TotalPrice: 200, AvailableSeats: 3},
		{ID: uuid.New(), TotalPrice: 300, AvailableSeats: 5},
	}
	svc := NewSearchService(&fakeJourneyLister{}, &fakeSeatCounter{}, rc, testLogger())

	p := searchParams()
	p.Passengers = 2
	p.Limit = 1
	result, err := svc.Search(context.Background(), p)
	require.NoError(t, err)

	assert.Len(t, result.Journeys, 1, "limit applies after the filter")
	assert.Equal(t, 2, result.TotalMatched, "total counts everything that passed the filter")
	assert.Equal(t, 200.0, result.Journeys[0].TotalPrice, "first surviving entry in store order")
}

func TestSearch_SortOrders(t *testing.T) {
	cheapSlow := cache.JourneyView{ID: uuid.New(), TotalPrice: 100, DurationMin: 600, AvailableSeats: 5}
	costlyFast := cache.JourneyView{ID: uuid.New(), TotalPrice: 300, DurationMin: 120, AvailableSeats: 5}

	rc := newFakeResultCache()
	rc.entries[cache.Key("DEL", "BOM", searchDate)] = []cache.JourneyView{costlyFast, cheapSlow}
	svc := NewSearchService(&fakeJourneyLister{}, &fakeSeatCounter{}, rc, testLogger())

	p := searchParams()
	p.SortBy = SortByPrice
	result, err := svc.Search(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, cheapSlow.ID, result.Journeys[0].ID)

	p.SortBy = SortByDuration
	result, err = svc.Search(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, costlyFast.ID, result.Journeys[0].ID)
}

func TestSearch_NoSortPreservesStoreOrder(t *testing.T) {
	costly := cache.JourneyView{ID: uuid.New(), TotalPrice: 300, AvailableSeats: 5}
	cheap := cache.JourneyView{ID: uuid.New(), TotalPrice: 100, AvailableSeats: 5}

	rc := newFakeResultCache()
	rc.entries[cache.Key("DEL", "BOM", searchDate)] = []cache.JourneyView{costly, cheap}
	svc := NewSearchService(&fakeJourneyLister{}, &fakeSeatCounter{}, rc, testLogger())

	// No sort requested: the store's order stands, even when it is not
	// the cheapest-first order.
	result, err := svc.Search(context.Background(), searchParams())
	require.NoError(t, err)
	require.Len(t, result.Journeys, 2)
	assert.Equal(t, costly.ID, result.Journeys[0].ID)
	assert.Equal(t, cheap.ID, result.Journeys[1].ID)
}

func TestSearch_NoLimitReturnsEveryMatch(t *testing.T) {
	views := make([]cache.JourneyView, 60)
	for i := range views {
		views[i] = cache.JourneyView{ID: uuid.New(), TotalPrice: float64(i), AvailableSeats: 5}
	}
	rc := newFakeResultCache()
	rc.entries[cache.Key("DEL", "BOM", searchDate)] = views
	svc := NewSearchService(&fakeJourneyLister{}, &fakeSeatCounter{}, rc, testLogger())

	result, err := svc.Search(context.Background(), searchParams())
	require.NoError(t, err)
	assert.Len(t, result.Journeys, 60, "no limit means no truncation")
	assert.Equal(t, 60, result.TotalMatched)
}

func TestSearch_CacheFailureDegradesToStore(t *testing.T) {
	f1 := uuid.New()
	j := searchJourney(150, 6*time.Hour, 2*time.Hour, f1)

	lister := &fakeJourneyLister{journeys: []*model.Journey{j}}
	counter := &fakeSeatCounter{counts: map[uuid.UUID]int{f1: 4}}
	rc := newFakeResultCache()
	rc.getErr = errors.New("redis down")
	rc.setErr = errors.New("redis down")
	svc := NewSearchService(lister, counter, rc, testLogger())

	result, err := svc.Search(context.Background(), searchParams())
	require.NoError(t, err, "cache failure must never fail a search")
	assert.Len(t, result.Journeys, 1)
	assert.Equal(t, 1, lister.calls)
}

func TestSearch_NoCacheConfigured(t *testing.T) {
	f1 := uuid.New()
	j := searchJourney(150, 6*time.Hour, 2*time.Hour, f1)
	lister := &fakeJourneyLister{journeys: []*model.Journey{j}}
	counter := &fakeSeatCounter{counts: map[uuid.UUID]int{f1: 4}}
	svc := NewSearchService(lister, counter, nil, testLogger())

	result, err := svc.Search(context.Background(), searchParams())
	require.NoError(t, err)
	assert.Len(t, result.Journeys, 1)
}

func TestSearch_Validation(t *testing.T) {
	svc := NewSearchService(&fakeJourneyLister{}, &fakeSeatCounter{}, nil, testLogger())
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*SearchParams)
	}{
		{"bad source", func(p *SearchParams) { p.Source = "DELHI" }},
		{"lowercase source", func(p *SearchParams) { p.Source = "del" }},
		{"same route ends", func(p *SearchParams) { p.Destination = "DEL" }},
		{"missing date", func(p *SearchParams) { p.Date = time.Time{} }},
		{"unknown sort", func(p *SearchParams) { p.SortBy = "rating" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := searchParams()
			tc.mutate(&p)
			_, err := svc.Search(ctx, p)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestSearch_EmptyResultCached(t *testing.T) {
	lister := &fakeJourneyLister{}
	rc := newFakeResultCache()
	svc := NewSearchService(lister, &fakeSeatCounter{}, rc, testLogger())

	result, err := svc.Search(context.Background(), searchParams())
	require.NoError(t, err)
	assert.Empty(t, result.Journeys)
	assert.Equal(t, 0, result.TotalMatched)
	assert.Equal(t, 1, rc.sets, "empty results are cached too")

	// Second search is served from the cache.
	_, err = svc.Search(context.Background(), searchParams())
	require.NoError(t, err)
	assert.Equal(t, 1, lister.calls)
}
