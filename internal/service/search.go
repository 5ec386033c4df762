package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ankit/flywise/internal/cache"
	"github.com/ankit/flywise/internal/model"
)

// Sort orders accepted by the search endpoint. An absent sort keeps the
// store's insertion order.
const (
	SortByPrice    = "price"
	SortByDuration = "duration"
)

// journeyLister is the slice of the journey repository search needs.
type journeyLister interface {
	ListJourneysByRouteAndDate(ctx context.Context, src, dst string, date time.Time) ([]*model.Journey, error)
}

// seatCounter reports durable seat availability per flight.
type seatCounter interface {
	CountAvailableSeats(ctx context.Context, flightID uuid.UUID) (int, error)
}

// resultCache is the slice of the search cache the engine needs.
type resultCache interface {
	Get(ctx context.Context, src, dst string, date time.Time) ([]cache.JourneyView, error)
	Set(ctx context.Context, src, dst string, date time.Time, views []cache.JourneyView) error
}

// SearchService answers journey searches cache-first.
//
// The cache holds the pre-filter journey list per route and date;
// passenger filtering, sorting and limiting run per request on top of
// it. Cache failures degrade to the store and never fail a search.
type SearchService struct {
	journeys journeyLister
	seats    seatCounter
	cache    resultCache
	logger   *logrus.Logger
}

// NewSearchService creates the search service. cache may be nil, in
// which case every search reads the store.
func NewSearchService(journeys journeyLister, seats seatCounter, cache resultCache, logger *logrus.Logger) *SearchService {
	return &SearchService{journeys: journeys, seats: seats, cache: cache, logger: logger}
}

// SearchParams is a validated search request.
type SearchParams struct {
	Source      string
	Destination string
	Date        time.Time
	Passengers  int
	SortBy      string
	Limit       int
}

// SearchResult is a filtered, sorted, limited page of journeys.
// TotalMatched counts journeys passing the passenger filter before the
// limit was applied.
type SearchResult struct {
	Journeys     []cache.JourneyView `json:"journeys"`
	TotalMatched int                 `json:"total_matched"`
}

func (p *SearchParams) validate() error {
	switch {
	case !isAirportCode(p.Source):
		return fmt.Errorf("%w: source must be a 3-letter airport code", ErrInvalidInput)
	case !isAirportCode(p.Destination):
		return fmt.Errorf("%w: destination must be a 3-letter airport code", ErrInvalidInput)
	case p.Source == p.Destination:
		return fmt.Errorf("%w: source and destination must differ", ErrInvalidInput)
	case p.Date.IsZero():
		return fmt.Errorf("%w: date is required", ErrInvalidInput)
	case p.Passengers < 0:
		return fmt.Errorf("%w: passengers must be positive", ErrInvalidInput)
	case p.Limit < 0:
		return fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}
	if p.SortBy != "" && p.SortBy != SortByPrice && p.SortBy != SortByDuration {
		return fmt.Errorf("%w: sort must be %q or %q", ErrInvalidInput, SortByPrice, SortByDuration)
	}
	return nil
}

// Search returns journeys for the route and date with at least
// Passengers available seats. Sort and limit apply only when the caller
// asked for them; otherwise the store's order and full result stand.
func (s *SearchService) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if p.Passengers == 0 {
		p.Passengers = 1
	}

	views, err := s.loadViews(ctx, p)
	if err != nil {
		return nil, err
	}

	matched := make([]cache.JourneyView, 0, len(views))
	for _, v := range views {
		if v.AvailableSeats >= p.Passengers {
			matched = append(matched, v)
		}
	}

	sortViews(matched, p.SortBy)

	total := len(matched)
	if p.Limit > 0 && len(matched) > p.Limit {
		matched = matched[:p.Limit]
	}
	return &SearchResult{Journeys: matched, TotalMatched: total}, nil
}

// loadViews serves the pre-filter list cache-first. Any cache failure
// is logged and the store answers instead.
func (s *SearchService) loadViews(ctx context.Context, p SearchParams) ([]cache.JourneyView, error) {
	if s.cache != nil {
		views, err := s.cache.Get(ctx, p.Source, p.Destination, p.Date)
		if err == nil {
			return views, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.WithError(err).Warn("search cache read failed, serving from store")
		}
	}

	journeys, err := s.journeys.ListJourneysByRouteAndDate(ctx, p.Source, p.Destination, p.Date)
	if err != nil {
		return nil, classify(err)
	}

	views := make([]cache.JourneyView, 0, len(journeys))
	for _, j := range journeys {
		avail, err := s.journeyAvailability(ctx, j)
		if err != nil {
			return nil, classify(err)
		}
		views = append(views, cache.JourneyView{
			ID:             j.ID,
			Legs:           j.Legs,
			Source:         j.Source,
			Destination:    j.Destination,
			DepartureTime:  j.DepartureTime,
			ArrivalTime:    j.ArrivalTime,
			DurationMin:    int(j.Duration().Minutes()),
			LayoverCount:   j.LayoverCount(),
			TotalPrice:     j.TotalPrice,
			AvailableSeats: avail,
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, p.Source, p.Destination, p.Date, views); err != nil {
			s.logger.WithError(err).Warn("search cache write failed")
		}
	}
	return views, nil
}

// journeyAvailability is the bottleneck availability: the minimum
// AVAILABLE seat count across all legs.
func (s *SearchService) journeyAvailability(ctx context.Context, j *model.Journey) (int, error) {
	avail := -1
	for _, leg := range j.Legs {
		count, err := s.seats.CountAvailableSeats(ctx, leg.FlightID)
		if err != nil {
			return 0, err
		}
		if avail == -1 || count < avail {
			avail = count
		}
	}
	if avail == -1 {
		avail = 0
	}
	return avail, nil
}

// sortViews orders views by the requested key; an empty key leaves the
// store's insertion order untouched. Ties break on departure time and
// then id so pagination stays stable.
func sortViews(views []cache.JourneyView, sortBy string) {
	if sortBy == "" {
		return
	}
	sort.SliceStable(views, func(i, k int) bool {
		a, b := views[i], views[k]
		switch sortBy {
		case SortByDuration:
			if a.DurationMin != b.DurationMin {
				return a.DurationMin < b.DurationMin
			}
		default:
			if a.TotalPrice != b.TotalPrice {
				return a.TotalPrice < b.TotalPrice
			}
		}
		if !a.DepartureTime.Equal(b.DepartureTime) {
			return a.DepartureTime.Before(b.DepartureTime)
		}
		return a.ID.String() < b.ID.String()
	})
}
