package reservation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryHoldStore keeps holds in process memory, one mutex-guarded map
// per flight id. Suitable for single-instance deployments; the contract
// matches RedisHoldStore exactly.
type MemoryHoldStore struct {
	mu      sync.Mutex
	flights map[uuid.UUID]*flightHolds
	// now is swappable so expiry behaviour is testable without sleeping.
	now func() time.Time
}

type flightHolds struct {
	mu    sync.Mutex
	seats map[uuid.UUID]time.Time // seat id -> expiry
	// dead marks an entry Cleanup removed from the store map; a caller
	// that raced the removal must re-fetch instead of writing to it.
	dead bool
}

// NewMemoryHoldStore creates an in-process hold store.
func NewMemoryHoldStore() *MemoryHoldStore {
	return &MemoryHoldStore{
		flights: make(map[uuid.UUID]*flightHolds),
		now:     time.Now,
	}
}

func (s *MemoryHoldStore) forFlight(flightID uuid.UUID) *flightHolds {
	s.mu.Lock()
	defer s.mu.Unlock()
	fh, ok := s.flights[flightID]
	if !ok {
		fh = &flightHolds{seats: make(map[uuid.UUID]time.Time)}
		s.flights[flightID] = fh
	}
	return fh
}

// lockFlight returns the flight's entry with its mutex held, re-fetching
// if a concurrent Cleanup removed the entry in between.
func (s *MemoryHoldStore) lockFlight(flightID uuid.UUID) *flightHolds {
	for {
		fh := s.forFlight(flightID)
		fh.mu.Lock()
		if !fh.dead {
			return fh
		}
		fh.mu.Unlock()
	}
}

// purgeLocked drops expired entries. Caller holds fh.mu.
func (fh *flightHolds) purgeLocked(now time.Time) {
	for id, expiry := range fh.seats {
		if !expiry.After(now) {
			delete(fh.seats, id)
		}
	}
}

// AcquireHold checks and inserts all seat ids under the flight's mutex,
// so concurrent attempts for overlapping seats admit exactly one winner.
func (s *MemoryHoldStore) AcquireHold(_ context.Context, flightID uuid.UUID, seatIDs []uuid.UUID, ttl time.Duration) error {
	if len(seatIDs) == 0 {
		return nil
	}
	fh := s.lockFlight(flightID)
	defer fh.mu.Unlock()

	now := s.now()
	fh.purgeLocked(now)
	for _, id := range seatIDs {
		if _, held := fh.seats[id]; held {
			return ErrHoldConflict
		}
	}
	expiry := now.Add(ttl)
	for _, id := range seatIDs {
		fh.seats[id] = expiry
	}
	return nil
}

// ReleaseHold removes the seat ids; absent entries are tolerated.
func (s *MemoryHoldStore) ReleaseHold(_ context.Context, flightID uuid.UUID, seatIDs []uuid.UUID) error {
	fh := s.lockFlight(flightID)
	defer fh.mu.Unlock()
	for _, id := range seatIDs {
		delete(fh.seats, id)
	}
	return nil
}

// FilterByActiveHolds returns the candidates not currently held.
func (s *MemoryHoldStore) FilterByActiveHolds(_ context.Context, flightID uuid.UUID, candidates []uuid.UUID) ([]uuid.UUID, error) {
	fh := s.lockFlight(flightID)
	defer fh.mu.Unlock()

	fh.purgeLocked(s.now())
	free := make([]uuid.UUID, 0, len(candidates))
	for _, id := range candidates {
		if _, held := fh.seats[id]; !held {
			free = append(free, id)
		}
	}
	return free, nil
}

// Cleanup purges expired entries for the flight and drops the flight's
// map entry entirely once no hold remains, so the store does not grow
// by one entry per flight ever seen.
func (s *MemoryHoldStore) Cleanup(_ context.Context, flightID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fh, ok := s.flights[flightID]
	if !ok {
		return nil
	}
	fh.mu.Lock()
	defer fh.mu.Unlock()
	fh.purgeLocked(s.now())
	if len(fh.seats) == 0 {
		fh.dead = true
		delete(s.flights, flightID)
	}
	return nil
}
