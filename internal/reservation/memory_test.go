package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSeats(n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}
	return ids
}

func TestMemoryHoldStore_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHoldStore()
	flight := uuid.New()
	seats := newSeats(2)

	require.NoError(t, store.AcquireHold(ctx, flight, seats, time.Minute))

	// Same seats again: conflict.
	err := store.AcquireHold(ctx, flight, seats, time.Minute)
	assert.ErrorIs(t, err, ErrHoldConflict)

	// Overlap on one seat is still a conflict, and must not hold the
	// fresh seat as a side effect.
	other := newSeats(1)
	err = store.AcquireHold(ctx, flight, []uuid.UUID{seats[0], other[0]}, time.Minute)
	assert.ErrorIs(t, err, ErrHoldConflict)

	free, err := store.FilterByActiveHolds(ctx, flight, other)
	require.NoError(t, err)
	assert.Equal(t, other, free, "seat from a failed acquire must stay free")

	require.NoError(t, store.ReleaseHold(ctx, flight, seats))
	require.NoError(t, store.AcquireHold(ctx, flight, seats, time.Minute))
}

func TestMemoryHoldStore_ExpiryFreesSeats(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHoldStore()
	flight := uuid.New()
	seats := newSeats(1)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.AcquireHold(ctx, flight, seats, 5*time.Minute))
	assert.ErrorIs(t, store.AcquireHold(ctx, flight, seats, 5*time.Minute), ErrHoldConflict)

	// Just before expiry the hold still stands.
	now = now.Add(5*time.Minute - time.Second)
	free, err := store.FilterByActiveHolds(ctx, flight, seats)
	require.NoError(t, err)
	assert.Empty(t, free)

	// At expiry the seat is free again.
	now = now.Add(time.Second)
	free, err = store.FilterByActiveHolds(ctx, flight, seats)
	require.NoError(t, err)
	assert.Equal(t, seats, free)
	require.NoError(t, store.AcquireHold(ctx, flight, seats, 5*time.Minute))
}

func TestMemoryHoldStore_FlightsAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHoldStore()
	seats := newSeats(1)

	require.NoError(t, store.AcquireHold(ctx, uuid.New(), seats, time.Minute))
	// The same seat id on a different flight is a separate hold space.
	require.NoError(t, store.AcquireHold(ctx, uuid.New(), seats, time.Minute))
}

func TestMemoryHoldStore_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHoldStore()
	flight := uuid.New()
	seats := newSeats(1)

	const attempts = 50
	var wg sync.WaitGroup
	wins := make(chan struct{}, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.AcquireHold(ctx, flight, seats, time.Minute) == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	assert.Equal(t, 1, won, "exactly one concurrent acquire may win")
}

func TestMemoryHoldStore_ReleaseUnknownSeatsTolerated(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHoldStore()
	assert.NoError(t, store.ReleaseHold(ctx, uuid.New(), newSeats(3)))
}

func TestMemoryHoldStore_CleanupDropsEmptyFlights(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHoldStore()
	flight := uuid.New()
	seats := newSeats(2)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.AcquireHold(ctx, flight, seats, time.Minute))

	// An active hold keeps the flight's entry alive.
	require.NoError(t, store.Cleanup(ctx, flight))
	store.mu.Lock()
	_, alive := store.flights[flight]
	store.mu.Unlock()
	assert.True(t, alive, "live holds must survive cleanup")

	// Once every hold expired, cleanup removes the whole entry instead
	// of leaving an empty map behind for each flight ever seen.
	now = now.Add(2 * time.Minute)
	require.NoError(t, store.Cleanup(ctx, flight))
	store.mu.Lock()
	_, alive = store.flights[flight]
	store.mu.Unlock()
	assert.False(t, alive, "cleanup must drop flights with no holds left")

	// The flight stays usable after the drop.
	require.NoError(t, store.AcquireHold(ctx, flight, seats, time.Minute))
}
