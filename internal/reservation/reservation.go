// Package reservation implements time-bounded soft holds on seat ids.
//
// A hold is not a lock on rows: it serialises concurrent booking
// attempts for the same flight before the store's authoritative
// transaction. Per flight, held seat ids live in a sorted collection
// keyed by expiry so expired entries fall out with one range delete.
//
// Two implementations share the HoldStore contract: RedisHoldStore for
// shared deployments (server-side script keeps acquire indivisible) and
// MemoryHoldStore for a single process (mutex per flight id).
package reservation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHoldConflict is returned when any requested seat is already held,
// or when the hold store cannot be reached (acquire fails closed: a
// hold is never reported acquired unless it truly is).
var ErrHoldConflict = errors.New("seat hold conflict")

// HoldStore coordinates concurrent booking attempts per flight.
type HoldStore interface {
	// AcquireHold atomically purges expired entries, verifies none of
	// seatIDs is held, and inserts them all with expiry now+ttl.
	AcquireHold(ctx context.Context, flightID uuid.UUID, seatIDs []uuid.UUID, ttl time.Duration) error

	// ReleaseHold removes the entries unconditionally; absent entries
	// are tolerated.
	ReleaseHold(ctx context.Context, flightID uuid.UUID, seatIDs []uuid.UUID) error

	// FilterByActiveHolds purges expired entries and returns the subset
	// of candidates that is NOT currently held. Fails open: on store
	// failure the full candidate list comes back and the booking
	// transaction stays the authority.
	FilterByActiveHolds(ctx context.Context, flightID uuid.UUID, candidates []uuid.UUID) ([]uuid.UUID, error)

	// Cleanup purges expired entries for the flight.
	Cleanup(ctx context.Context, flightID uuid.UUID) error
}

// ─── Redis implementation ───────────────────────────────────

const holdKeyPrefix = "seat_reservations:"

// acquireScript performs purge → conflict check → insert → coarse TTL
// as one indivisible server-side operation. ARGV: now-ms, expiry-ms,
// key-ttl-ms, then the seat ids. Returns 1 on success, 0 on conflict.
var acquireScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now)
for i = 4, #ARGV do
  if redis.call('ZSCORE', key, ARGV[i]) then
    return 0
  end
end
for i = 4, #ARGV do
  redis.call('ZADD', key, ARGV[2], ARGV[i])
end
redis.call('PEXPIRE', key, ARGV[3])
return 1
`)

// RedisHoldStore keeps holds in one sorted set per flight, member =
// seat id, score = expiry epoch millis.
type RedisHoldStore struct {
	client *redis.Client
	// ttlBuffer pads the coarse key expiry past the last hold expiry so
	// abandoned collections self-delete.
	ttlBuffer time.Duration
}

// NewRedisHoldStore creates a Redis-backed hold store.
func NewRedisHoldStore(client *redis.Client, ttlBuffer time.Duration) *RedisHoldStore {
	return &RedisHoldStore{client: client, ttlBuffer: ttlBuffer}
}

func holdKey(flightID uuid.UUID) string {
	return holdKeyPrefix + flightID.String()
}

// AcquireHold runs the acquire script. Any Redis failure is reported as
// a conflict so we never issue a false success.
func (s *RedisHoldStore) AcquireHold(ctx context.Context, flightID uuid.UUID, seatIDs []uuid.UUID, ttl time.Duration) error {
	if len(seatIDs) == 0 {
		return nil
	}
	now := time.Now()
	args := make([]interface{}, 0, len(seatIDs)+3)
	args = append(args,
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatInt(now.Add(ttl).UnixMilli(), 10),
		strconv.FormatInt((ttl + s.ttlBuffer).Milliseconds(), 10),
	)
	for _, id := range seatIDs {
		args = append(args, id.String())
	}

	res, err := acquireScript.Run(ctx, s.client, []string{holdKey(flightID)}, args...).Int()
	if err != nil {
		return errors.Join(ErrHoldConflict, fmt.Errorf("acquire hold %s: %w", flightID, err))
	}
	if res != 1 {
		return ErrHoldConflict
	}
	return nil
}

// ReleaseHold removes the seat ids from the flight's collection.
func (s *RedisHoldStore) ReleaseHold(ctx context.Context, flightID uuid.UUID, seatIDs []uuid.UUID) error {
	if len(seatIDs) == 0 {
		return nil
	}
	members := make([]interface{}, len(seatIDs))
	for i, id := range seatIDs {
		members[i] = id.String()
	}
	if err := s.client.ZRem(ctx, holdKey(flightID), members...).Err(); err != nil {
		return fmt.Errorf("release hold %s: %w", flightID, err)
	}
	return nil
}

// FilterByActiveHolds purges expired entries, then drops candidates that
// are still present. On any Redis failure the candidates are returned
// unchanged (fail open).
func (s *RedisHoldStore) FilterByActiveHolds(ctx context.Context, flightID uuid.UUID, candidates []uuid.UUID) ([]uuid.UUID, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}
	key := holdKey(flightID)
	nowScore := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", nowScore).Err(); err != nil {
		return candidates, nil
	}

	members := make([]string, len(candidates))
	for i, id := range candidates {
		members[i] = id.String()
	}
	scores, err := s.client.ZMScore(ctx, key, members...).Result()
	if err != nil || len(scores) != len(candidates) {
		return candidates, nil
	}

	free := make([]uuid.UUID, 0, len(candidates))
	for i, score := range scores {
		if score == 0 {
			// ZMSCORE yields 0 for absent members in go-redis.
			free = append(free, candidates[i])
		}
	}
	return free, nil
}

// Cleanup purges expired entries for the flight.
func (s *RedisHoldStore) Cleanup(ctx context.Context, flightID uuid.UUID) error {
	nowScore := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := s.client.ZRemRangeByScore(ctx, holdKey(flightID), "-inf", nowScore).Err(); err != nil {
		return fmt.Errorf("cleanup holds %s: %w", flightID, err)
	}
	return nil
}
