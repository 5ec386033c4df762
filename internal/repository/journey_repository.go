package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ankit/flywise/internal/model"
)

// JourneyRepository persists journeys. The ordered leg-id sequence is
// the canonical identity: a unique constraint on leg_sequence makes
// SaveJourney idempotent, which is what lets the generator replay
// flight-created events safely.
type JourneyRepository struct {
	pool *pgxpool.Pool
}

// NewJourneyRepository creates a journey repository backed by the pool.
func NewJourneyRepository(pool *pgxpool.Pool) *JourneyRepository {
	return &JourneyRepository{pool: pool}
}

// SaveJourney inserts the journey. Returns true if a row was written,
// false if a journey with the same ordered leg sequence already exists
// (a no-op by design; the journey keeps its original id).
func (r *JourneyRepository) SaveJourney(ctx context.Context, j *model.Journey) (bool, error) {
	legsJSON, err := json.Marshal(j.Legs)
	if err != nil {
		return false, fmt.Errorf("save journey: marshal legs: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO journeys (id, legs, leg_sequence, source, destination,
		                      departure_utc, arrival_utc, total_price, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (leg_sequence) DO NOTHING
	`, j.ID, legsJSON, j.LegSequence(), j.Source, j.Destination,
		j.DepartureTime, j.ArrivalTime, j.TotalPrice, j.Status)
	if err != nil {
		return false, classifyStoreErr(fmt.Errorf("save journey: %w", err))
	}
	return tag.RowsAffected() == 1, nil
}

// GetJourney fetches a journey by id.
func (r *JourneyRepository) GetJourney(ctx context.Context, id uuid.UUID) (*model.Journey, error) {
	j := &model.Journey{}
	var legsJSON []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, legs, source, destination, departure_utc, arrival_utc,
		       total_price, status, created_at, updated_at
		FROM journeys
		WHERE id = $1
	`, id).Scan(
		&j.ID, &legsJSON, &j.Source, &j.Destination, &j.DepartureTime,
		&j.ArrivalTime, &j.TotalPrice, &j.Status, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, classifyStoreErr(fmt.Errorf("get journey %s: %w", id, err))
	}
	if err := json.Unmarshal(legsJSON, &j.Legs); err != nil {
		return nil, fmt.Errorf("get journey %s: decode legs: %w", id, err)
	}
	return j, nil
}

// ListJourneysByRouteAndDate returns ACTIVE journeys from src to dst
// whose first leg departs on the given UTC date, ordered by departure.
// Availability is not computed here; that is the search engine's job.
func (r *JourneyRepository) ListJourneysByRouteAndDate(ctx context.Context, src, dst string, date time.Time) ([]*model.Journey, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	rows, err := r.pool.Query(ctx, `
		SELECT id, legs, source, destination, departure_utc, arrival_utc,
		       total_price, status, created_at, updated_at
		FROM journeys
		WHERE source = $1
		  AND destination = $2
		  AND status = 'ACTIVE'
		  AND departure_utc >= $3
		  AND departure_utc < $4
		ORDER BY departure_utc ASC
	`, src, dst, dayStart, dayEnd)
	if err != nil {
		return nil, classifyStoreErr(fmt.Errorf("list journeys %s-%s: %w", src, dst, err))
	}
	defer rows.Close()

	var journeys []*model.Journey
	for rows.Next() {
		j := &model.Journey{}
		var legsJSON []byte
		if err := rows.Scan(
			&j.ID, &legsJSON, &j.Source, &j.Destination, &j.DepartureTime,
			&j.ArrivalTime, &j.TotalPrice, &j.Status, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan journey: %w", err)
		}
		if err := json.Unmarshal(legsJSON, &j.Legs); err != nil {
			return nil, fmt.Errorf("decode journey legs: %w", err)
		}
		journeys = append(journeys, j)
	}
	return journeys, rows.Err()
}
