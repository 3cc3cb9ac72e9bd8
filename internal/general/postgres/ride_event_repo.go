package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"booth-dispatch/internal/domain/ride"
	"booth-dispatch/internal/ports"
)

// RideEventRepo appends the per-transition ride event log.
type RideEventRepo struct{}

// NewRideEventRepo constructs a new RideEventRepo.
func NewRideEventRepo() ports.RideEventRepository {
	return &RideEventRepo{}
}

// Append inserts one event row. (ride_id, seq) is unique: re-delivered
// transitions that somehow reach the log are rejected by the constraint
// instead of duplicating history.
func (repo *RideEventRepo) Append(ctx context.Context, e *ride.Event) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encode event data: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO ride_events (ride_id, seq, event_type, data)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, e.RideID, e.Seq, e.Type.String(), data).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ride event: %w", err)
	}
	return nil
}

// ListForRide returns the full event history of a ride, oldest first.
func (repo *RideEventRepo) ListForRide(ctx context.Context, rideID string) ([]*ride.Event, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, ride_id, seq, event_type, data, created_at
		FROM ride_events
		WHERE ride_id = $1
		ORDER BY seq ASC
	`, rideID)
	if err != nil {
		return nil, fmt.Errorf("list events for ride %s: %w", rideID, err)
	}
	defer rows.Close()

	var out []*ride.Event
	for rows.Next() {
		var e ride.Event
		var eventType string
		var raw []byte
		if err := rows.Scan(&e.ID, &e.RideID, &e.Seq, &eventType, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ride event: %w", err)
		}
		e.Type = ride.EventType(eventType)
		if err := json.Unmarshal(raw, &e.Data); err != nil {
			return nil, fmt.Errorf("decode event data: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
