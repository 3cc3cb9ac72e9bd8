package postgres

import (
	"context"
	"fmt"

	"booth-dispatch/internal/domain/driver"
	"booth-dispatch/internal/domain/ride"
	"booth-dispatch/internal/ports"
)

// DriverRepo persists the driver queue-state projection.
type DriverRepo struct{}

// NewDriverRepo constructs a new DriverRepo.
func NewDriverRepo() ports.DriverRepository {
	return &DriverRepo{}
}

// GetByID fetches the projection for one driver.
func (repo *DriverRepo) GetByID(ctx context.Context, driverID string) (*driver.Driver, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var d driver.Driver
	var class string
	err = tx.QueryRow(ctx, `
		SELECT id, vehicle_class, is_online, current_booth, queue_position,
		       queue_entry_time, current_ride_id, updated_at
		FROM drivers
		WHERE id = $1
	`, driverID).Scan(
		&d.ID, &class, &d.IsOnline, &d.CurrentBooth, &d.QueuePosition,
		&d.QueueEntryTime, &d.CurrentRideID, &d.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, driver.ErrNotFound
		}
		return nil, fmt.Errorf("get driver %s: %w", driverID, err)
	}
	d.VehicleClass = ride.VehicleClass(class)
	return &d, nil
}

// Save updates the projection of an existing driver.
func (repo *DriverRepo) Save(ctx context.Context, d *driver.Driver) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE drivers SET
			vehicle_class = $1, is_online = $2, current_booth = $3,
			queue_position = $4, queue_entry_time = $5, current_ride_id = $6,
			updated_at = now()
		WHERE id = $7
	`,
		d.VehicleClass.String(), d.IsOnline, d.CurrentBooth,
		d.QueuePosition, d.QueueEntryTime, d.CurrentRideID,
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("save driver %s: %w", d.ID, err)
	}
	if tag.RowsAffected() != 1 {
		return driver.ErrNotFound
	}
	return nil
}

// Upsert inserts or replaces the projection; used when a driver first
// appears at this core's boundary.
func (repo *DriverRepo) Upsert(ctx context.Context, d *driver.Driver) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO drivers (
			id, vehicle_class, is_online, current_booth, queue_position,
			queue_entry_time, current_ride_id, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id) DO UPDATE SET
			vehicle_class = EXCLUDED.vehicle_class,
			is_online = EXCLUDED.is_online,
			current_booth = EXCLUDED.current_booth,
			queue_position = EXCLUDED.queue_position,
			queue_entry_time = EXCLUDED.queue_entry_time,
			current_ride_id = EXCLUDED.current_ride_id,
			updated_at = now()
	`,
		d.ID, d.VehicleClass.String(), d.IsOnline, d.CurrentBooth,
		d.QueuePosition, d.QueueEntryTime, d.CurrentRideID,
	)
	if err != nil {
		return fmt.Errorf("upsert driver %s: %w", d.ID, err)
	}
	return nil
}
