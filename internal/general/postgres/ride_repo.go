package postgres

import (
	"context"
	"fmt"

	"booth-dispatch/internal/domain/ride"
	"booth-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
)

// RideRepo persists rides using pgx and plain SQL.
type RideRepo struct{}

// NewRideRepo constructs a new RideRepo.
func NewRideRepo() ports.RideRepository {
	return &RideRepo{}
}

const rideColumns = `
	id, ride_number, pickup_booth, vehicle_class, status, event_seq,
	driver_id, driver_fare, commission_amount, gst_amount, night_charge_amount,
	surge_amount, surge_factor, customer_fare, payment_status, fare_needs_review,
	created_at, updated_at, requested_at, assigned_at, started_at, ended_at,
	completed_at, cancelled_at, cancellation_reason`

// CreateRide inserts a new ride row.
func (repo *RideRepo) CreateRide(ctx context.Context, r *ride.Ride) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO rides (
			ride_number, pickup_booth, vehicle_class, status, event_seq,
			payment_status, requested_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`,
		r.RideNumber,
		r.PickupBooth,
		r.VehicleClass.String(),
		r.Status.String(),
		r.EventSeq,
		r.PaymentStatus.String(),
		r.RequestedAt,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}
	return nil
}

// GetByID fetches a ride by primary key.
func (repo *RideRepo) GetByID(ctx context.Context, id string) (*ride.Ride, error) {
	return repo.get(ctx, id, false)
}

// GetByIDForUpdate fetches a ride under FOR UPDATE so the lifecycle
// transition and its side effects commit as one unit.
func (repo *RideRepo) GetByIDForUpdate(ctx context.Context, id string) (*ride.Ride, error) {
	return repo.get(ctx, id, true)
}

func (repo *RideRepo) get(ctx context.Context, id string, lock bool) (*ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT` + rideColumns + ` FROM rides WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	r, err := scanRide(tx.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, ride.ErrNotFound
		}
		return nil, fmt.Errorf("get ride %s: %w", id, err)
	}
	return r, nil
}

// Save writes all mutable ride fields back.
func (repo *RideRepo) Save(ctx context.Context, r *ride.Ride) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides SET
			status = $1, event_seq = $2, driver_id = $3,
			driver_fare = $4, commission_amount = $5, gst_amount = $6,
			night_charge_amount = $7, surge_amount = $8, surge_factor = $9,
			customer_fare = $10, payment_status = $11, fare_needs_review = $12,
			assigned_at = $13, started_at = $14, ended_at = $15,
			completed_at = $16, cancelled_at = $17, cancellation_reason = $18,
			updated_at = now()
		WHERE id = $19
	`,
		r.Status.String(), r.EventSeq, r.DriverID,
		r.Fare.DriverFare, r.Fare.Commission, r.Fare.GST,
		r.Fare.NightCharge, r.Fare.SurgeAmount, r.Fare.SurgeFactor,
		r.Fare.CustomerFare, r.PaymentStatus.String(), r.FareNeedsReview,
		r.AssignedAt, r.StartedAt, r.EndedAt,
		r.CompletedAt, r.CancelledAt, r.CancellationReason,
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("save ride %s: %w", r.ID, err)
	}
	if tag.RowsAffected() != 1 {
		return ride.ErrNotFound
	}
	return nil
}

// OldestPendingForBooth returns the longest-waiting PENDING ride at the
// booth matching the vehicle class, locked so the join that triggered the
// lookup can assign it atomically.
func (repo *RideRepo) OldestPendingForBooth(ctx context.Context, boothID string, class ride.VehicleClass) (*ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	r, err := scanRide(tx.QueryRow(ctx, `
		SELECT`+rideColumns+`
		FROM rides
		WHERE pickup_booth = $1 AND vehicle_class = $2 AND status = $3
		ORDER BY requested_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, boothID, class.String(), ride.StatusPending.String()))
	if err != nil {
		if isNoRows(err) {
			return nil, ride.ErrNotFound
		}
		return nil, fmt.Errorf("oldest pending for booth %s: %w", boothID, err)
	}
	return r, nil
}

// ListNeedingFareReview returns rides flagged for manual reconciliation.
func (repo *RideRepo) ListNeedingFareReview(ctx context.Context, limit int) ([]*ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT`+rideColumns+`
		FROM rides
		WHERE fare_needs_review
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list fare review rides: %w", err)
	}
	defer rows.Close()

	var out []*ride.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRide(row pgx.Row) (*ride.Ride, error) {
	var r ride.Ride
	var status, class, payment string
	err := row.Scan(
		&r.ID, &r.RideNumber, &r.PickupBooth, &class, &status, &r.EventSeq,
		&r.DriverID, &r.Fare.DriverFare, &r.Fare.Commission, &r.Fare.GST, &r.Fare.NightCharge,
		&r.Fare.SurgeAmount, &r.Fare.SurgeFactor, &r.Fare.CustomerFare, &payment, &r.FareNeedsReview,
		&r.CreatedAt, &r.UpdatedAt, &r.RequestedAt, &r.AssignedAt, &r.StartedAt, &r.EndedAt,
		&r.CompletedAt, &r.CancelledAt, &r.CancellationReason,
	)
	if err != nil {
		return nil, err
	}
	r.Status = ride.Status(status)
	r.VehicleClass = ride.VehicleClass(class)
	r.PaymentStatus = ride.PaymentStatus(payment)
	return &r, nil
}
