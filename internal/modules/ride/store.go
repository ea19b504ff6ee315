package ride

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"xpress/internal/modules/dispatch"
	"xpress/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Create inserts the ride. The unique index on request_id makes creation
// idempotent per request: a second insert affects zero rows and returns
// ErrDuplicate instead of a second ride.
func (s *Store) Create(ctx context.Context, r *Ride) error {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO rides (
			id, request_id, rider_id, driver_id,
			pickup_lat, pickup_lng, dest_lat, dest_lng,
			vehicle_class, fare_amount, fare_currency, surge_multiplier, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12, $13
		) ON CONFLICT (request_id) DO NOTHING`,
		string(r.ID),
		string(r.RequestID),
		string(r.RiderID),
		string(r.DriverID),
		r.Pickup.Lat, r.Pickup.Lng,
		r.Destination.Lat, r.Destination.Lng,
		r.VehicleClass,
		r.Fare.Amount,
		r.Fare.Currency,
		r.Surge,
		r.CreatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Ride, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, request_id, rider_id, driver_id,
		       pickup_lat, pickup_lng, dest_lat, dest_lng,
		       vehicle_class, fare_amount, fare_currency, surge_multiplier, created_at
		FROM rides
		WHERE id = $1`, string(id),
	)

	var r Ride
	err := row.Scan(
		&r.ID, &r.RequestID, &r.RiderID, &r.DriverID,
		&r.Pickup.Lat, &r.Pickup.Lng, &r.Destination.Lat, &r.Destination.Lng,
		&r.VehicleClass, &r.Fare.Amount, &r.Fare.Currency, &r.Surge, &r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// AppendResponse writes one row of the append-only driver-response audit
// trail. Rows are never updated.
func (s *Store) AppendResponse(ctx context.Context, r dispatch.DriverResponse) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO driver_responses (
			request_id, driver_id, response, reason, latency_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(r.RequestID),
		string(r.DriverID),
		string(r.Response),
		r.Reason,
		r.Latency.Milliseconds(),
		r.CreatedAt,
	)
	return err
}
