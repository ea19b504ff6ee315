// Package ride persists the trips produced by winning acceptances.
package ride

import (
	"errors"
	"time"

	"xpress/internal/types"
)

var (
	ErrNotFound = errors.New("ride not found")
	// ErrDuplicate: a ride already exists for the request. The dispatch core
	// guarantees at most one winner, so this only fires on retry races.
	ErrDuplicate = errors.New("ride already exists for request")
)

type Ride struct {
	ID           types.ID
	RequestID    types.ID
	RiderID      types.ID
	DriverID     types.ID
	Pickup       types.Point
	Destination  types.Point
	VehicleClass string
	Fare         types.Money
	Surge        float64
	CreatedAt    time.Time
}
