// Package discovery finds available drivers near a pickup point.
package discovery

import (
	"time"

	"xpress/internal/types"
)

// DriverStatus is the availability state held by the candidate store.
type DriverStatus string

const (
	DriverOnline  DriverStatus = "online"
	DriverBusy    DriverStatus = "busy"
	DriverOffline DriverStatus = "offline"
)

// DriverState is the authoritative availability record for one driver.
// Location, status, capacity, and heartbeat live together so no caller ever
// stitches them from separate sources.
type DriverState struct {
	ID           types.ID
	Location     types.Point
	Status       DriverStatus
	Capacity     int
	VehicleClass string
	LastSeen     time.Time
}

// Seed is an unscored candidate: a driver that passed the discovery filters,
// with its raw distance to the pickup point.
type Seed struct {
	DriverID       types.ID
	Location       types.Point
	DistanceMeters float64
	Capacity       int
	VehicleClass   string
	LastSeen       time.Time
}

// Query bounds one discovery pass.
type Query struct {
	Pickup          types.Point
	Passengers      int
	RadiusMeters    float64
	HeartbeatWindow time.Duration
}
