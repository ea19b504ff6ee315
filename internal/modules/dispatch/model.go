// Package dispatch owns the matching-queue lifecycle: broadcasting ranked
// candidates, resolving concurrent driver responses into at most one
// assignment, and expiring requests that never resolve.
package dispatch

import (
	"time"

	"xpress/internal/modules/pricing"
	"xpress/internal/modules/scoring"
	"xpress/internal/types"
)

// RequestStatus is the rider-visible request state. Terminal states are
// monotonic: once assigned, expired, or cancelled, nothing moves again.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusMatching  RequestStatus = "matching"
	StatusNoDrivers RequestStatus = "no_drivers_available"
	StatusAssigned  RequestStatus = "assigned"
	StatusExpired   RequestStatus = "expired"
	StatusCancelled RequestStatus = "cancelled"
)

// allowedTransitions represents the request state flow as code.
var allowedTransitions = map[RequestStatus][]RequestStatus{
	StatusPending:  {StatusMatching, StatusNoDrivers, StatusCancelled},
	StatusMatching: {StatusAssigned, StatusExpired, StatusCancelled, StatusNoDrivers},
}

// CanTransition reports whether a request may move between the two states.
func CanTransition(from, to RequestStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transition.
func IsTerminal(s RequestStatus) bool {
	return len(allowedTransitions[s]) == 0
}

// MatchingRequest is one rider's request for a driver.
type MatchingRequest struct {
	ID           types.ID
	RiderID      types.ID
	Pickup       types.Point
	Destination  types.Point
	VehicleClass string
	Passengers   int

	MaxPickupDistanceMeters float64
	AcceptsSurge            bool

	Status    RequestStatus
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Phase is the queue entry's position in the matching state machine.
type Phase string

const (
	PhaseBroadcast Phase = "broadcast"
	PhaseAwaiting  Phase = "awaiting_responses"
	PhaseExpanding Phase = "expanding"
	PhaseResolved  Phase = "resolved"
	PhaseTimedOut  Phase = "timed_out"
)

// EntryStatus is the coarse queue-entry outcome.
type EntryStatus string

const (
	EntryActive    EntryStatus = "active"
	EntryCompleted EntryStatus = "completed"
	EntryFailed    EntryStatus = "failed"
)

// ResponseKind is a driver's answer to an offer.
type ResponseKind string

const (
	ResponseAccepted ResponseKind = "accepted"
	ResponseRejected ResponseKind = "rejected"
)

// DriverResponse is one driver's recorded answer. Records are append-only;
// the accepted response, once written, defines the winner forever.
type DriverResponse struct {
	RequestID types.ID
	DriverID  types.ID
	Response  ResponseKind
	Reason    string
	Latency   time.Duration
	CreatedAt time.Time
}

// Snapshot is a consistent, non-blocking view of one entry for status calls.
type Snapshot struct {
	RequestID        types.ID      `json:"request_id"`
	RequestStatus    RequestStatus `json:"status"`
	Phase            Phase         `json:"phase"`
	EntryStatus      EntryStatus   `json:"entry_status"`
	Attempt          int           `json:"current_attempt"`
	MaxAttempts      int           `json:"max_attempts"`
	DriversContacted int           `json:"drivers_contacted"`
	DriversResponded int           `json:"drivers_responded"`
	QueuePosition    int           `json:"queue_position"`
	Deadline         time.Time     `json:"deadline"`
}

// AssignmentResult is returned to the winning driver (and mirrored to the
// rider): ride handle, navigation seed, and earnings-relevant estimate.
type AssignmentResult struct {
	RideID         types.ID         `json:"ride_id"`
	RequestID      types.ID         `json:"request_id"`
	DriverID       types.ID         `json:"driver_id"`
	RiderID        types.ID         `json:"rider_id"`
	Pickup         types.Point      `json:"pickup"`
	Destination    types.Point      `json:"destination"`
	PickupETA      time.Duration    `json:"pickup_eta"`
	DriverLocation types.Point      `json:"driver_location"`
	Fare           pricing.Estimate `json:"fare"`
	Tier           scoring.Tier     `json:"quality_tier"`
}

// RejectionResult acknowledges a rejection and tells the driver client
// whether matching continues for the request.
type RejectionResult struct {
	RequestID types.ID `json:"request_id"`
	Continued bool     `json:"matching_continued"`
	Phase     Phase    `json:"phase"`
}

// Offer is the payload pushed to a contacted driver.
type Offer struct {
	RequestID      types.ID      `json:"request_id"`
	Pickup         types.Point   `json:"pickup"`
	Destination    types.Point   `json:"destination"`
	VehicleClass   string        `json:"vehicle_class"`
	Passengers     int           `json:"passengers"`
	DistanceMeters float64       `json:"distance_meters"`
	PickupETA      time.Duration `json:"pickup_eta"`
	ExpiresAt      time.Time     `json:"expires_at"`
}
