// Package pricing estimates fares for assignment payloads. Estimates are
// informational; they never influence ranking or dispatch decisions.
package pricing

import "xpress/internal/types"

// Rate is the fare schedule for one vehicle class.
type Rate struct {
	VehicleClass string
	BaseFare     int64
	PerKm        int64
	Currency     string
}

// Estimate is the fare breakdown returned with an assignment.
type Estimate struct {
	BaseFare        types.Money `json:"base_fare"`
	SurgeMultiplier float64     `json:"surge_multiplier"`
	Total           types.Money `json:"total"`
}
