package dispatch

import "errors"

var (
	// ErrRequestNotFound: no queue entry exists for the request ID.
	ErrRequestNotFound = errors.New("matching request not found")

	// ErrAlreadyResolved is the expected race-loser outcome for concurrent
	// accept/reject/cancel; callers report it as a normal state, not a fault.
	ErrAlreadyResolved = errors.New("request already resolved")

	// ErrRequestExpired: the assignment deadline elapsed before resolution.
	ErrRequestExpired = errors.New("request expired")

	// ErrIneligibleDriver: the responding driver was never contacted for this
	// request, already responded, or is assigned elsewhere.
	ErrIneligibleDriver = errors.New("driver not eligible for this request")

	// ErrMaterializationFailed: the ride could not be persisted for a winning
	// acceptance; the entry is rolled back and the driver claim reversed.
	ErrMaterializationFailed = errors.New("ride materialization failed")
)
