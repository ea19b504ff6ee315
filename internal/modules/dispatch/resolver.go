package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"xpress/internal/geo"
	"xpress/internal/modules/pricing"
	"xpress/internal/types"
)

// Accept processes a driver's acceptance. Responses for one request are
// linearized on the entry mutex, so concurrent accepts see exactly one
// winner; every loser gets ErrAlreadyResolved. A repeat accept by the winner
// returns the original result without creating a second ride.
func (q *Queue) Accept(ctx context.Context, requestID, driverID types.ID) (AssignmentResult, error) {
	e, err := q.entry(requestID)
	if err != nil {
		return AssignmentResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.phase == PhaseResolved:
		if e.result != nil && e.result.DriverID == driverID {
			return *e.result, nil
		}
		return AssignmentResult{}, ErrAlreadyResolved
	case e.req.Status == StatusExpired || e.phase == PhaseTimedOut:
		return AssignmentResult{}, ErrRequestExpired
	case e.req.Status == StatusCancelled || e.req.Status == StatusNoDrivers:
		return AssignmentResult{}, ErrAlreadyResolved
	}

	offeredAt, contacted := e.contactedAt[driverID]
	if !contacted {
		return AssignmentResult{}, ErrIneligibleDriver
	}
	if _, responded := e.responses[driverID]; responded {
		return AssignmentResult{}, ErrIneligibleDriver
	}

	// Claim before materializing: marking the driver busy must be atomic
	// across every pipeline that might be offering them a different request.
	claimed, err := q.drivers.ClaimDriver(ctx, driverID)
	if err != nil {
		return AssignmentResult{}, fmt.Errorf("claim driver %s: %w", driverID, err)
	}
	if !claimed {
		return AssignmentResult{}, ErrIneligibleDriver
	}

	winner := e.byDriver[driverID]
	now := q.clock.Now()

	fare := q.estimateFare(ctx, e)
	rideID, err := q.mat.Materialize(ctx, e.req, winner, fare)
	if err != nil {
		// Roll back: free the driver and leave the entry matchable.
		if relErr := q.drivers.ReleaseDriver(ctx, driverID); relErr != nil {
			q.log.Error("release driver after failed materialization",
				"driver_id", driverID, "error", relErr)
		}
		e.phase = PhaseAwaiting
		q.log.Error("ride materialization failed",
			"request_id", requestID, "driver_id", driverID, "error", err)
		return AssignmentResult{}, fmt.Errorf("%w: %v", ErrMaterializationFailed, err)
	}

	resp := &DriverResponse{
		RequestID: requestID,
		DriverID:  driverID,
		Response:  ResponseAccepted,
		Latency:   now.Sub(offeredAt),
		CreatedAt: now,
	}
	e.responses[driverID] = resp
	e.responded++
	e.best = &winner
	e.result = &AssignmentResult{
		RideID:         rideID,
		RequestID:      requestID,
		DriverID:       driverID,
		RiderID:        e.req.RiderID,
		Pickup:         e.req.Pickup,
		Destination:    e.req.Destination,
		PickupETA:      winner.PickupETA,
		DriverLocation: winner.Location,
		Fare:           fare,
		Tier:           winner.Tier,
	}
	q.terminate(e, StatusAssigned, EntryCompleted, PhaseResolved)

	q.recordResponse(ctx, resp)
	q.recordAcceptance(ctx, driverID, resp.Latency)
	requestsTotal.WithLabelValues(string(StatusAssigned)).Inc()
	responsesTotal.WithLabelValues(string(ResponseAccepted)).Inc()
	timeToAssign.Observe(now.Sub(e.req.CreatedAt).Seconds())
	q.log.Info("request assigned",
		"request_id", requestID, "driver_id", driverID, "ride_id", rideID,
		"attempt", e.attempt, "score", winner.Score)

	return *e.result, nil
}

// Reject records a driver's rejection and keeps matching alive: either more
// contacted drivers are still pending, or the search expands, or the entry
// times out when attempts are exhausted.
func (q *Queue) Reject(ctx context.Context, requestID, driverID types.ID, reason string) (RejectionResult, error) {
	e, err := q.entry(requestID)
	if err != nil {
		return RejectionResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.phase == PhaseResolved || e.req.Status == StatusCancelled || e.req.Status == StatusNoDrivers:
		return RejectionResult{}, ErrAlreadyResolved
	case e.req.Status == StatusExpired || e.phase == PhaseTimedOut:
		return RejectionResult{}, ErrRequestExpired
	}

	offeredAt, contacted := e.contactedAt[driverID]
	if !contacted {
		return RejectionResult{}, ErrIneligibleDriver
	}
	if prev, responded := e.responses[driverID]; responded {
		// Duplicate rejection: already counted, nothing changes.
		if prev.Response == ResponseRejected {
			return RejectionResult{RequestID: requestID, Continued: true, Phase: e.phase}, nil
		}
		return RejectionResult{}, ErrIneligibleDriver
	}

	now := q.clock.Now()
	resp := &DriverResponse{
		RequestID: requestID,
		DriverID:  driverID,
		Response:  ResponseRejected,
		Reason:    reason,
		Latency:   now.Sub(offeredAt),
		CreatedAt: now,
	}
	e.responses[driverID] = resp
	e.responded++
	q.recordResponse(ctx, resp)
	responsesTotal.WithLabelValues(string(ResponseRejected)).Inc()

	if q.penalties != nil {
		if err := q.penalties.ApplyRejectionPenalty(ctx, driverID); err != nil {
			q.log.Warn("apply rejection penalty", "driver_id", driverID, "error", err)
		}
	}

	continued := true
	if e.responded >= e.contacted {
		continued = q.expand(ctx, e)
	}
	q.publishLocked(e)
	return RejectionResult{RequestID: requestID, Continued: continued, Phase: e.phase}, nil
}

// Cancel is the rider-side abort. The race with a concurrent accept resolves
// by whichever is linearized first; the loser sees ErrAlreadyResolved.
func (q *Queue) Cancel(ctx context.Context, requestID types.ID) (Snapshot, error) {
	e, err := q.entry(requestID)
	if err != nil {
		return Snapshot{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.req.Status {
	case StatusCancelled:
		return q.viewOf(e), nil
	case StatusAssigned:
		return Snapshot{}, ErrAlreadyResolved
	case StatusExpired:
		return Snapshot{}, ErrRequestExpired
	}

	q.terminate(e, StatusCancelled, EntryFailed, e.phase)
	requestsTotal.WithLabelValues(string(StatusCancelled)).Inc()
	q.log.Info("request cancelled", "request_id", requestID)
	return q.viewOf(e), nil
}

// Responses returns the recorded responses for a request, oldest first.
func (q *Queue) Responses(requestID types.ID) ([]DriverResponse, error) {
	e, err := q.entry(requestID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]DriverResponse, 0, len(e.responses))
	for _, r := range e.responses {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].DriverID < out[j].DriverID
	})
	return out, nil
}

func (q *Queue) estimateFare(ctx context.Context, e *entry) pricing.Estimate {
	if q.pricing == nil {
		return pricing.Estimate{SurgeMultiplier: 1.0}
	}
	tripKm := geo.HaversineKm(e.req.Pickup, e.req.Destination)
	surge := 1.0
	est, err := q.pricing.Estimate(ctx, tripKm, e.req.VehicleClass, surge)
	if err != nil {
		q.log.Warn("fare estimate", "request_id", e.req.ID, "error", err)
		return pricing.Estimate{SurgeMultiplier: 1.0}
	}
	return est
}

func (q *Queue) recordResponse(ctx context.Context, r *DriverResponse) {
	if q.sink == nil {
		return
	}
	if err := q.sink.AppendResponse(ctx, *r); err != nil {
		q.log.Warn("append response audit", "request_id", r.RequestID, "error", err)
	}
}

// recordAcceptance feeds the performance counters when the provider supports
// it; the core only requires the penalty half of the interface.
func (q *Queue) recordAcceptance(ctx context.Context, driverID types.ID, latency time.Duration) {
	rec, ok := q.penalties.(interface {
		RecordAcceptance(ctx context.Context, driverID types.ID, responseTime time.Duration) error
	})
	if !ok {
		return
	}
	if err := rec.RecordAcceptance(ctx, driverID, latency); err != nil {
		q.log.Warn("record acceptance", "driver_id", driverID, "error", err)
	}
}
