package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"xpress/internal/config"
	"xpress/internal/modules/discovery"
	"xpress/internal/modules/pricing"
	"xpress/internal/modules/scoring"
	"xpress/internal/types"
)

// Notifier pushes offers to contacted drivers. Delivery is best-effort; a
// driver that never sees the offer simply never responds.
type Notifier interface {
	NotifyOffer(ctx context.Context, driverID types.ID, offer Offer)
}

// LogNotifier is the fallback Notifier when no push channel is wired.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) NotifyOffer(_ context.Context, driverID types.ID, offer Offer) {
	n.Log.Info("offer", "driver_id", driverID, "request_id", offer.RequestID)
}

// Materializer persists the ride for a winning acceptance. It is called at
// most once per request; failure is an assignment failure, never retried
// silently.
type Materializer interface {
	Materialize(ctx context.Context, req *MatchingRequest, winner scoring.Candidate, fare pricing.Estimate) (types.ID, error)
}

// ResponseSink receives the append-only driver-response audit trail.
type ResponseSink interface {
	AppendResponse(ctx context.Context, r DriverResponse) error
}

// PenaltySink is the slice of the performance collaborator the queue needs.
type PenaltySink interface {
	ApplyRejectionPenalty(ctx context.Context, driverID types.ID) error
}

// Queue runs the matching pipeline for every live request. Each entry has its
// own mutex, so response processing for one request is linearized while
// independent requests proceed in parallel.
type Queue struct {
	cfg config.MatchingConfig

	discovery *discovery.Service
	scoring   *scoring.Engine
	drivers   discovery.Store
	penalties PenaltySink
	mat       Materializer
	sink      ResponseSink
	notifier  Notifier
	pricing   pricing.Estimator
	clock     Clock
	log       *slog.Logger

	mu      sync.Mutex
	entries map[types.ID]*entry
	seq     uint64
}

// Deps carries the queue's collaborators. Sink and Notifier are optional.
type Deps struct {
	Discovery *discovery.Service
	Scoring   *scoring.Engine
	Drivers   discovery.Store
	Penalties PenaltySink
	Mat       Materializer
	Sink      ResponseSink
	Notifier  Notifier
	Pricing   pricing.Estimator
	Clock     Clock
	Log       *slog.Logger
}

func NewQueue(cfg config.MatchingConfig, deps Deps) *Queue {
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Notifier == nil {
		deps.Notifier = LogNotifier{Log: deps.Log}
	}
	return &Queue{
		cfg:       cfg,
		discovery: deps.Discovery,
		scoring:   deps.Scoring,
		drivers:   deps.Drivers,
		penalties: deps.Penalties,
		mat:       deps.Mat,
		sink:      deps.Sink,
		notifier:  deps.Notifier,
		pricing:   deps.Pricing,
		clock:     deps.Clock,
		log:       deps.Log,
		entries:   make(map[types.ID]*entry),
	}
}

// entry is the live queue record for one request. All mutable state is
// guarded by mu; active is atomic so position counting never takes the lock,
// and view holds the last published status snapshot so reads never wait on
// in-flight resolution.
type entry struct {
	mu     sync.Mutex
	seq    uint64
	active atomic.Bool
	view   atomic.Pointer[Snapshot]

	req        *MatchingRequest
	candidates []scoring.Candidate
	byDriver   map[types.ID]scoring.Candidate

	contactedAt map[types.ID]time.Time
	responses   map[types.ID]*DriverResponse

	phase     Phase
	status    EntryStatus
	contacted int
	responded int
	attempt   int
	radius    float64
	deadline  time.Time
	timer     Timer

	best   *scoring.Candidate
	result *AssignmentResult
}

// SubmitCommand is one rider's trip request.
type SubmitCommand struct {
	RiderID                 types.ID
	Pickup                  types.Point
	Destination             types.Point
	VehicleClass            string
	Passengers              int
	MaxPickupDistanceMeters float64
	AcceptsSurge            bool
}

// Submit runs discovery and scoring, contacts the ranked candidates, and arms
// the assignment deadline. A request with zero eligible candidates terminates
// as no_drivers_available without ever awaiting responses.
func (q *Queue) Submit(ctx context.Context, cmd SubmitCommand) (Snapshot, error) {
	if cmd.Passengers <= 0 {
		cmd.Passengers = 1
	}
	radius := cmd.MaxPickupDistanceMeters
	if radius <= 0 {
		radius = q.cfg.MaxPickupDistanceMeters
	}

	now := q.clock.Now()
	req := &MatchingRequest{
		ID:                      types.NewID(),
		RiderID:                 cmd.RiderID,
		Pickup:                  cmd.Pickup,
		Destination:             cmd.Destination,
		VehicleClass:            cmd.VehicleClass,
		Passengers:              cmd.Passengers,
		MaxPickupDistanceMeters: radius,
		AcceptsSurge:            cmd.AcceptsSurge,
		Status:                  StatusPending,
		CreatedAt:               now,
		ExpiresAt:               now.Add(q.cfg.AssignmentDeadline),
	}

	e := &entry{
		req:         req,
		byDriver:    make(map[types.ID]scoring.Candidate),
		contactedAt: make(map[types.ID]time.Time),
		responses:   make(map[types.ID]*DriverResponse),
		phase:       PhaseBroadcast,
		status:      EntryActive,
		attempt:     1,
		radius:      radius,
		deadline:    req.ExpiresAt,
	}
	e.active.Store(true)
	q.publishLocked(e)

	q.mu.Lock()
	q.seq++
	e.seq = q.seq
	q.entries[req.ID] = e
	q.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	fresh, err := q.broadcast(ctx, e)
	if err != nil {
		q.terminate(e, StatusNoDrivers, EntryFailed, PhaseTimedOut)
		return Snapshot{}, fmt.Errorf("broadcast for %s: %w", req.ID, err)
	}
	if fresh == 0 {
		q.terminate(e, StatusNoDrivers, EntryFailed, e.phase)
		requestsTotal.WithLabelValues(string(StatusNoDrivers)).Inc()
		q.log.Info("no drivers available", "request_id", req.ID, "radius_m", e.radius)
		return q.viewOf(e), nil
	}

	req.Status = StatusMatching
	e.timer = q.clock.AfterFunc(q.cfg.AssignmentDeadline, func() { q.expire(req.ID) })
	q.publishLocked(e)
	q.log.Info("request matching",
		"request_id", req.ID, "rider_id", req.RiderID, "contacted", e.contacted)
	return q.viewOf(e), nil
}

// broadcast runs one discovery+scoring pass and contacts eligible candidates
// not yet contacted. Returns how many fresh drivers were contacted. Caller
// holds e.mu.
func (q *Queue) broadcast(ctx context.Context, e *entry) (int, error) {
	seeds, err := q.discovery.FindCandidates(ctx, discovery.Query{
		Pickup:          e.req.Pickup,
		Passengers:      e.req.Passengers,
		RadiusMeters:    e.radius,
		HeartbeatWindow: q.cfg.HeartbeatWindow,
	})
	if err != nil {
		return 0, err
	}
	ranked, err := q.scoring.Score(ctx, e.req.Pickup, seeds)
	if err != nil {
		return 0, err
	}

	now := q.clock.Now()
	fresh := 0
	for _, c := range ranked {
		if _, seen := e.byDriver[c.DriverID]; seen {
			continue
		}
		e.byDriver[c.DriverID] = c
		e.candidates = append(e.candidates, c)
		if !c.Eligible {
			continue
		}
		e.contactedAt[c.DriverID] = now
		e.contacted++
		fresh++
		q.notifier.NotifyOffer(ctx, c.DriverID, Offer{
			RequestID:      e.req.ID,
			Pickup:         e.req.Pickup,
			Destination:    e.req.Destination,
			VehicleClass:   e.req.VehicleClass,
			Passengers:     e.req.Passengers,
			DistanceMeters: c.DistanceMeters,
			PickupETA:      c.PickupETA,
			ExpiresAt:      e.deadline,
		})
	}
	if fresh > 0 {
		e.phase = PhaseAwaiting
		candidatesPerBroadcast.Observe(float64(fresh))
	}
	return fresh, nil
}

// expand widens the radius and re-broadcasts after all contacted drivers
// rejected. Caller holds e.mu. Returns whether matching continues.
func (q *Queue) expand(ctx context.Context, e *entry) bool {
	if e.attempt >= q.cfg.MaxAttempts {
		q.terminate(e, StatusExpired, EntryFailed, PhaseTimedOut)
		requestsTotal.WithLabelValues(string(StatusExpired)).Inc()
		q.log.Info("attempts exhausted", "request_id", e.req.ID, "attempts", e.attempt)
		return false
	}

	e.phase = PhaseExpanding
	e.attempt++
	e.radius *= q.cfg.ExpansionFactor
	expansionsTotal.Inc()
	q.log.Info("expanding search",
		"request_id", e.req.ID, "attempt", e.attempt, "radius_m", e.radius)

	fresh, err := q.broadcast(ctx, e)
	if err != nil {
		q.log.Error("expansion broadcast failed", "request_id", e.req.ID, "error", err)
		fresh = 0
	}
	if fresh == 0 {
		q.terminate(e, StatusNoDrivers, EntryFailed, e.phase)
		requestsTotal.WithLabelValues(string(StatusNoDrivers)).Inc()
		return false
	}
	return true
}

// expire is the deadline timer callback. Idempotent with any concurrent
// resolution: whichever transition is linearized first wins.
func (q *Queue) expire(requestID types.ID) {
	e, err := q.entry(requestID)
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != EntryActive {
		return
	}
	q.terminate(e, StatusExpired, EntryFailed, PhaseTimedOut)
	requestsTotal.WithLabelValues(string(StatusExpired)).Inc()
	q.log.Info("request expired", "request_id", requestID,
		"contacted", e.contacted, "responded", e.responded)
}

// terminate applies a terminal transition and schedules the entry's eviction
// from the queue map. Caller holds e.mu.
func (q *Queue) terminate(e *entry, reqStatus RequestStatus, entryStatus EntryStatus, phase Phase) {
	if CanTransition(e.req.Status, reqStatus) {
		e.req.Status = reqStatus
	}
	e.status = entryStatus
	e.phase = phase
	e.active.Store(false)
	if e.timer != nil {
		e.timer.Stop()
	}
	q.publishLocked(e)
	if q.cfg.TerminalRetention > 0 {
		id := e.req.ID
		q.clock.AfterFunc(q.cfg.TerminalRetention, func() { q.evict(id) })
	}
}

// evict drops a terminal entry once its retention window has passed. Repeat
// responses inside the window still resolve idempotently; after it, they see
// ErrRequestNotFound.
func (q *Queue) evict(requestID types.ID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.entries[requestID]; ok && !e.active.Load() {
		delete(q.entries, requestID)
	}
}

// Status serves the last published snapshot. It never takes the entry mutex,
// so a read cannot wait on a resolution that is mid-claim or mid-materialize.
func (q *Queue) Status(requestID types.ID) (Snapshot, error) {
	e, err := q.entry(requestID)
	if err != nil {
		return Snapshot{}, err
	}
	return q.viewOf(e), nil
}

// viewOf loads the published snapshot and stamps the current queue position,
// which depends on other entries and is cheap to compute at read time.
func (q *Queue) viewOf(e *entry) Snapshot {
	v := *e.view.Load()
	v.QueuePosition = q.position(e)
	return v
}

// publishLocked rebuilds the status view and swaps it in atomically. Caller
// holds e.mu (or owns the entry exclusively, before it is registered).
func (q *Queue) publishLocked(e *entry) {
	v := Snapshot{
		RequestID:        e.req.ID,
		RequestStatus:    e.req.Status,
		Phase:            e.phase,
		EntryStatus:      e.status,
		Attempt:          e.attempt,
		MaxAttempts:      q.cfg.MaxAttempts,
		DriversContacted: e.contacted,
		DriversResponded: e.responded,
		Deadline:         e.deadline,
	}
	e.view.Store(&v)
}

// position counts older still-active requests. Reads only atomics beside the
// queue map lock, so it never waits on another entry's resolution.
func (q *Queue) position(e *entry) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	pos := 0
	for _, other := range q.entries {
		if other.seq < e.seq && other.active.Load() {
			pos++
		}
	}
	return pos
}

func (q *Queue) entry(requestID types.ID) (*entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[requestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return e, nil
}
