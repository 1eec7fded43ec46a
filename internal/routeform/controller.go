package routeform

import (
	"context"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"routedesk/internal/apperrors"
	"routedesk/internal/directions"
	"routedesk/internal/fleetapi"
	"routedesk/internal/geo"
	"routedesk/internal/metrics"
	"routedesk/internal/models"
	"routedesk/internal/stops"
)

// State is a step of the draft workflow.
type State string

const (
	StateEmpty     State = "empty"
	StateEditing   State = "editing"
	StateComputing State = "computing"
	StateReady     State = "ready"
	StateSaving    State = "saving"
	StateSaved     State = "saved"
	StateFailed    State = "failed"
)

// Stable reports whether s survives a restart as is. In-flight states do not.
func (s State) Stable() bool {
	return s != StateComputing && s != StateSaving
}

// RouteComputer computes a route through ordered points.
type RouteComputer interface {
	Compute(ctx context.Context, pts []geo.Point) (*directions.Route, error)
}

// TripStore persists trips.
type TripStore interface {
	CreateTrip(ctx context.Context, s fleetapi.Session, p models.TripPayload) error
	UpdateTrip(ctx context.Context, s fleetapi.Session, id string, p models.TripPayload) error
	ListTrips(ctx context.Context, s fleetapi.Session) ([]models.Trip, error)
}

// Snapshot is a consistent copy of a controller's state.
type Snapshot struct {
	ID         string `json:"id"`
	OwnerID    string `json:"-"`
	EditID     string `json:"edit_id,omitempty"`
	State      State  `json:"state"`
	Generation uint64 `json:"generation"`
	Error      string `json:"error,omitempty"`
	Draft      Draft  `json:"draft"`
}

// Observer is told about every change. It runs with the controller locked and
// must not call back into it.
type Observer func(Snapshot)

// Deps are the capabilities a controller works with.
type Deps struct {
	Computer RouteComputer
	Trips    TripStore
	Metrics  *metrics.Metrics
	Observer Observer
}

// Controller owns one draft. All methods are safe for concurrent use; network
// calls are made without the lock held.
type Controller struct {
	mu sync.Mutex

	id      string
	ownerID string
	editID  string

	state      State
	generation uint64
	lastErr    string
	closed     bool

	draft Draft
	stops *stops.Collection

	deps Deps
}

// New returns a controller for a fresh draft.
func New(id, ownerID string, deps Deps) *Controller {
	return &Controller{
		id:      id,
		ownerID: ownerID,
		state:   StateEmpty,
		stops:   stops.New(nil),
		deps:    deps,
	}
}

// NewForTrip returns a controller editing an existing trip. It stays Empty
// until the first change.
func NewForTrip(id, ownerID string, trip models.Trip, deps Deps) *Controller {
	c := New(id, ownerID, deps)
	c.editID = trip.ID
	c.load(FromTrip(trip))
	return c
}

// Restore rebuilds a controller from a snapshot. A draft caught mid-flight
// comes back as Editing.
func Restore(snap Snapshot, deps Deps) *Controller {
	c := New(snap.ID, snap.OwnerID, deps)
	c.editID = snap.EditID
	c.generation = snap.Generation
	c.lastErr = snap.Error
	c.load(snap.Draft)
	c.state = snap.State
	if !c.state.Stable() {
		c.state = StateEditing
	}
	return c
}

func (c *Controller) load(d Draft) {
	c.stops = stops.New(d.Stops)
	d.Stops = nil
	c.draft = d
}

// ID returns the draft id.
func (c *Controller) ID() string { return c.id }

// OwnerID returns the id of the user the draft belongs to.
func (c *Controller) OwnerID() string { return c.ownerID }

// Close retires the draft. Later calls fail with ErrNotFound, a computation
// in flight becomes stale, and the observer hears nothing more.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.generation++
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	d := c.draft
	d.Stops = c.stops.Stops()
	return Snapshot{
		ID:         c.id,
		OwnerID:    c.ownerID,
		EditID:     c.editID,
		State:      c.state,
		Generation: c.generation,
		Error:      c.lastErr,
		Draft:      d,
	}
}

// SetFields updates form fields. The cached route is kept, and so is a
// computation in flight.
func (c *Controller) SetFields(f Fields) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return Snapshot{}, err
	}
	f.apply(&c.draft)
	if c.state == StateComputing {
		c.notifyLocked()
	} else {
		c.enterLocked(StateEditing, "")
	}
	return c.snapshotLocked(), nil
}

// AddStop appends a stop.
func (c *Controller) AddStop(s stops.Stop) (Snapshot, error) {
	return c.mutateStops(func(col *stops.Collection) error {
		col.Add(s)
		return nil
	})
}

// UpdateStop replaces one field of the stop at index.
func (c *Controller) UpdateStop(index int, field, value string) (Snapshot, error) {
	return c.mutateStops(func(col *stops.Collection) error {
		if err := col.Update(index, field, value); err != nil {
			return apperrors.Validation("stops", "%v", err)
		}
		return nil
	})
}

// RemoveStop deletes the stop at index.
func (c *Controller) RemoveStop(index int) (Snapshot, error) {
	return c.mutateStops(func(col *stops.Collection) error {
		if err := col.Remove(index); err != nil {
			return apperrors.Validation("stops", "%v", err)
		}
		return nil
	})
}

// MoveStop relocates the stop at from to position to.
func (c *Controller) MoveStop(from, to int) (Snapshot, error) {
	return c.mutateStops(func(col *stops.Collection) error {
		if err := col.Move(from, to); err != nil {
			return apperrors.Validation("stops", "%v", err)
		}
		return nil
	})
}

// StopCount returns the number of stops.
func (c *Controller) StopCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops.Len()
}

// mutateStops applies fn and invalidates the cached route. The generation is
// bumped so an in-flight computation for the old stops is discarded.
func (c *Controller) mutateStops(fn func(*stops.Collection) error) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return Snapshot{}, err
	}
	if err := fn(c.stops); err != nil {
		return Snapshot{}, err
	}
	c.generation++
	c.draft.RoutePolyline = ""
	c.enterLocked(StateEditing, "")
	return c.snapshotLocked(), nil
}

// Compute asks the route computer for a route through the current stops. A
// newer compute request or any stop change while this one is in flight makes
// its result stale: it is dropped and ErrStaleResult returned.
func (c *Controller) Compute(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return Snapshot{}, err
	}
	pts, err := c.routePointsLocked()
	if err != nil {
		c.enterLocked(StateEditing, err.Error())
		c.mu.Unlock()
		return Snapshot{}, err
	}
	c.generation++
	gen := c.generation
	c.enterLocked(StateComputing, "")
	computer := c.deps.Computer
	c.mu.Unlock()

	var route *directions.Route
	if computer == nil {
		err = &apperrors.ExternalServiceError{Service: "directions", Err: apperrors.ErrUnavailable}
	} else {
		route, err = computer.Compute(ctx, pts)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.deps.Metrics.ObserveStale()
		logrus.WithFields(logrus.Fields{
			"draft_id":   c.id,
			"generation": gen,
			"current":    c.generation,
		}).Info("Discarding stale route result")
		return Snapshot{}, apperrors.ErrStaleResult
	}
	if err != nil {
		c.enterLocked(StateFailed, err.Error())
		logrus.WithError(err).WithField("draft_id", c.id).Warn("Route computation failed")
		return c.snapshotLocked(), err
	}

	c.draft.RoutePolyline = route.Path
	c.draft.TotalKm = strconv.FormatFloat(route.TotalKm, 'f', -1, 64)
	c.enterLocked(StateReady, "")
	return c.snapshotLocked(), nil
}

// routePointsLocked checks the stops are ready for computation.
func (c *Controller) routePointsLocked() ([]geo.Point, error) {
	if c.stops.Len() < 2 {
		return nil, apperrors.Validation("stops", "at least 2 stops are required")
	}
	pts, invalid := c.stops.Points()
	if len(invalid) > 0 {
		return nil, apperrors.Validation("stops", "stop %d has invalid coordinates", invalid[0]+1)
	}
	return pts, nil
}

// Save persists the draft: an update when it was opened from a trip, a create
// otherwise. On success the refreshed trip list is returned; a failed refresh
// is logged and yields a nil list.
func (c *Controller) Save(ctx context.Context, s fleetapi.Session) (Snapshot, []models.Trip, error) {
	c.mu.Lock()
	if c.closed || c.state == StateSaved {
		c.mu.Unlock()
		return Snapshot{}, nil, apperrors.ErrNotFound
	}
	if c.state == StateSaving || c.state == StateComputing {
		c.mu.Unlock()
		return Snapshot{}, nil, apperrors.ErrBusy
	}
	d := c.draft
	d.Stops = c.stops.Stops()
	payload, err := d.payload()
	if err != nil {
		c.lastErr = err.Error()
		c.notifyLocked()
		c.mu.Unlock()
		return Snapshot{}, nil, err
	}
	prev := c.state
	c.enterLocked(StateSaving, "")
	editID := c.editID
	trips := c.deps.Trips
	c.mu.Unlock()

	if trips == nil {
		err = &apperrors.NetworkError{Op: "save_trip", Err: apperrors.ErrUnavailable}
	} else if editID != "" {
		err = trips.UpdateTrip(ctx, s, editID, payload)
	} else {
		err = trips.CreateTrip(ctx, s, payload)
	}

	c.mu.Lock()
	if err != nil {
		c.enterLocked(StateFailed, err.Error())
		snap := c.snapshotLocked()
		c.mu.Unlock()
		logrus.WithError(err).WithFields(logrus.Fields{
			"draft_id": c.id,
			"edit_id":  editID,
			"from":     prev,
		}).Error("Failed to save trip")
		return snap, nil, err
	}
	c.enterLocked(StateSaved, "")
	snap := c.snapshotLocked()
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{"draft_id": c.id, "edit_id": editID}).Info("Trip saved")

	list, lerr := trips.ListTrips(ctx, s)
	if lerr != nil {
		logrus.WithError(lerr).WithField("draft_id", c.id).Warn("Failed to refresh trips after save")
		return snap, nil, nil
	}
	return snap, list, nil
}

func (c *Controller) editableLocked() error {
	if c.closed {
		return apperrors.ErrNotFound
	}
	switch c.state {
	case StateSaved:
		return apperrors.ErrNotFound
	case StateSaving:
		return apperrors.ErrBusy
	}
	return nil
}

func (c *Controller) enterLocked(s State, errMsg string) {
	changed := c.state != s
	c.state = s
	c.lastErr = errMsg
	if changed {
		c.deps.Metrics.ObserveTransition(string(s))
	}
	c.notifyLocked()
}

func (c *Controller) notifyLocked() {
	if !c.closed && c.deps.Observer != nil {
		c.deps.Observer(c.snapshotLocked())
	}
}
