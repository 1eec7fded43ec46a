package routeform

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"routedesk/internal/apperrors"
	"routedesk/internal/geo"
	"routedesk/internal/models"
)

// SnapshotStore keeps draft snapshots across restarts.
type SnapshotStore interface {
	SaveDraft(ctx context.Context, rec *models.DraftRecord) error
	LoadDraft(ctx context.Context, id string) (*models.DraftRecord, error)
	DeleteDraft(ctx context.Context, id string) error
}

// Publisher fans draft changes out to listeners.
type Publisher interface {
	Publish(Snapshot)
}

// Registry holds the open drafts. Each draft belongs to the user who opened
// it; other users see it as not found.
type Registry struct {
	mu     sync.Mutex
	drafts map[string]*Controller

	deps  Deps
	store SnapshotStore
	pub   Publisher
}

// NewRegistry returns a registry whose controllers share deps. store and pub
// may be nil.
func NewRegistry(deps Deps, store SnapshotStore, pub Publisher) *Registry {
	return &Registry{
		drafts: make(map[string]*Controller),
		deps:   deps,
		store:  store,
		pub:    pub,
	}
}

// Create opens a new empty draft for ownerID.
func (r *Registry) Create(ownerID string) *Controller {
	c := New(uuid.NewString(), ownerID, r.controllerDeps())
	r.add(c)
	return c
}

// CreateForTrip opens a draft editing trip.
func (r *Registry) CreateForTrip(ownerID string, trip models.Trip) *Controller {
	c := NewForTrip(uuid.NewString(), ownerID, trip, r.controllerDeps())
	r.add(c)
	return c
}

func (r *Registry) add(c *Controller) {
	r.mu.Lock()
	r.drafts[c.ID()] = c
	r.mu.Unlock()
	r.persist(c.Snapshot())
}

// Get returns the draft id owned by ownerID, rehydrating it from the
// snapshot store when it is not in memory.
func (r *Registry) Get(ctx context.Context, id, ownerID string) (*Controller, error) {
	r.mu.Lock()
	c, ok := r.drafts[id]
	r.mu.Unlock()

	if !ok {
		var err error
		c, err = r.rehydrate(ctx, id)
		if err != nil {
			return nil, err
		}
	}
	if c.OwnerID() != ownerID {
		return nil, apperrors.ErrNotFound
	}
	return c, nil
}

func (r *Registry) rehydrate(ctx context.Context, id string) (*Controller, error) {
	if r.store == nil {
		return nil, apperrors.ErrNotFound
	}
	rec, err := r.store.LoadDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	if State(rec.State) == StateSaved {
		return nil, apperrors.ErrNotFound
	}

	c := Restore(SnapshotFromRecord(rec), r.controllerDeps())

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another request may have restored it first.
	if existing, ok := r.drafts[id]; ok {
		return existing, nil
	}
	r.drafts[id] = c
	logrus.WithFields(logrus.Fields{"draft_id": id, "state": c.Snapshot().State}).Info("Draft restored from snapshot")
	return c, nil
}

// Discard drops a draft from memory and from the snapshot store. The
// controller is closed first so a computation still in flight cannot write
// the snapshot back.
func (r *Registry) Discard(ctx context.Context, id string) {
	r.mu.Lock()
	c, ok := r.drafts[id]
	delete(r.drafts, id)
	r.mu.Unlock()
	if ok {
		c.Close()
	}

	if r.store == nil {
		return
	}
	if err := r.store.DeleteDraft(ctx, id); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		logrus.WithError(err).WithField("draft_id", id).Warn("Failed to delete draft snapshot")
	}
}

// Len returns the number of drafts in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.drafts)
}

func (r *Registry) controllerDeps() Deps {
	d := r.deps
	next := d.Observer
	d.Observer = func(s Snapshot) {
		r.persist(s)
		if r.pub != nil {
			r.pub.Publish(s)
		}
		if next != nil {
			next(s)
		}
	}
	return d
}

func (r *Registry) persist(s Snapshot) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveDraft(context.Background(), RecordFromSnapshot(s)); err != nil {
		logrus.WithError(err).WithField("draft_id", s.ID).Warn("Failed to snapshot draft")
	}
}

// RecordFromSnapshot converts a snapshot to its stored form.
func RecordFromSnapshot(s Snapshot) *models.DraftRecord {
	geometry, err := geo.PathWKB(s.Draft.RoutePolyline)
	if err != nil {
		logrus.WithError(err).WithField("draft_id", s.ID).Warn("Route path does not decode, storing without geometry")
	}
	return &models.DraftRecord{
		ID:            s.ID,
		OwnerID:       s.OwnerID,
		EditID:        s.EditID,
		RouteName:     s.Draft.RouteName,
		Driver:        s.Draft.Driver,
		Bus:           s.Draft.Bus,
		StartTime:     s.Draft.StartTime,
		EndTime:       s.Draft.EndTime,
		TotalKm:       s.Draft.TotalKm,
		Stops:         s.Draft.Stops,
		RoutePolyline: s.Draft.RoutePolyline,
		Geometry:      geometry,
		State:         string(s.State),
		Generation:    s.Generation,
		LastError:     s.Error,
	}
}

// SnapshotFromRecord is the inverse of RecordFromSnapshot.
func SnapshotFromRecord(rec *models.DraftRecord) Snapshot {
	return Snapshot{
		ID:         rec.ID,
		OwnerID:    rec.OwnerID,
		EditID:     rec.EditID,
		State:      State(rec.State),
		Generation: rec.Generation,
		Error:      rec.LastError,
		Draft: Draft{
			RouteName:     rec.RouteName,
			Driver:        rec.Driver,
			Bus:           rec.Bus,
			StartTime:     rec.StartTime,
			EndTime:       rec.EndTime,
			TotalKm:       rec.TotalKm,
			Stops:         rec.Stops,
			RoutePolyline: rec.RoutePolyline,
		},
	}
}
