package routeform

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"routedesk/internal/apperrors"
	"routedesk/internal/directions"
	"routedesk/internal/fleetapi"
	"routedesk/internal/models"
	"routedesk/internal/store"
)

type recordingPublisher struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (p *recordingPublisher) Publish(s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, s)
}

func newSnapshotStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.DraftRecord{}))
	return store.New(db)
}

func TestRegistryOwnership(t *testing.T) {
	reg := NewRegistry(Deps{}, nil, nil)
	c := reg.Create("u1")

	got, err := reg.Get(context.Background(), c.ID(), "u1")
	require.NoError(t, err)
	assert.Same(t, c, got)

	_, err = reg.Get(context.Background(), c.ID(), "u2")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = reg.Get(context.Background(), "missing", "u1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRegistryPublishesAndSnapshots(t *testing.T) {
	st := newSnapshotStore(t)
	pub := &recordingPublisher{}
	reg := NewRegistry(Deps{Computer: directions.NewComputer(okProvider(), nil)}, st, pub)

	c := reg.Create("u1")
	_, err := c.AddStop(stop("A", "24.86", "67.00"))
	require.NoError(t, err)
	_, err = c.AddStop(stop("B", "24.90", "67.05"))
	require.NoError(t, err)
	_, err = c.Compute(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, pub.snaps)
	assert.Equal(t, StateReady, pub.snaps[len(pub.snaps)-1].State)

	rec, err := st.LoadDraft(context.Background(), c.ID())
	require.NoError(t, err)
	assert.Equal(t, "ready", rec.State)
	assert.Equal(t, "abc123", rec.RoutePolyline)
	assert.Len(t, rec.Stops, 2)
}

func TestRegistryRehydratesAfterRestart(t *testing.T) {
	st := newSnapshotStore(t)
	ctx := context.Background()

	first := NewRegistry(Deps{}, st, nil)
	c := first.Create("u1")
	_, err := c.AddStop(stop("A", "24.86", "67.00"))
	require.NoError(t, err)
	id := c.ID()

	// A mid-flight snapshot left behind by a crash.
	rec := RecordFromSnapshot(c.Snapshot())
	rec.State = string(StateComputing)
	require.NoError(t, st.SaveDraft(ctx, rec))

	second := NewRegistry(Deps{}, st, nil)
	assert.Zero(t, second.Len())

	restored, err := second.Get(ctx, id, "u1")
	require.NoError(t, err)
	snap := restored.Snapshot()
	assert.Equal(t, StateEditing, snap.State)
	require.Len(t, snap.Draft.Stops, 1)
	assert.Equal(t, "A", snap.Draft.Stops[0].Name)
	assert.Equal(t, 1, second.Len())

	_, err = second.Get(ctx, id, "u2")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRegistryDiscardAfterSave(t *testing.T) {
	st := newSnapshotStore(t)
	ctx := context.Background()
	trips := &fakeTrips{}
	reg := NewRegistry(Deps{Computer: directions.NewComputer(okProvider(), nil), Trips: trips}, st, nil)

	c := reg.CreateForTrip("u1", models.Trip{
		ID: "t1",
		Stops: []models.TripStop{
			{Name: "A", Latitude: "24.86", Longitude: "67.00"},
			{Name: "B", Latitude: "24.90", Longitude: "67.05"},
		},
	})
	_, err := c.Compute(ctx)
	require.NoError(t, err)
	_, _, err = c.Save(ctx, fleetapi.Session{Token: "up"})
	require.NoError(t, err)

	reg.Discard(ctx, c.ID())

	_, err = reg.Get(ctx, c.ID(), "u1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, trips.updated, "t1")
}

func TestRegistryDiscardDuringCompute(t *testing.T) {
	st := newSnapshotStore(t)
	ctx := context.Background()
	comp := newBlockingComputer()
	pub := &recordingPublisher{}
	reg := NewRegistry(Deps{Computer: comp}, st, pub)

	c := reg.Create("u1")
	_, err := c.AddStop(stop("A", "24.86", "67.00"))
	require.NoError(t, err)
	_, err = c.AddStop(stop("B", "24.90", "67.05"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := c.Compute(ctx)
		done <- err
	}()
	<-comp.started

	reg.Discard(ctx, c.ID())
	pub.mu.Lock()
	published := len(pub.snaps)
	pub.mu.Unlock()

	comp.release <- &directions.Route{Path: "abc123", TotalKm: 5.32}
	assert.ErrorIs(t, <-done, apperrors.ErrStaleResult)

	_, err = st.LoadDraft(ctx, c.ID())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	stored, err := st.ListDrafts(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, stored)

	_, err = reg.Get(ctx, c.ID(), "u1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	pub.mu.Lock()
	assert.Len(t, pub.snaps, published)
	pub.mu.Unlock()
}
