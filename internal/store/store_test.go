package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"routedesk/internal/apperrors"
	"routedesk/internal/geo"
	"routedesk/internal/models"
	"routedesk/internal/stops"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.Session{}, &models.DraftRecord{}))
	return New(db)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := &models.Session{
		ID:            "s1",
		UserID:        "u1",
		Role:          models.RoleAdmin,
		UpstreamToken: "up",
		ExpiresAt:     time.Now().Add(time.Hour),
	}
	require.NoError(t, s.CreateSession(ctx, sess))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "up", got.UpstreamToken)
	assert.Equal(t, "u1", got.UserID)

	require.NoError(t, s.DeleteSession(ctx, "s1"))
	_, err = s.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestExpiredSessionIsNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, &models.Session{ID: "old", UpstreamToken: "up", ExpiresAt: time.Now().Add(-time.Minute)}))
	require.NoError(t, s.CreateSession(ctx, &models.Session{ID: "new", UpstreamToken: "up", ExpiresAt: time.Now().Add(time.Hour)}))

	_, err := s.GetSession(ctx, "old")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	n, err := s.PurgeExpiredSessions(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetSession(ctx, "new")
	assert.NoError(t, err)
}

func TestDraftSnapshotUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &models.DraftRecord{
		ID:      "d1",
		OwnerID: "u1",
		State:   "editing",
		Stops: []stops.Stop{
			{Name: "A", Latitude: geo.Input("24.86"), Longitude: geo.Input("67.00"), Order: 1},
		},
	}
	require.NoError(t, s.SaveDraft(ctx, rec))

	rec.State = "ready"
	rec.RoutePolyline = "abc123"
	rec.Generation = 3
	rec.Stops = append(rec.Stops, stops.Stop{Name: "B", Latitude: "24.90", Longitude: "67.05", Order: 2})
	require.NoError(t, s.SaveDraft(ctx, rec))

	got, err := s.LoadDraft(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "ready", got.State)
	assert.Equal(t, "abc123", got.RoutePolyline)
	assert.Equal(t, uint64(3), got.Generation)
	require.Len(t, got.Stops, 2)
	assert.Equal(t, geo.Input("67.00"), got.Stops[0].Longitude)

	list, err := s.ListDrafts(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteDraft(ctx, "d1"))
	_, err = s.LoadDraft(ctx, "d1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
