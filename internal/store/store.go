// Package store keeps sessions and draft snapshots in the local database.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"routedesk/internal/apperrors"
	"routedesk/internal/models"
)

// Store wraps the gorm handle.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CreateSession inserts s.
func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns the session with id. Unknown and expired sessions are
// both ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var sess models.Session
	err := s.db.WithContext(ctx).First(&sess, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.Expired(time.Now()) {
		return nil, apperrors.ErrNotFound
	}
	return &sess, nil
}

// DeleteSession removes the session with id.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&models.Session{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpiredSessions deletes sessions that expired before now and returns
// how many were removed.
func (s *Store) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// SaveDraft inserts or replaces a draft snapshot.
func (s *Store) SaveDraft(ctx context.Context, rec *models.DraftRecord) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("save draft %s: %w", rec.ID, err)
	}
	return nil
}

// LoadDraft returns the snapshot for id.
func (s *Store) LoadDraft(ctx context.Context, id string) (*models.DraftRecord, error) {
	var rec models.DraftRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load draft %s: %w", id, err)
	}
	return &rec, nil
}

// DeleteDraft removes the snapshot for id.
func (s *Store) DeleteDraft(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&models.DraftRecord{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete draft %s: %w", id, err)
	}
	return nil
}

// ListDrafts returns the snapshots owned by ownerID, most recently touched
// first.
func (s *Store) ListDrafts(ctx context.Context, ownerID string) ([]models.DraftRecord, error) {
	var recs []models.DraftRecord
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND state <> ?", ownerID, "saved").
		Order("updated_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	return recs, nil
}
