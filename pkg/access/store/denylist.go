package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blulok/blulok-cloud/pkg/access/models"
)

// UpsertDenylistEntry inserts a denylist entry, or, when a live entry for
// the same (device_id, user_id) pair already exists, extends it: expires_at
// becomes the later of the two values, source and created_by follow the last
// writer. Returns the entry ID.
//
// The read-modify-write runs in a transaction rather than a dialect-specific
// ON CONFLICT expression so the max-expiry rule behaves identically on
// SQLite and PostgreSQL.
func (s *GORMStore) UpsertDenylistEntry(ctx context.Context, entry *models.DenylistEntry) (string, error) {
	if err := entry.Validate(); err != nil {
		return "", err
	}

	var id string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.DenylistEntry
		err := tx.Where("device_id = ? AND user_id = ?", entry.DeviceID, entry.UserID).
			First(&existing).Error
		switch {
		case err == nil:
			expires := existing.ExpiresAt
			if entry.ExpiresAt.After(expires) {
				expires = entry.ExpiresAt
			}
			id = existing.ID
			return tx.Model(&existing).Updates(map[string]any{
				"expires_at": expires,
				"source":     entry.Source,
				"created_by": entry.CreatedBy,
			}).Error
		case err == gorm.ErrRecordNotFound:
			if entry.ID == "" {
				entry.ID = uuid.New().String()
			}
			id = entry.ID
			return tx.Create(entry).Error
		default:
			return err
		}
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListDenylistByDevice returns all entries targeting a lock device.
func (s *GORMStore) ListDenylistByDevice(ctx context.Context, deviceID string) ([]models.DenylistEntry, error) {
	var entries []models.DenylistEntry
	err := s.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("user_id").
		Find(&entries).Error
	return entries, err
}

// ListDenylistByUser returns all entries denying a user subject.
func (s *GORMStore) ListDenylistByUser(ctx context.Context, userID string) ([]models.DenylistEntry, error) {
	var entries []models.DenylistEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("device_id").
		Find(&entries).Error
	return entries, err
}

// FindDenylistByUnitsAndUser returns the user's entries on locks mounted on
// any of the given units.
func (s *GORMStore) FindDenylistByUnitsAndUser(ctx context.Context, unitIDs []string, userID string) ([]models.DenylistEntry, error) {
	if len(unitIDs) == 0 {
		return []models.DenylistEntry{}, nil
	}
	var entries []models.DenylistEntry
	err := s.db.WithContext(ctx).
		Joins("JOIN locks ON locks.id = denylist_entries.device_id").
		Where("locks.unit_id IN ? AND denylist_entries.user_id = ?", unitIDs, userID).
		Order("denylist_entries.device_id").
		Find(&entries).Error
	return entries, err
}

// RemoveDenylistEntry deletes the entry for a (device, user) pair.
func (s *GORMStore) RemoveDenylistEntry(ctx context.Context, deviceID, userID string) error {
	result := s.db.WithContext(ctx).
		Where("device_id = ? AND user_id = ?", deviceID, userID).
		Delete(&models.DenylistEntry{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrDenylistEntryNotFound
	}
	return nil
}

// DeleteExpiredDenylist removes every entry whose expires_at is at or before
// the given instant, in a single bulk delete. Returns the count removed.
func (s *GORMStore) DeleteExpiredDenylist(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.DenylistEntry{})
	return result.RowsAffected, result.Error
}
