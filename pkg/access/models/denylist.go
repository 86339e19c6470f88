package models

import (
	"fmt"
	"time"
)

// DenylistSource records which cascade produced a denylist entry.
type DenylistSource string

const (
	// SourceUserDeactivation is emitted when a user account is deactivated.
	SourceUserDeactivation DenylistSource = "user_deactivation"
	// SourceUnitUnassignment is emitted when a tenant loses a unit.
	SourceUnitUnassignment DenylistSource = "unit_unassignment"
	// SourceFMSSync is emitted when the property-management sync removes
	// a tenancy.
	SourceFMSSync DenylistSource = "fms_sync"
	// SourceKeySharingRevocation is emitted when a shared key is revoked.
	SourceKeySharingRevocation DenylistSource = "key_sharing_revocation"
)

// IsValid checks if the source is a known DenylistSource.
func (s DenylistSource) IsValid() bool {
	switch s {
	case SourceUserDeactivation, SourceUnitUnassignment, SourceFMSSync, SourceKeySharingRevocation:
		return true
	}
	return false
}

// DenylistEntry blocks a user subject on a single lock until ExpiresAt.
// DeviceID references a Lock; at most one live entry exists per
// (device_id, user_id) and re-creation keeps the later expiry.
type DenylistEntry struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	DeviceID  string    `gorm:"uniqueIndex:idx_denylist_device_user;not null;size:36" json:"device_id"`
	UserID    string    `gorm:"uniqueIndex:idx_denylist_device_user;not null;size:36" json:"user_id"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	Source    string    `gorm:"not null;size:50" json:"source"`
	CreatedBy string    `gorm:"size:36" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for DenylistEntry.
func (DenylistEntry) TableName() string {
	return "denylist_entries"
}

// Expired reports whether the entry's removal deadline has passed.
func (e *DenylistEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// Validate checks if the entry has valid configuration.
func (e *DenylistEntry) Validate() error {
	if e.DeviceID == "" {
		return fmt.Errorf("device id is required")
	}
	if e.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if e.ExpiresAt.IsZero() {
		return fmt.Errorf("expires_at is required")
	}
	if !DenylistSource(e.Source).IsValid() {
		return fmt.Errorf("invalid denylist source %q", e.Source)
	}
	return nil
}
