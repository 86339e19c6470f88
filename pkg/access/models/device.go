package models

import (
	"encoding/base64"
	"fmt"
	"time"
)

// DeviceStatus represents the lifecycle state of a registered mobile device.
type DeviceStatus string

const (
	// DeviceStatusPendingKey means the device row exists but the app has not
	// yet attested its public key. Still eligible for Route Pass issuance.
	DeviceStatusPendingKey DeviceStatus = "pending_key"
	// DeviceStatusActive means the device holds an attested key.
	DeviceStatusActive DeviceStatus = "active"
	// DeviceStatusRevoked is terminal; the user must re-enroll.
	DeviceStatusRevoked DeviceStatus = "revoked"
)

// IsValid checks if the status is a known DeviceStatus.
func (s DeviceStatus) IsValid() bool {
	return s == DeviceStatusPendingKey || s == DeviceStatusActive || s == DeviceStatusRevoked
}

// Issuable reports whether a device in this status may receive a Route Pass.
func (s DeviceStatus) Issuable() bool {
	return s == DeviceStatusPendingKey || s == DeviceStatusActive
}

// UserDevice is a mobile device enrolled by a user. A user may have many
// devices, at most one non-revoked per (user_id, app_device_id).
//
// PublicKey is the base64url (unpadded) encoding of a 32-byte Ed25519 key.
type UserDevice struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      string    `gorm:"index;not null;size:36" json:"user_id"`
	AppDeviceID string    `gorm:"index;not null;size:255" json:"app_device_id"`
	Status      string    `gorm:"not null;size:50" json:"status"`
	PublicKey   string    `gorm:"size:64" json:"public_key"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for UserDevice.
func (UserDevice) TableName() string {
	return "user_devices"
}

// GetStatus returns the device status as a DeviceStatus type.
func (d *UserDevice) GetStatus() DeviceStatus {
	return DeviceStatus(d.Status)
}

// DecodePublicKey decodes the stored base64url public key and validates that
// it is exactly 32 bytes.
func (d *UserDevice) DecodePublicKey() ([]byte, error) {
	if d.PublicKey == "" {
		return nil, fmt.Errorf("device %s has no public key", d.ID)
	}
	raw, err := base64.RawURLEncoding.DecodeString(d.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("device %s public key is not base64url: %w", d.ID, err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("device %s public key is %d bytes, want 32", d.ID, len(raw))
	}
	return raw, nil
}

// Validate checks if the device has valid configuration.
func (d *UserDevice) Validate() error {
	if d.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if d.AppDeviceID == "" {
		return fmt.Errorf("app device id is required")
	}
	if !DeviceStatus(d.Status).IsValid() {
		return fmt.Errorf("invalid device status %q", d.Status)
	}
	return nil
}
