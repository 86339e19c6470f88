package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/blulok/blulok-cloud/pkg/access/models"
)

// issuableStatuses are the device states acceptable for Route Pass issuance.
var issuableStatuses = []string{
	string(models.DeviceStatusPendingKey),
	string(models.DeviceStatusActive),
}

// GetUserByID returns a user by ID.
func (s *GORMStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return getByField[models.User](s.db, ctx, "id", id, models.ErrUserNotFound)
}

// CreateUser creates a user row. Users are normally provisioned by the
// surrounding product; this exists for bootstrap and tests.
func (s *GORMStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(user).Error
}

// DeactivateUser marks a user inactive. The caller is expected to follow up
// with a UserDeactivated cascade event.
func (s *GORMStore) DeactivateUser(ctx context.Context, userID string) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// GetIssuableDevice returns the user's device with the given app device ID,
// provided it is in an issuable state (pending_key or active).
func (s *GORMStore) GetIssuableDevice(ctx context.Context, userID, appDeviceID string) (*models.UserDevice, error) {
	var device models.UserDevice
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND app_device_id = ? AND status IN ?", userID, appDeviceID, issuableStatuses).
		First(&device).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrDeviceNotFound)
	}
	return &device, nil
}

// GetLatestIssuableDevice returns the user's most recently updated device in
// an issuable state. Returns models.ErrNoRegisteredDevice if none exists.
func (s *GORMStore) GetLatestIssuableDevice(ctx context.Context, userID string) (*models.UserDevice, error) {
	var device models.UserDevice
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, issuableStatuses).
		Order("updated_at DESC").
		First(&device).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrNoRegisteredDevice)
	}
	return &device, nil
}

// CreateDevice enrolls a device. The ID is generated if empty.
func (s *GORMStore) CreateDevice(ctx context.Context, device *models.UserDevice) (string, error) {
	if err := device.Validate(); err != nil {
		return "", err
	}
	return createWithID(s.db, ctx, device,
		func(d *models.UserDevice, id string) { d.ID = id },
		device.ID, models.ErrDuplicateDevice)
}

// AttestDeviceKey records the app's public-key attestation, moving the
// device from pending_key to active.
func (s *GORMStore) AttestDeviceKey(ctx context.Context, deviceID, publicKey string) error {
	result := s.db.WithContext(ctx).
		Model(&models.UserDevice{}).
		Where("id = ? AND status = ?", deviceID, string(models.DeviceStatusPendingKey)).
		Updates(map[string]any{
			"public_key": publicKey,
			"status":     string(models.DeviceStatusActive),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrDeviceNotFound
	}
	return nil
}

// RevokeDevice moves a device into the terminal revoked state.
func (s *GORMStore) RevokeDevice(ctx context.Context, deviceID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var device models.UserDevice
		if err := tx.Where("id = ?", deviceID).First(&device).Error; err != nil {
			return convertNotFoundError(err, models.ErrDeviceNotFound)
		}
		return tx.Model(&device).Update("status", string(models.DeviceStatusRevoked)).Error
	})
}
