package models

import "errors"

// Common errors for access core operations.
var (
	// User errors
	ErrUserNotFound = errors.New("user not found")

	// Device errors
	ErrDeviceNotFound     = errors.New("device not found")
	ErrNoRegisteredDevice = errors.New("user has no registered device")
	ErrDeviceKeyMissing   = errors.New("device has no public key")
	ErrDuplicateDevice    = errors.New("device already registered")

	// Facility topology errors
	ErrFacilityNotFound = errors.New("facility not found")
	ErrUnitNotFound     = errors.New("unit not found")
	ErrLockNotFound     = errors.New("lock not found")

	// Sharing errors
	ErrKeySharingNotFound = errors.New("key sharing not found")

	// Schedule errors
	ErrScheduleNotFound  = errors.New("schedule not found")
	ErrDuplicateSchedule = errors.New("schedule already exists")

	// Denylist errors
	ErrDenylistEntryNotFound = errors.New("denylist entry not found")

	// Issuance errors
	ErrIssuanceNotFound = errors.New("route pass issuance not found")
)
