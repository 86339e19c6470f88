// Package store provides the access core persistence layer.
//
// This package implements the Store interface for the entities the core
// reads and writes: users, enrolled devices, facility topology, unit
// assignments, key sharing, schedules, the denylist, and the Route Pass
// issuance audit log.
//
// Two backends are supported:
//   - SQLite (single-node, default)
//   - PostgreSQL (HA-capable)
package store

import (
	"context"
	"time"

	"github.com/blulok/blulok-cloud/pkg/access/models"
)

// Store provides the access core persistence interface.
//
// Thread Safety: Implementations must be safe for concurrent use from
// multiple goroutines; the denylist table is shared between request
// handlers, the cascade consumer, and the pruner.
type Store interface {
	// ============================================
	// USER OPERATIONS
	// ============================================

	// GetUserByID returns a user by ID.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// CreateUser creates a user row (bootstrap and tests).
	CreateUser(ctx context.Context, user *models.User) error

	// DeactivateUser marks a user inactive.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	DeactivateUser(ctx context.Context, userID string) error

	// ============================================
	// DEVICE OPERATIONS
	// ============================================

	// GetIssuableDevice returns the user's device with the given app device
	// ID if it is pending_key or active.
	// Returns models.ErrDeviceNotFound otherwise.
	GetIssuableDevice(ctx context.Context, userID, appDeviceID string) (*models.UserDevice, error)

	// GetLatestIssuableDevice returns the user's most recently updated
	// pending_key or active device.
	// Returns models.ErrNoRegisteredDevice if none exists.
	GetLatestIssuableDevice(ctx context.Context, userID string) (*models.UserDevice, error)

	// CreateDevice enrolls a device and returns its generated ID.
	CreateDevice(ctx context.Context, device *models.UserDevice) (string, error)

	// AttestDeviceKey records a public-key attestation, moving the device
	// from pending_key to active.
	AttestDeviceKey(ctx context.Context, deviceID, publicKey string) error

	// RevokeDevice moves a device into the terminal revoked state.
	RevokeDevice(ctx context.Context, deviceID string) error

	// ============================================
	// FACILITY TOPOLOGY OPERATIONS
	// ============================================

	CreateFacility(ctx context.Context, facility *models.Facility) error
	CreateUnit(ctx context.Context, unit *models.Unit) error
	CreateLock(ctx context.Context, lock *models.Lock) error

	// GetUnit returns a unit by ID.
	GetUnit(ctx context.Context, unitID string) (*models.Unit, error)

	// GetLock returns a lock by ID.
	GetLock(ctx context.Context, lockID string) (*models.Lock, error)

	// GetFacilityIDForLock resolves a lock's facility via its unit.
	GetFacilityIDForLock(ctx context.Context, lockID string) (string, error)

	// ListAllLocks returns every lock, ordered by ID.
	ListAllLocks(ctx context.Context) ([]models.Lock, error)

	// ListLocksByFacilities returns locks in any of the given facilities.
	// An empty facility list yields an empty result.
	ListLocksByFacilities(ctx context.Context, facilityIDs []string) ([]models.Lock, error)

	// ListLocksByUnit returns the locks mounted on a unit.
	ListLocksByUnit(ctx context.Context, unitID string) ([]models.Lock, error)

	// ListLocksAssignedToTenant returns locks on units assigned to the tenant.
	ListLocksAssignedToTenant(ctx context.Context, tenantID string) ([]models.Lock, error)

	// ============================================
	// ASSIGNMENT AND SHARING OPERATIONS
	// ============================================

	CreateAssignment(ctx context.Context, assignment *models.UnitAssignment) error
	RemoveAssignment(ctx context.Context, unitID, tenantID string) error
	ListAssignmentsByTenant(ctx context.Context, tenantID string) ([]models.UnitAssignment, error)

	CreateKeySharing(ctx context.Context, share *models.KeySharing) (string, error)
	SetKeySharingActive(ctx context.Context, shareID string, active bool) error

	// GetKeySharing returns a key sharing row by ID.
	// Returns models.ErrKeySharingNotFound if absent.
	GetKeySharing(ctx context.Context, shareID string) (*models.KeySharing, error)

	// ListLiveSharedLockGrants returns locks reachable via active, unexpired
	// key sharing, joined down to the facility.
	ListLiveSharedLockGrants(ctx context.Context, userID string, now time.Time) ([]SharedLockGrant, error)

	// ListSharesForUser returns every share naming the user as invitee,
	// regardless of liveness.
	ListSharesForUser(ctx context.Context, userID string) ([]models.KeySharing, error)

	// ============================================
	// SCHEDULE OPERATIONS
	// ============================================

	// CreateSchedule creates a schedule and its windows after validating
	// ordering and per-day overlap.
	CreateSchedule(ctx context.Context, schedule *models.Schedule) (string, error)

	// GetSchedule returns a schedule with its time windows.
	GetSchedule(ctx context.Context, id string) (*models.Schedule, error)

	// BindUserFacilitySchedule sets the user's schedule for a facility.
	BindUserFacilitySchedule(ctx context.Context, userID, facilityID, scheduleID string) error

	// GetUserFacilitySchedule resolves the user's bound schedule for a
	// facility. Returns models.ErrScheduleNotFound without a binding.
	GetUserFacilitySchedule(ctx context.Context, userID, facilityID string) (*models.Schedule, error)

	// ListUserFacilityIDs returns the user's associated facilities in
	// stable order.
	ListUserFacilityIDs(ctx context.Context, userID string) ([]string, error)

	// ============================================
	// DENYLIST OPERATIONS
	// ============================================

	// UpsertDenylistEntry inserts or extends an entry; on conflict the later
	// expires_at wins and source/created_by follow the last writer.
	UpsertDenylistEntry(ctx context.Context, entry *models.DenylistEntry) (string, error)

	ListDenylistByDevice(ctx context.Context, deviceID string) ([]models.DenylistEntry, error)
	ListDenylistByUser(ctx context.Context, userID string) ([]models.DenylistEntry, error)
	FindDenylistByUnitsAndUser(ctx context.Context, unitIDs []string, userID string) ([]models.DenylistEntry, error)

	// RemoveDenylistEntry deletes the entry for a (device, user) pair.
	// Returns models.ErrDenylistEntryNotFound if absent.
	RemoveDenylistEntry(ctx context.Context, deviceID, userID string) error

	// DeleteExpiredDenylist bulk-deletes entries with expires_at <= now and
	// returns the count removed.
	DeleteExpiredDenylist(ctx context.Context, now time.Time) (int64, error)

	// ============================================
	// ISSUANCE OPERATIONS
	// ============================================

	// RecordIssuance appends a Route Pass audit row.
	RecordIssuance(ctx context.Context, issuance *models.RoutePassIssuance) error

	// GetIssuance returns an issuance record by jti.
	GetIssuance(ctx context.Context, jti string) (*models.RoutePassIssuance, error)

	// HasLiveIssuance reports whether the user holds a recorded pass with
	// expires_at > now.
	HasLiveIssuance(ctx context.Context, userID string, now time.Time) (bool, error)

	// Ping verifies the database connection is alive.
	Ping(ctx context.Context) error

	// Close closes the underlying database connection.
	Close() error
}

// Compile-time check that GORMStore satisfies Store.
var _ Store = (*GORMStore)(nil)
