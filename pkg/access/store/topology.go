package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/blulok/blulok-cloud/pkg/access/models"
)

// SharedLockGrant is a live key-sharing grant joined down to the lock, as
// consumed by the audience resolver and the cascade.
type SharedLockGrant struct {
	ShareID         string
	PrimaryTenantID string
	LockID          string
	UnitID          string
	FacilityID      string
}

// CreateFacility creates a facility row.
func (s *GORMStore) CreateFacility(ctx context.Context, facility *models.Facility) error {
	if facility.ID == "" {
		facility.ID = uuid.New().String()
	}
	return s.db.WithContext(ctx).Create(facility).Error
}

// CreateUnit creates a unit row.
func (s *GORMStore) CreateUnit(ctx context.Context, unit *models.Unit) error {
	if unit.ID == "" {
		unit.ID = uuid.New().String()
	}
	return s.db.WithContext(ctx).Create(unit).Error
}

// CreateLock creates a lock row.
func (s *GORMStore) CreateLock(ctx context.Context, lock *models.Lock) error {
	if lock.ID == "" {
		lock.ID = uuid.New().String()
	}
	return s.db.WithContext(ctx).Create(lock).Error
}

// GetUnit returns a unit by ID.
func (s *GORMStore) GetUnit(ctx context.Context, unitID string) (*models.Unit, error) {
	return getByField[models.Unit](s.db, ctx, "id", unitID, models.ErrUnitNotFound)
}

// GetLock returns a lock by ID.
func (s *GORMStore) GetLock(ctx context.Context, lockID string) (*models.Lock, error) {
	return getByField[models.Lock](s.db, ctx, "id", lockID, models.ErrLockNotFound)
}

// GetFacilityIDForLock resolves the facility a lock belongs to via its unit.
func (s *GORMStore) GetFacilityIDForLock(ctx context.Context, lockID string) (string, error) {
	var facilityID string
	err := s.db.WithContext(ctx).
		Model(&models.Lock{}).
		Select("units.facility_id").
		Joins("JOIN units ON units.id = locks.unit_id").
		Where("locks.id = ?", lockID).
		Scan(&facilityID).Error
	if err != nil {
		return "", err
	}
	if facilityID == "" {
		return "", models.ErrLockNotFound
	}
	return facilityID, nil
}

// ListAllLocks returns every lock in the system, ordered by ID.
func (s *GORMStore) ListAllLocks(ctx context.Context) ([]models.Lock, error) {
	var locks []models.Lock
	err := s.db.WithContext(ctx).Order("id").Find(&locks).Error
	return locks, err
}

// ListLocksByFacilities returns the locks in any of the given facilities,
// ordered by ID. An empty facility list yields an empty result.
func (s *GORMStore) ListLocksByFacilities(ctx context.Context, facilityIDs []string) ([]models.Lock, error) {
	if len(facilityIDs) == 0 {
		return []models.Lock{}, nil
	}
	var locks []models.Lock
	err := s.db.WithContext(ctx).
		Joins("JOIN units ON units.id = locks.unit_id").
		Where("units.facility_id IN ?", facilityIDs).
		Order("locks.id").
		Find(&locks).Error
	return locks, err
}

// ListLocksByUnit returns the locks mounted on a unit, ordered by ID.
func (s *GORMStore) ListLocksByUnit(ctx context.Context, unitID string) ([]models.Lock, error) {
	var locks []models.Lock
	err := s.db.WithContext(ctx).
		Where("unit_id = ?", unitID).
		Order("id").
		Find(&locks).Error
	return locks, err
}

// ListLocksAssignedToTenant returns the locks on units the tenant is
// assigned to, ordered by ID.
func (s *GORMStore) ListLocksAssignedToTenant(ctx context.Context, tenantID string) ([]models.Lock, error) {
	var locks []models.Lock
	err := s.db.WithContext(ctx).
		Joins("JOIN unit_assignments ON unit_assignments.unit_id = locks.unit_id").
		Where("unit_assignments.tenant_id = ?", tenantID).
		Order("locks.id").
		Find(&locks).Error
	return locks, err
}

// CreateAssignment binds a tenant to a unit.
func (s *GORMStore) CreateAssignment(ctx context.Context, assignment *models.UnitAssignment) error {
	return s.db.WithContext(ctx).Create(assignment).Error
}

// RemoveAssignment removes a tenant's binding to a unit. The caller is
// expected to follow up with a TenantUnassigned cascade event.
func (s *GORMStore) RemoveAssignment(ctx context.Context, unitID, tenantID string) error {
	result := s.db.WithContext(ctx).
		Where("unit_id = ? AND tenant_id = ?", unitID, tenantID).
		Delete(&models.UnitAssignment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUnitNotFound
	}
	return nil
}

// ListAssignmentsByTenant returns the tenant's unit assignments.
func (s *GORMStore) ListAssignmentsByTenant(ctx context.Context, tenantID string) ([]models.UnitAssignment, error) {
	var assignments []models.UnitAssignment
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("unit_id").
		Find(&assignments).Error
	return assignments, err
}

// CreateKeySharing creates a share row. The ID is generated if empty.
func (s *GORMStore) CreateKeySharing(ctx context.Context, share *models.KeySharing) (string, error) {
	if share.ID == "" {
		share.ID = uuid.New().String()
	}
	if err := s.db.WithContext(ctx).Create(share).Error; err != nil {
		return "", err
	}
	return share.ID, nil
}

// SetKeySharingActive flips a share's active flag. The caller is expected to
// follow up with a KeySharingRevoked cascade event on deactivation.
func (s *GORMStore) SetKeySharingActive(ctx context.Context, shareID string, active bool) error {
	result := s.db.WithContext(ctx).
		Model(&models.KeySharing{}).
		Where("id = ?", shareID).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrKeySharingNotFound
	}
	return nil
}

// GetKeySharing returns a key sharing row by ID.
func (s *GORMStore) GetKeySharing(ctx context.Context, shareID string) (*models.KeySharing, error) {
	return getByField[models.KeySharing](s.db, ctx, "id", shareID, models.ErrKeySharingNotFound)
}

// ListLiveSharedLockGrants returns the locks reachable by the user through
// key sharing that is active and unexpired at the given instant, joined down
// to the facility. Ordered by lock ID.
func (s *GORMStore) ListLiveSharedLockGrants(ctx context.Context, userID string, now time.Time) ([]SharedLockGrant, error) {
	var grants []SharedLockGrant
	err := s.db.WithContext(ctx).
		Table("key_sharing").
		Select(`key_sharing.id AS share_id,
			key_sharing.primary_tenant_id,
			locks.id AS lock_id,
			units.id AS unit_id,
			units.facility_id`).
		Joins("JOIN units ON units.id = key_sharing.unit_id").
		Joins("JOIN locks ON locks.unit_id = units.id").
		Where("key_sharing.shared_with_user_id = ? AND key_sharing.is_active = ?", userID, true).
		Where("key_sharing.expires_at IS NULL OR key_sharing.expires_at > ?", now).
		Order("locks.id").
		Scan(&grants).Error
	return grants, err
}

// ListSharesForUser returns every share row where the user is the invitee,
// regardless of liveness. Used by the deactivation cascade, which denylists
// shared locks even when the share has already lapsed.
func (s *GORMStore) ListSharesForUser(ctx context.Context, userID string) ([]models.KeySharing, error) {
	var shares []models.KeySharing
	err := s.db.WithContext(ctx).
		Where("shared_with_user_id = ?", userID).
		Order("id").
		Find(&shares).Error
	return shares, err
}
