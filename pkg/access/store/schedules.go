package store

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blulok/blulok-cloud/pkg/access/models"
)

// CreateSchedule creates a schedule with its time windows. The window set is
// validated for ordering and per-day overlap before anything is written.
func (s *GORMStore) CreateSchedule(ctx context.Context, schedule *models.Schedule) (string, error) {
	if err := schedule.Validate(); err != nil {
		return "", err
	}
	if schedule.ID == "" {
		schedule.ID = uuid.New().String()
	}
	for i := range schedule.TimeWindows {
		if schedule.TimeWindows[i].ID == "" {
			schedule.TimeWindows[i].ID = uuid.New().String()
		}
		schedule.TimeWindows[i].ScheduleID = schedule.ID
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("TimeWindows").Create(schedule).Error; err != nil {
			if isUniqueConstraintError(err) {
				return models.ErrDuplicateSchedule
			}
			return err
		}
		if len(schedule.TimeWindows) == 0 {
			return nil
		}
		return tx.Create(&schedule.TimeWindows).Error
	})
	if err != nil {
		return "", err
	}
	return schedule.ID, nil
}

// GetSchedule returns a schedule with its time windows.
func (s *GORMStore) GetSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	return getByField[models.Schedule](s.db, ctx, "id", id, models.ErrScheduleNotFound, "TimeWindows")
}

// BindUserFacilitySchedule sets the user's schedule for a facility,
// replacing any previous binding.
func (s *GORMStore) BindUserFacilitySchedule(ctx context.Context, userID, facilityID, scheduleID string) error {
	binding := &models.UserFacilitySchedule{
		UserID:     userID,
		FacilityID: facilityID,
		ScheduleID: scheduleID,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "facility_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"schedule_id"}),
		}).
		Create(binding).Error
}

// GetUserFacilitySchedule resolves the user's bound schedule for a facility,
// with its time windows. Returns models.ErrScheduleNotFound if the user has
// no binding there.
func (s *GORMStore) GetUserFacilitySchedule(ctx context.Context, userID, facilityID string) (*models.Schedule, error) {
	var binding models.UserFacilitySchedule
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND facility_id = ?", userID, facilityID).
		First(&binding).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrScheduleNotFound)
	}
	return s.GetSchedule(ctx, binding.ScheduleID)
}

// ListUserFacilityIDs returns the facilities the user is associated with,
// through unit assignment or key sharing, in stable (sorted) order.
func (s *GORMStore) ListUserFacilityIDs(ctx context.Context, userID string) ([]string, error) {
	var assigned []string
	err := s.db.WithContext(ctx).
		Model(&models.UnitAssignment{}).
		Distinct("units.facility_id").
		Joins("JOIN units ON units.id = unit_assignments.unit_id").
		Where("unit_assignments.tenant_id = ?", userID).
		Pluck("units.facility_id", &assigned).Error
	if err != nil {
		return nil, err
	}

	var shared []string
	err = s.db.WithContext(ctx).
		Model(&models.KeySharing{}).
		Distinct("units.facility_id").
		Joins("JOIN units ON units.id = key_sharing.unit_id").
		Where("key_sharing.shared_with_user_id = ? AND key_sharing.is_active = ?", userID, true).
		Pluck("units.facility_id", &shared).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(assigned)+len(shared))
	var out []string
	for _, id := range append(assigned, shared...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
