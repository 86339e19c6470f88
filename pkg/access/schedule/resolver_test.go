package schedule

import (
	"context"
	"testing"

	"github.com/blulok/blulok-cloud/pkg/access/models"
)

// fakeScheduleReader is an in-memory ScheduleReader keyed by user/facility.
type fakeScheduleReader struct {
	bindings   map[string]*models.Schedule // key: userID + "/" + facilityID
	facilities map[string][]string         // userID -> facility IDs
	lockHomes  map[string]string           // lockID -> facilityID
}

func (f *fakeScheduleReader) GetUserFacilitySchedule(ctx context.Context, userID, facilityID string) (*models.Schedule, error) {
	if s, ok := f.bindings[userID+"/"+facilityID]; ok {
		return s, nil
	}
	return nil, models.ErrScheduleNotFound
}

func (f *fakeScheduleReader) ListUserFacilityIDs(ctx context.Context, userID string) ([]string, error) {
	return f.facilities[userID], nil
}

func (f *fakeScheduleReader) GetFacilityIDForLock(ctx context.Context, lockID string) (string, error) {
	if fid, ok := f.lockHomes[lockID]; ok {
		return fid, nil
	}
	return "", models.ErrLockNotFound
}

func windowedSchedule(facilityID string) *models.Schedule {
	return &models.Schedule{
		ID:         "s-" + facilityID,
		FacilityID: facilityID,
		Kind:       string(models.ScheduleKindCustom),
		TimeWindows: []models.ScheduleTimeWindow{
			{DayOfWeek: 1, StartTime: "08:00:00", EndTime: "18:00:00"},
		},
	}
}

func TestResolve_OwnBindingWins(t *testing.T) {
	reader := &fakeScheduleReader{
		bindings: map[string]*models.Schedule{
			"user-1/f1": windowedSchedule("f1"),
		},
		facilities: map[string][]string{
			"user-1": {"f1", "f2"},
		},
	}
	r := NewResolver(reader)

	claim, err := r.Resolve(context.Background(), "user-1", nil, []string{"lock:l1"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if claim == nil {
		t.Fatal("expected a schedule claim")
	}
	if claim.FacilityID != "f1" {
		t.Errorf("facility = %s, want f1", claim.FacilityID)
	}
	if len(claim.TimeWindows) != 1 || claim.TimeWindows[0].StartTime != "08:00:00" {
		t.Errorf("windows = %+v", claim.TimeWindows)
	}
}

func TestResolve_ExplicitScopeOverridesAssociations(t *testing.T) {
	reader := &fakeScheduleReader{
		bindings: map[string]*models.Schedule{
			"user-1/f1": windowedSchedule("f1"),
			"user-1/f2": windowedSchedule("f2"),
		},
		facilities: map[string][]string{
			"user-1": {"f1"},
		},
	}
	r := NewResolver(reader)

	claim, err := r.Resolve(context.Background(), "user-1", []string{"f2"}, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if claim == nil || claim.FacilityID != "f2" {
		t.Errorf("claim = %+v, want facility f2", claim)
	}
}

func TestResolve_NoBindingNoShares(t *testing.T) {
	reader := &fakeScheduleReader{
		facilities: map[string][]string{
			"user-1": {"f1"},
		},
	}
	r := NewResolver(reader)

	claim, err := r.Resolve(context.Background(), "user-1", nil, []string{"lock:l1"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if claim != nil {
		t.Errorf("claim = %+v, want nil without a binding", claim)
	}
}

func TestResolve_EmptyWindowSetYieldsNil(t *testing.T) {
	reader := &fakeScheduleReader{
		bindings: map[string]*models.Schedule{
			"user-1/f1": {
				ID:         "s-empty",
				FacilityID: "f1",
				Kind:       string(models.ScheduleKindPrecanned),
			},
		},
		facilities: map[string][]string{
			"user-1": {"f1"},
		},
	}
	r := NewResolver(reader)

	claim, err := r.Resolve(context.Background(), "user-1", nil, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if claim != nil {
		t.Errorf("claim = %+v, want nil for unrestricted schedule", claim)
	}
}

func TestResolve_SharedKeyInheritance(t *testing.T) {
	reader := &fakeScheduleReader{
		bindings: map[string]*models.Schedule{
			"primary-9/f3": windowedSchedule("f3"),
		},
		lockHomes: map[string]string{
			"l5": "f3",
		},
	}
	r := NewResolver(reader)

	claim, err := r.Resolve(context.Background(), "invitee-1", nil,
		[]string{"shared_key:primary-9:l5"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if claim == nil {
		t.Fatal("expected inherited schedule claim")
	}
	if claim.FacilityID != "f3" {
		t.Errorf("facility = %s, want f3", claim.FacilityID)
	}
}

func TestResolve_SharedKeyUnknownLockSkipped(t *testing.T) {
	reader := &fakeScheduleReader{
		bindings: map[string]*models.Schedule{
			"primary-9/f3": windowedSchedule("f3"),
		},
		lockHomes: map[string]string{
			"l5": "f3",
		},
	}
	r := NewResolver(reader)

	// The first shared audience points at a vanished lock; the next one
	// still resolves.
	claim, err := r.Resolve(context.Background(), "invitee-1", nil,
		[]string{"shared_key:primary-9:gone", "shared_key:primary-9:l5"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if claim == nil || claim.FacilityID != "f3" {
		t.Errorf("claim = %+v, want inherited f3", claim)
	}
}
