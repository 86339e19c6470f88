// Package schedule resolves the optional schedule claim carried in a Route
// Pass: the user's own per-facility time windows, or, for shared keys, the
// windows inherited from the primary tenant.
package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/blulok/blulok-cloud/pkg/access/audience"
	"github.com/blulok/blulok-cloud/pkg/access/models"
	"github.com/blulok/blulok-cloud/pkg/access/signing"
)

// ScheduleReader is the slice of the store the resolver needs.
type ScheduleReader interface {
	GetUserFacilitySchedule(ctx context.Context, userID, facilityID string) (*models.Schedule, error)
	ListUserFacilityIDs(ctx context.Context, userID string) ([]string, error)
	GetFacilityIDForLock(ctx context.Context, lockID string) (string, error)
}

// Resolver determines the schedule claim for a Route Pass.
type Resolver struct {
	schedules ScheduleReader
}

// NewResolver creates a schedule resolver.
func NewResolver(schedules ScheduleReader) *Resolver {
	return &Resolver{schedules: schedules}
}

// Resolve picks the schedule claim for a pass, or nil when none applies.
//
// The user's own binding wins: the first facility of the effective scope
// (the explicit facilityIDs parameter, or the user's facility associations
// in stable order) is consulted for a UserFacilitySchedule. Failing that,
// if the pass carries any shared_key audience, the schedule is inherited
// from that share's primary tenant in the shared lock's facility.
func (r *Resolver) Resolve(ctx context.Context, userID string, facilityIDs []string, audiences []string) (*signing.ScheduleClaim, error) {
	scope := facilityIDs
	if len(scope) == 0 {
		var err error
		scope, err = r.schedules.ListUserFacilityIDs(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("listing user facilities: %w", err)
		}
	}

	if len(scope) > 0 {
		claim, err := r.claimFor(ctx, userID, scope[0])
		if err != nil {
			return nil, err
		}
		if claim != nil {
			return claim, nil
		}
	}

	// Shared-key inheritance: one shared audience is picked (the first);
	// inheriting each primary's schedule across distinct primaries in one
	// pass is an open extension.
	for _, aud := range audiences {
		primaryTenantID, lockID, ok := audience.ParseSharedKey(aud)
		if !ok {
			continue
		}
		facilityID, err := r.schedules.GetFacilityIDForLock(ctx, lockID)
		if err != nil {
			if errors.Is(err, models.ErrLockNotFound) {
				continue
			}
			return nil, fmt.Errorf("resolving shared lock facility: %w", err)
		}
		return r.claimFor(ctx, primaryTenantID, facilityID)
	}

	return nil, nil
}

// claimFor fetches a user's schedule binding in one facility and converts
// it to a claim. A missing binding or an empty window set yields nil.
func (r *Resolver) claimFor(ctx context.Context, userID, facilityID string) (*signing.ScheduleClaim, error) {
	sched, err := r.schedules.GetUserFacilitySchedule(ctx, userID, facilityID)
	if err != nil {
		if errors.Is(err, models.ErrScheduleNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching facility schedule: %w", err)
	}
	if len(sched.TimeWindows) == 0 {
		return nil, nil
	}

	claim := &signing.ScheduleClaim{
		FacilityID:  facilityID,
		TimeWindows: make([]signing.TimeWindowClaim, 0, len(sched.TimeWindows)),
	}
	for _, w := range sched.TimeWindows {
		claim.TimeWindows = append(claim.TimeWindows, signing.TimeWindowClaim{
			DayOfWeek: w.DayOfWeek,
			StartTime: w.StartTime,
			EndTime:   w.EndTime,
		})
	}
	return claim, nil
}
