// Package audience maps a user's role and assignments to the set of
// audience strings a Route Pass may carry. Locks match tokens to themselves
// through these strings.
package audience

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/blulok/blulok-cloud/pkg/access/models"
	"github.com/blulok/blulok-cloud/pkg/access/store"
)

// LockPrefix marks a direct lock authorization: "lock:<lockId>".
const LockPrefix = "lock:"

// SharedKeyPrefix marks a shared-key authorization:
// "shared_key:<primaryTenantId>:<lockId>".
const SharedKeyPrefix = "shared_key:"

// ForLock formats the direct audience string for a lock.
func ForLock(lockID string) string {
	return LockPrefix + lockID
}

// ForSharedKey formats the shared-key audience string for a lock shared by
// a primary tenant.
func ForSharedKey(primaryTenantID, lockID string) string {
	return fmt.Sprintf("%s%s:%s", SharedKeyPrefix, primaryTenantID, lockID)
}

// ParseSharedKey splits a shared_key audience into its primary tenant and
// lock components. Returns false for anything else.
func ParseSharedKey(aud string) (primaryTenantID, lockID string, ok bool) {
	rest, found := strings.CutPrefix(aud, SharedKeyPrefix)
	if !found {
		return "", "", false
	}
	primaryTenantID, lockID, found = strings.Cut(rest, ":")
	if !found || primaryTenantID == "" || lockID == "" {
		return "", "", false
	}
	return primaryTenantID, lockID, true
}

// TopologyReader is the slice of the store the resolver needs.
type TopologyReader interface {
	ListAllLocks(ctx context.Context) ([]models.Lock, error)
	ListLocksByFacilities(ctx context.Context, facilityIDs []string) ([]models.Lock, error)
	ListLocksAssignedToTenant(ctx context.Context, tenantID string) ([]models.Lock, error)
	ListLiveSharedLockGrants(ctx context.Context, userID string, now time.Time) ([]store.SharedLockGrant, error)
}

// Resolver computes audience sets.
type Resolver struct {
	topology TopologyReader
	clock    clockwork.Clock
}

// NewResolver creates an audience resolver.
func NewResolver(topology TopologyReader, clock clockwork.Clock) *Resolver {
	return &Resolver{
		topology: topology,
		clock:    clock,
	}
}

// Resolve returns the deduplicated audience list for a user.
//
//   - DEV_ADMIN and ADMIN receive every lock.
//   - FACILITY_ADMIN receives the locks in the given facility scope; an
//     empty scope yields an empty set.
//   - TENANT receives locks on assigned units (lock: form) plus locks
//     reachable via live key sharing (shared_key: form). A lock reachable
//     both ways appears in both forms: the direct form grants unrestricted
//     use while the shared form carries the primary tenant's schedule.
//   - Every other role resolves to an empty set.
func (r *Resolver) Resolve(ctx context.Context, userID string, role models.UserRole, facilityIDs []string) ([]string, error) {
	switch {
	case role.IsGlobalAdmin():
		locks, err := r.topology.ListAllLocks(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing locks: %w", err)
		}
		return dedupe(lockAudiences(locks)), nil

	case role == models.RoleFacilityAdmin:
		locks, err := r.topology.ListLocksByFacilities(ctx, facilityIDs)
		if err != nil {
			return nil, fmt.Errorf("listing facility locks: %w", err)
		}
		return dedupe(lockAudiences(locks)), nil

	case role == models.RoleTenant:
		return r.resolveTenant(ctx, userID)

	default:
		return []string{}, nil
	}
}

func (r *Resolver) resolveTenant(ctx context.Context, userID string) ([]string, error) {
	assigned, err := r.topology.ListLocksAssignedToTenant(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing assigned locks: %w", err)
	}
	audiences := lockAudiences(assigned)

	grants, err := r.topology.ListLiveSharedLockGrants(ctx, userID, r.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("listing shared locks: %w", err)
	}
	for _, g := range grants {
		audiences = append(audiences, ForSharedKey(g.PrimaryTenantID, g.LockID))
	}

	return dedupe(audiences), nil
}

func lockAudiences(locks []models.Lock) []string {
	out := make([]string, 0, len(locks))
	for _, l := range locks {
		out = append(out, ForLock(l.ID))
	}
	return out
}

// dedupe removes duplicates while preserving first-seen order. The result
// is never nil: an empty audience set must still serialize as [].
func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
