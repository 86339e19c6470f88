package denylist

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/blulok/blulok-cloud/pkg/access/models"
)

// IssuanceReader is the slice of the store the optimizer needs.
type IssuanceReader interface {
	HasLiveIssuance(ctx context.Context, userID string, now time.Time) (bool, error)
}

// Optimizer elides denylist commands that cannot affect any live token.
// It never changes what the store records, only whether uplink is spent.
type Optimizer struct {
	issuances IssuanceReader
	clock     clockwork.Clock
}

// NewOptimizer creates a denylist optimizer.
func NewOptimizer(issuances IssuanceReader, clock clockwork.Clock) *Optimizer {
	return &Optimizer{
		issuances: issuances,
		clock:     clock,
	}
}

// ShouldSkipAdd reports whether a DENYLIST_ADD for the user is redundant:
// true iff the user holds no recorded Route Pass that is still live. Without
// a live pass the user cannot present a token to any lock until they
// reauthenticate, and reauthentication re-checks state.
func (o *Optimizer) ShouldSkipAdd(ctx context.Context, userID string) (bool, error) {
	live, err := o.issuances.HasLiveIssuance(ctx, userID, o.clock.Now())
	if err != nil {
		return false, fmt.Errorf("checking live issuances: %w", err)
	}
	return !live, nil
}

// ShouldSkipRemove reports whether a DENYLIST_REMOVE for the entry is
// redundant: true iff the entry has already expired, in which case the lock
// has dropped it on its own.
func (o *Optimizer) ShouldSkipRemove(entry *models.DenylistEntry) bool {
	return entry.Expired(o.clock.Now())
}
