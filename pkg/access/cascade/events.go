// Package cascade reacts to assignment, sharing, and account-state changes
// by synthesizing denylist updates and unicasting signed commands to the
// affected facilities.
package cascade

// Event is a tagged revocation-relevant change observed by the core.
type Event interface {
	// Kind returns the event's wire name for logging.
	Kind() string
}

// TenantUnassigned fires when a tenant loses a unit. ViaFMSSync marks
// removals that originated in the property-management sync rather than a
// direct operator action.
type TenantUnassigned struct {
	TenantID   string
	UnitID     string
	FacilityID string
	ActorID    string
	ViaFMSSync bool
}

// Kind implements Event.
func (TenantUnassigned) Kind() string { return "tenant_unassigned" }

// TenantAssigned fires when a tenant gains a unit, clearing any denylist
// entries the previous cascade left on the unit's locks.
type TenantAssigned struct {
	TenantID   string
	UnitID     string
	FacilityID string
}

// Kind implements Event.
func (TenantAssigned) Kind() string { return "tenant_assigned" }

// KeySharingRevoked fires when a shared key is revoked; the invitee is
// denylisted on the shared unit's locks.
type KeySharingRevoked struct {
	PrimaryTenantID  string
	SharedWithUserID string
	UnitID           string
	FacilityID       string
}

// Kind implements Event.
func (KeySharingRevoked) Kind() string { return "key_sharing_revoked" }

// UserDeactivated fires when a user account is deactivated; the user is
// denylisted on every lock they could reach, across the union of their
// assigned and shared units.
type UserDeactivated struct {
	UserID  string
	ActorID string
}

// Kind implements Event.
func (UserDeactivated) Kind() string { return "user_deactivated" }
