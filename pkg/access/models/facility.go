package models

import "time"

// Facility is a physical self-storage site addressed by the gateway sink.
type Facility struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:255" json:"name,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Facility.
func (Facility) TableName() string {
	return "facilities"
}

// Unit is a rentable storage unit within a facility.
type Unit struct {
	ID         string `gorm:"primaryKey;size:36" json:"id"`
	FacilityID string `gorm:"index;not null;size:36" json:"facility_id"`
}

// TableName returns the table name for Unit.
func (Unit) TableName() string {
	return "units"
}

// Lock is a smart lock mounted on a unit. The core model carries one lock
// per unit; the schema does not enforce that so multi-lock units degrade
// gracefully.
type Lock struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	UnitID string `gorm:"index;not null;size:36" json:"unit_id"`
}

// TableName returns the table name for Lock.
func (Lock) TableName() string {
	return "locks"
}

// UnitAssignment binds a tenant to a unit. The primary assignment confers
// schedule authority for keys shared from the unit.
type UnitAssignment struct {
	UnitID    string    `gorm:"primaryKey;size:36" json:"unit_id"`
	TenantID  string    `gorm:"primaryKey;size:36" json:"tenant_id"`
	Primary   bool      `gorm:"default:false" json:"primary"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for UnitAssignment.
func (UnitAssignment) TableName() string {
	return "unit_assignments"
}

// KeySharing grants another user access to a unit's lock on behalf of the
// primary tenant, with an optional expiry.
type KeySharing struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	UnitID           string     `gorm:"index;not null;size:36" json:"unit_id"`
	PrimaryTenantID  string     `gorm:"index;not null;size:36" json:"primary_tenant_id"`
	SharedWithUserID string     `gorm:"index;not null;size:36" json:"shared_with_user_id"`
	IsActive         bool       `gorm:"default:true" json:"is_active"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for KeySharing.
func (KeySharing) TableName() string {
	return "key_sharing"
}

// Live reports whether the share grants access at the given instant.
func (k *KeySharing) Live(now time.Time) bool {
	if !k.IsActive {
		return false
	}
	return k.ExpiresAt == nil || k.ExpiresAt.After(now)
}
