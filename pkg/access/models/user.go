package models

import (
	"fmt"
	"time"
)

// UserRole represents the role of a user in the system.
type UserRole string

const (
	// RoleDevAdmin has unrestricted access to every facility and lock.
	RoleDevAdmin UserRole = "DEV_ADMIN"
	// RoleAdmin has unrestricted access to every facility and lock.
	RoleAdmin UserRole = "ADMIN"
	// RoleFacilityAdmin has access to locks within their assigned facilities.
	RoleFacilityAdmin UserRole = "FACILITY_ADMIN"
	// RoleTenant has access to locks on assigned units and shared keys.
	RoleTenant UserRole = "TENANT"
	// RoleMaintenance receives no lock audiences from the resolver.
	RoleMaintenance UserRole = "MAINTENANCE"
)

// IsValid checks if the role is a known UserRole.
func (r UserRole) IsValid() bool {
	switch r {
	case RoleDevAdmin, RoleAdmin, RoleFacilityAdmin, RoleTenant, RoleMaintenance:
		return true
	}
	return false
}

// IsGlobalAdmin reports whether the role grants access to all locks.
func (r UserRole) IsGlobalAdmin() bool {
	return r == RoleDevAdmin || r == RoleAdmin
}

// User represents a BluLok user. Users are created and maintained by the
// surrounding product; the access core reads them at issuance time and
// observes deactivation through the cascade.
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Role      string    `gorm:"not null;size:50" json:"role"`
	Active    bool      `gorm:"default:true" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// GetRole returns the user's role as a UserRole type.
func (u *User) GetRole() UserRole {
	return UserRole(u.Role)
}

// Validate checks if the user has valid configuration.
func (u *User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}
	if !UserRole(u.Role).IsValid() {
		return fmt.Errorf("invalid role %q", u.Role)
	}
	return nil
}
