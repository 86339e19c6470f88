// Package models defines the persisted entities of the access core:
// users, enrolled devices, facility topology, assignments, key sharing,
// schedules, the denylist, and the Route Pass issuance audit log.
package models

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&User{},
		&UserDevice{},
		&Facility{},
		&Unit{},
		&Lock{},
		&UnitAssignment{},
		&KeySharing{},
		&Schedule{},
		&ScheduleTimeWindow{},
		&UserFacilitySchedule{},
		&DenylistEntry{},
		&RoutePassIssuance{},
	}
}
