package models

import (
	"fmt"
	"sort"
	"time"
)

// ScheduleKind distinguishes operator-provided schedules from custom ones.
type ScheduleKind string

const (
	// ScheduleKindPrecanned is a facility-provided preset.
	ScheduleKindPrecanned ScheduleKind = "precanned"
	// ScheduleKindCustom is a per-facility custom schedule.
	ScheduleKindCustom ScheduleKind = "custom"
)

// IsValid checks if the kind is a known ScheduleKind.
func (k ScheduleKind) IsValid() bool {
	return k == ScheduleKindPrecanned || k == ScheduleKindCustom
}

// Schedule is a named set of weekly time windows, local to a facility.
type Schedule struct {
	ID         string `gorm:"primaryKey;size:36" json:"id"`
	FacilityID string `gorm:"index;not null;size:36" json:"facility_id"`
	Name       string `gorm:"size:255" json:"name"`
	Kind       string `gorm:"not null;size:50" json:"kind"`

	TimeWindows []ScheduleTimeWindow `gorm:"foreignKey:ScheduleID" json:"time_windows,omitempty"`
}

// TableName returns the table name for Schedule.
func (Schedule) TableName() string {
	return "schedules"
}

// ScheduleTimeWindow is a half-open [start, end) interval on one day of the
// week. Times are "HH:MM:SS" in facility-local time; day 0 is Sunday.
type ScheduleTimeWindow struct {
	ID         string `gorm:"primaryKey;size:36" json:"id"`
	ScheduleID string `gorm:"index;not null;size:36" json:"schedule_id"`
	DayOfWeek  int    `gorm:"not null" json:"day_of_week"`
	StartTime  string `gorm:"not null;size:8" json:"start_time"`
	EndTime    string `gorm:"not null;size:8" json:"end_time"`
}

// TableName returns the table name for ScheduleTimeWindow.
func (ScheduleTimeWindow) TableName() string {
	return "schedule_time_windows"
}

// parseClock parses an "HH:MM:SS" value into seconds since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t.Hour()*3600 + t.Minute()*60 + t.Second(), nil
}

// Validate checks a single window: day in range, times parseable and
// strictly ordered.
func (w *ScheduleTimeWindow) Validate() error {
	if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
		return fmt.Errorf("day_of_week %d out of range [0,6]", w.DayOfWeek)
	}
	start, err := parseClock(w.StartTime)
	if err != nil {
		return err
	}
	end, err := parseClock(w.EndTime)
	if err != nil {
		return err
	}
	if start >= end {
		return fmt.Errorf("window %s-%s on day %d: start must precede end", w.StartTime, w.EndTime, w.DayOfWeek)
	}
	return nil
}

// ValidateWindows checks every window of the schedule and rejects windows
// that overlap within the same day. Adjacent windows (end == next start)
// are permitted under the half-open rule.
func ValidateWindows(windows []ScheduleTimeWindow) error {
	type span struct{ start, end int }
	byDay := make(map[int][]span)

	for i := range windows {
		w := &windows[i]
		if err := w.Validate(); err != nil {
			return err
		}
		start, _ := parseClock(w.StartTime)
		end, _ := parseClock(w.EndTime)
		byDay[w.DayOfWeek] = append(byDay[w.DayOfWeek], span{start, end})
	}

	for day, spans := range byDay {
		sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
		for i := 1; i < len(spans); i++ {
			if spans[i].start < spans[i-1].end {
				return fmt.Errorf("overlapping windows on day %d", day)
			}
		}
	}
	return nil
}

// Validate checks if the schedule has valid configuration.
func (s *Schedule) Validate() error {
	if s.FacilityID == "" {
		return fmt.Errorf("facility id is required")
	}
	if !ScheduleKind(s.Kind).IsValid() {
		return fmt.Errorf("invalid schedule kind %q", s.Kind)
	}
	return ValidateWindows(s.TimeWindows)
}

// UserFacilitySchedule binds a user to a schedule within one facility.
type UserFacilitySchedule struct {
	UserID     string `gorm:"primaryKey;size:36" json:"user_id"`
	FacilityID string `gorm:"primaryKey;size:36" json:"facility_id"`
	ScheduleID string `gorm:"not null;size:36" json:"schedule_id"`
}

// TableName returns the table name for UserFacilitySchedule.
func (UserFacilitySchedule) TableName() string {
	return "user_facility_schedules"
}
