package models

import "time"

// Source identifies who initiated a clock event.
type Source string

const (
	SourceStaff   Source = "staff"
	SourceManager Source = "manager"
	SourceOwner   Source = "owner"
)

// EditStamp records the last correction applied to an entry.
type EditStamp struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	At     int64  `json:"at"`
}

// ShiftEntry is one clock session. ClockOutAt == 0 means the shift is open.
// Timestamps are Unix milliseconds.
type ShiftEntry struct {
	ID           string     `json:"id"`
	RestaurantID string     `json:"restaurant_id"`
	StaffID      string     `json:"staff_id"`
	ActingUserID string     `json:"acting_user_id"`
	ClockInAt    int64      `json:"clock_in_at"`
	ClockOutAt   int64      `json:"clock_out_at,omitempty"`
	Source       Source     `json:"source"`
	EditedBy     *EditStamp `json:"edited_by,omitempty"`
	Note         string     `json:"note,omitempty"`
	CreatedAt    int64      `json:"created_at"`
	UpdatedAt    int64      `json:"updated_at"`
}

// IsOpen reports whether the shift has not been clocked out yet.
func (e *ShiftEntry) IsOpen() bool {
	return e.ClockOutAt == 0
}

// IsMalformed reports whether the entry closed before it opened. Such an
// entry earns nothing and needs a manual correction.
func (e *ShiftEntry) IsMalformed() bool {
	return e.ClockOutAt != 0 && e.ClockOutAt < e.ClockInAt
}

// Minutes returns the worked minutes for a closed entry.
// Open entries and entries with clock-out before clock-in count as zero.
func (e *ShiftEntry) Minutes() int64 {
	if e.IsOpen() {
		return 0
	}
	m := (e.ClockOutAt - e.ClockInAt) / 60000
	if m < 0 {
		return 0
	}
	return m
}

// DayKey returns the calendar date string an entry is filed under, derived
// from ClockInAt in the business timezone. A shift always lands on the
// business day it started, regardless of where the process runs.
func (e *ShiftEntry) DayKey(loc *time.Location) string {
	return DayKeyFor(e.ClockInAt, loc)
}

// DayKeyFor formats a Unix-millisecond timestamp as YYYY-MM-DD in loc.
func DayKeyFor(unixMs int64, loc *time.Location) string {
	return time.UnixMilli(unixMs).In(loc).Format("2006-01-02")
}

// MonthDays enumerates every day key of a month ("2006-01") in loc.
func MonthDays(month string, loc *time.Location) ([]string, error) {
	start, err := time.ParseInLocation("2006-01", month, loc)
	if err != nil {
		return nil, err
	}
	var days []string
	for d := start; d.Month() == start.Month(); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format("2006-01-02"))
	}
	return days, nil
}
