package models

import (
	"testing"
	"time"
)

func TestStatusForCheckIn(t *testing.T) {
	tests := []struct {
		name  string
		clock string
		want  AttendanceStatus
	}{
		{"early morning", "06:30", AttendanceStatusPresent},
		{"just before cutoff", "09:59", AttendanceStatusPresent},
		{"at cutoff", "10:00", AttendanceStatusLate},
		{"evening", "19:15", AttendanceStatusLate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local, err := time.Parse("15:04", tt.clock)
			if err != nil {
				t.Fatal(err)
			}
			if got := StatusForCheckIn(local); got != tt.want {
				t.Errorf("StatusForCheckIn(%s) = %q, want %q", tt.clock, got, tt.want)
			}
		})
	}
}

func TestDateKey(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*60*60)
	// 20:30 UTC is already the next day in UTC+7
	ts := time.Date(2026, 1, 31, 20, 30, 0, 0, time.UTC)

	if got := DateKey(ts, time.UTC); got != "2026-01-31" {
		t.Errorf("DateKey UTC = %s", got)
	}
	if got := DateKey(ts, jakarta); got != "2026-02-01" {
		t.Errorf("DateKey WIB = %s", got)
	}
}

func TestAttendanceQualifies(t *testing.T) {
	tests := []struct {
		status AttendanceStatus
		want   bool
	}{
		{AttendanceStatusPresent, true},
		{AttendanceStatusLate, true},
		{AttendanceStatusAbsent, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := (AttendanceRecord{Status: tt.status}).Qualifies(); got != tt.want {
			t.Errorf("Qualifies(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
