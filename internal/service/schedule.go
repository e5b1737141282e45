package service

import (
	"time"

	"github.com/cheew/terratherm/internal/models"
)

// Clock-sync sentinel: before NTP has run, embedded RTCs report a date deep
// in the past. Any year below this is treated as unsynchronized and the
// scheduler reports no active slot.
const minSyncedYear = 2020

// slotDayMatches reports whether a slot's day mask includes the given
// weekday (bit 0 = Sunday).
func slotDayMatches(s models.ScheduleSlot, day time.Weekday) bool {
	return s.Days&(1<<uint(day)) != 0
}

// slotMinutes converts a slot's time-of-day to minutes since midnight.
func slotMinutes(s models.ScheduleSlot) int {
	return s.Hour*60 + s.Minute
}

// CurrentScheduleTarget returns the target temperature of the most recent
// enabled slot at or before now on today's day-of-week. Among slots sharing
// the same hour:minute the lowest index wins. Returns ok=false when no slot
// has fired yet today or the clock is unsynchronized.
func CurrentScheduleTarget(slots []models.ScheduleSlot, now time.Time) (float64, bool) {
	if now.Year() < minSyncedYear {
		return 0, false
	}
	nowMin := now.Hour()*60 + now.Minute()
	day := now.Weekday()

	best := -1
	bestMin := -1
	for i, s := range slots {
		if !s.Enabled || !slotDayMatches(s, day) {
			continue
		}
		m := slotMinutes(s)
		if m > nowMin {
			continue
		}
		if m > bestMin {
			best, bestMin = i, m
		}
	}
	if best < 0 {
		return 0, false
	}
	return slots[best].TargetC, true
}

// ScheduleChange describes an upcoming slot transition for UI display.
type ScheduleChange struct {
	Hour    int     `json:"hour"`
	Minute  int     `json:"minute"`
	TargetC float64 `json:"target_c"`
}

// NextScheduleChange returns the earliest enabled slot strictly after now on
// today's day-of-week. It does not look ahead to subsequent days. Returns
// ok=false when no change remains today or the clock is unsynchronized.
func NextScheduleChange(slots []models.ScheduleSlot, now time.Time) (ScheduleChange, bool) {
	if now.Year() < minSyncedYear {
		return ScheduleChange{}, false
	}
	nowMin := now.Hour()*60 + now.Minute()
	day := now.Weekday()

	best := -1
	bestMin := 24*60 + 1
	for i, s := range slots {
		if !s.Enabled || !slotDayMatches(s, day) {
			continue
		}
		m := slotMinutes(s)
		if m <= nowMin {
			continue
		}
		if m < bestMin {
			best, bestMin = i, m
		}
	}
	if best < 0 {
		return ScheduleChange{}, false
	}
	s := slots[best]
	return ScheduleChange{Hour: s.Hour, Minute: s.Minute, TargetC: s.TargetC}, true
}

// validateSlot checks a slot's time fields. Target temperature is bounded by
// the same plausibility window as sensor readings.
func validateSlot(s models.ScheduleSlot) error {
	if s.Hour < 0 || s.Hour > 23 || s.Minute < 0 || s.Minute > 59 {
		return errInvalidSlotTime
	}
	if s.TargetC < models.MinPlausibleC || s.TargetC > models.MaxPlausibleC {
		return errInvalidSlotTarget
	}
	return nil
}
