package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cheew/terratherm/internal/models"
)

const everyDay = 0x7F // all seven day bits set

// Monday 2026-08-24.
func monday(hour, min int) time.Time {
	return time.Date(2026, 8, 24, hour, min, 0, 0, time.UTC)
}

func daySlots() []models.ScheduleSlot {
	return []models.ScheduleSlot{
		{Enabled: true, Hour: 7, Minute: 0, TargetC: 28, Days: everyDay},
		{Enabled: true, Hour: 22, Minute: 0, TargetC: 22, Days: everyDay},
	}
}

func TestCurrentScheduleTarget(t *testing.T) {
	tests := []struct {
		name   string
		slots  []models.ScheduleSlot
		now    time.Time
		want   float64
		wantOK bool
	}{
		{name: "daytime slot active", slots: daySlots(), now: monday(10, 0), want: 28, wantOK: true},
		{name: "night slot active", slots: daySlots(), now: monday(23, 30), want: 22, wantOK: true},
		{name: "exactly at slot time", slots: daySlots(), now: monday(7, 0), want: 28, wantOK: true},
		{name: "before first slot of the day", slots: daySlots(), now: monday(6, 59), wantOK: false},
		{name: "no slots", slots: nil, now: monday(12, 0), wantOK: false},
		{
			name: "disabled slots are skipped",
			slots: []models.ScheduleSlot{
				{Enabled: false, Hour: 7, Minute: 0, TargetC: 28, Days: everyDay},
				{Enabled: true, Hour: 9, Minute: 0, TargetC: 25, Days: everyDay},
			},
			now: monday(10, 0), want: 25, wantOK: true,
		},
		{
			name: "day mask excludes today",
			slots: []models.ScheduleSlot{
				// Bit 0 is Sunday; Monday needs bit 1.
				{Enabled: true, Hour: 7, Minute: 0, TargetC: 28, Days: 1 << 0},
			},
			now: monday(10, 0), wantOK: false,
		},
		{
			name: "day mask includes today",
			slots: []models.ScheduleSlot{
				{Enabled: true, Hour: 7, Minute: 0, TargetC: 28, Days: 1 << 1},
			},
			now: monday(10, 0), want: 28, wantOK: true,
		},
		{
			name: "same time tie goes to lowest index",
			slots: []models.ScheduleSlot{
				{Enabled: true, Hour: 8, Minute: 30, TargetC: 26, Days: everyDay},
				{Enabled: true, Hour: 8, Minute: 30, TargetC: 31, Days: everyDay},
			},
			now: monday(9, 0), want: 26, wantOK: true,
		},
		{
			name:  "unsynchronized clock reports no slot",
			slots: daySlots(),
			now:   time.Date(2015, 1, 1, 12, 0, 0, 0, time.UTC), wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CurrentScheduleTarget(tt.slots, tt.now)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNextScheduleChange(t *testing.T) {
	tests := []struct {
		name   string
		slots  []models.ScheduleSlot
		now    time.Time
		want   ScheduleChange
		wantOK bool
	}{
		{
			name: "morning points at evening slot", slots: daySlots(), now: monday(10, 0),
			want: ScheduleChange{Hour: 22, Minute: 0, TargetC: 22}, wantOK: true,
		},
		{
			name: "before dawn points at morning slot", slots: daySlots(), now: monday(5, 0),
			want: ScheduleChange{Hour: 7, Minute: 0, TargetC: 28}, wantOK: true,
		},
		{name: "after last slot nothing remains today", slots: daySlots(), now: monday(22, 0), wantOK: false},
		{
			name:  "unsynchronized clock",
			slots: daySlots(),
			now:   time.Date(2015, 1, 1, 5, 0, 0, 0, time.UTC), wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextScheduleChange(tt.slots, tt.now)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestValidateSlot(t *testing.T) {
	tests := []struct {
		name    string
		slot    models.ScheduleSlot
		wantErr error
	}{
		{name: "valid", slot: models.ScheduleSlot{Hour: 7, Minute: 30, TargetC: 28}},
		{name: "hour too large", slot: models.ScheduleSlot{Hour: 24, TargetC: 28}, wantErr: errInvalidSlotTime},
		{name: "negative minute", slot: models.ScheduleSlot{Hour: 7, Minute: -1, TargetC: 28}, wantErr: errInvalidSlotTime},
		{name: "target above plausible range", slot: models.ScheduleSlot{Hour: 7, TargetC: 150}, wantErr: errInvalidSlotTarget},
		{name: "target below plausible range", slot: models.ScheduleSlot{Hour: 7, TargetC: -80}, wantErr: errInvalidSlotTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSlot(tt.slot)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
