package models

import "time"

// NumOutputs is the number of physical actuator channels on the board.
const NumOutputs = 3

// DimmerOutputIndex is the single channel wired to the phase-angle dimmer.
// All other channels are driven by solid-state relays.
const DimmerOutputIndex = 0

// MaxScheduleSlots is the per-output schedule capacity.
const MaxScheduleSlots = 8

// ControlMode selects the strategy driving an output's power.
type ControlMode string

const (
	ModeOff      ControlMode = "off"
	ModeManual   ControlMode = "manual"
	ModePID      ControlMode = "pid"
	ModeOnOff    ControlMode = "onoff"
	ModeSchedule ControlMode = "schedule"
)

// Valid reports whether m is a known control mode.
func (m ControlMode) Valid() bool {
	switch m {
	case ModeOff, ModeManual, ModePID, ModeOnOff, ModeSchedule:
		return true
	}
	return false
}

// HardwareType is the physical driver class wired to an output channel.
type HardwareType string

const (
	HardwareNone   HardwareType = "none"
	HardwareDimmer HardwareType = "dimmer"
	HardwareRelay  HardwareType = "relay"
)

// DeviceType is the semantic category of equipment attached to an output.
type DeviceType string

const (
	DeviceLight         DeviceType = "light"
	DeviceHeatMat       DeviceType = "heat_mat"
	DeviceCeramicHeater DeviceType = "ceramic_heater"
	DeviceHeatCable     DeviceType = "heat_cable"
	DeviceFogger        DeviceType = "fogger"
	DeviceMister        DeviceType = "mister"
)

// RequiredHardware returns the driver class a device type must be wired to.
// Light-class devices need the phase-angle dimmer; everything else switches
// through a relay.
func (d DeviceType) RequiredHardware() HardwareType {
	if d == DeviceLight {
		return HardwareDimmer
	}
	return HardwareRelay
}

// Valid reports whether d is a known device type.
func (d DeviceType) Valid() bool {
	switch d {
	case DeviceLight, DeviceHeatMat, DeviceCeramicHeater, DeviceHeatCable, DeviceFogger, DeviceMister:
		return true
	}
	return false
}

// FaultMode is the configured fallback when an output's sensor is unreliable.
type FaultMode string

const (
	FaultModeOff      FaultMode = "off"
	FaultModeHoldLast FaultMode = "hold_last"
	FaultModeCapPower FaultMode = "cap_power"
)

// Valid reports whether f is a known fault mode.
func (f FaultMode) Valid() bool {
	switch f {
	case FaultModeOff, FaultModeHoldLast, FaultModeCapPower:
		return true
	}
	return false
}

// FaultKind identifies the active fault on an output.
type FaultKind string

const (
	FaultNone        FaultKind = "none"
	FaultSensorStale FaultKind = "sensor_stale"
	FaultSensorError FaultKind = "sensor_error"
	FaultOverTemp    FaultKind = "over_temp"
	FaultUnderTemp   FaultKind = "under_temp"
)

// SensorHealth is the per-tick assessment of an output's assigned sensor.
type SensorHealth string

const (
	HealthOK    SensorHealth = "ok"
	HealthStale SensorHealth = "stale"
	HealthError SensorHealth = "error"
)

// PIDGains is the tunable gain triple for an output's PID controller.
type PIDGains struct {
	Kp float64 `json:"kp"`
	Ki float64 `json:"ki"`
	Kd float64 `json:"kd"`
}

// ScheduleSlot is one (time-of-day, day-set, target) tuple.
// Days is a 7-bit mask, bit 0 = Sunday through bit 6 = Saturday.
type ScheduleSlot struct {
	Enabled bool    `json:"enabled"`
	Hour    int     `json:"hour"`
	Minute  int     `json:"minute"`
	TargetC float64 `json:"target_c"`
	Days    uint8   `json:"days"`
}

// SafetyLimits holds the per-output hard cutoffs and fault policy.
type SafetyLimits struct {
	MaxTempC        float64   `json:"max_temp_c"`
	MinTempC        float64   `json:"min_temp_c"`
	FaultTimeoutSec int       `json:"fault_timeout_sec"`
	FaultMode       FaultMode `json:"fault_mode"`
	CapPowerPct     int       `json:"cap_power_pct"`
	AutoResume      bool      `json:"auto_resume"`
}

// FaultState is the runtime fault bookkeeping for an output.
type FaultState struct {
	Health         SensorHealth `json:"health"`
	Kind           FaultKind    `json:"kind"`
	LastValidTempC float64      `json:"last_valid_temp_c"`
	LastValidPower int          `json:"last_valid_power"`
	LastValidAt    time.Time    `json:"last_valid_at,omitempty"`
	FaultStartedAt time.Time    `json:"fault_started_at,omitempty"`
}

// Output is one independently controlled actuator channel.
type Output struct {
	Index         int                            `json:"index"`
	Enabled       bool                           `json:"enabled"`
	Name          string                         `json:"name"`
	Hardware      HardwareType                   `json:"hardware"`
	Device        DeviceType                     `json:"device"`
	SensorAddress string                         `json:"sensor_address"` // weak reference, lookup by key
	Mode          ControlMode                    `json:"mode"`
	TargetC       float64                        `json:"target_c"`
	ManualPower   int                            `json:"manual_power"`
	Power         int                            `json:"power"`
	Heating       bool                           `json:"heating"`
	Gains         PIDGains                       `json:"gains"`
	Slots         [MaxScheduleSlots]ScheduleSlot `json:"slots"`
	Limits        SafetyLimits                   `json:"limits"`
	Fault         FaultState                     `json:"fault"`
}

// AllowedHardware returns the driver classes an output channel may be
// configured with. The dimmer exists once on the board; its channel index is
// fixed by the wiring.
func AllowedHardware(index int) []HardwareType {
	if index == DimmerOutputIndex {
		return []HardwareType{HardwareNone, HardwareDimmer}
	}
	return []HardwareType{HardwareNone, HardwareRelay}
}

// OutputStatus is the read-only snapshot published to the status sinks.
type OutputStatus struct {
	Index        int          `json:"index"`
	Enabled      bool         `json:"enabled"`
	Name         string       `json:"name"`
	Device       DeviceType   `json:"device"`
	Mode         ControlMode  `json:"mode"`
	CurrentTempC float64      `json:"current_temp_c"`
	TargetC      float64      `json:"target_c"`
	Power        int          `json:"power"`
	Heating      bool         `json:"heating"`
	Health       SensorHealth `json:"health"`
	Fault        FaultKind    `json:"fault"`
}
