package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cheew/terratherm/internal/hardware"
	"github.com/cheew/terratherm/internal/models"
	"github.com/cheew/terratherm/internal/repository"
)

// ONOFF hysteresis half-width: full on below target−0.5, full off above
// target+0.5, hold inside the band.
const hysteresisBandC = 0.5

// PID-driven modes report heating once power exceeds this threshold.
const heatingThresholdPct = 5

// Samples of temperature/power history retained per output.
const historyCapacity = 360

// Validation errors for control commands. Rejected synchronously, no state
// mutated, no escalation.
var (
	ErrInvalidOutputIndex  = errors.New("invalid output index")
	ErrInvalidMode         = errors.New("invalid control mode")
	ErrInvalidPower        = errors.New("power must be in 0..100")
	ErrInvalidTarget       = errors.New("target temperature out of range")
	ErrIncompatibleDevice  = errors.New("device type incompatible with output hardware")
	ErrHardwareNotAllowed  = errors.New("hardware type not available on this output")
	ErrTooManySlots        = errors.New("at most 8 schedule slots per output")
	ErrInvalidFaultMode    = errors.New("invalid fault mode")
	ErrInvalidFaultTimeout = errors.New("fault timeout must be positive")
	ErrFaultStillPresent   = errors.New("fault condition still present")
	errInvalidSlotTime     = errors.New("slot time out of range")
	errInvalidSlotTarget   = errors.New("slot target temperature out of range")
)

// ControlService is the per-output control/fault state machine. It owns the
// output table and one PID controller per output. All mutation goes through
// its lock: the control loop ticks it, HTTP and MQTT commands call into it.
type ControlService struct {
	mu       sync.Mutex
	outputs  [models.NumOutputs]models.Output
	pids     [models.NumOutputs]*PID
	history  [models.NumOutputs]*historyRing
	registry *SensorRegistry
	events   repository.EventRepo
	clock    func() time.Time
}

func NewControlService(registry *SensorRegistry, events repository.EventRepo) *ControlService {
	c := &ControlService{registry: registry, events: events, clock: time.Now}
	for i := range c.outputs {
		c.outputs[i] = defaultOutput(i)
		c.pids[i] = NewPID(c.outputs[i].Gains)
		c.history[i] = newHistoryRing(historyCapacity)
	}
	return c
}

// defaultOutput is the factory configuration for a channel. Hardware is
// fixed by the board wiring: channel 0 carries the dimmer, the rest relays.
func defaultOutput(index int) models.Output {
	o := models.Output{
		Index:    index,
		Name:     fmt.Sprintf("Output %d", index+1),
		Hardware: models.HardwareRelay,
		Device:   models.DeviceHeatMat,
		Mode:     models.ModeOff,
		TargetC:  28.0,
		Gains:    models.PIDGains{Kp: 10, Ki: 0.5, Kd: 2},
		Limits: models.SafetyLimits{
			MaxTempC:        45.0,
			MinTempC:        0.0,
			FaultTimeoutSec: 120,
			FaultMode:       models.FaultModeOff,
			CapPowerPct:     30,
			AutoResume:      true,
		},
		Fault: models.FaultState{Health: models.HealthOK, Kind: models.FaultNone},
	}
	if index == models.DimmerOutputIndex {
		o.Name = "Basking Light"
		o.Hardware = models.HardwareDimmer
		o.Device = models.DeviceLight
	}
	return o
}

// Tick runs one control cycle over all outputs. Sensor readings must already
// be refreshed for this cycle; the loop guarantees the ordering.
func (c *ControlService) Tick(ctx context.Context, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.outputs {
		c.tickOutput(ctx, i, now)
	}
}

func (c *ControlService) tickOutput(ctx context.Context, i int, now time.Time) {
	o := &c.outputs[i]
	if !o.Enabled {
		o.Power, o.Heating = 0, false
		return
	}

	temp, lastReadAt, found := c.registry.Current(o.SensorAddress)
	valid := models.ValidReading(temp)
	health := evaluateHealth(o, temp, lastReadAt, found, now)
	o.Fault.Health = health

	// Recorded after the tick's power is final.
	defer c.recordHistory(i, temp, now)

	// Latched over/under-temperature faults hold power at zero until an
	// explicit clear, regardless of mode.
	if o.Fault.Kind == models.FaultOverTemp || o.Fault.Kind == models.FaultUnderTemp {
		o.Power, o.Heating = 0, false
		return
	}

	// Hard cutoffs override everything else when the reading is valid.
	if valid && temp >= o.Limits.MaxTempC {
		c.enterFault(ctx, o, models.FaultOverTemp, temp, now)
		o.Power, o.Heating = 0, false
		return
	}
	if valid && temp <= o.Limits.MinTempC {
		c.enterFault(ctx, o, models.FaultUnderTemp, temp, now)
		o.Power, o.Heating = 0, false
		return
	}

	if health != models.HealthOK {
		kind := models.FaultSensorStale
		if health == models.HealthError {
			kind = models.FaultSensorError
		}
		if o.Fault.Kind != kind {
			c.enterFault(ctx, o, kind, temp, now)
		}
		o.Power = c.faultPower(o)
		o.Heating = o.Power > 0
		return
	}

	// Healthy again: sensor faults auto-clear only when configured to.
	if o.Fault.Kind == models.FaultSensorStale || o.Fault.Kind == models.FaultSensorError {
		if !o.Limits.AutoResume {
			o.Power = c.faultPower(o)
			o.Heating = o.Power > 0
			return
		}
		c.clearFaultLocked(ctx, o, now, "sensor recovered")
	}

	// No usable sample but still inside the grace window: hold the last
	// valid power instead of feeding the sentinel into the controller.
	if !valid {
		o.Power = clampPower(o.Fault.LastValidPower)
		o.Heating = o.Power > 0
		return
	}

	c.dispatchMode(o, c.pids[i], temp, now)
	o.Power = clampPower(o.Power)

	o.Fault.LastValidTempC = temp
	o.Fault.LastValidPower = o.Power
	o.Fault.LastValidAt = now
}

// dispatchMode computes power/heating for a healthy output.
func (c *ControlService) dispatchMode(o *models.Output, pid *PID, temp float64, now time.Time) {
	switch o.Mode {
	case models.ModeOff:
		o.Power, o.Heating = 0, false
	case models.ModeManual:
		o.Power = clampPower(o.ManualPower)
		o.Heating = o.Power > 0
	case models.ModePID:
		o.Power = pid.Compute(temp, o.TargetC, now)
		o.Heating = o.Power > heatingThresholdPct
	case models.ModeOnOff:
		switch {
		case temp < o.TargetC-hysteresisBandC:
			o.Power, o.Heating = 100, true
		case temp > o.TargetC+hysteresisBandC:
			o.Power, o.Heating = 0, false
		default:
			// Inside the band: hold the previous state.
			if o.Heating {
				o.Power = 100
			} else {
				o.Power = 0
			}
		}
	case models.ModeSchedule:
		target, ok := CurrentScheduleTarget(o.Slots[:], now)
		if !ok {
			o.Power, o.Heating = 0, false
			return
		}
		o.TargetC = target
		o.Power = pid.Compute(temp, target, now)
		o.Heating = o.Power > heatingThresholdPct
	default:
		o.Power, o.Heating = 0, false
	}
}

// evaluateHealth classifies the assigned sensor for this tick. An in-band
// sample that is physically implausible is ERROR. Everything else is judged
// on the age of the last valid reading, not on the stored value: a dead bus
// leaves the last sample frozen in the registry, so a plausible temperature
// alone proves nothing. Past the configured timeout the sensor is STALE.
func evaluateHealth(o *models.Output, temp float64, lastReadAt time.Time, found bool, now time.Time) models.SensorHealth {
	if found && temp != models.DisconnectedC {
		if math.IsNaN(temp) || temp < models.MinPlausibleC || temp > models.MaxPlausibleC {
			return models.HealthError
		}
	}
	timeout := time.Duration(o.Limits.FaultTimeoutSec) * time.Second
	if lastReadAt.IsZero() || now.Sub(lastReadAt) > timeout {
		return models.HealthStale
	}
	return models.HealthOK
}

// faultPower applies the configured fault policy.
func (c *ControlService) faultPower(o *models.Output) int {
	switch o.Limits.FaultMode {
	case models.FaultModeHoldLast:
		return clampPower(o.Fault.LastValidPower)
	case models.FaultModeCapPower:
		p := o.Fault.LastValidPower
		if p > o.Limits.CapPowerPct {
			p = o.Limits.CapPowerPct
		}
		return clampPower(p)
	default:
		return 0
	}
}

// enterFault latches a fault on first detection and logs it.
func (c *ControlService) enterFault(ctx context.Context, o *models.Output, kind models.FaultKind, temp float64, now time.Time) {
	o.Fault.Kind = kind
	o.Fault.FaultStartedAt = now
	c.appendEvent(ctx, models.EventFault,
		fmt.Sprintf("%s: fault %s", o.Name, kind),
		map[string]any{"output": o.Index, "kind": kind, "temp_c": temp})
}

func (c *ControlService) clearFaultLocked(ctx context.Context, o *models.Output, now time.Time, why string) {
	prev := o.Fault.Kind
	o.Fault.Kind = models.FaultNone
	o.Fault.FaultStartedAt = time.Time{}
	c.appendEvent(ctx, models.EventFaultCleared,
		fmt.Sprintf("%s: fault %s cleared (%s)", o.Name, prev, why),
		map[string]any{"output": o.Index, "kind": prev})
}

func (c *ControlService) recordHistory(i int, temp float64, now time.Time) {
	c.history[i].push(HistorySample{At: now, TempC: temp, Power: c.outputs[i].Power})
}

// Apply hands every output's computed power to the actuator driver.
func (c *ControlService) Apply(driver hardware.ActuatorDriver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.outputs {
		_ = driver.SetPower(i, c.outputs[i].Power)
	}
}

// AllOff forces every output to zero power without touching modes. Used by
// the safety supervisor's safe-mode gate each tick.
func (c *ControlService) AllOff(driver hardware.ActuatorDriver) {
	c.mu.Lock()
	for i := range c.outputs {
		c.outputs[i].Power = 0
		c.outputs[i].Heating = false
	}
	c.mu.Unlock()
	if driver != nil {
		for i := 0; i < models.NumOutputs; i++ {
			_ = driver.SetPower(i, 0)
		}
	}
}

// EmergencyStop sets every output's mode to OFF and power to zero
// immediately. Hard override, callable any time.
func (c *ControlService) EmergencyStop(ctx context.Context) {
	c.mu.Lock()
	for i := range c.outputs {
		c.outputs[i].Mode = models.ModeOff
		c.outputs[i].Power = 0
		c.outputs[i].Heating = false
		c.pids[i].Reset()
	}
	c.mu.Unlock()
	c.appendEvent(ctx, models.EventEmergencyStop, "emergency stop: all outputs off", nil)
}

// ---- commands ----

// SetMode switches an output's control strategy. Every transition resets the
// output's PID state so stale windup cannot carry across modes.
func (c *ControlService) SetMode(ctx context.Context, index int, mode models.ControlMode) error {
	if !mode.Valid() {
		return ErrInvalidMode
	}
	c.mu.Lock()
	if index < 0 || index >= models.NumOutputs {
		c.mu.Unlock()
		return ErrInvalidOutputIndex
	}
	prev := c.outputs[index].Mode
	c.outputs[index].Mode = mode
	c.pids[index].Reset()
	name := c.outputs[index].Name
	c.mu.Unlock()

	c.appendEvent(ctx, models.EventModeChange,
		fmt.Sprintf("%s: mode %s -> %s", name, prev, mode),
		map[string]any{"output": index, "from": prev, "to": mode})
	return nil
}

// SetTarget sets the closed-loop target temperature.
func (c *ControlService) SetTarget(index int, targetC float64) error {
	if targetC < models.MinPlausibleC || targetC > models.MaxPlausibleC {
		return ErrInvalidTarget
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= models.NumOutputs {
		return ErrInvalidOutputIndex
	}
	c.outputs[index].TargetC = targetC
	return nil
}

// SetManualPower sets the power used while in MANUAL mode.
func (c *ControlService) SetManualPower(index int, power int) error {
	if power < 0 || power > 100 {
		return ErrInvalidPower
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= models.NumOutputs {
		return ErrInvalidOutputIndex
	}
	c.outputs[index].ManualPower = power
	return nil
}

// SetGains hot-swaps the PID gain triple. The controller's integral resets.
func (c *ControlService) SetGains(index int, g models.PIDGains) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= models.NumOutputs {
		return ErrInvalidOutputIndex
	}
	c.outputs[index].Gains = g
	c.pids[index].SetGains(g)
	return nil
}

// SetDevice changes the attached equipment category. Rejected when the
// device class cannot run on the output's wired hardware.
func (c *ControlService) SetDevice(index int, d models.DeviceType) error {
	if !d.Valid() {
		return ErrIncompatibleDevice
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= models.NumOutputs {
		return ErrInvalidOutputIndex
	}
	if d.RequiredHardware() != c.outputs[index].Hardware {
		return ErrIncompatibleDevice
	}
	c.outputs[index].Device = d
	return nil
}

// SetHardware changes the driver class, restricted to the channel's
// allowed-hardware set and to classes compatible with the current device.
func (c *ControlService) SetHardware(index int, h models.HardwareType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= models.NumOutputs {
		return ErrInvalidOutputIndex
	}
	allowed := false
	for _, a := range models.AllowedHardware(index) {
		if a == h {
			allowed = true
			break
		}
	}
	if !allowed {
		return ErrHardwareNotAllowed
	}
	if h != models.HardwareNone && c.outputs[index].Device.RequiredHardware() != h {
		return ErrIncompatibleDevice
	}
	c.outputs[index].Hardware = h
	return nil
}

// SetSchedule replaces the output's slot table (up to 8 slots).
func (c *ControlService) SetSchedule(index int, slots []models.ScheduleSlot) error {
	if len(slots) > models.MaxScheduleSlots {
		return ErrTooManySlots
	}
	for _, s := range slots {
		if err := validateSlot(s); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= models.NumOutputs {
		return ErrInvalidOutputIndex
	}
	var table [models.MaxScheduleSlots]models.ScheduleSlot
	copy(table[:], slots)
	c.outputs[index].Slots = table
	return nil
}

// OutputSettings carries the mutable non-control configuration of an output.
type OutputSettings struct {
	Enabled       bool                `json:"enabled"`
	Name          string              `json:"name"`
	SensorAddress string              `json:"sensor_address"`
	Limits        models.SafetyLimits `json:"limits"`
}

// SetSettings updates enablement, naming, sensor assignment and safety
// limits in one call.
func (c *ControlService) SetSettings(index int, s OutputSettings) error {
	if !s.Limits.FaultMode.Valid() {
		return ErrInvalidFaultMode
	}
	if s.Limits.FaultTimeoutSec <= 0 {
		return ErrInvalidFaultTimeout
	}
	if s.Limits.CapPowerPct < 0 || s.Limits.CapPowerPct > 100 {
		return ErrInvalidPower
	}
	if s.Limits.MinTempC >= s.Limits.MaxTempC {
		return ErrInvalidTarget
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= models.NumOutputs {
		return ErrInvalidOutputIndex
	}
	o := &c.outputs[index]
	o.Enabled = s.Enabled
	if s.Name != "" {
		o.Name = s.Name
	}
	o.SensorAddress = s.SensorAddress
	o.Limits = s.Limits
	return nil
}

// ClearFault clears a latched fault after re-validating that the fault
// condition is gone: the sensor must be healthy and the current reading
// inside the configured limits.
func (c *ControlService) ClearFault(ctx context.Context, index int) error {
	c.mu.Lock()
	if index < 0 || index >= models.NumOutputs {
		c.mu.Unlock()
		return ErrInvalidOutputIndex
	}
	o := &c.outputs[index]
	if o.Fault.Kind == models.FaultNone {
		c.mu.Unlock()
		return nil
	}
	now := c.clock()
	temp, lastReadAt, found := c.registry.Current(o.SensorAddress)
	if evaluateHealth(o, temp, lastReadAt, found, now) != models.HealthOK {
		c.mu.Unlock()
		return ErrFaultStillPresent
	}
	if temp >= o.Limits.MaxTempC || temp <= o.Limits.MinTempC {
		c.mu.Unlock()
		return ErrFaultStillPresent
	}
	c.clearFaultLocked(ctx, o, now, "operator clear")
	c.mu.Unlock()
	return nil
}

// ---- snapshots ----

// Outputs returns a copy of the full output table.
func (c *ControlService) Outputs() []models.Output {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Output, models.NumOutputs)
	copy(out, c.outputs[:])
	return out
}

// Output returns one output by index.
func (c *ControlService) Output(index int) (models.Output, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= models.NumOutputs {
		return models.Output{}, ErrInvalidOutputIndex
	}
	return c.outputs[index], nil
}

// Status builds the read-only per-output snapshot for the status sinks.
func (c *ControlService) Status() []models.OutputStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.OutputStatus, 0, models.NumOutputs)
	for i := range c.outputs {
		o := &c.outputs[i]
		temp, _, _ := c.registry.Current(o.SensorAddress)
		out = append(out, models.OutputStatus{
			Index:        o.Index,
			Enabled:      o.Enabled,
			Name:         o.Name,
			Device:       o.Device,
			Mode:         o.Mode,
			CurrentTempC: temp,
			TargetC:      o.TargetC,
			Power:        o.Power,
			Heating:      o.Heating,
			Health:       o.Fault.Health,
			Fault:        o.Fault.Kind,
		})
	}
	return out
}

// History returns up to max samples for an output, newest first.
func (c *ControlService) History(index int, max int) ([]HistorySample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= models.NumOutputs {
		return nil, ErrInvalidOutputIndex
	}
	return c.history[index].newestFirst(max), nil
}

// NextChange reports the upcoming schedule transition for an output today.
func (c *ControlService) NextChange(index int, now time.Time) (ScheduleChange, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= models.NumOutputs {
		return ScheduleChange{}, false, ErrInvalidOutputIndex
	}
	ch, ok := NextScheduleChange(c.outputs[index].Slots[:], now)
	return ch, ok, nil
}

// ---- persistence hand-off ----

// ApplyConfig overwrites the configurable fields from persisted rows.
// Runtime state (power, heating, fault) is untouched; PIDs reset to the
// loaded gains.
func (c *ControlService) ApplyConfig(outputs []models.Output) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, loaded := range outputs {
		i := loaded.Index
		if i < 0 || i >= models.NumOutputs {
			continue
		}
		o := &c.outputs[i]
		o.Enabled = loaded.Enabled
		o.Name = loaded.Name
		o.Hardware = loaded.Hardware
		o.Device = loaded.Device
		o.SensorAddress = loaded.SensorAddress
		o.Mode = loaded.Mode
		o.TargetC = loaded.TargetC
		o.ManualPower = loaded.ManualPower
		o.Gains = loaded.Gains
		o.Slots = loaded.Slots
		o.Limits = loaded.Limits
		c.pids[i].SetGains(loaded.Gains)
	}
}

// ConfigSnapshot returns the output table for persistence.
func (c *ControlService) ConfigSnapshot() []models.Output {
	return c.Outputs()
}

func (c *ControlService) appendEvent(ctx context.Context, typ, desc string, meta any) {
	if c.events == nil {
		return
	}
	_ = c.events.Append(ctx, models.Event{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        typ,
		Description: desc,
		Metadata:    meta,
	})
}
