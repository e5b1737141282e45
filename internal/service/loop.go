package service

import (
	"context"
	"time"

	"github.com/cheew/terratherm/internal/hardware"
	"github.com/cheew/terratherm/internal/models"
)

// StatusSink receives the per-tick snapshot. Implemented by the MQTT
// publisher; nil sinks are skipped.
type StatusSink interface {
	PublishStatus(models.StatusSnapshot) error
}

// LoopService drives one control cycle per tick: sensors are refreshed
// before outputs compute, all outputs compute before the tick's status is
// published, and the watchdog is fed last.
type LoopService struct {
	registry   *SensorRegistry
	control    *ControlService
	safety     *SafetyService
	monitoring *MonitoringService
	driver     hardware.ActuatorDriver
	sink       StatusSink
}

func NewLoopService(registry *SensorRegistry, control *ControlService, safety *SafetyService, monitoring *MonitoringService, driver hardware.ActuatorDriver, sink StatusSink) *LoopService {
	return &LoopService{
		registry:   registry,
		control:    control,
		safety:     safety,
		monitoring: monitoring,
		driver:     driver,
		sink:       sink,
	}
}

// SetSink attaches the status sink. Must be called before Run; the sink
// typically needs the control service first, so it cannot exist at
// construction time.
func (l *LoopService) SetSink(sink StatusSink) {
	l.sink = sink
}

// ForceOutputsOff zeroes every output through the actuator driver without
// waiting for the next tick. The watchdog monitor calls it when the loop is
// suspected stalled: a stalled loop cannot be trusted to run its own
// safe-mode gate, so enforcement cannot wait for Step.
func (l *LoopService) ForceOutputsOff() {
	l.control.AllOff(l.driver)
}

// Run ticks at the given interval until ctx is canceled.
func (l *LoopService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			l.Step(ctx, now)
		}
	}
}

// Step executes a single cycle. Split out so tests can drive the loop with
// a deterministic clock.
func (l *LoopService) Step(ctx context.Context, now time.Time) {
	// Bus failures are counted inside the registry and retried next tick.
	_ = l.registry.Refresh(now)

	if l.safety.InSafeMode() {
		l.control.AllOff(l.driver)
	} else {
		l.control.Tick(ctx, now)
		l.control.Apply(l.driver)
	}

	if l.sink != nil {
		_ = l.sink.PublishStatus(l.monitoring.Snapshot(now))
	}

	l.safety.Feed(now)
	l.safety.MarkStableIfDue(ctx, now)
}
