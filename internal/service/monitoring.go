package service

import (
	"time"

	"github.com/cheew/terratherm/internal/models"
)

// MonitoringService assembles read-only snapshots for the status sinks.
type MonitoringService struct {
	control  *ControlService
	registry *SensorRegistry
	safety   *SafetyService
}

func NewMonitoringService(control *ControlService, registry *SensorRegistry, safety *SafetyService) *MonitoringService {
	return &MonitoringService{control: control, registry: registry, safety: safety}
}

// Snapshot returns the full system state as of now.
func (m *MonitoringService) Snapshot(now time.Time) models.StatusSnapshot {
	return models.StatusSnapshot{
		At:      now.UTC(),
		Safety:  m.safety.Status(),
		Outputs: m.control.Status(),
		Sensors: m.registry.List(),
	}
}
