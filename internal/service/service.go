package service

import (
	"context"
	"time"

	"github.com/cheew/terratherm/internal/hardware"
	"github.com/cheew/terratherm/internal/models"
	"github.com/cheew/terratherm/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Control exposes the output control state machine: commands mutate it,
// snapshot methods read it.
type Control interface {
	SetMode(ctx context.Context, index int, mode models.ControlMode) error
	SetTarget(index int, targetC float64) error
	SetManualPower(index int, power int) error
	SetGains(index int, g models.PIDGains) error
	SetDevice(index int, d models.DeviceType) error
	SetSchedule(index int, slots []models.ScheduleSlot) error
	SetSettings(index int, s OutputSettings) error
	ClearFault(ctx context.Context, index int) error
	EmergencyStop(ctx context.Context)
	Outputs() []models.Output
	Output(index int) (models.Output, error)
	History(index, max int) ([]HistorySample, error)
	NextChange(index int, now time.Time) (ScheduleChange, bool, error)
}

// Monitoring exposes the read-only system snapshot.
type Monitoring interface {
	Snapshot(now time.Time) models.StatusSnapshot
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.Event, error)
}

// Safety exposes the supervisor's operator surface.
type Safety interface {
	RequestSafeMode(ctx context.Context, reason models.SafeModeReason) error
	ClearSafeMode(ctx context.Context) error
	Status() models.SafetyStatus
}

// Sensors exposes the probe table and rescans.
type Sensors interface {
	List() []models.Sensor
	Scan() error
}

// Config exposes the explicit persistence points for output configuration.
type Config interface {
	Save(ctx context.Context) error
	Load(ctx context.Context) error
}

// Loop runs the control cycle until ctx is canceled.
type Loop interface {
	Run(ctx context.Context, tick time.Duration)
}

// Service aggregates all sub-services.
type Service struct {
	Control
	Monitoring
	EventLog
	Safety
	Sensors
	Config
	Loop
	Authorization

	// Concrete handles for wiring code that needs more than the
	// command-surface interfaces (boot, shutdown).
	SafetySvc  *SafetyService
	ControlSvc *ControlService
	LoopSvc    *LoopService
	AuthSvc    *AuthService
	Registry   *SensorRegistry
}

// NewService wires the repository layer and hardware collaborators into the
// concrete services.
func NewService(repos *repository.Repository, bus hardware.SensorBus, driver hardware.ActuatorDriver, safetyCfg SafetyConfig, sink StatusSink) *Service {
	registry := NewSensorRegistry(bus)
	control := NewControlService(registry, repos.EventRepo)
	safety := NewSafetyService(repos.SafetyRepo, repos.EventRepo, safetyCfg)
	monitoring := NewMonitoringService(control, registry, safety)
	loop := NewLoopService(registry, control, safety, monitoring, driver, sink)
	auth := NewAuthService(repos.Auth)

	return &Service{
		Control:       control,
		Monitoring:    monitoring,
		EventLog:      NewEventLogService(repos.EventRepo),
		Safety:        safety,
		Sensors:       registry,
		Config:        NewConfigService(control, repos.OutputRepo, repos.EventRepo),
		Loop:          loop,
		Authorization: auth,
		SafetySvc:     safety,
		ControlSvc:    control,
		LoopSvc:       loop,
		AuthSvc:       auth,
		Registry:      registry,
	}
}
