package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cheew/terratherm/internal/models"
	"github.com/cheew/terratherm/internal/service"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockControl struct {
	err error

	outputs []models.Output
	history []service.HistorySample
	change  service.ScheduleChange
	active  bool

	lastIndex       int
	lastMode        models.ControlMode
	lastTarget      float64
	lastPower       int
	lastGains       models.PIDGains
	lastDevice      models.DeviceType
	lastSlots       []models.ScheduleSlot
	lastSettings    service.OutputSettings
	clearFaultCalls int
	stopCalls       int
}

func (m *mockControl) SetMode(ctx context.Context, index int, mode models.ControlMode) error {
	m.lastIndex, m.lastMode = index, mode
	return m.err
}
func (m *mockControl) SetTarget(index int, targetC float64) error {
	m.lastIndex, m.lastTarget = index, targetC
	return m.err
}
func (m *mockControl) SetManualPower(index int, power int) error {
	m.lastIndex, m.lastPower = index, power
	return m.err
}
func (m *mockControl) SetGains(index int, g models.PIDGains) error {
	m.lastIndex, m.lastGains = index, g
	return m.err
}
func (m *mockControl) SetDevice(index int, d models.DeviceType) error {
	m.lastIndex, m.lastDevice = index, d
	return m.err
}
func (m *mockControl) SetSchedule(index int, slots []models.ScheduleSlot) error {
	m.lastIndex, m.lastSlots = index, slots
	return m.err
}
func (m *mockControl) SetSettings(index int, s service.OutputSettings) error {
	m.lastIndex, m.lastSettings = index, s
	return m.err
}
func (m *mockControl) ClearFault(ctx context.Context, index int) error {
	m.lastIndex = index
	m.clearFaultCalls++
	return m.err
}
func (m *mockControl) EmergencyStop(ctx context.Context) {
	m.stopCalls++
}
func (m *mockControl) Outputs() []models.Output {
	return m.outputs
}
func (m *mockControl) Output(index int) (models.Output, error) {
	if m.err != nil {
		return models.Output{}, m.err
	}
	for _, o := range m.outputs {
		if o.Index == index {
			return o, nil
		}
	}
	return models.Output{}, service.ErrInvalidOutputIndex
}
func (m *mockControl) History(index, max int) ([]service.HistorySample, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.history, nil
}
func (m *mockControl) NextChange(index int, now time.Time) (service.ScheduleChange, bool, error) {
	if m.err != nil {
		return service.ScheduleChange{}, false, m.err
	}
	return m.change, m.active, nil
}

type mockMonitoring struct {
	snapshot models.StatusSnapshot
}

func (m *mockMonitoring) Snapshot(now time.Time) models.StatusSnapshot {
	return m.snapshot
}

type mockEventLog struct {
	resp     []models.Event
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.Event, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

type mockSafety struct {
	status      models.SafetyStatus
	requestErr  error
	clearErr    error
	lastReason  models.SafeModeReason
	requestCall int
	clearCall   int
}

func (m *mockSafety) RequestSafeMode(ctx context.Context, reason models.SafeModeReason) error {
	m.requestCall++
	m.lastReason = reason
	return m.requestErr
}
func (m *mockSafety) ClearSafeMode(ctx context.Context) error {
	m.clearCall++
	return m.clearErr
}
func (m *mockSafety) Status() models.SafetyStatus {
	return m.status
}

type mockSensors struct {
	sensors   []models.Sensor
	scanErr   error
	scanCalls int
}

func (m *mockSensors) List() []models.Sensor { return m.sensors }
func (m *mockSensors) Scan() error {
	m.scanCalls++
	return m.scanErr
}

type mockConfig struct {
	saveErr   error
	loadErr   error
	saveCalls int
}

func (m *mockConfig) Save(ctx context.Context) error {
	m.saveCalls++
	return m.saveErr
}
func (m *mockConfig) Load(ctx context.Context) error { return m.loadErr }

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
