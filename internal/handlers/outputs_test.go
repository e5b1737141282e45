package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cheew/terratherm/internal/models"
	"github.com/cheew/terratherm/internal/service"
)

func testService(control *mockControl) (*service.Service, *mockControl) {
	if control == nil {
		control = &mockControl{}
	}
	s := &service.Service{
		Authorization: &mockAuth{parseID: 7},
		Control:       control,
		Monitoring:    &mockMonitoring{},
		Safety:        &mockSafety{},
		Sensors:       &mockSensors{},
		Config:        &mockConfig{},
		EventLog:      &mockEventLog{},
	}
	return s, control
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestOutputHandlers_RequireAuth(t *testing.T) {
	s, _ := testService(nil)
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/outputs/", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth, got %d", w.Code)
	}
}

func TestOutputHandlers_ListAndGet(t *testing.T) {
	control := &mockControl{outputs: []models.Output{
		{Index: 0, Name: "Basking Light", Mode: models.ModeOff},
		{Index: 1, Name: "Warm Side", Mode: models.ModePID, TargetC: 31.5},
	}}
	s, _ := testService(control)
	r := newTestRouter(s)

	w := doRequest(r, http.MethodGet, "/api/v1/outputs/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status=%d, body=%s", w.Code, w.Body.String())
	}
	var listResp struct {
		Outputs []models.Output `json:"outputs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(listResp.Outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(listResp.Outputs))
	}

	w = doRequest(r, http.MethodGet, "/api/v1/outputs/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status=%d, body=%s", w.Code, w.Body.String())
	}
	var o models.Output
	if err := json.Unmarshal(w.Body.Bytes(), &o); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if o.Name != "Warm Side" || o.TargetC != 31.5 {
		t.Fatalf("unexpected output: %+v", o)
	}

	// Unknown index resolves through the service error.
	w = doRequest(r, http.MethodGet, "/api/v1/outputs/9", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	// Non-numeric index is a bad request.
	w = doRequest(r, http.MethodGet, "/api/v1/outputs/abc", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestOutputHandlers_Commands(t *testing.T) {
	s, control := testService(nil)
	r := newTestRouter(s)

	w := doRequest(r, http.MethodPut, "/api/v1/outputs/1/mode", `{"mode":"pid"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("mode status=%d, body=%s", w.Code, w.Body.String())
	}
	if control.lastIndex != 1 || control.lastMode != models.ModePID {
		t.Fatalf("wrong SetMode params: index=%d mode=%s", control.lastIndex, control.lastMode)
	}

	w = doRequest(r, http.MethodPut, "/api/v1/outputs/1/target", `{"target_c":31.5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("target status=%d, body=%s", w.Code, w.Body.String())
	}
	if control.lastTarget != 31.5 {
		t.Fatalf("wrong target: %.1f", control.lastTarget)
	}

	w = doRequest(r, http.MethodPut, "/api/v1/outputs/1/power", `{"power":0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("power status=%d, body=%s", w.Code, w.Body.String())
	}
	if control.lastPower != 0 {
		t.Fatalf("zero power must bind through the pointer, got %d", control.lastPower)
	}

	w = doRequest(r, http.MethodPut, "/api/v1/outputs/1/gains", `{"kp":8,"ki":0.2,"kd":1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("gains status=%d, body=%s", w.Code, w.Body.String())
	}
	if control.lastGains.Kp != 8 {
		t.Fatalf("wrong gains: %+v", control.lastGains)
	}

	w = doRequest(r, http.MethodPut, "/api/v1/outputs/1/schedule",
		`{"slots":[{"enabled":true,"hour":7,"minute":0,"target_c":28,"days":127}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("schedule status=%d, body=%s", w.Code, w.Body.String())
	}
	if len(control.lastSlots) != 1 || control.lastSlots[0].Hour != 7 {
		t.Fatalf("wrong slots: %+v", control.lastSlots)
	}
}

func TestOutputHandlers_CommandErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "unknown output", err: service.ErrInvalidOutputIndex, wantCode: http.StatusNotFound},
		{name: "fault still present", err: service.ErrFaultStillPresent, wantCode: http.StatusConflict},
		{name: "validation failure", err: service.ErrInvalidMode, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := testService(&mockControl{err: tt.err})
			r := newTestRouter(s)

			w := doRequest(r, http.MethodPut, "/api/v1/outputs/1/mode", `{"mode":"pid"}`)
			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d (body=%s)", tt.wantCode, w.Code, w.Body.String())
			}
		})
	}
}

func TestOutputHandlers_ClearFault(t *testing.T) {
	s, control := testService(nil)
	r := newTestRouter(s)

	w := doRequest(r, http.MethodPost, "/api/v1/outputs/1/clear-fault", "")
	if w.Code != http.StatusOK {
		t.Fatalf("clear status=%d, body=%s", w.Code, w.Body.String())
	}
	if control.clearFaultCalls != 1 {
		t.Fatalf("expected one ClearFault call, got %d", control.clearFaultCalls)
	}
	var resp map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != statusCleared {
		t.Fatalf("expected status %q, got %q", statusCleared, resp["status"])
	}
}

func TestOutputHandlers_HistoryAndNextChange(t *testing.T) {
	control := &mockControl{
		history: []service.HistorySample{{TempC: 30.5, Power: 40}},
		change:  service.ScheduleChange{Hour: 22, Minute: 0, TargetC: 22},
		active:  true,
	}
	s, _ := testService(control)
	r := newTestRouter(s)

	w := doRequest(r, http.MethodGet, "/api/v1/outputs/1/history?limit=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("history status=%d, body=%s", w.Code, w.Body.String())
	}
	var histResp struct {
		Count   int                     `json:"count"`
		Samples []service.HistorySample `json:"samples"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &histResp)
	if histResp.Count != 1 || histResp.Samples[0].Power != 40 {
		t.Fatalf("unexpected history: %+v", histResp)
	}

	w = doRequest(r, http.MethodGet, "/api/v1/outputs/1/next-change", "")
	if w.Code != http.StatusOK {
		t.Fatalf("next-change status=%d, body=%s", w.Code, w.Body.String())
	}
	var nextResp struct {
		Next *service.ScheduleChange `json:"next"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &nextResp)
	if nextResp.Next == nil || nextResp.Next.Hour != 22 {
		t.Fatalf("unexpected next change: %+v", nextResp.Next)
	}

	// No remaining change today serializes as null.
	control.active = false
	w = doRequest(r, http.MethodGet, "/api/v1/outputs/1/next-change", "")
	_ = json.Unmarshal(w.Body.Bytes(), &nextResp)
	if nextResp.Next != nil {
		t.Fatalf("expected null next change, got %+v", nextResp.Next)
	}
}

func TestStatusEndpoint(t *testing.T) {
	s, _ := testService(nil)
	s.Monitoring = &mockMonitoring{snapshot: models.StatusSnapshot{
		Safety:  models.SafetyStatus{SafeMode: true, Reason: models.ReasonWatchdog},
		Outputs: []models.OutputStatus{{Index: 0, Power: 0}},
	}}
	r := newTestRouter(s)

	w := doRequest(r, http.MethodGet, "/api/v1/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var snap models.StatusSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !snap.Safety.SafeMode || snap.Safety.Reason != models.ReasonWatchdog {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestSaveConfigEndpoint(t *testing.T) {
	s, _ := testService(nil)
	cfg := &mockConfig{}
	s.Config = cfg
	r := newTestRouter(s)

	w := doRequest(r, http.MethodPost, "/api/v1/config/save", "")
	if w.Code != http.StatusOK {
		t.Fatalf("save status=%d, body=%s", w.Code, w.Body.String())
	}
	if cfg.saveCalls != 1 {
		t.Fatalf("expected one Save call, got %d", cfg.saveCalls)
	}
}
