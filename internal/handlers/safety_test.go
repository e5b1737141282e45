package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/cheew/terratherm/internal/models"
)

func TestSafetyEndpoints(t *testing.T) {
	t.Run("status reflects supervisor state", func(t *testing.T) {
		saf := &mockSafety{status: models.SafetyStatus{
			SafeMode:  true,
			Reason:    models.ReasonBootLoop,
			BootCount: 5,
			Watchdog:  true,
		}}
		s, _ := testService(nil)
		s.Safety = saf
		r := newTestRouter(s)

		w := doRequest(r, http.MethodGet, "/api/v1/safety/", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
		}
		var got models.SafetyStatus
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !got.SafeMode || got.Reason != models.ReasonBootLoop || got.BootCount != 5 {
			t.Fatalf("unexpected status: %+v", got)
		}
	})

	t.Run("request safe mode is user_requested", func(t *testing.T) {
		saf := &mockSafety{}
		s, _ := testService(nil)
		s.Safety = saf
		r := newTestRouter(s)

		w := doRequest(r, http.MethodPost, "/api/v1/safety/safe-mode", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
		}
		if saf.requestCall != 1 || saf.lastReason != models.ReasonUserRequested {
			t.Fatalf("wrong call: count=%d reason=%s", saf.requestCall, saf.lastReason)
		}
	})

	t.Run("request failure is 500", func(t *testing.T) {
		saf := &mockSafety{requestErr: errors.New("db down")}
		s, _ := testService(nil)
		s.Safety = saf
		r := newTestRouter(s)

		w := doRequest(r, http.MethodPost, "/api/v1/safety/safe-mode", "")
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", w.Code)
		}
	})

	t.Run("clear safe mode", func(t *testing.T) {
		saf := &mockSafety{}
		s, _ := testService(nil)
		s.Safety = saf
		r := newTestRouter(s)

		w := doRequest(r, http.MethodPost, "/api/v1/safety/clear", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
		}
		if saf.clearCall != 1 {
			t.Fatalf("expected one ClearSafeMode call, got %d", saf.clearCall)
		}
	})

	t.Run("emergency stop", func(t *testing.T) {
		s, control := testService(nil)
		r := newTestRouter(s)

		w := doRequest(r, http.MethodPost, "/api/v1/safety/emergency-stop", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
		}
		if control.stopCalls != 1 {
			t.Fatalf("expected one EmergencyStop call, got %d", control.stopCalls)
		}
		var resp map[string]string
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if resp["status"] != statusStopped {
			t.Fatalf("expected status %q, got %q", statusStopped, resp["status"])
		}
	})
}

func TestSensorEndpoints(t *testing.T) {
	sensors := []models.Sensor{
		{Address: "28-000000000000", Discovered: true},
		{Address: "28-000000000001", Discovered: false},
	}

	t.Run("list", func(t *testing.T) {
		s, _ := testService(nil)
		s.Sensors = &mockSensors{sensors: sensors}
		r := newTestRouter(s)

		w := doRequest(r, http.MethodGet, "/api/v1/sensors/", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
		}
		var resp struct {
			Count   int             `json:"count"`
			Sensors []models.Sensor `json:"sensors"`
		}
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Count != 2 || len(resp.Sensors) != 2 {
			t.Fatalf("unexpected response: %+v", resp)
		}
	})

	t.Run("scan returns the refreshed table", func(t *testing.T) {
		sens := &mockSensors{sensors: sensors}
		s, _ := testService(nil)
		s.Sensors = sens
		r := newTestRouter(s)

		w := doRequest(r, http.MethodPost, "/api/v1/sensors/scan", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
		}
		if sens.scanCalls != 1 {
			t.Fatalf("expected one Scan call, got %d", sens.scanCalls)
		}
	})

	t.Run("scan failure is 500", func(t *testing.T) {
		s, _ := testService(nil)
		s.Sensors = &mockSensors{scanErr: errors.New("bus fault")}
		r := newTestRouter(s)

		w := doRequest(r, http.MethodPost, "/api/v1/sensors/scan", "")
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", w.Code)
		}
	})
}
