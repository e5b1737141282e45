package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSignUp(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		signUpID int
		signUpE  error
		wantCode int
		wantID   float64
	}{
		{
			name:     "ok",
			body:     `{"username":"keeper","password":"gecko-heat-1"}`,
			signUpID: 3,
			wantCode: http.StatusOK,
			wantID:   3,
		},
		{
			name:     "missing password",
			body:     `{"username":"keeper"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "service error",
			body:     `{"username":"keeper","password":"pw"}`,
			signUpE:  errors.New("username taken"),
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &mockAuth{signUpID: tt.signUpID, signUpErr: tt.signUpE}
			s, _ := testService(nil)
			s.Authorization = auth
			r := newTestRouter(s)

			w := postJSON(r, "/auth/sign-up", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d (body=%s)", tt.wantCode, w.Code, w.Body.String())
			}
			if tt.wantCode == http.StatusOK {
				var resp map[string]float64
				_ = json.Unmarshal(w.Body.Bytes(), &resp)
				if resp["id"] != tt.wantID {
					t.Fatalf("expected id %v, got %v", tt.wantID, resp["id"])
				}
				if auth.lastSignUpUsername != "keeper" {
					t.Fatalf("username not forwarded: %q", auth.lastSignUpUsername)
				}
			}
		})
	}
}

func TestSignIn(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		auth := &mockAuth{genTokenToken: "signed.jwt.token"}
		s, _ := testService(nil)
		s.Authorization = auth
		r := newTestRouter(s)

		w := postJSON(r, "/auth/sign-in", `{"username":"keeper","password":"pw"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
		}
		var resp map[string]string
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if resp["token"] != "signed.jwt.token" {
			t.Fatalf("unexpected token: %q", resp["token"])
		}
	})

	t.Run("bad credentials hide the cause", func(t *testing.T) {
		auth := &mockAuth{genTokenErr: errors.New("user not found")}
		s, _ := testService(nil)
		s.Authorization = auth
		r := newTestRouter(s)

		w := postJSON(r, "/auth/sign-in", `{"username":"ghost","password":"pw"}`)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
		var resp map[string]string
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if resp["error"] != "invalid credentials" {
			t.Fatalf("expected generic error, got %q", resp["error"])
		}
	})
}
