package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		parseErr  error
		wantCode  int
		wantError string
	}{
		{
			name:      "missing header",
			header:    "",
			wantCode:  http.StatusUnauthorized,
			wantError: errAuthMissing,
		},
		{
			name:      "wrong scheme",
			header:    "Token abc",
			wantCode:  http.StatusUnauthorized,
			wantError: errAuthMalformed,
		},
		{
			name:      "no token part",
			header:    "Bearer",
			wantCode:  http.StatusUnauthorized,
			wantError: errAuthMalformed,
		},
		{
			name:      "empty token",
			header:    "Bearer ",
			wantCode:  http.StatusUnauthorized,
			wantError: errAuthMalformed,
		},
		{
			name:      "invalid token",
			header:    "Bearer bad-token",
			parseErr:  errors.New("signature mismatch"),
			wantCode:  http.StatusUnauthorized,
			wantError: errAuthRejected,
		},
		{
			name:     "valid token",
			header:   "Bearer good-token",
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &mockAuth{parseID: 42, parseErr: tt.parseErr}
			s, _ := testService(nil)
			s.Authorization = auth
			r := newTestRouter(s)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/outputs/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d (body=%s)", tt.wantCode, w.Code, w.Body.String())
			}
			if tt.wantError != "" {
				var resp map[string]string
				_ = json.Unmarshal(w.Body.Bytes(), &resp)
				if resp["error"] != tt.wantError {
					t.Fatalf("expected error %q, got %q", tt.wantError, resp["error"])
				}
			}
			if tt.wantCode == http.StatusOK && auth.lastParseToken != "good-token" {
				t.Fatalf("token not forwarded to the parser: %q", auth.lastParseToken)
			}
		})
	}
}
