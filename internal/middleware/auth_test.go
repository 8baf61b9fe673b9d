package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reseller-hub/internal/model"
	"reseller-hub/pkg/logger"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		sent       string
		bearer     string
		wantStatus int
		wantMsg    string
	}{
		{name: "disabled without key", configured: "", sent: "", wantStatus: http.StatusTeapot},
		{name: "valid key", configured: "k1", sent: "k1", wantStatus: http.StatusTeapot},
		{name: "missing key", configured: "k1", sent: "", wantStatus: http.StatusUnauthorized, wantMsg: "Missing API key"},
		{name: "wrong key", configured: "k1", sent: "k2", wantStatus: http.StatusUnauthorized, wantMsg: "Invalid API key"},
		{name: "bearer token", configured: "k1", bearer: "Bearer k1", wantStatus: http.StatusTeapot},
		{name: "wrong bearer token", configured: "k1", bearer: "Bearer k2", wantStatus: http.StatusUnauthorized, wantMsg: "Invalid API key"},
		{name: "other scheme", configured: "k1", bearer: "Basic azE=", wantStatus: http.StatusUnauthorized, wantMsg: "Missing API key"},
		{name: "header wins over bearer", configured: "k1", sent: "k1", bearer: "Bearer k2", wantStatus: http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewAuthMiddleware(tt.configured, logger.Nop())
			req := httptest.NewRequest(http.MethodGet, "/api/v1/shipments", nil)
			if tt.sent != "" {
				req.Header.Set(APIKeyHeader, tt.sent)
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", tt.bearer)
			}
			rec := httptest.NewRecorder()

			m.Authenticate(okHandler)(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantMsg != "" {
				var resp model.APIResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, "error", resp.Status)
				assert.Equal(t, "ERR_UNAUTHORIZED", resp.Error.Code)
				assert.Equal(t, tt.wantMsg, resp.Message)
			}
		})
	}
}
