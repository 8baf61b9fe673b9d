package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"reseller-hub/internal/model"
	"reseller-hub/pkg/logger"
)

// APIKeyHeader carries the API key on protected routes. A dashboard that
// cannot set custom headers may send "Authorization: Bearer <key>" instead.
const APIKeyHeader = "X-API-Key"

// AuthMiddleware guards the dashboard API with a shared key. An empty key
// leaves every route open, which is how the dashboard runs on localhost.
type AuthMiddleware struct {
	apiKey []byte
	logger *logger.Logger
}

func NewAuthMiddleware(apiKey string, log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		apiKey: []byte(apiKey),
		logger: log.WithComponent("auth"),
	}
}

// Authenticate wraps next so it only runs for requests carrying the key
func (m *AuthMiddleware) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(m.apiKey) == 0 {
			next(w, r)
			return
		}

		switch sent := requestKey(r); {
		case sent == "":
			m.reject(w, r, "Missing API key")
		case subtle.ConstantTimeCompare([]byte(sent), m.apiKey) != 1:
			m.reject(w, r, "Invalid API key")
		default:
			next(w, r)
		}
	}
}

func requestKey(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, r *http.Request, reason string) {
	m.logger.Warn(reason,
		"path", r.URL.Path,
		"method", r.Method,
		"remote_addr", r.RemoteAddr,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(model.APIResponse{
		Status:  "error",
		Message: reason,
		Error:   &model.APIError{Code: "ERR_UNAUTHORIZED", Message: reason},
	})
}
