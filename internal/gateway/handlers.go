package gateway

import (
	"encoding/json"
	"net/http"
)

// HealthResponse is returned by the public health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Path  string `json:"path,omitempty"`
}

// handleHealth returns the server health status. Only status is exposed
// publicly; details are on the authenticated /status endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: "not found", Path: r.URL.Path})
}

// requireAuth rejects requests without a valid gateway token. Repeated
// failures from one address are throttled.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authLimiter.allow(r.RemoteAddr) {
			s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited, too many failed auth attempts")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests"})
			return
		}
		result := Authorize(s.auth, requestToken(r))
		if !result.OK {
			s.authLimiter.recordFailure(r.RemoteAddr)
			s.log.Debug().Str("remote", r.RemoteAddr).Str("reason", result.Reason).Msg("unauthorized request")
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: result.Reason})
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
