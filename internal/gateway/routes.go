package gateway

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/soyeahso/cupid/internal/domain"
	"github.com/soyeahso/cupid/internal/store"
)

const (
	defaultNoteLimit = 20
	maxNoteLimit     = 200
)

// StatusResponse is returned by /status.
type StatusResponse struct {
	Version        string                 `json:"version"`
	UptimeSeconds  int64                  `json:"uptimeSeconds"`
	ActiveSessions int                    `json:"activeSessions"`
	Ledger         *store.LedgerStats     `json:"ledger,omitempty"`
	Channels       []domain.ChannelStatus `json:"channels"`
}

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.requireAuth(s.handleStatus))
	mux.HandleFunc("GET /sessions", s.requireAuth(s.handleSessions))
	mux.HandleFunc("GET /notes", s.requireAuth(s.handleNotes))
	mux.HandleFunc("GET /channels", s.requireAuth(s.handleChannels))
	if s.web != nil {
		mux.Handle("GET /ws", s.web)
	}

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version:       s.version,
		UptimeSeconds: int64(s.uptime().Seconds()),
		Channels:      s.channelStatus(),
	}
	if s.sessions != nil {
		resp.ActiveSessions = s.sessions.Active()
	}
	if s.ledger != nil {
		stats, err := s.ledger.Stats()
		if err != nil {
			s.log.Warn().Err(err).Msg("reading ledger stats")
		} else {
			resp.Ledger = &stats
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := []domain.SessionSummary{}
	if s.sessions != nil {
		sessions = append(sessions, s.sessions.Sessions()...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// handleNotes searches delivered notes with ?q=, or lists the most recent
// ones when q is empty.
func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	if s.notes == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "notes archive not configured"})
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	var notes []domain.Note
	if q := r.URL.Query().Get("q"); q != "" {
		notes, err = s.notes.Search(q, limit)
	} else {
		notes, err = s.notes.Recent(limit)
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("notes query failed")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid query"})
		return
	}
	if notes == nil {
		notes = []domain.Note{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"channels": s.channelStatus()})
}

func (s *Server) channelStatus() []domain.ChannelStatus {
	if s.channels == nil {
		return []domain.ChannelStatus{}
	}
	return s.channels.Status()
}

var errBadLimit = errors.New("limit must be a positive integer")

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultNoteLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errBadLimit
	}
	if n > maxNoteLimit {
		n = maxNoteLimit
	}
	return n, nil
}
