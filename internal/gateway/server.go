// Package gateway serves cupid's HTTP surface: a public health probe, token
// protected status endpoints, and the browser chat WebSocket.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/soyeahso/cupid/internal/channel"
	"github.com/soyeahso/cupid/internal/config"
	"github.com/soyeahso/cupid/internal/domain"
	"github.com/soyeahso/cupid/internal/hooks"
	"github.com/soyeahso/cupid/internal/logging"
	"github.com/soyeahso/cupid/internal/store"
	"github.com/soyeahso/cupid/internal/version"
)

// SessionSource reports live conversations.
type SessionSource interface {
	Sessions() []domain.SessionSummary
	Active() int
}

// StatsSource reports aggregate ledger counts.
type StatsSource interface {
	Stats() (store.LedgerStats, error)
}

// NoteSearcher looks up delivered valentine notes.
type NoteSearcher interface {
	Search(query string, limit int) ([]domain.Note, error)
	Recent(limit int) ([]domain.Note, error)
}

// Server is the cupid gateway HTTP server.
type Server struct {
	cfg     config.GatewayConfig
	auth    ResolvedAuth
	log     *logging.Logger
	version string

	channels *channel.Registry
	hooks    *hooks.Manager
	sessions SessionSource
	ledger   StatsSource
	notes    NoteSearcher
	web      http.Handler

	authLimiter *authRateLimiter

	mu        sync.RWMutex
	startedAt time.Time
	addr      string
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithChannels sets the channel registry for channel status reporting.
func WithChannels(ch *channel.Registry) ServerOption {
	return func(s *Server) { s.channels = ch }
}

// WithHooks sets the hook manager for lifecycle events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) { s.hooks = hm }
}

// WithSessions exposes live sessions on /sessions and /status.
func WithSessions(src SessionSource) ServerOption {
	return func(s *Server) { s.sessions = src }
}

// WithLedger exposes ledger totals on /status.
func WithLedger(src StatsSource) ServerOption {
	return func(s *Server) { s.ledger = src }
}

// WithNotes exposes the notes archive on /notes.
func WithNotes(n NoteSearcher) ServerOption {
	return func(s *Server) { s.notes = n }
}

// WithWeb mounts the browser chat handler at /ws.
func WithWeb(h http.Handler) ServerOption {
	return func(s *Server) { s.web = h }
}

// New creates a new gateway server.
func New(cfg config.GatewayConfig, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		auth:        ResolveAuth(cfg.Auth),
		log:         log.Sub("gateway"),
		version:     version.Version,
		authLimiter: newAuthRateLimiter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan", "auto":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Handler returns the full HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.AllowedOrigins)
}

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.startedAt = time.Now()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	go s.authLimiter.run(ctx)

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Bool("tokenSet", s.auth.Token != "").
		Bool("web", s.web != nil).
		Msg("gateway server ready")

	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.EventServeStart, map[string]any{
			"addr": ln.Addr().String(),
		})
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		if s.hooks != nil {
			s.hooks.Emit(context.Background(), hooks.EventServeStop, nil)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the bound listen address, or empty string if not started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

func (s *Server) uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}
