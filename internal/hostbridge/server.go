// Package hostbridge exposes countdown services to hosts over WebSocket
// and serves the session history API.
package hostbridge

import (
	"net/http"
	"sync"
	"time"

	"studytimer/internal/broadcast"
	"studytimer/internal/clock"
	"studytimer/internal/core/model"
	"studytimer/internal/ratelimit"
	"studytimer/internal/storage"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config controls the bridge.
type Config struct {
	// Channel is the broadcast channel every connection joins.
	Channel string
	// StudySeconds is used by start commands without a duration.
	StudySeconds      int
	Countdown         model.CountdownConfig
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// ConfigFromSettings extracts the bridge configuration.
func ConfigFromSettings(settings model.Settings) Config {
	return Config{
		Channel:           settings.Channel,
		StudySeconds:      settings.StudySeconds(),
		Countdown:         settings.Countdown,
		RateLimitRequests: settings.RateLimitRequests,
		RateLimitWindow:   settings.RateLimitWindow,
	}
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock used by connection services and the limiter.
func WithClock(source clock.Clock) Option {
	return func(server *Server) { server.clock = source }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(server *Server) { server.logger = logger }
}

// WithHistory records finished sessions in store and serves them.
func WithHistory(store *storage.HistoryStore) Option {
	return func(server *Server) { server.history = store }
}

// Server bridges WebSocket hosts to countdown services joined on a hub.
type Server struct {
	config   Config
	hub      *broadcast.Hub
	clock    clock.Clock
	logger   *zap.Logger
	history  *storage.HistoryStore
	recorder *storage.SessionRecorder
	limiter  *ratelimit.Limiter
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a bridge whose connections publish on hub.
func NewServer(config Config, hub *broadcast.Hub, options ...Option) *Server {
	server := &Server{
		config:   config,
		hub:      hub,
		clock:    clock.Real(),
		logger:   zap.NewNop(),
		sessions: make(map[*session]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Hosts are local pages and tools; origin checks are left to
			// the listen address.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, option := range options {
		option(server)
	}
	if server.config.Channel == "" {
		server.config.Channel = model.DefaultSettings().Channel
	}
	server.config.Countdown = server.config.Countdown.Normalized()
	server.limiter = ratelimit.New(config.RateLimitRequests, config.RateLimitWindow, server.clock)
	if server.history != nil {
		server.recorder = storage.NewSessionRecorder(server.history, server.logger)
	}
	return server
}

// Handler returns the HTTP routes, each behind the rate limiter.
func (server *Server) Handler() http.Handler {
	limit := ratelimit.Middleware(server.limiter, ratelimit.RouteAndClient, server.logger)
	mux := http.NewServeMux()
	mux.Handle("GET /ws", limit(http.HandlerFunc(server.serveSocket)))
	mux.Handle("GET /healthz", limit(http.HandlerFunc(server.handleHealth)))
	mux.Handle("GET /api/sessions", limit(http.HandlerFunc(server.handleSessions)))
	mux.Handle("GET /api/sessions/{id}", limit(http.HandlerFunc(server.handleSession)))
	mux.Handle("DELETE /api/sessions/{id}", limit(http.HandlerFunc(server.handleDeleteSession)))
	mux.Handle("GET /api/summary", limit(http.HandlerFunc(server.handleSummary)))
	return mux
}

// UpdateConfig applies new countdown timings to every connection and to
// connections opened later.
func (server *Server) UpdateConfig(config model.CountdownConfig) {
	config = config.Normalized()
	server.mu.Lock()
	server.config.Countdown = config
	sessions := make([]*session, 0, len(server.sessions))
	for sess := range server.sessions {
		sessions = append(sessions, sess)
	}
	server.mu.Unlock()

	for _, sess := range sessions {
		sess.service.UpdateConfig(config)
	}
	server.logger.Info("Countdown config updated", zap.Int("connections", len(sessions)))
}

// Connections returns the number of open host connections.
func (server *Server) Connections() int {
	server.mu.Lock()
	defer server.mu.Unlock()
	return len(server.sessions)
}

// Close disconnects every host and waits for their services to stop.
func (server *Server) Close() {
	server.mu.Lock()
	server.closed = true
	for sess := range server.sessions {
		_ = sess.conn.Close()
	}
	server.mu.Unlock()
	server.wg.Wait()
}

func (server *Server) countdownConfig() model.CountdownConfig {
	server.mu.Lock()
	defer server.mu.Unlock()
	return server.config.Countdown
}

func (server *Server) register(sess *session) bool {
	server.mu.Lock()
	defer server.mu.Unlock()
	if server.closed {
		return false
	}
	server.sessions[sess] = struct{}{}
	server.wg.Add(1)
	return true
}

func (server *Server) unregister(sess *session) {
	server.mu.Lock()
	delete(server.sessions, sess)
	server.mu.Unlock()
	server.wg.Done()
}
