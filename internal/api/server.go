package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/device"
	"github.com/nerrad567/gray-logic-node/internal/history"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/session"
)

// gracefulShutdownTimeout bounds in-flight requests at Close.
const gracefulShutdownTimeout = 10 * time.Second

// Loop runs functions on the node's loop goroutine.
type Loop interface {
	Call(ctx context.Context, fn func()) error
}

// Session is the part of the MQTT session the API reads and drives. It is
// only touched inside Loop.Call.
type Session interface {
	Snapshot() session.Status
	Publish(topic, payload string, qos byte, retain bool) bool
}

// Devices is the node's entity registry. It is only touched inside
// Loop.Call.
type Devices interface {
	Snapshot() []device.Info
	Get(kind device.Kind, objectID string) (device.Entity, error)
}

// HealthChecker is implemented by the database and InfluxDB clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies of the API server. History, Devices and the
// health checkers are optional.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Loop    Loop
	Session Session
	Devices Devices
	History history.Repository
	Checks  map[string]HealthChecker
	Stats   StatsSource
	Version string
}

// Server is the node's local diagnostics API.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	loop      Loop
	session   Session
	devices   Devices
	history   history.Repository
	checks    map[string]HealthChecker
	stats     StatsSource
	version   string
	startTime time.Time

	hub      *Hub
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a server. It does not listen until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Loop == nil {
		return nil, fmt.Errorf("loop is required")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if deps.WS.Path == "" {
		deps.WS.Path = "/api/v1/ws"
	}
	if deps.WS.MaxMessageSize <= 0 {
		deps.WS.MaxMessageSize = 4096
	}
	if deps.WS.PingInterval <= 0 {
		deps.WS.PingInterval = 30
	}
	if deps.WS.PongTimeout <= 0 {
		deps.WS.PongTimeout = 10
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		loop:      deps.Loop,
		session:   deps.Session,
		devices:   deps.Devices,
		history:   deps.History,
		checks:    deps.Checks,
		stats:     deps.Stats,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, deps.Logger),
	}, nil
}

// Hub returns the WebSocket hub. It observes the session so clients get
// live session events.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listen address and serves in the background. A port in
// use is reported here rather than logged later.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port)))
	if err != nil {
		s.cancel()
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = ln
	s.logger.Info("API server listening", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops the hub and shuts the server down, waiting for in-flight
// requests up to ten seconds.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// onLoop runs fn on the loop goroutine, bounded by the request context.
func (s *Server) onLoop(ctx context.Context, fn func()) error {
	return s.loop.Call(ctx, fn)
}
