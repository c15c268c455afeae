package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/ips-core/internal/account"
	"github.com/nerrad567/ips-core/internal/infrastructure/config"
	"github.com/nerrad567/ips-core/internal/infrastructure/database"
	"github.com/nerrad567/ips-core/internal/infrastructure/logging"
	"github.com/nerrad567/ips-core/internal/reading"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ReadingService is the part of reading.Service the handlers use.
type ReadingService interface {
	Latest(ctx context.Context) (*reading.Reading, error)
	Record(ctx context.Context, u reading.Upload) (*reading.Reading, error)
}

// HealthChecker is an optional integration reported by /health and
// /metrics. *mqtt.Client and *influxdb.Client satisfy it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Provider database.Provider
	Users    account.Authenticator
	Readings ReadingService

	// Optional integrations. Leave nil when disabled.
	MQTT     HealthChecker
	InfluxDB HealthChecker

	// Live serves GET /live. The route is not registered when nil.
	Live *LiveFeed

	Version string
}

// Server is the HTTP API server for IPS Core.
//
// It is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	provider database.Provider
	users    account.Authenticator
	readings ReadingService
	mqtt     HealthChecker
	influxdb HealthChecker
	live     *LiveFeed
	upgrader websocket.Upgrader
	version  string

	startTime time.Time
	server    *http.Server
	listener  net.Listener

	uploadsAccepted atomic.Uint64
	uploadsRejected atomic.Uint64
	uploadsFailed   atomic.Uint64
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Provider == nil {
		return nil, fmt.Errorf("connection provider is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if deps.Readings == nil {
		return nil, fmt.Errorf("reading service is required")
	}

	s := &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		provider:  deps.Provider,
		users:     deps.Users,
		readings:  deps.Readings,
		mqtt:      deps.MQTT,
		influxdb:  deps.InfluxDB,
		live:      deps.Live,
		version:   deps.Version,
		startTime: time.Now(),
	}
	s.upgrader = s.newUpgrader()
	return s, nil
}

// Start binds the listen address and serves requests in the background.
//
// Binding happens before Start returns, so a port that is already in use
// is reported here. The server runs until Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("binding API listener: %w", err)
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

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// disconnects live feed clients, whose hijacked connections Shutdown does
// not track.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)
	if s.live != nil {
		s.live.Close()
	}
	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
