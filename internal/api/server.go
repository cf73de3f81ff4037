package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rf24mqtt/rf24mqtt/internal/gateway"
	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/config"
	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/influxdb"
	"github.com/rf24mqtt/rf24mqtt/internal/infrastructure/logging"
	"github.com/rf24mqtt/rf24mqtt/internal/process"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// GatewayStatus is the read side of the gateway. *gateway.Gateway implements it.
type GatewayStatus interface {
	Stats() gateway.Stats
	Devices() []gateway.DeviceInfo
	IsHealthy() bool
}

// RadioStatus reports on the RF24Node process. *radio.Manager implements it.
type RadioStatus interface {
	Stats() process.Stats
}

// TelemetryStatus reports InfluxDB write counters. *influxdb.Client implements it.
type TelemetryStatus interface {
	Stats() influxdb.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Gateway GatewayStatus
	Radio   RadioStatus // optional
	// Telemetry is optional; nil when InfluxDB is disabled or unreachable.
	Telemetry TelemetryStatus
	Version   string
}

// Server is the status HTTP server.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	gateway   GatewayStatus
	radio     RadioStatus
	telemetry TelemetryStatus
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	registry  *prometheus.Registry
	cancel    context.CancelFunc
}

// New creates a new API server. The server is not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}

	logger := deps.Logger.With("component", "api")
	return &Server{
		cfg:       deps.Config,
		logger:    logger,
		gateway:   deps.Gateway,
		radio:     deps.Radio,
		telemetry: deps.Telemetry,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.Config.WebSocket, logger),
		registry:  newMetricsRegistry(deps.Gateway, deps.Radio),
	}, nil
}

// Hub returns the WebSocket hub. Register it with the gateway as an
// observer to feed connected clients.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
