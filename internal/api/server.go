package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/sensorflow-hub/internal/auth"
	"github.com/nerrad567/sensorflow-hub/internal/infrastructure/config"
	"github.com/nerrad567/sensorflow-hub/internal/infrastructure/database"
	"github.com/nerrad567/sensorflow-hub/internal/infrastructure/influxdb"
	"github.com/nerrad567/sensorflow-hub/internal/infrastructure/logging"
	"github.com/nerrad567/sensorflow-hub/internal/infrastructure/mqtt"
	"github.com/nerrad567/sensorflow-hub/internal/sensor"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
//
// Auth, Sensors and Logger are required. DB is nil when the memory
// storage variant is active; MQTT and Influx are nil unless those
// integrations are enabled. The health endpoint reports whatever is
// present.
type Deps struct {
	Config        config.APIConfig
	Logger        *logging.Logger
	Auth          *auth.Service
	Sensors       *sensor.Service
	DB            *database.DB
	MQTT          *mqtt.Client
	Influx        *influxdb.Client
	StorageDriver string
	Version       string
}

// Server is the HTTP API server for SensorFlow Hub.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start(); all methods are safe for
// concurrent use.
type Server struct {
	cfg           config.APIConfig
	logger        *logging.Logger
	auth          *auth.Service
	sensors       *sensor.Service
	db            *database.DB
	mqtt          *mqtt.Client
	influx        *influxdb.Client
	storageDriver string
	version       string
	server        *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, auth and sensor services)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("auth service is required")
	}
	if deps.Sensors == nil {
		return nil, fmt.Errorf("sensor service is required")
	}

	return &Server{
		cfg:           deps.Config,
		logger:        deps.Logger,
		auth:          deps.Auth,
		sensors:       deps.Sensors,
		db:            deps.DB,
		mqtt:          deps.MQTT,
		influx:        deps.Influx,
		storageDriver: deps.StorageDriver,
		version:       deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
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

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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
