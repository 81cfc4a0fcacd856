// SensorFlow Hub - IoT Telemetry Backend
//
// This is the main entry point for the SensorFlow Hub application.
// SensorFlow Hub is a self-hosted backend for home climate sensors:
//   - Token-authenticated REST API for devices and dashboards
//   - Per-user sensor data isolation
//   - SQLite or in-memory storage behind one protocol
//   - Optional MQTT ingest for constrained devices
//   - Optional InfluxDB mirror for time-series dashboards
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/sensorflow-hub/migrations"

	"github.com/nerrad567/sensorflow-hub/internal/api"
	"github.com/nerrad567/sensorflow-hub/internal/auth"
	"github.com/nerrad567/sensorflow-hub/internal/infrastructure/config"
	"github.com/nerrad567/sensorflow-hub/internal/infrastructure/database"
	"github.com/nerrad567/sensorflow-hub/internal/infrastructure/influxdb"
	"github.com/nerrad567/sensorflow-hub/internal/infrastructure/logging"
	"github.com/nerrad567/sensorflow-hub/internal/infrastructure/mqtt"
	"github.com/nerrad567/sensorflow-hub/internal/ingest"
	"github.com/nerrad567/sensorflow-hub/internal/sensor"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	// This is the Go pattern for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run the application
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting SensorFlow Hub",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open storage for the configured driver
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer func() {
			log.Info("closing database")
			if closeErr := st.db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
	}

	// Connect to InfluxDB (optional reading mirror)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		// Set up InfluxDB error callback
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// A nil *Client inside a non-nil interface would bypass the sensor
	// service's mirror check, so only assign when InfluxDB is up.
	var mirror sensor.ReadingMirror
	if influxClient != nil {
		mirror = influxClient
	}

	// Create domain services
	authSvc, err := auth.NewService(auth.Deps{
		Users:      st.users,
		Sessions:   st.sessions,
		Resets:     st.resets,
		Sender:     auth.NewLogCodeSender(log.Logger),
		Logger:     log.Logger,
		SessionTTL: cfg.GetSessionTTL(),
		ResetTTL:   cfg.GetResetCodeTTL(),
	})
	if err != nil {
		return fmt.Errorf("creating auth service: %w", err)
	}

	sensorSvc, err := sensor.NewService(st.readings, mirror, log.Logger)
	if err != nil {
		return fmt.Errorf("creating sensor service: %w", err)
	}

	// Sweep expired sessions and reset codes in the background
	go authSvc.RunCleanup(ctx, cfg.GetCleanupInterval())
	log.Info("session cleanup scheduled", "interval", cfg.GetCleanupInterval())

	// Start MQTT ingest bridge (if enabled)
	var mqttClient *mqtt.Client
	var bridge *ingest.Bridge
	if cfg.MQTT.Enabled {
		mqttClient, bridge, err = startIngest(cfg, authSvc, sensorSvc, log)
		if err != nil {
			return fmt.Errorf("starting MQTT ingest: %w", err)
		}
		defer func() {
			log.Info("stopping ingest bridge")
			bridge.Stop()
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT ingest disabled")
	}

	// Start HTTP API server
	apiServer, err := api.New(api.Deps{
		Config:        cfg.API,
		Logger:        log,
		Auth:          authSvc,
		Sensors:       sensorSvc,
		DB:            st.db,
		MQTT:          mqttClient,
		Influx:        influxClient,
		StorageDriver: cfg.Database.Driver,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		"tls", cfg.API.TLS.Enabled,
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, st.db, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"storage", cfg.Database.Driver,
	)

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Ingest bridge + MQTT (if enabled)
	// 3. InfluxDB (if enabled)
	// 4. Database (if sqlite)

	log.Info("SensorFlow Hub stopped")
	return nil
}

// stores bundles the storage collaborators selected by the database
// driver. db is nil for the memory driver.
type stores struct {
	db       *database.DB
	users    auth.UserRepository
	sessions auth.SessionRepository
	resets   auth.ResetRepository
	readings sensor.Repository
}

// openStores opens the configured storage backend and builds the
// repositories on top of it.
//
// Driver "sqlite" opens the database file and runs pending migrations.
// Driver "memory" needs no setup; every store starts empty.
//
// Parameters:
//   - ctx: Context for connection and migrations
//   - cfg: Application configuration
//   - log: Logger instance
//
// Returns:
//   - *stores: Ready repositories for both domains
//   - error: If the database cannot be opened or migrated
func openStores(ctx context.Context, cfg *config.Config, log *logging.Logger) (*stores, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err := database.Open(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		log.Info("database connected", "path", cfg.Database.Path)

		if err := db.Migrate(ctx); err != nil {
			closeErr := db.Close()
			if closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database migrations complete")

		return &stores{
			db:       db,
			users:    auth.NewUserRepository(db.DB),
			sessions: auth.NewSessionRepository(db.DB),
			resets:   auth.NewResetRepository(db.DB),
			readings: sensor.NewSQLiteRepository(db.DB),
		}, nil

	case config.DriverMemory:
		log.Info("memory storage selected, data will not survive restart")
		return &stores{
			users:    auth.NewMemoryUserRepository(),
			sessions: auth.NewMemorySessionRepository(),
			resets:   auth.NewMemoryResetRepository(),
			readings: sensor.NewMemoryRepository(),
		}, nil

	default:
		// Load() validates the driver, so this is unreachable from main.
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// startIngest connects to the MQTT broker and starts the telemetry
// ingest bridge on top of it.
//
// Parameters:
//   - cfg: Application configuration
//   - authSvc: Auth service for token validation
//   - sensorSvc: Sensor service for recording readings
//   - log: Logger instance
//
// Returns:
//   - *mqtt.Client: Connected MQTT client (caller owns Close)
//   - *ingest.Bridge: Running bridge (caller owns Stop)
//   - error: If the broker connection or subscription fails
func startIngest(cfg *config.Config, authSvc *auth.Service, sensorSvc *sensor.Service, log *logging.Logger) (*mqtt.Client, *ingest.Bridge, error) {
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Set up MQTT logging callbacks
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	bridge, err := ingest.New(ingest.Deps{
		MQTT:    mqttClient,
		Auth:    authSvc,
		Sensors: sensorSvc,
		Logger:  log,
	})
	if err != nil {
		// Clean up the broker connection on error
		_ = mqttClient.Close()
		return nil, nil, fmt.Errorf("creating ingest bridge: %w", err)
	}

	if err := bridge.Start(); err != nil {
		_ = mqttClient.Close()
		return nil, nil, fmt.Errorf("starting ingest bridge: %w", err)
	}
	log.Info("ingest bridge started")

	return mqttClient, bridge, nil
}

// getConfigPath returns the configuration file path.
// Uses SENSORFLOW_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SENSORFLOW_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// Optional collaborators may be nil and are skipped.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check (nil for the memory driver)
//   - mqttClient: MQTT client to check (nil if ingest is disabled)
//   - influxClient: InfluxDB client to check (nil if disabled)
//   - apiServer: API server to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
