// IPS Core - sensor data backend
//
// This is the main entry point for the IPS Core HTTP service. It serves the
// field device and the mobile client:
//   - POST /login        credential check against the users table
//   - GET  /sensor-data  latest stored reading
//   - POST /upload_data  validate and store one reading
//
// Every stored reading is pushed to WebSocket clients on GET /live. MQTT
// and InfluxDB are optional: when enabled, stored readings are published to
// the broker and mirrored into the time-series bucket.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/nerrad567/ips-core/migrations"

	"github.com/nerrad567/ips-core/internal/account"
	"github.com/nerrad567/ips-core/internal/api"
	"github.com/nerrad567/ips-core/internal/infrastructure/config"
	"github.com/nerrad567/ips-core/internal/infrastructure/database"
	"github.com/nerrad567/ips-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/ips-core/internal/infrastructure/logging"
	"github.com/nerrad567/ips-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/ips-core/internal/reading"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path. A missing file is not an error: the
// process can be configured entirely from the environment.
const defaultConfigPath = "configs/config.yaml"

// startupHealthTimeout bounds the integration checks run before serving.
const startupHealthTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It blocks until ctx is cancelled, then shuts everything down in reverse
// order of startup.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting IPS Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath, true)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"driver", cfg.Database.Driver,
		"level", cfg.Logging.Level,
	)

	dbCfg := databaseConfig(cfg.Database)
	provider, closeProvider, err := openProvider(ctx, dbCfg, cfg.Database, log)
	if err != nil {
		return err
	}
	defer closeProvider()

	live := api.NewLiveFeed(log.With("component", "live"))
	publishers := []reading.Publisher{live}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, log.With("component", "mqtt"))
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", net.JoinHostPort(cfg.MQTT.Broker.Host, strconv.Itoa(cfg.MQTT.Broker.Port)),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		publishers = append(publishers, reading.PublisherFunc(mqttClient.PublishLatest))
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB, log.With("component", "influxdb"))
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

		publishers = append(publishers, reading.PublisherFunc(influxClient.WriteReading))
	} else {
		log.Info("InfluxDB disabled")
	}

	healthCtx, healthCancel := context.WithTimeout(ctx, startupHealthTimeout)
	err = healthCheck(healthCtx, mqttClient, influxClient)
	healthCancel()
	if err != nil {
		return fmt.Errorf("startup health check: %w", err)
	}

	readingLog := log.With("component", "reading")
	readings := reading.NewService(reading.NewRepository(provider), readingLog, publishers...)

	// Devices may also post readings over MQTT.
	if mqttClient != nil && cfg.MQTT.Ingest {
		ingestor := reading.NewIngestor(readings, readingLog)
		if subErr := mqttClient.SubscribeUploads(ctx, ingestor.HandleUpload); subErr != nil {
			return fmt.Errorf("subscribing to %s: %w", mqtt.TopicUpload, subErr)
		}
		defer func() {
			unsubCtx, cancel := context.WithTimeout(context.Background(), startupHealthTimeout)
			defer cancel()
			if unsubErr := mqttClient.UnsubscribeUploads(unsubCtx); unsubErr != nil {
				log.Warn("error unsubscribing", "topic", mqtt.TopicUpload, "error", unsubErr)
			}
		}()
		log.Info("MQTT ingest enabled", "topic", mqtt.TopicUpload)
	}

	deps := api.Deps{
		Config:   cfg.API,
		Logger:   log.With("component", "api"),
		Provider: provider,
		Users:    account.NewRepository(provider),
		Readings: readings,
		Live:     live,
		Version:  version,
	}
	// Assigned only when set so a nil client never becomes a non-nil interface.
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if influxClient != nil {
		deps.InfluxDB = influxClient
	}

	srv, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal", "address", srv.Addr())

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server and live feed clients
	// 2. MQTT ingest subscription
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Database

	log.Info("IPS Core stopped")
	return nil
}

// healthCheck verifies the enabled integrations answer before the API starts
// serving. The store is not checked here: with per-request connections the
// service is allowed to start while it is unreachable.
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
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
	return nil
}

// getConfigPath returns the configuration file path.
// Uses IPS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("IPS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// databaseConfig maps the config file section onto the database package.
func databaseConfig(c config.DatabaseConfig) database.Config {
	return database.Config{
		Driver:      c.Driver,
		Host:        c.Host,
		Port:        c.Port,
		Name:        c.Name,
		User:        c.User,
		Password:    c.Password,
		SSLMode:     c.SSLMode,
		Path:        c.Path,
		BusyTimeout: c.BusyTimeout,
	}
}

// openProvider builds the connection provider and, when asked, applies
// migrations first.
//
// By default every request opens its own connection and startup does not
// touch the store, so the service comes up even while the database is
// unreachable. A pooled provider or auto_migrate needs a live connection
// at startup and fails fast instead.
//
// The returned cleanup func is always non-nil.
func openProvider(ctx context.Context, dbCfg database.Config, c config.DatabaseConfig, log *logging.Logger) (database.Provider, func(), error) {
	noop := func() {}

	if !c.Pooled && !c.AutoMigrate {
		p, err := database.NewDirectProvider(dbCfg)
		if err != nil {
			return nil, noop, fmt.Errorf("creating connection provider: %w", err)
		}
		log.Info("using per-request database connections")
		return p, noop, nil
	}

	db, err := database.Open(ctx, dbCfg)
	if err != nil {
		return nil, noop, fmt.Errorf("opening database: %w", err)
	}
	closeDB := func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}

	if c.AutoMigrate {
		applied, migrateErr := db.Migrate(ctx)
		if migrateErr != nil {
			closeDB()
			return nil, noop, fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete", "applied", applied)
	}

	if c.Pooled {
		log.Info("using pooled database connections")
		return database.NewPooledProvider(db), closeDB, nil
	}

	// Migrations only needed the pool briefly.
	closeDB()
	p, err := database.NewDirectProvider(dbCfg)
	if err != nil {
		return nil, noop, fmt.Errorf("creating connection provider: %w", err)
	}
	log.Info("using per-request database connections")
	return p, noop, nil
}
