package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Supported database drivers.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite3"
)

// Config is the root configuration structure for IPS Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig contains relational store settings.
//
// Host, Port, Name, User and Password describe a PostgreSQL server and map
// to the DB_HOST, DB_PORT, DB_DATABASE, DB_USER and DB_PASSWORD variables.
// Path is only used by the sqlite3 driver.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`

	Path        string `yaml:"path"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// Pooled swaps the per-request connection provider for a shared pool.
	Pooled bool `yaml:"pooled"`

	// AutoMigrate creates the users and sensor_data tables on startup.
	// The schema is normally owned by whoever operates the database.
	AutoMigrate bool `yaml:"auto_migrate"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// ExposeStoreErrors returns raw store error text from /upload_data
	// instead of a generic message.
	ExposeStoreErrors bool `yaml:"expose_store_errors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// Ingest subscribes to the upload topic so devices can post readings
	// over MQTT as well as HTTP.
	Ingest bool `yaml:"ingest"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// An empty path skips the file entirely. When optional is true a missing
// file is treated the same way, which lets a bare environment drive the
// whole process.
//
// Parameters:
//   - path: Path to the YAML configuration file
//   - optional: Whether a missing file is acceptable
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string, optional bool) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		case optional && errors.Is(err, fs.ErrNotExist):
			// fall through to env-only configuration
		default:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:      DriverPostgres,
			Host:        "localhost",
			Port:        "5432",
			SSLMode:     "disable",
			Path:        "./data/ips.db",
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 5000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ips-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// The DB_* names match the variables the device fleet was deployed with.
func applyEnvOverrides(cfg *Config) error {
	// Database
	if v := os.Getenv("DB_DATABASE"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		cfg.Database.Port = v
	}
	if v := os.Getenv("IPS_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("IPS_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API (PORT is what most PaaS hosts inject)
	for _, name := range []string{"PORT", "IPS_API_PORT"} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		cfg.API.Port = port
	}

	// MQTT
	if v := os.Getenv("IPS_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("IPS_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("IPS_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("IPS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("IPS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Connection credentials for PostgreSQL are deliberately not required here:
// a missing value surfaces on the first connection attempt.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Database),
		validation.Field(&c.API),
		validation.Field(&c.MQTT),
		validation.Field(&c.InfluxDB),
		validation.Field(&c.Logging),
	)
}

// Validate implements validation.Validatable.
func (d DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In(DriverPostgres, DriverSQLite)),
		validation.Field(&d.Path, validation.When(d.Driver == DriverSQLite, validation.Required)),
		validation.Field(&d.BusyTimeout, validation.Min(0)),
	)
}

// Validate implements validation.Validatable.
func (a APIConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// Validate implements validation.Validatable.
func (m MQTTConfig) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.QoS, validation.Min(0), validation.Max(2)),
		validation.Field(&m.Broker, validation.When(m.Enabled, validation.By(func(any) error {
			b := m.Broker
			return validation.ValidateStruct(&b,
				validation.Field(&b.Host, validation.Required),
				validation.Field(&b.Port, validation.Required, validation.Min(1), validation.Max(65535)),
				validation.Field(&b.ClientID, validation.Required),
			)
		}))),
	)
}

// Validate implements validation.Validatable.
func (i InfluxDBConfig) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.URL, validation.When(i.Enabled, validation.Required)),
		validation.Field(&i.Org, validation.When(i.Enabled, validation.Required)),
		validation.Field(&i.Bucket, validation.When(i.Enabled, validation.Required)),
	)
}

// Validate implements validation.Validatable.
func (l LoggingConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Format, validation.In("json", "text")),
		validation.Field(&l.Output, validation.In("stdout", "stderr")),
	)
}

// ReadTimeout returns the read timeout as a Duration.
func (t APITimeoutConfig) ReadTimeout() time.Duration {
	return time.Duration(t.Read) * time.Second
}

// WriteTimeout returns the write timeout as a Duration.
func (t APITimeoutConfig) WriteTimeout() time.Duration {
	return time.Duration(t.Write) * time.Second
}

// IdleTimeout returns the keep-alive idle timeout as a Duration.
func (t APITimeoutConfig) IdleTimeout() time.Duration {
	return time.Duration(t.Idle) * time.Second
}
