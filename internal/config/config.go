package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Log         LogConfig         `yaml:"log"`
	Reservation ReservationConfig `yaml:"reservation"`
	Fees        FeesConfig        `yaml:"fees"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Outbox      OutboxConfig      `yaml:"outbox"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// ServerConfig contains HTTP and gRPC listener settings
type ServerConfig struct {
	Host     string `yaml:"host"`
	HTTPPort int    `yaml:"http_port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// DatabaseConfig selects the SQL driver and its connection settings
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // "postgres", "pgx" or "sqlite"
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	User                   string `yaml:"user"`
	Password               string `yaml:"password"`
	Database               string `yaml:"database"`
	SSLMode                string `yaml:"ssl_mode"`
	Path                   string `yaml:"path"` // sqlite only
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LockTimeoutMs          int    `yaml:"lock_timeout_ms"`
	AutoMigrate            bool   `yaml:"auto_migrate"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// ReservationConfig tunes the availability ledger and conflict retries
type ReservationConfig struct {
	LimitedRatio     float64 `yaml:"limited_ratio"`
	MaxRangeDays     int     `yaml:"max_range_days"`
	RetryMaxAttempts int     `yaml:"retry_max_attempts"`
	RetryBaseDelayMs int     `yaml:"retry_base_delay_ms"`
	RetryJitter      float64 `yaml:"retry_jitter"`
}

// FeesConfig contains late fee settings
type FeesConfig struct {
	DefaultLateFeePerDay int64  `yaml:"default_late_fee_per_day"`
	TimeZone             string `yaml:"time_zone"`
}

// KafkaConfig contains the order event topic settings. Publishing is off
// when no brokers are configured.
type KafkaConfig struct {
	Brokers        []string `yaml:"brokers"`
	Topic          string   `yaml:"topic"`
	GroupID        string   `yaml:"group_id"`
	BatchSize      int      `yaml:"batch_size"`
	BatchTimeoutMs int      `yaml:"batch_timeout_ms"`
}

// OutboxConfig contains dispatcher settings
type OutboxConfig struct {
	BatchSize   int `yaml:"batch_size"`
	MaxAttempts int `yaml:"max_attempts"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	DispatchOutbox string `yaml:"dispatch_outbox"`
	ReportOverdue  string `yaml:"report_overdue"`
}

// TelemetryConfig contains OpenTelemetry exporter settings
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from YAML, applying environment overrides and defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func envInt(name string, dst *int) {
	if val := os.Getenv(name); val != "" {
		fmt.Sscanf(val, "%d", dst)
	}
}

func envString(name string, dst *string) {
	if val := os.Getenv(name); val != "" {
		*dst = val
	}
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	envString("DB_DRIVER", &c.Database.Driver)
	envString("DB_HOST", &c.Database.Host)
	envInt("DB_PORT", &c.Database.Port)
	envString("DB_USER", &c.Database.User)
	envString("DB_PASSWORD", &c.Database.Password)
	envString("DB_NAME", &c.Database.Database)
	envString("DB_SSL_MODE", &c.Database.SSLMode)
	envString("DB_PATH", &c.Database.Path)

	// Server
	envString("SERVER_HOST", &c.Server.Host)
	envInt("HTTP_PORT", &c.Server.HTTPPort)
	envInt("GRPC_PORT", &c.Server.GRPCPort)

	// Log
	envString("LOG_LEVEL", &c.Log.Level)
	envString("LOG_FORMAT", &c.Log.Format)

	// Fees
	envString("FEES_TIME_ZONE", &c.Fees.TimeZone)

	// Kafka
	if val := os.Getenv("KAFKA_BROKERS"); val != "" {
		c.Kafka.Brokers = strings.Split(val, ",")
	}
	envString("KAFKA_TOPIC", &c.Kafka.Topic)

	// Telemetry
	if val := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); val != "" {
		c.Telemetry.Endpoint = val
		c.Telemetry.Enabled = true
	}
}

// Validate checks if the configuration is valid and fills in defaults
func (c *Config) Validate() error {
	// Server
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = 9090
	}
	for _, port := range []int{c.Server.HTTPPort, c.Server.GRPCPort} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("invalid server port: %d", port)
		}
	}

	// Database
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	switch c.Database.Driver {
	case "postgres", "pgx":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	case "sqlite":
		if c.Database.Path == "" {
			c.Database.Path = "rental.db"
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetimeMinutes == 0 {
		c.Database.ConnMaxLifetimeMinutes = 30
	}
	if c.Database.LockTimeoutMs == 0 {
		c.Database.LockTimeoutMs = 2000
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	// Reservation
	if c.Reservation.LimitedRatio == 0 {
		c.Reservation.LimitedRatio = 1.0
	}
	if c.Reservation.LimitedRatio < 0 || c.Reservation.LimitedRatio > 1 {
		return fmt.Errorf("limited ratio must be in (0, 1]: %v", c.Reservation.LimitedRatio)
	}
	if c.Reservation.MaxRangeDays == 0 {
		c.Reservation.MaxRangeDays = 3660 // ten years
	}
	if c.Reservation.MaxRangeDays < 0 {
		return fmt.Errorf("max range days must be positive: %d", c.Reservation.MaxRangeDays)
	}
	if c.Reservation.RetryMaxAttempts == 0 {
		c.Reservation.RetryMaxAttempts = 5
	}
	if c.Reservation.RetryMaxAttempts < 0 {
		return fmt.Errorf("retry max attempts must be positive: %d", c.Reservation.RetryMaxAttempts)
	}
	if c.Reservation.RetryBaseDelayMs == 0 {
		c.Reservation.RetryBaseDelayMs = 10
	}
	if c.Reservation.RetryJitter == 0 {
		c.Reservation.RetryJitter = 0.3
	}
	if c.Reservation.RetryJitter < 0 || c.Reservation.RetryJitter > 1 {
		return fmt.Errorf("retry jitter must be between 0 and 1: %v", c.Reservation.RetryJitter)
	}

	// Fees
	if c.Fees.DefaultLateFeePerDay == 0 {
		c.Fees.DefaultLateFeePerDay = 50
	}
	if c.Fees.DefaultLateFeePerDay < 0 {
		return fmt.Errorf("default late fee must not be negative: %d", c.Fees.DefaultLateFeePerDay)
	}
	if c.Fees.TimeZone == "" {
		c.Fees.TimeZone = "UTC"
	}
	if _, err := time.LoadLocation(c.Fees.TimeZone); err != nil {
		return fmt.Errorf("invalid fee time zone %q: %w", c.Fees.TimeZone, err)
	}

	// Kafka
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "rental.order-events"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "rental-invoicing"
	}
	if c.Kafka.BatchSize == 0 {
		c.Kafka.BatchSize = 100
	}
	if c.Kafka.BatchTimeoutMs == 0 {
		c.Kafka.BatchTimeoutMs = 100
	}

	// Outbox
	if c.Outbox.BatchSize == 0 {
		c.Outbox.BatchSize = 100
	}
	if c.Outbox.MaxAttempts == 0 {
		c.Outbox.MaxAttempts = 10
	}

	// Scheduler defaults
	if c.Scheduler.DispatchOutbox == "" {
		c.Scheduler.DispatchOutbox = "*/10 * * * * *" // every 10 seconds
	}
	if c.Scheduler.ReportOverdue == "" {
		c.Scheduler.ReportOverdue = "0 0 2 * * *" // 2 AM UTC
	}

	// Telemetry
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "rental-inventory-backend"
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4318"
	}

	return nil
}

// GetDatabaseDSN returns the data source name for the configured driver
func (c *Config) GetDatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate", c.Database.Path)
	}
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     net.JoinHostPort(c.Database.Host, strconv.Itoa(c.Database.Port)),
		Path:     "/" + c.Database.Database,
		RawQuery: url.Values{"sslmode": {c.Database.SSLMode}}.Encode(),
	}
	return dsn.String()
}

// GetHTTPAddress returns the HTTP listen address
func (c *Config) GetHTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}

// GetGRPCAddress returns the gRPC listen address
func (c *Config) GetGRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

// Location returns the time zone used to decide calendar days for late fees
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Fees.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *DatabaseConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMs) * time.Millisecond
}

func (c *DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

func (c *ReservationConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

func (c *KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

func (c *KafkaConfig) BatchTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutMs) * time.Millisecond
}
