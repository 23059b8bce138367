package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment names recognised by app.environment.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Mail transports recognised by mail.transport.
const (
	MailTransportMQTT = "mqtt"
	MailTransportSMTP = "smtp"
	MailTransportLog  = "log"
)

// Config is the root configuration structure for the storefront auth service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Security SecurityConfig `yaml:"security"`
	OTP      OTPConfig      `yaml:"otp"`
	Mail     MailConfig     `yaml:"mail"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Audit    AuditConfig    `yaml:"audit"`
	Seed     SeedConfig     `yaml:"seed"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AppConfig identifies the deployment.
type AppConfig struct {
	Name string `yaml:"name"`

	// Environment is "development" or "production". It controls cookie
	// Secure/SameSite attributes.
	Environment string `yaml:"environment"`
}

// IsProduction reports whether the service runs with production cookie policy.
func (a AppConfig) IsProduction() bool {
	return a.Environment == EnvProduction
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host         string           `yaml:"host"`
	Port         int              `yaml:"port"`
	TLS          TLSConfig        `yaml:"tls"`
	Timeouts     APITimeoutConfig `yaml:"timeouts"`
	CORS         CORSConfig       `yaml:"cors"`
	MaxBodyBytes int64            `yaml:"max_body_bytes"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
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

// SecurityConfig contains token, API key and password hashing settings.
type SecurityConfig struct {
	JWT      JWTConfig      `yaml:"jwt"`
	APIKey   string         `yaml:"api_key"`
	Password PasswordConfig `yaml:"password"`
}

// JWTConfig contains JWT signing settings and per-class token lifetimes.
type JWTConfig struct {
	Secret          string        `yaml:"secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	PreAuthTokenTTL time.Duration `yaml:"preauth_token_ttl"`
}

// PasswordConfig contains Argon2id cost parameters.
type PasswordConfig struct {
	Time      uint32 `yaml:"time"`
	MemoryKiB uint32 `yaml:"memory_kib"`
	Threads   uint8  `yaml:"threads"`
}

// OTPConfig contains one-time passcode settings.
type OTPConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// MailConfig selects and configures the verification mail transport.
type MailConfig struct {
	Transport string        `yaml:"transport"`
	From      string        `yaml:"from"`
	FromName  string        `yaml:"from_name"`
	Subject   string        `yaml:"subject"`
	Timeout   time.Duration `yaml:"timeout"`
	SMTP      SMTPConfig    `yaml:"smtp"`
}

// SMTPConfig contains SMTP relay credentials.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// AuditConfig controls the persisted auth audit trail.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
}

// SeedConfig describes accounts created on first boot.
type SeedConfig struct {
	SuperAdmin SeedSuperAdminConfig `yaml:"super_admin"`
}

// SeedSuperAdminConfig is the initial super-admin. Seeding is skipped when Email is empty.
type SeedSuperAdminConfig struct {
	Email     string `yaml:"email"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
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
// Environment variables follow the pattern STOREFRONT_SECTION_KEY,
// for example STOREFRONT_DATABASE_PATH or STOREFRONT_JWT_SECRET.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "Storefront",
			Environment: EnvDevelopment,
		},
		Database: DatabaseConfig{
			Path:        "./data/storefront.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			MaxBodyBytes: 100 << 10,
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL:  24 * time.Hour,
				RefreshTokenTTL: 7 * 24 * time.Hour,
				PreAuthTokenTTL: 15 * time.Minute,
			},
			Password: PasswordConfig{
				Time:      3,
				MemoryKiB: 64 * 1024,
				Threads:   1,
			},
		},
		OTP: OTPConfig{
			TTL: 2 * time.Minute,
		},
		Mail: MailConfig{
			Transport: MailTransportLog,
			Subject:   "Email Verification",
			Timeout:   30 * time.Second,
			SMTP: SMTPConfig{
				Port: 587,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "storefront-auth",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STOREFRONT_ENV"); v != "" {
		cfg.App.Environment = strings.ToLower(v)
	}

	if v := os.Getenv("STOREFRONT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("STOREFRONT_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("STOREFRONT_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Secrets belong in the environment, not in the YAML file.
	if v := os.Getenv("STOREFRONT_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("STOREFRONT_API_KEY"); v != "" {
		cfg.Security.APIKey = v
	}

	if v := os.Getenv("STOREFRONT_MAIL_TRANSPORT"); v != "" {
		cfg.Mail.Transport = strings.ToLower(v)
	}
	if v := os.Getenv("STOREFRONT_SMTP_USERNAME"); v != "" {
		cfg.Mail.SMTP.Username = v
	}
	if v := os.Getenv("STOREFRONT_SMTP_PASSWORD"); v != "" {
		cfg.Mail.SMTP.Password = v
	}

	if v := os.Getenv("STOREFRONT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("STOREFRONT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("STOREFRONT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("STOREFRONT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("STOREFRONT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.App.Environment != EnvDevelopment && c.App.Environment != EnvProduction {
		errs = append(errs, "app.environment must be development or production")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.MaxBodyBytes <= 0 {
		errs = append(errs, "api.max_body_bytes must be positive")
	}

	// A forged token grants any role, so weak secrets are refused outright.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set STOREFRONT_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}
	if c.Security.APIKey == "" {
		errs = append(errs, "security.api_key is required (set STOREFRONT_API_KEY environment variable)")
	}
	if c.Security.JWT.AccessTokenTTL <= 0 || c.Security.JWT.RefreshTokenTTL <= 0 || c.Security.JWT.PreAuthTokenTTL <= 0 {
		errs = append(errs, "security.jwt token lifetimes must be positive")
	}
	if c.Security.Password.Time == 0 || c.Security.Password.MemoryKiB == 0 || c.Security.Password.Threads == 0 {
		errs = append(errs, "security.password argon2 parameters must be non-zero")
	}

	if c.OTP.TTL <= 0 {
		errs = append(errs, "otp.ttl must be positive")
	}

	switch c.Mail.Transport {
	case MailTransportLog:
	case MailTransportSMTP:
		if c.Mail.SMTP.Host == "" || c.Mail.SMTP.Port == 0 {
			errs = append(errs, "mail.smtp.host and mail.smtp.port are required for the smtp transport")
		}
	case MailTransportMQTT:
		if !c.MQTT.Enabled {
			errs = append(errs, "mqtt.enabled must be true for the mqtt mail transport")
		}
	default:
		errs = append(errs, "mail.transport must be mqtt, smtp or log")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, "metrics.path must start with /")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		errs = append(errs, "audit.buffer_size must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ReadTimeout returns the read timeout as a Duration.
func (a APIConfig) ReadTimeout() time.Duration {
	return time.Duration(a.Timeouts.Read) * time.Second
}

// WriteTimeout returns the write timeout as a Duration.
func (a APIConfig) WriteTimeout() time.Duration {
	return time.Duration(a.Timeouts.Write) * time.Second
}

// IdleTimeout returns the idle timeout as a Duration.
func (a APIConfig) IdleTimeout() time.Duration {
	return time.Duration(a.Timeouts.Idle) * time.Second
}
