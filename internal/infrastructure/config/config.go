package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for HireHub Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`

	// Routes overrides the built-in page route table when non-empty.
	Routes []RouteConfig `yaml:"routes"`
}

// AppConfig identifies the deployment.
type AppConfig struct {
	Name string `yaml:"name"`
	// WebDir serves the SPA shell from disk instead of the embedded copy.
	WebDir string `yaml:"web_dir"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
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

// WebSocketConfig contains settings for the auth-state push socket.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// MQTTConfig contains the optional session-event publisher settings.
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains authentication and authorisation settings.
type SecurityConfig struct {
	JWT     JWTConfig     `yaml:"jwt"`
	Session SessionConfig `yaml:"session"`
	Guard   GuardConfig   `yaml:"guard"`
	Auth    AuthConfig    `yaml:"auth"`
}

// JWTConfig contains session token signing settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// SessionConfig controls session token lifetime and the session cookie.
type SessionConfig struct {
	// TokenTTL is the session token lifetime in seconds.
	TokenTTL     int    `yaml:"token_ttl"`
	CookieName   string `yaml:"cookie_name"`
	CookieSecure bool   `yaml:"cookie_secure"`
	// SweepInterval is how often expired tokens are purged, in seconds.
	SweepInterval int `yaml:"sweep_interval"`
}

// GuardConfig controls route guard enforcement.
type GuardConfig struct {
	// Mode is "enforce" (default) or "permissive". Permissive renders
	// protected content while a redirect is pending.
	Mode string `yaml:"mode"`
}

// AuthConfig selects the authentication provider.
type AuthConfig struct {
	// Provider is "password" (default) or "static".
	Provider string `yaml:"provider"`
}

// RouteConfig is one entry of the page route table.
type RouteConfig struct {
	Name        string `yaml:"name"`
	Path        string `yaml:"path"`
	Requirement string `yaml:"requirement"`
	RedirectTo  string `yaml:"redirect_to"`
}

// Guard modes and auth providers accepted by Validate.
const (
	GuardModeEnforce    = "enforce"
	GuardModePermissive = "permissive"

	AuthProviderPassword = "password"
	AuthProviderStatic   = "static"
)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HIREHUB_SECTION_KEY
// For example: HIREHUB_DATABASE_PATH, HIREHUB_API_PORT
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
			Name: "HireHub",
		},
		Database: DatabaseConfig{
			Path:        "./data/hirehub.db",
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
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hirehub-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				Issuer: "hirehub",
			},
			Session: SessionConfig{
				TokenTTL:      3600,
				CookieName:    "hirehub_session",
				SweepInterval: 300,
			},
			Guard: GuardConfig{
				Mode: GuardModeEnforce,
			},
			Auth: AuthConfig{
				Provider: AuthProviderPassword,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HIREHUB_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("HIREHUB_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("HIREHUB_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("HIREHUB_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HIREHUB_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HIREHUB_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("HIREHUB_GUARD_MODE"); v != "" {
		cfg.Security.Guard.Mode = v
	}

	// Always override the secret in production.
	if v := os.Getenv("HIREHUB_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set HIREHUB_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if c.Security.Session.TokenTTL <= 0 {
		errs = append(errs, "security.session.token_ttl must be positive")
	}
	if c.Security.Session.CookieName == "" {
		errs = append(errs, "security.session.cookie_name is required")
	}

	switch c.Security.Guard.Mode {
	case GuardModeEnforce, GuardModePermissive:
	default:
		errs = append(errs, fmt.Sprintf("security.guard.mode %q must be %q or %q",
			c.Security.Guard.Mode, GuardModeEnforce, GuardModePermissive))
	}

	switch c.Security.Auth.Provider {
	case AuthProviderPassword, AuthProviderStatic:
	default:
		errs = append(errs, fmt.Sprintf("security.auth.provider %q must be %q or %q",
			c.Security.Auth.Provider, AuthProviderPassword, AuthProviderStatic))
	}

	for i, r := range c.Routes {
		if r.Name == "" || r.Path == "" {
			errs = append(errs, fmt.Sprintf("routes[%d]: name and path are required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// TokenTTL returns the session token lifetime as a Duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Security.Session.TokenTTL) * time.Second
}

// SweepInterval returns the expired-token sweep interval as a Duration.
func (c *Config) SweepInterval() time.Duration {
	if c.Security.Session.SweepInterval <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Security.Session.SweepInterval) * time.Second
}
