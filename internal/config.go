package internal

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Port search defaults used when app.http.port is 0.
const (
	DefaultPortSearchStart    = 6060
	DefaultPortSearchAttempts = 100
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Registry RegistryConfig    `yaml:"registry"`
	Events   EventsConfig      `yaml:"events"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Registry.Validate(); err != nil {
		return err
	}
	if err := c.Events.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
//
// Port 0 means: try SearchStart, SearchStart+1, ... for SearchAttempts ports
// and use the first one that is free.
type HTTPConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	SearchStart    int    `yaml:"search_start"`
	SearchAttempts int    `yaml:"search_attempts"`
}

// Address returns the HTTP server address for port.
func (c *HTTPConfig) Address(port int) string {
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	if c.SearchStart == 0 {
		c.SearchStart = DefaultPortSearchStart
	}
	if c.SearchAttempts == 0 {
		c.SearchAttempts = DefaultPortSearchAttempts
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Min(0), validation.Max(65535)),
		validation.Field(&c.SearchStart, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.SearchAttempts, validation.Min(1), validation.Max(1000)),
	)
}

// RegistryConfig holds the project registry location. LegacyFile, when set,
// is a JSON project list imported once at startup.
type RegistryConfig struct {
	Path       string `yaml:"path"`
	LegacyFile string `yaml:"legacy_file"`
}

// Validate validates the registry configuration.
func (c *RegistryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// EventsConfig tunes the change event stream.
type EventsConfig struct {
	QueueSize int           `yaml:"queue_size"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.QueueSize, validation.Required, validation.Min(1)),
		validation.Field(&c.Heartbeat, validation.Required, validation.Min(time.Second)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Host:           "127.0.0.1",
				Port:           0,
				SearchStart:    DefaultPortSearchStart,
				SearchAttempts: DefaultPortSearchAttempts,
			},
		},
		Registry: RegistryConfig{
			Path: "./fileviewer.db",
		},
		Events: EventsConfig{
			QueueSize: 10,
			Heartbeat: 30 * time.Second,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
