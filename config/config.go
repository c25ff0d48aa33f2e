// Package config loads connection settings from TOML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/acpkit/acp"
	"github.com/vinayprograms/acpkit/jsonrpc"
	"github.com/vinayprograms/acpkit/logging"
	"github.com/vinayprograms/acpkit/telemetry"
)

// Config holds everything a process needs to run connections.
type Config struct {
	Connection ConnectionConfig `toml:"connection"`
	RateLimit  RateLimitConfig  `toml:"ratelimit"`
	Logging    LoggingConfig    `toml:"logging"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
}

// ConnectionConfig tunes the jsonrpc connection.
type ConnectionConfig struct {
	// MaxMessageSize bounds inbound records in bytes (0 = unbounded).
	MaxMessageSize int `toml:"max_message_size"`

	// DecodePolicy is "fatal" or "skip".
	DecodePolicy string `toml:"decode_policy"`

	// CallTimeout bounds outbound calls (0 = wait forever).
	CallTimeout Duration `toml:"call_timeout"`

	// DispatchTimeout bounds inbound handlers (0 = unbounded).
	DispatchTimeout Duration `toml:"dispatch_timeout"`

	// WriteQueueSize is how many frames may wait for the writer.
	WriteQueueSize int `toml:"write_queue_size"`
}

// RateLimitConfig throttles inbound requests. Disabled when InboundRPS is 0.
type RateLimitConfig struct {
	InboundRPS float64 `toml:"inbound_rps"`
	Burst      int     `toml:"burst"`
}

// LoggingConfig sets the minimum log level.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// TelemetryConfig configures span export.
type TelemetryConfig struct {
	Enabled     bool   `toml:"enabled"`
	Endpoint    string `toml:"endpoint"`
	Protocol    string `toml:"protocol"` // "grpc" or "http"
	Insecure    bool   `toml:"insecure"`
	ServiceName string `toml:"service_name"`
	Role        string `toml:"role"` // "agent", "client" or empty
	Debug       bool   `toml:"debug"`
}

// Duration is a time.Duration written as a string such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the settings used when no file is present.
func Default() *Config {
	return &Config{
		Connection: ConnectionConfig{
			MaxMessageSize: jsonrpc.DefaultMaxMessageSize,
			DecodePolicy:   jsonrpc.DecodeFatal.String(),
			WriteQueueSize: jsonrpc.DefaultWriteQueueSize,
		},
		Logging: LoggingConfig{
			Level: string(logging.LevelInfo),
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: telemetry.DefaultServiceName,
		},
	}
}

// StandardPaths returns the config file locations in order of priority.
func StandardPaths() []string {
	paths := []string{"acpkit.toml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "acpkit", "config.toml"))
	}

	return paths
}

// Find loads the first config file found in StandardPaths. It returns the
// defaults and an empty path when there is none.
func Find() (*Config, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			cfg, err := Load(path)
			return cfg, path, err
		}
	}
	return Default(), "", nil
}

// Load reads a TOML file over the defaults. Unknown keys are errors.
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := checkUndecoded(md); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse reads TOML text over the defaults.
func Parse(data string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(data, cfg)
	if err != nil {
		return nil, err
	}
	if err := checkUndecoded(md); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func checkUndecoded(md toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}
	keys := make([]string, len(undecoded))
	for i, k := range undecoded {
		keys[i] = k.String()
	}
	sort.Strings(keys)
	return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
}

// Validate checks values that decode but make no sense.
func (c *Config) Validate() error {
	if _, err := jsonrpc.ParseDecodePolicy(c.Connection.DecodePolicy); err != nil {
		return fmt.Errorf("connection.decode_policy: %w", err)
	}
	if c.Connection.MaxMessageSize < 0 {
		return fmt.Errorf("connection.max_message_size: must not be negative")
	}
	if c.Connection.CallTimeout.Duration < 0 || c.Connection.DispatchTimeout.Duration < 0 {
		return fmt.Errorf("connection: timeouts must not be negative")
	}
	if c.RateLimit.InboundRPS < 0 {
		return fmt.Errorf("ratelimit.inbound_rps: must not be negative")
	}
	if c.RateLimit.InboundRPS > 0 && c.RateLimit.Burst < 1 {
		return fmt.Errorf("ratelimit.burst: must be at least 1 when inbound_rps is set")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch strings.ToLower(c.Telemetry.Protocol) {
	case "", "grpc", "http":
	default:
		return fmt.Errorf("telemetry.protocol: unknown protocol %q", c.Telemetry.Protocol)
	}
	switch c.Telemetry.Role {
	case "", "agent", "client":
	default:
		return fmt.Errorf("telemetry.role: unknown role %q", c.Telemetry.Role)
	}
	return nil
}

// Options converts the settings into connection options. A non-nil logger
// gets the configured level and is attached to the connection.
func (c *Config) Options(logger *logging.Logger) ([]jsonrpc.Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	policy, _ := jsonrpc.ParseDecodePolicy(c.Connection.DecodePolicy)

	opts := []jsonrpc.Option{
		jsonrpc.WithDecodePolicy(policy),
		jsonrpc.WithMaxMessageSize(c.Connection.MaxMessageSize),
		jsonrpc.WithCallTimeout(c.Connection.CallTimeout.Duration),
	}
	if c.Connection.WriteQueueSize > 0 {
		opts = append(opts, jsonrpc.WithWriteQueueSize(c.Connection.WriteQueueSize))
	}

	// Rate limiting is outermost.
	var mw []jsonrpc.Middleware
	if c.RateLimit.InboundRPS > 0 {
		mw = append(mw, jsonrpc.RateLimit(c.RateLimit.InboundRPS, c.RateLimit.Burst))
	}
	if d := c.Connection.DispatchTimeout.Duration; d > 0 {
		mw = append(mw, jsonrpc.Timeout(d))
	}
	if len(mw) > 0 {
		opts = append(opts, jsonrpc.WithMiddleware(mw...))
	}

	if logger != nil {
		level, _ := logging.ParseLevel(c.Logging.Level)
		logger.SetLevel(level)
		opts = append(opts, jsonrpc.WithLogger(logger))
	}
	return opts, nil
}

// ProviderConfig converts the telemetry section for telemetry.InitProvider.
func (c *Config) ProviderConfig() telemetry.ProviderConfig {
	return telemetry.ProviderConfig{
		ServiceName:     c.Telemetry.ServiceName,
		Role:            c.Telemetry.Role,
		ProtocolVersion: acp.ProtocolVersion,
		Endpoint:        c.Telemetry.Endpoint,
		Protocol:        c.Telemetry.Protocol,
		Insecure:        c.Telemetry.Insecure,
		Debug:           c.Telemetry.Debug,
	}
}
