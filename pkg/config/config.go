package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cuemby/joyride/pkg/log"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config is the joyride process configuration
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	DNS       DNSConfig       `yaml:"dns"`
	Hosts     HostsConfig     `yaml:"hosts"`
	Records   RecordsConfig   `yaml:"records"`
	API       APIConfig       `yaml:"api"`
	Events    EventsConfig    `yaml:"events"`
}

// LogConfig configures pkg/log
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// LifecycleConfig bounds component calls and sets the health interval
type LifecycleConfig struct {
	StartupTimeout         time.Duration `yaml:"startup_timeout"`
	ShutdownTimeout        time.Duration `yaml:"shutdown_timeout"`
	HealthCheckTimeout     time.Duration `yaml:"health_check_timeout"`
	HealthCheckInterval    time.Duration `yaml:"health_check_interval"`
	HealthCheckConcurrency int           `yaml:"health_check_concurrency"`
	MetricsInterval        time.Duration `yaml:"metrics_interval"`
}

// DNSConfig configures the DNS server
type DNSConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Domain   string   `yaml:"domain"`
	TTL      int      `yaml:"ttl"`
	Upstream []string `yaml:"upstream"`
}

// Addr returns host:port
func (c DNSConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HostsConfig configures the hosts-file watcher
type HostsConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Directories []string      `yaml:"directories"`
	Debounce    time.Duration `yaml:"debounce"`
}

// RecordsConfig configures the record table. An empty Path keeps records
// in memory only.
type RecordsConfig struct {
	Path string `yaml:"path"`
}

// APIConfig configures the status API
type APIConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"` // 0 disables the gRPC health service
}

// Addr returns the HTTP host:port
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GRPCAddr returns the gRPC host:port
func (c APIConfig) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

// EventsConfig configures the event bus
type EventsConfig struct {
	// Trace logs every published event at debug level
	Trace bool `yaml:"trace"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Lifecycle: LifecycleConfig{
			StartupTimeout:         30 * time.Second,
			ShutdownTimeout:        30 * time.Second,
			HealthCheckTimeout:     5 * time.Second,
			HealthCheckInterval:    30 * time.Second,
			HealthCheckConcurrency: 8,
			MetricsInterval:        15 * time.Second,
		},
		DNS: DNSConfig{
			Enabled:  true,
			Host:     "0.0.0.0",
			Port:     53,
			Domain:   "joyride",
			TTL:      60,
			Upstream: []string{"8.8.8.8:53"},
		},
		Hosts: HostsConfig{
			Enabled:     false,
			Directories: []string{"/etc/joyride/hosts"},
			Debounce:    500 * time.Millisecond,
		},
		API: APIConfig{
			Enabled:  true,
			Host:     "0.0.0.0",
			Port:     5000,
			GRPCPort: 5001,
		},
	}
}

// Load builds a configuration from, in increasing priority: defaults, the
// YAML file at path (skipped when path is empty), and JOYRIDE_* environment
// variables. envFiles are loaded into the environment first with godotenv;
// with none given, a .env file in the working directory is used if present.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf(format, args...))
		}
	}

	_, ok := log.ParseLevel(c.Log.Level)
	check(ok, "log.level: unknown level %q", c.Log.Level)

	check(c.Lifecycle.StartupTimeout > 0, "lifecycle.startup_timeout must be positive")
	check(c.Lifecycle.ShutdownTimeout > 0, "lifecycle.shutdown_timeout must be positive")
	check(c.Lifecycle.HealthCheckTimeout > 0, "lifecycle.health_check_timeout must be positive")
	check(c.Lifecycle.HealthCheckInterval > 0, "lifecycle.health_check_interval must be positive")
	check(c.Lifecycle.HealthCheckConcurrency > 0, "lifecycle.health_check_concurrency must be positive")
	check(c.Lifecycle.MetricsInterval > 0, "lifecycle.metrics_interval must be positive")

	if c.DNS.Enabled {
		check(validPort(c.DNS.Port), "dns.port: %d is not a valid port", c.DNS.Port)
		check(c.DNS.TTL >= 0, "dns.ttl must not be negative")
		check(c.DNS.Domain != "", "dns.domain is required")
	}
	if c.Hosts.Enabled {
		check(len(c.Hosts.Directories) > 0, "hosts.directories is required when hosts is enabled")
		check(c.Hosts.Debounce >= 0, "hosts.debounce must not be negative")
	}
	if c.API.Enabled {
		check(validPort(c.API.Port), "api.port: %d is not a valid port", c.API.Port)
		check(c.API.GRPCPort == 0 || validPort(c.API.GRPCPort), "api.grpc_port: %d is not a valid port", c.API.GRPCPort)
		check(c.API.GRPCPort != c.API.Port, "api.grpc_port must differ from api.port")
	}

	if errs != nil {
		return &ValidationError{err: errs}
	}
	return nil
}

// ValidationError lists every problem found by Validate
type ValidationError struct {
	err error
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + e.err.Error()
}

// Problems returns one error per invalid setting
func (e *ValidationError) Problems() []error {
	return multierr.Errors(e.err)
}

func (e *ValidationError) Unwrap() []error {
	return multierr.Errors(e.err)
}

// YAML renders the configuration
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

var errNoEnvFile = errors.New("env file not found")
