package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "JOYRIDE_"

// loadEnvFiles loads dotenv files into the process environment. Variables
// already set are not overwritten. The implicit .env may be absent.
func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: %s", errNoEnvFile, f)
			}
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

type envBinding struct {
	key string
	set func(string) error
}

func (c *Config) envBindings() []envBinding {
	return []envBinding{
		{"LOG_LEVEL", setString(&c.Log.Level)},
		{"LOG_JSON", setBool(&c.Log.JSON)},

		{"LIFECYCLE_STARTUP_TIMEOUT", setDuration(&c.Lifecycle.StartupTimeout)},
		{"LIFECYCLE_SHUTDOWN_TIMEOUT", setDuration(&c.Lifecycle.ShutdownTimeout)},
		{"LIFECYCLE_HEALTH_CHECK_TIMEOUT", setDuration(&c.Lifecycle.HealthCheckTimeout)},
		{"LIFECYCLE_HEALTH_CHECK_INTERVAL", setDuration(&c.Lifecycle.HealthCheckInterval)},
		{"LIFECYCLE_HEALTH_CHECK_CONCURRENCY", setInt(&c.Lifecycle.HealthCheckConcurrency)},
		{"LIFECYCLE_METRICS_INTERVAL", setDuration(&c.Lifecycle.MetricsInterval)},

		{"DNS_ENABLED", setBool(&c.DNS.Enabled)},
		{"DNS_HOST", setString(&c.DNS.Host)},
		{"DNS_PORT", setInt(&c.DNS.Port)},
		{"DNS_DOMAIN", setString(&c.DNS.Domain)},
		{"DNS_TTL", setInt(&c.DNS.TTL)},
		{"DNS_UPSTREAM", setList(&c.DNS.Upstream)},

		{"HOSTS_ENABLED", setBool(&c.Hosts.Enabled)},
		{"HOSTS_DIRECTORIES", setList(&c.Hosts.Directories)},
		{"HOSTS_DEBOUNCE", setDuration(&c.Hosts.Debounce)},

		{"RECORDS_PATH", setString(&c.Records.Path)},

		{"API_ENABLED", setBool(&c.API.Enabled)},
		{"API_HOST", setString(&c.API.Host)},
		{"API_PORT", setInt(&c.API.Port)},
		{"API_GRPC_PORT", setInt(&c.API.GRPCPort)},

		{"EVENTS_TRACE", setBool(&c.Events.Trace)},
	}
}

// EnvKeys lists every supported environment variable
func EnvKeys() []string {
	bindings := Default().envBindings()
	keys := make([]string, len(bindings))
	for i, b := range bindings {
		keys[i] = EnvPrefix + b.key
	}
	return keys
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, b := range c.envBindings() {
		key := EnvPrefix + b.key
		v, ok := lookup(key)
		if !ok {
			continue
		}
		if err := b.set(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	return nil
}

func setString(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func setBool(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func setInt(dst *int) func(string) error {
	return func(v string) error {
		i, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = i
		return nil
	}
}

func setDuration(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}

// setList splits a comma-separated value, dropping empty items
func setList(dst *[]string) func(string) error {
	return func(v string) error {
		var out []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*dst = out
		return nil
	}
}
