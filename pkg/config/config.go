package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Log configures the global logger.
type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// API configures the HTTP surface.
type API struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Scheduler configures the dispatch loop.
type Scheduler struct {
	Tick Duration `yaml:"tick"`
}

// Runner configures the execution pool.
type Runner struct {
	PoolSize    int      `yaml:"pool_size"`
	GracePeriod Duration `yaml:"grace_period"`
}

// Sandbox configures expression evaluation ceilings.
type Sandbox struct {
	MaxDuration   Duration `yaml:"max_duration"`
	MaxMemory     int64    `yaml:"max_memory"`
	MaxComplexity int      `yaml:"max_complexity"`
}

// RateLimit configures the adaptive token bucket.
type RateLimit struct {
	BaseMax       int      `yaml:"base_max"`
	WindowMS      int64    `yaml:"window_ms"`
	TrustedCIDRs  []string `yaml:"trusted_cidrs"`
	InternalCIDRs []string `yaml:"internal_cidrs"`
}

// Audit configures event buffering and alert gating.
type Audit struct {
	BufferSize    int      `yaml:"buffer_size"`
	FlushInterval Duration `yaml:"flush_interval"`
	HistorySize   int      `yaml:"history_size"`
	Cooldown      Duration `yaml:"cooldown"`
}

// Telemetry configures the sample hub.
type Telemetry struct {
	BufferSize    int      `yaml:"buffer_size"`
	FlushInterval Duration `yaml:"flush_interval"`
	RawRetention  Duration `yaml:"raw_retention"`
}

// Config is the full runtime configuration. Every field has a default;
// a config file overrides defaults and NIFICDC_* environment variables
// override the file.
type Config struct {
	DataDir       string    `yaml:"data_dir"`
	EncryptionKey string    `yaml:"encryption_key"`
	Log           Log       `yaml:"log"`
	API           API       `yaml:"api"`
	Scheduler     Scheduler `yaml:"scheduler"`
	Runner        Runner    `yaml:"runner"`
	Sandbox       Sandbox   `yaml:"sandbox"`
	RateLimit     RateLimit `yaml:"rate_limit"`
	Audit         Audit     `yaml:"audit"`
	Telemetry     Telemetry `yaml:"telemetry"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: "/var/lib/nificdc",
		Log:     Log{Level: "info", JSON: true},
		API:     API{ListenAddr: ":8090"},
		Scheduler: Scheduler{
			Tick: Duration(30 * time.Second),
		},
		Runner: Runner{
			PoolSize:    5,
			GracePeriod: Duration(5 * time.Second),
		},
		Sandbox: Sandbox{
			MaxDuration:   Duration(5 * time.Second),
			MaxMemory:     50 * 1024 * 1024,
			MaxComplexity: 100,
		},
		RateLimit: RateLimit{
			BaseMax:  100,
			WindowMS: 15 * 60 * 1000,
		},
		Audit: Audit{
			BufferSize:    100,
			FlushInterval: Duration(30 * time.Second),
			HistorySize:   1000,
			Cooldown:      Duration(60 * time.Second),
		},
		Telemetry: Telemetry{
			BufferSize:    1000,
			FlushInterval: Duration(30 * time.Second),
			RawRetention:  Duration(24 * time.Hour),
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var err error
	setStr := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		v, ok := os.LookupEnv(key)
		if !ok || err != nil {
			return
		}
		n, perr := strconv.Atoi(v)
		if perr != nil {
			err = fmt.Errorf("%s: invalid integer %q", key, v)
			return
		}
		*dst = n
	}
	setInt64 := func(key string, dst *int64) {
		v, ok := os.LookupEnv(key)
		if !ok || err != nil {
			return
		}
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			err = fmt.Errorf("%s: invalid integer %q", key, v)
			return
		}
		*dst = n
	}
	setDur := func(key string, dst *Duration) {
		v, ok := os.LookupEnv(key)
		if !ok || err != nil {
			return
		}
		d, perr := time.ParseDuration(v)
		if perr != nil {
			err = fmt.Errorf("%s: invalid duration %q", key, v)
			return
		}
		*dst = Duration(d)
	}

	setStr("NIFICDC_DATA_DIR", &c.DataDir)
	setStr("NIFICDC_ENCRYPTION_KEY", &c.EncryptionKey)
	setStr("NIFICDC_LOG_LEVEL", &c.Log.Level)
	setStr("NIFICDC_LISTEN_ADDR", &c.API.ListenAddr)
	setDur("NIFICDC_SCHEDULER_TICK", &c.Scheduler.Tick)
	setInt("NIFICDC_RUNNER_POOL_SIZE", &c.Runner.PoolSize)
	setDur("NIFICDC_RUNNER_GRACE_PERIOD", &c.Runner.GracePeriod)
	setDur("NIFICDC_SANDBOX_MAX_DURATION", &c.Sandbox.MaxDuration)
	setInt64("NIFICDC_SANDBOX_MAX_MEMORY", &c.Sandbox.MaxMemory)
	setInt("NIFICDC_SANDBOX_MAX_COMPLEXITY", &c.Sandbox.MaxComplexity)
	setInt("NIFICDC_RATELIMIT_BASE_MAX", &c.RateLimit.BaseMax)
	setInt64("NIFICDC_RATELIMIT_WINDOW_MS", &c.RateLimit.WindowMS)
	setInt("NIFICDC_AUDIT_BUFFER_SIZE", &c.Audit.BufferSize)
	setDur("NIFICDC_AUDIT_FLUSH_INTERVAL", &c.Audit.FlushInterval)
	setDur("NIFICDC_ALERT_COOLDOWN", &c.Audit.Cooldown)
	setInt("NIFICDC_TELEMETRY_BUFFER_SIZE", &c.Telemetry.BufferSize)
	setDur("NIFICDC_TELEMETRY_FLUSH_INTERVAL", &c.Telemetry.FlushInterval)
	return err
}

// Validate rejects values no component could run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errdefs.Validation("data_dir cannot be empty")
	}
	if c.Runner.PoolSize < 1 {
		return errdefs.Validation("runner pool_size must be at least 1, got %d", c.Runner.PoolSize)
	}
	if c.Scheduler.Tick.Std() <= 0 {
		return errdefs.Validation("scheduler tick must be positive")
	}
	if c.RateLimit.BaseMax < 1 {
		return errdefs.Validation("rate limit base_max must be at least 1, got %d", c.RateLimit.BaseMax)
	}
	if c.RateLimit.WindowMS < 1000 {
		return errdefs.Validation("rate limit window_ms must be at least 1000, got %d", c.RateLimit.WindowMS)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errdefs.Validation("unknown log level %q", c.Log.Level)
	}
	return nil
}
