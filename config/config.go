// Package config loads runtime configuration from a file, the environment
// and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/govm-net/contractkit/gas"
	"github.com/govm-net/contractkit/logging"
	"github.com/govm-net/contractkit/security"
)

// EnvPrefix prefixes environment overrides, e.g. CONTRACTKIT_GAS_LIMIT.
const EnvPrefix = "CONTRACTKIT"

type GasConfig struct {
	Limit    uint64       `mapstructure:"limit"`
	Schedule gas.Schedule `mapstructure:"schedule"`
}

type RuntimeConfig struct {
	MaxCallDepth int `mapstructure:"max_call_depth"`
}

type StorageConfig struct {
	// Backend is one of memory, leveldb, badger, sqlite.
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

type EventsConfig struct {
	// Backend is memory or sqlite.
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

type WasmConfig struct {
	// CodeDir enables wasm uploads when set.
	CodeDir   string `mapstructure:"code_dir"`
	CacheSize int    `mapstructure:"cache_size"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Config is the complete runtime configuration.
type Config struct {
	Gas     GasConfig     `mapstructure:"gas"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Storage StorageConfig `mapstructure:"storage"`
	Events  EventsConfig  `mapstructure:"events"`
	Wasm    WasmConfig    `mapstructure:"wasm"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// Default returns the built-in configuration: everything in memory.
func Default() *Config {
	return &Config{
		Gas:     GasConfig{Limit: gas.DefaultLimit, Schedule: gas.DefaultSchedule()},
		Runtime: RuntimeConfig{MaxCallDepth: security.DefaultMaxCallDepth},
		Storage: StorageConfig{Backend: "memory"},
		Events:  EventsConfig{Backend: "memory"},
		Wasm:    WasmConfig{CacheSize: 64},
		Log:     LogConfig{Level: "info"},
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("gas.limit", d.Gas.Limit)
	s := d.Gas.Schedule
	v.SetDefault("gas.schedule.host_call", s.HostCall)
	v.SetDefault("gas.schedule.storage_read", s.StorageRead)
	v.SetDefault("gas.schedule.storage_write", s.StorageWrite)
	v.SetDefault("gas.schedule.storage_byte", s.StorageByte)
	v.SetDefault("gas.schedule.event_base", s.EventBase)
	v.SetDefault("gas.schedule.event_topic", s.EventTopic)
	v.SetDefault("gas.schedule.event_byte", s.EventByte)
	v.SetDefault("gas.schedule.transfer", s.Transfer)
	v.SetDefault("gas.schedule.call", s.Call)
	v.SetDefault("gas.schedule.instantiate", s.Instantiate)
	v.SetDefault("gas.schedule.input_byte", s.InputByte)
	v.SetDefault("runtime.max_call_depth", d.Runtime.MaxCallDepth)
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("events.backend", d.Events.Backend)
	v.SetDefault("events.path", d.Events.Path)
	v.SetDefault("wasm.code_dir", d.Wasm.CodeDir)
	v.SetDefault("wasm.cache_size", d.Wasm.CacheSize)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
}

// Flags returns a flag set whose names match configuration keys, for
// binding into Load.
func Flags() *pflag.FlagSet {
	d := Default()
	fs := pflag.NewFlagSet("contractkit", pflag.ContinueOnError)
	fs.Uint64("gas.limit", d.Gas.Limit, "gas budget of an invocation")
	fs.String("storage.backend", d.Storage.Backend, "state backend: memory, leveldb, badger, sqlite")
	fs.String("storage.path", d.Storage.Path, "state database path")
	fs.String("log.level", d.Log.Level, "log level: debug, info, warn, error")
	return fs
}

// Load reads configuration from path (optional), CONTRACTKIT_* environment
// variables and flags (optional), in increasing priority.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the runtime cannot use.
func (c *Config) Validate() error {
	var errs []error
	if c.Gas.Limit == 0 {
		errs = append(errs, errors.New("gas.limit must be positive"))
	}
	if c.Runtime.MaxCallDepth <= 0 {
		errs = append(errs, errors.New("runtime.max_call_depth must be positive"))
	}
	switch c.Storage.Backend {
	case "memory", "leveldb", "badger":
	case "sqlite":
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}
	switch c.Events.Backend {
	case "memory":
	case "sqlite":
		if c.Events.Path == "" {
			errs = append(errs, errors.New("events.path is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown events.backend %q", c.Events.Backend))
	}
	if c.Wasm.CacheSize <= 0 {
		errs = append(errs, errors.New("wasm.cache_size must be positive"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
