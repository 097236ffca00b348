package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"
)

const envPrefix = "CPOOL"

// Config is the CLI configuration. Values come from, in increasing priority:
// struct defaults, an optional config file, CPOOL_* environment variables and
// flags.
type Config struct {
	ConfigFile string `mapstructure:"config"`

	Workers  int  `mapstructure:"workers" default:"0"`
	Affinity bool `mapstructure:"affinity"`

	LogLevel  string `mapstructure:"log-level" default:"info"`
	LogFormat string `mapstructure:"log-format" default:"console"`

	Rate       float64       `mapstructure:"rate" default:"0"`
	Burst      int           `mapstructure:"burst" default:"1"`
	Retries    int           `mapstructure:"retries" default:"1"`
	RetryDelay time.Duration `mapstructure:"retry-delay" default:"100ms"`

	Bench BenchConfig `mapstructure:"bench"`
}

// BenchConfig configures the bench command.
type BenchConfig struct {
	Tasks        int           `mapstructure:"tasks" default:"200"`
	TaskDuration time.Duration `mapstructure:"task-duration" default:"5ms"`
	WorkerCounts []int         `mapstructure:"worker-counts" default:"[1,2,4,8]"`
	Metrics      bool          `mapstructure:"metrics" default:"true"`
}

func defaultConfig() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig resolves the configuration from v, whose keys are bound to the
// command flags.
func loadConfig(v *viper.Viper) (*Config, error) {
	cfg := defaultConfig()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	levels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(levels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s", c.LogFormat)
	}
	if c.Workers < 0 {
		return fmt.Errorf("invalid worker count: %d", c.Workers)
	}
	if c.Rate < 0 {
		return fmt.Errorf("invalid rate: %v", c.Rate)
	}
	if c.Bench.Tasks <= 0 {
		return fmt.Errorf("invalid bench task count: %d", c.Bench.Tasks)
	}
	for _, n := range c.Bench.WorkerCounts {
		if n <= 0 {
			return fmt.Errorf("invalid bench worker count: %d", n)
		}
	}
	return nil
}
