// Package config loads hardeen settings from an optional YAML file and
// HARDEEN_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Log  LogConfig  `mapstructure:"log"`
	Eval EvalConfig `mapstructure:"eval"`
	Mesh MeshConfig `mapstructure:"mesh"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type EvalConfig struct {
	// Workers bounds concurrent node computations; 0 means GOMAXPROCS.
	Workers       int           `mapstructure:"workers"`
	ScriptTimeout time.Duration `mapstructure:"script_timeout"`
}

type MeshConfig struct {
	Cells  int     `mapstructure:"cells"`
	Height float64 `mapstructure:"height"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("eval.workers", 0)
	v.SetDefault("eval.script_timeout", "1s")
	v.SetDefault("mesh.cells", 200)
	v.SetDefault("mesh.height", 1.0)
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		warnings = append(warnings, fmt.Sprintf("log level %q is unknown, using info", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		warnings = append(warnings, fmt.Sprintf("log format %q is unknown, using text", c.Log.Format))
	}
	if c.Eval.Workers < 0 {
		warnings = append(warnings, fmt.Sprintf("eval workers %d is negative", c.Eval.Workers))
	}
	if c.Eval.ScriptTimeout <= 0 {
		warnings = append(warnings, fmt.Sprintf("eval script_timeout %s is not positive", c.Eval.ScriptTimeout))
	}
	if c.Mesh.Cells <= 0 {
		warnings = append(warnings, fmt.Sprintf("mesh cells %d is not positive", c.Mesh.Cells))
	}
	if c.Mesh.Height <= 0 {
		warnings = append(warnings, fmt.Sprintf("mesh height %g is not positive", c.Mesh.Height))
	}

	return warnings
}

// Load reads configuration from path and the environment. An empty path
// skips the file and uses defaults plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("HARDEEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}
