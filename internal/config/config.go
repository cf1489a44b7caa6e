// Package config loads command line settings through viper: defaults, an
// optional YAML file, TAMD_ environment variables, and bound flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/danpasecinic/tamd"
)

const EnvPrefix = "TAMD"

const (
	KeyTimeout   = "timeout"
	KeyLogLevel  = "log.level"
	KeyLogFormat = "log.format"
)

var (
	ErrInvalidTimeout   = errors.New("timeout must be positive")
	ErrInvalidLogLevel  = errors.New("log level must be one of debug, info, warn, error")
	ErrInvalidLogFormat = errors.New("log format must be text or json")
)

type Config struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Log     LogConfig     `mapstructure:"log"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Defaults() Config {
	return Config{
		Timeout: tamd.DefaultTimeout,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Bind registers defaults and environment lookup on v. Flags bound to v
// afterwards take precedence over both.
func Bind(v *viper.Viper) {
	defaults := Defaults()
	v.SetDefault(KeyTimeout, defaults.Timeout)
	v.SetDefault(KeyLogLevel, defaults.Log.Level)
	v.SetDefault(KeyLogFormat, defaults.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads file into v when it is non-empty and decodes the result.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidTimeout, c.Timeout))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Log.Format))
	}
	return errors.Join(errs...)
}
