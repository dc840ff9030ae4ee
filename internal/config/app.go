// Package config loads the service configuration (viper, configs/config.yml
// with MOLD_* environment overrides) and mold profiles (YAML files).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"mold_monitor/internal/acquisition"
)

const (
	SourceSimulator = "simulator"
	SourceOPCUA     = "opcua"
)

type App struct {
	Port        string            `mapstructure:"port"`
	DB          DBConfig          `mapstructure:"db"`
	Log         LogConfig         `mapstructure:"log"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Acquisition AcquisitionConfig `mapstructure:"acquisition"`
	Session     SessionConfig     `mapstructure:"session"`
	Profile     ProfileConfig     `mapstructure:"profile"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type AcquisitionConfig struct {
	Source    string                  `mapstructure:"source"`
	Simulator SimulatorConfig         `mapstructure:"simulator"`
	OPCUA     acquisition.OPCUAConfig `mapstructure:"opcua"`
}

type SimulatorConfig struct {
	CycleTime  time.Duration `mapstructure:"cycle_time"`
	ShotTime   time.Duration `mapstructure:"shot_time"`
	PeakBar    float64       `mapstructure:"peak_bar"`
	MeltC      float64       `mapstructure:"melt_c"`
	NoiseCodes float64       `mapstructure:"noise_codes"`
	Seed       uint64        `mapstructure:"seed"`
}

type SessionConfig struct {
	QueueSize  int           `mapstructure:"queue_size"`
	ResetOnEnd bool          `mapstructure:"reset_on_end"`
	MaxRunTime time.Duration `mapstructure:"max_run_time"`
}

type ProfileConfig struct {
	Path string `mapstructure:"path"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db.path", "mold.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("acquisition.source", SourceSimulator)
	v.SetDefault("acquisition.simulator.cycle_time", acquisition.DefaultCycleTime)
	v.SetDefault("acquisition.simulator.shot_time", acquisition.DefaultShotTime)
	v.SetDefault("acquisition.simulator.peak_bar", acquisition.DefaultPeakBar)
	v.SetDefault("acquisition.simulator.melt_c", acquisition.DefaultMeltC)
	v.SetDefault("acquisition.simulator.noise_codes", acquisition.DefaultNoiseCodes)
	v.SetDefault("acquisition.simulator.seed", 1)
	v.SetDefault("acquisition.opcua.endpoint", "")
	v.SetDefault("acquisition.opcua.security_mode", "None")
	v.SetDefault("acquisition.opcua.security_policy", "None")
	v.SetDefault("acquisition.opcua.username", "")
	v.SetDefault("acquisition.opcua.password", "")
	v.SetDefault("acquisition.opcua.period", 10*time.Millisecond)
	v.SetDefault("session.queue_size", 1024)
	v.SetDefault("session.reset_on_end", false)
	v.SetDefault("session.max_run_time", time.Duration(0))
	v.SetDefault("profile.path", "")
	v.SetDefault("metrics.enabled", true)
}

// Load reads config.yml from dir. A missing file is not an error: defaults
// and MOLD_* environment variables still apply (MOLD_DB_PATH, MOLD_LOG_LEVEL, ...).
func Load(dir string) (*App, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix("MOLD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var app App
	if err := v.Unmarshal(&app); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := app.Validate(); err != nil {
		return nil, err
	}
	return &app, nil
}

func (a *App) Validate() error {
	switch a.Acquisition.Source {
	case SourceSimulator:
	case SourceOPCUA:
		if a.Acquisition.OPCUA.Endpoint == "" {
			return errors.New("config: acquisition.opcua.endpoint is required for the opcua source")
		}
	default:
		return fmt.Errorf("config: unknown acquisition.source %q", a.Acquisition.Source)
	}
	if a.Auth.TokenTTL <= 0 {
		return errors.New("config: auth.token_ttl must be positive")
	}
	if a.Session.MaxRunTime < 0 {
		return errors.New("config: session.max_run_time must not be negative")
	}
	return nil
}
