// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerPort                = 8080
	defaultServerHost                = "0.0.0.0"
	defaultReadTimeout               = 30 * time.Second
	defaultWriteTimeout              = 30 * time.Second
	defaultDatabasePath              = "./data/duet.db"
	defaultDatabaseConnectionTimeout = 5 * time.Second
	defaultDatabaseEnableWAL         = true
	defaultLogLevel                  = "info"
	defaultLogPretty                 = false
	defaultTimeUpdateInterval        = 250 * time.Millisecond
	defaultAutoPauseOnBothEnded      = false
	defaultEventQueueSize            = 256
	defaultPlaybackRate              = 1.0
	defaultFFprobePath               = "ffprobe"
	defaultProbeTimeout              = 30 * time.Second
	defaultProbeHTTPTimeout          = 10 * time.Second
	defaultProbeFailureThreshold     = 5
	defaultProbeResetTimeout         = 30 * time.Second
	defaultSessionIdleTimeout        = 30 * time.Minute
	defaultSessionCleanupInterval    = time.Minute
	defaultMaxSessions               = 64
	envPrefix                        = "DUET"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Playback PlaybackConfig
	Probe    ProbeConfig
	Session  SessionConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path              string
	ConnectionTimeout time.Duration
	EnableWAL         bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// PlaybackConfig holds synchronization engine configuration
type PlaybackConfig struct {
	// TimeUpdateInterval is how often a playing media clock reports its position
	TimeUpdateInterval time.Duration
	// AutoPauseOnBothEnded pauses the controller once every present track has ended
	AutoPauseOnBothEnded bool
	// EventQueueSize bounds the per-session event loop queue
	EventQueueSize int
	// PlaybackRate scales how fast media clocks advance against wall time
	PlaybackRate float64
}

// ProbeConfig holds media metadata probing configuration
type ProbeConfig struct {
	FFprobePath      string
	Timeout          time.Duration
	HTTPTimeout      time.Duration
	FailureThreshold int
	ResetTimeout     time.Duration
}

// SessionConfig holds playback session lifecycle configuration
type SessionConfig struct {
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
	MaxSessions     int
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	cfg, _, err := load()
	return cfg, err
}

// Watch loads the configuration and, when a config file is in use, reloads it on
// every change. onChange receives each successfully validated reload; invalid
// edits are reported through onError and the previous configuration stays in effect.
func Watch(onChange func(*Config), onError func(error)) (*Config, error) {
	cfg, v, err := load()
	if err != nil {
		return nil, err
	}

	if v.ConfigFileUsed() == "" {
		return cfg, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		onChange(next)
	})
	v.WatchConfig()

	return cfg, nil
}

func load() (*Config, *viper.Viper, error) {
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/duet")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, nil, fmt.Errorf("error reading config: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	// Database defaults
	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.connectiontimeout", defaultDatabaseConnectionTimeout)
	v.SetDefault("database.enablewal", defaultDatabaseEnableWAL)

	// Logging defaults
	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	// Playback defaults
	v.SetDefault("playback.timeupdateinterval", defaultTimeUpdateInterval)
	v.SetDefault("playback.autopauseonbothended", defaultAutoPauseOnBothEnded)
	v.SetDefault("playback.eventqueuesize", defaultEventQueueSize)
	v.SetDefault("playback.playbackrate", defaultPlaybackRate)

	// Probe defaults
	v.SetDefault("probe.ffprobepath", defaultFFprobePath)
	v.SetDefault("probe.timeout", defaultProbeTimeout)
	v.SetDefault("probe.httptimeout", defaultProbeHTTPTimeout)
	v.SetDefault("probe.failurethreshold", defaultProbeFailureThreshold)
	v.SetDefault("probe.resettimeout", defaultProbeResetTimeout)

	// Session defaults
	v.SetDefault("session.idletimeout", defaultSessionIdleTimeout)
	v.SetDefault("session.cleanupinterval", defaultSessionCleanupInterval)
	v.SetDefault("session.maxsessions", defaultMaxSessions)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}
	if c.Database.ConnectionTimeout <= 0 {
		return fmt.Errorf("invalid database connection timeout: %v (must be > 0)", c.Database.ConnectionTimeout)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if c.Playback.TimeUpdateInterval <= 0 {
		return fmt.Errorf("invalid time update interval: %v (must be > 0)", c.Playback.TimeUpdateInterval)
	}
	if c.Playback.EventQueueSize < 1 {
		return fmt.Errorf("invalid event queue size: %d (must be >= 1)", c.Playback.EventQueueSize)
	}
	if c.Playback.PlaybackRate <= 0 {
		return fmt.Errorf("invalid playback rate: %v (must be > 0)", c.Playback.PlaybackRate)
	}

	if c.Probe.FFprobePath == "" {
		return errors.New("ffprobe path cannot be empty")
	}
	if c.Probe.Timeout <= 0 || c.Probe.HTTPTimeout <= 0 {
		return fmt.Errorf("invalid probe timeouts: %v/%v (must be > 0)", c.Probe.Timeout, c.Probe.HTTPTimeout)
	}
	if c.Probe.FailureThreshold < 1 {
		return fmt.Errorf("invalid probe failure threshold: %d (must be >= 1)", c.Probe.FailureThreshold)
	}
	if c.Probe.ResetTimeout <= 0 {
		return fmt.Errorf("invalid probe reset timeout: %v (must be > 0)", c.Probe.ResetTimeout)
	}

	if c.Session.IdleTimeout <= 0 || c.Session.CleanupInterval <= 0 {
		return fmt.Errorf("invalid session timeouts: idle=%v cleanup=%v (must be > 0)", c.Session.IdleTimeout, c.Session.CleanupInterval)
	}
	if c.Session.MaxSessions < 1 {
		return fmt.Errorf("invalid max sessions: %d (must be >= 1)", c.Session.MaxSessions)
	}

	return nil
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
