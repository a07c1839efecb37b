package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings captures everything the server needs to boot. Mission configs
// themselves live in Missions.ConfigDir.
type Settings struct {
	Server   ServerSettings  `yaml:"server"`
	Missions MissionSettings `yaml:"missions"`
	Sessions SessionSettings `yaml:"sessions"`
	Logging  LoggingSettings `yaml:"logging"`
	Tunnel   TunnelSettings  `yaml:"tunnel"`
}

// ServerSettings controls the HTTP listener.
type ServerSettings struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`

	// ExternalAPI is probed by stdio-mcp mode before starting its own listener
	ExternalAPI string `yaml:"externalAPI"`
}

// MissionSettings controls config loading and the real-time clock.
type MissionSettings struct {
	ConfigDir     string `yaml:"configDir"`
	DefaultConfig string `yaml:"defaultConfig"`

	// TickInterval drives every running mission's clock; zero leaves time
	// to explicit tick commands
	TickInterval time.Duration `yaml:"tickInterval"`
}

// SessionSettings controls persistence and expiry.
type SessionSettings struct {
	Persist         bool          `yaml:"persist"`
	Dir             string        `yaml:"dir"`
	MaxAge          time.Duration `yaml:"maxAge"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
	SyncInterval    time.Duration `yaml:"syncInterval"`
}

// LoggingSettings controls structured logging.
type LoggingSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TunnelSettings controls the optional ngrok tunnel.
type TunnelSettings struct {
	Enabled   bool   `yaml:"enabled"`
	Authtoken string `yaml:"authtoken"`
	Domain    string `yaml:"domain"`
}

// Addr returns host:port
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadSettings initialises Settings from a YAML file and optional environment
// overrides. An empty path falls back to MISSIONS_CONFIG; with neither, only
// defaults and the environment apply.
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		path = os.Getenv("MISSIONS_CONFIG")
	}

	cfg := DefaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("settings file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read settings: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse settings: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// DefaultSettings returns the settings used when nothing is configured
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Host:            "localhost",
			Port:            8080,
			GracefulTimeout: 10 * time.Second,
			ExternalAPI:     "http://localhost:8080",
		},
		Missions: MissionSettings{
			ConfigDir:     "configs",
			DefaultConfig: DefaultConfigName,
		},
		Sessions: SessionSettings{
			Persist:         true,
			Dir:             "sessions",
			MaxAge:          24 * time.Hour,
			CleanupInterval: time.Hour,
			SyncInterval:    5 * time.Second,
		},
		Logging: LoggingSettings{Level: "info", Format: "text"},
	}
}

func applyEnvOverrides(cfg *Settings) {
	if v := os.Getenv("MISSIONS_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("MISSIONS_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("MISSIONS_EXTERNAL_API"); v != "" {
		cfg.Server.ExternalAPI = v
	}
	// CONFIG_DIR is also honoured by engine.LoadMissionConfig
	if v := os.Getenv("CONFIG_DIR"); v != "" {
		cfg.Missions.ConfigDir = v
	}
	if v := os.Getenv("MISSIONS_CONFIG_DIR"); v != "" {
		cfg.Missions.ConfigDir = v
	}
	if v := os.Getenv("MISSIONS_DEFAULT_CONFIG"); v != "" {
		cfg.Missions.DefaultConfig = v
	}
	if v := os.Getenv("MISSIONS_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Missions.TickInterval = d
		}
	}
	if v := os.Getenv("MISSIONS_PERSIST"); v != "" {
		cfg.Sessions.Persist = parseBool(v, cfg.Sessions.Persist)
	}
	if v := os.Getenv("MISSIONS_SESSIONS_DIR"); v != "" {
		cfg.Sessions.Dir = v
	}
	if v := os.Getenv("MISSIONS_SESSION_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sessions.MaxAge = d
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("NGROK_ENABLED"); v != "" {
		cfg.Tunnel.Enabled = parseBool(v, cfg.Tunnel.Enabled)
	}
	// Support both naming conventions for the token
	if v := os.Getenv("NGROK_AUTHTOKEN"); v != "" {
		cfg.Tunnel.Authtoken = v
	} else if v := os.Getenv("NGROK_AUTH_TOKEN"); v != "" {
		cfg.Tunnel.Authtoken = v
	}
	if v := os.Getenv("NGROK_DOMAIN"); v != "" {
		cfg.Tunnel.Domain = v
	}
}

func parseBool(v string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}
