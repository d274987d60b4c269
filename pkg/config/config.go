package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppKeyEnv is consulted when vehicle.app_key is empty.
const AppKeyEnv = "DOWNSHOT_APP_KEY"

type Config struct {
	Mission MissionConfig `yaml:"mission"`
	Vehicle VehicleConfig `yaml:"vehicle"`
	Log     LogConfig     `yaml:"log"`
	DB      DBConfig      `yaml:"db"`
	Server  ServerConfig  `yaml:"server"`
	Map     MapConfig     `yaml:"map"`
}

// MissionConfig holds the downshot mission parameters.
type MissionConfig struct {
	Altitude      Distance `yaml:"altitude"`
	SettleDelay   Duration `yaml:"settle_delay"`
	Timeout       Duration `yaml:"timeout"` // 0 disables the watchdog
	ResetTimeline bool     `yaml:"reset_timeline"`
}

// VehicleConfig selects and configures the aircraft link.
type VehicleConfig struct {
	Provider string    `yaml:"provider"`
	AppKey   string    `yaml:"app_key"`
	Model    string    `yaml:"model"`
	Sim      SimConfig `yaml:"sim"`
}

// SimConfig holds settings for the simulated vehicle.
type SimConfig struct {
	StartLat      float64  `yaml:"start_lat"`
	StartLon      float64  `yaml:"start_lon"`
	StartHeading  float64  `yaml:"start_heading"`
	Speed         float64  `yaml:"speed"`      // m/s
	ClimbRate     float64  `yaml:"climb_rate"` // m/s
	TelemetryRate Duration `yaml:"telemetry_rate"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server      LogSettings `yaml:"server"`
	Requests    LogSettings `yaml:"requests"`
	JournalSize int         `yaml:"journal_size"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path      string   `yaml:"path"`
	Retention Duration `yaml:"retention"` // finished mission history; 0 keeps all
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// MapConfig holds map surface settings.
type MapConfig struct {
	TrailSize int `yaml:"trail_size"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Mission: MissionConfig{
			Altitude:      Distance(30),
			SettleDelay:   Duration(5 * time.Second),
			ResetTimeline: true,
		},
		Vehicle: VehicleConfig{
			Provider: "sim",
			Model:    "Matrice600",
			Sim: SimConfig{
				StartLat:      47.3769,
				StartLon:      8.5417,
				Speed:         10,
				ClimbRate:     3,
				TelemetryRate: Duration(200 * time.Millisecond),
			},
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			JournalSize: 500,
		},
		DB: DBConfig{
			Path:      "./data/downshot.db",
			Retention: Duration(30 * Day),
		},
		Server: ServerConfig{
			Address: "localhost:1920",
		},
		Map: MapConfig{
			TrailSize: 600,
		},
	}
}

// Load reads the config at path, writing the defaults first when the file
// does not exist. Environment fallbacks and path expansion are applied to
// the returned value only and never written back.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	if cfg.Vehicle.AppKey == "" {
		cfg.Vehicle.AppKey = os.Getenv(AppKeyEnv)
	}
	cfg.DB.Path = expandPath(cfg.DB.Path)
	cfg.Log.Server.Path = expandPath(cfg.Log.Server.Path)
	cfg.Log.Requests.Path = expandPath(cfg.Log.Requests.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var winEnv = regexp.MustCompile(`%([A-Za-z0-9_]+)%`)

// expandPath resolves $VAR, ${VAR} and %VAR% references.
func expandPath(p string) string {
	p = winEnv.ReplaceAllString(p, "$${$1}")
	return os.ExpandEnv(p)
}

// Validate rejects settings the mission cannot fly with.
func (c *Config) Validate() error {
	var errs []error
	if alt := float64(c.Mission.Altitude); alt < 2 || alt > 500 {
		errs = append(errs, fmt.Errorf("mission.altitude %.1fm outside [2, 500]", alt))
	}
	if c.Mission.SettleDelay < 0 {
		errs = append(errs, errors.New("mission.settle_delay must not be negative"))
	}
	if c.Mission.Timeout < 0 {
		errs = append(errs, errors.New("mission.timeout must not be negative"))
	}
	if strings.TrimSpace(c.Vehicle.Provider) != "sim" {
		errs = append(errs, fmt.Errorf("unsupported vehicle.provider %q", c.Vehicle.Provider))
	}
	if c.Vehicle.Sim.Speed <= 0 || c.Vehicle.Sim.ClimbRate <= 0 {
		errs = append(errs, errors.New("vehicle.sim speed and climb_rate must be positive"))
	}
	if c.Log.JournalSize <= 0 {
		errs = append(errs, errors.New("log.journal_size must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Downshot Configuration
# ---------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), nm (nautical miles), ft (feet)

`)
	data = append(header, data...)

	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: sim\n${1}provider:"))

	reTimeout := regexp.MustCompile(`(?m)^(\s+)timeout:`)
	data = reTimeout.ReplaceAll(data, []byte("${1}# 0s waits for the timeline forever\n${1}timeout:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
