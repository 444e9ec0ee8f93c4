// Package config loads daemon configuration from a JSON file with
// DESKPET_* environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tamasan/deskpet/internal/pet"
)

const (
	DefaultAddr        = "127.0.0.1:7878"
	DefaultPetName     = "Mochi"
	DefaultDecayPreset = "normal"
	DefaultTickSeconds = 60
	DefaultPollSeconds = 1
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
)

type Config struct {
	Pet     PetConfig     `json:"pet"`
	Server  ServerConfig  `json:"server"`
	Storage StorageConfig `json:"storage"`
	Log     LogConfig     `json:"log"`
}

type PetConfig struct {
	Name        string `json:"name"`
	DecayPreset string `json:"decayPreset"`
	TickSeconds int    `json:"tickSeconds"`
	Proactive   bool   `json:"proactive"`
	AutoWork    bool   `json:"autoWork"`
}

type ServerConfig struct {
	Addr        string `json:"addr"`
	AuthToken   string `json:"authToken,omitempty"`
	PollSeconds int    `json:"pollSeconds"`
}

type StorageConfig struct {
	DBPath string `json:"dbPath"`
}

type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text or json
}

func DefaultConfig() *Config {
	return &Config{
		Pet: PetConfig{
			Name:        DefaultPetName,
			DecayPreset: DefaultDecayPreset,
			TickSeconds: DefaultTickSeconds,
			Proactive:   true,
			AutoWork:    true,
		},
		Server: ServerConfig{
			Addr:        DefaultAddr,
			PollSeconds: DefaultPollSeconds,
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(ConfigDir(), "pet.db"),
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".deskpet")
}

func DefaultPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load reads the config file at path (DefaultPath when empty), applies
// environment overrides and validates the result. A missing file is fine;
// defaults apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if name := os.Getenv("DESKPET_NAME"); name != "" {
		cfg.Pet.Name = name
	}
	if preset := os.Getenv("DESKPET_DECAY_PRESET"); preset != "" {
		cfg.Pet.DecayPreset = preset
	}
	if secs := os.Getenv("DESKPET_TICK_SECONDS"); secs != "" {
		if parsed, err := strconv.Atoi(secs); err == nil {
			cfg.Pet.TickSeconds = parsed
		}
	}
	if proactive := os.Getenv("DESKPET_PROACTIVE"); proactive != "" {
		if parsed, err := strconv.ParseBool(proactive); err == nil {
			cfg.Pet.Proactive = parsed
		}
	}
	if work := os.Getenv("DESKPET_AUTO_WORK"); work != "" {
		if parsed, err := strconv.ParseBool(work); err == nil {
			cfg.Pet.AutoWork = parsed
		}
	}
	if addr := os.Getenv("DESKPET_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if token := os.Getenv("DESKPET_AUTH_TOKEN"); token != "" {
		cfg.Server.AuthToken = token
	}
	if dbPath := os.Getenv("DESKPET_DB_PATH"); dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	if level := os.Getenv("DESKPET_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if format := os.Getenv("DESKPET_LOG_FORMAT"); format != "" {
		cfg.Log.Format = format
	}

	if cfg.Pet.Name == "" {
		cfg.Pet.Name = DefaultPetName
	}
	if cfg.Pet.TickSeconds <= 0 {
		cfg.Pet.TickSeconds = DefaultTickSeconds
	}
	if cfg.Server.PollSeconds <= 0 {
		cfg.Server.PollSeconds = DefaultPollSeconds
	}
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = DefaultConfig().Storage.DBPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks field values. Load calls it; callers building a Config
// by hand should too.
func (c *Config) Validate() error {
	if _, err := pet.DecayPreset(c.Pet.DecayPreset); err != nil {
		return err
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr must not be empty")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// Save writes the config as indented JSON, creating the directory.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Engine builds the pet engine configuration from the selected preset and
// toggles.
func (c *Config) Engine() (pet.Config, error) {
	decay, err := pet.DecayPreset(c.Pet.DecayPreset)
	if err != nil {
		return pet.Config{}, err
	}

	engine := pet.DefaultConfig()
	engine.PetName = c.Pet.Name
	engine.Decay = decay
	engine.Proactive.Enabled = c.Pet.Proactive
	engine.AutoWork.Enabled = c.Pet.AutoWork
	return engine, nil
}

// TickInterval returns how often the daemon advances the pet.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Pet.TickSeconds) * time.Second
}

// PollInterval returns how often the scheduler scans for due tasks.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Server.PollSeconds) * time.Second
}
