package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the client settings. It is built once at startup and passed by
// value to the components that need it.
type Config struct {
	APIURL       string        `yaml:"api_url"`
	StreamURL    string        `yaml:"stream_url"`
	Token        string        `yaml:"token,omitempty"`
	ViewerID     string        `yaml:"viewer_id"`
	Username     string        `yaml:"username,omitempty"`
	FullName     string        `yaml:"full_name,omitempty"`
	CachePath    string        `yaml:"cache_path,omitempty"`
	LogPath      string        `yaml:"log_path,omitempty"`
	LogLevel     string        `yaml:"log_level,omitempty"`
	MetricsAddr  string        `yaml:"metrics_addr,omitempty"`
	HTTPTimeout  time.Duration `yaml:"http_timeout,omitempty"`
	TypingIdle   time.Duration `yaml:"typing_idle,omitempty"`
	ReceiptEvery time.Duration `yaml:"receipt_every,omitempty"`
	Banners      BannerFlags   `yaml:"banners"`
}

// BannerFlags toggles optional timeline chrome.
type BannerFlags struct {
	NewMessagesDivider bool `yaml:"new_messages_divider"`
	JumpToLatest       bool `yaml:"jump_to_latest"`
	ConnectionState    bool `yaml:"connection_state"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() Config {
	return Config{
		APIURL:       "http://localhost:3000",
		StreamURL:    "ws://localhost:4001",
		LogLevel:     "info",
		HTTPTimeout:  15 * time.Second,
		TypingIdle:   1400 * time.Millisecond,
		ReceiptEvery: 1500 * time.Millisecond,
		Banners: BannerFlags{
			NewMessagesDivider: true,
			JumpToLatest:       true,
			ConnectionState:    true,
		},
	}
}

// ConfigPath returns the default config file location.
func ConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "orya-chat", "config.yaml"), nil
}

// LoadConfig reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return config, err
		default:
			if err := yaml.Unmarshal(data, &config); err != nil {
				return config, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	applyEnv(&config)
	if config.CachePath == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			config.CachePath = filepath.Join(dir, "orya-chat", "cache.db")
		}
	}
	return config, config.Validate()
}

// WriteConfig writes config to path, creating the directory.
func WriteConfig(path string, config Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate rejects settings the client cannot run with.
func (c Config) Validate() error {
	if c.APIURL == "" {
		return Validation("config", "api_url is required")
	}
	if c.TypingIdle <= 0 {
		return Validation("config", "typing_idle must be positive")
	}
	if c.ReceiptEvery < 0 {
		return Validation("config", "receipt_every must not be negative")
	}
	return nil
}

func applyEnv(config *Config) {
	if value := os.Getenv("ORYA_CHAT_API_URL"); value != "" {
		config.APIURL = value
	}
	if value := os.Getenv("ORYA_CHAT_WS_URL"); value != "" {
		config.StreamURL = value
	}
	if value := os.Getenv("ORYA_CHAT_TOKEN"); value != "" {
		config.Token = value
	}
	if value := os.Getenv("ORYA_CHAT_VIEWER_ID"); value != "" {
		config.ViewerID = value
	}
}
