// ABOUTME: Workstation-local persisted settings for the screenpop agent client
// ABOUTME: TOML-backed key/value store: extension number, server address, secret

package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const defaultCheckInterval = 45 * time.Second

// Settings are the values the workstation persists between restarts.
type Settings struct {
	// ExtensionNumber is the agent identifier (PBX extension) this
	// workstation registers under.
	ExtensionNumber string `toml:"extension_number"`
	// ServerAddress is the gateway base URL, e.g. "https://pop.example.com:8443".
	ServerAddress string `toml:"server_address"`
	// SharedSecret gates channel registration on the gateway.
	SharedSecret string `toml:"shared_secret"`
	// CheckIntervalRaw is the liveness watchdog interval ("45s" if empty).
	CheckIntervalRaw string `toml:"check_interval,omitempty"`
}

// Validate reports the first reason these settings cannot open a channel.
// A failing validation means "stay disconnected with a descriptive reason,
// don't attempt to connect".
func (s *Settings) Validate() error {
	if s.ExtensionNumber == "" {
		return errors.New("extension number not configured")
	}
	if s.ServerAddress == "" {
		return errors.New("server address not configured")
	}
	if s.SharedSecret == "" {
		return errors.New("shared secret not configured")
	}
	if s.CheckIntervalRaw != "" {
		if _, err := time.ParseDuration(s.CheckIntervalRaw); err != nil {
			return fmt.Errorf("parsing check_interval %q: %w", s.CheckIntervalRaw, err)
		}
	}
	return nil
}

// CheckInterval returns the watchdog interval, defaulting to 45s.
func (s *Settings) CheckInterval() time.Duration {
	if s.CheckIntervalRaw == "" {
		return defaultCheckInterval
	}
	d, err := time.ParseDuration(s.CheckIntervalRaw)
	if err != nil {
		return defaultCheckInterval
	}
	return d
}

// LoadSettings reads settings from a TOML file.
func LoadSettings(path string) (*Settings, error) {
	var s Settings
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}
	return &s, nil
}

// SaveSettings writes settings to a TOML file, creating parent directories.
// The file is 0600: it holds the shared secret.
func SaveSettings(path string, s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating settings file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(s); err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	return nil
}
