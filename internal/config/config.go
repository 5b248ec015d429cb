// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; connection strings go to the OS keychain.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dbscript/cli/internal/xdg"
)

// DefaultSelectLimit bounds generated SELECT scripts when nothing else is configured.
const DefaultSelectLimit = 1000

// Config holds non-sensitive CLI settings.
type Config struct {
	LogLevel          string           `json:"log_level"`
	LogFormat         string           `json:"log_format"`
	DefaultConnection string           `json:"default_connection,omitempty"`
	SelectLimit       int              `json:"select_limit"`
	RemoteProviders   []RemoteProvider `json:"remote_providers,omitempty"`
}

// RemoteProvider describes an out-of-process scripting host reached over gRPC.
type RemoteProvider struct {
	ID       string `json:"id"`
	Address  string `json:"address"`
	Insecure bool   `json:"insecure"`
	Token    string `json:"token,omitempty"`
}

// Defaults returns the configuration used when no config file exists.
func Defaults() Config {
	return Config{
		LogLevel:    "info",
		LogFormat:   "text",
		SelectLimit: DefaultSelectLimit,
	}
}

// Validate reports the first problem with c, if any.
func (c Config) Validate() error {
	if c.SelectLimit < 0 {
		return fmt.Errorf("select_limit must not be negative, got %d", c.SelectLimit)
	}
	seen := make(map[string]struct{}, len(c.RemoteProviders))
	for i, rp := range c.RemoteProviders {
		if strings.TrimSpace(rp.ID) == "" {
			return fmt.Errorf("remote_providers[%d]: id is required", i)
		}
		if strings.TrimSpace(rp.Address) == "" {
			return fmt.Errorf("remote_providers[%d]: address is required", i)
		}
		if _, dup := seen[rp.ID]; dup {
			return fmt.Errorf("remote_providers[%d]: duplicate id %q", i, rp.ID)
		}
		seen[rp.ID] = struct{}{}
	}
	return nil
}

// path returns the path to the config file.
func path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads configuration; missing file returns defaults.
// Fields absent from the file keep their default values.
func Load() (Config, error) {
	c := Defaults()
	p, err := path()
	if err != nil {
		return c, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return c, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", p, err)
	}
	return c, c.Validate()
}

// Save writes configuration with 0600 permissions.
func Save(c Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	p, err := path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}
