package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// API contains how to reach the download service.
type API struct {
	BaseURL        string `toml:"base_url"`
	RequestTimeout int    `toml:"request_timeout"`
	EventsPath     string `toml:"events_path"`
	ReconnectDelay int    `toml:"reconnect_delay"`
}

// Paths contains local directories.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Watch contains live view settings.
type Watch struct {
	RefreshInterval int    `toml:"refresh_interval"`
	LogCapacity     int    `toml:"log_capacity"`
	Sort            string `toml:"sort"`
}

// Schedule contains subscription triage and airing calendar settings.
type Schedule struct {
	SoonWindowHours int `toml:"soon_window_hours"`
	AiringDays      int `toml:"airing_days"`
	AiringLimit     int `toml:"airing_limit"`
}

// Enqueue contains defaults for new download requests.
type Enqueue struct {
	Lang     string `toml:"lang"`
	DestRoot string `toml:"dest_root"`
}

// Cache controls the local snapshot cache.
type Cache struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for dlpanel.
//
// Configuration sections:
//   - API: service location, timeouts and the push channel path
//   - Paths: state and log directories
//   - Watch: live view refresh cadence, log size, subscription order
//   - Schedule: due/soon window and airing calendar range
//   - Enqueue: default language and destination for new downloads
//   - Cache: last-good snapshot cache toggle
//   - Logging: log format and level
type Config struct {
	API      API      `toml:"api"`
	Paths    Paths    `toml:"paths"`
	Watch    Watch    `toml:"watch"`
	Schedule Schedule `toml:"schedule"`
	Enqueue  Enqueue  `toml:"enqueue"`
	Cache    Cache    `toml:"cache"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute per-user configuration path.
func DefaultConfigPath() (string, error) {
	return ExpandPath(defaultConfigPath)
}

// Load reads, normalizes and validates the configuration. With an empty path
// the per-user file is tried first, then ./dlpanel.toml; when neither exists
// the defaults are returned along with the per-user path and exists=false.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := locate(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config %s: %w", resolved, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func locate(explicit string) (string, bool, error) {
	candidates := []string{defaultConfigPath, projectConfigName}
	if explicit != "" {
		candidates = []string{explicit}
	}
	var fallback string
	for _, candidate := range candidates {
		path, err := ExpandPath(candidate)
		if err != nil {
			return "", false, err
		}
		if fallback == "" {
			fallback = path
		}
		info, err := os.Stat(path)
		switch {
		case err == nil && !info.IsDir():
			return path, true, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return "", false, fmt.Errorf("stat config %s: %w", path, err)
		}
	}
	return fallback, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RequestTimeout returns the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.RequestTimeout) * time.Second
}

// ReconnectDelay returns the pause between push channel reconnect attempts.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.API.ReconnectDelay) * time.Second
}

// RefreshInterval returns the live view's periodic full refresh cadence.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Watch.RefreshInterval) * time.Second
}

// SoonWindow returns how far ahead a subscription check counts as "soon".
func (c *Config) SoonWindow() time.Duration {
	return time.Duration(c.Schedule.SoonWindowHours) * time.Hour
}

// SnapshotDBPath is the SQLite file backing the snapshot cache.
func (c *Config) SnapshotDBPath() string {
	return filepath.Join(c.Paths.StateDir, "snapshots.db")
}

// Encode renders the config as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// ExpandPath resolves a leading "~" and returns an absolute, cleaned path.
// The empty string is returned unchanged.
func ExpandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, strings.TrimPrefix(value, "~"))
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", value, err)
	}
	return abs, nil
}

// CreateSample writes the commented sample configuration to path, creating
// parent directories as needed.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
