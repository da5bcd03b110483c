package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"dlpanel/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("DLPANEL_API_URL", "")
	t.Setenv("DLPANEL_LOG_LEVEL", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved != filepath.Join(tempHome, ".config", "dlpanel", "config.toml") {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}

	if cfg.Paths.StateDir != filepath.Join(tempHome, ".local", "share", "dlpanel") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.Paths.LogDir != filepath.Join(tempHome, ".local", "share", "dlpanel", "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.API.BaseURL != "http://127.0.0.1:8000" {
		t.Fatalf("unexpected base url: %q", cfg.API.BaseURL)
	}
	if cfg.API.EventsPath != "/api/events" {
		t.Fatalf("unexpected events path: %q", cfg.API.EventsPath)
	}
	if cfg.RequestTimeout() != 15*time.Second || cfg.ReconnectDelay() != 3*time.Second {
		t.Fatalf("unexpected api durations: %s %s", cfg.RequestTimeout(), cfg.ReconnectDelay())
	}
	if cfg.Watch.LogCapacity != 400 || cfg.Watch.Sort != config.SortNextCheck {
		t.Fatalf("unexpected watch defaults: %+v", cfg.Watch)
	}
	if cfg.SoonWindow() != 24*time.Hour {
		t.Fatalf("unexpected soon window: %s", cfg.SoonWindow())
	}
	if cfg.Enqueue.Lang != "vostfr" {
		t.Fatalf("unexpected enqueue lang: %q", cfg.Enqueue.Lang)
	}
	if !cfg.Cache.Enabled {
		t.Fatal("expected cache enabled by default")
	}
	if cfg.SnapshotDBPath() != filepath.Join(cfg.Paths.StateDir, "snapshots.db") {
		t.Fatalf("unexpected snapshot path: %q", cfg.SnapshotDBPath())
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("DLPANEL_API_URL", "")
	t.Setenv("DLPANEL_LOG_LEVEL", "")
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "dlpanel.toml")

	type payload struct {
		API struct {
			BaseURL        string `toml:"base_url"`
			RequestTimeout int    `toml:"request_timeout"`
		} `toml:"api"`
		Watch struct {
			Sort        string `toml:"sort"`
			LogCapacity int    `toml:"log_capacity"`
		} `toml:"watch"`
		Enqueue struct {
			Lang     string `toml:"lang"`
			DestRoot string `toml:"dest_root"`
		} `toml:"enqueue"`
	}
	custom := payload{}
	custom.API.BaseURL = "https://dl.example.com/"
	custom.API.RequestTimeout = 30
	custom.Watch.Sort = "LABEL"
	custom.Watch.LogCapacity = 50
	custom.Enqueue.Lang = "VF"
	custom.Enqueue.DestRoot = filepath.Join(tempDir, "videos")
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.API.BaseURL != "https://dl.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.API.BaseURL)
	}
	if cfg.API.RequestTimeout != 30 {
		t.Fatalf("expected request timeout 30, got %d", cfg.API.RequestTimeout)
	}
	if cfg.Watch.Sort != config.SortLabel || cfg.Watch.LogCapacity != 50 {
		t.Fatalf("unexpected watch section: %+v", cfg.Watch)
	}
	if cfg.Enqueue.Lang != "vf" || cfg.Enqueue.DestRoot != filepath.Join(tempDir, "videos") {
		t.Fatalf("unexpected enqueue section: %+v", cfg.Enqueue)
	}
	if cfg.API.ReconnectDelay != 3 {
		t.Fatalf("expected unspecified keys to keep defaults, got %d", cfg.API.ReconnectDelay)
	}
}

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("DLPANEL_API_URL", "http://nas.local:9000")
	t.Setenv("DLPANEL_LOG_LEVEL", "DEBUG")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.BaseURL != "http://nas.local:9000" {
		t.Fatalf("expected env base url, got %q", cfg.API.BaseURL)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected env log level, got %q", cfg.Logging.Level)
	}
}

func TestConfigFileBaseURLBeatsEnv(t *testing.T) {
	t.Setenv("DLPANEL_API_URL", "http://from-env:1")
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[api]\nbase_url = \"http://from-file:2\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.BaseURL != "http://from-file:2" {
		t.Fatalf("expected file value to win, got %q", cfg.API.BaseURL)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[api\nbase_url = "), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.API.BaseURL != config.Default().API.BaseURL {
		t.Fatalf("sample base url drifted from defaults: %q", cfg.API.BaseURL)
	}
	if cfg.Watch.LogCapacity != config.Default().Watch.LogCapacity {
		t.Fatalf("sample log capacity drifted from defaults: %d", cfg.Watch.LogCapacity)
	}
	if !strings.Contains(cfg.Paths.StateDir, "dlpanel") {
		t.Fatalf("expected state dir to contain dlpanel, got %q", cfg.Paths.StateDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"relative url", func(c *config.Config) { c.API.BaseURL = "localhost:8000" }},
		{"ftp url", func(c *config.Config) { c.API.BaseURL = "ftp://host" }},
		{"zero timeout", func(c *config.Config) { c.API.RequestTimeout = 0 }},
		{"negative reconnect", func(c *config.Config) { c.API.ReconnectDelay = -1 }},
		{"zero refresh", func(c *config.Config) { c.Watch.RefreshInterval = 0 }},
		{"zero log capacity", func(c *config.Config) { c.Watch.LogCapacity = 0 }},
		{"unknown sort", func(c *config.Config) { c.Watch.Sort = "random" }},
		{"zero soon window", func(c *config.Config) { c.Schedule.SoonWindowHours = 0 }},
		{"zero airing limit", func(c *config.Config) { c.Schedule.AiringLimit = 0 }},
		{"unknown format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"unknown level", func(c *config.Config) { c.Logging.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}

func TestEncodeRoundTripsThroughLoad(t *testing.T) {
	t.Setenv("DLPANEL_API_URL", "")
	t.Setenv("DLPANEL_LOG_LEVEL", "")
	cfg := config.Default()
	cfg.API.BaseURL = "http://box:8123"
	cfg.Schedule.AiringDays = 3
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.API.BaseURL != "http://box:8123" || loaded.Schedule.AiringDays != 3 {
		t.Fatalf("unexpected loaded config: %+v", loaded)
	}
}
