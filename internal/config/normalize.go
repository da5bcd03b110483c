package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeAPI()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWatch()
	c.normalizeEnqueue()
	c.normalizeLogging()
	return nil
}

// normalizeAPI applies the DLPANEL_API_URL fallback only when the file did not
// set a base URL different from the default.
func (c *Config) normalizeAPI() {
	c.API.BaseURL = strings.TrimSpace(c.API.BaseURL)
	if c.API.BaseURL == "" || c.API.BaseURL == defaultAPIBaseURL {
		if value, ok := os.LookupEnv(envAPIURL); ok && strings.TrimSpace(value) != "" {
			c.API.BaseURL = strings.TrimSpace(value)
		}
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaultAPIBaseURL
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")

	c.API.EventsPath = strings.TrimSpace(c.API.EventsPath)
	if c.API.EventsPath == "" {
		c.API.EventsPath = defaultEventsPath
	}
	if !strings.HasPrefix(c.API.EventsPath, "/") {
		c.API.EventsPath = "/" + c.API.EventsPath
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = ExpandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Enqueue.DestRoot != "" {
		if c.Enqueue.DestRoot, err = ExpandPath(c.Enqueue.DestRoot); err != nil {
			return fmt.Errorf("enqueue.dest_root: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeWatch() {
	c.Watch.Sort = strings.ToLower(strings.TrimSpace(c.Watch.Sort))
	if c.Watch.Sort == "" {
		c.Watch.Sort = defaultWatchSort
	}
}

func (c *Config) normalizeEnqueue() {
	c.Enqueue.Lang = strings.ToLower(strings.TrimSpace(c.Enqueue.Lang))
	if c.Enqueue.Lang == "" {
		c.Enqueue.Lang = defaultEnqueueLang
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if value, ok := os.LookupEnv(envLogLevel); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
