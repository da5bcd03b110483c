package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateSchedule(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAPI() error {
	parsed, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("api.base_url is missing a host: %q", c.API.BaseURL)
	}
	if c.API.RequestTimeout <= 0 {
		return errors.New("api.request_timeout must be positive")
	}
	if c.API.ReconnectDelay <= 0 {
		return errors.New("api.reconnect_delay must be positive")
	}
	return nil
}

func (c *Config) validateWatch() error {
	if c.Watch.RefreshInterval <= 0 {
		return errors.New("watch.refresh_interval must be positive")
	}
	if c.Watch.LogCapacity < 1 {
		return errors.New("watch.log_capacity must be at least 1")
	}
	switch c.Watch.Sort {
	case SortNextCheck, SortLabel:
	default:
		return fmt.Errorf("watch.sort: unsupported value %q (want %s or %s)", c.Watch.Sort, SortNextCheck, SortLabel)
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if c.Schedule.SoonWindowHours <= 0 {
		return errors.New("schedule.soon_window_hours must be positive")
	}
	if c.Schedule.AiringDays <= 0 {
		return errors.New("schedule.airing_days must be positive")
	}
	if c.Schedule.AiringLimit <= 0 {
		return errors.New("schedule.airing_limit must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
