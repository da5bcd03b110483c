package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"dlpanel/internal/apiclient"
	"dlpanel/internal/config"
	"dlpanel/internal/logging"
	"dlpanel/internal/snapcache"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.apiFlag != nil {
			if override := strings.TrimRight(strings.TrimSpace(*c.apiFlag), "/"); override != "" {
				cfg.API.BaseURL = override
				if err := cfg.Validate(); err != nil {
					c.configErr = fmt.Errorf("--api: %w", err)
					return
				}
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// baseLogger writes to the log file only; command output owns stdout.
func (c *commandContext) baseLogger() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(c.configValue(), nil)
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) client() (*apiclient.Client, error) {
	return c.clientWithLogger(c.baseLogger())
}

func (c *commandContext) clientWithLogger(logger *slog.Logger) (*apiclient.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	client, err := apiclient.New(cfg.API.BaseURL, apiclient.Options{
		Timeout:    cfg.RequestTimeout(),
		EventsPath: cfg.API.EventsPath,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (c *commandContext) withClient(fn func(*apiclient.Client) error) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	return wrapServiceError(fn(client), client.BaseURL())
}

// openSnapshotCache opens the snapshot cache. A disabled cache yields
// (nil, nil). Callers close the store.
func (c *commandContext) openSnapshotCache() (*snapcache.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	return snapcache.Open(cfg.Paths.StateDir, c.baseLogger())
}

func wrapServiceError(err error, baseURL string) error {
	switch {
	case err == nil:
		return nil
	case apiclient.IsAPIUnavailable(err):
		return fmt.Errorf("download service at %s is unreachable; check api.base_url or pass --api: %w", baseURL, err)
	default:
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("download service rejected the request: %w", err)
		}
		return err
	}
}

// skipConfigAnnotation marks commands (and their children) that must run
// without a loadable configuration.
const skipConfigAnnotation = "skipConfigLoad"

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}
