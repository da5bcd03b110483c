package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dlpanel/internal/config"
)

// LogFileName is the file written under the configured log directory.
const LogFileName = "dlpanel.log"

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// File is appended to when set. Its directory is created on demand.
	File string
	// Console receives output in addition to File when non-nil.
	Console io.Writer
}

// New constructs a slog logger using the provided options. With neither File
// nor Console set, records go to stderr.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))
	addSource := level.Level() <= slog.LevelDebug

	var handlerFor func(io.Writer) slog.Handler
	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "", "console":
		handlerFor = func(w io.Writer) slog.Handler { return newPrettyHandler(w, level, addSource) }
	case "json":
		handlerFor = func(w io.Writer) slog.Handler { return newJSONHandler(w, level, addSource) }
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	var writers []io.Writer
	if opts.Console != nil {
		writers = append(writers, opts.Console)
	}
	if path := strings.TrimSpace(opts.File); path != "" {
		file, err := openLogFile(path)
		if err != nil {
			return nil, err
		}
		writers = append(writers, file)
	}
	switch len(writers) {
	case 0:
		return slog.New(handlerFor(os.Stderr)), nil
	case 1:
		return slog.New(handlerFor(writers[0])), nil
	}
	return slog.New(handlerFor(io.MultiWriter(writers...))), nil
}

// NewFromConfig creates a logger writing to LogFileName under the configured
// log directory and, when console is non-nil, to console as well.
func NewFromConfig(cfg *config.Config, console io.Writer) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Console: console})
	}
	opts := Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Console: console,
	}
	if cfg.Paths.LogDir != "" {
		opts.File = filepath.Join(cfg.Paths.LogDir, LogFileName)
	}
	return New(opts)
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}

func parseLevel(level string) slog.Level {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		if strings.EqualFold(strings.TrimSpace(level), "warning") {
			return slog.LevelWarn
		}
		return slog.LevelInfo
	}
	return parsed
}
