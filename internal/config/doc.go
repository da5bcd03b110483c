// Package config loads, normalizes, and validates dlpanel configuration data.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours the DLPANEL_API_URL and DLPANEL_LOG_LEVEL environment
// fallbacks. The Config type centralizes every knob the CLI and live view
// need: where the service lives, how often to refresh, and where state and
// logs are kept.
package config
