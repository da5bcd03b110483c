// Package logging assembles structured slog loggers and formatting helpers used
// across dlpanel.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and defines the standard field keys (component, job_id,
// request_id, ...) so log lines from the client, the live view and the CLI
// share one shape. The live view owns the terminal while it runs, so loggers
// built from config always write to a file under the configured log
// directory and only optionally to a console writer.
package logging
