package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"dlpanel/internal/api"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusKinds = [...]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

func (k statusKind) label() string {
	if int(k) < len(statusKinds) {
		return statusKinds[k].label
	}
	return "INFO"
}

func (k statusKind) color() string {
	if int(k) < len(statusKinds) {
		return statusKinds[k].color
	}
	return ""
}

var titleCaser = cases.Title(language.Und)

// renderStatusLine prints "  Label:          [KIND] message" with the whole
// line tinted by kind.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	badge := "[" + kind.label() + "]"
	if message != "" {
		badge += " " + message
	}
	return colorizeText(fmt.Sprintf("  %-16s %s", label+":", badge), kind.color(), colorize)
}

func jobStatusKind(status api.JobStatus) statusKind {
	switch status {
	case api.StatusSuccess:
		return statusOK
	case api.StatusFailed:
		return statusError
	case api.StatusCancelled:
		return statusWarn
	}
	return statusInfo
}

// statusLabel renders "RUNNING" as "Running". Statuses the service adds later
// are title-cased the same way.
func statusLabel(status api.JobStatus) string {
	value := strings.TrimSpace(string(status))
	if value == "" {
		return "Unknown"
	}
	return titleCaser.String(strings.ToLower(value))
}

func coloredStatus(status api.JobStatus, colorize bool) string {
	return colorizeText(statusLabel(status), jobStatusKind(status).color(), colorize)
}

func colorizeText(value, color string, colorize bool) string {
	if !colorize || color == "" {
		return value
	}
	return color + value + ansiReset
}

// renderSectionHeader underlines title to its own width.
func renderSectionHeader(title string, colorize bool) []string {
	title = strings.TrimSpace(title)
	return []string{
		colorizeText(title, ansiBlue, colorize),
		colorizeText(strings.Repeat("─", len([]rune(title))), ansiBlue, colorize),
	}
}

// shouldColorize reports whether w is an interactive terminal and NO_COLOR is unset.
func shouldColorize(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
