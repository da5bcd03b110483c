package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"dlpanel/internal/api"
)

const emptyCell = "-"

// formatProgress renders percent, transferred bytes, speed, and ETA for a job,
// leaving out whatever the service has not reported.
func formatProgress(job api.Job) string {
	var parts []string
	if job.ProgressPercent != nil {
		parts = append(parts, fmt.Sprintf("%.1f%%", *job.ProgressPercent))
	}
	if job.ProgressDownloaded != nil {
		done := humanize.IBytes(uint64(max(*job.ProgressDownloaded, 0)))
		if job.ProgressTotal != nil && *job.ProgressTotal > 0 {
			done += "/" + humanize.IBytes(uint64(*job.ProgressTotal))
		}
		parts = append(parts, done)
	}
	if job.ProgressSpeedBPS != nil && *job.ProgressSpeedBPS > 0 {
		parts = append(parts, humanize.IBytes(uint64(*job.ProgressSpeedBPS))+"/s")
	}
	if job.ProgressETASeconds != nil && *job.ProgressETASeconds >= 0 {
		parts = append(parts, "eta "+formatETA(*job.ProgressETASeconds))
	}
	if len(parts) == 0 {
		return emptyCell
	}
	return strings.Join(parts, " ")
}

// formatStage returns the stage and message, whichever are present.
func formatStage(job api.Job) string {
	var parts []string
	if job.ProgressStage != nil && strings.TrimSpace(*job.ProgressStage) != "" {
		parts = append(parts, strings.TrimSpace(*job.ProgressStage))
	}
	if job.ProgressMessage != nil && strings.TrimSpace(*job.ProgressMessage) != "" {
		parts = append(parts, strings.TrimSpace(*job.ProgressMessage))
	}
	if len(parts) == 0 {
		return emptyCell
	}
	return strings.Join(parts, ": ")
}

func formatETA(seconds float64) string {
	d := time.Duration(math.Round(seconds)) * time.Second
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// formatEpochAgo renders an epoch-seconds timestamp relative to now.
func formatEpochAgo(value *float64, now time.Time) string {
	t, ok := api.EpochTime(value)
	if !ok {
		return emptyCell
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func formatTimestamp(value string, now time.Time) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return emptyCell
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func formatEpisodes(episodes []int) string {
	if len(episodes) == 0 {
		return "none"
	}
	parts := make([]string, len(episodes))
	for i, ep := range episodes {
		parts[i] = fmt.Sprintf("%d", ep)
	}
	return strings.Join(parts, ", ")
}

func truncate(value string, width int) string {
	runes := []rune(value)
	if width <= 0 || len(runes) <= width {
		return value
	}
	if width <= 1 {
		return string(runes[:width])
	}
	return string(runes[:width-1]) + "…"
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
