package main

import (
	"errors"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dlpanel/internal/api"
	"dlpanel/internal/logging"
)

func buildJobRows(jobs []api.Job, now time.Time, colorize bool) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		stage := formatStage(job)
		if job.Status == api.StatusFailed && job.Error != nil && *job.Error != "" {
			stage = truncate(*job.Error, 48)
		}
		rows = append(rows, []string{
			job.ID,
			truncate(job.Label, 48),
			coloredStatus(job.Status, colorize),
			formatProgress(job),
			truncate(stage, 40),
			formatEpochAgo(job.CreatedAt, now),
		})
	}
	return rows
}

// loadCachedJobs reads the last jobs snapshot written by an online command.
func loadCachedJobs(cmd *cobra.Command, ctx *commandContext) (api.JobsSnapshot, time.Time, error) {
	store, err := ctx.openSnapshotCache()
	if err != nil {
		return api.JobsSnapshot{}, time.Time{}, err
	}
	if store == nil {
		return api.JobsSnapshot{}, time.Time{}, errors.New("snapshot cache is disabled (cache.enabled = false)")
	}
	defer store.Close()
	snap, savedAt, ok, err := store.LoadJobs(cmd.Context())
	if err != nil {
		return api.JobsSnapshot{}, time.Time{}, err
	}
	if !ok {
		return api.JobsSnapshot{}, time.Time{}, errors.New("no cached jobs snapshot yet; run `dlpanel jobs list` while the service is reachable")
	}
	return snap, savedAt, nil
}

// cacheJobs stores snap for later offline use. Failures only reach the log.
func cacheJobs(cmd *cobra.Command, ctx *commandContext, snap api.JobsSnapshot) {
	store, err := ctx.openSnapshotCache()
	if err == nil && store != nil {
		err = store.SaveJobs(cmd.Context(), snap)
		_ = store.Close()
	}
	if err != nil {
		logging.WarnWithContext(ctx.baseLogger(), "jobs snapshot not cached", "snapshot_cache_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "offline view stays at the previous snapshot"),
		)
	}
}

func cacheSubscriptions(cmd *cobra.Command, ctx *commandContext, subs []api.Subscription) {
	store, err := ctx.openSnapshotCache()
	if err == nil && store != nil {
		err = store.SaveSubscriptions(cmd.Context(), subs)
		_ = store.Close()
	}
	if err != nil {
		logging.WarnWithContext(ctx.baseLogger(), "subscriptions not cached", "snapshot_cache_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "offline view stays at the previous snapshot"),
		)
	}
}

func formatCachedAt(savedAt, now time.Time) string {
	if savedAt.IsZero() {
		return "at an unknown time"
	}
	return humanize.RelTime(savedAt, now, "ago", "from now")
}
