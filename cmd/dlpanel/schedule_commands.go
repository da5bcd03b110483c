package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dlpanel/internal/api"
	"dlpanel/internal/apiclient"
	"dlpanel/internal/triage"
)

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show subscriptions bucketed by when they are next checked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var subs []api.Subscription
			if err := ctx.withClient(func(client *apiclient.Client) error {
				var fetchErr error
				subs, fetchErr = client.Subscriptions(cmd.Context())
				return fetchErr
			}); err != nil {
				return err
			}
			cacheSubscriptions(cmd, ctx, subs)

			now := time.Now()
			buckets := triage.PartitionWithin(subs, subscriptionNextCheck, now, cfg.SoonWindow())
			if jsonOut {
				return writeJSON(cmd, map[string][]api.Subscription{
					"due":   nonNilSubs(buckets.Due),
					"soon":  nonNilSubs(buckets.Soon),
					"later": nonNilSubs(buckets.Later),
				})
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			printScheduleBucket(out, "Due", buckets.Due, now, colorize)
			printScheduleBucket(out, fmt.Sprintf("Soon (next %dh)", cfg.Schedule.SoonWindowHours), buckets.Soon, now, colorize)
			printScheduleBucket(out, "Later", buckets.Later, now, colorize)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.AddCommand(newScheduleAiringCommand(ctx))
	return cmd
}

func printScheduleBucket(out io.Writer, title string, subs []api.Subscription, now time.Time, colorize bool) {
	for _, line := range renderSectionHeader(fmt.Sprintf("%s: %d", title, len(subs)), colorize) {
		fmt.Fprintln(out, line)
	}
	if len(subs) == 0 {
		fmt.Fprintln(out, "  (none)")
		fmt.Fprintln(out)
		return
	}
	for _, sub := range subs {
		when := "unscheduled"
		if t, ok := triage.ParseTimestamp(sub.NextCheckAt); ok {
			when = fmt.Sprintf("%s (%s)", t.Local().Format("Mon 02 Jan 15:04"), triage.RelativeLabel(t, now))
		}
		fmt.Fprintf(out, "  %-32s %s\n", truncate(sub.Label, 32), when)
	}
	fmt.Fprintln(out)
}

func newScheduleAiringCommand(ctx *commandContext) *cobra.Command {
	var days int
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "airing",
		Short: "Show upcoming broadcasts grouped by day",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = cfg.Schedule.AiringDays
			}
			if !cmd.Flags().Changed("limit") {
				limit = cfg.Schedule.AiringLimit
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				entries, err := client.Airing(cmd.Context(), days, limit)
				if err != nil {
					return err
				}
				groups := triage.GroupByCalendarDay(entries, airingEpoch, time.Local)
				if jsonOut {
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				if len(groups) == 0 {
					fmt.Fprintln(out, "Nothing airing in the selected window")
					return nil
				}
				printAiringGroups(out, groups, time.Now(), shouldColorize(out))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Days ahead to include")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func printAiringGroups(out io.Writer, groups []triage.DayGroup[api.AiringEntry], now time.Time, colorize bool) {
	for i, group := range groups {
		if i > 0 {
			fmt.Fprintln(out)
		}
		for _, line := range renderSectionHeader(group.Date.Format("Monday 02 January"), colorize) {
			fmt.Fprintln(out, line)
		}
		for _, entry := range group.Entries {
			at := time.Unix(entry.AiringAt, 0)
			title := strings.TrimSpace(entry.DisplayTitle())
			if title == "" {
				title = fmt.Sprintf("media %d", entry.Media.ID)
			}
			fmt.Fprintf(out, "  %s  %-36s ep %-4d %s\n",
				at.Local().Format("15:04"), truncate(title, 36), entry.Episode, triage.RelativeLabel(at, now))
		}
	}
}

func airingEpoch(e api.AiringEntry) int64 { return e.AiringAt }

func nonNilSubs(subs []api.Subscription) []api.Subscription {
	if subs == nil {
		return []api.Subscription{}
	}
	return subs
}
