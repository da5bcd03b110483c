package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dlpanel/internal/api"
	"dlpanel/internal/apiclient"
	"dlpanel/internal/triage"
)

func newSubsCommand(ctx *commandContext) *cobra.Command {
	subsCmd := &cobra.Command{
		Use:     "subs",
		Aliases: []string{"subscriptions"},
		Short:   "Manage show subscriptions",
	}

	subsCmd.AddCommand(newSubsListCommand(ctx))
	subsCmd.AddCommand(newSubsAddCommand(ctx))
	subsCmd.AddCommand(newSubsRemoveCommand(ctx))
	subsCmd.AddCommand(newSubsSyncCommand(ctx))
	subsCmd.AddCommand(newSubsSyncAllCommand(ctx))

	return subsCmd
}

func newSubsListCommand(ctx *commandContext) *cobra.Command {
	var sortBy string
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subscriptions, due ones first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if sortBy == "" {
				sortBy = cfg.Watch.Sort
			}
			criterion, err := triage.ParseCriterion(sortBy)
			if err != nil {
				return err
			}

			var subs []api.Subscription
			if err := ctx.withClient(func(client *apiclient.Client) error {
				var fetchErr error
				subs, fetchErr = client.ListSubscriptions(cmd.Context(), limit)
				return fetchErr
			}); err != nil {
				return err
			}
			cacheSubscriptions(cmd, ctx, subs)

			now := time.Now()
			subs = triage.SortForDisplay(subs, subscriptionNextCheck, subscriptionLabel, criterion, now)
			if jsonOut {
				return writeJSON(cmd, subs)
			}
			out := cmd.OutOrStdout()
			if len(subs) == 0 {
				fmt.Fprintln(out, "No subscriptions")
				return nil
			}
			fmt.Fprint(out, renderTable(subscriptionColumns, buildSubscriptionRows(subs, now, shouldColorize(out))))
			return nil
		},
	}

	cmd.Flags().StringVar(&sortBy, "sort", "", "Secondary order: next_check or label (defaults to watch.sort)")
	cmd.Flags().IntVar(&limit, "limit", apiclient.DefaultSubscriptionLimit, "Maximum subscriptions to fetch")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newSubsAddCommand(ctx *commandContext) *cobra.Command {
	var label string
	var player string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "add <catalogue-url>",
		Short: "Subscribe to a show",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL := strings.TrimSpace(args[0])
			label = strings.TrimSpace(label)
			if baseURL == "" {
				return errors.New("catalogue url is required")
			}
			if label == "" {
				return errors.New("--label is required")
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				sub, err := client.CreateSubscription(cmd.Context(), api.CreateSubscriptionRequest{
					BaseURL: baseURL,
					Label:   label,
					Player:  strings.TrimSpace(player),
				})
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, sub)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Subscribed to %s (%s)\n", sub.Label, sub.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "Display name for the subscription")
	cmd.Flags().StringVar(&player, "player", "", "Preferred player (service default when empty)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newSubsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <subscription-id>...",
		Aliases: []string{"remove"},
		Short:   "Delete subscriptions",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				out := cmd.OutOrStdout()
				var missing int
				for _, id := range args {
					id = strings.TrimSpace(id)
					switch err := client.DeleteSubscription(cmd.Context(), id); {
					case err == nil:
						fmt.Fprintf(out, "Subscription %s removed\n", id)
					case apiclient.IsNotFound(err):
						missing++
						fmt.Fprintf(out, "Subscription %s not found\n", id)
					default:
						return err
					}
				}
				if missing > 0 {
					return fmt.Errorf("%d of %d subscriptions not found", missing, len(args))
				}
				return nil
			})
		},
	}
}

func newSubsSyncCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "sync <subscription-id>",
		Short: "Check one subscription for new episodes and queue them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *apiclient.Client) error {
				result, err := client.SyncSubscription(cmd.Context(), id, !dryRun)
				if err != nil {
					if apiclient.IsNotFound(err) {
						return fmt.Errorf("subscription %s not found", id)
					}
					return err
				}
				if jsonOut {
					return writeJSON(cmd, result)
				}
				printSyncResult(cmd.OutOrStdout(), result, dryRun)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be queued without queueing")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newSubsSyncAllCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var dueOnly bool
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "sync-all",
		Short: "Sync every subscription",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				result, err := client.SyncAll(cmd.Context(), api.SyncAllOptions{
					NoEnqueue: dryRun,
					DueOnly:   dueOnly,
					Limit:     limit,
				})
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				for _, r := range result.Results {
					printSyncResult(out, r, dryRun)
				}
				for _, e := range result.Errors {
					fmt.Fprintf(out, "%s: sync failed: %s\n", e.ID, e.Error)
				}
				fmt.Fprintf(out, "Synced %d subscriptions, %d errors\n", len(result.Results), len(result.Errors))
				if len(result.Errors) > 0 {
					return fmt.Errorf("%d subscriptions failed to sync", len(result.Errors))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be queued without queueing")
	cmd.Flags().BoolVar(&dueOnly, "due-only", false, "Only sync subscriptions whose next check has passed")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum subscriptions to sync (service default when 0)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func printSyncResult(out io.Writer, result api.SyncResult, dryRun bool) {
	label := result.Subscription.Label
	if label == "" {
		label = result.Subscription.ID
	}
	verb := "queued"
	if dryRun {
		verb = "would queue"
	}
	fmt.Fprintf(out, "%s: %s episodes %s", label, verb, formatEpisodes(result.EnqueuedEpisodes))
	if msg := strings.TrimSpace(result.Message); msg != "" {
		fmt.Fprintf(out, " (%s)", msg)
	}
	fmt.Fprintln(out)
}

func buildSubscriptionRows(subs []api.Subscription, now time.Time, colorize bool) [][]string {
	rows := make([][]string, 0, len(subs))
	for _, sub := range subs {
		next := formatTimestamp(sub.NextCheckAt, now)
		if triage.IsDue(sub.NextCheckAt, now) {
			next = colorizeText("due "+next, ansiYellow, colorize)
		}
		player := sub.Player
		if player == "" {
			player = emptyCell
		}
		rows = append(rows, []string{
			sub.ID,
			truncate(sub.Label, 40),
			player,
			fmt.Sprintf("%d/%d/%d", sub.LastDownloadedEpisode, sub.LastScheduledEpisode, sub.LastAvailableEpisode),
			next,
			formatTimestamp(sub.LastCheckedAt, now),
		})
	}
	return rows
}

func subscriptionNextCheck(s api.Subscription) string { return s.NextCheckAt }

func subscriptionLabel(s api.Subscription) string { return s.Label }
