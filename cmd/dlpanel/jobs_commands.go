package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dlpanel/internal/api"
	"dlpanel/internal/apiclient"
	"dlpanel/internal/selection"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"job"},
		Short:   "Inspect and manage download jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsCancelCommand(ctx))
	jobsCmd.AddCommand(newJobsRetryCommand(ctx))
	jobsCmd.AddCommand(newJobsEnqueueCommand(ctx))
	jobsCmd.AddCommand(newJobsClearFinishedCommand(ctx))
	jobsCmd.AddCommand(newJobsCancelAllCommand(ctx))
	jobsCmd.AddCommand(newJobsClearPendingCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string
	var offline bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs with their progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFilters(statusFilters)
			if err != nil {
				return err
			}

			var snap api.JobsSnapshot
			var cachedAt time.Time
			if offline {
				snap, cachedAt, err = loadCachedJobs(cmd, ctx)
				if err != nil {
					return err
				}
			} else {
				if err := ctx.withClient(func(client *apiclient.Client) error {
					var fetchErr error
					snap, fetchErr = client.Jobs(cmd.Context())
					return fetchErr
				}); err != nil {
					return err
				}
				cacheJobs(cmd, ctx, snap)
			}

			jobs := api.SortJobsByCreated(snap.Jobs)
			if len(statuses) > 0 {
				jobs = api.FilterJobs(jobs, statuses...)
			}
			if jsonOut {
				return writeJSON(cmd, api.JobsSnapshot{Pending: snap.Pending, Running: snap.Running, Total: snap.Total, Jobs: nonNilJobs(jobs)})
			}

			out := cmd.OutOrStdout()
			if offline {
				fmt.Fprintf(out, "Offline view cached %s\n", formatCachedAt(cachedAt, time.Now()))
			}
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			colorize := shouldColorize(out)
			fmt.Fprint(out, renderTable(jobColumns, buildJobRows(jobs, time.Now(), colorize)))
			fmt.Fprintf(out, "%d pending, %d running, %d total\n", snap.Pending, snap.Running, snap.Total)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&statusFilters, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().BoolVar(&offline, "offline", false, "Show the last cached snapshot without contacting the service")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>...",
		Short: "Cancel pending or running jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				out := cmd.OutOrStdout()
				var failed int
				for _, id := range args {
					id = strings.TrimSpace(id)
					switch err := client.CancelJob(cmd.Context(), id); {
					case err == nil:
						fmt.Fprintf(out, "Job %s cancelled\n", id)
					case apiclient.IsNotFound(err):
						failed++
						fmt.Fprintf(out, "Job %s not found\n", id)
					case apiclient.IsAPIUnavailable(err):
						return err
					default:
						failed++
						fmt.Fprintf(out, "Job %s not cancelled: %v\n", id, err)
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d jobs not cancelled", failed, len(args))
				}
				return nil
			})
		},
	}
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Retry a failed or cancelled job as a new job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *apiclient.Client) error {
				newID, err := client.RetryJob(cmd.Context(), id)
				if err != nil {
					if apiclient.IsNotFound(err) {
						return fmt.Errorf("job %s not found", id)
					}
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.RetryResponse{OK: true, JobID: newID})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s retried as %s\n", id, newID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newJobsEnqueueCommand(ctx *commandContext) *cobra.Command {
	var (
		season    int
		lang      string
		sel       string
		from      int
		to        int
		all       bool
		destRoot  string
		checkInfo bool
	)

	cmd := &cobra.Command{
		Use:   "enqueue <catalogue-url>",
		Short: "Queue episodes of one season for download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			baseURL := strings.TrimSpace(args[0])
			if baseURL == "" {
				return errors.New("catalogue url is required")
			}
			if season < 1 {
				return errors.New("--season must be at least 1")
			}
			if sel != "" && (cmd.Flags().Changed("from") || cmd.Flags().Changed("to") || all) {
				return errors.New("use either --selection or --from/--to/--all, not both")
			}
			if lang == "" {
				lang = cfg.Enqueue.Lang
			}
			if destRoot == "" {
				destRoot = cfg.Enqueue.DestRoot
			}

			return ctx.withClient(func(client *apiclient.Client) error {
				out := cmd.OutOrStdout()
				selectionValue := strings.TrimSpace(sel)
				if selectionValue == "" {
					value, err := buildEnqueueSelection(cmd, client, baseURL, lang, season, from, to, all, checkInfo)
					if err != nil {
						return err
					}
					selectionValue = value
				} else if !selection.IsCanonical(selectionValue) {
					fmt.Fprintf(out, "Note: selection %q is not in canonical form; sending it unchanged\n", selectionValue)
				}

				resp, err := client.Enqueue(cmd.Context(), api.EnqueueRequest{
					BaseURL:   baseURL,
					Lang:      lang,
					Season:    season,
					Selection: selectionValue,
					DestRoot:  destRoot,
				})
				if err != nil {
					return err
				}
				if resp.Error != "" {
					return fmt.Errorf("enqueue: %s", resp.Error)
				}
				fmt.Fprintf(out, "Enqueued %d jobs (season %d, selection %s)\n", resp.Enqueued, season, selectionValue)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&season, "season", 1, "Season number")
	cmd.Flags().StringVar(&lang, "lang", "", "Language variant (defaults to enqueue.lang)")
	cmd.Flags().StringVar(&sel, "selection", "", "Raw selection string, e.g. 1-3,5 or ALL")
	cmd.Flags().IntVar(&from, "from", 0, "First episode of a range")
	cmd.Flags().IntVar(&to, "to", 0, "Last episode of a range")
	cmd.Flags().BoolVar(&all, "all", false, "Select every available episode")
	cmd.Flags().StringVar(&destRoot, "dest", "", "Destination root on the service host (defaults to enqueue.dest_root)")
	cmd.Flags().BoolVar(&checkInfo, "check-availability", true, "Restrict ranges to episodes the service reports as available")
	return cmd
}

// buildEnqueueSelection turns --from/--to/--all into a canonical selection.
// When availability checking is on, ranges are narrowed to the episodes the
// service reports and a full selection collapses to ALL.
func buildEnqueueSelection(cmd *cobra.Command, client *apiclient.Client, baseURL, lang string, season, from, to int, all, checkInfo bool) (string, error) {
	flags := cmd.Flags()
	if all || (!flags.Changed("from") && !flags.Changed("to")) {
		return selection.All, nil
	}
	if !flags.Changed("to") {
		to = from
	}
	if !flags.Changed("from") {
		from = to
	}
	if !checkInfo {
		return selection.Simple(false, from, to), nil
	}

	info, err := client.SeasonInfo(cmd.Context(), baseURL, lang, season)
	if err != nil {
		return "", fmt.Errorf("season info: %w", err)
	}
	if len(info.Available) == 0 {
		return selection.Simple(false, from, to), nil
	}
	episodes := selection.BuildRange(from, to, info.Available)
	if len(episodes) == 0 {
		return "", fmt.Errorf("no available episodes between %d and %d (available: %s)", min(from, to), max(from, to), formatEpisodes(info.Available))
	}
	return selection.Encode(episodes, &selection.Availability{Max: info.MaxEpisodes, Episodes: info.Available}), nil
}

func newJobsClearFinishedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-finished",
		Short: "Remove finished, failed, and cancelled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				cleared, err := client.ClearFinished(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d finished jobs\n", cleared)
				return nil
			})
		},
	}
}

func newJobsCancelAllCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-all",
		Short: "Cancel every pending and running job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				if err := client.CancelAll(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cancellation requested for all active jobs")
				return nil
			})
		},
	}
}

func newJobsClearPendingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-pending",
		Short: "Drop jobs that have not started yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				cleared, err := client.ClearPending(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d pending jobs\n", cleared)
				return nil
			})
		},
	}
}

func parseStatusFilters(values []string) ([]api.JobStatus, error) {
	statuses := make([]api.JobStatus, 0, len(values))
	for _, value := range values {
		for part := range strings.SplitSeq(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, err := api.ParseJobStatus(part)
			if err != nil {
				return nil, err
			}
			statuses = append(statuses, status)
		}
	}
	return statuses, nil
}

func nonNilJobs(jobs []api.Job) []api.Job {
	if jobs == nil {
		return []api.Job{}
	}
	return jobs
}
