package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dlpanel/internal/api"
	"dlpanel/internal/apiclient"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "search <title>",
		Short: "Resolve a show title to its catalogue URL",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return errors.New("title is required")
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				baseURL, err := client.Search(cmd.Context(), query)
				if err != nil {
					if apiclient.IsNotFound(err) {
						return fmt.Errorf("no catalogue entry found for %q", query)
					}
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), baseURL)
				return nil
			})
		},
	}
}

func newSeasonsCommand(ctx *commandContext) *cobra.Command {
	var lang string
	var season int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "seasons <catalogue-url>",
		Short: "List seasons, or the episodes of one season with --season",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if lang == "" {
				lang = cfg.Enqueue.Lang
			}
			baseURL := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *apiclient.Client) error {
				out := cmd.OutOrStdout()
				if season > 0 {
					info, err := client.SeasonInfo(cmd.Context(), baseURL, lang, season)
					if err != nil {
						return err
					}
					if jsonOut {
						return writeJSON(cmd, info)
					}
					printSeasonInfo(cmd, info)
					return nil
				}

				resp, err := client.Seasons(cmd.Context(), baseURL, lang)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}
				if len(resp.Seasons) == 0 {
					fmt.Fprintf(out, "No seasons found for %s (%s)\n", baseURL, lang)
					return nil
				}
				fmt.Fprintf(out, "Seasons: %s\n", formatEpisodes(resp.Seasons))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&lang, "lang", "", "Language variant (defaults to enqueue.lang)")
	cmd.Flags().IntVar(&season, "season", 0, "Show episode availability for this season")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func printSeasonInfo(cmd *cobra.Command, info api.SeasonInfo) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Season %d: %d episodes\n", info.Season, info.MaxEpisodes)
	if len(info.Available) > 0 {
		fmt.Fprintf(out, "Available: %s\n", formatEpisodes(info.Available))
	}
}
