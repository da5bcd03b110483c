package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dlpanel/internal/selection"
)

func newSelectionCommand() *cobra.Command {
	selCmd := &cobra.Command{
		Use:         "selection",
		Short:       "Build and decode episode selection strings",
		Annotations: map[string]string{skipConfigAnnotation: "true"},
	}

	selCmd.AddCommand(newSelectionEncodeCommand())
	selCmd.AddCommand(newSelectionRangeCommand())
	selCmd.AddCommand(newSelectionSimpleCommand())
	selCmd.AddCommand(newSelectionParseCommand())

	return selCmd
}

func newSelectionEncodeCommand() *cobra.Command {
	var maxEpisode int
	var available string

	cmd := &cobra.Command{
		Use:   "encode <episode>...",
		Short: "Compress episode numbers into a selection (1 2 3 5 -> 1-3,5)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			episodes, err := parseEpisodeList(strings.Join(args, ","))
			if err != nil {
				return err
			}
			avail, err := availabilityFlags(maxEpisode, available)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), selection.Encode(episodes, avail))
			return nil
		},
	}

	cmd.Flags().IntVar(&maxEpisode, "max", 0, "Episode count of the season")
	cmd.Flags().StringVar(&available, "available", "", "Available episodes, comma separated")
	return cmd
}

func newSelectionRangeCommand() *cobra.Command {
	var available string
	var maxEpisode int

	cmd := &cobra.Command{
		Use:   "range <from> <to>",
		Short: "Select the available episodes between two bounds",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("invalid from %q", args[0])
			}
			to, err := strconv.Atoi(strings.TrimSpace(args[1]))
			if err != nil {
				return fmt.Errorf("invalid to %q", args[1])
			}
			avail, err := availabilityFlags(maxEpisode, available)
			if err != nil {
				return err
			}
			if avail == nil || len(avail.Episodes) == 0 {
				return errors.New("--available is required")
			}
			episodes := selection.BuildRange(from, to, avail.Episodes)
			out := cmd.OutOrStdout()
			if len(episodes) == 0 {
				fmt.Fprintln(out, "No available episodes in range")
				return nil
			}
			fmt.Fprintf(out, "Episodes:  %s\n", formatEpisodes(episodes))
			fmt.Fprintf(out, "Selection: %s\n", selection.Encode(episodes, avail))
			return nil
		},
	}

	cmd.Flags().StringVar(&available, "available", "", "Available episodes, comma separated")
	cmd.Flags().IntVar(&maxEpisode, "max", 0, "Episode count of the season")
	return cmd
}

func newSelectionSimpleCommand() *cobra.Command {
	var all bool
	var from int
	var to int

	cmd := &cobra.Command{
		Use:   "simple",
		Short: "Render an all or from/to selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("to") {
				to = from
			}
			fmt.Fprintln(cmd.OutOrStdout(), selection.Simple(all, from, to))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Select every episode")
	cmd.Flags().IntVar(&from, "from", 1, "First episode")
	cmd.Flags().IntVar(&to, "to", 1, "Last episode (defaults to --from)")
	return cmd
}

func newSelectionParseCommand() *cobra.Command {
	var maxEpisode int

	cmd := &cobra.Command{
		Use:   "parse <selection>",
		Short: "Expand a selection string into episode numbers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := selection.Parse(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if spec.All && maxEpisode <= 0 {
				fmt.Fprintln(out, "All available episodes")
				return nil
			}
			fmt.Fprintln(out, formatEpisodes(spec.Expand(maxEpisode)))
			return nil
		},
	}

	cmd.Flags().IntVar(&maxEpisode, "max", 0, "Episode count used to expand ALL and cap lists")
	return cmd
}

// parseEpisodeList accepts episode numbers separated by commas or spaces.
func parseEpisodeList(value string) ([]int, error) {
	fields := strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]int, 0, len(fields))
	for _, field := range fields {
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid episode %q", field)
		}
		out = append(out, n)
	}
	return out, nil
}

func availabilityFlags(maxEpisode int, available string) (*selection.Availability, error) {
	if maxEpisode <= 0 && strings.TrimSpace(available) == "" {
		return nil, nil
	}
	episodes, err := parseEpisodeList(available)
	if err != nil {
		return nil, fmt.Errorf("--available: %w", err)
	}
	if maxEpisode <= 0 {
		for _, n := range episodes {
			maxEpisode = max(maxEpisode, n)
		}
	}
	return &selection.Availability{Max: maxEpisode, Episodes: episodes}, nil
}
