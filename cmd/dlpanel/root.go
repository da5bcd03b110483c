package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var apiFlag string
	var configFlag string

	ctx := newCommandContext(&apiFlag, &configFlag)

	rootCmd := &cobra.Command{
		Use:           "dlpanel",
		Short:         "Control panel for the episode download service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&apiFlag, "api", "", "Download service base URL (overrides api.base_url)")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(
		newJobsCommand(ctx),
		newSubsCommand(ctx),
		newScheduleCommand(ctx),
		newSelectionCommand(),
		newSearchCommand(ctx),
		newSeasonsCommand(ctx),
		newEventsCommand(ctx),
		newWatchCommand(ctx),
		newConfigCommand(ctx),
	)

	return rootCmd
}
