package main

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dlpanel/internal/api"
	"dlpanel/internal/apiclient"
	"dlpanel/internal/events"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print push-channel events as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return ctx.withClient(func(client *apiclient.Client) error {
				body, err := client.Events(runCtx)
				if err != nil {
					return err
				}
				defer body.Close()
				go func() {
					<-runCtx.Done()
					_ = body.Close()
				}()

				out := cmd.OutOrStdout()
				var streamErr error
				if raw {
					streamErr = printRawFrames(out, body)
				} else {
					streamErr = events.Pump(runCtx, body, func(n events.Notification) {
						printNotification(out, n)
					}, func(frame events.Frame, err error) {
						fmt.Fprintf(cmd.ErrOrStderr(), "dropped frame %q: %v\n", frame.Event, err)
					})
				}
				if runCtx.Err() != nil {
					return nil
				}
				if streamErr != nil && !errors.Is(streamErr, io.EOF) {
					return streamErr
				}
				fmt.Fprintln(out, "Event stream closed by the service")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print frames undecoded")
	return cmd
}

func printRawFrames(out io.Writer, body io.Reader) error {
	reader := events.NewReader(body)
	for {
		frame, err := reader.Next()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, events.ErrFrameTooLarge):
			fmt.Fprintf(out, "event=%s skipped: %v\n", frame.Event, err)
			continue
		case err != nil:
			return err
		}
		fmt.Fprintf(out, "event=%s data=%s\n", frame.Event, frame.Data)
	}
}

func printNotification(out io.Writer, n events.Notification) {
	switch n.Kind {
	case events.KindJob:
		fmt.Fprintf(out, "job      %s %s\n", n.Topic, n.JobID)
	case events.KindSubscription:
		fmt.Fprintf(out, "sub      %s\n", n.Topic)
	case events.KindProgress:
		fmt.Fprintf(out, "progress %s %s\n", n.JobID, describeProgress(n))
	case events.KindLog:
		level := n.Level
		if level == "" {
			level = "info"
		}
		fmt.Fprintf(out, "log      %s %s\n", level, n.Message)
	}
}

// describeProgress renders a sparse progress patch with the same formatting
// as the jobs table.
func describeProgress(n events.Notification) string {
	var job api.Job
	job.Apply(n.Progress)
	summary := formatProgress(job)
	if stage := formatStage(job); stage != emptyCell {
		summary += " " + stage
	}
	return summary
}
