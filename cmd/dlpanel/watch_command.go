package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"dlpanel/internal/apiclient"
	"dlpanel/internal/config"
	"dlpanel/internal/livestate"
	"dlpanel/internal/logging"
	"dlpanel/internal/snapcache"
	"dlpanel/internal/triage"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live view of jobs, subscriptions, and service logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !terminalAttached() {
				return errors.New("watch requires an interactive terminal (TTY); use `dlpanel events` for a plain stream")
			}

			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			session, err := newWatchSession(runCtx, ctx, cfg)
			if err != nil {
				return err
			}
			defer session.close()

			go session.follow(runCtx, cfg)

			model := newWatchModel(runCtx, session.live, session.client, watchOptionsFromConfig(cfg, session.client.BaseURL()))
			program := tea.NewProgram(model, tea.WithAltScreen())
			if _, err := program.Run(); err != nil {
				return err
			}
			return nil
		},
	}
}

type watchSession struct {
	live   *livestate.Reconciler
	client *apiclient.Client
	cache  *snapcache.Store
	logger *slog.Logger
}

// newWatchSession builds the reconciler for the live view. Warnings from the
// client and the reconciler are mirrored into the view's log pane, and the
// snapshot cache both seeds the view and stores every good refresh.
func newWatchSession(runCtx context.Context, ctx *commandContext, cfg *config.Config) (*watchSession, error) {
	var live *livestate.Reconciler
	sink := func(line string) {
		if live != nil {
			live.AppendLog(line)
		}
	}
	logger := logging.TeeLogger(ctx.baseLogger(), logging.NewLineHandler(slog.LevelWarn, sink))

	client, err := ctx.clientWithLogger(logger)
	if err != nil {
		return nil, err
	}

	opts := livestate.Options{
		LogCapacity: cfg.Watch.LogCapacity,
		Logger:      logger,
	}
	store, err := ctx.openSnapshotCache()
	if err != nil {
		logging.WarnWithContext(logger, "snapshot cache unavailable", "snapshot_cache_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "live view starts empty until the first refresh"),
		)
		store = nil
	}
	if store != nil {
		opts.Persister = store
	}

	live = livestate.New(client, opts)
	if store != nil {
		seedFromCache(runCtx, live, store, logger)
	}
	return &watchSession{live: live, client: client, cache: store, logger: logger}, nil
}

// close stops the live view before releasing the cache it persists into.
func (s *watchSession) close() {
	_ = s.live.Close()
	if s.cache != nil {
		_ = s.cache.Close()
	}
}

func (s *watchSession) follow(ctx context.Context, cfg *config.Config) {
	err := s.live.Follow(ctx, s.client, cfg.ReconnectDelay())
	if err != nil && !errors.Is(err, livestate.ErrClosed) && !errors.Is(err, context.Canceled) {
		s.logger.Warn("event stream stopped", logging.Error(err))
	}
}

func seedFromCache(ctx context.Context, live *livestate.Reconciler, store *snapcache.Store, logger *slog.Logger) {
	snap, _, haveJobs, err := store.LoadJobs(ctx)
	if err != nil {
		logger.Debug("cached jobs unreadable", logging.Error(err))
		haveJobs = false
	}
	subs, _, haveSubs, err := store.LoadSubscriptions(ctx)
	if err != nil {
		logger.Debug("cached subscriptions unreadable", logging.Error(err))
		haveSubs = false
	}
	if !haveSubs {
		subs = nil
	}
	if haveJobs {
		live.Seed(&snap, subs)
	} else if haveSubs {
		live.Seed(nil, subs)
	}
}

func watchOptionsFromConfig(cfg *config.Config, service string) watchOptions {
	criterion, err := triage.ParseCriterion(cfg.Watch.Sort)
	if err != nil {
		criterion = triage.ByNextCheck
	}
	return watchOptions{
		Service:         service,
		RequestTimeout:  cfg.RequestTimeout(),
		RefreshInterval: cfg.RefreshInterval(),
		Sort:            criterion,
		SoonWindow:      cfg.SoonWindow(),
	}
}

func terminalAttached() bool {
	in, out := os.Stdin.Fd(), os.Stdout.Fd()
	return (isatty.IsTerminal(in) || isatty.IsCygwinTerminal(in)) &&
		(isatty.IsTerminal(out) || isatty.IsCygwinTerminal(out))
}
