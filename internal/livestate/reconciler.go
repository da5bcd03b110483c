package livestate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"dlpanel/internal/api"
	"dlpanel/internal/events"
	"dlpanel/internal/logging"
)

// ErrClosed is returned by operations on a Reconciler after Close. Refresh
// results that arrive after Close are discarded with this error.
var ErrClosed = errors.New("live view closed")

// Source fetches full snapshots from the service.
type Source interface {
	Jobs(ctx context.Context) (api.JobsSnapshot, error)
	Subscriptions(ctx context.Context) ([]api.Subscription, error)
}

// EventSource opens the push channel.
type EventSource interface {
	Events(ctx context.Context) (io.ReadCloser, error)
}

// Persister stores the last good snapshots. Failures are logged, never
// surfaced.
type Persister interface {
	SaveJobs(ctx context.Context, snap api.JobsSnapshot) error
	SaveSubscriptions(ctx context.Context, subs []api.Subscription) error
}

// Options configures a Reconciler.
type Options struct {
	LogCapacity int
	Logger      *slog.Logger
	Persister   Persister
	Now         func() time.Time
}

// Reconciler owns the live view of jobs and subscriptions. Full snapshots
// replace a collection; progress events patch single jobs in place. All state
// changes go through Reduce under one mutex, while network fetches happen
// outside it, so the refresh that completes last wins.
type Reconciler struct {
	source    Source
	persister Persister
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	view     View
	closed   bool
	changes  chan struct{}
	watchers map[*watcher]struct{}
}

type watcher struct {
	stop func()
}

// New constructs a Reconciler. The view starts empty until Seed or Refresh.
func New(source Source, opts Options) *Reconciler {
	capacity := opts.LogCapacity
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		source:    source,
		persister: opts.Persister,
		logger:    logging.NewComponentLogger(opts.Logger, "livestate"),
		now:       now,
		view:      View{LogCapacity: capacity},
		changes:   make(chan struct{}, 1),
		watchers:  make(map[*watcher]struct{}),
	}
}

// View returns a deep copy of the current state.
func (r *Reconciler) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view.clone()
}

// Changes delivers a coalesced signal after every state change. The channel is
// closed by Close.
func (r *Reconciler) Changes() <-chan struct{} {
	return r.changes
}

// Seed pre-populates the view from cached data. Collections that were already
// refreshed are left alone.
func (r *Reconciler) Seed(jobs *api.JobsSnapshot, subs []api.Subscription) {
	r.dispatch(Seed{Jobs: jobs, Subscriptions: subs})
}

// Refresh fetches a job snapshot and replaces the job collection with it. On
// error the view is unchanged and the error is returned.
func (r *Reconciler) Refresh(ctx context.Context) error {
	if r.isClosed() {
		return ErrClosed
	}
	snap, err := r.source.Jobs(ctx)
	if err != nil {
		r.logger.Warn("jobs refresh failed; keeping previous view",
			logging.String(logging.FieldEventType, "jobs_refresh_failed"),
			logging.Error(err),
		)
		return fmt.Errorf("refresh jobs: %w", err)
	}
	if !r.dispatch(Snapshot{Jobs: snap, At: r.now()}) {
		return ErrClosed
	}
	r.logger.Debug("jobs refreshed", logging.Int("jobs", len(snap.Jobs)))
	if r.persister != nil {
		if err := r.persister.SaveJobs(ctx, snap); err != nil {
			logging.WarnWithContext(r.logger, "jobs snapshot not cached", "snapshot_cache_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "next start shows an older offline view"),
			)
		}
	}
	return nil
}

// RefreshSubscriptions is Refresh for the subscription collection.
func (r *Reconciler) RefreshSubscriptions(ctx context.Context) error {
	if r.isClosed() {
		return ErrClosed
	}
	subs, err := r.source.Subscriptions(ctx)
	if err != nil {
		r.logger.Warn("subscriptions refresh failed; keeping previous view",
			logging.String(logging.FieldEventType, "subscriptions_refresh_failed"),
			logging.Error(err),
		)
		return fmt.Errorf("refresh subscriptions: %w", err)
	}
	if !r.dispatch(SubscriptionSnapshot{Subscriptions: subs, At: r.now()}) {
		return ErrClosed
	}
	if r.persister != nil {
		if err := r.persister.SaveSubscriptions(ctx, subs); err != nil {
			logging.WarnWithContext(r.logger, "subscriptions not cached", "snapshot_cache_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "next start shows an older offline view"),
			)
		}
	}
	return nil
}

// ApplyPatch merges p into the job with the given id and reports whether the
// job existed. Unknown ids are ignored; the job appears on the next refresh.
func (r *Reconciler) ApplyPatch(id string, p api.Progress) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || !r.view.HasJob(id) {
		return false
	}
	r.applyLocked(Patch{JobID: id, Progress: p})
	return true
}

// AppendLog adds one line to the bounded log.
func (r *Reconciler) AppendLog(line string) {
	r.dispatch(LogLine{Text: line})
}

// ClearLog empties the log.
func (r *Reconciler) ClearLog() {
	r.dispatch(ClearLog{})
}

// Handle applies one push notification: lifecycle events trigger a full
// refresh of their collection, progress events patch, log events append.
func (r *Reconciler) Handle(ctx context.Context, n events.Notification) error {
	switch n.Kind {
	case events.KindJob:
		return r.Refresh(ctx)
	case events.KindSubscription:
		return r.RefreshSubscriptions(ctx)
	case events.KindProgress:
		if !r.ApplyPatch(n.JobID, n.Progress) {
			r.logger.Debug("progress for unknown job ignored", logging.JobID(n.JobID))
		}
	case events.KindLog:
		r.AppendLog(n.Message)
	}
	return nil
}

// Watch opens the push channel and applies frames in arrival order until the
// stream ends, ctx is cancelled, or Close is called. Malformed frames are
// dropped. It returns nil at end of stream and ErrClosed after Close.
func (r *Reconciler) Watch(ctx context.Context, src EventSource) error {
	if r.isClosed() {
		return ErrClosed
	}
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	body, err := src.Events(watchCtx)
	if err != nil {
		return fmt.Errorf("open event stream: %w", err)
	}
	var closeOnce sync.Once
	closeBody := func() { closeOnce.Do(func() { _ = body.Close() }) }
	defer closeBody()

	w := &watcher{stop: func() {
		cancel()
		closeBody()
	}}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.watchers[w] = struct{}{}
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.watchers, w)
		r.mu.Unlock()
	}()

	// A blocked read only returns once the body is closed.
	go func() {
		<-watchCtx.Done()
		closeBody()
	}()

	r.logger.Debug("event stream connected")
	err = events.Pump(watchCtx, body, func(n events.Notification) {
		if err := r.Handle(watchCtx, n); err != nil && !errors.Is(err, ErrClosed) && watchCtx.Err() == nil {
			r.logger.Warn("event handling failed", logging.String(logging.FieldEventType, n.Kind.String()), logging.Error(err))
		}
	}, func(frame events.Frame, err error) {
		r.logger.Debug("dropped event frame", logging.String("event", frame.Event), logging.Error(err))
	})

	switch {
	case r.isClosed():
		return ErrClosed
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return err
	}
}

// Follow keeps the push channel open, reconnecting after delay whenever it
// drops. Events missed during a gap are recovered by refreshing both
// collections after each reconnect. Follow returns when ctx ends or the view
// is closed.
func (r *Reconciler) Follow(ctx context.Context, src EventSource, delay time.Duration) error {
	if delay <= 0 {
		delay = time.Second
	}
	first := true
	for {
		if !first {
			if err := r.Refresh(ctx); err != nil && !errors.Is(err, ErrClosed) {
				r.logger.Debug("resync after reconnect failed", logging.Error(err))
			}
			if err := r.RefreshSubscriptions(ctx); err != nil && !errors.Is(err, ErrClosed) {
				r.logger.Debug("subscription resync after reconnect failed", logging.Error(err))
			}
		}
		first = false

		err := r.Watch(ctx, src)
		if errors.Is(err, ErrClosed) {
			return ErrClosed
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			r.logger.Info("event stream lost; reconnecting",
				logging.Error(err),
				logging.Duration("delay", delay),
			)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Close tears the view down: open event streams are closed and refreshes
// still in flight are discarded when they return.
func (r *Reconciler) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	stops := make([]func(), 0, len(r.watchers))
	for w := range r.watchers {
		stops = append(stops, w.stop)
	}
	close(r.changes)
	r.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	return nil
}

func (r *Reconciler) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// dispatch applies msg unless the view is closed.
func (r *Reconciler) dispatch(msg Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.applyLocked(msg)
	return true
}

func (r *Reconciler) applyLocked(msg Message) {
	r.view = Reduce(r.view, msg)
	select {
	case r.changes <- struct{}{}:
	default:
	}
}
