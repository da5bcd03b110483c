package livestate_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"dlpanel/internal/api"
	"dlpanel/internal/livestate"
)

type fakeSource struct {
	mu        sync.Mutex
	snapshots []api.JobsSnapshot
	subs      []api.Subscription
	err       error
	jobCalls  int
}

func (f *fakeSource) Jobs(context.Context) (api.JobsSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobCalls++
	if f.err != nil {
		return api.JobsSnapshot{}, f.err
	}
	if len(f.snapshots) == 0 {
		return api.JobsSnapshot{}, nil
	}
	snap := f.snapshots[0]
	if len(f.snapshots) > 1 {
		f.snapshots = f.snapshots[1:]
	}
	return snap, nil
}

func (f *fakeSource) Subscriptions(context.Context) ([]api.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.subs, nil
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobCalls
}

func snapshotOf(jobs ...api.Job) api.JobsSnapshot {
	return api.JobsSnapshot{Total: len(jobs), Jobs: jobs}
}

func job(id string, status api.JobStatus) api.Job {
	return api.Job{ID: id, Label: "label " + id, Status: status}
}

func TestRefreshThenPatch(t *testing.T) {
	src := &fakeSource{snapshots: []api.JobsSnapshot{snapshotOf(
		api.Job{ID: "a", Status: api.StatusRunning, ProgressPercent: api.Ptr(10.0), ProgressStage: api.Ptr("hls")},
		job("b", api.StatusPending),
	)}}
	r := livestate.New(src, livestate.Options{})
	defer r.Close()

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !r.ApplyPatch("a", api.Progress{Percent: api.Ptr(50.0)}) {
		t.Fatal("expected patch to apply")
	}

	view := r.View()
	if len(view.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(view.Jobs))
	}
	got := view.Jobs[0]
	if got.ProgressPercent == nil || *got.ProgressPercent != 50 {
		t.Fatalf("percent not patched: %+v", got)
	}
	if got.ProgressStage == nil || *got.ProgressStage != "hls" {
		t.Fatalf("absent field should be preserved, got %+v", got.ProgressStage)
	}
	if view.JobsRefreshedAt.IsZero() {
		t.Fatal("expected refresh timestamp")
	}
}

func TestApplyPatchUnknownJobIsNoop(t *testing.T) {
	src := &fakeSource{snapshots: []api.JobsSnapshot{snapshotOf(job("a", api.StatusRunning))}}
	r := livestate.New(src, livestate.Options{})
	defer r.Close()
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if r.ApplyPatch("ghost", api.Progress{Percent: api.Ptr(99.0)}) {
		t.Fatal("patch for unknown id reported success")
	}
	view := r.View()
	if len(view.Jobs) != 1 || view.Jobs[0].ID != "a" || view.Jobs[0].ProgressPercent != nil {
		t.Fatalf("view changed by unknown patch: %+v", view.Jobs)
	}
}

func TestFailedRefreshKeepsView(t *testing.T) {
	src := &fakeSource{snapshots: []api.JobsSnapshot{snapshotOf(job("a", api.StatusPending))}}
	r := livestate.New(src, livestate.Options{})
	defer r.Close()
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	before := r.View()

	boom := errors.New("connection refused")
	src.setErr(boom)
	err := r.Refresh(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
	after := r.View()
	if len(after.Jobs) != 1 || after.Jobs[0].ID != "a" || !after.JobsRefreshedAt.Equal(before.JobsRefreshedAt) {
		t.Fatalf("view changed after failed refresh: %+v", after)
	}
}

type gatedSource struct {
	requests chan chan api.JobsSnapshot
}

func (g *gatedSource) Jobs(ctx context.Context) (api.JobsSnapshot, error) {
	reply := make(chan api.JobsSnapshot)
	g.requests <- reply
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return api.JobsSnapshot{}, ctx.Err()
	}
}

func (g *gatedSource) Subscriptions(context.Context) ([]api.Subscription, error) {
	return nil, nil
}

func TestLaterCompletionWins(t *testing.T) {
	src := &gatedSource{requests: make(chan chan api.JobsSnapshot)}
	r := livestate.New(src, livestate.Options{})
	defer r.Close()

	first := make(chan error, 1)
	go func() { first <- r.Refresh(context.Background()) }()
	firstReply := <-src.requests

	second := make(chan error, 1)
	go func() { second <- r.Refresh(context.Background()) }()
	secondReply := <-src.requests

	secondReply <- snapshotOf(job("from-second", api.StatusPending))
	if err := <-second; err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	firstReply <- snapshotOf(job("from-first", api.StatusPending))
	if err := <-first; err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	view := r.View()
	if len(view.Jobs) != 1 || view.Jobs[0].ID != "from-first" {
		t.Fatalf("expected the last completed refresh to win, got %+v", view.Jobs)
	}
}

func TestCloseDiscardsInFlightRefresh(t *testing.T) {
	src := &gatedSource{requests: make(chan chan api.JobsSnapshot)}
	r := livestate.New(src, livestate.Options{})

	done := make(chan error, 1)
	go func() { done <- r.Refresh(context.Background()) }()
	reply := <-src.requests

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	reply <- snapshotOf(job("late", api.StatusPending))
	if err := <-done; !errors.Is(err, livestate.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if len(r.View().Jobs) != 0 {
		t.Fatalf("late result applied after close: %+v", r.View().Jobs)
	}
	if _, ok := <-r.Changes(); ok {
		t.Fatal("expected changes channel to be closed")
	}
}

func TestAppendLogKeepsNewestLines(t *testing.T) {
	r := livestate.New(&fakeSource{}, livestate.Options{})
	defer r.Close()

	for i := 1; i <= 401; i++ {
		r.AppendLog(fmt.Sprintf("line %d", i))
	}
	logs := r.View().Logs
	if len(logs) != 400 {
		t.Fatalf("expected 400 lines, got %d", len(logs))
	}
	if logs[0] != "line 2" || logs[399] != "line 401" {
		t.Fatalf("unexpected ring contents: first=%q last=%q", logs[0], logs[399])
	}

	r.ClearLog()
	if len(r.View().Logs) != 0 {
		t.Fatal("expected empty log after clear")
	}
}

func TestSeedIsStaleUntilRefresh(t *testing.T) {
	src := &fakeSource{snapshots: []api.JobsSnapshot{snapshotOf(job("fresh", api.StatusRunning))}}
	r := livestate.New(src, livestate.Options{})
	defer r.Close()

	cached := snapshotOf(job("cached", api.StatusPending))
	r.Seed(&cached, []api.Subscription{{ID: "s1"}})
	view := r.View()
	if !view.Stale || len(view.Jobs) != 1 || view.Jobs[0].ID != "cached" || len(view.Subscriptions) != 1 {
		t.Fatalf("unexpected seeded view: %+v", view)
	}

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	view = r.View()
	if view.Jobs[0].ID != "fresh" {
		t.Fatalf("refresh should replace seeded jobs: %+v", view)
	}
	if !view.Stale {
		t.Fatal("seeded subscriptions are still cached; view should stay stale")
	}
	if err := r.RefreshSubscriptions(context.Background()); err != nil {
		t.Fatalf("RefreshSubscriptions: %v", err)
	}
	if r.View().Stale {
		t.Fatal("view should be fresh once every seeded collection is refreshed")
	}

	r.Seed(&cached, nil)
	if r.View().Jobs[0].ID != "fresh" {
		t.Fatal("seed must not override refreshed data")
	}
}

func TestSubscriptionRefreshClearsSubscriptionOnlySeed(t *testing.T) {
	src := &fakeSource{subs: []api.Subscription{{ID: "live"}}}
	r := livestate.New(src, livestate.Options{})
	defer r.Close()

	r.Seed(nil, []api.Subscription{{ID: "cached"}})
	if !r.View().Stale {
		t.Fatal("seeded subscriptions should mark the view stale")
	}
	if err := r.RefreshSubscriptions(context.Background()); err != nil {
		t.Fatalf("RefreshSubscriptions: %v", err)
	}
	view := r.View()
	if view.Stale || len(view.Subscriptions) != 1 || view.Subscriptions[0].ID != "live" {
		t.Fatalf("unexpected view after subscription refresh: %+v", view)
	}
}

type recordingPersister struct {
	mu   sync.Mutex
	jobs []api.JobsSnapshot
	subs int
	err  error
}

func (p *recordingPersister) SaveJobs(_ context.Context, snap api.JobsSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, snap)
	return p.err
}

func (p *recordingPersister) SaveSubscriptions(context.Context, []api.Subscription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs++
	return p.err
}

func TestPersisterReceivesSuccessfulRefreshes(t *testing.T) {
	src := &fakeSource{snapshots: []api.JobsSnapshot{snapshotOf(job("a", api.StatusPending))}}
	persister := &recordingPersister{err: errors.New("disk full")}
	r := livestate.New(src, livestate.Options{Persister: persister})
	defer r.Close()

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("save failures must not surface: %v", err)
	}
	if err := r.RefreshSubscriptions(context.Background()); err != nil {
		t.Fatalf("RefreshSubscriptions: %v", err)
	}
	src.setErr(errors.New("offline"))
	_ = r.Refresh(context.Background())

	if len(persister.jobs) != 1 || persister.subs != 1 {
		t.Fatalf("expected one save per successful refresh, got jobs=%d subs=%d", len(persister.jobs), persister.subs)
	}
}

type streamSource struct {
	url string
}

func (s streamSource) Events(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func TestWatchAppliesFramesInOrder(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"type":"progress","job_id":"a","progress":{"percent":42,"stage":"mp4"}}`,
		``,
		`data: this is not json`,
		``,
		`data: {"type":"log","level":"info","msg":"downloading a"}`,
		``,
		`event: ping`,
		`data: {}`,
		``,
		`data: {"type":"job","event":"finished","job":{"job_id":"a"}}`,
		``,
		``,
	}, "\n")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, stream)
	}))
	defer server.Close()

	src := &fakeSource{snapshots: []api.JobsSnapshot{
		snapshotOf(job("a", api.StatusRunning)),
		snapshotOf(job("a", api.StatusSuccess)),
	}}
	r := livestate.New(src, livestate.Options{})
	defer r.Close()
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if err := r.Watch(context.Background(), streamSource{url: server.URL}); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	view := r.View()
	if src.calls() != 2 {
		t.Fatalf("expected job frame to trigger one refresh, got %d calls", src.calls())
	}
	if view.Jobs[0].Status != api.StatusSuccess {
		t.Fatalf("expected refreshed status, got %s", view.Jobs[0].Status)
	}
	if len(view.Logs) != 1 || view.Logs[0] != "downloading a" {
		t.Fatalf("unexpected logs: %v", view.Logs)
	}
}

func TestWatchPatchesProgress(t *testing.T) {
	body := "data: {\"type\":\"progress\",\"job_id\":\"a\",\"progress\":{\"percent\":42}}\n\n"
	src := &fakeSource{snapshots: []api.JobsSnapshot{snapshotOf(job("a", api.StatusRunning))}}
	r := livestate.New(src, livestate.Options{})
	defer r.Close()
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	err := r.Watch(context.Background(), readerSource{body: body})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	got := r.View().Jobs[0].ProgressPercent
	if got == nil || *got != 42 {
		t.Fatalf("expected percent 42, got %v", got)
	}
}

type readerSource struct {
	body string
}

func (s readerSource) Events(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.body)), nil
}

type pipeSource struct {
	reader *io.PipeReader
}

func (s pipeSource) Events(context.Context) (io.ReadCloser, error) {
	return s.reader, nil
}

func TestCloseStopsWatch(t *testing.T) {
	r := livestate.New(&fakeSource{}, livestate.Options{})
	pr, pw := io.Pipe()
	defer pw.Close()

	done := make(chan error, 1)
	go func() { done <- r.Watch(context.Background(), pipeSource{reader: pr}) }()

	if _, err := io.WriteString(pw, "data: {\"type\":\"log\",\"msg\":\"hello\"}\n\n"); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	waitFor(t, func() bool { return len(r.View().Logs) == 1 })

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, livestate.ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after Close")
	}
}

func TestWatchReturnsOnContextCancel(t *testing.T) {
	r := livestate.New(&fakeSource{}, livestate.Options{})
	defer r.Close()
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx, pipeSource{reader: pr}) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

type countingEventSource struct {
	mu    sync.Mutex
	opens int
	body  string
}

func (c *countingEventSource) Events(context.Context) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opens++
	return io.NopCloser(strings.NewReader(c.body)), nil
}

func (c *countingEventSource) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

func TestFollowReconnectsAndResyncs(t *testing.T) {
	src := &fakeSource{snapshots: []api.JobsSnapshot{snapshotOf(job("a", api.StatusRunning))}}
	r := livestate.New(src, livestate.Options{})
	defer r.Close()
	events := &countingEventSource{body: "data: {\"type\":\"log\",\"msg\":\"tick\"}\n\n"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Follow(ctx, events, 5*time.Millisecond) }()

	waitFor(t, func() bool { return events.count() >= 3 })
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if src.calls() < 2 {
		t.Fatalf("expected a resync after reconnect, got %d job fetches", src.calls())
	}
}

func TestChangesSignalsMutations(t *testing.T) {
	r := livestate.New(&fakeSource{}, livestate.Options{})
	defer r.Close()

	r.AppendLog("one")
	r.AppendLog("two")
	select {
	case <-r.Changes():
	default:
		t.Fatal("expected a pending change signal")
	}
	select {
	case <-r.Changes():
		t.Fatal("signals should coalesce")
	default:
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
