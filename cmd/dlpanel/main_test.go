package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dlpanel/internal/api"
	"dlpanel/internal/testsupport"
)

type cliTestEnv struct {
	service    *testsupport.FakeService
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	service := testsupport.NewFakeService(t)
	cfg := testsupport.NewConfig(t, testsupport.WithAPIURL(service.URL()))
	return &cliTestEnv{
		service:    service,
		configPath: testsupport.WriteConfig(t, cfg),
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, args, e.configPath)
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func sampleJobs() []api.Job {
	return []api.Job{
		{ID: "job-a", Label: "Alpha S1E1", Status: api.StatusRunning, CreatedAt: api.Ptr(1700000000.0), ProgressPercent: api.Ptr(42.5), ProgressStage: api.Ptr("hls")},
		{ID: "job-b", Label: "Beta S1E2", Status: api.StatusFailed, CreatedAt: api.Ptr(1700000100.0), Error: api.Ptr("player offline")},
		{ID: "job-c", Label: "Gamma S2E1", Status: api.StatusPending, CreatedAt: api.Ptr(1700000200.0)},
	}
}

func TestCLIJobsListAndOfflineView(t *testing.T) {
	env := setupCLITestEnv(t)
	env.service.SetJobs(sampleJobs()...)

	out, _, err := env.run(t, "jobs", "list")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	for _, want := range []string{"Alpha S1E1", "Beta S1E2", "Running", "42.5%", "player offline", "1 pending, 1 running, 3 total"} {
		if !strings.Contains(out, want) {
			t.Fatalf("jobs list missing %q:\n%s", want, out)
		}
	}

	// The service goes away; the cached snapshot remains readable.
	env.service.Server.Close()
	out, _, err = env.run(t, "jobs", "list", "--offline")
	if err != nil {
		t.Fatalf("jobs list --offline: %v", err)
	}
	if !strings.Contains(out, "Offline view cached") || !strings.Contains(out, "Gamma S2E1") {
		t.Fatalf("unexpected offline output:\n%s", out)
	}

	if _, _, err := env.run(t, "jobs", "list"); err == nil || !strings.Contains(err.Error(), "unreachable") {
		t.Fatalf("expected unreachable error, got %v", err)
	}
}

func TestCLIJobsListOfflineWithoutCache(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := env.run(t, "jobs", "list", "--offline"); err == nil || !strings.Contains(err.Error(), "no cached jobs snapshot") {
		t.Fatalf("expected missing cache error, got %v", err)
	}
}

func TestCLIJobsListOfflineCacheDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCache(false))
	_, _, err := runCLI(t, []string{"jobs", "list", "--offline"}, testsupport.WriteConfig(t, cfg))
	if err == nil || !strings.Contains(err.Error(), "cache.enabled = false") {
		t.Fatalf("expected disabled cache error, got %v", err)
	}
}

func TestCLIJobsListOfflineReadsLockedCache(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	// Another dlpanel process owns the cache; this one opens it read-only.
	store := testsupport.MustOpenStore(t, cfg)
	snap := api.JobsSnapshot{Pending: 1, Total: 1, Jobs: []api.Job{{ID: "job-z", Label: "Zeta S1E9", Status: api.StatusPending}}}
	if err := store.SaveJobs(context.Background(), snap); err != nil {
		t.Fatalf("SaveJobs: %v", err)
	}

	out, _, err := runCLI(t, []string{"jobs", "list", "--offline"}, testsupport.WriteConfig(t, cfg))
	if err != nil {
		t.Fatalf("jobs list --offline: %v", err)
	}
	if !strings.Contains(out, "Zeta S1E9") || !strings.Contains(out, "1 pending, 0 running, 1 total") {
		t.Fatalf("unexpected offline output:\n%s", out)
	}
}

func TestCLIJobsListJSONFiltersStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	env.service.SetJobs(sampleJobs()...)

	out, _, err := env.run(t, "jobs", "list", "--status", "failed", "--json")
	if err != nil {
		t.Fatalf("jobs list --json: %v", err)
	}
	var snap api.JobsSnapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if len(snap.Jobs) != 1 || snap.Jobs[0].ID != "job-b" {
		t.Fatalf("expected only the failed job, got %+v", snap.Jobs)
	}
	if snap.Total != 3 {
		t.Fatalf("expected service totals preserved, got %d", snap.Total)
	}

	if _, _, err := env.run(t, "jobs", "list", "--status", "bogus"); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestCLIJobsCancelAndRetry(t *testing.T) {
	env := setupCLITestEnv(t)
	env.service.SetJobs(sampleJobs()...)

	out, _, err := env.run(t, "jobs", "cancel", "job-a")
	if err != nil {
		t.Fatalf("jobs cancel: %v", err)
	}
	if !strings.Contains(out, "Job job-a cancelled") {
		t.Fatalf("unexpected cancel output: %q", out)
	}

	out, _, err = env.run(t, "jobs", "cancel", "missing")
	if err == nil {
		t.Fatal("expected error for unknown job")
	}
	if !strings.Contains(out, "Job missing not found") {
		t.Fatalf("unexpected cancel output: %q", out)
	}

	out, _, err = env.run(t, "jobs", "retry", "job-b")
	if err != nil {
		t.Fatalf("jobs retry: %v", err)
	}
	if !strings.Contains(out, "Job job-b retried as job-b-retry-") {
		t.Fatalf("unexpected retry output: %q", out)
	}
}

func TestCLIJobsBulkCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	env.service.SetJobs(sampleJobs()...)

	out, _, err := env.run(t, "jobs", "clear-finished")
	if err != nil {
		t.Fatalf("clear-finished: %v", err)
	}
	if !strings.Contains(out, "Cleared 1 finished jobs") {
		t.Fatalf("unexpected clear-finished output: %q", out)
	}

	out, _, err = env.run(t, "jobs", "clear-pending")
	if err != nil {
		t.Fatalf("clear-pending: %v", err)
	}
	if !strings.Contains(out, "Cleared 1 pending jobs") {
		t.Fatalf("unexpected clear-pending output: %q", out)
	}

	if _, _, err := env.run(t, "jobs", "cancel-all"); err != nil {
		t.Fatalf("cancel-all: %v", err)
	}
	if call, ok := env.service.LastCall("/api/cancel_all"); !ok || call.Method != "POST" {
		t.Fatalf("cancel_all not called: %+v", env.service.Calls())
	}
}

func TestCLIJobsEnqueueBuildsSelection(t *testing.T) {
	env := setupCLITestEnv(t)
	env.service.SetSeasonInfo(api.SeasonInfo{Season: 1, MaxEpisodes: 8, Available: []int{1, 2, 3, 5, 6, 7, 8}})

	out, _, err := env.run(t, "jobs", "enqueue", "https://catalogue.example/show", "--season", "1", "--from", "6", "--to", "2")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !strings.Contains(out, "selection 2-3,5-6") {
		t.Fatalf("unexpected enqueue output: %q", out)
	}
	call, ok := env.service.LastCall("/api/enqueue")
	if !ok {
		t.Fatal("enqueue endpoint not called")
	}
	var req api.EnqueueRequest
	if err := json.Unmarshal([]byte(call.Body), &req); err != nil {
		t.Fatalf("decode enqueue body: %v", err)
	}
	if req.Selection != "2-3,5-6" || req.Lang != "vostfr" || req.Season != 1 {
		t.Fatalf("unexpected enqueue request: %+v", req)
	}

	// Selecting every available episode collapses to ALL.
	if _, _, err := env.run(t, "jobs", "enqueue", "https://catalogue.example/show", "--from", "1", "--to", "8"); err != nil {
		t.Fatalf("enqueue full range: %v", err)
	}
	call, _ = env.service.LastCall("/api/enqueue")
	if !strings.Contains(call.Body, `"selection":"ALL"`) {
		t.Fatalf("expected ALL selection, got %s", call.Body)
	}

	if _, _, err := env.run(t, "jobs", "enqueue", "https://catalogue.example/show", "--selection", "1-2", "--all"); err == nil {
		t.Fatal("expected conflicting selection flags to be rejected")
	}
}

func TestCLISubscriptionLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "subs", "add", "https://catalogue.example/show", "--label", "Show")
	if err != nil {
		t.Fatalf("subs add: %v", err)
	}
	if !strings.Contains(out, "Subscribed to Show (sub-1)") {
		t.Fatalf("unexpected add output: %q", out)
	}

	out, _, err = env.run(t, "subs", "list")
	if err != nil {
		t.Fatalf("subs list: %v", err)
	}
	if !strings.Contains(out, "Show") || !strings.Contains(out, "sub-1") {
		t.Fatalf("unexpected list output:\n%s", out)
	}

	out, _, err = env.run(t, "subs", "sync", "sub-1")
	if err != nil {
		t.Fatalf("subs sync: %v", err)
	}
	if !strings.Contains(out, "Show: queued episodes 1") {
		t.Fatalf("unexpected sync output: %q", out)
	}

	if _, _, err := env.run(t, "subs", "sync", "sub-1", "--dry-run"); err != nil {
		t.Fatalf("subs sync --dry-run: %v", err)
	}
	if call, _ := env.service.LastCall("/api/v1/subscriptions/sub-1/sync"); call.Query != "enqueue=false" {
		t.Fatalf("expected enqueue=false query, got %q", call.Query)
	}

	out, _, err = env.run(t, "subs", "sync-all", "--due-only", "--limit", "5")
	if err != nil {
		t.Fatalf("subs sync-all: %v", err)
	}
	if !strings.Contains(out, "Synced 1 subscriptions, 0 errors") {
		t.Fatalf("unexpected sync-all output: %q", out)
	}
	if call, _ := env.service.LastCall("/api/v1/subscriptions/sync-all"); !strings.Contains(call.Query, "dueOnly=true") || !strings.Contains(call.Query, "limit=5") {
		t.Fatalf("unexpected sync-all query %q", call.Query)
	}

	if _, _, err := env.run(t, "subs", "rm", "sub-1"); err != nil {
		t.Fatalf("subs rm: %v", err)
	}
	out, _, err = env.run(t, "subs", "rm", "sub-1")
	if err == nil || !strings.Contains(out, "Subscription sub-1 not found") {
		t.Fatalf("expected not found on second removal, got %v %q", err, out)
	}
}

func TestCLISubsListOrdersDueFirst(t *testing.T) {
	env := setupCLITestEnv(t)
	now := time.Now().UTC()
	env.service.SetSubscriptions(
		api.Subscription{ID: "a", Label: "Aardvark", NextCheckAt: now.Add(48 * time.Hour).Format(time.RFC3339)},
		api.Subscription{ID: "z", Label: "Zebra", NextCheckAt: now.Add(-time.Hour).Format(time.RFC3339)},
	)

	out, _, err := env.run(t, "subs", "list", "--sort", "label", "--json")
	if err != nil {
		t.Fatalf("subs list: %v", err)
	}
	var subs []api.Subscription
	if err := json.Unmarshal([]byte(out), &subs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(subs) != 2 || subs[0].ID != "z" {
		t.Fatalf("expected due subscription first, got %+v", subs)
	}
}

func TestCLIScheduleBuckets(t *testing.T) {
	env := setupCLITestEnv(t)
	now := time.Now().UTC()
	env.service.SetSubscriptions(
		api.Subscription{ID: "due", Label: "Overdue Show", NextCheckAt: now.Add(-2 * time.Hour).Format(time.RFC3339)},
		api.Subscription{ID: "soon", Label: "Tonight Show", NextCheckAt: now.Add(3 * time.Hour).Format(time.RFC3339)},
		api.Subscription{ID: "later", Label: "Next Week Show", NextCheckAt: now.Add(100 * time.Hour).Format(time.RFC3339)},
		api.Subscription{ID: "never", Label: "Unscheduled Show"},
	)

	out, _, err := env.run(t, "schedule")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	for _, want := range []string{"Due: 1", "Soon (next 24h): 1", "Later: 2", "Overdue Show", "unscheduled"} {
		if !strings.Contains(out, want) {
			t.Fatalf("schedule output missing %q:\n%s", want, out)
		}
	}

	out, _, err = env.run(t, "schedule", "--json")
	if err != nil {
		t.Fatalf("schedule --json: %v", err)
	}
	var buckets map[string][]api.Subscription
	if err := json.Unmarshal([]byte(out), &buckets); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(buckets["due"]) != 1 || len(buckets["soon"]) != 1 || len(buckets["later"]) != 2 {
		t.Fatalf("unexpected buckets: %+v", buckets)
	}
	if buckets["later"][1].ID != "never" {
		t.Fatalf("unscheduled subscription should sort last, got %+v", buckets["later"])
	}
}

func TestCLIScheduleAiring(t *testing.T) {
	env := setupCLITestEnv(t)
	base := time.Now().Add(time.Hour).Unix()
	env.service.SetAiring(
		api.AiringEntry{ID: 1, AiringAt: base + 2*86400, Episode: 3, Media: api.AiringMedia{ID: 10, Title: api.AiringTitle{Romaji: "Later Show"}}},
		api.AiringEntry{ID: 2, AiringAt: base, Episode: 5, Media: api.AiringMedia{ID: 11, Title: api.AiringTitle{English: "Early Show", Romaji: "Hayai"}}},
	)

	out, _, err := env.run(t, "schedule", "airing", "--days", "3")
	if err != nil {
		t.Fatalf("schedule airing: %v", err)
	}
	early := strings.Index(out, "Early Show")
	later := strings.Index(out, "Later Show")
	if early < 0 || later < 0 || early > later {
		t.Fatalf("expected entries grouped by day in order:\n%s", out)
	}
	if call, _ := env.service.LastCall("/api/v1/anilist/airing"); !strings.Contains(call.Query, "days=3") || !strings.Contains(call.Query, "limit=50") {
		t.Fatalf("unexpected airing query %q", call.Query)
	}
}

func TestCLICatalogueCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	env.service.SetSeasonInfo(api.SeasonInfo{Season: 2, MaxEpisodes: 12, Available: []int{1, 2, 3}})

	out, _, err := env.run(t, "search", "some", "show")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if strings.TrimSpace(out) != "https://catalogue.example/catalogue/show" {
		t.Fatalf("unexpected search output %q", out)
	}
	if call, _ := env.service.LastCall("/api/search"); !strings.Contains(call.Body, `"query":"some show"`) {
		t.Fatalf("unexpected search body %s", call.Body)
	}

	out, _, err = env.run(t, "seasons", "https://catalogue.example/show")
	if err != nil {
		t.Fatalf("seasons: %v", err)
	}
	if !strings.Contains(out, "Seasons: 1, 2") {
		t.Fatalf("unexpected seasons output %q", out)
	}

	out, _, err = env.run(t, "seasons", "https://catalogue.example/show", "--season", "2", "--lang", "vf")
	if err != nil {
		t.Fatalf("seasons --season: %v", err)
	}
	if !strings.Contains(out, "Season 2: 12 episodes") || !strings.Contains(out, "Available: 1, 2, 3") {
		t.Fatalf("unexpected season info output %q", out)
	}
	if call, _ := env.service.LastCall("/api/season_info"); !strings.Contains(call.Body, `"lang":"vf"`) {
		t.Fatalf("unexpected season_info body %s", call.Body)
	}
}

func TestCLIEventsPrintsNotifications(t *testing.T) {
	env := setupCLITestEnv(t)
	env.service.SetStream(strings.Join([]string{
		"event: hello",
		"data: {}",
		"",
		`data: {"type":"progress","job_id":"job-a","progress":{"percent":50,"stage":"hls"}}`,
		"",
		`data: {"type":"log","level":"warning","msg":"player slow"}`,
		"",
		"data: not json",
		"",
		"",
	}, "\n"))

	out, errOut, err := env.run(t, "events")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	for _, want := range []string{"progress job-a 50.0% hls", "log      warning player slow", "Event stream closed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("events output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(errOut, "dropped frame") {
		t.Fatalf("expected malformed frame to be reported, got %q", errOut)
	}
}

func TestCLIAPIFlagOverridesConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	other := testsupport.NewFakeService(t)
	other.SetJobs(api.Job{ID: "x", Label: "From Flag", Status: api.StatusPending})

	out, _, err := env.run(t, "--api", other.URL()+"/", "jobs", "list")
	if err != nil {
		t.Fatalf("jobs list --api: %v", err)
	}
	if !strings.Contains(out, "From Flag") {
		t.Fatalf("expected jobs from the --api service:\n%s", out)
	}
	if len(env.service.Calls()) != 0 {
		t.Fatalf("configured service should not be contacted, got %+v", env.service.Calls())
	}

	if _, _, err := env.run(t, "--api", "ftp://nope", "jobs", "list"); err == nil {
		t.Fatal("expected invalid --api to be rejected")
	}
}

func TestCLIReportsServiceErrors(t *testing.T) {
	env := setupCLITestEnv(t)
	srv := httptest.NewServer(nil)
	srv.Close()

	_, _, err := runCLI(t, []string{"--api", srv.URL, "subs", "list"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "unreachable") {
		t.Fatalf("expected unreachable error, got %v", err)
	}

	_, _, err = env.run(t, "subs", "sync", "nope")
	if err == nil || !strings.Contains(err.Error(), "subscription nope not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}
