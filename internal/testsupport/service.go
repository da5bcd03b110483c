package testsupport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"dlpanel/internal/api"
)

// Call records one request received by a FakeService.
type Call struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// FakeService is an in-memory stand-in for the download service. It serves
// the job, subscription and airing endpoints from mutable state and records
// every request.
type FakeService struct {
	Server *httptest.Server

	mu            sync.Mutex
	jobs          []api.Job
	subscriptions []api.Subscription
	airing        []api.AiringEntry
	seasonInfo    api.SeasonInfo
	stream        string
	calls         []Call
	nextID        int
}

// NewFakeService starts a fake service and registers cleanup.
func NewFakeService(t testing.TB) *FakeService {
	t.Helper()
	f := &FakeService{}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the fake's base URL.
func (f *FakeService) URL() string {
	return f.Server.URL
}

// SetJobs replaces the job list.
func (f *FakeService) SetJobs(jobs ...api.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = slices.Clone(jobs)
}

// SetSubscriptions replaces the subscription list.
func (f *FakeService) SetSubscriptions(subs ...api.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptions = slices.Clone(subs)
}

// SetAiring replaces the airing calendar.
func (f *FakeService) SetAiring(entries ...api.AiringEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.airing = slices.Clone(entries)
}

// SetSeasonInfo sets the season_info response.
func (f *FakeService) SetSeasonInfo(info api.SeasonInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seasonInfo = info
}

// SetStream sets the raw body served on the events endpoint.
func (f *FakeService) SetStream(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stream = body
}

// Calls returns every request received so far.
func (f *FakeService) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// LastCall returns the most recent request whose path has the given prefix.
func (f *FakeService) LastCall(prefix string) (Call, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if strings.HasPrefix(f.calls[i].Path, prefix) {
			return f.calls[i], true
		}
	}
	return Call{}, false
}

func (f *FakeService) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && path == "/api/jobs/list":
		f.writeJSON(w, http.StatusOK, f.snapshotLocked())
	case r.Method == http.MethodPost && strings.HasPrefix(path, "/api/jobs/") && strings.HasSuffix(path, "/cancel"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/api/jobs/"), "/cancel")
		f.mutateJob(w, id, func(j *api.Job) (any, int) {
			if !j.Status.CanCancel() {
				return map[string]string{"detail": "job not cancellable"}, http.StatusConflict
			}
			j.Status = api.StatusCancelled
			return map[string]bool{"ok": true}, http.StatusOK
		})
	case r.Method == http.MethodPost && strings.HasPrefix(path, "/api/jobs/") && strings.HasSuffix(path, "/retry"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/api/jobs/"), "/retry")
		idx := slices.IndexFunc(f.jobs, func(j api.Job) bool { return j.ID == id })
		if idx < 0 {
			f.writeJSON(w, http.StatusNotFound, map[string]string{"detail": "job not found"})
			return
		}
		f.nextID++
		newID := fmt.Sprintf("%s-retry-%d", id, f.nextID)
		f.jobs = append(f.jobs, api.Job{ID: newID, Label: f.jobs[idx].Label, Status: api.StatusPending})
		f.writeJSON(w, http.StatusOK, api.RetryResponse{OK: true, JobID: newID})
	case r.Method == http.MethodPost && path == "/api/jobs/clear_finished":
		before := len(f.jobs)
		f.jobs = slices.DeleteFunc(f.jobs, func(j api.Job) bool { return j.Status.IsTerminal() })
		f.writeJSON(w, http.StatusOK, api.ClearResponse{Cleared: before - len(f.jobs)})
	case r.Method == http.MethodPost && path == "/api/clear_pending":
		before := len(f.jobs)
		f.jobs = slices.DeleteFunc(f.jobs, func(j api.Job) bool { return j.Status == api.StatusPending })
		f.writeJSON(w, http.StatusOK, api.ClearResponse{Cleared: before - len(f.jobs)})
	case r.Method == http.MethodPost && path == "/api/cancel_all":
		for i := range f.jobs {
			if f.jobs[i].Status.CanCancel() {
				f.jobs[i].Status = api.StatusCancelled
			}
		}
		f.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	case r.Method == http.MethodPost && path == "/api/enqueue":
		var req api.EnqueueRequest
		if err := json.Unmarshal(body, &req); err != nil || req.BaseURL == "" {
			f.writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "base_url required"})
			return
		}
		f.nextID++
		f.jobs = append(f.jobs, api.Job{ID: fmt.Sprintf("job-%d", f.nextID), Label: req.Selection, Status: api.StatusPending})
		f.writeJSON(w, http.StatusOK, api.EnqueueResponse{Enqueued: 1})
	case r.Method == http.MethodPost && path == "/api/search":
		f.writeJSON(w, http.StatusOK, api.SearchResponse{BaseURL: "https://catalogue.example/catalogue/show"})
	case r.Method == http.MethodPost && path == "/api/seasons":
		f.writeJSON(w, http.StatusOK, api.SeasonsResponse{Seasons: []int{1, 2}})
	case r.Method == http.MethodPost && path == "/api/season_info":
		f.writeJSON(w, http.StatusOK, f.seasonInfo)
	case r.Method == http.MethodGet && path == "/api/defaults":
		f.writeJSON(w, http.StatusOK, api.Defaults{DownloadRoot: "/videos", MaxConcurrentDownloads: 3})
	case r.Method == http.MethodGet && path == "/api/v1/subscriptions":
		subs := f.subscriptions
		if subs == nil {
			subs = []api.Subscription{}
		}
		f.writeJSON(w, http.StatusOK, subs)
	case r.Method == http.MethodPost && path == "/api/v1/subscriptions/":
		var req api.CreateSubscriptionRequest
		if err := json.Unmarshal(body, &req); err != nil || req.BaseURL == "" {
			f.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "baseUrl required"})
			return
		}
		f.nextID++
		sub := api.Subscription{ID: fmt.Sprintf("sub-%d", f.nextID), BaseURL: req.BaseURL, Label: req.Label, Player: req.Player}
		f.subscriptions = append(f.subscriptions, sub)
		f.writeJSON(w, http.StatusCreated, sub)
	case r.Method == http.MethodDelete && strings.HasPrefix(path, "/api/v1/subscriptions/"):
		id := strings.TrimPrefix(path, "/api/v1/subscriptions/")
		before := len(f.subscriptions)
		f.subscriptions = slices.DeleteFunc(f.subscriptions, func(s api.Subscription) bool { return s.ID == id })
		if len(f.subscriptions) == before {
			f.writeJSON(w, http.StatusNotFound, map[string]string{"error": "subscription not found"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPost && path == "/api/v1/subscriptions/sync-all":
		result := api.SyncAllResult{Results: []api.SyncResult{}, Errors: []api.SyncError{}}
		for _, sub := range f.subscriptions {
			result.Results = append(result.Results, api.SyncResult{Subscription: sub, Message: "up to date"})
		}
		f.writeJSON(w, http.StatusOK, result)
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/sync"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/api/v1/subscriptions/"), "/sync")
		idx := slices.IndexFunc(f.subscriptions, func(s api.Subscription) bool { return s.ID == id })
		if idx < 0 {
			f.writeJSON(w, http.StatusNotFound, map[string]string{"error": "subscription not found"})
			return
		}
		f.writeJSON(w, http.StatusOK, api.SyncResult{
			Subscription:     f.subscriptions[idx],
			EnqueuedEpisodes: []int{f.subscriptions[idx].LastDownloadedEpisode + 1},
			Message:          "enqueued 1 episode",
		})
	case r.Method == http.MethodGet && path == "/api/v1/anilist/airing":
		entries := f.airing
		if entries == nil {
			entries = []api.AiringEntry{}
		}
		f.writeJSON(w, http.StatusOK, entries)
	case r.Method == http.MethodGet && path == "/api/events":
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, f.stream)
	default:
		f.writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
	}
}

func (f *FakeService) snapshotLocked() api.JobsSnapshot {
	snap := api.JobsSnapshot{Jobs: slices.Clone(f.jobs), Total: len(f.jobs)}
	if snap.Jobs == nil {
		snap.Jobs = []api.Job{}
	}
	for _, j := range f.jobs {
		switch j.Status {
		case api.StatusPending:
			snap.Pending++
		case api.StatusRunning:
			snap.Running++
		}
	}
	return snap
}

func (f *FakeService) mutateJob(w http.ResponseWriter, id string, fn func(*api.Job) (any, int)) {
	idx := slices.IndexFunc(f.jobs, func(j api.Job) bool { return j.ID == id })
	if idx < 0 {
		f.writeJSON(w, http.StatusNotFound, map[string]string{"detail": "job not found"})
		return
	}
	body, status := fn(&f.jobs[idx])
	f.writeJSON(w, status, body)
}

func (f *FakeService) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
