package livestate

import (
	"slices"
	"time"

	"dlpanel/internal/api"
)

// DefaultLogCapacity is the number of log lines kept when none is configured.
const DefaultLogCapacity = 400

// View is the merged client-side state. Values returned by Reconciler.View are
// deep copies and safe to keep.
type View struct {
	Jobs          []api.Job
	Pending       int
	Running       int
	Total         int
	Subscriptions []api.Subscription
	Logs          []string
	LogCapacity   int

	JobsRefreshedAt          time.Time
	SubscriptionsRefreshedAt time.Time
	// Stale is set while any collection still holds seeded (cached) data.
	Stale bool

	jobsSeeded bool
	subsSeeded bool
}

// Message is one input to Reduce.
type Message interface {
	isMessage()
}

// Snapshot replaces the job collection wholesale.
type Snapshot struct {
	Jobs api.JobsSnapshot
	At   time.Time
}

// SubscriptionSnapshot replaces the subscription collection wholesale.
type SubscriptionSnapshot struct {
	Subscriptions []api.Subscription
	At            time.Time
}

// Patch merges sparse progress fields into one existing job.
type Patch struct {
	JobID    string
	Progress api.Progress
}

// LogLine appends one line to the log ring.
type LogLine struct {
	Text string
}

// ClearLog empties the log ring.
type ClearLog struct{}

// Seed pre-populates collections that have not been refreshed yet.
type Seed struct {
	Jobs          *api.JobsSnapshot
	Subscriptions []api.Subscription
}

func (Snapshot) isMessage()             {}
func (SubscriptionSnapshot) isMessage() {}
func (Patch) isMessage()                {}
func (LogLine) isMessage()              {}
func (ClearLog) isMessage()             {}
func (Seed) isMessage()                 {}

// Reduce folds msg into v and returns the new view. It never mutates v's
// slices, so earlier views stay valid.
func Reduce(v View, msg Message) View {
	switch m := msg.(type) {
	case Snapshot:
		v.Jobs = api.CloneJobs(m.Jobs.Jobs)
		if v.Jobs == nil {
			v.Jobs = []api.Job{}
		}
		v.Pending = m.Jobs.Pending
		v.Running = m.Jobs.Running
		v.Total = m.Jobs.Total
		v.JobsRefreshedAt = m.At
		v.jobsSeeded = false
	case SubscriptionSnapshot:
		v.Subscriptions = slices.Clone(m.Subscriptions)
		if v.Subscriptions == nil {
			v.Subscriptions = []api.Subscription{}
		}
		v.SubscriptionsRefreshedAt = m.At
		v.subsSeeded = false
	case Patch:
		idx := slices.IndexFunc(v.Jobs, func(j api.Job) bool { return j.ID == m.JobID })
		if idx < 0 {
			return v
		}
		jobs := slices.Clone(v.Jobs)
		job := jobs[idx]
		job.Apply(m.Progress)
		jobs[idx] = job
		v.Jobs = jobs
	case LogLine:
		v.Logs = appendBounded(v.Logs, m.Text, v.capacity())
	case ClearLog:
		v.Logs = nil
	case Seed:
		if m.Jobs != nil && v.JobsRefreshedAt.IsZero() {
			v.Jobs = api.CloneJobs(m.Jobs.Jobs)
			v.Pending = m.Jobs.Pending
			v.Running = m.Jobs.Running
			v.Total = m.Jobs.Total
			v.jobsSeeded = true
		}
		if m.Subscriptions != nil && v.SubscriptionsRefreshedAt.IsZero() {
			v.Subscriptions = slices.Clone(m.Subscriptions)
			v.subsSeeded = true
		}
	}
	v.Stale = v.jobsSeeded || v.subsSeeded
	return v
}

// HasJob reports whether the view holds a job with the given id.
func (v View) HasJob(id string) bool {
	return slices.ContainsFunc(v.Jobs, func(j api.Job) bool { return j.ID == id })
}

func (v View) clone() View {
	out := v
	out.Jobs = api.CloneJobs(v.Jobs)
	out.Subscriptions = slices.Clone(v.Subscriptions)
	out.Logs = slices.Clone(v.Logs)
	return out
}

func (v View) capacity() int {
	if v.LogCapacity <= 0 {
		return DefaultLogCapacity
	}
	return v.LogCapacity
}

// appendBounded returns a new slice holding lines plus line, keeping only the
// newest capacity entries.
func appendBounded(lines []string, line string, capacity int) []string {
	start := 0
	if len(lines)+1 > capacity {
		start = len(lines) + 1 - capacity
	}
	out := make([]string, 0, len(lines)-start+1)
	out = append(out, lines[start:]...)
	return append(out, line)
}
