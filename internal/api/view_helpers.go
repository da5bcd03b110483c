package api

import (
	"math"
	"sort"
	"time"
)

// EpochTime converts an optional epoch-seconds value into a time.
func EpochTime(value *float64) (time.Time, bool) {
	if value == nil || math.IsNaN(*value) || math.IsInf(*value, 0) {
		return time.Time{}, false
	}
	sec, frac := math.Modf(*value)
	return time.Unix(int64(sec), int64(frac*1e9)), true
}

// SortJobsByCreated orders jobs oldest first, matching the service's listing.
// Jobs without a creation time sort last; ties keep their input order.
func SortJobsByCreated(jobs []Job) []Job {
	if len(jobs) == 0 {
		return nil
	}
	sorted := make([]Job, len(jobs))
	copy(sorted, jobs)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, okI := EpochTime(sorted[i].CreatedAt)
		tj, okJ := EpochTime(sorted[j].CreatedAt)
		switch {
		case okI && okJ:
			return ti.Before(tj)
		default:
			return okI && !okJ
		}
	})
	return sorted
}

// CountByStatus tallies jobs per status.
func CountByStatus(jobs []Job) map[JobStatus]int {
	counts := make(map[JobStatus]int, len(allStatuses))
	for _, job := range jobs {
		counts[job.Status]++
	}
	return counts
}

// FilterJobs returns jobs whose status is in statuses. An empty filter keeps
// everything.
func FilterJobs(jobs []Job, statuses ...JobStatus) []Job {
	if len(statuses) == 0 {
		return jobs
	}
	want := make(map[JobStatus]struct{}, len(statuses))
	for _, s := range statuses {
		want[s] = struct{}{}
	}
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if _, ok := want[job.Status]; ok {
			out = append(out, job)
		}
	}
	return out
}

// FindJob returns the job with the given id.
func FindJob(jobs []Job, id string) (Job, bool) {
	for _, job := range jobs {
		if job.ID == id {
			return job, true
		}
	}
	return Job{}, false
}
