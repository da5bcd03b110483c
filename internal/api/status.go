package api

import (
	"fmt"
	"strings"
)

// JobStatus represents the lifecycle of a job.
type JobStatus string

const (
	StatusPending   JobStatus = "PENDING"
	StatusRunning   JobStatus = "RUNNING"
	StatusSuccess   JobStatus = "SUCCESS"
	StatusFailed    JobStatus = "FAILED"
	StatusCancelled JobStatus = "CANCELLED"
)

var allStatuses = []JobStatus{
	StatusPending,
	StatusRunning,
	StatusSuccess,
	StatusFailed,
	StatusCancelled,
}

var allowedTransitions = map[JobStatus]map[JobStatus]struct{}{
	StatusPending: {
		StatusRunning:   {},
		StatusCancelled: {},
	},
	StatusRunning: {
		StatusSuccess:   {},
		StatusFailed:    {},
		StatusCancelled: {},
	},
	StatusSuccess:   {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// statusAliases maps the v1 service's lowercase states onto JobStatus.
var statusAliases = map[string]JobStatus{
	"pending":   StatusPending,
	"queued":    StatusPending,
	"running":   StatusRunning,
	"muxing":    StatusRunning,
	"success":   StatusSuccess,
	"completed": StatusSuccess,
	"failed":    StatusFailed,
	"cancelled": StatusCancelled,
	"canceled":  StatusCancelled,
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []JobStatus {
	out := make([]JobStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseJobStatus accepts both legacy and v1 spellings, case-insensitively.
func ParseJobStatus(value string) (JobStatus, error) {
	if status, ok := statusAliases[strings.ToLower(strings.TrimSpace(value))]; ok {
		return status, nil
	}
	return "", fmt.Errorf("unknown job status %q", value)
}

// UnmarshalText normalises known spellings and keeps unknown ones verbatim.
func (s *JobStatus) UnmarshalText(text []byte) error {
	if parsed, err := ParseJobStatus(string(text)); err == nil {
		*s = parsed
		return nil
	}
	*s = JobStatus(strings.TrimSpace(string(text)))
	return nil
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}

// CanCancel reports whether a cancel request makes sense for s.
func (s JobStatus) CanCancel() bool {
	return s == StatusPending || s == StatusRunning
}

// CanRetry reports whether s may be retried. A retry always creates a new job.
func (s JobStatus) CanRetry() bool {
	return s == StatusFailed || s == StatusCancelled
}

// CanTransition reports whether from -> to is a legal status change. Staying in
// the same status is always allowed.
func CanTransition(from, to JobStatus) bool {
	if from == to {
		return from.Valid()
	}
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}
