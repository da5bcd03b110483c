// Package api defines the wire-format types exchanged with the download
// service. It is the only place that knows JSON field names; everything else in
// dlpanel works with these structs.
//
// # Key Types
//
// Job: one unit of remote work. Progress fields and timestamps are pointers so
// "unknown" (absent or null on the wire) stays distinct from zero.
//
// JobsSnapshot: the full job collection plus pending/running counters, as
// returned by the snapshot endpoint.
//
// Progress: the sparse patch carried by "progress" notifications. Only non-nil
// fields are applied to a Job.
//
// Subscription/SyncResult/SyncAllResult: recurring watches on a catalogue URL
// and the result of asking the service to check them.
//
// AiringEntry: an upcoming broadcast from the airing schedule.
//
// EventPayload: the JSON body of a push-channel frame.
//
// # Design Notes
//
// Job payloads use the service's snake_case keys; subscription payloads use
// camelCase because they come from the v1 API. Job timestamps are epoch
// seconds, subscription timestamps are RFC3339 strings. Status values are
// normalised on decode so legacy ("SUCCESS") and v1 ("completed") spellings
// map to the same JobStatus.
package api
