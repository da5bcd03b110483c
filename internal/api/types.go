package api

import "encoding/json"

// Job describes a unit of remote work.
type Job struct {
	ID                 string    `json:"job_id"`
	Label              string    `json:"label"`
	Status             JobStatus `json:"status"`
	ResultPath         *string   `json:"result_path,omitempty"`
	Error              *string   `json:"error,omitempty"`
	CreatedAt          *float64  `json:"created_at,omitempty"`
	StartedAt          *float64  `json:"started_at,omitempty"`
	FinishedAt         *float64  `json:"finished_at,omitempty"`
	ProgressPercent    *float64  `json:"progress_percent,omitempty"`
	ProgressDownloaded *float64  `json:"progress_downloaded,omitempty"`
	ProgressTotal      *float64  `json:"progress_total,omitempty"`
	ProgressSpeedBPS   *float64  `json:"progress_speed_bps,omitempty"`
	ProgressETASeconds *float64  `json:"progress_eta_seconds,omitempty"`
	ProgressStage      *string   `json:"progress_stage,omitempty"`
	ProgressMessage    *string   `json:"progress_message,omitempty"`
}

// Progress is a sparse progress update. Nil fields mean "no change".
type Progress struct {
	Percent    *float64 `json:"percent,omitempty"`
	Downloaded *float64 `json:"downloaded,omitempty"`
	Total      *float64 `json:"total,omitempty"`
	SpeedBPS   *float64 `json:"speed_bps,omitempty"`
	ETASeconds *float64 `json:"eta_seconds,omitempty"`
	Stage      *string  `json:"stage,omitempty"`
	Message    *string  `json:"message,omitempty"`
}

// JobsSnapshot is the full job collection returned by the snapshot endpoint.
type JobsSnapshot struct {
	Pending int   `json:"pending"`
	Running int   `json:"running"`
	Total   int   `json:"total"`
	Jobs    []Job `json:"jobs"`
}

// Subscription is a recurring watch on a catalogue URL.
type Subscription struct {
	ID                    string `json:"id"`
	BaseURL               string `json:"baseUrl"`
	Label                 string `json:"label"`
	Player                string `json:"player"`
	LastScheduledEpisode  int    `json:"lastScheduledEpisode"`
	LastDownloadedEpisode int    `json:"lastDownloadedEpisode"`
	LastAvailableEpisode  int    `json:"lastAvailableEpisode"`
	NextCheckAt           string `json:"nextCheckAt"`
	LastCheckedAt         string `json:"lastCheckedAt"`
	CreatedAt             string `json:"createdAt"`
	UpdatedAt             string `json:"updatedAt"`
}

// CreateSubscriptionRequest is the body for creating a subscription.
type CreateSubscriptionRequest struct {
	BaseURL string `json:"baseUrl"`
	Label   string `json:"label"`
	Player  string `json:"player,omitempty"`
}

// SyncResult reports what a subscription sync found and enqueued.
type SyncResult struct {
	Subscription        Subscription `json:"subscription"`
	SelectedPlayer      string       `json:"selectedPlayer"`
	MaxAvailableEpisode int          `json:"maxAvailableEpisode"`
	EnqueuedEpisodes    []int        `json:"enqueuedEpisodes"`
	EnqueuedJobIDs      []string     `json:"enqueuedJobIDs"`
	Message             string       `json:"message"`
}

// SyncError is a per-subscription failure from sync-all.
type SyncError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// SyncAllResult is the sync-all response.
type SyncAllResult struct {
	Results []SyncResult `json:"results"`
	Errors  []SyncError  `json:"errors"`
}

// SyncAllOptions narrows a sync-all request.
type SyncAllOptions struct {
	NoEnqueue bool
	DueOnly   bool
	Limit     int
}

// AiringTitle carries the localized titles of a show.
type AiringTitle struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
	Native  string `json:"native"`
}

// AiringMedia identifies the show an airing entry belongs to.
type AiringMedia struct {
	ID    int         `json:"id"`
	Title AiringTitle `json:"title"`
}

// AiringEntry is one upcoming broadcast.
type AiringEntry struct {
	ID       int         `json:"id"`
	AiringAt int64       `json:"airingAt"`
	Episode  int         `json:"episode"`
	Media    AiringMedia `json:"media"`
}

// DisplayTitle prefers the English title, then romaji, then native.
func (e AiringEntry) DisplayTitle() string {
	switch {
	case e.Media.Title.English != "":
		return e.Media.Title.English
	case e.Media.Title.Romaji != "":
		return e.Media.Title.Romaji
	default:
		return e.Media.Title.Native
	}
}

// EnqueueRequest asks the service to queue episodes of one season.
type EnqueueRequest struct {
	BaseURL   string `json:"base_url"`
	Lang      string `json:"lang"`
	Season    int    `json:"season"`
	Selection string `json:"selection"`
	DestRoot  string `json:"dest_root,omitempty"`
}

// EnqueueResponse reports how many jobs were created.
type EnqueueResponse struct {
	Enqueued int    `json:"enqueued"`
	Error    string `json:"error,omitempty"`
}

// SearchResponse is the catalogue URL resolved for a query.
type SearchResponse struct {
	BaseURL string `json:"base_url"`
}

// SeasonsResponse lists the seasons found for a catalogue URL.
type SeasonsResponse struct {
	Seasons []int `json:"seasons"`
	Cached  bool  `json:"cached"`
}

// SeasonInfo describes one season's episodes.
type SeasonInfo struct {
	Season      int   `json:"season"`
	MaxEpisodes int   `json:"max_episodes"`
	Available   []int `json:"available"`
}

// Defaults are server-side enqueue defaults.
type Defaults struct {
	DownloadRoot           string `json:"download_root"`
	MaxConcurrentDownloads int    `json:"max_concurrent_downloads"`
}

// RetryResponse carries the id of the job created by a retry.
type RetryResponse struct {
	OK    bool   `json:"ok"`
	JobID string `json:"job_id"`
}

// ClearResponse reports how many jobs were removed.
type ClearResponse struct {
	Cleared int `json:"cleared"`
}

// ErrorResponse is the error body returned by the service. The v1 API uses
// "error"; the legacy API uses "detail".
type ErrorResponse struct {
	Error  string          `json:"error"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// EventPayload is the JSON body of a push-channel frame. Progress stays raw
// because v1 job bodies carry a bare fraction there while legacy progress
// frames carry an object.
type EventPayload struct {
	Type     string          `json:"type"`
	Event    string          `json:"event,omitempty"`
	ID       string          `json:"id,omitempty"`
	JobID    string          `json:"job_id,omitempty"`
	Job      *Job            `json:"job,omitempty"`
	Progress json.RawMessage `json:"progress,omitempty"`
	Level    string          `json:"level,omitempty"`
	Msg      *string         `json:"msg,omitempty"`
	TS       float64         `json:"ts,omitempty"`
}
