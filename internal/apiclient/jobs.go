package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"dlpanel/internal/api"
)

// Jobs fetches the full job snapshot.
func (c *Client) Jobs(ctx context.Context) (api.JobsSnapshot, error) {
	var snap api.JobsSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/jobs/list", nil, nil, &snap); err != nil {
		return api.JobsSnapshot{}, err
	}
	if snap.Jobs == nil {
		snap.Jobs = []api.Job{}
	}
	return snap, nil
}

// CancelJob asks the service to cancel a pending or running job.
func (c *Client) CancelJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, nil, nil)
}

// RetryJob re-enqueues a finished job and returns the id of the new job.
func (c *Client) RetryJob(ctx context.Context, id string) (string, error) {
	var resp api.RetryResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/retry", nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

// ClearFinished drops finished jobs from the service's list.
func (c *Client) ClearFinished(ctx context.Context) (int, error) {
	var resp api.ClearResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs/clear_finished", nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Cleared, nil
}

// CancelAll cancels every pending and running job.
func (c *Client) CancelAll(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/cancel_all", nil, nil, nil)
}

// ClearPending removes jobs that have not started.
func (c *Client) ClearPending(ctx context.Context) (int, error) {
	var resp api.ClearResponse
	if err := c.do(ctx, http.MethodPost, "/api/clear_pending", nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Cleared, nil
}

// Enqueue queues the selected episodes of one season.
func (c *Client) Enqueue(ctx context.Context, req api.EnqueueRequest) (api.EnqueueResponse, error) {
	var resp api.EnqueueResponse
	if err := c.do(ctx, http.MethodPost, "/api/enqueue", nil, req, &resp); err != nil {
		return api.EnqueueResponse{}, err
	}
	return resp, nil
}
