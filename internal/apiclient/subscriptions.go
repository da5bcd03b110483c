package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"dlpanel/internal/api"
	"dlpanel/internal/logging"
)

// DefaultSubscriptionLimit caps subscription listings when no limit is given.
const DefaultSubscriptionLimit = 200

// Subscriptions lists subscriptions with the default limit.
func (c *Client) Subscriptions(ctx context.Context) ([]api.Subscription, error) {
	return c.ListSubscriptions(ctx, DefaultSubscriptionLimit)
}

// ListSubscriptions lists up to limit subscriptions.
func (c *Client) ListSubscriptions(ctx context.Context, limit int) ([]api.Subscription, error) {
	if limit <= 0 {
		limit = DefaultSubscriptionLimit
	}
	query := url.Values{"limit": {strconv.Itoa(limit)}}
	var subs []api.Subscription
	if err := c.do(ctx, http.MethodGet, "/api/v1/subscriptions", query, nil, &subs); err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []api.Subscription{}
	}
	return subs, nil
}

// CreateSubscription registers a new subscription.
func (c *Client) CreateSubscription(ctx context.Context, req api.CreateSubscriptionRequest) (api.Subscription, error) {
	var sub api.Subscription
	if err := c.do(ctx, http.MethodPost, "/api/v1/subscriptions/", nil, req, &sub); err != nil {
		return api.Subscription{}, err
	}
	return sub, nil
}

// DeleteSubscription removes a subscription.
func (c *Client) DeleteSubscription(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/subscriptions/"+url.PathEscape(id), nil, nil, nil)
}

// SyncSubscription checks one subscription for new episodes. With enqueue
// false the service only reports what it would queue.
func (c *Client) SyncSubscription(ctx context.Context, id string, enqueue bool) (api.SyncResult, error) {
	var query url.Values
	if !enqueue {
		query = url.Values{"enqueue": {"false"}}
	}
	var result api.SyncResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/subscriptions/"+url.PathEscape(id)+"/sync", query, nil, &result); err != nil {
		return api.SyncResult{}, err
	}
	return result, nil
}

// SyncAll syncs every subscription, or only due ones with DueOnly.
func (c *Client) SyncAll(ctx context.Context, opts api.SyncAllOptions) (api.SyncAllResult, error) {
	query := url.Values{}
	if opts.NoEnqueue {
		query.Set("enqueue", "false")
	}
	if opts.DueOnly {
		query.Set("dueOnly", "true")
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	var result api.SyncAllResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/subscriptions/sync-all", query, nil, &result); err != nil {
		return api.SyncAllResult{}, err
	}
	for _, failure := range result.Errors {
		c.logger.Info("subscription sync failed",
			logging.SubscriptionID(failure.ID),
			logging.String("reason", failure.Error),
		)
	}
	return result, nil
}

// Airing lists upcoming broadcasts for the next days.
func (c *Client) Airing(ctx context.Context, days, limit int) ([]api.AiringEntry, error) {
	query := url.Values{}
	if days > 0 {
		query.Set("days", strconv.Itoa(days))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var entries []api.AiringEntry
	if err := c.do(ctx, http.MethodGet, "/api/v1/anilist/airing", query, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
