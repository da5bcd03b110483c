package apiclient

import (
	"context"
	"net/http"

	"dlpanel/internal/api"
)

// Search resolves a free-text title to a catalogue URL.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	var resp api.SearchResponse
	body := map[string]string{"query": query}
	if err := c.do(ctx, http.MethodPost, "/api/search", nil, body, &resp); err != nil {
		return "", err
	}
	return resp.BaseURL, nil
}

// Seasons lists the seasons available for a catalogue URL and language.
func (c *Client) Seasons(ctx context.Context, baseURL, lang string) (api.SeasonsResponse, error) {
	var resp api.SeasonsResponse
	body := map[string]string{"base_url": baseURL, "lang": lang}
	if err := c.do(ctx, http.MethodPost, "/api/seasons", nil, body, &resp); err != nil {
		return api.SeasonsResponse{}, err
	}
	return resp, nil
}

// SeasonInfo reports the episode count and available episodes of one season.
func (c *Client) SeasonInfo(ctx context.Context, baseURL, lang string, season int) (api.SeasonInfo, error) {
	var resp api.SeasonInfo
	body := map[string]any{"base_url": baseURL, "lang": lang, "season": season}
	if err := c.do(ctx, http.MethodPost, "/api/season_info", nil, body, &resp); err != nil {
		return api.SeasonInfo{}, err
	}
	return resp, nil
}

// Defaults returns the service's download defaults.
func (c *Client) Defaults(ctx context.Context) (api.Defaults, error) {
	var resp api.Defaults
	if err := c.do(ctx, http.MethodGet, "/api/defaults", nil, nil, &resp); err != nil {
		return api.Defaults{}, err
	}
	return resp, nil
}
