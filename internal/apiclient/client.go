// Package apiclient talks to the download service over HTTP: job and
// subscription snapshots, commands, catalogue lookups, and the Server-Sent
// Events push channel.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"dlpanel/internal/api"
	"dlpanel/internal/logging"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultEventsPath = "/api/events"
	requestIDHeader   = "X-Request-ID"
	maxErrorBody      = 4 << 10
)

// Options configures a Client.
type Options struct {
	Timeout    time.Duration
	EventsPath string
	Logger     *slog.Logger
	// HTTPClient overrides the request/response client. The event stream
	// always uses a client without an overall timeout.
	HTTPClient *http.Client
}

// Client is a thin typed wrapper over the service's HTTP API.
type Client struct {
	base       *url.URL
	http       *http.Client
	stream     *http.Client
	eventsPath string
	logger     *slog.Logger
}

// New parses baseURL and builds a client. A bare host:port gets an http scheme.
func New(baseURL string, opts Options) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, ErrAPIUnavailable
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("parse api url: missing host in %q", baseURL)
	}
	base.Path = strings.TrimRight(base.Path, "/")
	base.RawQuery = ""
	base.Fragment = ""

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	eventsPath := strings.TrimSpace(opts.EventsPath)
	if eventsPath == "" {
		eventsPath = defaultEventsPath
	}

	return &Client{
		base: base,
		http: httpClient,
		// No timeout: the stream stays open until the caller cancels.
		stream:     &http.Client{Transport: httpClient.Transport},
		eventsPath: eventsPath,
		logger:     logging.NewComponentLogger(opts.Logger, "apiclient"),
	}, nil
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends one JSON request and decodes the response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	requestID := uuid.NewString()
	ctx = logging.WithRequestID(ctx, requestID)
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger := logging.WithContext(ctx, c.logger)
	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Debug("api request failed",
			logging.String("method", method),
			logging.String("path", path),
			logging.Error(err),
		)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	logger.Debug("api request",
		logging.String("method", method),
		logging.String("path", path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s %s: empty response body", method, path)
		}
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode}

	var body api.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil {
		switch {
		case strings.TrimSpace(body.Error) != "":
			apiErr.Message = strings.TrimSpace(body.Error)
		case len(body.Detail) > 0:
			apiErr.Message = detailMessage(body.Detail)
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// detailMessage flattens a "detail" value, which is a string for explicit
// errors and a list of field errors for request validation failures.
func detailMessage(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if m := strings.TrimSpace(item.Msg); m != "" {
				msgs = append(msgs, m)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return strings.TrimSpace(string(raw))
}
