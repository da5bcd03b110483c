package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"dlpanel/internal/logging"
)

// Events opens the Server-Sent Events stream. The caller owns the returned
// body and must close it; cancelling ctx also ends the stream.
func (c *Client) Events(ctx context.Context) (io.ReadCloser, error) {
	if c == nil {
		return nil, ErrAPIUnavailable
	}
	requestID := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(c.eventsPath, nil), nil)
	if err != nil {
		return nil, fmt.Errorf("build event stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set(requestIDHeader, requestID)

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", c.eventsPath, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected content type %q", c.eventsPath, ct)
	}
	c.logger.Debug("event stream opened",
		logging.RequestID(requestID),
		logging.String("path", c.eventsPath),
	)
	return resp.Body, nil
}
