// Package feed ingests the upstream stock and weather feeds, over HTTP
// polling and a persistent websocket stream, and drives the notification
// pipeline on every accepted update.
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const maxPayloadSize = 10 << 20 // 10MB limit on feed responses

// Client fetches raw JSON payloads from a feed endpoint.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a feed client.
func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
	}
}

// Fetch retrieves the feed body. Transient failures are retried with
// exponential backoff within this call; if every attempt fails the caller
// waits for its next cycle.
func (c *Client) Fetch(ctx context.Context, feedURL string) ([]byte, error) {
	var body []byte

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("Accept", "application/json")

			startTime := time.Now()
			resp, err := c.httpClient.Do(req)
			duration := time.Since(startTime)

			if err != nil {
				c.logger.Warn("Feed request failed, will retry",
					"url", feedURL,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					c.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			if resp.StatusCode != http.StatusOK {
				c.logger.Warn("Feed request returned non-OK status, will retry",
					"url", feedURL,
					"status_code", resp.StatusCode)
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}

			body, err = io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}

			c.logger.Debug("Feed request completed",
				"url", feedURL,
				"duration_ms", duration.Milliseconds(),
				"bytes", len(body))
			return nil
		},
		retry.Attempts(5),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(2*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying feed fetch after error", "attempt", n, "url", feedURL, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("after retries: %w", err)
	}

	return body, nil
}
