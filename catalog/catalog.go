// Package catalog maintains the item catalog used to enrich notification
// rendering. The catalog is never consulted for change-detection
// correctness, and an empty catalog never blocks feed processing.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"garden-notifier/pkg/notifier"

	"github.com/codeGROOVE-dev/retry"
)

const (
	cacheKey = "garden:catalog"
	cacheTTL = 7 * 24 * time.Hour

	maxCatalogSize = 10 << 20 // 10MB limit on item-info responses

	// iconBase is the fallback icon host. The slug is derived from the
	// item ID alone so the fallback stays deterministic.
	iconBase = "https://static.growagardenapi.dev/icons/"
)

// catalogItem is the wire form of one item-info entry.
type catalogItem struct {
	ItemID      string `json:"item_id"`
	DisplayName string `json:"display_name"`
	Icon        string `json:"icon"`
}

// Catalog maps item IDs to display metadata, refreshed wholesale from the
// item-info endpoint. Lookups are served from memory; the cache backend
// persists the last refresh so a restart can pre-warm.
type Catalog struct {
	url        string
	httpClient *http.Client
	cache      Cache
	logger     *slog.Logger

	mu      sync.RWMutex
	entries map[string]notifier.CatalogEntry
}

// New creates a catalog. Call Warm to pre-load from cache and Refresh to
// fetch from the upstream endpoint.
func New(url string, cache Cache, logger *slog.Logger) *Catalog {
	return &Catalog{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
		logger:     logger,
		entries:    make(map[string]notifier.CatalogEntry),
	}
}

// Loaded reports whether the catalog currently holds any entries.
func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries) > 0
}

// Lookup returns the catalog entry for an item ID.
func (c *Catalog) Lookup(itemID string) (notifier.CatalogEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[itemID]
	return e, ok
}

// Icon returns the icon reference for an item, falling back to a
// deterministic URL derived from the item ID when the catalog has no entry.
func (c *Catalog) Icon(itemID string) string {
	if e, ok := c.Lookup(itemID); ok && e.IconURL != "" {
		return e.IconURL
	}
	return FallbackIcon(itemID)
}

// FallbackIcon derives a default icon reference from an item ID.
func FallbackIcon(itemID string) string {
	slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(itemID)), " ", "-")
	return iconBase + slug + ".png"
}

// Warm loads the last cached catalog, if any. A miss is not an error.
func (c *Catalog) Warm(ctx context.Context) {
	data, err := c.cache.Get(ctx, cacheKey)
	if err != nil {
		if err != ErrCacheMiss {
			c.logger.Warn("Catalog cache read failed", "error", err)
		}
		return
	}
	if err := c.install(data); err != nil {
		c.logger.Warn("Cached catalog unusable", "error", err)
		return
	}
	c.logger.Info("Catalog pre-warmed from cache", "items", c.size())
}

// Refresh fetches the item-info endpoint and replaces the catalog wholesale.
// On failure the prior catalog (or empty) stays in place; the caller logs
// and moves on, feed processing is never blocked.
func (c *Catalog) Refresh(ctx context.Context) error {
	var body []byte

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
			if err != nil {
				return fmt.Errorf("create request: %w", err)
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					c.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}

			body, err = io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize))
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying catalog fetch after error", "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("fetch catalog: %w", err)
	}

	if err := c.install(body); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}

	if err := c.cache.Set(ctx, cacheKey, body, cacheTTL); err != nil {
		c.logger.Warn("Catalog cache write failed", "error", err)
	}

	c.logger.Info("Catalog refreshed", "items", c.size())
	return nil
}

func (c *Catalog) install(data []byte) error {
	var items []catalogItem
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}

	entries := make(map[string]notifier.CatalogEntry, len(items))
	for _, it := range items {
		if it.ItemID == "" {
			continue
		}
		entries[it.ItemID] = notifier.CatalogEntry{
			DisplayName: it.DisplayName,
			IconURL:     it.Icon,
		}
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

func (c *Catalog) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
