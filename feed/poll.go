package feed

import (
	"context"
	"log/slog"
	"time"

	"garden-notifier/pkg/notifier"
)

// DefaultPollInterval is how often a poller re-fetches its feed.
const DefaultPollInterval = 15 * time.Second

// Poller periodically fetches one feed endpoint and hands the body to the
// pipeline.
type Poller struct {
	client   *Client
	pipeline *Pipeline
	channel  notifier.Channel
	url      string
	interval time.Duration
	logger   *slog.Logger
}

// NewPoller creates a poller for one channel. A non-positive interval falls
// back to DefaultPollInterval.
func NewPoller(client *Client, pipeline *Pipeline, ch notifier.Channel, feedURL string, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		client:   client,
		pipeline: pipeline,
		channel:  ch,
		url:      feedURL,
		interval: interval,
		logger:   logger,
	}
}

// Run polls until ctx is cancelled. The first fetch happens immediately so
// a fresh process has a snapshot before the first tick. A cycle that fails
// after retries is abandoned; the next tick starts clean.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("Poller starting",
		"channel", string(p.channel),
		"url", p.url,
		"interval", p.interval.String())

	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Poller stopping", "channel", string(p.channel), "reason", ctx.Err())
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	raw, err := p.client.Fetch(ctx, p.url)
	if err != nil {
		p.logger.Warn("Poll cycle abandoned",
			"channel", string(p.channel),
			"url", p.url,
			"error", err)
		return
	}
	if err := p.pipeline.Handle(ctx, p.channel, raw); err != nil {
		p.logger.Warn("Poll cycle rejected payload",
			"channel", string(p.channel),
			"error", err)
	}
}
