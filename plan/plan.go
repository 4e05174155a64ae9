// Package plan computes notification jobs from a changed snapshot and the
// subscriber registry. The planner only produces jobs; it never talks to the
// mail transport.
package plan

import (
	"log/slog"

	"garden-notifier/pkg/notifier"
)

// Renderer turns matched data into a personalized subject and HTML body.
type Renderer interface {
	RenderStock(sub *notifier.Subscription, seeds, gear []notifier.StockItem) (subject, body string)
	RenderWeather(sub *notifier.Subscription, event *notifier.WeatherEvent, invite string) (subject, body string)
}

// Planner builds the fan-out job set for a change.
type Planner struct {
	renderer Renderer
	logger   *slog.Logger
}

// New creates a planner.
func New(renderer Renderer, logger *slog.Logger) *Planner {
	return &Planner{renderer: renderer, logger: logger}
}

// Stock produces at most one job per subscriber: the subset of in-stock
// items matching their partitioned interest sets. Seeds are filtered against
// the seed set and gear against the gear set. Subscribers with no matching
// in-stock item get nothing; an empty notification is never sent.
func (p *Planner) Stock(payload *notifier.StockPayload, subs []*notifier.Subscription) []notifier.Job {
	jobs := make([]notifier.Job, 0, len(subs))
	for _, sub := range subs {
		seeds := matchInStock(payload.Seeds, sub.Interest.SeedIDs)
		gear := matchInStock(payload.Gear, sub.Interest.GearIDs)
		if len(seeds) == 0 && len(gear) == 0 {
			continue
		}

		subject, body := p.renderer.RenderStock(sub, seeds, gear)
		jobs = append(jobs, notifier.Job{Email: sub.Email, Subject: subject, Body: body})
		p.logger.Debug("Stock job planned",
			"email", sub.Email,
			"seed_matches", len(seeds),
			"gear_matches", len(gear))
	}
	return jobs
}

// Weather produces one job per confirmed subscriber for a started event.
// Weather notifications are a broadcast: they are not filtered by interest
// set.
func (p *Planner) Weather(event *notifier.WeatherEvent, invite string, subs []*notifier.Subscription) []notifier.Job {
	jobs := make([]notifier.Job, 0, len(subs))
	for _, sub := range subs {
		subject, body := p.renderer.RenderWeather(sub, event, invite)
		jobs = append(jobs, notifier.Job{Email: sub.Email, Subject: subject, Body: body})
	}
	return jobs
}

// matchInStock keeps items that the subscriber selected and that are
// actually available (quantity > 0).
func matchInStock(items []notifier.StockItem, wanted map[string]bool) []notifier.StockItem {
	if len(wanted) == 0 {
		return nil
	}
	var out []notifier.StockItem
	for _, it := range items {
		if wanted[it.ID] && it.Quantity > 0 {
			out = append(out, it)
		}
	}
	return out
}
