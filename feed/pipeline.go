package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"garden-notifier/detect"
	"garden-notifier/pkg/notifier"
	"garden-notifier/snapshot"
)

// SubscriberSource lists the confirmed subscribers to fan out to.
type SubscriberSource interface {
	Subscribers() []*notifier.Subscription
}

// Planner turns an accepted update into per-recipient jobs.
type Planner interface {
	Stock(payload *notifier.StockPayload, subs []*notifier.Subscription) []notifier.Job
	Weather(event *notifier.WeatherEvent, invite string, subs []*notifier.Subscription) []notifier.Job
}

// Dispatcher delivers a planned batch.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobs []notifier.Job) int
}

// Pipeline processes feed updates for both channels: snapshot comparison,
// change classification, planning, dispatch. Updates for one channel are
// strictly sequential; the two channels never block each other.
type Pipeline struct {
	snapshots *snapshot.Store
	detector  *detect.Detector
	planner   Planner
	sender    Dispatcher
	subs      SubscriberSource
	logger    *slog.Logger

	stockMu   sync.Mutex
	weatherMu sync.Mutex
}

// NewPipeline creates a pipeline over the shared snapshot store.
func NewPipeline(snapshots *snapshot.Store, detector *detect.Detector, planner Planner, sender Dispatcher, subs SubscriberSource, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		snapshots: snapshots,
		detector:  detector,
		planner:   planner,
		sender:    sender,
		subs:      subs,
		logger:    logger,
	}
}

// Handle routes a raw feed body to the channel's handler. Both the pollers
// and the stream feed through here.
func (p *Pipeline) Handle(ctx context.Context, ch notifier.Channel, raw []byte) error {
	switch ch {
	case notifier.ChannelStock:
		return p.HandleStock(ctx, raw)
	case notifier.ChannelWeather:
		return p.HandleWeather(ctx, raw)
	default:
		return fmt.Errorf("unknown channel %q", ch)
	}
}

// HandleStock processes one stock feed body. A malformed body is rejected
// and the prior snapshot stands.
func (p *Pipeline) HandleStock(ctx context.Context, raw []byte) error {
	p.stockMu.Lock()
	defer p.stockMu.Unlock()

	payload, err := ParseStock(raw)
	if err != nil {
		p.logger.Warn("Rejecting stock update", "error", err)
		return err
	}
	filtered := p.detector.FilterStock(payload)

	// Change detection runs on the filtered payload: churn inside items
	// that never reach downstream processing must not re-notify anyone.
	canonical, err := json.Marshal(filtered)
	if err != nil {
		p.logger.Warn("Rejecting stock update", "error", err)
		return err
	}

	changed, _, err := p.snapshots.Replace(notifier.ChannelStock, canonical, filtered)
	if err != nil {
		p.logger.Warn("Rejecting stock update", "error", err)
		return err
	}
	if !changed {
		p.logger.Debug("Stock snapshot unchanged")
		return nil
	}

	subs := p.subs.Subscribers()
	jobs := p.planner.Stock(filtered, subs)
	p.logger.Info("Stock update accepted",
		"subscribers", len(subs),
		"jobs", len(jobs))
	if len(jobs) > 0 {
		p.sender.Dispatch(ctx, jobs)
	}
	return nil
}

// HandleWeather processes one weather feed body. Only an EventStarted
// transition produces notifications.
func (p *Pipeline) HandleWeather(ctx context.Context, raw []byte) error {
	p.weatherMu.Lock()
	defer p.weatherMu.Unlock()

	payload, err := ParseWeather(raw)
	if err != nil {
		p.logger.Warn("Rejecting weather update", "error", err)
		return err
	}

	changed, previous, err := p.snapshots.Replace(notifier.ChannelWeather, raw, payload)
	if err != nil {
		p.logger.Warn("Rejecting weather update", "error", err)
		return err
	}
	if !changed {
		p.logger.Debug("Weather snapshot unchanged")
		return nil
	}

	transition := p.detector.ClassifyWeather(previous, payload)
	if transition.Kind != detect.EventStarted {
		eventID := ""
		if transition.Event != nil {
			eventID = transition.Event.ID
		}
		p.logger.Info("Weather transition produced no notifications",
			"kind", transition.Kind.String(),
			"event_id", eventID)
		return nil
	}

	subs := p.subs.Subscribers()
	jobs := p.planner.Weather(transition.Event, payload.DiscordInvite, subs)
	p.logger.Info("Weather event started",
		"event_id", transition.Event.ID,
		"event_name", transition.Event.Name,
		"subscribers", len(subs),
		"jobs", len(jobs))
	if len(jobs) > 0 {
		p.sender.Dispatch(ctx, jobs)
	}
	return nil
}
