package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"garden-notifier/detect"
	"garden-notifier/pkg/notifier"
	"garden-notifier/snapshot"
)

type fakeSubs struct {
	subs []*notifier.Subscription
}

func (f *fakeSubs) Subscribers() []*notifier.Subscription { return f.subs }

type fakePlanner struct {
	stockCalls   int
	weatherCalls int
	lastEvent    *notifier.WeatherEvent
	lastInvite   string
	jobs         []notifier.Job
}

func (f *fakePlanner) Stock(_ *notifier.StockPayload, _ []*notifier.Subscription) []notifier.Job {
	f.stockCalls++
	return f.jobs
}

func (f *fakePlanner) Weather(event *notifier.WeatherEvent, invite string, _ []*notifier.Subscription) []notifier.Job {
	f.weatherCalls++
	f.lastEvent = event
	f.lastInvite = invite
	return f.jobs
}

type fakeDispatcher struct {
	batches [][]notifier.Job
}

func (f *fakeDispatcher) Dispatch(_ context.Context, jobs []notifier.Job) int {
	f.batches = append(f.batches, jobs)
	return len(jobs)
}

func newTestPipeline(planner *fakePlanner, dispatcher *fakeDispatcher) *Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	subs := &fakeSubs{subs: []*notifier.Subscription{{Email: "a@example.com"}}}
	return NewPipeline(snapshot.NewStore(), detect.New(logger), planner, dispatcher, subs, logger)
}

func TestHandleStockDispatchesOnChange(t *testing.T) {
	planner := &fakePlanner{jobs: []notifier.Job{{Email: "a@example.com"}}}
	dispatcher := &fakeDispatcher{}
	p := newTestPipeline(planner, dispatcher)
	ctx := context.Background()

	raw := []byte(`{"seeds":[{"item_id":"carrot","display_name":"Carrot","quantity":5}]}`)
	if err := p.HandleStock(ctx, raw); err != nil {
		t.Fatalf("HandleStock: %v", err)
	}

	if planner.stockCalls != 1 {
		t.Errorf("stockCalls = %d, want 1", planner.stockCalls)
	}
	if len(dispatcher.batches) != 1 {
		t.Errorf("dispatched batches = %d, want 1", len(dispatcher.batches))
	}
}

func TestHandleStockSkipsUnchangedSnapshot(t *testing.T) {
	planner := &fakePlanner{jobs: []notifier.Job{{Email: "a@example.com"}}}
	dispatcher := &fakeDispatcher{}
	p := newTestPipeline(planner, dispatcher)
	ctx := context.Background()

	raw := []byte(`{"seeds":[{"item_id":"carrot","display_name":"Carrot","quantity":5}]}`)
	if err := p.HandleStock(ctx, raw); err != nil {
		t.Fatalf("first HandleStock: %v", err)
	}
	// Same payload with keys reordered inside the item.
	reordered := []byte(`{"seeds":[{"quantity":5,"display_name":"Carrot","item_id":"carrot"}]}`)
	if err := p.HandleStock(ctx, reordered); err != nil {
		t.Fatalf("second HandleStock: %v", err)
	}

	if planner.stockCalls != 1 {
		t.Errorf("stockCalls = %d, want 1 (unchanged snapshot must not plan)", planner.stockCalls)
	}
}

func TestHandleStockIgnoresInvalidItemChurn(t *testing.T) {
	planner := &fakePlanner{jobs: []notifier.Job{{Email: "a@example.com"}}}
	dispatcher := &fakeDispatcher{}
	p := newTestPipeline(planner, dispatcher)
	ctx := context.Background()

	// An ID-less item rides along with a valid one.
	first := []byte(`{"seeds":[{"item_id":"carrot","display_name":"Carrot","quantity":5},{"item_id":"","display_name":"Mystery A","quantity":1}]}`)
	if err := p.HandleStock(ctx, first); err != nil {
		t.Fatalf("first HandleStock: %v", err)
	}

	// Only the ID-less item changed; the filtered payload is identical, so
	// nobody gets re-notified.
	second := []byte(`{"seeds":[{"item_id":"carrot","display_name":"Carrot","quantity":5},{"item_id":"","display_name":"Mystery B","quantity":2}]}`)
	if err := p.HandleStock(ctx, second); err != nil {
		t.Fatalf("second HandleStock: %v", err)
	}

	if planner.stockCalls != 1 {
		t.Errorf("stockCalls = %d, want 1 (invalid-item churn must not re-plan)", planner.stockCalls)
	}
	if len(dispatcher.batches) != 1 {
		t.Errorf("dispatched batches = %d, want 1", len(dispatcher.batches))
	}

	// A change to the valid item is still detected.
	third := []byte(`{"seeds":[{"item_id":"carrot","display_name":"Carrot","quantity":2},{"item_id":"","display_name":"Mystery B","quantity":2}]}`)
	if err := p.HandleStock(ctx, third); err != nil {
		t.Fatalf("third HandleStock: %v", err)
	}
	if planner.stockCalls != 2 {
		t.Errorf("stockCalls = %d, want 2 after a real change", planner.stockCalls)
	}
}

func TestHandleStockRejectsMalformedKeepsSnapshot(t *testing.T) {
	planner := &fakePlanner{jobs: []notifier.Job{{Email: "a@example.com"}}}
	dispatcher := &fakeDispatcher{}
	p := newTestPipeline(planner, dispatcher)
	ctx := context.Background()

	good := []byte(`{"seeds":[{"item_id":"carrot","display_name":"Carrot","quantity":5}]}`)
	if err := p.HandleStock(ctx, good); err != nil {
		t.Fatalf("HandleStock: %v", err)
	}

	err := p.HandleStock(ctx, []byte(`{not json`))
	var malformed *MalformedPayloadError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedPayloadError, got %v", err)
	}

	// Replaying the good payload must still be a no-op: the bad body never
	// replaced the snapshot.
	if err := p.HandleStock(ctx, good); err != nil {
		t.Fatalf("replay HandleStock: %v", err)
	}
	if planner.stockCalls != 1 {
		t.Errorf("stockCalls = %d, want 1", planner.stockCalls)
	}
}

func TestHandleWeatherEventStarted(t *testing.T) {
	planner := &fakePlanner{jobs: []notifier.Job{{Email: "a@example.com"}}}
	dispatcher := &fakeDispatcher{}
	p := newTestPipeline(planner, dispatcher)
	ctx := context.Background()

	calm := []byte(`{"weather":[{"weather_id":"rain","weather_name":"Rain","active":false}]}`)
	if err := p.HandleWeather(ctx, calm); err != nil {
		t.Fatalf("HandleWeather calm: %v", err)
	}
	if planner.weatherCalls != 0 {
		t.Fatalf("no event active yet, weatherCalls = %d", planner.weatherCalls)
	}

	storm := []byte(`{"weather":[{"weather_id":"rain","weather_name":"Rain","duration":300,"active":true}],"discord_invite":"https://discord.gg/garden"}`)
	if err := p.HandleWeather(ctx, storm); err != nil {
		t.Fatalf("HandleWeather storm: %v", err)
	}

	if planner.weatherCalls != 1 {
		t.Fatalf("weatherCalls = %d, want 1", planner.weatherCalls)
	}
	if planner.lastEvent == nil || planner.lastEvent.ID != "rain" {
		t.Errorf("lastEvent = %+v", planner.lastEvent)
	}
	if planner.lastInvite != "https://discord.gg/garden" {
		t.Errorf("lastInvite = %q", planner.lastInvite)
	}
	if len(dispatcher.batches) != 1 {
		t.Errorf("dispatched batches = %d, want 1", len(dispatcher.batches))
	}
}

func TestHandleWeatherEndedProducesNoJobs(t *testing.T) {
	planner := &fakePlanner{jobs: []notifier.Job{{Email: "a@example.com"}}}
	dispatcher := &fakeDispatcher{}
	p := newTestPipeline(planner, dispatcher)
	ctx := context.Background()

	storm := []byte(`{"weather":[{"weather_id":"rain","weather_name":"Rain","active":true}]}`)
	if err := p.HandleWeather(ctx, storm); err != nil {
		t.Fatalf("HandleWeather storm: %v", err)
	}
	calm := []byte(`{"weather":[{"weather_id":"rain","weather_name":"Rain","active":false}]}`)
	if err := p.HandleWeather(ctx, calm); err != nil {
		t.Fatalf("HandleWeather calm: %v", err)
	}

	if planner.weatherCalls != 1 {
		t.Errorf("weatherCalls = %d, want 1 (ended event must not plan)", planner.weatherCalls)
	}
}

func TestHandleUnknownChannel(t *testing.T) {
	p := newTestPipeline(&fakePlanner{}, &fakeDispatcher{})
	if err := p.Handle(context.Background(), notifier.Channel("moon"), []byte(`{}`)); err == nil {
		t.Error("expected error for unknown channel")
	}
}
