// Package detect classifies accepted snapshot changes into discrete domain
// events.
package detect

import (
	"log/slog"

	"garden-notifier/pkg/notifier"
	"garden-notifier/snapshot"
)

// TransitionKind classifies a weather change between two snapshots.
type TransitionKind int

const (
	// NoTransition means the active event did not change identity (for
	// example only its duration moved).
	NoTransition TransitionKind = iota
	// EventStarted means a new active event appeared. This is the only
	// transition that produces notification jobs.
	EventStarted
	// EventEnded means the previously active event cleared with no
	// replacement.
	EventEnded
)

func (k TransitionKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventEnded:
		return "ended"
	default:
		return "none"
	}
}

// Transition is the outcome of comparing the active weather event across two
// snapshots.
type Transition struct {
	Kind  TransitionKind
	Event *notifier.WeatherEvent // started or ended event; nil for NoTransition with no active event
}

// Detector turns changed snapshots into domain events.
type Detector struct {
	logger *slog.Logger
}

// New creates a detector.
func New(logger *slog.Logger) *Detector {
	return &Detector{logger: logger}
}

// FilterStock drops items without an ID from every category. Items lacking
// an ID must never reach downstream processing. The input payload is not
// mutated.
func (d *Detector) FilterStock(p *notifier.StockPayload) *notifier.StockPayload {
	filter := func(items []notifier.StockItem, category notifier.Category) []notifier.StockItem {
		out := make([]notifier.StockItem, 0, len(items))
		for _, it := range items {
			if it.ID == "" {
				d.logger.Warn("Dropping stock item without ID",
					"category", string(category),
					"display_name", it.DisplayName)
				continue
			}
			out = append(out, it)
		}
		return out
	}

	return &notifier.StockPayload{
		Seeds:     filter(p.Seeds, notifier.CategorySeed),
		Gear:      filter(p.Gear, notifier.CategoryGear),
		Eggs:      filter(p.Eggs, notifier.CategoryEgg),
		Cosmetics: filter(p.Cosmetics, notifier.CategoryCosmetic),
		Event:     filter(p.Event, notifier.CategoryEvent),
	}
}

// ClassifyWeather compares the active event of the new payload against the
// previous snapshot:
//
//	none    -> A         EventStarted(A)
//	A       -> none      EventEnded(A)
//	A       -> A         NoTransition
//	A       -> B         EventStarted(B)
//
// A previous nil snapshot counts as no active event.
func (d *Detector) ClassifyWeather(previous *snapshot.Snapshot, current *notifier.WeatherPayload) Transition {
	var prevActive *notifier.WeatherEvent
	if previous != nil {
		if p, ok := previous.Parsed.(*notifier.WeatherPayload); ok {
			prevActive = p.ActiveEvent()
		}
	}
	newActive := current.ActiveEvent()

	activeCount := 0
	for i := range current.Events {
		if current.Events[i].Active {
			activeCount++
		}
	}
	if activeCount > 1 {
		d.logger.Warn("Multiple active weather events in payload, using the first",
			"active_count", activeCount,
			"event_id", newActive.ID)
	}

	switch {
	case prevActive == nil && newActive == nil:
		return Transition{Kind: NoTransition}
	case prevActive == nil:
		return Transition{Kind: EventStarted, Event: newActive}
	case newActive == nil:
		return Transition{Kind: EventEnded, Event: prevActive}
	case prevActive.ID == newActive.ID:
		return Transition{Kind: NoTransition, Event: newActive}
	default:
		// A different event took over; there is no explicit ended signal
		// for the old one.
		return Transition{Kind: EventStarted, Event: newActive}
	}
}
