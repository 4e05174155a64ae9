// Package notifier contains the core domain types for the garden stock
// notification service.
package notifier

import "time"

// Channel identifies an independent feed with its own change-detection
// timeline.
type Channel string

const (
	ChannelStock   Channel = "stock"
	ChannelWeather Channel = "weather"
)

// Category names a stock grouping as delivered by the upstream feed.
type Category string

const (
	CategorySeed     Category = "seed"
	CategoryGear     Category = "gear"
	CategoryEgg      Category = "egg"
	CategoryCosmetic Category = "cosmetic"
	CategoryEvent    Category = "event"
)

// Categories lists every stock category in render order.
var Categories = []Category{CategorySeed, CategoryGear, CategoryEgg, CategoryCosmetic, CategoryEvent}

// StockItem is a single item in a stock payload. Items without an ID are
// invalid and dropped before they reach change detection.
type StockItem struct {
	ID          string `json:"item_id"`
	DisplayName string `json:"display_name"`
	Quantity    int    `json:"quantity"`
}

// StockPayload groups items under named categories.
type StockPayload struct {
	Seeds     []StockItem `json:"seeds"`
	Gear      []StockItem `json:"gear"`
	Eggs      []StockItem `json:"eggs"`
	Cosmetics []StockItem `json:"cosmetics"`
	Event     []StockItem `json:"event"`
}

// Items returns the item list for one category.
func (p *StockPayload) Items(c Category) []StockItem {
	switch c {
	case CategorySeed:
		return p.Seeds
	case CategoryGear:
		return p.Gear
	case CategoryEgg:
		return p.Eggs
	case CategoryCosmetic:
		return p.Cosmetics
	case CategoryEvent:
		return p.Event
	default:
		return nil
	}
}

// WeatherEvent is a single weather entry. At most one event in a payload is
// flagged active.
type WeatherEvent struct {
	ID              string `json:"weather_id"`
	Name            string `json:"weather_name"`
	DurationSeconds int    `json:"duration,omitempty"`
	Active          bool   `json:"active"`
}

// WeatherPayload is the weather feed body: a list of events plus an optional
// community invite link.
type WeatherPayload struct {
	Events        []WeatherEvent `json:"weather"`
	DiscordInvite string         `json:"discord_invite,omitempty"`
}

// ActiveEvent returns the active event, if any. When the upstream misbehaves
// and flags several, the first wins.
func (p *WeatherPayload) ActiveEvent() *WeatherEvent {
	for i := range p.Events {
		if p.Events[i].Active {
			return &p.Events[i]
		}
	}
	return nil
}

// Interest is a subscriber's partitioned interest set. Seeds and gear are
// tracked separately so notification emails can render them as sections.
type Interest struct {
	SeedIDs map[string]bool `json:"seed_ids"`
	GearIDs map[string]bool `json:"gear_ids"`
}

// Empty reports whether the interest set selects nothing.
func (in Interest) Empty() bool {
	return len(in.SeedIDs) == 0 && len(in.GearIDs) == 0
}

// Subscription is a confirmed subscriber with an active interest set. Owned
// exclusively by the registry; the interest set is only ever replaced whole.
type Subscription struct {
	Email     string    `json:"email"`
	Interest  Interest  `json:"interest"`
	CreatedAt time.Time `json:"created_at"`
}

// CatalogEntry enriches notification rendering. The catalog is never used
// for change-detection correctness.
type CatalogEntry struct {
	DisplayName string `json:"display_name"`
	IconURL     string `json:"icon"`
}

// Job is one planned outbound notification: a rendered message for a single
// recipient.
type Job struct {
	Email   string
	Subject string
	Body    string
}
