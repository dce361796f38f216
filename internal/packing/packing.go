// Package packing builds the list of items to take along for an event.
package packing

import (
	"regexp"

	"github.com/morningready/morningready/internal/event"
	"github.com/morningready/morningready/internal/weather"
)

// Category classifies where a pack item came from.
type Category string

const (
	CategoryEssential Category = "essential"
	CategoryPersonal  Category = "personal"
	CategoryEvent     Category = "event"
	CategoryWeather   Category = "weather"
	CategoryOptional  Category = "optional"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryEssential, CategoryPersonal, CategoryEvent, CategoryWeather, CategoryOptional:
		return true
	}
	return false
}

// Item is a single thing to pack. Name is its identity within a list.
type Item struct {
	Name     string   `json:"name"`
	Required bool     `json:"required"`
	Reason   string   `json:"reason,omitempty"`
	Category Category `json:"category"`
}

// UserItems are the user-owned pack items.
type UserItems struct {
	Essentials []Item `json:"essentials"`
	Personal   []Item `json:"personal"`
}

// RelevanceFunc decides whether a personal item is suggested for ev.
type RelevanceFunc func(ev event.Event, item Item) bool

// AllRelevant accepts every personal item.
func AllRelevant(event.Event, Item) bool { return true }

// Weather thresholds.
const (
	UmbrellaPrecipitation = 50
	GlovesAtOrBelow       = 12
	SunscreenAtOrAbove    = 28
)

// Trigger adds items when an event title matches Pattern.
type Trigger struct {
	Pattern *regexp.Regexp
	Items   []Item
}

// DefaultTriggers returns the event-title keyword triggers.
func DefaultTriggers() []Trigger {
	return []Trigger{
		{
			Pattern: regexp.MustCompile(`(?i)会議|meeting|mtg|ミーティング`),
			Items: []Item{
				{Name: "laptop", Required: true, Reason: "meeting materials", Category: CategoryEvent},
				{Name: "notepad", Required: false, Reason: "meeting notes", Category: CategoryEvent},
			},
		},
		{
			Pattern: regexp.MustCompile(`(?i)運動|gym|workout|ジム|トレーニング|training`),
			Items: []Item{
				{Name: "towel", Required: true, Reason: "exercise", Category: CategoryEvent},
				{Name: "change of clothes", Required: false, Reason: "after exercise", Category: CategoryEvent},
			},
		},
		{
			Pattern: regexp.MustCompile(`(?i)カフェ|レストラン|ランチ|ディナー|飲み会|cafe|café|restaurant|lunch|dinner|drinks`),
			Items: []Item{
				{Name: "wallet", Required: true, Reason: "payment", Category: CategoryEvent},
			},
		},
		{
			Pattern: regexp.MustCompile(`(?i)映画|movie|cinema`),
			Items: []Item{
				{Name: "ticket", Required: true, Reason: "movie", Category: CategoryEvent},
			},
		},
		{
			Pattern: regexp.MustCompile(`(?i)買い物|shopping`),
			Items: []Item{
				{Name: "reusable bag", Required: false, Reason: "shopping", Category: CategoryEvent},
			},
		},
	}
}

// AlwaysSuggested are appended to every list.
func AlwaysSuggested() []Item {
	return []Item{
		{Name: "charger", Required: false, Category: CategoryOptional},
		{Name: "water bottle", Required: false, Category: CategoryOptional},
	}
}

// Builder assembles packing lists.
type Builder struct {
	triggers []Trigger
	relevant RelevanceFunc
}

// Option configures a Builder.
type Option func(*Builder)

// WithRelevance sets the personal-item relevance predicate.
func WithRelevance(fn RelevanceFunc) Option {
	return func(b *Builder) {
		if fn != nil {
			b.relevant = fn
		}
	}
}

// WithTriggers replaces the event-title triggers.
func WithTriggers(triggers []Trigger) Option {
	return func(b *Builder) {
		b.triggers = triggers
	}
}

// NewBuilder creates a Builder with the default triggers and AllRelevant.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		triggers: DefaultTriggers(),
		relevant: AllRelevant,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var defaultBuilder = NewBuilder()

// Build returns the packing list using the default Builder.
func Build(w weather.Snapshot, ev event.Event, items UserItems) []Item {
	return defaultBuilder.Build(w, ev, items)
}

// Build returns the packing list for w, ev and the user's items.
// The result never holds two items with the same name; the first
// occurrence wins and relative order is kept.
func (b *Builder) Build(w weather.Snapshot, ev event.Event, items UserItems) []Item {
	list := make([]Item, 0, len(items.Essentials)+len(items.Personal)+8)

	list = append(list, items.Essentials...)

	if w.PrecipitationChance >= UmbrellaPrecipitation {
		list = append(list, Item{Name: "folding umbrella", Required: true, Reason: "rain forecast", Category: CategoryWeather})
	}
	if w.TempMax <= GlovesAtOrBelow {
		list = append(list, Item{Name: "gloves", Required: false, Reason: "cold", Category: CategoryWeather})
	}
	if w.TempMax >= SunscreenAtOrAbove {
		list = append(list, Item{Name: "sunscreen", Required: false, Reason: "hot", Category: CategoryWeather})
	}

	for _, t := range b.triggers {
		if t.Pattern.MatchString(ev.Title) {
			list = append(list, t.Items...)
		}
	}

	for _, item := range items.Personal {
		if b.relevant(ev, item) {
			list = append(list, item)
		}
	}

	list = append(list, AlwaysSuggested()...)

	return Dedupe(list)
}

// Dedupe keeps the first item per name and preserves order.
func Dedupe(items []Item) []Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.Name]; ok {
			continue
		}
		seen[item.Name] = struct{}{}
		out = append(out, item)
	}
	return out
}
