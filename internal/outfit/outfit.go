// Package outfit maps weather and a style preference to a clothing suggestion.
//
// Selection is a fixed decision table: a temperature band chosen by the
// day's maximum temperature provides the base look, a per-style override
// record replaces individual fields, and a rain note wins over any band note.
// Identical inputs always produce identical suggestions.
package outfit

import (
	"errors"
	"math"
	"strings"

	"github.com/morningready/morningready/internal/weather"
)

// ErrUnknownStyle is returned by ParseStyle for unsupported tags.
var ErrUnknownStyle = errors.New("unknown outfit style")

// Style is an outfit preference tag.
type Style string

const (
	StyleFormal  Style = "formal"
	StyleCasual  Style = "casual"
	StyleSporty  Style = "sporty"
	StyleStreet  Style = "street"
	StyleSmart   Style = "smart"
	StyleElegant Style = "elegant"
	StyleCool    Style = "cool"
	StyleCute    Style = "cute"
	StyleSexy    Style = "sexy"
	StyleNaughty Style = "naughty"
)

// Styles lists every supported style.
var Styles = []Style{
	StyleFormal, StyleCasual, StyleSporty, StyleStreet, StyleSmart,
	StyleElegant, StyleCool, StyleCute, StyleSexy, StyleNaughty,
}

// DefaultStyle is used when a user has not chosen one.
const DefaultStyle = StyleCasual

// Valid reports whether s is a supported style.
func (s Style) Valid() bool {
	for _, st := range Styles {
		if s == st {
			return true
		}
	}
	return false
}

// ParseStyle parses a style tag case-insensitively. An empty tag yields DefaultStyle.
func ParseStyle(v string) (Style, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return DefaultStyle, nil
	}
	s := Style(v)
	if !s.Valid() {
		return "", ErrUnknownStyle
	}
	return s, nil
}

// Suggestion is a derived clothing recommendation.
type Suggestion struct {
	Tops    string `json:"tops"`
	Outer   string `json:"outer,omitempty"`
	Bottoms string `json:"bottoms"`
	Shoes   string `json:"shoes"`
	Notes   string `json:"notes,omitempty"`
	Style   Style  `json:"style"`
}

// Fallback garments used when a field ends up empty.
const (
	FallbackTops    = "long-sleeve shirt"
	FallbackBottoms = "chino pants"
	FallbackShoes   = "sneakers"
)

// RainThreshold is the precipitation chance (percent) at which the rain note applies.
const RainThreshold = 50

// RainNote replaces any band note when rain is likely.
const RainNote = "Rain expected. Waterproof gear recommended."

// Band is a temperature tier. A band matches when tempMax <= MaxTemp.
type Band struct {
	MaxTemp float64
	Tops    string
	Outer   string
	Bottoms string
	Shoes   string
	Notes   string
}

// DefaultBands returns the temperature tiers in ascending order.
func DefaultBands() []Band {
	return []Band{
		{MaxTemp: 12, Tops: "knit top", Outer: "coat", Bottoms: "thick pants", Shoes: "boots", Notes: "Cold. Prioritize warmth."},
		{MaxTemp: 18, Tops: "long-sleeve shirt", Outer: "light jacket", Bottoms: "chinos", Shoes: "waterproof sneakers"},
		{MaxTemp: 24, Tops: "light long-sleeve top", Bottoms: "chinos", Shoes: "sneakers"},
		{MaxTemp: math.Inf(1), Tops: "short-sleeve shirt", Bottoms: "lightweight pants", Shoes: "breathable sneakers"},
	}
}

// Override replaces individual fields of the base look. A nil field keeps the
// base value; a pointer to "" clears it.
type Override struct {
	Tops    *string
	Outer   *string
	Bottoms *string
	Shoes   *string

	// AtOrBelow restricts the override to days with tempMax at or below it.
	AtOrBelow *float64
}

func (o Override) applies(tempMax float64) bool {
	return o.AtOrBelow == nil || tempMax <= *o.AtOrBelow
}

func set(v string) *string { return &v }

// DefaultOverrides returns the per-style override table.
func DefaultOverrides() map[Style]Override {
	formalLimit := 18.0
	return map[Style]Override{
		StyleFormal:  {Tops: set("shirt"), Outer: set("jacket"), Bottoms: set("slacks"), Shoes: set("leather shoes"), AtOrBelow: &formalLimit},
		StyleCasual:  {},
		StyleSporty:  {Tops: set("sportswear"), Outer: set(""), Bottoms: set("training pants"), Shoes: set("running shoes")},
		StyleStreet:  {Outer: set("hoodie"), Shoes: set("sneakers")},
		StyleSmart:   {Outer: set("cardigan"), Shoes: set("loafers")},
		StyleElegant: {Outer: set("coat"), Shoes: set("heels")},
		StyleCool:    {Outer: set("denim jacket"), Shoes: set("boots")},
		StyleCute:    {Tops: set("frilled blouse"), Bottoms: set("skirt"), Shoes: set("flat shoes")},
		StyleSexy:    {Tops: set("tank top"), Bottoms: set("skinny pants"), Shoes: set("heels")},
		StyleNaughty: {Tops: set("leather jacket"), Bottoms: set("skinny pants"), Shoes: set("boots")},
	}
}

// Selector holds a band table and style overrides.
type Selector struct {
	bands     []Band
	overrides map[Style]Override
}

// NewSelector creates a Selector. Nil arguments use the default tables.
// Bands must be sorted by MaxTemp; the last band catches everything above.
func NewSelector(bands []Band, overrides map[Style]Override) *Selector {
	if len(bands) == 0 {
		bands = DefaultBands()
	}
	if overrides == nil {
		overrides = DefaultOverrides()
	}
	return &Selector{bands: bands, overrides: overrides}
}

var defaultSelector = NewSelector(nil, nil)

// Select returns the suggestion for w and style using the default tables.
func Select(w weather.Snapshot, style Style) Suggestion {
	return defaultSelector.Select(w, style)
}

// Select returns the suggestion for w and style.
func (s *Selector) Select(w weather.Snapshot, style Style) Suggestion {
	band := s.band(w.TempMax)
	out := Suggestion{
		Tops:    band.Tops,
		Outer:   band.Outer,
		Bottoms: band.Bottoms,
		Shoes:   band.Shoes,
		Notes:   band.Notes,
		Style:   style,
	}

	if o, ok := s.overrides[style]; ok && o.applies(w.TempMax) {
		replace(&out.Tops, o.Tops)
		replace(&out.Outer, o.Outer)
		replace(&out.Bottoms, o.Bottoms)
		replace(&out.Shoes, o.Shoes)
	}

	if w.PrecipitationChance >= RainThreshold {
		out.Notes = RainNote
	}

	if out.Tops == "" {
		out.Tops = FallbackTops
	}
	if out.Bottoms == "" {
		out.Bottoms = FallbackBottoms
	}
	if out.Shoes == "" {
		out.Shoes = FallbackShoes
	}

	return out
}

func (s *Selector) band(tempMax float64) Band {
	for _, b := range s.bands {
		if tempMax <= b.MaxTemp {
			return b
		}
	}
	return s.bands[len(s.bands)-1]
}

func replace(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
