package event

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/teambition/rrule-go"
)

// ErrInvalidCalendar is returned when an iCalendar payload cannot be parsed.
var ErrInvalidCalendar = errors.New("invalid calendar")

// icsNamespace seeds deterministic IDs for imported entries so that
// re-importing the same calendar does not duplicate events.
var icsNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("morningready:ics"))

// ICSOptions controls how an iCalendar payload is converted to drafts.
type ICSOptions struct {
	// From drops single entries that ended before it and is the lower
	// bound of recurrence expansion.
	From time.Time

	// Until is the upper bound of recurrence expansion.
	Until time.Time

	// MaxOccurrences caps the occurrences per recurring entry.
	MaxOccurrences int

	Logger zerolog.Logger
}

// ParseICS converts the VEVENTs of an iCalendar payload into drafts.
// Recurring entries are expanded between From and Until.
// Entries missing a UID or DTSTART are skipped.
func ParseICS(r io.Reader, opts ICSOptions) ([]Draft, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCalendar, err)
	}

	drafts := make([]Draft, 0)
	for _, ve := range cal.Events() {
		parsed, err := draftsFromVEvent(ve, opts)
		if err != nil {
			opts.Logger.Warn().Err(err).Msg("skipping calendar entry")
			continue
		}
		drafts = append(drafts, parsed...)
	}

	return drafts, nil
}

func draftsFromVEvent(ve *ical.VEvent, opts ICSOptions) ([]Draft, error) {
	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return nil, errors.New("missing UID")
	}
	uid := uidProp.Value

	start, err := ve.GetStartAt()
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", uid, err)
	}

	end, err := ve.GetEndAt()
	if err != nil || !end.After(start) {
		end = start.Add(DefaultDuration)
	}

	base := Draft{
		Title:         propertyValue(ve, ical.ComponentPropertySummary),
		Place:         propertyValue(ve, ical.ComponentPropertyLocation),
		BufferMinutes: DefaultBufferMinutes,
		Mode:          DefaultMode,
	}

	rule := ve.GetProperty(ical.ComponentPropertyRrule)
	if rule == nil || rule.Value == "" {
		if !opts.From.IsZero() && end.Before(opts.From) {
			return nil, nil
		}
		d := base
		d.ID = importedID(uid, start)
		d.Start, d.End = start, end
		return []Draft{d}, nil
	}

	occurrences, err := expandRecurrence(ve, rule.Value, start, opts)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", uid, err)
	}

	duration := end.Sub(start)
	drafts := make([]Draft, 0, len(occurrences))
	for _, occ := range occurrences {
		d := base
		d.ID = importedID(uid, occ)
		d.Start, d.End = occ, occ.Add(duration)
		drafts = append(drafts, d)
	}
	return drafts, nil
}

func expandRecurrence(ve *ical.VEvent, rawRule string, start time.Time, opts ICSOptions) ([]time.Time, error) {
	r, err := rrule.StrToRRule(rawRule)
	if err != nil {
		return nil, fmt.Errorf("parse RRULE: %w", err)
	}
	r.DTStart(start)

	var set rrule.Set
	set.RRule(r)

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(strings.TrimSpace(part), start.Location()); err == nil {
				set.ExDate(t)
			}
		}
	}

	from, until := opts.From, opts.Until
	if from.IsZero() {
		from = start
	}
	if until.IsZero() {
		until = from.Add(DefaultRecurrenceRange)
	}

	times := set.Between(from.In(start.Location()), until.In(start.Location()), true)
	if opts.MaxOccurrences > 0 && len(times) > opts.MaxOccurrences {
		times = times[:opts.MaxOccurrences]
	}
	return times, nil
}

// parseICSTime parses the basic DATE and DATE-TIME forms used by EXDATE.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

func propertyValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

func importedID(uid string, start time.Time) string {
	key := uid + "|" + start.UTC().Format(time.RFC3339)
	return "ics_" + uuid.NewSHA1(icsNamespace, []byte(key)).String()[:22]
}
