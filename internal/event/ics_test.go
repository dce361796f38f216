package event_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morningready/morningready/internal/event"
)

const sampleCalendar = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:single-1\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART:20250102T090000Z\r\n" +
	"DTEND:20250102T100000Z\r\n" +
	"SUMMARY:Dentist\r\n" +
	"LOCATION:Clinic\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:old-1\r\n" +
	"DTSTAMP:20240101T000000Z\r\n" +
	"DTSTART:20240102T090000Z\r\n" +
	"DTEND:20240102T100000Z\r\n" +
	"SUMMARY:Long gone\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:weekly-1\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART:20250101T080000Z\r\n" +
	"DTEND:20250101T083000Z\r\n" +
	"RRULE:FREQ=DAILY;COUNT=10\r\n" +
	"EXDATE:20250103T080000Z\r\n" +
	"SUMMARY:Standup\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseICS(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	drafts, err := event.ParseICS(strings.NewReader(sampleCalendar), event.ICSOptions{
		From:   from,
		Until:  from.Add(5 * 24 * time.Hour),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	var titles []string
	for _, d := range drafts {
		titles = append(titles, d.Title)
	}
	assert.NotContains(t, titles, "Long gone")

	var dentist *event.Draft
	standups := 0
	for i := range drafts {
		switch drafts[i].Title {
		case "Dentist":
			dentist = &drafts[i]
		case "Standup":
			standups++
			assert.Equal(t, 30*time.Minute, drafts[i].End.Sub(drafts[i].Start))
			assert.NotEqual(t, 3, drafts[i].Start.Day())
		}
	}

	require.NotNil(t, dentist)
	assert.Equal(t, "Clinic", dentist.Place)
	assert.Equal(t, event.DefaultBufferMinutes, dentist.BufferMinutes)
	assert.True(t, strings.HasPrefix(dentist.ID, "ics_"))

	// Jan 1, 2, 4, 5 (Jan 3 excluded)
	assert.Equal(t, 4, standups)
}

func TestParseICS_DeterministicIDs(t *testing.T) {
	opts := event.ICSOptions{
		From:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Until:  time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
		Logger: zerolog.Nop(),
	}

	first, err := event.ParseICS(strings.NewReader(sampleCalendar), opts)
	require.NoError(t, err)
	second, err := event.ParseICS(strings.NewReader(sampleCalendar), opts)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestParseICS_Invalid(t *testing.T) {
	_, err := event.ParseICS(strings.NewReader("not a calendar"), event.ICSOptions{Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, event.ErrInvalidCalendar)
}

func TestService_Import(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	result, err := svc.Import(ctx, "usr_1", strings.NewReader(sampleCalendar))
	require.NoError(t, err)
	assert.NotEmpty(t, result.Imported)

	events, err := svc.List(ctx, "usr_1")
	require.NoError(t, err)
	count := len(events)

	// Re-importing the same calendar adds nothing.
	_, err = svc.Import(ctx, "usr_1", strings.NewReader(sampleCalendar))
	require.NoError(t, err)

	events, err = svc.List(ctx, "usr_1")
	require.NoError(t, err)
	assert.Len(t, events, count)
}
