package event_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morningready/morningready/internal/event"
	"github.com/morningready/morningready/internal/geo"
	"github.com/morningready/morningready/internal/travel"
)

var now = time.Date(2025, 1, 1, 7, 0, 0, 0, time.UTC)

func newTestService() (*event.Service, *event.InMemoryRepository) {
	repo := event.NewInMemoryRepository()
	svc := event.NewService(event.ServiceConfig{
		Repository: repo,
		Logger:     zerolog.Nop(),
		Now:        func() time.Time { return now },
	})
	return svc, repo
}

func validDraft() event.Draft {
	return event.Draft{
		Title:         "Team meeting",
		Start:         now.Add(2 * time.Hour),
		End:           now.Add(3 * time.Hour),
		Place:         "Office",
		Coordinate:    &geo.Coordinate{Lat: 35.68, Lon: 139.76},
		BufferMinutes: 10,
		Mode:          travel.ModeTrain,
	}
}

func TestService_Create(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	ev, err := svc.Create(ctx, "usr_1", validDraft())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ev.ID, "evt_"))
	assert.Equal(t, "usr_1", ev.UserID)
	assert.Equal(t, "Team meeting", ev.Title)
	assert.Equal(t, now, ev.CreatedAt)

	got, err := svc.Get(ctx, "usr_1", ev.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, got.ID)
}

func TestService_Create_AppliesDefaults(t *testing.T) {
	svc, _ := newTestService()

	ev, err := svc.Create(context.Background(), "usr_1", event.Draft{
		Title: "  Lunch  ",
		Start: now.Add(time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, "Lunch", ev.Title)
	assert.Equal(t, event.UnspecifiedPlace, ev.Place)
	assert.Equal(t, travel.ModeTrain, ev.Mode)
	assert.Equal(t, now.Add(2*time.Hour), ev.End)
}

func TestService_Create_Validation(t *testing.T) {
	negative := -5
	tests := []struct {
		name   string
		mutate func(d *event.Draft)
		field  string
	}{
		{"missing title", func(d *event.Draft) { d.Title = "" }, "title"},
		{"missing start", func(d *event.Draft) { d.Start = time.Time{}; d.End = time.Time{} }, "start"},
		{"end before start", func(d *event.Draft) { d.End = d.Start.Add(-time.Minute) }, "end"},
		{"end equals start", func(d *event.Draft) { d.End = d.Start }, "end"},
		{"negative buffer", func(d *event.Draft) { d.BufferMinutes = -1 }, "bufferMinutes"},
		{"negative travel override", func(d *event.Draft) { d.TravelMinutes = &negative }, "travelMinutes"},
		{"unknown mode", func(d *event.Draft) { d.Mode = "rocket" }, "mode"},
		{"invalid coordinate", func(d *event.Draft) { d.Coordinate = &geo.Coordinate{Lat: 120} }, "coordinate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService()
			d := validDraft()
			tt.mutate(&d)

			_, err := svc.Create(context.Background(), "usr_1", d)
			require.Error(t, err)

			var vErr *event.ValidationError
			require.True(t, errors.As(err, &vErr))
			require.NotEmpty(t, vErr.Errors)
			assert.Equal(t, tt.field, vErr.Errors[0].Field)
		})
	}
}

func TestService_ListOrderedByStart(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	late := validDraft()
	late.Title = "Late"
	late.Start = now.Add(5 * time.Hour)
	late.End = now.Add(6 * time.Hour)

	early := validDraft()
	early.Title = "Early"

	_, err := svc.Create(ctx, "usr_1", late)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "usr_1", early)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "usr_2", validDraft())
	require.NoError(t, err)

	events, err := svc.List(ctx, "usr_1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Early", events[0].Title)
	assert.Equal(t, "Late", events[1].Title)
}

func TestService_AddIsIdempotentPerID(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	d := validDraft()
	d.ID = "evt_fixed"

	_, err := svc.Create(ctx, "usr_1", d)
	require.NoError(t, err)

	d.Title = "Changed"
	_, err = svc.Create(ctx, "usr_1", d)
	require.NoError(t, err)

	events, err := svc.List(ctx, "usr_1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Team meeting", events[0].Title)
}

func TestService_RemoveIsIdempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	ev, err := svc.Create(ctx, "usr_1", validDraft())
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, "usr_1", ev.ID))
	require.NoError(t, svc.Remove(ctx, "usr_1", ev.ID))
	require.NoError(t, svc.Remove(ctx, "usr_1", "evt_missing"))

	_, err = svc.Get(ctx, "usr_1", ev.ID)
	assert.ErrorIs(t, err, event.ErrEventNotFound)
}

func TestService_RemoveOtherUsersEvent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	ev, err := svc.Create(ctx, "usr_1", validDraft())
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, "usr_2", ev.ID))

	_, err = svc.Get(ctx, "usr_1", ev.ID)
	assert.NoError(t, err)
}

func TestService_Next(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Next(ctx, "usr_1")
	assert.ErrorIs(t, err, event.ErrEventNotFound)

	past := validDraft()
	past.Title = "Past"
	past.Start = now.Add(-2 * time.Hour)
	past.End = now.Add(-time.Hour)
	_, err = svc.Create(ctx, "usr_1", past)
	require.NoError(t, err)

	upcoming := validDraft()
	upcoming.Title = "Upcoming"
	_, err = svc.Create(ctx, "usr_1", upcoming)
	require.NoError(t, err)

	next, err := svc.Next(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, "Upcoming", next.Title)
}

func TestService_PreviewDoesNotStore(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	ev, err := svc.Preview("usr_1", validDraft())
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)

	list, err := svc.List(ctx, "usr_1")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.Preview("usr_1", event.Draft{})
	var verr *event.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestService_UpcomingAcrossUsers(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	soon := validDraft()
	soon.Title = "Soon"
	_, err := svc.Create(ctx, "usr_1", soon)
	require.NoError(t, err)

	other := validDraft()
	other.Title = "Other user"
	other.Start = now.Add(time.Hour)
	other.End = now.Add(2 * time.Hour)
	_, err = svc.Create(ctx, "usr_2", other)
	require.NoError(t, err)

	later := validDraft()
	later.Title = "Next week"
	later.Start = now.Add(7 * 24 * time.Hour)
	later.End = later.Start.Add(time.Hour)
	_, err = svc.Create(ctx, "usr_1", later)
	require.NoError(t, err)

	events, err := svc.Upcoming(ctx, 48*time.Hour)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Other user", events[0].Title)
	assert.Equal(t, "usr_2", events[0].UserID)
	assert.Equal(t, "Soon", events[1].Title)
}
