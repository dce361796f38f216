// Package departure computes when to leave home for an event.
package departure

import (
	"time"

	"github.com/morningready/morningready/internal/event"
	"github.com/morningready/morningready/internal/travel"
)

// ComputeLeaveTime returns the event start minus the travel estimate and the
// event buffer. The result is never clamped, so it may fall before now or on
// the previous day.
func ComputeLeaveTime(ev event.Event, eta travel.Estimate) time.Time {
	return ev.Start.Add(-time.Duration(eta.Minutes+ev.BufferMinutes) * time.Minute)
}
