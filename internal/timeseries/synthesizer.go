// =============================================================================
// Peilbesluit to WIS - Series Synthesizer
// =============================================================================
//
// Synthesize walks the validity window of one row year by year and emits an
// event at every regime boundary inside the window, framed by an event at the
// window start and one at the window end.
//
// MULTI-ROW AREAS:
//   Rows of one area are contiguous (row[i].End == row[i+1].Start). The end
//   event of every row except the last is dropped: the next row opens with an
//   event on that same date, carrying its own level. Concatenating the output
//   of all rows therefore gives one strictly increasing series.
//
// Levels are returned unrounded; formatting is the writer's job.
//
// =============================================================================

package timeseries

import (
	"sort"
	"time"

	"github.com/hdsr-mid/peilbesluit-to-wis/internal/regime"
)

// Event is one dated level of a series.
type Event struct {
	Date  time.Time
	Level float64
}

// Synthesize returns the events of one row. It keeps no state between calls.
//
// PARAMETERS:
//   - r: The regime of the quantity being written.
//   - start, end: The validity window of the row (start < end).
//   - The third argument tells whether this is the first row of its area.
//     Every row opens with its own start event, so it is ignored.
//   - isLast: Whether this is the last row of its area.
//
// RETURNS:
//   - The events in strictly increasing date order.
func Synthesize(r *regime.Regime, start, end time.Time, _ bool, isLast bool) []Event {
	start = dateOnly(start)
	end = dateOnly(end)

	events := []Event{{Date: start, Level: r.LevelOn(start)}}

	for year := start.Year(); year <= end.Year(); year++ {
		for _, boundary := range boundariesIn(r, year) {
			prev := events[len(events)-1].Date
			if boundary.Date.After(prev) && boundary.Date.Before(end) {
				events = append(events, boundary)
			}
		}
	}

	if end.After(events[len(events)-1].Date) {
		events = append(events, Event{Date: end, Level: r.LevelOn(end)})
	}

	if !isLast {
		events = events[:len(events)-1]
	}

	return events
}

// boundariesIn returns the period starts of one year in date order. A start
// that does not exist in the year (29-02 outside leap years) rolls over to
// the next day. Levels come from LevelOn, so when two starts land on the same
// date the later period wins.
func boundariesIn(r *regime.Regime, year int) []Event {
	periods := r.Periods()
	out := make([]Event, 0, len(periods))
	for _, p := range periods {
		date, _ := p.Start.In(year)
		out = append(out, Event{Date: date, Level: r.LevelOn(date)})
	}

	// Periods are ordered cyclically, not necessarily from January.
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	return out
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
