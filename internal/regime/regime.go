// =============================================================================
// Peilbesluit to WIS - Regime Builder
// =============================================================================
//
// A regime is the yearly repeating step function of one quantity. It is an
// ordered list of periods that together cover the calendar year exactly once:
//
//   Peilbesluitpeil (4 periods):
//     eind_winter  -> begin_zomer  : (zomerpeil + winterpeil) / 2
//     begin_zomer  -> eind_zomer   : zomerpeil
//     eind_zomer   -> begin_winter : (zomerpeil + winterpeil) / 2
//     begin_winter -> eind_winter  : winterpeil
//
//   Ondergrens (2 periods, marge m in cm):
//     begin_zomer  -> eind_zomer   : zomerpeil - m/100
//     eind_zomer   -> begin_zomer  : winterpeil - m/100
//
//   Bovengrens (2 periods, marge m in cm):
//     eind_winter  -> begin_winter : zomerpeil + m/100
//     begin_winter -> eind_winter  : winterpeil + m/100
//
// =============================================================================

package regime

import (
	"errors"
	"fmt"
	"time"

	"github.com/hdsr-mid/peilbesluit-to-wis/internal/types"
)

// ErrRegimeNotClosed is returned when the periods of a regime leave a gap,
// overlap, or do not wrap around to the first period.
var ErrRegimeNotClosed = errors.New("regime periods are not circularly closed")

// cmPerMeter converts margins (cm) to levels (m).
const cmPerMeter = 100.0

// Period is a constant level between two calendar points. The interval is
// half-open: Start is included, End is not.
type Period struct {
	Start types.MonthDay
	End   types.MonthDay
	Level float64
}

// Regime is the closed, ordered set of periods of one quantity for one row.
type Regime struct {
	quantity types.Quantity
	periods  []Period
}

// DefectError reports a regime that failed its closure check. It points at a
// code defect or at seasonal dates that slipped past validation.
type DefectError struct {
	PGID     string
	Quantity types.Quantity
	Periods  []Period
	Err      error
}

func (e *DefectError) Error() string {
	return fmt.Sprintf("pgid %s, %s: %v (periods: %s)", e.PGID, e.Quantity, e.Err, formatPeriods(e.Periods))
}

func (e *DefectError) Unwrap() error {
	return e.Err
}

// Build constructs the regime of quantity q for row. The closure invariant is
// always checked; a violation returns a *DefectError.
func Build(row types.Row, q types.Quantity) (*Regime, error) {
	var periods []Period

	switch q {
	case types.Peilbesluitpeil:
		avg := (row.Zomerpeil + row.Winterpeil) / 2
		periods = []Period{
			{Start: row.EindWinter, End: row.BeginZomer, Level: avg},
			{Start: row.BeginZomer, End: row.EindZomer, Level: row.Zomerpeil},
			{Start: row.EindZomer, End: row.BeginWinter, Level: avg},
			{Start: row.BeginWinter, End: row.EindWinter, Level: row.Winterpeil},
		}
	case types.EersteOndergrens:
		periods = ondergrens(row, row.EersteMargeOnder)
	case types.TweedeOndergrens:
		periods = ondergrens(row, row.TweedeMargeOnder)
	case types.EersteBovengrens:
		periods = bovengrens(row, row.EersteMargeBoven)
	case types.TweedeBovengrens:
		periods = bovengrens(row, row.TweedeMargeBoven)
	default:
		return nil, fmt.Errorf("unknown quantity %d", int(q))
	}

	if err := checkClosed(periods); err != nil {
		return nil, &DefectError{PGID: row.PGID, Quantity: q, Periods: periods, Err: err}
	}

	return &Regime{quantity: q, periods: periods}, nil
}

func ondergrens(row types.Row, margeCM float64) []Period {
	m := margeCM / cmPerMeter
	return []Period{
		{Start: row.BeginZomer, End: row.EindZomer, Level: row.Zomerpeil - m},
		{Start: row.EindZomer, End: row.BeginZomer, Level: row.Winterpeil - m},
	}
}

func bovengrens(row types.Row, margeCM float64) []Period {
	m := margeCM / cmPerMeter
	return []Period{
		{Start: row.EindWinter, End: row.BeginWinter, Level: row.Zomerpeil + m},
		{Start: row.BeginWinter, End: row.EindWinter, Level: row.Winterpeil + m},
	}
}

// checkClosed verifies that every period ends where the next one starts, that
// the last one ends where the first one starts, and that the starts run once
// around the calendar exactly once.
func checkClosed(periods []Period) error {
	if len(periods) < 2 {
		return fmt.Errorf("%w: need at least 2 periods, got %d", ErrRegimeNotClosed, len(periods))
	}

	wraps := 0
	for i, p := range periods {
		next := periods[(i+1)%len(periods)]
		if p.End != next.Start {
			return fmt.Errorf("%w: period %d ends at %s but period %d starts at %s",
				ErrRegimeNotClosed, i, p.End, (i+1)%len(periods), next.Start)
		}
		if p.Start == p.End {
			return fmt.Errorf("%w: period %d is empty (%s)", ErrRegimeNotClosed, i, p.Start)
		}
		if !p.Start.Before(next.Start) {
			wraps++
		}
	}

	if wraps != 1 {
		return fmt.Errorf("%w: period starts wrap around the year %d times", ErrRegimeNotClosed, wraps)
	}

	return nil
}

// Quantity returns the quantity this regime was built for.
func (r *Regime) Quantity() types.Quantity {
	return r.quantity
}

// Periods returns a copy of the periods in construction order.
func (r *Regime) Periods() []Period {
	out := make([]Period, len(r.periods))
	copy(out, r.periods)
	return out
}

// LevelAt returns the level in effect on the given calendar day. The period
// list is cyclic: a day before the earliest start (or after the latest start)
// falls in the period that wraps around new year.
func (r *Regime) LevelAt(month, day int) float64 {
	return r.periodAt(types.MonthDay{Month: time.Month(month), Day: day}).Level
}

// LevelOn returns the level in effect on the calendar day of t.
func (r *Regime) LevelOn(t time.Time) float64 {
	return r.LevelAt(int(t.Month()), t.Day())
}

func (r *Regime) periodAt(md types.MonthDay) Period {
	// The period with the latest start on or before md wins. When md precedes
	// every start, the period with the latest start overall wraps into it.
	var (
		best, latest       Period
		haveBest, haveLate bool
	)
	for _, p := range r.periods {
		if !md.Before(p.Start) && (!haveBest || best.Start.Before(p.Start)) {
			best, haveBest = p, true
		}
		if !haveLate || latest.Start.Before(p.Start) {
			latest, haveLate = p, true
		}
	}
	if haveBest {
		return best
	}
	return latest
}

func formatPeriods(periods []Period) string {
	s := ""
	for i, p := range periods {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("[%s->%s %.4f]", p.Start, p.End, p.Level)
	}
	return s
}
