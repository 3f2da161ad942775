// =============================================================================
// Peilbesluit to WIS - Shared Types
// =============================================================================
//
// This package contains the domain types shared by the validation, regime,
// timeseries and xmlwriter packages. Keeping them here avoids import cycles
// between the pipeline stages.
//
// =============================================================================

package types

import (
	"fmt"
	"time"
)

// =============================================================================
// CALENDAR TYPES
// =============================================================================

// ReferenceYear is the synthetic (leap) year used to compare month-day pairs.
// A leap year keeps 29-02 valid.
const ReferenceYear = 2000

// MonthDay is a calendar point without a year, e.g. 01-04 for April 1.
type MonthDay struct {
	Month time.Month
	Day   int
}

// ParseMonthDay parses a DD-MM string such as "01-04".
// Single digit parts ("1-4") are accepted as well.
func ParseMonthDay(s string) (MonthDay, error) {
	t, err := time.Parse("2-1", s)
	if err != nil {
		return MonthDay{}, fmt.Errorf("expected date format DD-MM (e.g. 01-04 for April 1) but found %q", s)
	}
	return MonthDay{Month: t.Month(), Day: t.Day()}, nil
}

// MonthDayOf returns the month-day part of t.
func MonthDayOf(t time.Time) MonthDay {
	return MonthDay{Month: t.Month(), Day: t.Day()}
}

// In returns the concrete date of md in the given year. The second return
// value is false when md does not exist in that year (29-02 in a non-leap year).
func (md MonthDay) In(year int) (time.Time, bool) {
	t := time.Date(year, md.Month, md.Day, 0, 0, 0, 0, time.UTC)
	return t, t.Month() == md.Month && t.Day() == md.Day
}

// Before reports whether md comes before other within a calendar year.
func (md MonthDay) Before(other MonthDay) bool {
	if md.Month != other.Month {
		return md.Month < other.Month
	}
	return md.Day < other.Day
}

// String returns md in DD-MM notation.
func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", md.Day, int(md.Month))
}

// =============================================================================
// ROW TYPES
// =============================================================================

// Row is one validated peilbesluit record: the levels and margins of one area
// (pgid) during one validity window.
type Row struct {
	// Index is the zero-based position of the row in the input table.
	Index int

	// PGID is the area (peilgebied) identifier.
	PGID string

	// Start and End are the validity window. Start < End.
	Start time.Time
	End   time.Time

	// Seasonal transition dates, ordered EindWinter < BeginZomer < EindZomer < BeginWinter.
	EindWinter  MonthDay
	BeginZomer  MonthDay
	EindZomer   MonthDay
	BeginWinter MonthDay

	// Zomerpeil and Winterpeil are the summer and winter levels in mNAP.
	Zomerpeil  float64
	Winterpeil float64

	// Margins in centimeters.
	TweedeMargeOnder float64
	EersteMargeOnder float64
	EersteMargeBoven float64
	TweedeMargeBoven float64
}

// AreaGroup holds all accepted rows of one area, ordered by start date.
// Adjacent rows are contiguous: Rows[i].End == Rows[i+1].Start.
type AreaGroup struct {
	PGID string
	Rows []Row
}

// Start returns the start of the first row.
func (g AreaGroup) Start() time.Time {
	return g.Rows[0].Start
}

// End returns the end of the last row.
func (g AreaGroup) End() time.Time {
	return g.Rows[len(g.Rows)-1].End
}

// =============================================================================
// QUANTITY TYPES
// =============================================================================

// Quantity enumerates the five series written per area.
type Quantity int

const (
	Peilbesluitpeil Quantity = iota
	EersteOndergrens
	TweedeOndergrens
	EersteBovengrens
	TweedeBovengrens
)

// Quantities lists all quantities in output order.
var Quantities = []Quantity{
	Peilbesluitpeil,
	EersteOndergrens,
	TweedeOndergrens,
	EersteBovengrens,
	TweedeBovengrens,
}

// QuantityMeta is the fixed series metadata of a quantity.
type QuantityMeta struct {
	LongName    string
	ParameterID string
	Units       string
}

// SourceSystem is written in every series header.
const SourceSystem = "tijdreeks FEWS-PI.xls"

var quantityMeta = map[Quantity]QuantityMeta{
	Peilbesluitpeil:  {LongName: "Peilbesluitpeil", ParameterID: "Hpl", Units: "m"},
	EersteOndergrens: {LongName: "Peilbesluitpeil eerste ondergrens", ParameterID: "Hpl.o.0", Units: "m"},
	TweedeOndergrens: {LongName: "Peilbesluitpeil tweede ondergrens", ParameterID: "Hpl.2o.0", Units: "m"},
	EersteBovengrens: {LongName: "Peilbesluitpeil eerste bovengrens", ParameterID: "Hpl.b.0", Units: "m"},
	TweedeBovengrens: {LongName: "Peilbesluitpeil tweede bovengrens", ParameterID: "Hpl.2b.0", Units: "m"},
}

// Meta returns the series metadata of q.
func (q Quantity) Meta() QuantityMeta {
	return quantityMeta[q]
}

// String returns a snake_case name, used in logs and error messages.
func (q Quantity) String() string {
	switch q {
	case Peilbesluitpeil:
		return "peilbesluitpeil"
	case EersteOndergrens:
		return "eerste_ondergrens"
	case TweedeOndergrens:
		return "tweede_ondergrens"
	case EersteBovengrens:
		return "eerste_bovengrens"
	case TweedeBovengrens:
		return "tweede_bovengrens"
	default:
		return fmt.Sprintf("quantity(%d)", int(q))
	}
}
