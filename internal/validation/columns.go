package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hdsr-mid/peilbesluit-to-wis/internal/config"
	"github.com/hdsr-mid/peilbesluit-to-wis/internal/types"
)

// Canonical column names of a peilbesluit export, after header normalization.
const (
	ColPGID         = "pgid"
	ColStartdatum   = "startdatum"
	ColEinddatum    = "einddatum"
	ColEindWinter   = "eind_winter"
	ColBeginZomer   = "begin_zomer"
	ColEindZomer    = "eind_zomer"
	ColBeginWinter  = "begin_winter"
	ColZomerpeil    = "zomerpeil"
	ColWinterpeil   = "winterpeil"
	Col2eMargeOnder = "2e_marge_onder"
	Col1eMargeOnder = "1e_marge_onder"
	Col1eMargeBoven = "1e_marge_boven"
	Col2eMargeBoven = "2e_marge_boven"
)

// ExpectedColumns is the required header, in export order.
var ExpectedColumns = []string{
	ColPGID,
	ColStartdatum,
	ColEinddatum,
	ColEindWinter,
	ColBeginZomer,
	ColEindZomer,
	ColBeginWinter,
	ColZomerpeil,
	ColWinterpeil,
	Col2eMargeOnder,
	Col1eMargeOnder,
	Col1eMargeBoven,
	Col2eMargeBoven,
}

// DateLayout is the layout of startdatum and einddatum (e.g. 20200101).
const DateLayout = "20060102"

// column coerces one raw cell into its field of a Row.
type column interface {
	coerce(raw string, row *types.Row, decimalComma bool) *ValidationError
}

// identifierColumn is a required, non-empty text cell.
type identifierColumn struct {
	set func(*types.Row, string)
}

func (c identifierColumn) coerce(raw string, row *types.Row, _ bool) *ValidationError {
	if raw == "" {
		return &ValidationError{Rule: RuleRequired, Message: "value is empty"}
	}
	c.set(row, raw)
	return nil
}

// dateColumn is a YYYYMMDD calendar date.
type dateColumn struct {
	set func(*types.Row, time.Time)
}

func (c dateColumn) coerce(raw string, row *types.Row, _ bool) *ValidationError {
	// Excel sometimes turns 20200101 into 20200101.0
	raw = strings.TrimSuffix(raw, ".0")
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return &ValidationError{Rule: RuleType, Message: fmt.Sprintf("expected date format YYYYMMDD but found '%s'", raw)}
	}
	c.set(row, t)
	return nil
}

// monthDayColumn is a DD-MM seasonal transition date.
type monthDayColumn struct {
	set func(*types.Row, types.MonthDay)
}

func (c monthDayColumn) coerce(raw string, row *types.Row, _ bool) *ValidationError {
	md, err := types.ParseMonthDay(raw)
	if err != nil {
		return &ValidationError{Rule: RuleType, Message: fmt.Sprintf("expected date format DD-MM (e.g. 01-04) but found '%s'", raw)}
	}
	c.set(row, md)
	return nil
}

// boundedColumn is a number within [min, max], both inclusive.
type boundedColumn struct {
	min, max float64
	unit     string
	set      func(*types.Row, float64)
}

func (c boundedColumn) coerce(raw string, row *types.Row, decimalComma bool) *ValidationError {
	value := raw
	if decimalComma {
		value = strings.ReplaceAll(value, ",", ".")
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return &ValidationError{Rule: RuleType, Message: fmt.Sprintf("expected a number but found '%s'", raw)}
	}
	// NaN compares false against both bounds.
	if math.IsNaN(f) || f < c.min || f > c.max {
		return &ValidationError{Rule: RuleRange, Message: fmt.Sprintf("expected %g <= value <= %g %s but found %g", c.min, c.max, c.unit, f)}
	}
	c.set(row, f)
	return nil
}

// columnTable returns the coercion of every expected column, keyed by name.
func columnTable(b config.Bounds) map[string]column {
	return map[string]column{
		ColPGID:       identifierColumn{set: func(r *types.Row, v string) { r.PGID = v }},
		ColStartdatum: dateColumn{set: func(r *types.Row, v time.Time) { r.Start = v }},
		ColEinddatum:  dateColumn{set: func(r *types.Row, v time.Time) { r.End = v }},

		ColEindWinter:  monthDayColumn{set: func(r *types.Row, v types.MonthDay) { r.EindWinter = v }},
		ColBeginZomer:  monthDayColumn{set: func(r *types.Row, v types.MonthDay) { r.BeginZomer = v }},
		ColEindZomer:   monthDayColumn{set: func(r *types.Row, v types.MonthDay) { r.EindZomer = v }},
		ColBeginWinter: monthDayColumn{set: func(r *types.Row, v types.MonthDay) { r.BeginWinter = v }},

		ColZomerpeil:  boundedColumn{min: b.MinLevel, max: b.MaxLevel, unit: "mNAP", set: func(r *types.Row, v float64) { r.Zomerpeil = v }},
		ColWinterpeil: boundedColumn{min: b.MinLevel, max: b.MaxLevel, unit: "mNAP", set: func(r *types.Row, v float64) { r.Winterpeil = v }},

		Col2eMargeOnder: boundedColumn{min: b.MinLowerMargin, max: b.MaxLowerMargin, unit: "cm", set: func(r *types.Row, v float64) { r.TweedeMargeOnder = v }},
		Col1eMargeOnder: boundedColumn{min: b.MinLowerMargin, max: b.MaxLowerMargin, unit: "cm", set: func(r *types.Row, v float64) { r.EersteMargeOnder = v }},
		Col1eMargeBoven: boundedColumn{min: b.MinUpperMargin, max: b.MaxUpperMargin, unit: "cm", set: func(r *types.Row, v float64) { r.EersteMargeBoven = v }},
		Col2eMargeBoven: boundedColumn{min: b.MinUpperMargin, max: b.MaxUpperMargin, unit: "cm", set: func(r *types.Row, v float64) { r.TweedeMargeBoven = v }},
	}
}
