// =============================================================================
// Peilbesluit to WIS - Validation Engine
// =============================================================================
//
// This module validates a peilbesluit table and splits its rows into accepted
// area groups and rejected rows with reasons.
//
// VALIDATION STRATEGY:
//   Every check runs on every row; errors are collected, not thrown, so one
//   run shows an operator everything that is wrong with a row.
//   1. Schema: every expected column is present (fatal if not), and every
//      row has as many cells as the header.
//   2. Cells: type coercion and inclusive range checks per column.
//   3. Seasons: eind_winter < begin_zomer < eind_zomer < begin_winter,
//      compared within one synthetic year.
//   4. Margins: 1e marge <= 2e marge, for onder and boven.
//   5. Window: startdatum < einddatum.
//   6. Contiguity: rows of one pgid, sorted by startdatum, must connect:
//      einddatum of a row equals startdatum of the next. The later row of a
//      broken pair gets the error.
//   7. Propagation: one bad row rejects every row of its pgid.
//
// ERROR HANDLING:
//   - A missing or unexpected column is fatal (ErrMissingColumn,
//     ErrUnexpectedColumn).
//   - Row errors are collected in the Result, unless RaiseOnRowError is set;
//     then the first erroneous row aborts validation with a *RowError.
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hdsr-mid/peilbesluit-to-wis/internal/config"
	"github.com/hdsr-mid/peilbesluit-to-wis/internal/csvparser"
	"github.com/hdsr-mid/peilbesluit-to-wis/internal/types"
)

// ErrMissingColumn is returned when a required column is absent from the header.
var ErrMissingColumn = errors.New("required column missing")

// ErrUnexpectedColumn is returned when the header holds a column that is not
// expected, or an expected column twice.
var ErrUnexpectedColumn = errors.New("unexpected column")

// Validation rules, used to group errors in the run summary.
const (
	RuleColumnCount = "column_count"
	RuleRequired    = "required"
	RuleType        = "type"
	RuleRange       = "range"
	RuleSeasonOrder = "season_order"
	RuleMarginOrder = "margin_order"
	RuleWindowOrder = "window_order"
	RuleContiguity  = "contiguity"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError is one failed check on one row.
type ValidationError struct {
	// Row is the zero-based record index in the table.
	Row int

	// Line is the source line (csv) or sheet row (xlsx) of the record.
	Line int

	// PGID is the area of the row, when it could be read.
	PGID string

	// Field is the column that failed, empty for cross-field checks.
	Field string

	// Rule is the check that was violated, one of the Rule* constants.
	Rule string

	// Message is a human-readable description without commas.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("line %d, pgid '%s', column '%s': %s", e.Line, e.PGID, e.Field, e.Message)
	}
	return fmt.Sprintf("line %d, pgid '%s': %s", e.Line, e.PGID, e.Message)
}

// text is the message as shown in the diagnostics error column.
func (e *ValidationError) text() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// RowError aborts validation when RaiseOnRowError is set.
type RowError struct {
	Row    int
	Line   int
	PGID   string
	Errors []*ValidationError
}

func (e *RowError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.text()
	}
	return fmt.Sprintf("row error on line %d (pgid '%s'): %s", e.Line, e.PGID, strings.Join(msgs, MessageSeparator))
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// Result is the outcome of validating one table.
type Result struct {
	// Table is the validated input.
	Table *csvparser.Table

	// Rows holds the coerced row per record index. Fields that failed
	// coercion keep their zero value.
	Rows []types.Row

	// Errors maps record index to the errors found on that row.
	Errors map[int][]*ValidationError

	// Accepted are the area groups without any error, sorted by pgid, each
	// sorted by startdatum.
	Accepted []types.AreaGroup

	// RejectedPGIDs lists every pgid with at least one error, sorted.
	RejectedPGIDs []string

	// RejectedRows counts rows dropped, including rows dropped by propagation.
	RejectedRows int
}

// IsValid is true when no row was rejected.
func (r *Result) IsValid() bool {
	return r.RejectedRows == 0
}

// AcceptedRows counts the rows in the accepted area groups.
func (r *Result) AcceptedRows() int {
	n := 0
	for _, g := range r.Accepted {
		n += len(g.Rows)
	}
	return n
}

// Rejected returns the error messages per rejected record index.
func (r *Result) Rejected() map[int][]string {
	out := make(map[int][]string, len(r.Errors))
	for idx, errs := range r.Errors {
		for _, ve := range errs {
			out[idx] = append(out[idx], ve.text())
		}
	}
	return out
}

// RuleCounts counts errors per rule, for the run summary.
func (r *Result) RuleCounts() map[string]int {
	counts := make(map[string]int)
	for _, errs := range r.Errors {
		for _, ve := range errs {
			counts[ve.Rule]++
		}
	}
	return counts
}

// AllErrors returns every error ordered by row.
func (r *Result) AllErrors() []*ValidationError {
	indexes := make([]int, 0, len(r.Errors))
	for idx := range r.Errors {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	var all []*ValidationError
	for _, idx := range indexes {
		all = append(all, r.Errors[idx]...)
	}
	return all
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Options contains options for validation.
type Options struct {
	// Bounds are the inclusive level and margin limits.
	Bounds config.Bounds

	// RaiseOnRowError stops at the first row with an error.
	RaiseOnRowError bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{Bounds: config.DefaultBounds()}
}

// Validator validates peilbesluit tables.
type Validator struct {
	options Options
	columns map[string]column
	logger  *zap.Logger
}

// NewValidator creates a Validator. A nil logger is allowed.
func NewValidator(options Options, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		options: options,
		columns: columnTable(options.Bounds),
		logger:  logger,
	}
}

// =============================================================================
// MAIN VALIDATION FUNCTION
// =============================================================================

// Validate checks every row of table.
//
// RETURNS:
//   - The Result with accepted groups and rejected rows.
//   - ErrMissingColumn or ErrUnexpectedColumn (fatal), or a *RowError when
//     RaiseOnRowError is set.
func (v *Validator) Validate(table *csvparser.Table) (*Result, error) {
	if err := v.checkHeader(table); err != nil {
		return nil, err
	}

	result := &Result{
		Table:  table,
		Rows:   make([]types.Row, len(table.Records)),
		Errors: make(map[int][]*ValidationError),
	}

	// Per row checks. parsed[i] tells which fields of row i are usable.
	parsed := make([]map[string]bool, len(table.Records))
	for i := range table.Records {
		row, ok, errs := v.validateRow(table, i)
		result.Rows[i] = row
		parsed[i] = ok
		v.addErrors(result, i, errs)
	}

	// Cross row checks.
	v.checkContiguity(result, parsed)

	if v.options.RaiseOnRowError && len(result.Errors) > 0 {
		first := result.AllErrors()[0]
		return nil, &RowError{
			Row:    first.Row,
			Line:   first.Line,
			PGID:   first.PGID,
			Errors: result.Errors[first.Row],
		}
	}

	v.partition(result)

	v.logger.Info("validated table",
		zap.Int("rows", len(table.Records)),
		zap.Int("accepted_rows", result.AcceptedRows()),
		zap.Int("rejected_rows", result.RejectedRows),
		zap.Int("accepted_pgids", len(result.Accepted)),
		zap.Int("rejected_pgids", len(result.RejectedPGIDs)),
	)

	return result, nil
}

// checkHeader verifies that every expected column is present.
func (v *Validator) checkHeader(table *csvparser.Table) error {
	var missing []string
	for _, name := range ExpectedColumns {
		if table.ColumnIndex(name) < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s (found columns: %s)", ErrMissingColumn,
			strings.Join(missing, ", "), strings.Join(table.Headers, ", "))
	}

	var unexpected []string
	seen := make(map[string]bool, len(table.Headers))
	for _, name := range table.Headers {
		if _, known := v.columns[name]; !known || seen[name] {
			unexpected = append(unexpected, name)
		}
		seen[name] = true
	}
	if len(unexpected) > 0 {
		return fmt.Errorf("%w: %s (expected columns: %s)", ErrUnexpectedColumn,
			strings.Join(unexpected, ", "), strings.Join(ExpectedColumns, ", "))
	}

	return nil
}

// validateRow runs the schema, cell, season, margin and window checks on one row.
func (v *Validator) validateRow(table *csvparser.Table, i int) (types.Row, map[string]bool, []*ValidationError) {
	record := table.Records[i]
	row := types.Row{Index: i}
	ok := make(map[string]bool, len(ExpectedColumns))
	var errs []*ValidationError

	if len(record) != len(table.Headers) {
		errs = append(errs, &ValidationError{
			Rule:    RuleColumnCount,
			Message: fmt.Sprintf("expected %d columns but found %d", len(table.Headers), len(record)),
		})
	}

	// 1. cells
	decimalComma := table.Delimiter == ';'
	for _, name := range ExpectedColumns {
		raw := table.Value(i, name)
		if raw == "" && name != ColPGID {
			errs = append(errs, &ValidationError{Field: name, Rule: RuleRequired, Message: "value is empty"})
			continue
		}
		if ve := v.columns[name].coerce(raw, &row, decimalComma); ve != nil {
			ve.Field = name
			errs = append(errs, ve)
			continue
		}
		ok[name] = true
	}

	// 2. seasons
	if ok[ColEindWinter] && ok[ColBeginZomer] && ok[ColEindZomer] && ok[ColBeginWinter] {
		ordered := row.EindWinter.Before(row.BeginZomer) &&
			row.BeginZomer.Before(row.EindZomer) &&
			row.EindZomer.Before(row.BeginWinter)
		if !ordered {
			errs = append(errs, &ValidationError{
				Rule: RuleSeasonOrder,
				Message: fmt.Sprintf("expected eind_winter < begin_zomer < eind_zomer < begin_winter but found %s %s %s %s",
					row.EindWinter, row.BeginZomer, row.EindZomer, row.BeginWinter),
			})
		}
	}

	// 3. margins
	if ok[Col1eMargeOnder] && ok[Col2eMargeOnder] && row.EersteMargeOnder > row.TweedeMargeOnder {
		errs = append(errs, &ValidationError{
			Rule: RuleMarginOrder,
			Message: fmt.Sprintf("invalid onder marges as we expected 1e_marge_onder <= 2e_marge_onder but found %g > %g",
				row.EersteMargeOnder, row.TweedeMargeOnder),
		})
	}
	if ok[Col1eMargeBoven] && ok[Col2eMargeBoven] && row.EersteMargeBoven > row.TweedeMargeBoven {
		errs = append(errs, &ValidationError{
			Rule: RuleMarginOrder,
			Message: fmt.Sprintf("invalid boven marges as we expected 1e_marge_boven <= 2e_marge_boven but found %g > %g",
				row.EersteMargeBoven, row.TweedeMargeBoven),
		})
	}

	// 4. window
	if ok[ColStartdatum] && ok[ColEinddatum] && !row.Start.Before(row.End) {
		errs = append(errs, &ValidationError{
			Rule: RuleWindowOrder,
			Message: fmt.Sprintf("expected startdatum < einddatum but found %s >= %s",
				row.Start.Format(DateLayout), row.End.Format(DateLayout)),
		})
	}

	return row, ok, errs
}

// checkContiguity verifies that the rows of each pgid connect without gap or
// overlap. Rows whose pgid or dates could not be read are left out.
func (v *Validator) checkContiguity(result *Result, parsed []map[string]bool) {
	byPGID := make(map[string][]int)
	for i, row := range result.Rows {
		if parsed[i][ColPGID] && parsed[i][ColStartdatum] && parsed[i][ColEinddatum] {
			byPGID[row.PGID] = append(byPGID[row.PGID], i)
		}
	}

	for _, indexes := range byPGID {
		sortByStart(result.Rows, indexes)
		for j := 1; j < len(indexes); j++ {
			prev := result.Rows[indexes[j-1]]
			cur := result.Rows[indexes[j]]
			if cur.Start.Equal(prev.End) {
				continue
			}
			v.addErrors(result, indexes[j], []*ValidationError{{
				Rule: RuleContiguity,
				Message: fmt.Sprintf("subsequent rows of the same pgid must connect (no gap and no overlap): startdatum=%s previous einddatum=%s",
					cur.Start.Format(DateLayout), prev.End.Format(DateLayout)),
			}})
		}
	}
}

// partition rejects every pgid with an error and groups the remaining rows.
func (v *Validator) partition(result *Result) {
	rejected := make(map[string]bool)
	for idx := range result.Errors {
		rejected[result.Rows[idx].PGID] = true
	}

	groups := make(map[string][]int)
	for i, row := range result.Rows {
		if rejected[row.PGID] {
			result.RejectedRows++
			continue
		}
		groups[row.PGID] = append(groups[row.PGID], i)
	}

	for pgid := range rejected {
		result.RejectedPGIDs = append(result.RejectedPGIDs, pgid)
	}
	sort.Strings(result.RejectedPGIDs)

	pgids := make([]string, 0, len(groups))
	for pgid := range groups {
		pgids = append(pgids, pgid)
	}
	sort.Strings(pgids)

	for _, pgid := range pgids {
		indexes := groups[pgid]
		sortByStart(result.Rows, indexes)
		group := types.AreaGroup{PGID: pgid, Rows: make([]types.Row, len(indexes))}
		for j, idx := range indexes {
			group.Rows[j] = result.Rows[idx]
		}
		result.Accepted = append(result.Accepted, group)
	}

	for _, pgid := range result.RejectedPGIDs {
		v.logger.Debug("rejected pgid", zap.String("pgid", pgid))
	}
}

// addErrors records errs on row i, filling in the row context.
func (v *Validator) addErrors(result *Result, i int, errs []*ValidationError) {
	if len(errs) == 0 {
		return
	}
	line := i + 2
	if i < len(result.Table.LineNumbers) {
		line = result.Table.LineNumbers[i]
	}
	for _, ve := range errs {
		ve.Row = i
		ve.Line = line
		ve.PGID = result.Rows[i].PGID
		ve.Message = strings.ReplaceAll(ve.Message, ",", "")
		v.logger.Debug("row error", zap.Error(ve))
	}
	result.Errors[i] = append(result.Errors[i], errs...)
}

func sortByStart(rows []types.Row, indexes []int) {
	sort.SliceStable(indexes, func(a, b int) bool {
		return rows[indexes[a]].Start.Before(rows[indexes[b]].Start)
	})
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation errors for display or logging.
func FormatErrors(errs []*ValidationError) string {
	if len(errs) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Validation completed with %d error(s):\n", len(errs)))
	for i, err := range errs {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}
