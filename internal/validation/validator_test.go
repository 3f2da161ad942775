package validation

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdsr-mid/peilbesluit-to-wis/internal/csvparser"
	"github.com/hdsr-mid/peilbesluit-to-wis/internal/xlsxparser"
)

const header = "pgid,startdatum,einddatum,eind_winter,begin_zomer,eind_zomer,begin_winter,zomerpeil,winterpeil,2e_marge_onder,1e_marge_onder,1e_marge_boven,2e_marge_boven"

func parseTable(t *testing.T, lines ...string) *csvparser.Table {
	t.Helper()
	table, err := csvparser.ParseReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	return table
}

func validate(t *testing.T, lines ...string) *Result {
	t.Helper()
	result, err := NewValidator(DefaultOptions(), nil).Validate(parseTable(t, lines...))
	require.NoError(t, err)
	return result
}

func rulesOf(errs []*ValidationError) []string {
	rules := make([]string, len(errs))
	for i, e := range errs {
		rules[i] = e.Rule
	}
	return rules
}

func TestValidate_AcceptsContiguousRows(t *testing.T) {
	result := validate(t, header,
		"PG0002,20210101,20220101,01-04,01-05,01-09,01-10,1.6,1.3,25,10,10,25",
		"PG0001,20200101,20210101,01-04,01-05,01-09,01-10,1.5,1.25,25,10,10,25",
		"PG0002,20200101,20210101,01-04,01-05,01-09,01-10,1.5,1.25,25,10,10,25",
	)

	assert.True(t, result.IsValid())
	assert.Empty(t, result.Errors)
	require.Len(t, result.Accepted, 2)

	assert.Equal(t, "PG0001", result.Accepted[0].PGID)
	g := result.Accepted[1]
	assert.Equal(t, "PG0002", g.PGID)
	require.Len(t, g.Rows, 2)
	assert.Equal(t, 2, g.Rows[0].Index)
	assert.Equal(t, 0, g.Rows[1].Index)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), g.Start())
	assert.Equal(t, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), g.End())
	assert.InDelta(t, 1.6, g.Rows[1].Zomerpeil, 1e-9)
	assert.InDelta(t, 25, g.Rows[1].TweedeMargeBoven, 1e-9)
	assert.Equal(t, 3, result.AcceptedRows())
}

func TestValidate_MissingColumnIsFatal(t *testing.T) {
	table := parseTable(t,
		"pgid,startdatum,einddatum",
		"PG0001,20200101,20210101",
	)

	_, err := NewValidator(DefaultOptions(), nil).Validate(table)
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "zomerpeil")
}

func TestValidate_UnexpectedColumnIsFatal(t *testing.T) {
	tests := []struct {
		name   string
		header string
		row    string
		want   string
	}{
		{
			name:   "extra column",
			header: header + ",opmerking",
			row:    "PG0001,20200101,20210101,01-04,01-05,01-09,01-10,1.5,1.25,25,10,10,25,x",
			want:   "opmerking",
		},
		{
			name:   "duplicate column",
			header: header + ",zomerpeil",
			row:    "PG0001,20200101,20210101,01-04,01-05,01-09,01-10,1.5,1.25,25,10,10,25,1.5",
			want:   "zomerpeil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := parseTable(t, tt.header, tt.row)

			_, err := NewValidator(DefaultOptions(), nil).Validate(table)
			require.ErrorIs(t, err, ErrUnexpectedColumn)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_RowChecks(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want []string
	}{
		{
			name: "margin order onder",
			row:  "PG0001,20200101,20210101,01-04,01-05,01-09,01-10,1.5,1.25,10,25,10,25",
			want: []string{RuleMarginOrder},
		},
		{
			name: "margin order boven",
			row:  "PG0001,20200101,20210101,01-04,01-05,01-09,01-10,1.5,1.25,25,10,30,25",
			want: []string{RuleMarginOrder},
		},
		{
			name: "season order",
			row:  "PG0001,20200101,20210101,01-05,01-04,01-09,01-10,1.5,1.25,25,10,10,25",
			want: []string{RuleSeasonOrder},
		},
		{
			name: "collapsed season",
			row:  "PG0001,20200101,20210101,01-04,01-04,01-09,01-10,1.5,1.25,25,10,10,25",
			want: []string{RuleSeasonOrder},
		},
		{
			name: "window order",
			row:  "PG0001,20210101,20200101,01-04,01-05,01-09,01-10,1.5,1.25,25,10,10,25",
			want: []string{RuleWindowOrder},
		},
		{
			name: "level out of range",
			row:  "PG0001,20200101,20210101,01-04,01-05,01-09,01-10,10.01,1.25,25,10,10,25",
			want: []string{RuleRange},
		},
		{
			name: "NaN level",
			row:  "PG0001,20200101,20210101,01-04,01-05,01-09,01-10,NaN,1.25,25,10,10,25",
			want: []string{RuleRange},
		},
		{
			name: "NaN margin",
			row:  "PG0001,20200101,20210101,01-04,01-05,01-09,01-10,1.5,1.25,25,10,NaN,25",
			want: []string{RuleRange},
		},
		{
			name: "negative margin",
			row:  "PG0001,20200101,20210101,01-04,01-05,01-09,01-10,1.5,1.25,25,-1,10,25",
			want: []string{RuleRange},
		},
		{
			name: "bad date",
			row:  "PG0001,2020-01-01,20210101,01-04,01-05,01-09,01-10,1.5,1.25,25,10,10,25",
			want: []string{RuleType},
		},
		{
			name: "bad month day",
			row:  "PG0001,20200101,20210101,31-02,01-05,01-09,01-10,1.5,1.25,25,10,10,25",
			want: []string{RuleType},
		},
		{
			name: "empty level",
			row:  "PG0001,20200101,20210101,01-04,01-05,01-09,01-10,,1.25,25,10,10,25",
			want: []string{RuleRequired},
		},
		{
			name: "short row",
			row:  "PG0001,20200101,20210101,01-04,01-05,01-09,01-10,1.5,1.25,25,10,10",
			want: []string{RuleColumnCount, RuleRequired},
		},
		{
			name: "errors accumulate",
			row:  "PG0001,20210101,20200101,01-05,01-04,01-09,01-10,abc,1.25,10,25,10,25",
			want: []string{RuleType, RuleSeasonOrder, RuleMarginOrder, RuleWindowOrder},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validate(t, header, tt.row)

			assert.Empty(t, result.Accepted)
			assert.Equal(t, []string{"PG0001"}, result.RejectedPGIDs)
			assert.Equal(t, 1, result.RejectedRows)
			assert.Equal(t, tt.want, rulesOf(result.Errors[0]))
			for _, e := range result.Errors[0] {
				assert.Equal(t, 2, e.Line)
				assert.NotContains(t, e.Message, ",")
			}
		})
	}
}

func TestValidate_BoundsAreInclusive(t *testing.T) {
	result := validate(t, header,
		"PG0001,20200101,20210101,01-04,01-05,01-09,01-10,10,-10,1000,0,0,1000",
	)

	assert.True(t, result.IsValid())
	require.Len(t, result.Accepted, 1)
}

func TestValidate_DecimalComma(t *testing.T) {
	semicolon := strings.ReplaceAll(header, ",", ";")
	result := validate(t, semicolon,
		"PG0001;20200101;20210101;01-04;01-05;01-09;01-10;1,5;1,25;25;10;10;25",
	)
	require.Len(t, result.Accepted, 1)
	assert.InDelta(t, 1.5, result.Accepted[0].Rows[0].Zomerpeil, 1e-9)

	// A quoted decimal comma in a comma separated file is not a number.
	result = validate(t, header,
		`PG0001,20200101,20210101,01-04,01-05,01-09,01-10,"1,5",1.25,25,10,10,25`,
	)
	assert.Equal(t, []string{RuleType}, rulesOf(result.Errors[0]))
}

func TestValidate_ContiguityErrorOnLaterRow(t *testing.T) {
	result := validate(t, header,
		"PG0001,20200101,20210101,01-04,01-05,01-09,01-10,1.5,1.25,25,10,10,25",
		"PG0001,20210102,20220101,01-04,01-05,01-09,01-10,1.5,1.25,25,10,10,25",
		"PG0002,20200101,20210101,01-04,01-05,01-09,01-10,1.5,1.25,25,10,10,25",
		"PG0002,20200601,20220101,01-04,01-05,01-09,01-10,1.5,1.25,25,10,10,25",
	)

	assert.NotContains(t, result.Errors, 0)
	assert.Equal(t, []string{RuleContiguity}, rulesOf(result.Errors[1]))
	assert.NotContains(t, result.Errors, 2)
	assert.Equal(t, []string{RuleContiguity}, rulesOf(result.Errors[3]))
	assert.Equal(t, []string{"PG0001", "PG0002"}, result.RejectedPGIDs)
	assert.Empty(t, result.Accepted)
}

func TestValidate_PropagationRejectsWholeArea(t *testing.T) {
	result := validate(t, header,
		"PG0001,20200101,20210101,01-04,01-05,01-09,01-10,1.5,1.25,25,10,10,25",
		"PG0001,20210101,20220101,01-04,01-05,01-09,01-10,99,1.25,25,10,10,25",
		"PG0003,20200101,20210101,01-04,01-05,01-09,01-10,1.5,1.25,25,10,10,25",
	)

	assert.Equal(t, []string{"PG0001"}, result.RejectedPGIDs)
	assert.Equal(t, 2, result.RejectedRows)
	assert.Len(t, result.Errors, 1)
	require.Len(t, result.Accepted, 1)
	assert.Equal(t, "PG0003", result.Accepted[0].PGID)
	assert.False(t, result.IsValid())
	assert.Equal(t, map[string]int{RuleRange: 1}, result.RuleCounts())
}

func TestValidate_RaiseOnRowError(t *testing.T) {
	table := parseTable(t, header,
		"PG0001,20200101,20210101,01-04,01-05,01-09,01-10,1.5,1.25,25,10,10,25",
		"PG0001,20210102,20220101,01-04,01-05,01-09,01-10,1.5,1.25,25,10,10,25",
		"PG0002,20200101,20210101,01-04,01-05,01-09,01-10,1.5,1.25,10,25,10,25",
	)

	opts := DefaultOptions()
	opts.RaiseOnRowError = true
	_, err := NewValidator(opts, nil).Validate(table)

	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 1, rowErr.Row)
	assert.Equal(t, 3, rowErr.Line)
	assert.Equal(t, "PG0001", rowErr.PGID)
	assert.Contains(t, err.Error(), "must connect")
}

func TestDiagnostics(t *testing.T) {
	result := validate(t, header,
		"PG0001,20200101,20210101,01-04,01-05,01-09,01-10,1.5,1.25,10,25,30,25",
		"PG0002,20200101,20210101,01-04,01-05,01-09,01-10,1.5,1.25,25,10,10,25",
		"PG0003,20200101",
	)

	headers, records := result.DiagnosticsRecords()
	assert.Equal(t, ErrorColumn, headers[len(headers)-1])
	require.Len(t, records, 3)
	for _, r := range records {
		assert.Len(t, r, len(headers))
	}

	msg := records[0][len(headers)-1]
	assert.Contains(t, msg, "onder marges")
	assert.Contains(t, msg, "boven marges")
	assert.Contains(t, msg, MessageSeparator)
	assert.NotContains(t, msg, ",")
	assert.Empty(t, records[1][len(headers)-1])
	assert.NotEmpty(t, records[2][len(headers)-1])

	dir := t.TempDir()
	require.NoError(t, result.WriteDiagnostics(filepath.Join(dir, "csv_with_errors.csv")))
	require.NoError(t, result.WriteAccepted(filepath.Join(dir, "csv_without_errors.csv")))
	require.NoError(t, result.WriteDiagnosticsXLSX(filepath.Join(dir, "csv_with_errors.xlsx")))

	accepted, err := csvparser.Parse(filepath.Join(dir, "csv_without_errors.csv"))
	require.NoError(t, err)
	require.Len(t, accepted.Records, 1)
	assert.Equal(t, "PG0002", accepted.Value(0, ColPGID))

	diag, err := xlsxparser.Parse(filepath.Join(dir, "csv_with_errors.xlsx"))
	require.NoError(t, err)
	assert.Len(t, diag.Records, 3)
	assert.Equal(t, msg, diag.Value(0, ErrorColumn))
}

func TestFormatErrors(t *testing.T) {
	assert.Equal(t, "No validation errors.", FormatErrors(nil))

	out := FormatErrors([]*ValidationError{
		{Line: 2, PGID: "PG0001", Field: ColZomerpeil, Rule: RuleRange, Message: "too high"},
		{Line: 3, PGID: "PG0002", Rule: RuleContiguity, Message: "gap"},
	})
	assert.Contains(t, out, "2 error(s)")
	assert.Contains(t, out, "1. line 2, pgid 'PG0001', column 'zomerpeil': too high")
	assert.Contains(t, out, "2. line 3, pgid 'PG0002': gap")
}
