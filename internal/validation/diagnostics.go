package validation

import (
	"fmt"
	"strings"

	"github.com/hdsr-mid/peilbesluit-to-wis/internal/csvparser"
	"github.com/hdsr-mid/peilbesluit-to-wis/internal/xlsxparser"
)

// ErrorColumn is the column added to the diagnostics table.
const ErrorColumn = "error"

// MessageSeparator joins several messages of one row in the error column.
const MessageSeparator = " | "

// DiagnosticsRecords returns the input table with an error column appended.
// Rows are padded to the header width so short rows stay aligned. Messages
// never contain commas.
func (r *Result) DiagnosticsRecords() ([]string, [][]string) {
	headers := append(append([]string{}, r.Table.Headers...), ErrorColumn)
	rejected := r.Rejected()

	records := make([][]string, len(r.Table.Records))
	for i, record := range r.Table.Records {
		out := make([]string, len(headers))
		copy(out, record)
		out[len(headers)-1] = strings.ReplaceAll(strings.Join(rejected[i], MessageSeparator), ",", "")
		records[i] = out
	}
	return headers, records
}

// WriteDiagnostics writes csv_with_errors.csv.
func (r *Result) WriteDiagnostics(path string) error {
	headers, records := r.DiagnosticsRecords()
	if err := csvparser.WriteFile(path, headers, records); err != nil {
		return fmt.Errorf("failed to write diagnostics: %w", err)
	}
	return nil
}

// WriteDiagnosticsXLSX writes the same diagnostics as a workbook, for
// operators who open the file in Excel.
func (r *Result) WriteDiagnosticsXLSX(path string) error {
	headers, records := r.DiagnosticsRecords()
	if err := xlsxparser.WriteTable(path, "csv_with_errors", headers, records); err != nil {
		return fmt.Errorf("failed to write xlsx diagnostics: %w", err)
	}
	return nil
}

// WriteAccepted writes csv_without_errors.csv: the input rows of every
// accepted pgid, sorted by pgid and startdatum, with the normalized header.
func (r *Result) WriteAccepted(path string) error {
	records := make([][]string, 0, r.AcceptedRows())
	for _, g := range r.Accepted {
		for _, row := range g.Rows {
			records = append(records, r.Table.Records[row.Index])
		}
	}

	if err := csvparser.WriteFile(path, r.Table.Headers, records); err != nil {
		return fmt.Errorf("failed to write accepted rows: %w", err)
	}
	return nil
}
