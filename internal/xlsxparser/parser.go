// =============================================================================
// Peilbesluit to WIS - XLSX Parser Module
// =============================================================================
//
// Peilbesluit exports are often maintained in Excel. This module reads the
// first sheet (or a named sheet) of an .xlsx workbook into the same Table the
// CSV parser produces, so validation does not care where the rows came from.
//
// It also writes tables back to a workbook, which is used for the optional
// Excel copy of the diagnostics report.
//
// SHEET LAYOUT:
//   | pgid   | startdatum | einddatum | eind_winter | ... | 2e_marge_boven |
//   | PG0001 | 20200101   | 20210101  | 01-04       | ... | 25             |
//
//   Row 1 holds the headers. Empty rows are skipped.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hdsr-mid/peilbesluit-to-wis/internal/csvparser"
)

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads the first sheet of an XLSX workbook.
//
// PARAMETERS:
//   - path: The path to the .xlsx file.
//
// RETURNS:
//   - The parsed table (Delimiter is zero).
//   - An error wrapping csvparser.ErrUnreadable or csvparser.ErrEmpty.
func Parse(path string) (*csvparser.Table, error) {
	return ParseSheet(path, "")
}

// ParseSheet reads the named sheet of an XLSX workbook. An empty sheet name
// selects the first sheet.
func ParseSheet(path, sheetName string) (*csvparser.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open workbook %s: %v", csvparser.ErrUnreadable, path, err)
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}
	if sheetName == "" {
		return nil, fmt.Errorf("%s: %w: workbook has no sheets", path, csvparser.ErrEmpty)
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read rows of sheet %q: %v", csvparser.ErrUnreadable, sheetName, err)
	}

	table := &csvparser.Table{SourceFile: path}
	headerSeen := false
	for i, row := range rows {
		if isRowEmpty(row) {
			continue
		}

		if !headerSeen {
			table.Headers = csvparser.NormalizeHeaders(row)
			headerSeen = true
			continue
		}

		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = strings.TrimSpace(cell)
		}
		table.Records = append(table.Records, cells)
		table.LineNumbers = append(table.LineNumbers, i+1)
	}

	if !headerSeen {
		return nil, fmt.Errorf("%s: %w: sheet %q has no header row", path, csvparser.ErrEmpty, sheetName)
	}

	return table, nil
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
