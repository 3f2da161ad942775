// =============================================================================
// Peilbesluit to WIS - CSV Parser Module
// =============================================================================
//
// This module reads the peilbesluit export (a GIS export, usually saved from
// Excel) into a Table of raw string cells. It does not interpret the values;
// type coercion and range checks belong to the validation package.
//
// FEATURES:
//   - Delimiter sniffing between comma and semicolon
//   - UTF-8 byte order mark removal (Excel writes one)
//   - Header normalization ("2e marge onder" -> "2e_marge_onder")
//   - Blank line skipping
//
// FATAL ERRORS:
//   - ErrUnreadable:  the file cannot be opened or is not valid CSV
//   - ErrNoDelimiter: no supported delimiter found in the header line
//   - ErrEmpty:       the file has no header line
//
// =============================================================================

package csvparser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrUnreadable is returned when the input cannot be read as CSV.
	ErrUnreadable = errors.New("input file is unreadable")

	// ErrNoDelimiter is returned when none of the supported delimiters
	// appears in the header line, or when the choice is ambiguous.
	ErrNoDelimiter = errors.New("could not detect csv delimiter")

	// ErrEmpty is returned when the input has no header line.
	ErrEmpty = errors.New("input file is empty")
)

// SupportedDelimiters are the delimiters tried when sniffing, in order of preference.
var SupportedDelimiters = []rune{',', ';'}

// =============================================================================
// TABLE STRUCTURE
// =============================================================================

// Table is the raw content of one input file.
type Table struct {
	// SourceFile is the path the table was read from (may be empty for readers).
	SourceFile string

	// Delimiter is the detected field delimiter. Zero for non-CSV sources.
	Delimiter rune

	// Headers are the normalized column names, in file order.
	Headers []string

	// Records are the data rows with cells trimmed. Rows may have more or fewer
	// cells than Headers; the validator reports that per row.
	Records [][]string

	// LineNumbers holds the 1-based source line (or sheet row) of each record.
	LineNumbers []int
}

// ColumnIndex returns the position of a normalized column name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// Value returns the cell of record row in the named column, or "" when the
// column is absent or the row is short.
func (t *Table) Value(row int, column string) string {
	idx := t.ColumnIndex(column)
	if idx < 0 || idx >= len(t.Records[row]) {
		return ""
	}
	return t.Records[row][idx]
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file and returns its table.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//
// RETURNS:
//   - The parsed table.
//   - An error wrapping ErrUnreadable, ErrNoDelimiter or ErrEmpty.
func Parse(filePath string) (*Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer file.Close()

	table, err := ParseReader(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	table.SourceFile = filePath

	return table, nil
}

// ParseReader reads CSV content from r. The whole input is buffered because
// the delimiter must be known before the csv reader is configured.
func ParseReader(r io.Reader) (*Table, error) {
	content, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	headerLine := firstNonBlankLine(content)
	if headerLine == "" {
		return nil, ErrEmpty
	}

	delimiter, err := DetectDelimiter(headerLine)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(bytes.NewReader(content))
	configureReader(csvReader, delimiter)

	table := &Table{Delimiter: delimiter}
	headerSeen := false
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
		if isRowEmpty(record) {
			continue
		}

		if !headerSeen {
			table.Headers = NormalizeHeaders(record)
			headerSeen = true
			continue
		}

		line, _ := csvReader.FieldPos(0)
		table.Records = append(table.Records, trimCells(record))
		table.LineNumbers = append(table.LineNumbers, line)
	}

	if !headerSeen {
		return nil, ErrEmpty
	}

	return table, nil
}

// DetectDelimiter picks the supported delimiter that occurs most often in the
// header line. A header without any, or with a tie, is rejected.
func DetectDelimiter(headerLine string) (rune, error) {
	var (
		best      rune
		bestCount int
		tie       bool
	)
	for _, d := range SupportedDelimiters {
		n := strings.Count(headerLine, string(d))
		switch {
		case n > bestCount:
			best, bestCount, tie = d, n, false
		case n == bestCount && n > 0:
			tie = true
		}
	}

	if bestCount == 0 {
		return 0, fmt.Errorf("%w: none of %q found in header %q", ErrNoDelimiter, string(SupportedDelimiters), headerLine)
	}
	if tie {
		return 0, fmt.Errorf("%w: ambiguous header %q", ErrNoDelimiter, headerLine)
	}

	return best, nil
}

// configureReader sets up the csv reader for the detected delimiter.
func configureReader(reader *csv.Reader, delimiter rune) {
	reader.Comma = delimiter

	// Rows with a wrong cell count are reported per row, not fatal.
	reader.FieldsPerRecord = -1

	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// NormalizeHeaders lower-cases header names, trims them and replaces inner
// spaces and dashes by underscores, so "2e marge onder" and "2e_marge_onder"
// are the same column.
func NormalizeHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))

	for i, header := range headers {
		header = strings.ToLower(strings.TrimSpace(header))
		header = strings.Join(strings.Fields(header), "_")
		header = strings.ReplaceAll(header, "-", "_")

		if header == "" {
			header = fmt.Sprintf("column_%d", i+1)
		}

		cleaned[i] = header
	}

	return cleaned
}

func firstNonBlankLine(content []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line
		}
	}
	return ""
}

func trimCells(record []string) []string {
	out := make([]string, len(record))
	for i, cell := range record {
		out[i] = strings.TrimSpace(cell)
	}
	return out
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

// =============================================================================
// WRITER
// =============================================================================

// Write encodes headers and records as comma separated CSV.
func Write(w io.Writer, headers []string, records [][]string) error {
	csvWriter := csv.NewWriter(w)

	if err := csvWriter.Write(headers); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for i, record := range records {
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record %d: %w", i, err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// WriteFile writes headers and records to a new CSV file at path.
func WriteFile(path string, headers []string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := Write(file, headers, records); err != nil {
		file.Close()
		return err
	}

	return file.Close()
}
