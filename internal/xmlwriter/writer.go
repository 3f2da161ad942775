// =============================================================================
// Peilbesluit to WIS - XML Writer Module
// =============================================================================
//
// This module streams FEWS-PI timeseries XML. Documents with thousands of
// areas are written series by series, never held in memory as a whole.
//
// XML STRUCTURE:
//
//   <TimeSeries xmlns="http://www.wldelft.nl/fews/PI" ... version="1.2">
//       <timeZone>1.0</timeZone>
//       <series>                              <!-- one per area and quantity -->
//           <header>
//               <type>instantaneous</type>
//               <locationId>PG0001</locationId>
//               <parameterId>Hpl</parameterId>
//               ...
//           </header>
//           <event date="2020-01-01" time="00:00:00" value="1.25" flag="0"/>
//       </series>
//   </TimeSeries>
//
// The layout (4 space indent, empty elements as open/close pairs, value with
// 2 decimals) is the one the WIS import expects.
//
// =============================================================================

package xmlwriter

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hdsr-mid/peilbesluit-to-wis/internal/timeseries"
	"github.com/hdsr-mid/peilbesluit-to-wis/internal/types"
)

// =============================================================================
// DOCUMENT CONSTANTS
// =============================================================================

const (
	indent = "    "

	declaration = `<?xml version="1.0" encoding="UTF-8" ?>`

	rootOpen = `<TimeSeries xmlns="http://www.wldelft.nl/fews/PI" ` +
		`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" ` +
		`xsi:schemaLocation="http://www.wldelft.nl/fews/PI http://fews.wldelft.nl/schemas/version1.0/pi-schemas/pi_timeseriesextended.xsd" ` +
		`version="1.2">`

	rootClose = `</TimeSeries>`

	// TimeZone is the offset to GMT of all dates in the document.
	TimeZone = "1.0"

	// MissVal is the missing value marker written in every header.
	MissVal = "-999.99"

	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

var (
	// ErrNotStarted is returned when series are written before Begin.
	ErrNotStarted = errors.New("document not started")

	// ErrAlreadyClosed is returned when writing after End.
	ErrAlreadyClosed = errors.New("document already closed")
)

// =============================================================================
// WRITER
// =============================================================================

// Writer streams one FEWS-PI document.
type Writer struct {
	bw *bufio.Writer

	started bool
	closed  bool

	series int
	events int
}

// NewWriter returns a Writer on w. The caller owns w and closes it after End.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// Begin writes the declaration, the root element and the time zone.
func (w *Writer) Begin() error {
	if w.closed {
		return ErrAlreadyClosed
	}
	w.started = true
	w.line(0, declaration)
	w.line(0, rootOpen)
	w.line(1, "<timeZone>"+TimeZone+"</timeZone>")
	return w.flushErr()
}

// WriteSeries writes one series: header plus events.
func (w *Writer) WriteSeries(s timeseries.Series) error {
	if err := w.state(); err != nil {
		return err
	}

	w.line(1, "<series>")
	w.writeHeader(s)
	for _, e := range s.Events {
		w.line(2, fmt.Sprintf(`<event date="%s" time="%s" value="%s" flag="0"/>`,
			e.Date.Format(dateLayout), e.Date.Format(timeLayout), FormatValue(e.Level)))
	}
	w.line(1, "</series>")

	w.series++
	w.events += len(s.Events)
	return nil
}

// WriteArea writes every series of one area in order.
func (w *Writer) WriteArea(series []timeseries.Series) error {
	for _, s := range series {
		if err := w.WriteSeries(s); err != nil {
			return fmt.Errorf("failed to write series %s/%s: %w", s.PGID, s.Quantity, err)
		}
	}
	return nil
}

// End closes the root element and flushes. The underlying writer stays open.
func (w *Writer) End() error {
	if err := w.state(); err != nil {
		return err
	}
	w.line(0, rootClose)
	w.closed = true
	return w.flushErr()
}

// SeriesWritten returns the number of series written so far.
func (w *Writer) SeriesWritten() int { return w.series }

// EventsWritten returns the number of events written so far.
func (w *Writer) EventsWritten() int { return w.events }

func (w *Writer) writeHeader(s timeseries.Series) {
	meta := s.Quantity.Meta()

	w.line(2, "<header>")
	w.line(3, "<type>instantaneous</type>")
	w.line(3, "<locationId>"+escape(s.PGID)+"</locationId>")
	w.line(3, "<parameterId>"+meta.ParameterID+"</parameterId>")
	w.line(3, `<timeStep unit="nonequidistant"/>`)
	w.line(3, fmt.Sprintf(`<startDate date="%s" time="%s"></startDate>`, s.Start.Format(dateLayout), s.Start.Format(timeLayout)))
	w.line(3, fmt.Sprintf(`<endDate date="%s" time="%s"></endDate>`, s.End.Format(dateLayout), s.End.Format(timeLayout)))
	w.line(3, "<missVal>"+MissVal+"</missVal>")
	w.line(3, "<longName>"+meta.LongName+"</longName>")
	w.line(3, "<units>"+meta.Units+"</units>")
	w.line(3, "<sourceOrganisation></sourceOrganisation>")
	w.line(3, "<sourceSystem>"+types.SourceSystem+"</sourceSystem>")
	w.line(3, "<fileDescription></fileDescription>")
	w.line(3, "<region></region>")
	w.line(2, "</header>")
}

// line writes one indented line. Write errors stick in the bufio.Writer and
// surface on the next flush.
func (w *Writer) line(depth int, s string) {
	w.bw.WriteString(strings.Repeat(indent, depth))
	w.bw.WriteString(s)
	w.bw.WriteByte('\n')
}

func (w *Writer) state() error {
	switch {
	case w.closed:
		return ErrAlreadyClosed
	case !w.started:
		return ErrNotStarted
	}
	return nil
}

func (w *Writer) flushErr() error {
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("failed to write xml: %w", err)
	}
	return nil
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// FormatValue renders a level with exactly two decimals.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func escape(s string) string {
	var b strings.Builder
	// EscapeText only fails when the writer fails.
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
