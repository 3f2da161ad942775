// =============================================================================
// Peilbesluit to WIS - Converter Module
// =============================================================================
//
// This module runs the conversion pipeline for one peilbesluit export, from
// reading the table to writing the FEWS-PI xml and the run summary.
//
// CONVERSION PIPELINE:
//   1. Resolve the input (explicit file, or the newest export in input_dir)
//   2. Parse the table (.csv or .xlsx)
//   3. Create the timestamped run directory and copy the input as csv_orig.csv
//   4. Validate all rows
//   5. Write csv_with_errors.csv (+ .xlsx) and csv_without_errors.csv
//   6. Build and write the xml and the test sample, area by area
//   7. Write summary.log and the metrics textfile
//
// FAILURE MODES:
//   - Input, schema and I/O errors stop the run.
//   - Row errors exclude the area and are reported in the diagnostics.
//   - A regime defect excludes only that area from the xml; the run goes on.
//
// =============================================================================

package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hdsr-mid/peilbesluit-to-wis/internal/config"
	"github.com/hdsr-mid/peilbesluit-to-wis/internal/csvparser"
	"github.com/hdsr-mid/peilbesluit-to-wis/internal/observability"
	"github.com/hdsr-mid/peilbesluit-to-wis/internal/regime"
	"github.com/hdsr-mid/peilbesluit-to-wis/internal/timeseries"
	"github.com/hdsr-mid/peilbesluit-to-wis/internal/types"
	"github.com/hdsr-mid/peilbesluit-to-wis/internal/validation"
	"github.com/hdsr-mid/peilbesluit-to-wis/internal/xlsxparser"
	"github.com/hdsr-mid/peilbesluit-to-wis/internal/xmlwriter"
	"github.com/hdsr-mid/peilbesluit-to-wis/pkg/logger"
	"github.com/hdsr-mid/peilbesluit-to-wis/pkg/utils"
)

// File names inside the run directory.
const (
	OrigFileName         = "csv_orig.csv"
	DiagnosticsFileName  = "csv_with_errors.csv"
	DiagnosticsXLSXName  = "csv_with_errors.xlsx"
	AcceptedFileName     = "csv_without_errors.csv"
	testSampleFileSuffix = "_test_sample"
)

// topReasons is the length of the "most frequent reasons" list.
const topReasons = 5

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of one run.
type Result struct {
	// RunID identifies the run in logs, summary and metrics.
	RunID string

	// FilePath is the input export.
	FilePath string

	// RunDir is the timestamped output directory. Empty on a dry run.
	RunDir string

	// OutputFile and SampleFile are the xml files written, if any.
	OutputFile string
	SampleFile string

	// Success indicates whether the run completed.
	Success bool

	// Error contains the error if the run failed.
	Error error

	// Validation is the validation outcome, nil if validation did not run.
	Validation *validation.Result

	// FailedAreas lists the areas dropped because of a regime defect.
	FailedAreas []string

	Stats ProcessingStats
}

// ProcessingStats contains statistics about the run.
type ProcessingStats struct {
	RowsProcessed int
	RowsAccepted  int
	RowsRejected  int

	AreasAccepted int
	AreasRejected int

	// AreasWritten counts areas in the xml; accepted areas minus failed ones.
	AreasWritten  int
	SampleAreas   int
	SeriesWritten int
	EventsWritten int

	ProcessingTime time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Options tune a single run on top of the configuration.
type Options struct {
	// InputFile overrides the configured input.
	InputFile string

	// DryRun runs everything in memory and writes no files.
	DryRun bool

	// SkipXML skips the xml and the test sample.
	SkipXML bool

	// SkipSample skips only the test sample.
	SkipSample bool

	// Clock names the run directory. Nil uses real time.
	Clock clockwork.Clock

	// Metrics receives the run counters. Nil creates a private set.
	Metrics *observability.Metrics
}

// Converter runs the pipeline for one export.
type Converter struct {
	cfg     *config.Config
	opts    Options
	clock   clockwork.Clock
	files   *utils.FileManager
	metrics *observability.Metrics
	logger  *zap.Logger
}

// New creates a Converter. A nil logger is allowed.
func New(cfg *config.Config, opts Options, logger *zap.Logger) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}

	return &Converter{
		cfg:     cfg,
		opts:    opts,
		clock:   clock,
		files:   utils.NewFileManager(cfg.InputDir, cfg.OutputDir, clock),
		metrics: metrics,
		logger:  logger,
	}
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the pipeline. It never panics on bad input; failures are
// reported in Result.Error.
func (c *Converter) Run(ctx context.Context) Result {
	started := c.clock.Now()
	result := Result{RunID: uuid.NewString()}
	log := c.logger.With(zap.String("run_id", result.RunID))

	err := c.run(ctx, log, &result)

	result.Stats.ProcessingTime = c.clock.Since(started)
	if err != nil {
		result.Error = err
		log.Error("run failed", zap.Error(err))
	} else {
		result.Success = true
	}

	c.finish(log, &result, started)

	return result
}

func (c *Converter) run(ctx context.Context, log *zap.Logger, result *Result) error {
	// =========================================================================
	// STEP 1: RESOLVE INPUT
	// =========================================================================

	input, err := c.resolveInput()
	if err != nil {
		return err
	}
	result.FilePath = input
	log.Info("start conversion", zap.String("input", input), zap.Bool("dry_run", c.opts.DryRun))

	// =========================================================================
	// STEP 2: PARSE TABLE
	// =========================================================================

	table, err := parseTable(input)
	if err != nil {
		return fmt.Errorf("failed to parse input: %w", err)
	}
	result.Stats.RowsProcessed = len(table.Records)
	log.Info("parsed input",
		zap.Int("rows", len(table.Records)),
		zap.String("delimiter", string(table.Delimiter)),
	)

	// =========================================================================
	// STEP 3: RUN DIRECTORY
	// =========================================================================

	if !c.opts.DryRun {
		dir, err := c.files.NewRunDir()
		if err != nil {
			return err
		}
		result.RunDir = dir
		log.Info("created run directory", zap.String("dir", dir))

		if err := csvparser.WriteFile(filepath.Join(dir, OrigFileName), table.Headers, table.Records); err != nil {
			return fmt.Errorf("failed to write %s: %w", OrigFileName, err)
		}
	}

	// =========================================================================
	// STEP 4: VALIDATE
	// =========================================================================

	validator := validation.NewValidator(validation.Options{
		Bounds:          c.cfg.Bounds(),
		RaiseOnRowError: c.cfg.RaiseOnRowError,
	}, logger.Named(log, "validation"))

	vr, err := validator.Validate(table)
	if err != nil {
		return fmt.Errorf("failed to validate input: %w", err)
	}
	result.Validation = vr
	result.Stats.RowsAccepted = vr.AcceptedRows()
	result.Stats.RowsRejected = vr.RejectedRows
	result.Stats.AreasAccepted = len(vr.Accepted)
	result.Stats.AreasRejected = len(vr.RejectedPGIDs)

	if vr.RejectedRows > 0 {
		log.Warn("rows excluded",
			zap.Int("rows", vr.RejectedRows),
			zap.Int("areas", len(vr.RejectedPGIDs)),
		)
	}

	// =========================================================================
	// STEP 5: DIAGNOSTICS
	// =========================================================================

	if err := c.writeDiagnostics(log, vr, result.RunDir); err != nil {
		return err
	}

	// =========================================================================
	// STEP 6: XML
	// =========================================================================

	if c.opts.SkipXML || !c.cfg.WantXML() {
		log.Info("skipping xml")
		return nil
	}

	return c.writeXML(ctx, log, vr.Accepted, result)
}

// resolveInput returns the explicit input file or the newest export.
func (c *Converter) resolveInput() (string, error) {
	for _, f := range []string{c.opts.InputFile, c.cfg.InputFile} {
		if f == "" {
			continue
		}
		if !utils.FileExists(f) {
			return "", fmt.Errorf("%w: %s", csvparser.ErrUnreadable, f)
		}
		return f, nil
	}
	return c.files.LatestInputFile()
}

func parseTable(path string) (*csvparser.Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return xlsxparser.Parse(path)
	}
	return csvparser.Parse(path)
}

func (c *Converter) writeDiagnostics(log *zap.Logger, vr *validation.Result, dir string) error {
	if c.opts.DryRun {
		for _, ve := range vr.AllErrors() {
			log.Info("row error", zap.String("error", ve.Error()))
		}
		return nil
	}

	if c.cfg.WantDiagnostics() {
		if err := vr.WriteDiagnostics(filepath.Join(dir, DiagnosticsFileName)); err != nil {
			return err
		}
		if c.cfg.CreateXLSXDiagnostics {
			if err := vr.WriteDiagnosticsXLSX(filepath.Join(dir, DiagnosticsXLSXName)); err != nil {
				return err
			}
		}
	}

	return vr.WriteAccepted(filepath.Join(dir, AcceptedFileName))
}

// =============================================================================
// XML GENERATION
// =============================================================================

// writeXML streams every accepted area into the xml, and the first
// len(areas)/SampleDivisor written areas into the test sample.
func (c *Converter) writeXML(ctx context.Context, log *zap.Logger, areas []types.AreaGroup, result *Result) (err error) {
	mainOut, mainPath, err := c.create(result.RunDir, c.cfg.XMLFileName)
	if err != nil {
		return err
	}
	defer closeInto(mainOut, &err)
	full := xmlwriter.NewWriter(mainOut)

	var (
		sample     *xmlwriter.Writer
		sampleOut  io.WriteCloser
		samplePath string
		sampleSize int
	)
	if c.cfg.WantTestSample() && !c.opts.SkipSample {
		sampleOut, samplePath, err = c.create(result.RunDir, sampleFileName(c.cfg.XMLFileName))
		if err != nil {
			return err
		}
		defer closeInto(sampleOut, &err)
		sample = xmlwriter.NewWriter(sampleOut)
		sampleSize = len(areas) / c.cfg.SampleDivisor
		result.SampleFile = samplePath
	}
	result.OutputFile = mainPath

	if err := full.Begin(); err != nil {
		return err
	}
	if sample != nil {
		if err := sample.Begin(); err != nil {
			return err
		}
	}

	progress := newProgress(log, len(areas))
	for i, area := range areas {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("conversion interrupted: %w", err)
		}

		series, err := timeseries.BuildArea(area)
		var defect *regime.DefectError
		switch {
		case errors.As(err, &defect):
			log.Error("regime defect; area left out of the xml",
				zap.String("pgid", area.PGID),
				zap.Stringer("quantity", defect.Quantity),
				zap.Time("start", area.Start()),
				zap.Time("end", area.End()),
				zap.Error(defect),
			)
			result.FailedAreas = append(result.FailedAreas, area.PGID)
			c.metrics.RegimeDefects.Inc()
			progress.step(i)
			continue
		case err != nil:
			return fmt.Errorf("failed to build series of %s: %w", area.PGID, err)
		}

		if err := full.WriteArea(series); err != nil {
			return err
		}
		if sample != nil && result.Stats.AreasWritten < sampleSize {
			if err := sample.WriteArea(series); err != nil {
				return err
			}
			result.Stats.SampleAreas++
		}
		result.Stats.AreasWritten++
		progress.step(i)
	}

	if err := full.End(); err != nil {
		return err
	}
	if sample != nil {
		if err := sample.End(); err != nil {
			return err
		}
	}

	result.Stats.SeriesWritten = full.SeriesWritten()
	result.Stats.EventsWritten = full.EventsWritten()

	log.Info("wrote xml",
		zap.String("file", mainPath),
		zap.Int("areas", result.Stats.AreasWritten),
		zap.Int("series", result.Stats.SeriesWritten),
		zap.Int("events", result.Stats.EventsWritten),
		zap.Int("sample_areas", result.Stats.SampleAreas),
	)

	return nil
}

// create opens name inside dir for writing, or a sink on a dry run.
func (c *Converter) create(dir, name string) (io.WriteCloser, string, error) {
	if c.opts.DryRun {
		return nopCloser{io.Discard}, "", nil
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	return f, path, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func closeInto(c io.Closer, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("failed to close output: %w", cerr)
	}
}

func sampleFileName(xmlName string) string {
	ext := filepath.Ext(xmlName)
	return strings.TrimSuffix(xmlName, ext) + testSampleFileSuffix + ext
}

// =============================================================================
// PROGRESS LOGGING
// =============================================================================

// progress logs the percentage of areas done whenever it changes.
type progress struct {
	log   *zap.Logger
	total int
	last  int
}

func newProgress(log *zap.Logger, total int) *progress {
	return &progress{log: log, total: total, last: -1}
}

func (p *progress) step(i int) {
	pct := (i + 1) * 100 / p.total
	if pct == p.last {
		return
	}
	p.last = pct
	p.log.Info(fmt.Sprintf("build xml progress = %d%%", pct))
}

// =============================================================================
// SUMMARY AND METRICS
// =============================================================================

// finish writes the summary log and the metrics. Failures here are logged
// and do not change the run outcome.
func (c *Converter) finish(log *zap.Logger, result *Result, started time.Time) {
	finished := c.clock.Now()
	s := result.Stats

	c.metrics.Rows.WithLabelValues(observability.StatusAccepted).Add(float64(s.RowsAccepted))
	c.metrics.Rows.WithLabelValues(observability.StatusRejected).Add(float64(s.RowsRejected))
	c.metrics.Areas.WithLabelValues(observability.StatusAccepted).Add(float64(s.AreasWritten))
	c.metrics.Areas.WithLabelValues(observability.StatusRejected).Add(float64(s.AreasRejected))
	c.metrics.Areas.WithLabelValues(observability.StatusFailed).Add(float64(len(result.FailedAreas)))
	c.metrics.EventsWritten.Add(float64(s.EventsWritten))
	c.metrics.ObserveRun(result.RunID, started, finished, result.Error)

	if c.cfg.MetricsFile != "" {
		if err := c.metrics.WriteTextfile(c.cfg.MetricsFile); err != nil {
			log.Warn("metrics not written", zap.Error(err))
		}
	}

	summary := utils.RunSummary{
		RunID:         result.RunID,
		InputFile:     result.FilePath,
		RunDir:        result.RunDir,
		StartTime:     started,
		EndTime:       finished,
		TotalRows:     s.RowsProcessed,
		AcceptedRows:  s.RowsAccepted,
		RejectedRows:  s.RowsRejected,
		AcceptedAreas: s.AreasAccepted,
		RejectedAreas: s.AreasRejected,
		FailedAreas:   result.FailedAreas,
		AreasWritten:  s.AreasWritten,
		SampleAreas:   s.SampleAreas,
		EventsWritten: s.EventsWritten,
		TopReasons:    TopReasons(result.Validation, topReasons),
		Outputs:       nonEmpty(result.OutputFile, result.SampleFile),
	}
	if result.Error != nil {
		summary.Error = result.Error.Error()
	}

	for _, r := range summary.TopReasons {
		log.Info("exclusion reason", zap.String("rule", r.Reason), zap.Int("count", r.Count))
	}

	if result.RunDir == "" {
		return
	}
	if _, err := utils.WriteSummaryLog(summary, result.RunDir); err != nil {
		log.Warn("summary not written", zap.Error(err))
	}
}

// TopReasons returns the n most frequent validation rules, most frequent first.
func TopReasons(vr *validation.Result, n int) []utils.ReasonCount {
	if vr == nil {
		return nil
	}

	var reasons []utils.ReasonCount
	for rule, count := range vr.RuleCounts() {
		reasons = append(reasons, utils.ReasonCount{Reason: rule, Count: count})
	}
	sort.Slice(reasons, func(i, j int) bool {
		if reasons[i].Count != reasons[j].Count {
			return reasons[i].Count > reasons[j].Count
		}
		return reasons[i].Reason < reasons[j].Reason
	})

	if len(reasons) > n {
		reasons = reasons[:n]
	}
	return reasons
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
