// =============================================================================
// Peilbesluit to WIS - File Manager Utility
// =============================================================================
//
// This module provides the file handling around a conversion run:
//   - Finding the newest export in the input directory
//   - Creating the timestamped run directory
//   - Writing the run summary log
//
// RUN DIRECTORY:
//   Every run writes into <output_dir>/YYYYMMDD_HHMMSS. The directory must not
//   exist yet; two runs within one second fail instead of mixing outputs.
//
// =============================================================================

package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// RunDirLayout is the time layout of run directory names.
const RunDirLayout = "20060102_150405"

var (
	// ErrNoInputFile is returned when the input directory holds no export.
	ErrNoInputFile = errors.New("no input file found")

	// ErrRunDirExists is returned when the run directory already exists.
	ErrRunDirExists = errors.New("run directory already exists")
)

// InputExtensions are the file types accepted as export.
var InputExtensions = []string{".csv", ".xlsx"}

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for a run.
type FileManager struct {
	// InputDir is searched for exports when no file is given.
	InputDir string

	// OutputDir receives the run directories.
	OutputDir string

	clock clockwork.Clock
}

// NewFileManager creates a FileManager. A nil clock uses real time.
func NewFileManager(inputDir, outputDir string, clock clockwork.Clock) *FileManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &FileManager{
		InputDir:  inputDir,
		OutputDir: outputDir,
		clock:     clock,
	}
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// LatestInputFile returns the most recently modified .csv or .xlsx file in
// the input directory. Sub directories are not searched.
//
// RETURNS:
//   - The path of the newest export.
//   - ErrNoInputFile if there is none, or an error if the directory cannot be read.
func (fm *FileManager) LatestInputFile() (string, error) {
	entries, err := os.ReadDir(fm.InputDir)
	if err != nil {
		return "", fmt.Errorf("failed to read input directory: %w", err)
	}

	var (
		latest    string
		latestMod time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() || !isInputFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = filepath.Join(fm.InputDir, entry.Name())
			latestMod = info.ModTime()
		}
	}

	if latest == "" {
		return "", fmt.Errorf("%w in %s (expected one of %s)", ErrNoInputFile, fm.InputDir, strings.Join(InputExtensions, ", "))
	}

	return latest, nil
}

func isInputFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range InputExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// =============================================================================
// RUN DIRECTORY
// =============================================================================

// NewRunDir creates <OutputDir>/YYYYMMDD_HHMMSS for the current time.
func (fm *FileManager) NewRunDir() (string, error) {
	if err := os.MkdirAll(fm.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	dir := filepath.Join(fm.OutputDir, fm.clock.Now().Format(RunDirLayout))
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrRunDirExists, dir)
		}
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}

	return dir, nil
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

// ReasonCount is one line of the "most frequent reasons" list.
type ReasonCount struct {
	Reason string
	Count  int
}

// RunSummary contains summary information about a conversion run.
type RunSummary struct {
	RunID     string
	InputFile string
	RunDir    string
	StartTime time.Time
	EndTime   time.Time

	TotalRows    int
	AcceptedRows int
	RejectedRows int

	AcceptedAreas int
	RejectedAreas int
	FailedAreas   []string

	AreasWritten  int
	SampleAreas   int
	EventsWritten int

	TopReasons []ReasonCount
	Outputs    []string

	// Error is set when the run stopped early.
	Error string
}

// SummaryFileName is the name of the summary log inside the run directory.
const SummaryFileName = "summary.log"

// WriteSummaryLog writes summary.log into dir.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary RunSummary, dir string) (string, error) {
	path := filepath.Join(dir, SummaryFileName)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	writeSummary(w, summary)
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to write summary file: %w", err)
	}

	return path, nil
}

func writeSummary(w io.Writer, s RunSummary) {
	rule := strings.Repeat("=", 80)

	fmt.Fprintf(w, "Peilbesluit to WIS - Run Summary\n%s\n\n", rule)
	fmt.Fprintf(w, "Run Information:\n")
	fmt.Fprintf(w, "  Run ID:         %s\n", s.RunID)
	fmt.Fprintf(w, "  Input:          %s\n", s.InputFile)
	fmt.Fprintf(w, "  Run Directory:  %s\n", s.RunDir)
	fmt.Fprintf(w, "  Start Time:     %s\n", s.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  End Time:       %s\n", s.EndTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Duration:       %s\n\n", s.EndTime.Sub(s.StartTime))

	fmt.Fprintf(w, "Statistics:\n")
	fmt.Fprintf(w, "  Rows:           %d (accepted %d, excluded %d)\n", s.TotalRows, s.AcceptedRows, s.RejectedRows)
	fmt.Fprintf(w, "  Areas:          accepted %d, excluded %d, failed %d\n", s.AcceptedAreas, s.RejectedAreas, len(s.FailedAreas))
	fmt.Fprintf(w, "  Areas written:  %d (test sample %d)\n", s.AreasWritten, s.SampleAreas)
	fmt.Fprintf(w, "  Events written: %d\n\n", s.EventsWritten)

	if len(s.TopReasons) > 0 {
		fmt.Fprintf(w, "Most frequent reasons:\n")
		for _, r := range s.TopReasons {
			fmt.Fprintf(w, "  %6d  %s\n", r.Count, r.Reason)
		}
		fmt.Fprintln(w)
	}

	if len(s.FailedAreas) > 0 {
		fmt.Fprintf(w, "Failed areas (regime defect):\n")
		for _, pgid := range s.FailedAreas {
			fmt.Fprintf(w, "  %s\n", pgid)
		}
		fmt.Fprintln(w)
	}

	if len(s.Outputs) > 0 {
		fmt.Fprintf(w, "Outputs:\n")
		for _, o := range s.Outputs {
			fmt.Fprintf(w, "  %s\n", o)
		}
		fmt.Fprintln(w)
	}

	if s.Error != "" {
		fmt.Fprintf(w, "Error:\n  %s\n\n", s.Error)
	}

	fmt.Fprintf(w, "%s\nEnd of Summary\n", rule)
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
