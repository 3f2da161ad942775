// =============================================================================
// Peilbesluit to WIS - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs the complete
// conversion of one export to FEWS-PI XML.
//
// COMMAND USAGE:
//   peilbesluit process [flags]
//
// FLAGS:
//   --file       : Export to convert (default: newest .csv/.xlsx in input_dir)
//   --dry-run    : Run everything in memory; write no files
//   --no-xml     : Write only the csv artefacts
//   --no-sample  : Skip the test sample xml
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hdsr-mid/peilbesluit-to-wis/internal/converter"
	"github.com/hdsr-mid/peilbesluit-to-wis/internal/observability"
	"github.com/hdsr-mid/peilbesluit-to-wis/pkg/logger"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// filePath is the export to convert.
var filePath string

// dryRun runs without writing output files.
var dryRun bool

// noXML skips the xml output.
var noXML bool

// noSample skips the test sample.
var noSample bool

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Convert a peilbesluit export to FEWS-PI XML",
	Long: `The process command validates a peilbesluit export and writes, in a new
timestamped directory under output_dir:

  csv_orig.csv             the input as read
  csv_with_errors.csv      every row with its validation errors
  csv_without_errors.csv   the rows of all accepted areas
  PeilbesluitPi.xml        the FEWS-PI timeseries
  PeilbesluitPi_test_sample.xml  a small part of the areas, for a test import
  summary.log              counts and the most frequent reasons

Areas with an invalid row are left out of the xml. The run itself only fails
on unreadable input or a missing column.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&filePath, "file", "", "Export to convert (default: newest export in input_dir)")
	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run without writing output files")
	processCmd.Flags().BoolVar(&noXML, "no-xml", false, "Write only the csv outputs")
	processCmd.Flags().BoolVar(&noSample, "no-sample", false, "Do not write the test sample xml")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(cmd *cobra.Command) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	fmt.Println("=== Peilbesluit to WIS ===")

	conv := converter.New(cfg, converter.Options{
		InputFile:  filePath,
		DryRun:     dryRun,
		SkipXML:    noXML,
		SkipSample: noSample,
		Metrics:    observability.NewMetrics(),
	}, logger.Named(log, "converter"))

	result := conv.Run(cmd.Context())
	printResult(result)

	if result.Error != nil {
		return result.Error
	}
	return nil
}

// printResult prints the run summary to stdout.
func printResult(result converter.Result) {
	s := result.Stats

	fmt.Println("\n=== Processing Complete ===")
	fmt.Printf("Run ID:          %s\n", result.RunID)
	if result.FilePath != "" {
		fmt.Printf("Input:           %s\n", filepath.Base(result.FilePath))
	}
	fmt.Printf("Rows:            %d (excluded %d)\n", s.RowsProcessed, s.RowsRejected)
	fmt.Printf("Areas accepted:  %d\n", s.AreasAccepted)
	fmt.Printf("Areas excluded:  %d\n", s.AreasRejected)
	if len(result.FailedAreas) > 0 {
		fmt.Printf("Areas failed:    %d %v\n", len(result.FailedAreas), result.FailedAreas)
	}
	if result.OutputFile != "" {
		fmt.Printf("Areas written:   %d (%d events)\n", s.AreasWritten, s.EventsWritten)
	}
	for _, r := range converter.TopReasons(result.Validation, 5) {
		fmt.Printf("  %6d x %s\n", r.Count, r.Reason)
	}
	if result.RunDir != "" {
		fmt.Printf("Output:          %s\n", result.RunDir)
	}
	fmt.Printf("Time elapsed:    %s\n", s.ProcessingTime)
}
