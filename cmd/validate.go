// =============================================================================
// Peilbesluit to WIS - Validate Command
// =============================================================================
//
// This file defines the 'validate' command: the process pipeline without
// the xml. It writes the run directory with the csv diagnostics only.
//
// COMMAND USAGE:
//   peilbesluit validate [--file F] [--strict]
//
// EXIT CODE:
//   Non-zero on unreadable input or a missing column, and with --strict also
//   when any area was excluded.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hdsr-mid/peilbesluit-to-wis/internal/converter"
	"github.com/hdsr-mid/peilbesluit-to-wis/internal/validation"
	"github.com/hdsr-mid/peilbesluit-to-wis/pkg/logger"
)

// strict fails validate when any row is rejected.
var strict bool

// validateFile is the export to check.
var validateFile string

// errRejectedRows is returned by validate --strict.
var errRejectedRows = errors.New("export contains rejected rows")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a peilbesluit export without writing XML",
	Long: `The validate command runs all row checks on an export and writes
csv_with_errors.csv and csv_without_errors.csv, but no xml. Use it to review
an export before the real conversion.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		fmt.Println("=== Peilbesluit to WIS - Validate ===")

		result := converter.New(cfg, converter.Options{
			InputFile: validateFile,
			SkipXML:   true,
		}, logger.Named(log, "converter")).Run(cmd.Context())
		printResult(result)

		if result.Error != nil {
			return result.Error
		}

		if result.Validation != nil {
			fmt.Print(validation.FormatErrors(result.Validation.AllErrors()))
			if strict && !result.Validation.IsValid() {
				return fmt.Errorf("%w: %d row(s) in %d area(s)", errRejectedRows,
					result.Validation.RejectedRows, len(result.Validation.RejectedPGIDs))
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFile, "file", "", "Export to validate (default: newest export in input_dir)")
	validateCmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any row is rejected")
}
