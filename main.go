// =============================================================================
// Peilbesluit to WIS - Main Entry Point
// =============================================================================
//
// USAGE:
//   peilbesluit process       - Convert the newest export to FEWS-PI XML
//   peilbesluit validate      - Only validate an export
//   peilbesluit version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Parsing, validation, regimes, series and the xml writer
//   - pkg/           : Logger and file helpers
//
// =============================================================================

package main

import (
	"github.com/hdsr-mid/peilbesluit-to-wis/cmd"
)

func main() {
	cmd.Execute()
}
