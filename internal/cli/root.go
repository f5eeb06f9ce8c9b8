package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "geoload",
	Short: "Replace a PostGIS table with the contents of a geospatial file",
	Long: `geoload reads a Shapefile (zipped), GeoJSON or GeoPackage file, checks it
against an existing PostGIS table, and replaces the table's rows in a single
transaction: TRUNCATE, batched INSERT, COMMIT. Any failure rolls back and
leaves the table as it was.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration or parameters
  11 - Database connection failed
  12 - Operator declined the table replacement
  20 - Unsupported input format
  21 - Malformed input file
  22 - Input contains no features
  23 - Two columns sanitize to the same name
  30 - Target table not found
  31 - Dataset columns do not match the table
  32 - Column or geometry type not coercible
  40 - Insert failed (transaction rolled back)`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo()
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	// -h is taken by --host, so help is long-form only.
	rootCmd.PersistentFlags().Bool("help", false, "Help for geoload")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}
