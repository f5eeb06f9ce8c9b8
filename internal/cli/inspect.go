package cli

import (
	"github.com/spf13/cobra"

	"github.com/vvka-141/geoload/internal/logging"
	"github.com/vvka-141/geoload/internal/source"
	"github.com/vvka-141/geoload/internal/ui"
	"github.com/vvka-141/geoload/pkg/geoload"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect --file <path>",
	Short: "Show the columns and geometry of a file without touching the database",
	Long: `Inspect reads a file the same way run does and prints the sanitized column
names with their inferred types, the feature count, geometry type, SRID, extent
and SHA-256 checksum. No database connection is made.

Examples:
  geoload inspect --file parcels.zip
  geoload inspect --file cadastre.gpkg --layer parcels_2024`,
	Args: RequireNoArgs,
	RunE: runInspect,
}

type inspectFlagValues struct {
	file       string
	layer      string
	format     string
	sourceSRID int
}

var inspectFlags inspectFlagValues

func init() {
	rootCmd.AddCommand(inspectCmd)

	flags := inspectCmd.Flags()
	flags.StringVar(&inspectFlags.file, "file", "", "Input file (.zip, .geojson, .json, .gpkg, optionally .gz/.zst/.xz)")
	flags.StringVar(&inspectFlags.layer, "layer", "", "Shapefile inside the zip (base name) or GeoPackage table")
	flags.StringVar(&inspectFlags.format, "format", "", "Input format: shapefile|geojson|gpkg")
	flags.IntVar(&inspectFlags.sourceSRID, "source-srid", 0, "EPSG code of the input coordinates")

	_ = inspectCmd.MarkFlagRequired("file")
	_ = inspectCmd.RegisterFlagCompletionFunc("format", completeFormats)
	_ = inspectCmd.MarkFlagFilename("file", "zip", "geojson", "json", "gpkg", "gz", "zst", "xz")
}

func inspectReadOptions(flags inspectFlagValues) (geoload.ReadOptions, error) {
	opts := geoload.ReadOptions{Layer: flags.layer, SourceSRID: flags.sourceSRID}
	if flags.format != "" {
		format, ok := geoload.ParseFormat(flags.format)
		if !ok {
			return opts, &geoload.UnsupportedFormatError{Path: flags.file, Format: flags.format}
		}
		opts.Format = format
	}
	return opts, nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	verbose := getVerboseFlag(cmd)
	logger := logging.NewConsoleLogger(verbose)

	opts, err := inspectReadOptions(inspectFlags)
	if err != nil {
		return err
	}

	// Inspect never reaches the approval step.
	svc := newLoadService(ui.NewAutoApprover(), logger)

	ctx, cancel := signalContext()
	defer cancel()

	ds, err := svc.Inspect(ctx, inspectFlags.file, opts)
	if err != nil {
		return err
	}

	renderSummary(cmd.OutOrStdout(), source.Describe(ds))
	return nil
}
