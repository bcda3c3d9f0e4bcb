package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osmshape/internal/logger"
	"github.com/wegman-software/osmshape/internal/pipeline"
	"github.com/wegman-software/osmshape/internal/shaper"
	"github.com/wegman-software/osmshape/internal/validate"
)

var shapeCmd = &cobra.Command{
	Use:   "shape <input.osm>...",
	Short: "Shape OSM files into node, way and tag tables",
	Long: `Stream one or more OSM files and write the nodes, nodes_tags, ways,
ways_nodes and ways_tags tables as CSV (default) or Parquet.

Inputs may be .osm XML (optionally .gz or .bz2 compressed) or .osm.pbf.
Relations are ignored. With several inputs each one is processed in
parallel and written to its own subdirectory of --output-dir.

An element missing one of the required attributes aborts the run unless
--on-missing=skip is given. With --validate every element is checked
against a schema before it is written, and the first invalid element
aborts the run.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runShape,
}

func init() {
	rootCmd.AddCommand(shapeCmd)

	shapeCmd.Flags().StringVarP(&cfg.Format, "format", "f", cfg.Format, "Output format: csv or parquet")
	shapeCmd.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Rows per Parquet row group")
	shapeCmd.Flags().StringVarP(&cfg.TablesFile, "tables", "t", "", "YAML file overriding the correction table and field lists")
	shapeCmd.Flags().BoolVar(&cfg.CheckRows, "validate", false, "Validate every shaped element before writing")
	shapeCmd.Flags().StringVar(&cfg.SchemaFile, "schema", "", "YAML validation schema (requires --validate)")
	shapeCmd.Flags().StringVar(&cfg.OnMissing, "on-missing", cfg.OnMissing, "Elements missing required attributes: abort or skip")
}

func runShape(cmd *cobra.Command, args []string) {
	cfg.InputFiles = args
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	log.Info("Starting shaping",
		zap.Strings("inputs", cfg.InputFiles),
		zap.String("output", cfg.OutputDir),
		zap.String("format", cfg.Format),
		zap.Bool("validate", cfg.CheckRows),
		zap.String("on_missing", cfg.OnMissing),
		zap.Int("workers", cfg.Workers),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()

	processor, err := pipeline.NewProcessor(cfg)
	if err != nil {
		exitWithError("failed to create processor", err)
	}

	all, err := pipeline.RunAll(ctx, cfg, processor)
	if err != nil {
		var missing *shaper.MissingAttributeError
		var invalid *validate.ValidationError
		switch {
		case errors.As(err, &missing):
			exitWithError("element is missing a required attribute (use --on-missing=skip to continue past it)", err)
		case errors.As(err, &invalid):
			exitWithError("element failed validation", err)
		default:
			exitWithError("shaping failed", err)
		}
	}

	var elements, rows, skipped, rejected int64
	for _, s := range all {
		elements += s.Elements()
		rows += s.Rows()
		skipped += s.Skipped.Load()
		rejected += s.RejectedTags.Load()
	}

	elapsed := time.Since(start)

	log.Info("Shaping complete",
		zap.Duration("duration", elapsed.Round(time.Millisecond)),
		zap.Int("inputs", len(all)),
		zap.Int64("elements", elements),
		zap.Int64("rows", rows),
		zap.Int64("rejected_tags", rejected),
		zap.Int64("skipped", skipped),
		zap.String("throughput", pipeline.FormatThroughput(float64(elements)/elapsed.Seconds())),
	)
}
