package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osmshape/internal/loader"
	"github.com/wegman-software/osmshape/internal/logger"
)

var (
	createIndexes bool
	dropExisting  bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load shaped CSV tables into PostgreSQL",
	Long: `Bulk load the CSV files written by "shape" into PostgreSQL.

This stage:
  1. Creates the nodes, nodes_tags, ways, ways_nodes and ways_tags tables
  2. Uses COPY for high-speed bulk loading, one connection per table
  3. Optionally creates indexes on the id columns

Column types follow the column names: ids, uids and changesets are BIGINT,
coordinates DOUBLE PRECISION, timestamps TIMESTAMPTZ, everything else TEXT.`,
	Args: cobra.NoArgs,
	Run:  runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().BoolVar(&createIndexes, "create-indexes", true, "Create id indexes after loading")
	loadCmd.Flags().BoolVar(&dropExisting, "drop-existing", false, "Drop existing tables before loading")
}

func runLoad(cmd *cobra.Command, args []string) {
	log := logger.Get()
	log.Info("Starting PostgreSQL load",
		zap.String("input_dir", cfg.OutputDir),
		zap.String("database", cfg.DBName),
		zap.String("host", cfg.DBHost),
		zap.Int("port", cfg.DBPort),
		zap.String("user", cfg.DBUser),
		zap.String("schema", cfg.DBSchema),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()

	ldr, err := loader.NewLoader(ctx, cfg, dropExisting, createIndexes)
	if err != nil {
		exitWithError("failed to create loader", err)
	}
	defer ldr.Close()

	stats, err := ldr.Run(ctx)
	if err != nil {
		exitWithError("load failed", err)
	}

	elapsed := time.Since(start)

	log.Info("Load complete",
		zap.Duration("duration", elapsed.Round(time.Second)),
		zap.Int("tables", len(stats.Tables)),
		zap.Int64("rows", stats.RowsLoaded),
		zap.Float64("throughput_rows_s", float64(stats.RowsLoaded)/elapsed.Seconds()),
	)
}
