package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osmshape/internal/config"
	"github.com/wegman-software/osmshape/internal/metrics"
)

// RunAll shapes every configured input. Inputs are independent and run in
// parallel, bounded by cfg.Workers; the first failure cancels the rest.
// With a single input the streams are written directly into cfg.OutputDir,
// otherwise into one subdirectory per input.
func RunAll(ctx context.Context, cfg *config.Config, p *Processor) ([]*Stats, error) {
	if len(cfg.InputFiles) == 0 {
		return nil, fmt.Errorf("no input files")
	}

	outputDirs, err := OutputDirs(cfg.OutputDir, cfg.InputFiles)
	if err != nil {
		return nil, err
	}

	all := make([]*Stats, len(cfg.InputFiles))
	for i, input := range cfg.InputFiles {
		all[i] = &Stats{Input: input, OutputDir: outputDirs[i]}
	}

	start := time.Now()
	metricsCtx, stopMetrics := context.WithCancel(ctx)
	collector := metrics.NewCollector(cfg.MetricsInterval, p.log, func() []zap.Field {
		return progressFields(all, start)
	})
	metricsDone := make(chan struct{})
	go func() {
		defer close(metricsDone)
		collector.Start(metricsCtx)
	}()
	defer func() {
		stopMetrics()
		<-metricsDone
	}()

	// PBF decoding is itself parallel; split the workers between inputs
	procs := cfg.Workers / len(cfg.InputFiles)
	if procs < 1 {
		procs = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for i := range cfg.InputFiles {
		stats := all[i]
		g.Go(func() error {
			if err := p.ProcessFile(gctx, stats.Input, stats.OutputDir, cfg.Format, cfg.BatchSize, procs, stats); err != nil {
				return fmt.Errorf("%s: %w", stats.Input, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return all, err
	}
	return all, nil
}

// OutputDirs maps each input to its output directory
func OutputDirs(outputDir string, inputs []string) ([]string, error) {
	if len(inputs) == 1 {
		return []string{outputDir}, nil
	}

	dirs := make([]string, len(inputs))
	seen := make(map[string]string, len(inputs))
	for i, input := range inputs {
		name := BaseName(input)
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("inputs %s and %s would both write to %s", prev, input, name)
		}
		seen[name] = input
		dirs[i] = filepath.Join(outputDir, name)
	}
	return dirs, nil
}

// BaseName strips the directory and OSM file extensions from a path,
// e.g. "maps/new-york.osm.bz2" becomes "new-york"
func BaseName(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".gz", ".bz2", ".pbf", ".osm", ".xml"} {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}
