// Package pipeline drives the read, shape, validate and write loop over
// one or more OSM documents.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/wegman-software/osmshape/internal/config"
	"github.com/wegman-software/osmshape/internal/logger"
	"github.com/wegman-software/osmshape/internal/reader"
	"github.com/wegman-software/osmshape/internal/rowwriter"
	"github.com/wegman-software/osmshape/internal/shaper"
	"github.com/wegman-software/osmshape/internal/validate"
)

// Processor shapes elements from a reader into a sink
type Processor struct {
	shaper    *shaper.Shaper
	validator *validate.Validator // nil when validation is disabled
	onMissing string
	log       *zap.Logger
}

// NewProcessor builds the shaper and optional validator described by cfg
func NewProcessor(cfg *config.Config) (*Processor, error) {
	tables := shaper.DefaultTables()
	if cfg.TablesFile != "" {
		var err error
		if tables, err = shaper.LoadTables(cfg.TablesFile); err != nil {
			return nil, err
		}
	}

	s, err := shaper.New(tables)
	if err != nil {
		return nil, fmt.Errorf("invalid tables: %w", err)
	}

	p := &Processor{
		shaper:    s,
		onMissing: cfg.OnMissing,
		log:       logger.Get(),
	}

	if cfg.CheckRows {
		schema := validate.DefaultSchemaFor(s.Tables())
		if cfg.SchemaFile != "" {
			if schema, err = validate.LoadSchema(cfg.SchemaFile); err != nil {
				return nil, err
			}
		}
		if p.validator, err = validate.NewValidator(schema); err != nil {
			return nil, fmt.Errorf("invalid schema: %w", err)
		}
	}

	return p, nil
}

// Shaper returns the processor's shaper
func (p *Processor) Shaper() *shaper.Shaper {
	return p.shaper
}

// Run pulls every element from r, shapes it and writes it to sink in
// input order. It stops at the first error unless the error is a missing
// attribute and the processor is configured to skip such elements.
func (p *Processor) Run(ctx context.Context, r reader.Reader, sink rowwriter.Sink, stats *Stats) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		el, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		res, err := p.shaper.Shape(el)
		if err != nil {
			var missing *shaper.MissingAttributeError
			if errors.As(err, &missing) && p.onMissing == config.OnMissingSkip {
				stats.Skipped.Add(1)
				p.log.Warn("Skipping element", zap.String("input", stats.Input), zap.Error(err))
				continue
			}
			return err
		}
		if res == nil {
			continue
		}

		if p.validator != nil {
			if err := p.validator.Validate(res); err != nil {
				return err
			}
		}

		if err := sink.Write(res); err != nil {
			return err
		}

		countResult(stats, el, res)
	}
}

func countResult(stats *Stats, el *shaper.RawElement, res *shaper.Result) {
	var tagChildren int64
	for _, c := range el.Children {
		if c.Name == shaper.ChildTag {
			tagChildren++
		}
	}
	stats.RejectedTags.Add(tagChildren - int64(len(res.Tags)))

	switch res.Kind {
	case shaper.KindNode:
		stats.Nodes.Add(1)
		stats.NodeTags.Add(int64(len(res.Tags)))
	case shaper.KindWay:
		stats.Ways.Add(1)
		stats.WayNodes.Add(int64(len(res.WayNodes)))
		stats.WayTags.Add(int64(len(res.Tags)))
	}
}

// ProcessFile shapes one input file into outputDir using the given format
func (p *Processor) ProcessFile(ctx context.Context, input, outputDir, format string, batchSize, procs int, stats *Stats) error {
	start := time.Now()

	file, err := reader.Open(ctx, input, procs)
	if err != nil {
		return err
	}
	defer file.Close()
	stats.TotalBytes.Store(file.Size())

	sink, err := rowwriter.Open(format, outputDir, p.shaper.Tables(), batchSize)
	if err != nil {
		return err
	}

	counted := &countingReader{Reader: file, file: file, stats: stats}
	runErr := p.Run(ctx, counted, sink, stats)
	closeErr := sink.Close()
	stats.BytesRead.Store(file.BytesRead())
	stats.Duration = time.Since(start)

	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return closeErr
	}

	p.log.Info("Input shaped", append(stats.Fields(),
		zap.String("output_dir", outputDir),
		zap.Duration("duration", stats.Duration.Round(time.Millisecond)),
	)...)
	return nil
}

// countingReader publishes bytes read to stats after each element
type countingReader struct {
	reader.Reader
	file  *reader.File
	stats *Stats
}

func (c *countingReader) Next() (*shaper.RawElement, error) {
	el, err := c.Reader.Next()
	c.stats.BytesRead.Store(c.file.BytesRead())
	return el, err
}
