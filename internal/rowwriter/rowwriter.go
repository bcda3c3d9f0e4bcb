// Package rowwriter appends shaped elements to the five output streams.
package rowwriter

import (
	"fmt"

	"github.com/wegman-software/osmshape/internal/shaper"
)

// Stream names, also used as output file base names and table names
const (
	StreamNodes    = "nodes"
	StreamNodeTags = "nodes_tags"
	StreamWays     = "ways"
	StreamWayNodes = "ways_nodes"
	StreamWayTags  = "ways_tags"
)

// Output formats
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

const dirMode = 0755

// Streams lists all output streams in write order
var Streams = []string{StreamNodes, StreamNodeTags, StreamWays, StreamWayNodes, StreamWayTags}

// Sink receives shaped elements in input order
type Sink interface {
	Write(res *shaper.Result) error
	Close() error
}

// Headers returns the column list of every stream for the given tables
func Headers(tables shaper.Tables) map[string][]string {
	return map[string][]string{
		StreamNodes:    tables.NodeFields,
		StreamNodeTags: shaper.TagFields,
		StreamWays:     tables.WayFields,
		StreamWayNodes: shaper.WayNodeFields,
		StreamWayTags:  shaper.TagFields,
	}
}

// Open creates a sink writing the given format into dir
func Open(format, dir string, tables shaper.Tables, batchSize int) (Sink, error) {
	switch format {
	case FormatCSV, "":
		return NewCSVSink(dir, tables)
	case FormatParquet:
		return NewParquetSink(dir, tables, batchSize)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// streamWriter writes rows of a single stream
type streamWriter interface {
	WriteRow(values []string) error
	Close() error
}

// streamSet routes results to per-stream writers
type streamSet struct {
	writers map[string]streamWriter
}

func (s *streamSet) Write(res *shaper.Result) error {
	if res == nil {
		return nil
	}

	switch res.Kind {
	case shaper.KindNode:
		if err := s.writers[StreamNodes].WriteRow(res.Node.Values()); err != nil {
			return fmt.Errorf("failed to write %s row: %w", StreamNodes, err)
		}
		return s.writeTags(StreamNodeTags, res.Tags)

	case shaper.KindWay:
		if err := s.writers[StreamWays].WriteRow(res.Way.Values()); err != nil {
			return fmt.Errorf("failed to write %s row: %w", StreamWays, err)
		}
		for _, wn := range res.WayNodes {
			if err := s.writers[StreamWayNodes].WriteRow(wn.Values()); err != nil {
				return fmt.Errorf("failed to write %s row: %w", StreamWayNodes, err)
			}
		}
		return s.writeTags(StreamWayTags, res.Tags)
	}

	return fmt.Errorf("cannot write result of kind %q", res.Kind)
}

func (s *streamSet) writeTags(stream string, tags []shaper.Tag) error {
	for _, tag := range tags {
		if err := s.writers[stream].WriteRow(tag.Values()); err != nil {
			return fmt.Errorf("failed to write %s row: %w", stream, err)
		}
	}
	return nil
}

// Close closes every stream and returns the first error
func (s *streamSet) Close() error {
	var firstErr error
	for _, name := range Streams {
		w, ok := s.writers[name]
		if !ok {
			continue
		}
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s: %w", name, err)
		}
	}
	return firstErr
}
