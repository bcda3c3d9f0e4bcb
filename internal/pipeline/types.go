package pipeline

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Stats holds counters for one input document. Counters are updated by the
// processing goroutine and may be read concurrently for progress output.
type Stats struct {
	Input     string
	OutputDir string

	Nodes        atomic.Int64
	Ways         atomic.Int64
	WayNodes     atomic.Int64
	NodeTags     atomic.Int64
	WayTags      atomic.Int64
	RejectedTags atomic.Int64 // Tags dropped for problem characters in the key
	Skipped      atomic.Int64 // Elements skipped for missing attributes
	BytesRead    atomic.Int64
	TotalBytes   atomic.Int64

	Duration time.Duration
}

// Elements returns the number of nodes and ways written
func (s *Stats) Elements() int64 {
	return s.Nodes.Load() + s.Ways.Load()
}

// Rows returns the number of rows written across all five streams
func (s *Stats) Rows() int64 {
	return s.Nodes.Load() + s.Ways.Load() + s.WayNodes.Load() + s.NodeTags.Load() + s.WayTags.Load()
}

// Fields returns the counters as log fields
func (s *Stats) Fields() []zap.Field {
	return []zap.Field{
		zap.String("input", s.Input),
		zap.Int64("nodes", s.Nodes.Load()),
		zap.Int64("ways", s.Ways.Load()),
		zap.Int64("way_nodes", s.WayNodes.Load()),
		zap.Int64("node_tags", s.NodeTags.Load()),
		zap.Int64("way_tags", s.WayTags.Load()),
		zap.Int64("rejected_tags", s.RejectedTags.Load()),
		zap.Int64("skipped", s.Skipped.Load()),
	}
}
